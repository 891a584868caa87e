package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mindwellhq/mindsync/internal/client"
	"github.com/mindwellhq/mindsync/internal/config"
	"github.com/mindwellhq/mindsync/internal/events"
)

var rootCmd = &cobra.Command{
	Use:   "mindsync",
	Short: "Offline-first sync client for MindWell data",
	Long: `Mindsync keeps mood entries, journal entries, therapy sessions and
crisis events available offline and synchronizes local changes with the
MindWell API when connectivity allows.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if apiClient != nil {
			_ = apiClient.Close()
		}
	},
}

var (
	cfg       *config.Config
	logger    *events.Logger
	apiClient *client.Client

	configPath string
	logLevel   string
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Config file path (default searches ., ~/.config/mindsync, ~/.mindsync)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output results as JSON")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func setup() error {
	loader := config.NewLoader(configPath)

	var err error
	cfg, err = loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if jsonOutput {
		// Keep human-oriented log lines off the JSON stream.
		cfg.Log.Level = "error"
	}
	cfg.Log.Color = cfg.Log.Color && isTerminal()

	logger, err = events.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	apiClient, err = client.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	if token := os.Getenv("MINDSYNC_API_TOKEN"); token != "" {
		apiClient.SetToken(token)
	}

	return nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func printSuccess(format string, args ...interface{}) {
	color.Green(format, args...)
}

func printWarning(format string, args ...interface{}) {
	color.Yellow(format, args...)
}

func printError(format string, args ...interface{}) {
	color.Red(format, args...)
}

func printInfo(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal output: %v\n", err)
		return
	}
	fmt.Println(string(data))
}
