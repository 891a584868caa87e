package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/mindwellhq/mindsync/internal/models"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push queued changes and unsynced records now",
	Long: `Sync runs the full pass immediately: queued operations first, then a
reconciliation sweep over records still flagged unsynced. It fails fast
when the API is unreachable.`,
	Example: `  mindsync sync
  mindsync sync --json`,
	Args: cobra.NoArgs,
	RunE: runSyncCmd,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSyncCmd(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		printWarning("\nSync interrupted, cancelling...")
		cancel()
	}()

	apiClient.Start(ctx)

	startTime := time.Now()
	summary, err := apiClient.Offline.ForceSyncAll(ctx)
	duration := time.Since(startTime)

	if err != nil {
		if jsonOutput {
			printJSON(map[string]interface{}{
				"success": false,
				"error":   err.Error(),
			})
		} else if errors.Is(err, models.ErrOffline) {
			printError("Cannot sync: no connection to the API")
		} else {
			printError("Sync failed: %v", err)
		}
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success":        true,
			"queue":          summary.Queue,
			"reconciliation": summary.Reconciliation,
			"duration":       duration.Round(time.Millisecond).String(),
		})
		return nil
	}

	printInfo("Queue:          %d synced, %d failed",
		summary.Queue.Successful, summary.Queue.Failed)
	printInfo("Reconciliation: %d synced, %d failed",
		summary.Reconciliation.Successful, summary.Reconciliation.Failed)
	printInfo("Duration:       %s", duration.Round(time.Millisecond))

	for _, opErr := range summary.Queue.Errors {
		printWarning("  %s", opErr.Error())
	}
	for _, opErr := range summary.Reconciliation.Errors {
		printWarning("  %s", opErr.Error())
	}

	failed := summary.Queue.Failed + summary.Reconciliation.Failed
	if failed > 0 {
		return fmt.Errorf("%d operations failed", failed)
	}

	printSuccess("Sync completed")
	return nil
}
