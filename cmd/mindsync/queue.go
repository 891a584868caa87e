package main

import (
	"github.com/spf13/cobra"

	"github.com/mindwellhq/mindsync/internal/models"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the durable operation queue",
	Example: `  mindsync queue
  mindsync queue purge`,
	Args: cobra.NoArgs,
	RunE: runQueueList,
}

var queuePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove completed and permanently failed operations",
	Args:  cobra.NoArgs,
	RunE:  runQueuePurge,
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queuePurgeCmd)
}

func runQueueList(cmd *cobra.Command, args []string) error {
	ops := apiClient.Offline.QueueSnapshot()

	if jsonOutput {
		printJSON(map[string]interface{}{
			"operations": ops,
			"count":      len(ops),
		})
		return nil
	}

	if len(ops) == 0 {
		printInfo("Queue is empty")
		return nil
	}

	printInfo("%-8s %-6s %-16s %-36s %-8s %s",
		"STATUS", "KIND", "COLLECTION", "TARGET", "ATTEMPTS", "QUEUED")
	for _, op := range ops {
		line := printInfo
		if op.Status == models.StatusFailed {
			line = printError
		}
		line("%-8s %-6s %-16s %-36s %-8d %s",
			op.Status, op.Kind, op.Collection, op.TargetID,
			op.Attempts, op.QueuedAt.Format("2006-01-02 15:04:05"))
		if op.LastError != "" {
			printWarning("         last error: %s", op.LastError)
		}
	}

	return nil
}

func runQueuePurge(cmd *cobra.Command, args []string) error {
	removed := apiClient.Offline.PurgeTerminal()

	if jsonOutput {
		printJSON(map[string]interface{}{"removed": removed})
		return nil
	}

	printSuccess("Removed %d terminal operations", removed)
	return nil
}
