package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity, cached data and sync queue state",
	Example: `  mindsync status
  mindsync status --json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	apiClient.Start(context.Background())
	status := apiClient.Offline.Status()

	if jsonOutput {
		printJSON(status)
		return nil
	}

	if status.IsOnline {
		printSuccess("Online (%s)", status.ConnectionType)
	} else {
		printWarning("Offline")
	}

	printInfo("\nCached records:")
	for collection, count := range status.OfflineDataCount {
		printInfo("  %-16s %d", collection, count)
	}

	printInfo("\nSync queue: %d pending", status.SyncQueueLength)
	printInfo("Unsynced records: %d", status.UnsyncedCount)
	printInfo("Storage: %s of %s used (%.1f%%)",
		formatBytes(status.Storage.CurrentSize),
		formatBytes(status.Storage.MaxSize),
		status.Storage.UsagePercentage)

	if !status.Storage.HasSpace {
		printError("Local storage budget exceeded")
	}

	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
