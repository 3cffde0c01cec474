package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect and manage local storage",
}

var storageInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show local storage usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := current.store.GetStorageInfo(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Usage:     %s\n", formatBytes(info.Usage))
		if info.Quota > 0 {
			fmt.Fprintf(out, "Quota:     %s (%.1f%% used)\n", formatBytes(info.Quota), info.PercentUsed)
		}
		fmt.Fprintf(out, "Persisted: %v\n", info.Persisted)
		if info.SupportsDetailedBreakdown {
			fmt.Fprintf(out, "  records: %s\n", formatBytes(info.Breakdown.Records))
			fmt.Fprintf(out, "  cache:   %s\n", formatBytes(info.Breakdown.Cache))
			fmt.Fprintf(out, "  tiles:   %s\n", formatBytes(info.Breakdown.Tiles))
			fmt.Fprintf(out, "  other:   %s\n", formatBytes(info.Breakdown.Other))
		}
		return nil
	},
}

var storagePersistCmd = &cobra.Command{
	Use:   "persist",
	Short: "Ask the platform to protect local data from eviction",
	RunE: func(cmd *cobra.Command, args []string) error {
		granted, err := current.store.RequestPersistence(cmd.Context())
		if err != nil {
			return err
		}
		if granted {
			fmt.Fprintln(cmd.OutOrStdout(), "persistence granted")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "persistence not granted; data remains evictable")
		}
		return nil
	},
}

var storageClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the tile cache and the query cache (never sync data)",
	RunE: func(cmd *cobra.Command, args []string) error {
		freed, err := current.store.ClearAllCaches(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "freed %s\n", formatBytes(freed))
		return nil
	},
}

func init() {
	storageCmd.AddCommand(storageInfoCmd)
	storageCmd.AddCommand(storagePersistCmd)
	storageCmd.AddCommand(storageClearCmd)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
