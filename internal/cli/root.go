package cli

import (
	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagVerbose bool

	// current is built by the root pre-run and shared by all subcommands
	current *app
)

var rootCmd = &cobra.Command{
	Use:           "travellife",
	Short:         "TravelLife offline sync engine",
	Long:          "Inspect and operate the TravelLife client's offline store, mutation queue and tile cache.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flagConfig, flagVerbose)
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if current != nil {
			current.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default: travellife.yaml in . or the data dir)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(drainCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(conflictsCmd)
	rootCmd.AddCommand(storageCmd)
	rootCmd.AddCommand(offlineMapCmd)
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		cmd := rootCmd
		cmd.PrintErrln("Error:", err)
		return 1
	}
	return 0
}
