package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status: pending work, conflicts and failures",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if !current.engine.Online() {
			// one probe so status reflects reality, not the default
			if err := current.api.Ping(ctx); err != nil {
				current.engine.SetOnline(false)
			}
		}

		st, err := current.engine.Status(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Status:    %s\n", st.Status)
		fmt.Fprintf(out, "Pending:   %d\n", st.PendingCount)
		fmt.Fprintf(out, "Conflicts: %d\n", st.ConflictCount)
		fmt.Fprintf(out, "Failed:    %d\n", st.FailedCount)
		if !st.LastSyncTime.IsZero() {
			fmt.Fprintf(out, "Last sync: %s\n", st.LastSyncTime.Format("2006-01-02 15:04:05 MST"))
		}
		if st.LastError != "" {
			fmt.Fprintf(out, "Last error: %s\n", st.LastError)
		}
		return nil
	},
}

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Replay queued mutations against the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := current.engine.Drain(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d, retried %d, blocked %d, failed %d\n",
			res.Applied, res.Retried, res.Blocked, res.Failed)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the local records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tripID, _ := cmd.Flags().GetString("trip")
		hits, err := current.engine.Search(cmd.Context(), tripID, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, h := range hits {
			if h.Subtitle != "" {
				fmt.Fprintf(out, "%s\t%s\t%s (%s)\n", h.EntityType, h.EntityID, h.Title, h.Subtitle)
				continue
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", h.EntityType, h.EntityID, h.Title)
		}
		fmt.Fprintf(out, "%d result(s)\n", len(hits))
		return nil
	},
}

func init() {
	searchCmd.Flags().String("trip", "", "restrict the search to one trip id")
}
