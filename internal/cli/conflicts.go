package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/travellife/internal/models"
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Inspect and resolve sync conflicts",
}

var conflictsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending conflicts",
	RunE: func(cmd *cobra.Command, args []string) error {
		pending, err := current.engine.PendingConflicts(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(pending) == 0 {
			fmt.Fprintln(out, "no pending conflicts")
			return nil
		}
		for _, c := range pending {
			fmt.Fprintf(out, "#%d\t%s/%s\tlocal v%d vs server v%d\tdetected %s\n",
				c.ID, c.EntityType, c.EntityID, c.LocalVersion, c.ServerVersion,
				c.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var conflictsResolveCmd = &cobra.Command{
	Use:   "resolve <id> <local|server|merge>",
	Short: "Resolve one conflict",
	Long: `Resolve one conflict:
  local   keep the local change, force-pushing it to the server
  server  adopt the server's copy and discard the local change
  merge   apply a merged payload read from --payload-file (fresh local change)`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid conflict id %q", args[0])
		}
		res := models.Resolution(args[1])
		switch res {
		case models.ResolutionLocal, models.ResolutionServer, models.ResolutionMerge:
		default:
			return fmt.Errorf("unknown resolution %q (want local, server or merge)", args[1])
		}

		var merged []byte
		if res == models.ResolutionMerge {
			path, _ := cmd.Flags().GetString("payload-file")
			if path == "" {
				return fmt.Errorf("merge requires --payload-file")
			}
			merged, err = os.ReadFile(path)
			if err != nil {
				return err
			}
		}

		if err := current.engine.ResolveConflict(cmd.Context(), id, res, merged); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "conflict #%d resolved (%s)\n", id, res)
		return nil
	},
}

func init() {
	conflictsResolveCmd.Flags().String("payload-file", "", "JSON file with the merged payload (merge only)")
	conflictsCmd.AddCommand(conflictsListCmd)
	conflictsCmd.AddCommand(conflictsResolveCmd)
}
