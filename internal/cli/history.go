package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/gatewayctl/internal/journal"
)

func (a *app) historyCmd() *cobra.Command {
	var (
		runID string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history [network]",
		Short: "Show journaled transactions",
		Long: `List transactions recorded in the journal, newest first. Requires
JOURNAL_TYPE=sqlite or JOURNAL_TYPE=postgres.

EXAMPLES:
  gatewayctl history
  gatewayctl history SN_MAIN --limit 10
  gatewayctl history --run 3f0c...
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := journal.New(cmd.Context(), a.cfg.Journal, a.logger)
			if err != nil {
				return fmt.Errorf("opening journal: %w", err)
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), journal.Filter{
				Network: networkArg(args, ""),
				RunID:   runID,
				Limit:   limit,
			})
			if errors.Is(err, journal.ErrDisabled) {
				fmt.Fprintln(a.out, "No journal configured")
				fmt.Fprintln(a.out, "   Set JOURNAL_TYPE=sqlite (and optionally SQLITE_PATH) to record transactions")
				return nil
			}
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Fprintln(a.out, "No transactions recorded")
				return nil
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tNETWORK\tPIPELINE\tSTEP\tSTATUS\tTX")
			for _, e := range entries {
				status := e.Status
				if e.Reason != "" {
					status += " (" + e.Reason + ")"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.CreatedAt.Local().Format(time.DateTime),
					e.Network, e.Pipeline, e.Step, status, orDash(e.TxHash))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "only show entries of this run ID")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of entries")

	return cmd
}
