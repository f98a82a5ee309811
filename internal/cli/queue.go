package cli

import (
	"fmt"

	"github.com/ZanzyTHEbar/leadpulse/internal/errors"
	"github.com/ZanzyTHEbar/leadpulse/internal/monitoring"
	"github.com/ZanzyTHEbar/leadpulse/internal/queue"
	"github.com/ZanzyTHEbar/leadpulse/internal/types"
	"github.com/spf13/cobra"
)

func newQueueCmd(opts *options) *cobra.Command {
	var (
		kind  string
		limit int
	)

	cmd := &cobra.Command{
		Use:     "queue",
		Short:   "Evaluate the stored records of one kind",
		Long:    "Score and rank every active stored record of a kind, persist the ranking and print the prioritized queue.",
		Example: "  leadctl queue --kind conversation --limit 20 -f text",
		RunE: func(cmd *cobra.Command, args []string) error {
			k := types.Kind(kind)
			if !k.Valid() {
				return fmt.Errorf("unknown kind %q: use lead, conversation or queue", kind)
			}
			e, err := opts.engine()
			if err != nil {
				return err
			}

			db, repo, err := opts.openRepository()
			if err != nil {
				return err
			}
			defer errors.SafeClose(db, "database")

			svc := queue.NewService(repo, e, opts.logger(cmd.ErrOrStderr()), monitoring.NewMetrics())
			defer svc.Close()

			view, err := svc.View(cmd.Context(), k, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.text() {
				fmt.Fprintf(out, "%s queue: %d records (config %s)\n\n", view.Kind, view.Total, view.ConfigVersion)
				if err := writeScoredTable(out, view.Records, view.Rejected, true); err != nil {
					return err
				}
				return writeInsights(out, view.Insights)
			}
			return writeJSON(out, view)
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", string(types.KindLead), "lead, conversation or queue")
	cmd.Flags().IntVarP(&limit, "limit", "n", queue.DefaultViewLimit, "Show at most this many records")
	return cmd
}
