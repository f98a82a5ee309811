package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/ZanzyTHEbar/leadpulse/internal/scoring"
	"github.com/ZanzyTHEbar/leadpulse/internal/types"
	"github.com/spf13/cobra"
)

// readRecords accepts a JSON array of records, a single record or an object
// with a "records" array. "-" reads stdin.
func readRecords(in io.Reader, path string) ([]types.Record, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("input is empty")
	}

	if data[0] == '[' {
		var records []types.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse records: %w", err)
		}
		return records, nil
	}

	var wrapped struct {
		Records []types.Record `json:"records"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Records != nil {
		return wrapped.Records, nil
	}

	var single types.Record
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	return []types.Record{single}, nil
}

func newScoreCmd(opts *options) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score records without ranking them",
		Long:  "Score every record of the input file. Records without an id are reported as rejected and never stop the run.",
		Example: `  leadctl score -i records.json
  cat lead.json | leadctl score -i - -f text`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecords(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}
			e, err := opts.engine()
			if err != nil {
				return err
			}

			scored, rejected := e.ScoreBatch(records)
			out := cmd.OutOrStdout()
			if opts.text() {
				return writeScoredTable(out, scored, rejected, false)
			}
			return writeJSON(out, map[string]interface{}{
				"records":        scored,
				"rejected":       rejected,
				"config_version": e.Version(),
			})
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", "JSON file of records, - for stdin")
	return cmd
}

func newPrioritizeCmd(opts *options) *cobra.Command {
	var (
		input string
		limit int
	)

	cmd := &cobra.Command{
		Use:     "prioritize",
		Short:   "Rank records and summarize the collection",
		Example: "  leadctl prioritize -i conversations.json --limit 10 -f text",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			records, err := readRecords(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}
			e, err := opts.engine()
			if err != nil {
				return err
			}

			ev := e.Evaluate(records)
			total := len(ev.Records)
			if limit > 0 && limit < total {
				ev.Records = ev.Records[:limit]
			}

			out := cmd.OutOrStdout()
			if opts.text() {
				if err := writeScoredTable(out, ev.Records, ev.Rejected, true); err != nil {
					return err
				}
				return writeInsights(out, ev.Insights)
			}
			return writeJSON(out, map[string]interface{}{
				"records":        ev.Records,
				"rejected":       ev.Rejected,
				"insights":       ev.Insights,
				"total":          total,
				"config_version": ev.ConfigVersion,
			})
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", "JSON file of records, - for stdin")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many records (0 for all)")
	return cmd
}

func writeScoredTable(w io.Writer, scored []scoring.ScoredRecord, rejected []scoring.Rejected, ranked bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if ranked {
		fmt.Fprintln(tw, "RANK\tID\tKIND\tSCORE\tRISK\tACTION")
	} else {
		fmt.Fprintln(tw, "ID\tKIND\tSCORE\tRISK\tACTION")
	}
	for _, sr := range scored {
		kind := sr.Record.Kind
		if kind == "" {
			kind = types.KindLead
		}
		if ranked {
			fmt.Fprintf(tw, "%d\t", sr.Rank)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", sr.Record.ID, kind, sr.Result.Composite, sr.Result.Risk.Tier, sr.Result.NextBestAction.ID)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, r := range rejected {
		fmt.Fprintf(w, "rejected #%d: %s\n", r.Index, r.Reason)
	}
	return nil
}

func writeInsights(w io.Writer, insights []scoring.CollectionInsight) error {
	if len(insights) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	for _, in := range insights {
		if _, err := fmt.Fprintf(w, "[%s] %s\n", in.Priority, in.Message); err != nil {
			return err
		}
	}
	return nil
}
