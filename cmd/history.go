package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bayplan/core/report"
	"github.com/kilianp07/bayplan/infra/store"
	"github.com/kilianp07/bayplan/pkg/export"
)

var (
	historyRun      string
	historySince    string
	historyLabel    string
	historySeverity string
	historyLast     int
	historyFull     bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query stored reports",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyRun, "run", "", "only this run ID")
	historyCmd.Flags().StringVar(&historySince, "since", "", "RFC3339 time or duration ago, e.g. 24h")
	historyCmd.Flags().StringVar(&historyLabel, "label", "", "only reports with this label")
	historyCmd.Flags().StringVar(&historySeverity, "min-severity", "", "drop reports below this severity")
	historyCmd.Flags().IntVar(&historyLast, "last", 0, "keep only the most recent N reports")
	historyCmd.Flags().BoolVar(&historyFull, "full", false, "print full JSON reports instead of a table")
	rootCmd.AddCommand(historyCmd)
}

// parseSince accepts an absolute RFC3339 time or a duration before now.
func parseSince(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("since %q is neither RFC3339 nor a duration", s)
	}
	return now.Add(-d), nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(nil)
	if err != nil {
		return err
	}
	q := store.Query{RunID: historyRun, Label: historyLabel, Last: historyLast}
	if q.Since, err = parseSince(historySince, time.Now()); err != nil {
		return err
	}
	if historySeverity != "" {
		if err := q.MinSeverity.UnmarshalText([]byte(historySeverity)); err != nil {
			return err
		}
	}
	st, err := store.NewJSONLStore(e.cfg.Store.Path, e.log)
	if err != nil {
		return fmt.Errorf("open report store: %w", err)
	}
	defer func() { _ = st.Close() }()
	reps, err := st.Query(cmd.Context(), q)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if historyFull {
		for _, r := range reps {
			if err := export.WriteJSON(out, r); err != nil {
				return err
			}
		}
		return nil
	}
	return table(cmd, reps)
}

func table(cmd *cobra.Command, reps []report.Report) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "RUN\tCREATED\tLABEL\tSEVERITY\tCONFLICTS\tMISMATCHES\tFINDINGS"); err != nil {
		return err
	}
	for _, r := range reps {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			r.RunID, r.CreatedAt.Format(time.RFC3339), r.Label, r.Severity,
			r.Summary.FinalConflicts, r.Summary.ClusterMismatches, len(r.Findings)); err != nil {
			return err
		}
	}
	return tw.Flush()
}
