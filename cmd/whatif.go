package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bayplan/app"
	"github.com/kilianp07/bayplan/infra/records"
)

var (
	whatifFlags      inputFlags
	whatifCandidates string
)

var whatifCmd = &cobra.Command{
	Use:   "whatif",
	Short: "Audit several candidate assignments concurrently",
	Long: `Whatif reads a candidate,trip_id,bay_id CSV and audits every candidate
against its own copy of the schedule. One report is written per candidate,
in file order.`,
	RunE: runWhatIf,
}

func init() {
	whatifFlags.register(whatifCmd)
	whatifCmd.Flags().StringVar(&whatifCandidates, "candidates", "", "candidate assignments CSV (required)")
	_ = whatifCmd.MarkFlagRequired("candidates")
	rootCmd.AddCommand(whatifCmd)
}

func runWhatIf(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := loadEnv(&whatifFlags)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	s, err := e.schedule()
	if err != nil {
		return e.fail(ctx, out, err)
	}
	fh, err := os.Open(whatifCandidates)
	if err != nil {
		return fmt.Errorf("open candidates: %w", err)
	}
	defer func() { _ = fh.Close() }()
	names, byName, err := records.ReadCandidates(fh)
	if err != nil {
		return e.fail(ctx, out, err)
	}
	candidates := make([]app.Candidate, 0, len(names))
	for _, n := range names {
		candidates = append(candidates, app.Candidate{Name: n, Assignment: byName[n]})
	}
	a, err := e.analyzer()
	if err != nil {
		return err
	}
	reps, err := a.WhatIf(ctx, s, candidates)
	if err != nil {
		return e.fail(ctx, out, err)
	}
	for _, rep := range reps {
		if err := e.finish(ctx, out, rep); err != nil {
			return err
		}
	}
	return nil
}
