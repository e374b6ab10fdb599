package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bayplan/pkg/export"
)

var (
	analyzeFlags  inputFlags
	analyzeMode   string
	assignmentOut string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Audit the snapshot, optimise bay assignments and validate clusters",
	RunE:  runAnalyze,
}

func init() {
	analyzeFlags.register(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeMode, "reassign", "", "trips the optimizer may move: none, pending or all (default from config)")
	analyzeCmd.Flags().StringVar(&assignmentOut, "assignment-out", "", "write the final assignment as CSV to this file")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := loadEnv(&analyzeFlags)
	if err != nil {
		return err
	}
	if analyzeMode != "" {
		e.cfg.Reassign = analyzeMode
		if err := e.cfg.Validate(); err != nil {
			return err
		}
	}
	out := cmd.OutOrStdout()
	s, err := e.schedule()
	if err != nil {
		return e.fail(ctx, out, err)
	}
	a, err := e.analyzer()
	if err != nil {
		return err
	}
	rep, err := a.Analyze(ctx, s)
	if err != nil {
		return e.fail(ctx, out, err)
	}
	if assignmentOut != "" {
		f, err := os.Create(assignmentOut)
		if err != nil {
			return fmt.Errorf("assignment output: %w", err)
		}
		defer func() { _ = f.Close() }()
		if err := export.WriteAssignmentCSV(f, rep.Assignment); err != nil {
			return fmt.Errorf("assignment output: %w", err)
		}
	}
	return e.finish(ctx, out, rep)
}
