package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/bayplan/app"
	"github.com/kilianp07/bayplan/infra/records"
)

var (
	auditFlags      inputFlags
	auditAssignment string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Report conflicts and cluster mismatches without optimising",
	Long: `Audit checks an assignment for bay conflicts and cluster mismatches.
Without --assignment the snapshot's own bays are audited, or a round-robin
rotation when the snapshot carries none.`,
	RunE: runAudit,
}

func init() {
	auditFlags.register(auditCmd)
	auditCmd.Flags().StringVar(&auditAssignment, "assignment", "", "trip_id,bay_id CSV to audit instead of the snapshot bays")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := loadEnv(&auditFlags)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	s, err := e.schedule()
	if err != nil {
		return e.fail(ctx, out, err)
	}
	c := app.Candidate{Name: "baseline", Assignment: app.Baseline(s)}
	if auditAssignment != "" {
		a, err := records.ReadAssignmentFile(auditAssignment)
		if err != nil {
			return e.fail(ctx, out, err)
		}
		c = app.Candidate{Name: auditAssignment, Assignment: a}
	}
	an, err := e.analyzer()
	if err != nil {
		return err
	}
	rep, err := an.Audit(s, c)
	if err != nil {
		return e.fail(ctx, out, err)
	}
	return e.finish(ctx, out, rep)
}
