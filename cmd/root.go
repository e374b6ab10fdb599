package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kilianp07/bayplan/core/model"
	"github.com/kilianp07/bayplan/core/report"
	"github.com/kilianp07/bayplan/infra/logger"
)

// ExitFailure is returned for failures outside the error taxonomy, such as
// unreadable files.
const ExitFailure = 5

var (
	cfgPath         string
	metricsTextfile string
	// exitCode is set by commands that produce a report.
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:           "bayplan",
	Short:         "Bus bay assignment and validation engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return writeMetrics()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")
	rootCmd.PersistentFlags().StringVar(&metricsTextfile, "metrics-textfile", "", "write solver metrics in Prometheus text format to this file")
}

// Execute runs the CLI and returns the process exit status.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	exitCode = 0
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return exitCode
	}
	logger.New("main").Errorf("%v", err)
	return ExitCodeFor(err)
}

// ExitCodeFor maps an error to the process exit status.
func ExitCodeFor(err error) int {
	switch {
	case errors.Is(err, model.ErrData):
		return report.ExitDataError
	case errors.Is(err, model.ErrConfiguration):
		return report.InfeasibleConfiguration.ExitCode()
	}
	return ExitFailure
}

func writeMetrics() error {
	if metricsTextfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(metricsTextfile, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
