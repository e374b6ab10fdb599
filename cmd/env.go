package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bayplan/app"
	"github.com/kilianp07/bayplan/config"
	"github.com/kilianp07/bayplan/core/logger"
	"github.com/kilianp07/bayplan/core/model"
	"github.com/kilianp07/bayplan/core/optimizer"
	"github.com/kilianp07/bayplan/core/report"
	"github.com/kilianp07/bayplan/core/solver"
	"github.com/kilianp07/bayplan/infra/gtfsfeed"
	infralogger "github.com/kilianp07/bayplan/infra/logger"
	"github.com/kilianp07/bayplan/infra/records"
	"github.com/kilianp07/bayplan/infra/store"
	"github.com/kilianp07/bayplan/pkg/export"
)

// inputFlags override the inputs section of the configuration.
type inputFlags struct {
	trips, bays, clusters, gtfs string
	format                      string
	noStore                     bool
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.trips, "trips", "", "trips CSV file")
	cmd.Flags().StringVar(&f.bays, "bays", "", "bay inventory CSV file")
	cmd.Flags().StringVar(&f.clusters, "clusters", "", "route cluster CSV file")
	cmd.Flags().StringVar(&f.gtfs, "gtfs", "", "GTFS static feed zip, replaces --trips")
	cmd.Flags().StringVarP(&f.format, "format", "f", "json", "report format: json or csv")
	cmd.Flags().BoolVar(&f.noStore, "no-store", false, "do not append the report to the history")
}

// env is everything a command needs after configuration is loaded.
type env struct {
	cfg   *config.Config
	log   logger.Logger
	flags *inputFlags
}

func loadEnv(flags *inputFlags) (*env, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := infralogger.Configure(cfg.Logging.Level, cfg.Logging.Console); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	if flags != nil {
		in := &cfg.Inputs
		override(&in.Trips, flags.trips)
		override(&in.Bays, flags.bays)
		override(&in.Clusters, flags.clusters)
		override(&in.GTFS, flags.gtfs)
		if flags.gtfs != "" {
			in.Trips = ""
		}
	}
	return &env{cfg: cfg, log: infralogger.New("cli"), flags: flags}, nil
}

func (e *env) schedule() (*model.Schedule, error) {
	in := e.cfg.Inputs
	snap, err := records.Load(records.Files{Trips: in.Trips, Bays: in.Bays, Clusters: in.Clusters})
	if err != nil {
		return nil, err
	}
	if in.GTFS != "" {
		feed, err := gtfsfeed.Load(in.GTFS)
		if err != nil {
			return nil, err
		}
		snap.Trips = gtfsfeed.Trips(feed, snap.Bays, gtfsfeed.Options{
			BayStops: in.BayStops,
			Services: in.Services,
			Logger:   infralogger.New("gtfs"),
		})
	}
	return snap.Schedule(e.cfg.ModelOptions())
}

func (e *env) analyzer() (*app.Analyzer, error) {
	opts, err := e.cfg.AnalyzerOptions()
	if err != nil {
		return nil, err
	}
	s, err := e.cfg.Solver()
	if err != nil {
		return nil, err
	}
	if bb, ok := s.(*solver.BranchAndBound); ok {
		bb.Logger = infralogger.New("solver")
	}
	opt := optimizer.New(s, infralogger.New("optimizer"))
	return app.New(opt, opts, infralogger.New("analyzer")), nil
}

// finish persists and prints the report and records its exit code.
func (e *env) finish(ctx context.Context, out io.Writer, rep report.Report) error {
	if !e.cfg.Store.Disabled && (e.flags == nil || !e.flags.noStore) {
		st, err := store.NewJSONLStore(e.cfg.Store.Path, infralogger.New("store"))
		if err != nil {
			return fmt.Errorf("open report store: %w", err)
		}
		defer func() { _ = st.Close() }()
		if err := st.Append(ctx, rep); err != nil {
			return fmt.Errorf("store report: %w", err)
		}
	}
	if err := write(out, e.format(), rep); err != nil {
		return err
	}
	exitCode = max(exitCode, rep.ExitCode)
	return nil
}

// fail turns a taxonomy error into a persisted report. Other errors are
// returned unchanged.
func (e *env) fail(ctx context.Context, out io.Writer, err error) error {
	rep, ok := report.FromError("", err)
	if !ok {
		return err
	}
	if ferr := e.finish(ctx, out, rep); ferr != nil {
		return ferr
	}
	e.log.Errorf("run %s aborted: %v", rep.RunID, err)
	return nil
}

func (e *env) format() string {
	if e.flags == nil {
		return "json"
	}
	return e.flags.format
}

func write(out io.Writer, format string, rep report.Report) error {
	switch format {
	case "json", "":
		return export.WriteJSON(out, rep)
	case "csv":
		return export.WriteCSV(out, rep)
	}
	return fmt.Errorf("unknown format %q", format)
}

func override(dst *string, flag string) {
	if flag != "" {
		*dst = flag
	}
}
