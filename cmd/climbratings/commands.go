package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	service "github.com/okian/climbratings/internal/app"
	"github.com/okian/climbratings/internal/config"
	"github.com/okian/climbratings/pkg/logger"
	"github.com/okian/climbratings/pkg/metrics"
)

// errNotConverged is returned by estimate --strict when the iteration cap is hit.
var errNotConverged = errors.New("estimation did not converge")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "climbratings",
		Short:         "Whole-History Rating for climbers and routes",
		Long:          `Estimates climber ratings over time and route difficulties from ascent records.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newEstimateCmd(), newSimulateCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "climbratings %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		},
	}
}

type estimateFlags struct {
	dataDir string
	outDir  string
	strict  bool
}

func newEstimateCmd() *cobra.Command {
	var f estimateFlags
	cmd := &cobra.Command{
		Use:   "estimate --data DIR [--out DIR] [--top N]",
		Short: "Estimate ratings from routes.csv, pages.csv and ascents.csv",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEstimate(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.dataDir, "data", "d", "", "directory holding routes.csv, pages.csv and ascents.csv")
	fl.StringVarP(&f.outDir, "out", "o", "", "directory to write route_ratings.csv and page_ratings.csv")
	fl.BoolVar(&f.strict, "strict", false, "fail when the iteration cap is reached before convergence")
	fl.Int("top", 0, "number of climbers to print (overrides top_n)")
	fl.Int("max-iterations", 0, "iteration cap (overrides max_iterations)")
	fl.Float64("tolerance", 0, "convergence tolerance (overrides tolerance)")
	fl.Int("workers", 0, "goroutines per pass (overrides workers)")
	fl.String("init", "", "initial route ratings: neutral or grade (overrides initial_route_ratings)")
	fl.String("metrics-file", "", "write Prometheus metrics to this file (overrides metrics_file)")
	fl.Float64("climber-mean", 0, "mean of the prior on a climber's first page (overrides climber_mean)")
	fl.String("log-level", "", "debug, info, warn or error (overrides log_level)")
	fl.String("log-format", "", "text or json (overrides log_format)")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func runEstimate(cmd *cobra.Command, f estimateFlags) error {
	ctx := cmd.Context()

	// Load configuration (defaults -> optional file -> env -> flags)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	if err := logger.InitWithOptions(logger.Options{Format: cfg.LogFormat, Output: cmd.ErrOrStderr()}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return err
	}
	log := logger.Get()
	metrics.Init(cfg.MetricsOptions()...)

	svc := service.New(
		service.WithLogger(log.Named("service")),
		service.WithTopN(cfg.TopN),
		service.WithEstimatorOptions(cfg.EstimatorOptions()...),
	)
	report, runErr := svc.Run(ctx, f.dataDir, f.outDir)

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Warn(ctx, "failed to write metrics file", logger.String("path", cfg.MetricsFile), logger.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}

	printReport(cmd.OutOrStdout(), report)
	if f.strict && !report.Result.Converged {
		return fmt.Errorf("%w after %d iterations", errNotConverged, report.Result.Iterations)
	}
	return nil
}

// applyFlags copies explicitly set flags over cfg and revalidates it.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	fl := cmd.Flags()
	var err error
	set := func(name string, apply func() error) {
		if err == nil && fl.Changed(name) {
			err = apply()
		}
	}
	set("top", func() (e error) { cfg.TopN, e = fl.GetInt("top"); return })
	set("max-iterations", func() (e error) { cfg.MaxIterations, e = fl.GetInt("max-iterations"); return })
	set("tolerance", func() (e error) { cfg.Tolerance, e = fl.GetFloat64("tolerance"); return })
	set("workers", func() (e error) { cfg.Workers, e = fl.GetInt("workers"); return })
	set("init", func() (e error) { cfg.InitialRouteRatings, e = fl.GetString("init"); return })
	set("metrics-file", func() (e error) { cfg.MetricsFile, e = fl.GetString("metrics-file"); return })
	set("climber-mean", func() (e error) { cfg.ClimberMean, e = fl.GetFloat64("climber-mean"); return })
	set("log-level", func() (e error) { cfg.LogLevel, e = fl.GetString("log-level"); return })
	set("log-format", func() (e error) { cfg.LogFormat, e = fl.GetString("log-format"); return })
	if err != nil {
		return err
	}
	return config.Validate(cfg)
}

func printReport(w io.Writer, report *service.Report) {
	res := report.Result
	status := "converged"
	if !res.Converged {
		status = "did not converge"
	}
	fmt.Fprintf(w, "run %s %s after %d iterations (max delta %.3g, log posterior %.6g)\n",
		res.RunID, status, res.Iterations, res.MaxDelta, res.LogPosterior)
	if len(report.Top) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tCLIMBER\tRATING\tSTDDEV")
	for _, e := range report.Top {
		fmt.Fprintf(tw, "%d\t%s\t%.3f\t%.3f\n", e.Rank, e.ClimberID, e.Rating, math.Sqrt(e.Variance))
	}
	_ = tw.Flush()
}
