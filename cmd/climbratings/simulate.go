package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/climbratings/internal/adapters/csvio"
	service "github.com/okian/climbratings/internal/app"
	"github.com/okian/climbratings/internal/config"
	"github.com/okian/climbratings/internal/synthetic"
	"github.com/okian/climbratings/pkg/logger"
	"github.com/okian/climbratings/pkg/metrics"
)

func newSimulateCmd() *cobra.Command {
	sc := synthetic.DefaultConfig()
	var writeDir string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Estimate ratings on a synthetic history and report how well they are recovered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(ctx)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := logger.InitWithOptions(logger.Options{Format: cfg.LogFormat, Output: cmd.ErrOrStderr()}); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			if err := logger.SetLevelString(cfg.LogLevel); err != nil {
				return err
			}
			metrics.Init(cfg.MetricsOptions()...)
			sc.Workers = cfg.Workers

			ds, truth, err := synthetic.Generate(ctx, sc)
			if err != nil {
				return err
			}
			if writeDir != "" {
				if err := csvio.WriteInputDir(writeDir, ds); err != nil {
					return err
				}
			}

			svc := service.New(
				service.WithLogger(logger.Named("service")),
				service.WithTopN(0),
				service.WithEstimatorOptions(cfg.EstimatorOptions()...),
			)
			report, err := svc.Estimate(ctx, ds)
			if err != nil {
				return err
			}
			q, err := synthetic.Verify(truth, report.Estimates)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printReport(out, report)
			fmt.Fprintf(out, "routes: spearman %.3f rmse %.3f\n", q.RouteSpearman, q.RouteRMSE)
			fmt.Fprintf(out, "pages:  spearman %.3f rmse %.3f\n", q.PageSpearman, q.PageRMSE)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.IntVar(&sc.Climbers, "climbers", sc.Climbers, "number of climbers")
	fl.IntVar(&sc.Routes, "routes", sc.Routes, "number of routes")
	fl.IntVar(&sc.MaxSessions, "sessions", sc.MaxSessions, "maximum sessions per climber")
	fl.IntVar(&sc.AscentsPerSession, "ascents", sc.AscentsPerSession, "ascents per session")
	fl.DurationVar(&sc.SessionGap, "gap", sc.SessionGap, "mean time between sessions")
	fl.Float64Var(&sc.Drift, "drift", sc.Drift, "std dev of rating change between sessions")
	fl.Int64Var(&sc.Seed, "seed", sc.Seed, "random seed")
	fl.StringVar(&writeDir, "write", "", "also write the generated history as CSV input files to this directory")
	return cmd
}
