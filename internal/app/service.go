// Package service runs the rating pipeline: load an ascent history, estimate
// ratings, rank climbers and write the estimates.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/climbratings/internal/adapters/csvio"
	"github.com/okian/climbratings/internal/adapters/repository"
	"github.com/okian/climbratings/internal/domain/whr"
	"github.com/okian/climbratings/pkg/logger"
	"github.com/okian/climbratings/pkg/metrics"
)

// Pipeline stage names used in logs and metrics.
const (
	StageLoad     = "load"
	StageEstimate = "estimate"
	StageRank     = "rank"
	StageWrite    = "write"
)

// Service wires the CSV adapter, the estimator and the ranking store.
type Service struct {
	store     repository.Store
	estimator []whr.Option
	topN      int
	logger    logger.Logger
}

// Report is the outcome of one pipeline run.
type Report struct {
	Result    whr.Result
	Estimates csvio.Estimates
	// Top holds the best climbers by latest page rating.
	Top []repository.Entry
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the ranking store. Defaults to an in-memory RankingStore.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithEstimatorOptions sets options passed to every estimator the service builds.
func WithEstimatorOptions(opts ...whr.Option) Option {
	return func(s *Service) {
		s.estimator = append(s.estimator, opts...)
	}
}

// WithTopN sets how many climbers a Report carries. Zero disables it.
func WithTopN(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.topN = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		topN:   10,
		logger: logger.Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewRankingStore()
	}
	return s
}

// Store returns the ranking store fed by Estimate.
func (s *Service) Store() repository.Store { return s.store }

// Run loads dataDir, estimates ratings and, when outDir is not empty, writes
// the estimates there.
func (s *Service) Run(ctx context.Context, dataDir, outDir string) (*Report, error) {
	var ds *csvio.Dataset
	err := s.stage(ctx, StageLoad, func() error {
		var err error
		ds, err = csvio.ReadDir(dataDir)
		return err
	})
	if err != nil {
		return nil, err
	}

	report, err := s.Estimate(ctx, ds)
	if err != nil {
		return nil, err
	}

	if outDir != "" {
		if err := s.stage(ctx, StageWrite, func() error {
			return csvio.WriteDir(outDir, ds, report.Estimates)
		}); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// Estimate runs the estimator on ds and ranks each climber by their latest
// page. A run that stops at the iteration cap is returned with
// Result.Converged false.
func (s *Service) Estimate(ctx context.Context, ds *csvio.Dataset) (*Report, error) {
	report := &Report{}

	err := s.stage(ctx, StageEstimate, func() error {
		opts := append([]whr.Option{whr.WithLogger(s.logger.Named("whr"))}, s.estimator...)
		est, err := whr.New(ds.Input, opts...)
		if err != nil {
			return err
		}
		report.Result, err = est.Run(ctx)
		if err != nil {
			return err
		}
		report.Estimates = csvio.Estimates{
			RouteRatings:   est.RouteRatings(),
			RouteVariances: est.RouteVariances(),
			PageRatings:    est.PageRatings(),
			PageVariances:  est.PageVariances(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.stage(ctx, StageRank, func() error {
		for c, cs := range ds.Input.PagesClimberSlices {
			p := cs.End - 1
			_, err := s.store.Update(ctx, repository.Standing{
				ClimberID: ds.Climbers[c],
				Rating:    report.Estimates.PageRatings[p],
				Variance:  report.Estimates.PageVariances[p],
				Timestamp: ds.PageTimestamps[p],
			})
			if err != nil {
				return err
			}
		}
		if s.topN == 0 {
			return nil
		}
		report.Top, err = s.store.TopN(ctx, s.topN)
		return err
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// stage times fn, records it and wraps its error with the stage name.
func (s *Service) stage(ctx context.Context, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	metrics.RecordStageDuration(name, float64(elapsed.Microseconds())/1000)

	if err != nil {
		s.logger.Error(ctx, "stage failed", logger.String("stage", name), logger.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	}
	s.logger.Info(ctx, "stage finished", logger.String("stage", name), logger.Duration("elapsed", elapsed))
	return nil
}
