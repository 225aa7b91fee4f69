package whr

import (
	"runtime"

	"github.com/okian/climbratings/pkg/logger"
)

// Default estimator settings.
const (
	DefaultRouteVariance   = 1.0
	DefaultClimberMean     = 0.0
	DefaultClimberVariance = 1.0
	// DefaultWienerVariance is the rating variance accrued per second of gap
	// between pages: a variance of 1 per year.
	DefaultWienerVariance = 1.0 / 86400.0 / 364.0
	DefaultTolerance      = 1e-6
	DefaultMaxIterations  = 256
)

// Initialization selects the starting route ratings.
type Initialization int

const (
	// InitNeutral starts every route at rating 0 (gamma 1).
	InitNeutral Initialization = iota
	// InitFromGrade starts every route at the log of its nominal grade.
	InitFromGrade
)

func (i Initialization) String() string {
	switch i {
	case InitNeutral:
		return "neutral"
	case InitFromGrade:
		return "grade"
	default:
		return "unknown"
	}
}

// ParseInitialization maps "neutral" or "grade" to an Initialization.
func ParseInitialization(s string) (Initialization, bool) {
	switch s {
	case "", "neutral":
		return InitNeutral, true
	case "grade":
		return InitFromGrade, true
	default:
		return InitNeutral, false
	}
}

type settings struct {
	routeVariance   float64
	climberMean     float64
	climberVariance float64
	wienerVariance  float64
	tolerance       float64
	maxIterations   int
	workers         int
	initialization  Initialization
	logger          logger.Logger
}

func defaultSettings() settings {
	return settings{
		routeVariance:   DefaultRouteVariance,
		climberMean:     DefaultClimberMean,
		climberVariance: DefaultClimberVariance,
		wienerVariance:  DefaultWienerVariance,
		tolerance:       DefaultTolerance,
		maxIterations:   DefaultMaxIterations,
		workers:         runtime.NumCPU(),
		initialization:  InitNeutral,
	}
}

// Option applies a configuration option to the Estimator. Variances and
// convergence settings are validated by New.
type Option func(*settings)

// WithRouteVariance sets the variance of each route's prior around its grade.
func WithRouteVariance(v float64) Option {
	return func(s *settings) { s.routeVariance = v }
}

// WithClimberPrior sets the prior on each climber's first page.
func WithClimberPrior(mean, variance float64) Option {
	return func(s *settings) {
		s.climberMean = mean
		s.climberVariance = variance
	}
}

// WithWienerVariance sets the rating variance accrued per unit of gap.
func WithWienerVariance(v float64) Option {
	return func(s *settings) { s.wienerVariance = v }
}

// WithTolerance sets the convergence threshold on the largest rating change.
func WithTolerance(tol float64) Option {
	return func(s *settings) { s.tolerance = tol }
}

// WithMaxIterations caps the iterations Run performs.
func WithMaxIterations(n int) Option {
	return func(s *settings) { s.maxIterations = n }
}

// WithWorkers sets how many goroutines share a pass. Values below 1 mean one.
func WithWorkers(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithInitialization selects the starting route ratings.
func WithInitialization(i Initialization) Option {
	return func(s *settings) { s.initialization = i }
}

// WithLogger sets a custom logger for the estimator.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
