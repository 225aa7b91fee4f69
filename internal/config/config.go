// Package config defines the estimator's configuration and how it is loaded.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and the environment.
// - Errors returned to callers wrap this package's sentinels.
package config

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"github.com/okian/climbratings/internal/domain/whr"
	"github.com/okian/climbratings/pkg/metrics"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"loglevel"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// MaxIterations caps the estimator's page/route iterations.
	MaxIterations int `koanf:"max_iterations" validate:"min=1"`

	// Tolerance stops iterating once no rating moves by this much or more.
	Tolerance float64 `koanf:"tolerance" validate:"gt=0"`

	// RouteVariance is the variance of each route's prior around its grade.
	RouteVariance float64 `koanf:"route_variance" validate:"gt=0"`

	// ClimberMean is the mean of the prior on a climber's first page.
	ClimberMean float64 `koanf:"climber_mean" validate:"finite"`

	// ClimberVariance is the variance of the prior on a climber's first page.
	ClimberVariance float64 `koanf:"climber_variance" validate:"gt=0"`

	// WienerVariance is the rating variance accrued per second between pages.
	WienerVariance float64 `koanf:"wiener_variance" validate:"gt=0"`

	// Workers sets how many goroutines share each pass.
	Workers int `koanf:"workers" validate:"min=1"`

	// InitialRouteRatings is "neutral" (every route at 0) or "grade".
	InitialRouteRatings string `koanf:"initial_route_ratings" validate:"initialization"`

	// MetricsFile, when set, receives a Prometheus text dump after a run.
	MetricsFile string `koanf:"metrics_file"`

	// MetricsNamespace and MetricsSubsystem prefix every metric name.
	MetricsNamespace string `koanf:"metrics_namespace" validate:"metricname"`
	MetricsSubsystem string `koanf:"metrics_subsystem" validate:"metricname"`

	// MetricsLabels are constant labels on every metric, as "name=value,name=value".
	MetricsLabels string `koanf:"metrics_labels" validate:"metriclabels"`

	// MetricsEnabled turns metric recording on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// TopN is how many climbers the CLI prints.
	TopN int `koanf:"top_n" validate:"min=0"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		MaxIterations:       whr.DefaultMaxIterations,
		Tolerance:           whr.DefaultTolerance,
		RouteVariance:       whr.DefaultRouteVariance,
		ClimberMean:         whr.DefaultClimberMean,
		ClimberVariance:     whr.DefaultClimberVariance,
		WienerVariance:      whr.DefaultWienerVariance,
		Workers:             runtime.NumCPU(),
		InitialRouteRatings: whr.InitNeutral.String(),
		MetricsNamespace:    "climbratings",
		MetricsSubsystem:    "whr",
		MetricsEnabled:      true,
		TopN:                10,
	}
}

// Initialization returns the estimator initialization named by
// InitialRouteRatings. Unknown names map to neutral; Validate rejects them.
func (c *Config) Initialization() whr.Initialization {
	i, _ := whr.ParseInitialization(c.InitialRouteRatings)
	return i
}

// EstimatorOptions translates the config into estimator options.
func (c *Config) EstimatorOptions() []whr.Option {
	return []whr.Option{
		whr.WithMaxIterations(c.MaxIterations),
		whr.WithTolerance(c.Tolerance),
		whr.WithRouteVariance(c.RouteVariance),
		whr.WithClimberPrior(c.ClimberMean, c.ClimberVariance),
		whr.WithWienerVariance(c.WienerVariance),
		whr.WithWorkers(c.Workers),
		whr.WithInitialization(c.Initialization()),
	}
}

// MetricsOptions translates the config into metrics manager options.
func (c *Config) MetricsOptions() []metrics.Option {
	return []metrics.Option{
		metrics.WithNamespace(c.MetricsNamespace),
		metrics.WithSubsystem(c.MetricsSubsystem),
		metrics.WithConstLabels(c.ConstLabels()),
		metrics.WithMetricsEnabled(c.MetricsEnabled),
	}
}

// ConstLabels parses MetricsLabels. Validate rejects malformed pairs.
func (c *Config) ConstLabels() map[string]string {
	labels, _ := parseLabels(c.MetricsLabels)
	return labels
}

var metricNameRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func parseLabels(s string) (map[string]string, error) {
	labels := make(map[string]string)
	if strings.TrimSpace(s) == "" {
		return labels, nil
	}
	for _, pair := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		// names starting with __ are reserved by Prometheus
		if !ok || !metricNameRE.MatchString(name) || strings.HasPrefix(name, "__") {
			return nil, fmt.Errorf("label %q: want name=value", pair)
		}
		labels[name] = value
	}
	return labels, nil
}
