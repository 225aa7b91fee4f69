package whr

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/okian/climbratings/pkg/logger"
	"github.com/okian/climbratings/pkg/metrics"
)

// Result summarizes a Run.
type Result struct {
	RunID      string
	Iterations int
	// MaxDelta is the largest absolute rating change in the final iteration.
	MaxDelta float64
	// Converged reports whether MaxDelta fell below the tolerance before the
	// iteration cap. A run that hits the cap is not an error; the caller
	// decides whether to accept the last iterate.
	Converged    bool
	LogPosterior float64
	Elapsed      time.Duration
}

// Run alternates page and route passes until the largest rating change in an
// iteration is below the tolerance or the iteration cap is reached. The
// context is checked between iterations.
func (e *Estimator) Run(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString(), MaxDelta: math.Inf(1)}
	log := e.logger.With(logger.String("run_id", res.RunID))
	start := time.Now()

	log.Info(ctx, "estimation started",
		logger.Int("routes", len(e.routeRatings)),
		logger.Int("pages", len(e.pageRatings)),
		logger.Int("climbers", len(e.climbers)),
		logger.Int("ascents", len(e.clean)),
		logger.Int("max_iterations", e.maxIterations),
		logger.Float64("tolerance", e.tolerance),
	)

	for res.Iterations < e.maxIterations {
		if err := ctx.Err(); err != nil {
			metrics.RecordRun(metrics.StatusFailed)
			return res, errors.Wrapf(err, "estimation cancelled after %d iterations", res.Iterations)
		}

		pageDelta, err := e.updatePages()
		if err != nil {
			return res, e.fail(ctx, log, res, err)
		}
		routeDelta, err := e.updateRoutes()
		if err != nil {
			return res, e.fail(ctx, log, res, err)
		}

		res.Iterations++
		res.MaxDelta = math.Max(pageDelta, routeDelta)
		metrics.RecordIteration()
		metrics.UpdateMaxRatingDelta(res.MaxDelta)
		log.Debug(ctx, "iteration finished",
			logger.Int("iteration", res.Iterations),
			logger.Float64("page_delta", pageDelta),
			logger.Float64("route_delta", routeDelta),
		)

		if res.MaxDelta < e.tolerance {
			res.Converged = true
			break
		}
	}

	res.Elapsed = time.Since(start)
	res.LogPosterior = e.LogPosterior()
	metrics.UpdateLogPosterior(res.LogPosterior)

	fields := []logger.Field{
		logger.Int("iterations", res.Iterations),
		logger.Float64("max_delta", res.MaxDelta),
		logger.Float64("log_posterior", res.LogPosterior),
		logger.Duration("elapsed", res.Elapsed),
	}
	if res.Converged {
		metrics.RecordRun(metrics.StatusConverged)
		log.Info(ctx, "estimation converged", fields...)
	} else {
		metrics.RecordRun(metrics.StatusNotConverged)
		log.Warn(ctx, "estimation reached the iteration cap without converging", fields...)
	}
	return res, nil
}

func (e *Estimator) fail(ctx context.Context, log logger.Logger, res Result, err error) error {
	metrics.RecordRun(metrics.StatusFailed)
	log.Error(ctx, "estimation failed", logger.Int("iteration", res.Iterations+1), logger.Error(err))
	return err
}
