// Package synthetic draws ascent histories from known ratings and measures
// how well an estimate recovers them.
package synthetic

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/okian/climbratings/internal/adapters/csvio"
	"github.com/okian/climbratings/internal/domain/ascents"
	"github.com/okian/climbratings/internal/domain/bradleyterry"
	"github.com/okian/climbratings/pkg/logger"
	"github.com/okian/climbratings/pkg/parallel"
)

// climberHistory is one climber's pages and ascents before concatenation.
type climberHistory struct {
	timestamps []int64
	ratings    []float64
	gaps       []float64
	routes     []int
	clean      []float64
	pageLens   []int
}

// Generate draws a history from cfg. The same cfg always yields the same
// history regardless of Workers.
func Generate(ctx context.Context, cfg Config) (*csvio.Dataset, *Truth, error) {
	if err := validate(cfg); err != nil {
		return nil, nil, err
	}
	logger.Get().Debug(ctx, "generating synthetic history",
		logger.Int("climbers", cfg.Climbers),
		logger.Int("routes", cfg.Routes),
		logger.Int("seed", int(cfg.Seed)),
	)

	ds := &csvio.Dataset{}
	truth := &Truth{RouteRatings: make([]float64, cfg.Routes)}

	rng := rand.New(rand.NewSource(cfg.Seed))
	ds.RouteNames = make([]string, cfg.Routes)
	ds.Input.RoutesGrade = make([]float64, cfg.Routes)
	for r := range truth.RouteRatings {
		rating := cfg.RouteSpread * (2*rng.Float64() - 1)
		truth.RouteRatings[r] = rating
		ds.RouteNames[r] = fmt.Sprintf("route-%04d", r)
		ds.Input.RoutesGrade[r] = math.Exp(rating + cfg.GradeNoise*rng.NormFloat64())
	}

	// Each climber has its own source so chunking does not change the draw.
	histories := make([]climberHistory, cfg.Climbers)
	err := parallel.For(cfg.Climbers, cfg.Workers, func(lo, hi int) error {
		for c := lo; c < hi; c++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			src := rand.New(rand.NewSource(cfg.Seed + int64(c) + 1))
			histories[c] = drawClimber(src, cfg, truth.RouteRatings)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("generate climbers: %w", err)
	}

	in := &ds.Input
	for c, h := range histories {
		id := fmt.Sprintf("climber-%04d", c)
		first := len(in.PagesGap)
		ds.Climbers = append(ds.Climbers, id)
		in.PagesClimberSlices = append(in.PagesClimberSlices, ascents.Slice{Start: first, End: first + len(h.pageLens)})

		offset := 0
		for p, n := range h.pageLens {
			start := len(in.AscentsRoute)
			in.AscentsRoute = append(in.AscentsRoute, h.routes[offset:offset+n]...)
			in.AscentsClean = append(in.AscentsClean, h.clean[offset:offset+n]...)
			in.AscentsPageSlices = append(in.AscentsPageSlices, ascents.Slice{Start: start, End: start + n})
			offset += n

			in.PagesGap = append(in.PagesGap, h.gaps[p])
			ds.PageClimbers = append(ds.PageClimbers, id)
			ds.PageTimestamps = append(ds.PageTimestamps, h.timestamps[p])
		}
		truth.PageRatings = append(truth.PageRatings, h.ratings...)
	}
	return ds, truth, nil
}

func drawClimber(rng *rand.Rand, cfg Config, routeRatings []float64) climberHistory {
	sessions := 1 + rng.Intn(cfg.MaxSessions)
	h := climberHistory{}

	rating := cfg.ClimberSpread * rng.NormFloat64()
	// Stagger first sessions over one gap.
	ts := cfg.Start.Unix() + int64(rng.Float64()*cfg.SessionGap.Seconds())
	for s := 0; s < sessions; s++ {
		gap := 0.0
		if s > 0 {
			// At least an hour so transition variances stay positive.
			step := int64(time.Hour.Seconds() + rng.ExpFloat64()*cfg.SessionGap.Seconds())
			ts += step
			gap = float64(step)
			rating += cfg.Drift * rng.NormFloat64()
		}
		h.timestamps = append(h.timestamps, ts)
		h.ratings = append(h.ratings, rating)
		h.gaps = append(h.gaps, gap)
		h.pageLens = append(h.pageLens, cfg.AscentsPerSession)

		for a := 0; a < cfg.AscentsPerSession; a++ {
			r := rng.Intn(len(routeRatings))
			clean := 0.0
			if rng.Float64() < bradleyterry.WinProbability(rating, routeRatings[r]) {
				clean = 1
			}
			h.routes = append(h.routes, r)
			h.clean = append(h.clean, clean)
		}
	}
	return h
}

func validate(cfg Config) error {
	switch {
	case cfg.Climbers < 1:
		return fmt.Errorf("%w: climbers %d", ErrInvalidConfig, cfg.Climbers)
	case cfg.Routes < 1:
		return fmt.Errorf("%w: routes %d", ErrInvalidConfig, cfg.Routes)
	case cfg.MaxSessions < 1:
		return fmt.Errorf("%w: max sessions %d", ErrInvalidConfig, cfg.MaxSessions)
	case cfg.AscentsPerSession < 0:
		return fmt.Errorf("%w: ascents per session %d", ErrInvalidConfig, cfg.AscentsPerSession)
	case cfg.SessionGap <= 0:
		return fmt.Errorf("%w: session gap %s", ErrInvalidConfig, cfg.SessionGap)
	case cfg.RouteSpread < 0 || cfg.GradeNoise < 0 || cfg.ClimberSpread < 0 || cfg.Drift < 0:
		return fmt.Errorf("%w: spreads must not be negative", ErrInvalidConfig)
	}
	return nil
}
