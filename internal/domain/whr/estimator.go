// Package whr estimates climber and route ratings with the Whole-History
// Rating method: a joint maximum-a-posteriori estimate of every route's
// difficulty and every climber's rating over time.
//
// Ratings are natural log-strengths. Each ascent is a Bradley-Terry
// comparison between a climber page and a route. Routes carry a log-normal
// prior around their nominal grade; a climber's consecutive pages are chained
// by a log-normal transition prior whose variance grows with the gap between
// them, and the first page carries a climber prior.
//
// The estimator alternates two Newton-Raphson passes. Routes are independent
// of each other. A climber's pages are coupled by the chain prior, so each
// climber's Hessian is tridiagonal and is solved by elimination as a whole.
package whr

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/okian/climbratings/internal/domain/ascents"
	"github.com/okian/climbratings/internal/domain/bradleyterry"
	"github.com/okian/climbratings/internal/domain/lognormal"
	"github.com/okian/climbratings/pkg/logger"
	"github.com/okian/climbratings/pkg/metrics"
	"github.com/okian/climbratings/pkg/parallel"
)

// Input holds the ascent history in the array form the estimator consumes.
type Input struct {
	// AscentsRoute is the route index of each ascent.
	AscentsRoute []int
	// AscentsClean is 1 for a clean ascent and 0 otherwise.
	AscentsClean []float64
	// AscentsPageSlices groups ascents by page; ascents must be ordered by page.
	AscentsPageSlices []ascents.Slice
	// PagesClimberSlices groups pages by climber; pages must be ordered by
	// climber and by time within a climber.
	PagesClimberSlices []ascents.Slice
	// RoutesGrade is each route's nominal grade as a strength (gamma).
	RoutesGrade []float64
	// PagesGap is the time since the climber's previous page. It is ignored
	// for a climber's first page and must be positive otherwise.
	PagesGap []float64
}

// Estimator owns the rating state of one estimation problem. It is not safe
// for concurrent use; passes parallelize internally.
type Estimator struct {
	settings

	routeRatings []float64
	pageRatings  []float64
	routeVar     []float64
	pageVar      []float64

	// next* stage a pass; they are committed only when every subject succeeds
	nextRatings []float64
	nextVar     []float64

	routePrior   lognormal.Distribution
	routeAscents ascents.Ascents
	pageAscents  ascents.Ascents
	climbers     []ascents.Slice
	gapVariance  []float64
	clean        []float64

	// scratch, reused across passes
	routeGamma []float64
	pageGamma  []float64
	gammaBuf   []float64
	advBuf     []float64
	delta      []float64
	work       chainWork
}

// New validates input and returns an Estimator with every page at rating 0
// and every route at the rating chosen by the initialization option.
func New(in Input, opts ...Option) (*Estimator, error) {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.Named("whr")
	}
	if err := s.validate(); err != nil {
		return nil, err
	}

	numRoutes := len(in.RoutesGrade)
	numPages := len(in.AscentsPageSlices)

	if len(in.PagesGap) != numPages {
		return nil, errors.Wrapf(ErrPrecondition, "%d page gaps for %d pages", len(in.PagesGap), numPages)
	}
	if err := ascents.ValidateCover(in.PagesClimberSlices, numPages); err != nil {
		return nil, precondition(PassInit, "climber", -1, errors.WithMessage(err, "page climber slices"))
	}

	mu := make([]float64, numRoutes)
	for r, g := range in.RoutesGrade {
		if !(g > 0) || math.IsInf(g, 1) {
			return nil, precondition(PassInit, "route", r, errors.Errorf("grade %g is not a positive strength", g))
		}
		mu[r] = math.Log(g)
	}
	routePrior, err := lognormal.New(mu, []float64{s.routeVariance})
	if err != nil {
		return nil, precondition(PassInit, "route", -1, errors.WithMessage(err, "route prior"))
	}

	gapVariance := make([]float64, numPages)
	for c, cs := range in.PagesClimberSlices {
		if cs.Len() == 0 {
			return nil, precondition(PassInit, "climber", c, errors.New("climber has no pages"))
		}
		for p := cs.Start + 1; p < cs.End; p++ {
			v := in.PagesGap[p] * s.wienerVariance
			if !(v > 0) || math.IsInf(v, 1) {
				return nil, precondition(PassInit, "page", p, errors.Errorf("gap %g gives transition variance %g", in.PagesGap[p], v))
			}
			gapVariance[p] = v
		}
	}

	pageAscents, err := ascents.MakePageAscents(in.AscentsClean, in.AscentsPageSlices, in.AscentsRoute, numRoutes)
	if err != nil {
		return nil, precondition(PassInit, "page", -1, errors.WithMessage(err, "page ascents"))
	}
	routeAscents, err := ascents.MakeRouteAscents(in.AscentsClean, in.AscentsPageSlices, in.AscentsRoute, numRoutes)
	if err != nil {
		return nil, precondition(PassInit, "route", -1, errors.WithMessage(err, "route ascents"))
	}

	climbers := make([]ascents.Slice, len(in.PagesClimberSlices))
	copy(climbers, in.PagesClimberSlices)

	numAscents := len(in.AscentsRoute)
	e := &Estimator{
		settings:     s,
		routeRatings: make([]float64, numRoutes),
		pageRatings:  make([]float64, numPages),
		routeVar:     make([]float64, numRoutes),
		pageVar:      make([]float64, numPages),
		routePrior:   routePrior,
		routeAscents: routeAscents,
		pageAscents:  pageAscents,
		climbers:     climbers,
		gapVariance:  gapVariance,
		clean:        clone(in.AscentsClean),
		routeGamma:   make([]float64, numRoutes),
		pageGamma:    make([]float64, numPages),
		gammaBuf:     make([]float64, numAscents),
		advBuf:       make([]float64, numAscents),
		nextRatings:  make([]float64, max(numRoutes, numPages)),
		nextVar:      make([]float64, max(numRoutes, numPages)),
		work:         newChainWork(numPages),
	}
	if s.initialization == InitFromGrade {
		copy(e.routeRatings, mu)
	}
	for r := range e.routeVar {
		e.routeVar[r] = s.routeVariance
	}
	for p := range e.pageVar {
		e.pageVar[p] = math.NaN()
	}
	for _, cs := range climbers {
		e.pageVar[cs.Start] = s.climberVariance
	}

	metrics.UpdateSubjects("routes", numRoutes)
	metrics.UpdateSubjects("pages", numPages)
	metrics.UpdateSubjects("climbers", len(climbers))
	metrics.UpdateSubjects("ascents", numAscents)

	return e, nil
}

func (s settings) validate() error {
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"route variance", s.routeVariance},
		{"climber variance", s.climberVariance},
		{"wiener variance", s.wienerVariance},
		{"tolerance", s.tolerance},
	} {
		if !(v.value > 0) || math.IsInf(v.value, 1) {
			return errors.Wrapf(ErrPrecondition, "%s must be positive and finite, got %g", v.name, v.value)
		}
	}
	if math.IsNaN(s.climberMean) || math.IsInf(s.climberMean, 0) {
		return errors.Wrapf(ErrPrecondition, "climber mean must be finite, got %g", s.climberMean)
	}
	if s.maxIterations < 1 {
		return errors.Wrapf(ErrPrecondition, "max iterations must be at least 1, got %d", s.maxIterations)
	}
	return nil
}

// RouteRatings returns a copy of the current route ratings.
func (e *Estimator) RouteRatings() []float64 { return clone(e.routeRatings) }

// PageRatings returns a copy of the current page ratings.
func (e *Estimator) PageRatings() []float64 { return clone(e.pageRatings) }

// RouteVariances returns the marginal variance of each route rating as of
// the last route pass.
func (e *Estimator) RouteVariances() []float64 { return clone(e.routeVar) }

// PageVariances returns the marginal variance of each page rating as of the
// last page pass. Before the first page pass only first pages carry the
// climber prior variance; other pages are NaN.
func (e *Estimator) PageVariances() []float64 { return clone(e.pageVar) }

// Climbers returns each climber's page range.
func (e *Estimator) Climbers() []ascents.Slice {
	out := make([]ascents.Slice, len(e.climbers))
	copy(out, e.climbers)
	return out
}

// UpdateRouteRatings performs one Newton-Raphson step for every route and
// returns the new route ratings. On error the ratings and variances are left
// as they were.
func (e *Estimator) UpdateRouteRatings() ([]float64, error) {
	if _, err := e.updateRoutes(); err != nil {
		return nil, err
	}
	return e.RouteRatings(), nil
}

// UpdatePageRatings performs one Newton-Raphson step for every climber's page
// chain and returns the new page ratings. On error the ratings and variances
// are left as they were.
func (e *Estimator) UpdatePageRatings() ([]float64, error) {
	if _, err := e.updatePages(); err != nil {
		return nil, err
	}
	return e.PageRatings(), nil
}

// updateRoutes runs the route pass and returns the largest rating change.
func (e *Estimator) updateRoutes() (float64, error) {
	start := time.Now()
	defer func() {
		metrics.RecordPassDuration(PassRoute, float64(time.Since(start).Microseconds())/1000)
	}()

	exp(e.routeGamma, e.routeRatings)
	exp(e.pageGamma, e.pageRatings)

	ra := e.routeAscents
	ascents.ExpandInto(e.gammaBuf, e.routeGamma, ra.Slices)
	for i, p := range ra.Adversary {
		e.advBuf[i] = e.pageGamma[p]
	}

	d1, d2, err := bradleyterry.Derivatives(ra.Slices, ra.Wins, e.gammaBuf, e.advBuf)
	if err != nil {
		metrics.RecordNumericalFailure(PassRoute)
		return 0, kernelError(PassRoute, "route", err)
	}
	pd1, pd2, err := e.routePrior.DerivativesAt(e.routeRatings)
	if err != nil {
		return 0, precondition(PassRoute, "route", -1, err)
	}

	n := len(e.routeRatings)
	next, vars := e.nextRatings[:n], e.nextVar[:n]
	delta := e.deltaBuf(n)
	err = parallel.For(n, e.workers, func(lo, hi int) error {
		for r := lo; r < hi; r++ {
			g := d1[r] + pd1[r]
			h := d2[r] + pd2[r]
			step := g / h
			y := e.routeRatings[r] - step
			if !isFinite(step) || !isFinite(y) || !(h < 0) {
				return numerical(PassRoute, "route", r, errors.Errorf("d1 %g, d2 %g", g, h))
			}
			next[r] = y
			vars[r] = -1 / h
			delta[r] = step
		}
		return nil
	})
	if err != nil {
		metrics.RecordNumericalFailure(PassRoute)
		return 0, err
	}
	copy(e.routeRatings, next)
	copy(e.routeVar, vars)
	return floats.Norm(delta, math.Inf(1)), nil
}

// updatePages runs the page pass and returns the largest rating change.
func (e *Estimator) updatePages() (float64, error) {
	start := time.Now()
	defer func() {
		metrics.RecordPassDuration(PassPage, float64(time.Since(start).Microseconds())/1000)
	}()

	exp(e.routeGamma, e.routeRatings)
	exp(e.pageGamma, e.pageRatings)

	pa := e.pageAscents
	ascents.ExpandInto(e.gammaBuf, e.pageGamma, pa.Slices)
	for i, r := range pa.Adversary {
		e.advBuf[i] = e.routeGamma[r]
	}

	d1, d2, err := bradleyterry.Derivatives(pa.Slices, pa.Wins, e.gammaBuf, e.advBuf)
	if err != nil {
		metrics.RecordNumericalFailure(PassPage)
		return 0, kernelError(PassPage, "page", err)
	}

	n := len(e.pageRatings)
	next, vars := e.nextRatings[:n], e.nextVar[:n]
	delta := e.deltaBuf(n)
	err = parallel.For(len(e.climbers), e.workers, func(lo, hi int) error {
		for c := lo; c < hi; c++ {
			if err := e.updateClimber(c, d1, d2, next, vars, delta); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		metrics.RecordNumericalFailure(PassPage)
		return 0, err
	}
	copy(e.pageRatings, next)
	copy(e.pageVar, vars)
	return floats.Norm(delta, math.Inf(1)), nil
}

// updateClimber takes one Newton step over climber c's page chain and stages
// the result in next and vars. d1 and d2 are the Bradley-Terry derivatives of
// every page.
func (e *Estimator) updateClimber(c int, d1, d2, next, vars, delta []float64) error {
	cs := e.climbers[c]
	ch := e.work.chain(cs)
	r := e.pageRatings[cs.Start:cs.End]

	copy(ch.grad, d1[cs.Start:cs.End])
	copy(ch.diag, d2[cs.Start:cs.End])
	for i := range ch.off {
		ch.off[i] = 0
	}

	g, h, err := lognormal.DerivativeAt(e.climberMean, e.climberVariance, r[0])
	if err != nil {
		return precondition(PassPage, "climber", c, err)
	}
	ch.grad[0] += g
	ch.diag[0] += h

	for i := 1; i < len(r); i++ {
		v := e.gapVariance[cs.Start+i]
		// Transition prior of page i given page i-1, seen from both ends.
		g, h, err := lognormal.DerivativeAt(r[i-1], v, r[i])
		if err != nil {
			return precondition(PassPage, "page", cs.Start+i, err)
		}
		ch.grad[i] += g
		ch.diag[i] += h
		ch.grad[i-1] -= g
		ch.diag[i-1] += h
		ch.off[i-1] = -h
	}

	if err := ch.solve(); err != nil {
		return numerical(PassPage, "climber", c, err)
	}
	if err := ch.variances(vars[cs.Start:cs.End]); err != nil {
		return numerical(PassPage, "climber", c, err)
	}

	for i, step := range ch.grad {
		y := r[i] - step
		if !isFinite(y) {
			return numerical(PassPage, "page", cs.Start+i, errors.Errorf("step %g from rating %g", step, r[i]))
		}
		next[cs.Start+i] = y
		delta[cs.Start+i] = step
	}
	return nil
}

func (e *Estimator) deltaBuf(n int) []float64 {
	if cap(e.delta) < n {
		e.delta = make([]float64, n)
	}
	e.delta = e.delta[:n]
	for i := range e.delta {
		e.delta[i] = 0
	}
	return e.delta
}

func exp(dst, ratings []float64) {
	for i, r := range ratings {
		dst[i] = math.Exp(r)
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clone(s []float64) []float64 {
	out := make([]float64, len(s))
	copy(out, s)
	return out
}
