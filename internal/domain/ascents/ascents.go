// Package ascents groups raw ascent records by subject (route or climber
// page) into the contiguous slices consumed by the Bradley-Terry kernel.
//
// A subject's adversaries are stored by index rather than by strength: the
// opposing gammas change every iteration, so callers look them up from the
// current ratings immediately before each pass.
package ascents

import "github.com/pkg/errors"

// Ascents is the per-subject aggregate of a set of ascents.
type Ascents struct {
	// Wins holds the win count of each subject.
	Wins []float64
	// Slices holds each subject's range within the ascent order.
	Slices []Slice
	// Adversary holds, per ascent in subject order, the index of the opposing
	// subject.
	Adversary []int
	// Order maps a position in subject order back to the raw ascent index.
	Order []int
}

// Len returns the number of ascents aggregated.
func (a Ascents) Len() int { return len(a.Adversary) }

// Subjects returns the number of subjects.
func (a Ascents) Subjects() int { return len(a.Slices) }

// MakePageAscents aggregates ascents by climber page. Raw ascents must already
// be grouped by page, as described by pageSlices. A page wins when the ascent
// is clean; its adversary is the route.
func MakePageAscents(clean []float64, pageSlices []Slice, routes []int, numRoutes int) (Ascents, error) {
	if err := validateRaw(clean, pageSlices, routes, numRoutes); err != nil {
		return Ascents{}, err
	}

	wins := make([]float64, len(pageSlices))
	for p, s := range pageSlices {
		for i := s.Start; i < s.End; i++ {
			wins[p] += clean[i]
		}
	}

	adversary := make([]int, len(routes))
	copy(adversary, routes)
	order := make([]int, len(routes))
	for i := range order {
		order[i] = i
	}

	slices := make([]Slice, len(pageSlices))
	copy(slices, pageSlices)

	return Ascents{Wins: wins, Slices: slices, Adversary: adversary, Order: order}, nil
}

// MakeRouteAscents aggregates ascents by route. Ascents are stably regrouped
// so each route's ascents are contiguous, and every route in [0, numRoutes)
// gets a slice, possibly empty. A route wins when the ascent is not clean;
// its adversary is the climber page.
func MakeRouteAscents(clean []float64, pageSlices []Slice, routes []int, numRoutes int) (Ascents, error) {
	if err := validateRaw(clean, pageSlices, routes, numRoutes); err != nil {
		return Ascents{}, err
	}

	pages := make([]int, len(routes))
	for p, s := range pageSlices {
		for i := s.Start; i < s.End; i++ {
			pages[i] = p
		}
	}

	// Counting sort keeps the original relative order within each route.
	counts := make([]int, numRoutes)
	for _, r := range routes {
		counts[r]++
	}
	slices := make([]Slice, numRoutes)
	offset := 0
	for r, c := range counts {
		slices[r] = Slice{Start: offset, End: offset + c}
		offset += c
	}

	next := make([]int, numRoutes)
	for r := range next {
		next[r] = slices[r].Start
	}
	order := make([]int, len(routes))
	adversary := make([]int, len(routes))
	wins := make([]float64, numRoutes)
	for i, r := range routes {
		pos := next[r]
		next[r]++
		order[pos] = i
		adversary[pos] = pages[i]
		wins[r] += 1 - clean[i]
	}

	return Ascents{Wins: wins, Slices: slices, Adversary: adversary, Order: order}, nil
}

func validateRaw(clean []float64, pageSlices []Slice, routes []int, numRoutes int) error {
	if len(clean) != len(routes) {
		return errors.Wrapf(ErrLengthMismatch, "%d outcomes for %d ascent routes", len(clean), len(routes))
	}
	if err := ValidateCover(pageSlices, len(routes)); err != nil {
		return errors.Wrap(err, "ascent page slices")
	}
	for i, r := range routes {
		if r < 0 || r >= numRoutes {
			return errors.Wrapf(ErrInvalidIndex, "ascent %d: route %d not in [0, %d)", i, r, numRoutes)
		}
	}
	for i, c := range clean {
		if !(c >= 0 && c <= 1) {
			return errors.Wrapf(ErrInvalidOutcome, "ascent %d: clean = %g", i, c)
		}
	}
	return nil
}
