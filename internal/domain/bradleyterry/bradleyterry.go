// Package bradleyterry computes derivatives of the Bradley-Terry
// log-likelihood with respect to a subject's log-strength.
//
// For a subject with strength gamma against an adversary with strength
// adversary_gamma the win probability is
//
//	p = gamma / (gamma + adversary_gamma)
//
// and for a subject with w wins over a set of ascents
//
//	d1 = w - sum(p)
//	d2 = -sum(p * (1 - p))
//
// Sums over a subject's slice are read off prefix sums, so one pass over the
// ascents serves every slice.
package bradleyterry

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/okian/climbratings/internal/domain/ascents"
)

// WinProbability returns the probability that a subject of the given rating
// beats an adversary of the given rating. Both arguments are log-strengths.
func WinProbability(rating, adversaryRating float64) float64 {
	return 1 / (1 + math.Exp(adversaryRating-rating))
}

// SummationTerms returns the running sums of p and of p*(1-p) for each
// paired element of gamma and adversaryGamma. Index 0 includes the first
// element.
func SummationTerms(gamma, adversaryGamma []float64) (p, pq []float64, err error) {
	if len(gamma) != len(adversaryGamma) {
		return nil, nil, errors.Wrapf(ErrInvalidInput, "%d gammas paired with %d adversary gammas", len(gamma), len(adversaryGamma))
	}
	p, pq, bad := summationTerms(gamma, adversaryGamma)
	if bad >= 0 {
		return nil, nil, errors.Wrapf(ErrNonFinite, "ascent %d: gamma %g against adversary %g", bad, gamma[bad], adversaryGamma[bad])
	}
	return p, pq, nil
}

// summationTerms returns the running sums, or the index of the first pair
// whose probability is undefined.
func summationTerms(gamma, adversaryGamma []float64) (p, pq []float64, bad int) {
	p = make([]float64, len(gamma))
	pq = make([]float64, len(gamma))
	for i, g := range gamma {
		denom := g + adversaryGamma[i]
		if !(denom > 0) || math.IsInf(denom, 0) {
			return nil, nil, i
		}
		pi := g / denom
		p[i] = pi
		pq[i] = pi * (1 - pi)
	}
	floats.CumSum(p, p)
	floats.CumSum(pq, pq)
	return p, pq, -1
}

// Derivatives returns, for every slice, the first and second derivatives of
// the Bradley-Terry log-likelihood with respect to the slice subject's
// log-strength. wins[i] is the win count for slices[i]; gamma and
// adversaryGamma are aligned with the ascents the slices index into.
//
// A non-finite term is reported as a *SubjectError naming the slice that
// holds the offending ascent.
func Derivatives(slices []ascents.Slice, wins, gamma, adversaryGamma []float64) (d1, d2 []float64, err error) {
	if len(wins) != len(slices) {
		return nil, nil, errors.Wrapf(ErrInvalidInput, "%d win counts for %d slices", len(wins), len(slices))
	}
	if len(gamma) != len(adversaryGamma) {
		return nil, nil, errors.Wrapf(ErrInvalidInput, "%d gammas paired with %d adversary gammas", len(gamma), len(adversaryGamma))
	}
	if err := ascents.ValidateSlices(slices, len(gamma)); err != nil {
		return nil, nil, &SubjectError{Kind: ErrInvalidInput, Subject: -1, Err: err}
	}
	for i, w := range wins {
		if !(w >= 0 && w <= float64(slices[i].Len())) {
			return nil, nil, &SubjectError{Kind: ErrInvalidInput, Subject: i,
				Err: errors.Errorf("%g wins in %d ascents", w, slices[i].Len())}
		}
	}

	p, pq, bad := summationTerms(gamma, adversaryGamma)
	if bad >= 0 {
		return nil, nil, &SubjectError{Kind: ErrNonFinite, Subject: sliceOf(slices, bad),
			Err: errors.Errorf("gamma %g against adversary %g", gamma[bad], adversaryGamma[bad])}
	}

	d1 = make([]float64, len(slices))
	d2 = make([]float64, len(slices))
	for i, s := range slices {
		d1[i] = wins[i] - sliceSum(p, s)
		d2[i] = -sliceSum(pq, s)
	}
	return d1, d2, nil
}

// sliceOf returns the index of the slice holding element i, or -1. slices
// must be ordered and non-overlapping.
func sliceOf(slices []ascents.Slice, i int) int {
	k := sort.Search(len(slices), func(k int) bool { return slices[k].End > i })
	if k < len(slices) && slices[k].Start <= i {
		return k
	}
	return -1
}

// sliceSum reads the sum over s from the prefix sums in cum.
func sliceSum(cum []float64, s ascents.Slice) float64 {
	if s.End <= s.Start {
		return 0
	}
	sum := cum[s.End-1]
	if s.Start > 0 {
		sum -= cum[s.Start-1]
	}
	return sum
}
