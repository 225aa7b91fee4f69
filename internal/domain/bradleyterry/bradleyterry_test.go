package bradleyterry_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/okian/climbratings/internal/domain/ascents"
	"github.com/okian/climbratings/internal/domain/bradleyterry"
	. "github.com/smartystreets/goconvey/convey"
)

const tolerance = 1e-12

func shouldAllBeAlmost(actual []float64, expected ...float64) {
	So(len(actual), ShouldEqual, len(expected))
	for i := range expected {
		So(actual[i], ShouldAlmostEqual, expected[i], tolerance)
	}
}

func TestSummationTerms(t *testing.T) {
	Convey("Given four equal-strength pairs", t, func() {
		gamma := []float64{1, 1, 1, 1}
		adversary := []float64{1, 1, 1, 1}

		Convey("When computing summation terms", func() {
			p, pq, err := bradleyterry.SummationTerms(gamma, adversary)

			Convey("Then the prefix sums grow by 0.5 and 0.25", func() {
				So(err, ShouldBeNil)
				shouldAllBeAlmost(p, 0.5, 1, 1.5, 2)
				shouldAllBeAlmost(pq, 0.25, 0.5, 0.75, 1)
			})
		})
	})

	Convey("Given ragged strength arrays", t, func() {
		_, _, err := bradleyterry.SummationTerms([]float64{1, 2}, []float64{1})
		So(errors.Is(err, bradleyterry.ErrInvalidInput), ShouldBeTrue)
	})

	Convey("Given a pair of zero strengths", t, func() {
		_, _, err := bradleyterry.SummationTerms([]float64{1, 0}, []float64{1, 0})

		Convey("Then the kernel fails instead of producing NaN", func() {
			So(errors.Is(err, bradleyterry.ErrNonFinite), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "ascent 1")
		})
	})
}

func TestDerivatives(t *testing.T) {
	Convey("Given a single ascent between equals", t, func() {
		slices := []ascents.Slice{{Start: 0, End: 1}}
		gamma := []float64{1}
		adversary := []float64{1}

		Convey("When it is a win", func() {
			d1, d2, err := bradleyterry.Derivatives(slices, []float64{1}, gamma, adversary)
			So(err, ShouldBeNil)
			shouldAllBeAlmost(d1, 0.5)
			shouldAllBeAlmost(d2, -0.25)
		})

		Convey("When it is a loss", func() {
			d1, d2, err := bradleyterry.Derivatives(slices, []float64{0}, gamma, adversary)
			So(err, ShouldBeNil)
			shouldAllBeAlmost(d1, -0.5)
			shouldAllBeAlmost(d2, -0.25)
		})
	})

	Convey("Given four losses by a stronger subject", t, func() {
		slices := []ascents.Slice{{Start: 0, End: 4}}
		d1, d2, err := bradleyterry.Derivatives(slices, []float64{0},
			[]float64{4, 4, 4, 4}, []float64{1, 1, 1, 1})

		Convey("Then the gradient pushes the rating down", func() {
			So(err, ShouldBeNil)
			shouldAllBeAlmost(d1, -3.2)
			shouldAllBeAlmost(d2, -0.64)
		})
	})

	Convey("Given multiple slices", t, func() {
		slices := []ascents.Slice{{Start: 0, End: 1}, {Start: 1, End: 4}}
		d1, d2, err := bradleyterry.Derivatives(slices, []float64{1, 2},
			[]float64{6, 4, 4, 4}, []float64{6, 4, 12, 12})

		Convey("Then each slice is summed independently", func() {
			So(err, ShouldBeNil)
			shouldAllBeAlmost(d1, 0.5, 1)
			shouldAllBeAlmost(d2, -0.25, -0.625)
		})
	})

	Convey("Given n equal-strength ascents with w wins", t, func() {
		for _, tc := range []struct{ n, w int }{{1, 0}, {3, 2}, {10, 10}, {7, 3}} {
			gamma := make([]float64, tc.n)
			for i := range gamma {
				gamma[i] = 2.5
			}
			d1, d2, err := bradleyterry.Derivatives([]ascents.Slice{{Start: 0, End: tc.n}},
				[]float64{float64(tc.w)}, gamma, gamma)
			So(err, ShouldBeNil)
			So(d1[0], ShouldAlmostEqual, float64(tc.w)-0.5*float64(tc.n), tolerance)
			So(d2[0], ShouldAlmostEqual, -0.25*float64(tc.n), tolerance)
		}
	})

	Convey("Given random strengths and slices", t, func() {
		rng := rand.New(rand.NewSource(7))
		n := 200
		gamma := make([]float64, n)
		adversary := make([]float64, n)
		for i := 0; i < n; i++ {
			gamma[i] = rng.ExpFloat64() * 10
			adversary[i] = rng.ExpFloat64() * 10
		}
		var slices []ascents.Slice
		var wins []float64
		for start := 0; start < n; {
			end := start + 1 + rng.Intn(8)
			if end > n {
				end = n
			}
			slices = append(slices, ascents.Slice{Start: start, End: end})
			wins = append(wins, float64(rng.Intn(end-start+1)))
			start = end
		}

		d1, d2, err := bradleyterry.Derivatives(slices, wins, gamma, adversary)
		So(err, ShouldBeNil)

		Convey("Then the likelihood is log-concave in every slice", func() {
			for _, v := range d2 {
				So(v, ShouldBeLessThanOrEqualTo, 0)
			}
		})

		Convey("Then prefix differencing matches a direct sum", func() {
			for i, s := range slices {
				var sumP, sumPQ float64
				for j := s.Start; j < s.End; j++ {
					p := gamma[j] / (gamma[j] + adversary[j])
					sumP += p
					sumPQ += p * (1 - p)
				}
				So(d1[i], ShouldAlmostEqual, wins[i]-sumP, 1e-9)
				So(d2[i], ShouldAlmostEqual, -sumPQ, 1e-9)
			}
		})
	})
}

func TestDerivatives_Preconditions(t *testing.T) {
	Convey("Given malformed slice inputs", t, func() {
		gamma := []float64{1, 1, 1}

		Convey("When wins exceed the slice length", func() {
			_, _, err := bradleyterry.Derivatives([]ascents.Slice{{Start: 0, End: 1}, {Start: 1, End: 3}}, []float64{0, 3}, gamma, gamma)
			So(errors.Is(err, bradleyterry.ErrInvalidInput), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "subject 1")
		})

		Convey("When wins are negative", func() {
			_, _, err := bradleyterry.Derivatives([]ascents.Slice{{Start: 0, End: 3}}, []float64{-1}, gamma, gamma)
			So(errors.Is(err, bradleyterry.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When slices overlap", func() {
			_, _, err := bradleyterry.Derivatives([]ascents.Slice{{Start: 0, End: 2}, {Start: 1, End: 3}}, []float64{0, 0}, gamma, gamma)
			So(errors.Is(err, bradleyterry.ErrInvalidInput), ShouldBeTrue)
			So(errors.Is(err, ascents.ErrInvalidSlice), ShouldBeTrue)
		})

		Convey("When a slice runs past the arrays", func() {
			_, _, err := bradleyterry.Derivatives([]ascents.Slice{{Start: 0, End: 4}}, []float64{0}, gamma, gamma)
			So(errors.Is(err, bradleyterry.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When win counts and slices disagree in number", func() {
			_, _, err := bradleyterry.Derivatives([]ascents.Slice{{Start: 0, End: 3}}, []float64{0, 1}, gamma, gamma)
			So(errors.Is(err, bradleyterry.ErrInvalidInput), ShouldBeTrue)
		})
	})
}

func TestDerivatives_NonFiniteSubject(t *testing.T) {
	Convey("Given three slices and an overflowing strength in the last one", t, func() {
		slices := []ascents.Slice{{Start: 0, End: 1}, {Start: 1, End: 3}, {Start: 3, End: 4}}
		gamma := []float64{1, 1, 1, math.Inf(1)}
		adversary := []float64{1, 1, 1, 1}

		Convey("When computing derivatives", func() {
			_, _, err := bradleyterry.Derivatives(slices, []float64{0, 1, 0}, gamma, adversary)

			Convey("Then the error names the slice, not the ascent", func() {
				So(errors.Is(err, bradleyterry.ErrNonFinite), ShouldBeTrue)
				var se *bradleyterry.SubjectError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Subject, ShouldEqual, 2)
				So(err.Error(), ShouldStartWith, "subject 2:")
			})
		})
	})

	Convey("Given an undefined term outside every slice", t, func() {
		slices := []ascents.Slice{{Start: 0, End: 1}, {Start: 2, End: 3}}
		gamma := []float64{1, 0, 1}

		Convey("When computing derivatives", func() {
			_, _, err := bradleyterry.Derivatives(slices, []float64{0, 0}, gamma, gamma)

			Convey("Then no subject is blamed", func() {
				So(errors.Is(err, bradleyterry.ErrNonFinite), ShouldBeTrue)
				var se *bradleyterry.SubjectError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Subject, ShouldEqual, -1)
			})
		})
	})
}

func TestWinProbability(t *testing.T) {
	Convey("Given two ratings", t, func() {
		So(bradleyterry.WinProbability(0, 0), ShouldEqual, 0.5)
		So(bradleyterry.WinProbability(1.5, 0.2)+bradleyterry.WinProbability(0.2, 1.5), ShouldAlmostEqual, 1.0, tolerance)
		So(bradleyterry.WinProbability(0, -1.3862943611198906), ShouldAlmostEqual, 0.8, tolerance)
	})
}
