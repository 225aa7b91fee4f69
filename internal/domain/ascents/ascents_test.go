package ascents_test

import (
	"errors"
	"testing"

	"github.com/okian/climbratings/internal/domain/ascents"
	. "github.com/smartystreets/goconvey/convey"
)

func TestExpandToSlices(t *testing.T) {
	Convey("Given per-group values and their ranges", t, func() {
		slices := []ascents.Slice{{Start: 0, End: 2}, {Start: 2, End: 5}}
		values := []float64{1, 10}

		Convey("When expanding", func() {
			expanded, err := ascents.ExpandToSlices(values, slices)

			Convey("Then each group value fills its range", func() {
				So(err, ShouldBeNil)
				So(expanded, ShouldResemble, []float64{1, 1, 10, 10, 10})
				So(len(expanded), ShouldEqual, ascents.Span(slices))
			})
		})

		Convey("When a group is empty", func() {
			slices := []ascents.Slice{{Start: 0, End: 1}, {Start: 1, End: 1}, {Start: 1, End: 3}}
			expanded, err := ascents.ExpandToSlices([]float64{4, 5, 6}, slices)

			Convey("Then it contributes nothing", func() {
				So(err, ShouldBeNil)
				So(expanded, ShouldResemble, []float64{4, 6, 6})
			})
		})

		Convey("When the value count does not match", func() {
			_, err := ascents.ExpandToSlices([]float64{1}, slices)
			So(errors.Is(err, ascents.ErrLengthMismatch), ShouldBeTrue)
		})

		Convey("When expanding in place", func() {
			dst := make([]float64, 5)
			ascents.ExpandInto(dst, values, slices)
			So(dst, ShouldResemble, []float64{1, 1, 10, 10, 10})
		})
	})
}

func TestValidateSlices(t *testing.T) {
	Convey("Given slice lists", t, func() {
		Convey("When they are ascending and in range", func() {
			So(ascents.ValidateSlices([]ascents.Slice{{0, 1}, {1, 1}, {2, 4}}, 4), ShouldBeNil)
		})

		Convey("When they overlap", func() {
			err := ascents.ValidateSlices([]ascents.Slice{{0, 3}, {2, 4}}, 4)
			So(errors.Is(err, ascents.ErrInvalidSlice), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "slice 1")
		})

		Convey("When one runs past the end", func() {
			err := ascents.ValidateSlices([]ascents.Slice{{0, 5}}, 4)
			So(errors.Is(err, ascents.ErrInvalidSlice), ShouldBeTrue)
		})

		Convey("When one is reversed", func() {
			err := ascents.ValidateSlices([]ascents.Slice{{3, 1}}, 4)
			So(errors.Is(err, ascents.ErrInvalidSlice), ShouldBeTrue)
		})

		Convey("When a cover leaves a gap", func() {
			err := ascents.ValidateCover([]ascents.Slice{{0, 1}, {2, 4}}, 4)
			So(errors.Is(err, ascents.ErrInvalidSlice), ShouldBeTrue)
		})

		Convey("When a cover stops short", func() {
			err := ascents.ValidateCover([]ascents.Slice{{0, 3}}, 4)
			So(errors.Is(err, ascents.ErrInvalidSlice), ShouldBeTrue)
		})
	})
}

func TestMakeRouteAscents(t *testing.T) {
	Convey("Given five failed ascents on one page alternating between two routes", t, func() {
		clean := []float64{0, 0, 0, 0, 0}
		pageSlices := []ascents.Slice{{Start: 0, End: 5}}
		routes := []int{0, 1, 0, 1, 0}

		Convey("When regrouping by route", func() {
			a, err := ascents.MakeRouteAscents(clean, pageSlices, routes, 2)

			Convey("Then each route's ascents are contiguous", func() {
				So(err, ShouldBeNil)
				So(a.Wins, ShouldResemble, []float64{3, 2})
				So(a.Slices, ShouldResemble, []ascents.Slice{{Start: 0, End: 3}, {Start: 3, End: 5}})
				So(a.Adversary, ShouldResemble, []int{0, 0, 0, 0, 0})
				So(a.Order, ShouldResemble, []int{0, 2, 4, 1, 3})
			})
		})
	})

	Convey("Given ascents across pages with a route nobody climbed", t, func() {
		clean := []float64{1, 0, 1, 1}
		pageSlices := []ascents.Slice{{Start: 0, End: 2}, {Start: 2, End: 4}}
		routes := []int{2, 0, 0, 2}

		a, err := ascents.MakeRouteAscents(clean, pageSlices, routes, 3)
		So(err, ShouldBeNil)

		Convey("Then the empty route gets an empty slice", func() {
			So(a.Slices, ShouldResemble, []ascents.Slice{{0, 2}, {2, 2}, {2, 4}})
			So(a.Subjects(), ShouldEqual, 3)
		})

		Convey("Then routes win the unclean ascents", func() {
			So(a.Wins, ShouldResemble, []float64{1, 0, 0})
		})

		Convey("Then adversaries are the pages in regrouped order", func() {
			So(a.Order, ShouldResemble, []int{1, 2, 0, 3})
			So(a.Adversary, ShouldResemble, []int{0, 1, 0, 1})
		})
	})

	Convey("Given malformed raw ascents", t, func() {
		Convey("When a route index is out of range", func() {
			_, err := ascents.MakeRouteAscents([]float64{1}, []ascents.Slice{{0, 1}}, []int{3}, 2)
			So(errors.Is(err, ascents.ErrInvalidIndex), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "ascent 0")
		})

		Convey("When outcome and route arrays are ragged", func() {
			_, err := ascents.MakeRouteAscents([]float64{1, 0}, []ascents.Slice{{0, 1}}, []int{0}, 1)
			So(errors.Is(err, ascents.ErrLengthMismatch), ShouldBeTrue)
		})

		Convey("When an outcome is out of range", func() {
			_, err := ascents.MakePageAscents([]float64{2}, []ascents.Slice{{0, 1}}, []int{0}, 1)
			So(errors.Is(err, ascents.ErrInvalidOutcome), ShouldBeTrue)
		})

		Convey("When page slices do not cover the ascents", func() {
			_, err := ascents.MakePageAscents([]float64{1, 1}, []ascents.Slice{{0, 1}}, []int{0, 0}, 1)
			So(errors.Is(err, ascents.ErrInvalidSlice), ShouldBeTrue)
		})
	})
}

func TestMakePageAscents(t *testing.T) {
	Convey("Given ascents grouped by page", t, func() {
		clean := []float64{1, 0, 1, 1, 0, 0}
		pageSlices := []ascents.Slice{{0, 2}, {2, 6}}
		routes := []int{1, 0, 0, 1, 1, 0}

		a, err := ascents.MakePageAscents(clean, pageSlices, routes, 2)

		Convey("Then pages win the clean ascents", func() {
			So(err, ShouldBeNil)
			So(a.Wins, ShouldResemble, []float64{1, 2})
			So(a.Slices, ShouldResemble, pageSlices)
			So(a.Adversary, ShouldResemble, routes)
			So(a.Len(), ShouldEqual, 6)
		})

		Convey("Then the input arrays are not aliased", func() {
			a.Adversary[0] = 99
			So(routes[0], ShouldEqual, 1)
		})
	})
}
