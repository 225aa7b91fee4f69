package ascents

import "github.com/pkg/errors"

// Slice is a half-open index range [Start, End) over an ascent-ordered array.
type Slice struct {
	Start int
	End   int
}

// Len returns the number of indices covered by s.
func (s Slice) Len() int { return s.End - s.Start }

// ValidateSlices checks that slices are ascending, non-overlapping and lie
// within [0, n). Empty slices are allowed.
func ValidateSlices(slices []Slice, n int) error {
	prev := 0
	for i, s := range slices {
		if s.Start < prev || s.End < s.Start || s.End > n {
			return errors.Wrapf(ErrInvalidSlice, "slice %d [%d, %d) over %d elements", i, s.Start, s.End, n)
		}
		prev = s.End
	}
	return nil
}

// ValidateCover is ValidateSlices with the extra requirement that slices
// partition [0, n) with no gaps.
func ValidateCover(slices []Slice, n int) error {
	if err := ValidateSlices(slices, n); err != nil {
		return err
	}
	next := 0
	for i, s := range slices {
		if s.Start != next {
			return errors.Wrapf(ErrInvalidSlice, "slice %d starts at %d, expected %d", i, s.Start, next)
		}
		next = s.End
	}
	if next != n {
		return errors.Wrapf(ErrInvalidSlice, "slices cover %d of %d elements", next, n)
	}
	return nil
}

// Span returns the total number of indices covered by slices.
func Span(slices []Slice) int {
	total := 0
	for _, s := range slices {
		total += s.Len()
	}
	return total
}

// ExpandToSlices repeats values[i] for every index in slices[i]. The result
// has length Span(slices).
func ExpandToSlices(values []float64, slices []Slice) ([]float64, error) {
	if len(values) != len(slices) {
		return nil, errors.Wrapf(ErrLengthMismatch, "%d values for %d slices", len(values), len(slices))
	}
	out := make([]float64, 0, Span(slices))
	for i, s := range slices {
		for j := s.Start; j < s.End; j++ {
			out = append(out, values[i])
		}
	}
	return out, nil
}

// ExpandInto is ExpandToSlices writing into dst at the slice positions. dst
// must be long enough for every slice.
func ExpandInto(dst, values []float64, slices []Slice) {
	for i, s := range slices {
		v := values[i]
		for j := s.Start; j < s.End; j++ {
			dst[j] = v
		}
	}
}
