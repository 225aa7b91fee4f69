package synthetic

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/climbratings/internal/adapters/csvio"
)

// Quality measures how well estimates recover the true ratings.
type Quality struct {
	// Spearman rank correlations between true and estimated ratings.
	RouteSpearman float64
	PageSpearman  float64
	// Root mean squared errors on the rating scale.
	RouteRMSE float64
	PageRMSE  float64
}

// Verify compares est against truth.
func Verify(truth *Truth, est csvio.Estimates) (Quality, error) {
	if len(est.RouteRatings) != len(truth.RouteRatings) || len(est.PageRatings) != len(truth.PageRatings) {
		return Quality{}, fmt.Errorf("%w: %d/%d route and %d/%d page ratings", ErrMismatch,
			len(est.RouteRatings), len(truth.RouteRatings), len(est.PageRatings), len(truth.PageRatings))
	}
	return Quality{
		RouteSpearman: spearman(truth.RouteRatings, est.RouteRatings),
		PageSpearman:  spearman(truth.PageRatings, est.PageRatings),
		RouteRMSE:     rmse(truth.RouteRatings, est.RouteRatings),
		PageRMSE:      rmse(truth.PageRatings, est.PageRatings),
	}, nil
}

// spearman is the Pearson correlation of ranks. Ties share their mean rank.
func spearman(x, y []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	return stat.Correlation(ranks(x), ranks(y), nil)
}

func ranks(v []float64) []float64 {
	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return v[idx[a]] < v[idx[b]] })

	out := make([]float64, len(v))
	for i := 0; i < len(idx); {
		j := i + 1
		for j < len(idx) && v[idx[j]] == v[idx[i]] {
			j++
		}
		mean := float64(i+j-1) / 2
		for k := i; k < j; k++ {
			out[idx[k]] = mean
		}
		i = j
	}
	return out
}

func rmse(x, y []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	d := make([]float64, len(x))
	floats.SubTo(d, x, y)
	return floats.Norm(d, 2) / math.Sqrt(float64(len(x)))
}
