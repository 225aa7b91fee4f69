package whr

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/okian/climbratings/internal/domain/bradleyterry"
)

// LogPosterior returns the log-posterior of the current ratings up to an
// additive constant: the Bradley-Terry log-likelihood of every ascent plus the
// route, climber and transition priors.
func (e *Estimator) LogPosterior() float64 {
	total := 0.0

	pa := e.pageAscents
	for p, s := range pa.Slices {
		for i := s.Start; i < s.End; i++ {
			win := bradleyterry.WinProbability(e.pageRatings[p], e.routeRatings[pa.Adversary[i]])
			total += logOutcome(win, e.clean[pa.Order[i]])
		}
	}

	routeSigma := math.Sqrt(e.routeVariance)
	for r, rating := range e.routeRatings {
		total += distuv.Normal{Mu: e.routePrior.Mu[r], Sigma: routeSigma}.LogProb(rating)
	}

	climberSigma := math.Sqrt(e.climberVariance)
	for _, cs := range e.climbers {
		total += distuv.Normal{Mu: e.climberMean, Sigma: climberSigma}.LogProb(e.pageRatings[cs.Start])
		for p := cs.Start + 1; p < cs.End; p++ {
			total += distuv.Normal{Mu: e.pageRatings[p-1], Sigma: math.Sqrt(e.gapVariance[p])}.LogProb(e.pageRatings[p])
		}
	}
	return total
}

// logOutcome is the log-probability of an outcome (1 clean, 0 not, fractions
// allowed) given the page's win probability.
func logOutcome(win, clean float64) float64 {
	ll := 0.0
	if clean > 0 {
		ll += clean * math.Log(win)
	}
	if clean < 1 {
		ll += (1 - clean) * math.Log1p(-win)
	}
	return ll
}
