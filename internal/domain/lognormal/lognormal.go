// Package lognormal models variables whose logarithm is drawn from a normal
// distribution.
//
// The derivatives returned here are of ln P with respect to ln x, not x: all
// rating optimization happens on the log scale.
package lognormal

import (
	"math"

	"github.com/pkg/errors"
)

// Distribution is a vectorized log-normal distribution. Mu and SigmaSq each
// hold either a single value, which is broadcast, or one value per
// evaluation point.
type Distribution struct {
	Mu      []float64
	SigmaSq []float64
}

// New returns a Distribution after checking every variance is strictly
// positive.
func New(mu, sigmaSq []float64) (Distribution, error) {
	if len(mu) == 0 || len(sigmaSq) == 0 {
		return Distribution{}, errors.Wrap(ErrInvalidInput, "mu and sigma_sq must not be empty")
	}
	for i, v := range sigmaSq {
		if !(v > 0) || math.IsInf(v, 1) {
			return Distribution{}, errors.Wrapf(ErrNonPositiveVariance, "sigma_sq[%d] = %g", i, v)
		}
	}
	return Distribution{Mu: mu, SigmaSq: sigmaSq}, nil
}

// Scalar returns a Distribution with a single mean and variance.
func Scalar(mu, sigmaSq float64) (Distribution, error) {
	return New([]float64{mu}, []float64{sigmaSq})
}

// Derivatives returns the first and second derivatives of the log-PDF with
// respect to ln x, evaluated at each strength in x.
func (d Distribution) Derivatives(x []float64) (d1, d2 []float64, err error) {
	y := make([]float64, len(x))
	for i, v := range x {
		if !(v > 0) {
			return nil, nil, errors.Wrapf(ErrInvalidInput, "x[%d] = %g is not a positive strength", i, v)
		}
		y[i] = math.Log(v)
	}
	return d.DerivativesAt(y)
}

// DerivativesAt is Derivatives for points already on the log scale.
func (d Distribution) DerivativesAt(y []float64) (d1, d2 []float64, err error) {
	if err := d.checkBroadcast(len(y)); err != nil {
		return nil, nil, err
	}
	d1 = make([]float64, len(y))
	d2 = make([]float64, len(y))
	for i, v := range y {
		mu, sigmaSq := d.at(i)
		if !(sigmaSq > 0) {
			return nil, nil, errors.Wrapf(ErrNonPositiveVariance, "sigma_sq at %d = %g", i, sigmaSq)
		}
		d1[i] = (mu - v) / sigmaSq
		d2[i] = -1 / sigmaSq
	}
	return d1, d2, nil
}

// DerivativeAt evaluates a single point.
func DerivativeAt(mu, sigmaSq, y float64) (d1, d2 float64, err error) {
	if !(sigmaSq > 0) {
		return 0, 0, errors.Wrapf(ErrNonPositiveVariance, "sigma_sq = %g", sigmaSq)
	}
	return (mu - y) / sigmaSq, -1 / sigmaSq, nil
}

func (d Distribution) at(i int) (mu, sigmaSq float64) {
	mu = d.Mu[0]
	if len(d.Mu) > 1 {
		mu = d.Mu[i]
	}
	sigmaSq = d.SigmaSq[0]
	if len(d.SigmaSq) > 1 {
		sigmaSq = d.SigmaSq[i]
	}
	return mu, sigmaSq
}

func (d Distribution) checkBroadcast(n int) error {
	if len(d.Mu) == 0 || len(d.SigmaSq) == 0 {
		return errors.Wrap(ErrInvalidInput, "distribution is not initialized")
	}
	if len(d.Mu) != 1 && len(d.Mu) != n {
		return errors.Wrapf(ErrInvalidInput, "mu has %d values, cannot pair with %d points", len(d.Mu), n)
	}
	if len(d.SigmaSq) != 1 && len(d.SigmaSq) != n {
		return errors.Wrapf(ErrInvalidInput, "sigma_sq has %d values, cannot pair with %d points", len(d.SigmaSq), n)
	}
	return nil
}
