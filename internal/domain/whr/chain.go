package whr

import (
	"math"

	"github.com/pkg/errors"

	"github.com/okian/climbratings/internal/domain/ascents"
)

// chainWork holds page-indexed scratch for every climber's chain. Climbers
// own disjoint page ranges, so concurrent chains never share entries.
type chainWork struct {
	grad  []float64
	diag  []float64
	off   []float64
	pivot []float64
	upper []float64
}

func newChainWork(numPages int) chainWork {
	return chainWork{
		grad:  make([]float64, numPages),
		diag:  make([]float64, numPages),
		off:   make([]float64, numPages),
		pivot: make([]float64, numPages),
		upper: make([]float64, numPages),
	}
}

func (w chainWork) chain(s ascents.Slice) chain {
	return chain{
		grad:  w.grad[s.Start:s.End],
		diag:  w.diag[s.Start:s.End],
		off:   w.off[s.Start:s.End],
		pivot: w.pivot[s.Start:s.End],
		upper: w.upper[s.Start:s.End],
	}
}

// chain is the gradient and symmetric tridiagonal Hessian of the
// log-posterior over one climber's pages. off[i] couples pages i and i+1;
// the last entry is unused.
type chain struct {
	grad []float64
	diag []float64
	off  []float64

	pivot []float64
	upper []float64
}

// solve overwrites grad with the Newton step H⁻¹·grad by forward
// elimination and back substitution, leaving the pivots for variances.
func (c chain) solve() error {
	n := len(c.diag)
	if n == 0 {
		return nil
	}
	for i := 0; i < n; i++ {
		m := c.diag[i]
		if i > 0 {
			m -= c.off[i-1] * c.upper[i-1]
			c.grad[i] -= c.off[i-1] * c.grad[i-1]
		}
		if !(m < 0) || math.IsInf(m, -1) {
			return errors.Errorf("pivot %d is %g, Hessian is not negative definite", i, m)
		}
		c.pivot[i] = m
		c.upper[i] = 0
		if i < n-1 {
			c.upper[i] = c.off[i] / m
		}
		c.grad[i] /= m
	}
	for i := n - 2; i >= 0; i-- {
		c.grad[i] -= c.upper[i] * c.grad[i+1]
	}
	for i, v := range c.grad {
		if !isFinite(v) {
			return errors.Errorf("step %d is %g", i, v)
		}
	}
	return nil
}

// variances writes the diagonal of -H⁻¹, the marginal variance of each page,
// into dst. It combines the forward pivots from solve with a backward
// elimination: var_i = 1 / (D_i + E_i - a_i) where a = -diag, D the forward
// and E the backward pivots of -H.
func (c chain) variances(dst []float64) error {
	n := len(c.diag)
	back := 0.0
	for i := n - 1; i >= 0; i-- {
		a := -c.diag[i]
		if i == n-1 {
			back = a
		} else {
			back = a - c.off[i]*c.off[i]/back
		}
		v := 1 / (-c.pivot[i] + back - a)
		if !(v > 0) || math.IsInf(v, 1) {
			return errors.Errorf("variance of page %d is %g", i, v)
		}
		dst[i] = v
	}
	return nil
}
