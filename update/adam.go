package update

import (
	"math"

	"github.com/pkg/errors"
)

// AdamParams configures the Adam rule.  Zero values take defaults:
// LR 0.001, Beta1 0.9, Beta2 0.999, Eps 1e-8.
type AdamParams struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64
}

// withDefaults fills in default hyperparameters.
func (p AdamParams) withDefaults() AdamParams {
	if p.LR == 0 {
		p.LR = 0.001
	}
	if p.Beta1 == 0 {
		p.Beta1 = 0.9
	}
	if p.Beta2 == 0 {
		p.Beta2 = 0.999
	}
	if p.Eps == 0 {
		p.Eps = 1e-8
	}
	return p
}

// Adam implements the Adam rule (Kingma & Ba, 2014):
//
//	m = beta1 * m + (1-beta1) * grad
//	v = beta2 * v + (1-beta2) * grad^2
//	mHat = m / (1 - beta1^t)
//	vHat = v / (1 - beta2^t)
//	w = w - lr * mHat / (sqrt(vHat) + eps)
type Adam struct {
	m [][]float64
	v [][]float64
	t int
}

// NewAdam returns a fresh Adam rule with zeroed moment estimates.
func NewAdam() *Adam {
	return &Adam{}
}

// Name returns the registry name of the rule.
func (a *Adam) Name() string {
	return "adam"
}

// Apply performs one Adam step on weights in place.  p must be an
// AdamParams value.
func (a *Adam) Apply(weights, gradient [][]float64, p Params) (err error) {
	ap, ok := p.(AdamParams)
	if !ok {
		return errors.WithMessagef(ErrParamsType, "adam: got %T", p)
	}
	ap = ap.withDefaults()

	// moment estimates follow the weight matrix shape; a reshape
	// restarts the schedule
	if a.m == nil || !sameShape(a.m, weights) {
		a.m = zeros(weights)
		a.v = zeros(weights)
		a.t = 0
	}
	a.t++
	biasCorr1 := 1.0 - math.Pow(ap.Beta1, float64(a.t))
	biasCorr2 := 1.0 - math.Pow(ap.Beta2, float64(a.t))

	for i := range weights {
		for j := range weights[i] {
			g := gradient[i][j]
			a.m[i][j] = ap.Beta1*a.m[i][j] + (1.0-ap.Beta1)*g
			a.v[i][j] = ap.Beta2*a.v[i][j] + (1.0-ap.Beta2)*g*g
			mHat := a.m[i][j] / biasCorr1
			vHat := a.v[i][j] / biasCorr2
			weights[i][j] -= ap.LR * mHat / (math.Sqrt(vHat) + ap.Eps)
		}
	}
	return
}
