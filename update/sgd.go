package update

import (
	"github.com/pkg/errors"
)

// SGDParams configures the SGD rule.  Zero values take defaults:
// LR 0.01, Momentum 0.
type SGDParams struct {
	LR       float64
	Momentum float64
}

// withDefaults fills in default hyperparameters.
func (p SGDParams) withDefaults() SGDParams {
	if p.LR == 0 {
		p.LR = 0.01
	}
	return p
}

// SGD implements stochastic gradient descent with optional momentum.
//
// Without momentum:
//
//	w = w - lr * grad
//
// With momentum:
//
//	velocity = momentum * velocity + grad
//	w = w - lr * velocity
type SGD struct {
	velocity [][]float64
}

// NewSGD returns a fresh SGD rule with no accumulated velocity.
func NewSGD() *SGD {
	return &SGD{}
}

// Name returns the registry name of the rule.
func (s *SGD) Name() string {
	return "sgd"
}

// Apply performs one SGD step on weights in place.  p must be an
// SGDParams value.
func (s *SGD) Apply(weights, gradient [][]float64, p Params) (err error) {
	sp, ok := p.(SGDParams)
	if !ok {
		return errors.WithMessagef(ErrParamsType, "sgd: got %T", p)
	}
	sp = sp.withDefaults()

	if sp.Momentum == 0 {
		for i := range weights {
			for j := range weights[i] {
				weights[i][j] -= sp.LR * gradient[i][j]
			}
		}
		return
	}

	// velocity follows the weight matrix shape; a structural edit
	// that reshapes the weights resets the accumulated velocity
	if s.velocity == nil || !sameShape(s.velocity, weights) {
		s.velocity = zeros(weights)
	}
	for i := range weights {
		for j := range weights[i] {
			s.velocity[i][j] = sp.Momentum*s.velocity[i][j] + gradient[i][j]
			weights[i][j] -= sp.LR * s.velocity[i][j]
		}
	}
	return
}
