// Package update implements weight-update rules for network training.
//
// A Rule applies one optimization step to a layer's weight matrix
// using the layer's stored gradient.  Rules are chosen at network
// construction time, either directly or by name through the registry.
// Rule parameters (learning rate and friends) are rule-specific value
// types passed opaquely as Params; each Rule documents the concrete
// type it accepts.
//
// Rules may carry per-layer state (momentum velocities, moment
// estimates), so each layer must own its own Rule instance.  Use the
// registry's New to mint fresh instances.
package update

import (
	"github.com/pkg/errors"
)

// Params is an opaque, rule-specific parameter value.  SGD accepts
// SGDParams, Adam accepts AdamParams.
type Params interface{}

// Rule is a weight-update strategy.  Apply performs one update step
// on the weight matrix in place, given the gradient of the loss with
// respect to the weights and the rule's parameters.
type Rule interface {
	Apply(weights, gradient [][]float64, p Params) error
	Name() string
}

// Error wraps fixed error conditions raised by this package.
type Error struct{ string }

func (err Error) Error() string {
	return err.string
}

var (
	// ErrParamsType is returned when the Params value passed to a
	// rule is not the type that rule accepts.
	ErrParamsType = Error{"wrong params type for update rule"}
	// ErrUnknownRule is returned when a rule name is not registered.
	ErrUnknownRule = Error{"unknown update rule"}
)

var registry = map[string]func() Rule{
	"sgd":  func() Rule { return NewSGD() },
	"adam": func() Rule { return NewAdam() },
}

// New returns a fresh instance of the named rule.
func New(name string) (rule Rule, err error) {
	factory, ok := registry[name]
	if !ok {
		return nil, errors.WithMessagef(ErrUnknownRule, "%q", name)
	}
	return factory(), nil
}

// Register adds a rule factory to the registry.  Registering a name
// twice is an error.
func Register(name string, factory func() Rule) error {
	if _, ok := registry[name]; ok {
		return errors.Errorf("update rule %q already registered", name)
	}
	registry[name] = factory
	return nil
}

// zeros returns a zero matrix with the shape of m.
func zeros(m [][]float64) (z [][]float64) {
	z = make([][]float64, len(m))
	for i := range m {
		z[i] = make([]float64, len(m[i]))
	}
	return
}

// sameShape returns true if a and b have identical dimensions.
func sameShape(a, b [][]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
	}
	return true
}
