// Package loss provides the loss-function registry: named pairs of a
// scalar cost function and its gradient with respect to the outputs.
//
// A Pair can also be constructed directly and injected into a network
// without going through the registry.
package loss

import (
	"math"

	"github.com/pkg/errors"
)

// Func computes the scalar loss of outputs against targets.
type Func func(outs, targets []float64) float64

// DerivFunc computes the gradient of the loss with respect to the
// outputs.
type DerivFunc func(outs, targets []float64) []float64

// Pair couples a scalar loss with its gradient.  Both functions are
// pure and assume len(outs) == len(targets).
type Pair struct {
	Cost  Func
	Deriv DerivFunc
}

// Error wraps fixed error conditions raised by this package.
type Error struct{ string }

func (err Error) Error() string {
	return err.string
}

// ErrUnknownLoss is returned when a loss name is not registered.
var ErrUnknownLoss = Error{"unknown loss function"}

var registry = map[string]Pair{
	"L2":           L2(),
	"mse":          MSE(),
	"abs":          Abs(),
	"huber":        Huber(1.0),
	"crossentropy": CrossEntropy(),
}

// Lookup returns the registered pair for name.  Unknown names are an
// error, never a silent default.
func Lookup(name string) (p Pair, err error) {
	p, ok := registry[name]
	if !ok {
		return Pair{}, errors.WithMessagef(ErrUnknownLoss, "%q", name)
	}
	return p, nil
}

// Register adds a pair to the registry.  Registering a name twice is
// an error.
func Register(name string, p Pair) error {
	if _, ok := registry[name]; ok {
		return errors.Errorf("loss %q already registered", name)
	}
	registry[name] = p
	return nil
}

// L2 returns the half sum-of-squares loss:
//
//	cost = 0.5 * resid . resid
//	deriv_i = out_i - target_i
func L2() Pair {
	return Pair{
		Cost: func(outs, targets []float64) (sum float64) {
			for i := range outs {
				r := outs[i] - targets[i]
				sum += 0.5 * r * r
			}
			return
		},
		Deriv: residual,
	}
}

// MSE returns the mean squared error loss.
func MSE() Pair {
	return Pair{
		Cost: func(outs, targets []float64) (sum float64) {
			for i := range outs {
				r := outs[i] - targets[i]
				sum += 0.5 * r * r
			}
			sum /= float64(len(outs))
			return
		},
		Deriv: func(outs, targets []float64) (ds []float64) {
			n := float64(len(outs))
			ds = make([]float64, len(outs))
			for i := range outs {
				ds[i] = (outs[i] - targets[i]) / n
			}
			return
		},
	}
}

// Abs returns the mean absolute error loss.
func Abs() Pair {
	return Pair{
		Cost: func(outs, targets []float64) (sum float64) {
			for i := range outs {
				sum += math.Abs(outs[i] - targets[i])
			}
			sum /= float64(len(outs))
			return
		},
		Deriv: func(outs, targets []float64) (ds []float64) {
			n := float64(len(outs))
			ds = make([]float64, len(outs))
			for i := range outs {
				ds[i] = math.Copysign(1, outs[i]-targets[i]) / n
			}
			return
		},
	}
}

// Huber returns the Huber loss.  delta controls the transition
// between the squared and absolute regions.
func Huber(delta float64) Pair {
	return Pair{
		Cost: func(outs, targets []float64) (sum float64) {
			for i := range outs {
				d := math.Abs(outs[i] - targets[i])
				if d <= delta {
					sum += 0.5 * d * d
				} else {
					sum += delta*d - 0.5*delta*delta
				}
			}
			sum /= float64(len(outs))
			return
		},
		Deriv: func(outs, targets []float64) (ds []float64) {
			n := float64(len(outs))
			ds = make([]float64, len(outs))
			for i := range outs {
				d := outs[i] - targets[i]
				if d >= -delta && d <= delta {
					ds[i] = d / n
				} else {
					ds[i] = delta * math.Copysign(1, d) / n
				}
			}
			return
		},
	}
}

// CrossEntropy returns the negative-log-likelihood loss.  Outputs
// must be in (0, 1).
func CrossEntropy() Pair {
	return Pair{
		Cost: func(outs, targets []float64) (sum float64) {
			for i := range outs {
				sum -= targets[i] * math.Log(outs[i])
			}
			sum /= float64(len(outs))
			return
		},
		Deriv: func(outs, targets []float64) (ds []float64) {
			n := float64(len(outs))
			ds = make([]float64, len(outs))
			for i := range outs {
				ds[i] = -targets[i] / outs[i] / n
			}
			return
		},
	}
}

// residual returns out - target elementwise.
func residual(outs, targets []float64) (ds []float64) {
	ds = make([]float64, len(outs))
	for i := range outs {
		ds[i] = outs[i] - targets[i]
	}
	return
}
