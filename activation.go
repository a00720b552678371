package stratum

import (
	"math"

	"github.com/pkg/errors"
)

// Activation is a nonlinearity and its first derivative.  Both take
// the pre-activation value.
type Activation struct {
	F  func(float64) float64
	D1 func(float64) float64
}

// sigmoid activation function
func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// sigmoid derivative
func sigmoidD1(x float64) float64 {
	s := sigmoid(x)
	return s * (1 - s)
}

// tanh derivative
func tanhD1(x float64) float64 {
	return 1 - math.Pow(math.Tanh(x), 2)
}

// relu activation function
func relu(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

// relu derivative
func reluD1(x float64) float64 {
	if x < 0 {
		return 0
	}
	return 1
}

// linear activation function
func linear(x float64) float64 {
	return x
}

// linear derivative
func linearD1(x float64) float64 {
	return 1
}

// square activation function
func square(x float64) float64 {
	return x * x
}

// square derivative
func squareD1(x float64) float64 {
	return 2 * x
}

// square root activation function, extended to negative numbers
func sqrt(x float64) float64 {
	if x < 0 {
		return -math.Sqrt(-x)
	}
	return math.Sqrt(x)
}

// square root derivative
func sqrtD1(x float64) float64 {
	if x < 0 {
		return -1 / (2 * math.Sqrt(-x))
	}
	return 1 / (2 * math.Sqrt(x))
}

// abs derivative
func absD1(x float64) float64 {
	if x < 0 {
		return -1
	}
	if x > 0 {
		return 1
	}
	return 0
}

var activations = map[string]Activation{
	"sigmoid": {sigmoid, sigmoidD1},
	"tanh":    {math.Tanh, tanhD1},
	"relu":    {relu, reluD1},
	"linear":  {linear, linearD1},
	"square":  {square, squareD1},
	"sqrt":    {sqrt, sqrtD1},
	"abs":     {math.Abs, absD1},
}

// lookupActivation returns the named activation pair.
func lookupActivation(name string) (act Activation, err error) {
	act, ok := activations[name]
	if !ok {
		return Activation{}, errors.WithMessagef(ErrUnknownActivation, "%q", name)
	}
	return act, nil
}
