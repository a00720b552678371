package stratum

import (
	"github.com/stevegt/stratum/shape"
	"github.com/stevegt/stratum/update"
)

// Layer is one transformation stage in a network: a fixed input
// shape, an output size, an activation, and a mutable weight matrix.
// The Network drives layers through this contract and never looks
// inside them; any implementation satisfying it can be composed into
// a chain.
//
// Protocol: SetInputs then Forward computes Outputs.  During a
// backward pass the network calls BackwardOutput on the last layer,
// seeding it with the loss gradient, then Backward on each earlier
// layer in strictly reverse order; each layer derives its local error
// term from its successor's already-computed error and weights.  Err
// and Gradient are defined only after a completed backward pass and
// go stale when UpdateWeights runs.
type Layer interface {
	// InputShape returns the declared input matrix shape.
	InputShape() shape.Shape
	// SetInputShape redeclares the input shape.  If the new total
	// size is incompatible with the current weights, the weights are
	// rebuilt for the new shape.
	SetInputShape(s shape.Shape) error
	// NumOutputs returns the length of the output vector.
	NumOutputs() int
	// SetNumOutputs resizes the output vector, rebuilding weights.
	SetNumOutputs(n int) error

	// SetInputs replaces the layer's current input matrix.
	SetInputs(m [][]float64) error
	// Forward fully recomputes the outputs from the current inputs.
	Forward() error
	// Outputs returns the output vector of the last Forward call.
	Outputs() []float64

	// BackwardOutput seeds this layer's error term from the network
	// loss gradient.  Terminal layer only.
	BackwardOutput(lossGrad []float64) error
	// Backward derives this layer's error term from the layer that
	// follows it in forward order.
	Backward(next Layer) error
	// Err returns the local error term of the last backward pass.
	Err() ([]float64, error)
	// Gradient returns the weight gradient of the last backward
	// pass; its shape matches the weight matrix.
	Gradient() ([][]float64, error)

	// Weights returns the weight matrix.
	Weights() [][]float64
	// SetWeights replaces the weight matrix, shape-checked.
	SetWeights(w [][]float64) error
	// Randomize sets the weights to random values.
	Randomize()

	// SetUpdateParams stores rule params for reuse across
	// iterations.
	SetUpdateParams(p update.Params)
	// UpdateWeights applies one step of the layer's update rule to
	// its weights using its stored gradient and params.
	UpdateWeights() error

	// SetActivation replaces the nonlinearity used by Forward.
	SetActivation(name string) error

	// Clone returns a deep copy with a fresh update-rule instance.
	Clone() (Layer, error)
}
