package stratum

import (
	"github.com/pkg/errors"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/stratum/update"
)

// Predict runs a forward pass: the current input matrix is threaded
// through every layer in order, each layer's output vector becoming
// the next layer's input.  The final output, residual, scalar loss,
// and loss gradient are stored.  A non-nil inputs or target replaces
// the stored one first, shape-checked without override.
func (n *Network) Predict(inputs [][]float64, target []float64) (err error) {
	if inputs != nil {
		err = n.SetInputs(inputs, false)
		if err != nil {
			return
		}
	}
	if target != nil {
		err = n.SetTarget(target, false)
		if err != nil {
			return
		}
	}
	return n.forward()
}

// PredictVal is Predict plus a copy of the resulting output vector.
// Both perform identical computation and state updates.
func (n *Network) PredictVal(inputs [][]float64, target []float64) (outputs []float64, err error) {
	err = n.Predict(inputs, target)
	if err != nil {
		return
	}
	outputs = n.Outputs()
	return
}

func (n *Network) forward() (err error) {
	if n.inputs == nil {
		return errors.WithMessage(ErrOrdering, "predict before inputs set")
	}
	if n.target == nil {
		return errors.WithMessage(ErrOrdering, "predict before target set")
	}

	layerOut := n.inputs
	for _, l := range n.layers {
		err = l.SetInputs(layerOut)
		if err != nil {
			return
		}
		err = l.Forward()
		if err != nil {
			return
		}
		// output of this layer is input to the next layer, then
		// eventually the output
		layerOut = colVec(l.Outputs())
	}

	last := n.layers[len(n.layers)-1]
	n.outputs = make([]float64, n.numOutputs)
	copy(n.outputs, last.Outputs())

	n.resid = make([]float64, n.numOutputs)
	for i := range n.outputs {
		n.resid[i] = n.outputs[i] - n.target[i]
	}
	n.scalar = n.lossPair.Cost(n.outputs, n.target)
	n.lossDeriv = n.lossPair.Deriv(n.outputs, n.target)

	n.predicted = true
	n.backValid = false
	return
}

// colVec reshapes a vector into an n x 1 matrix.
func colVec(v []float64) (m [][]float64) {
	m = make([][]float64, len(v))
	for i, x := range v {
		m[i] = []float64{x}
	}
	return
}

// BackwardPass propagates the loss gradient backward through the
// chain: the last layer is seeded with the loss gradient, then each
// earlier layer derives its error term from its successor, in strict
// reverse order.  Afterward the network's gradient is the first
// layer's gradient.  Calling this before Predict is an error.
func (n *Network) BackwardPass() (err error) {
	if !n.predicted {
		return errors.WithMessage(ErrOrdering, "backward pass before predict")
	}
	last := n.layers[len(n.layers)-1]
	err = last.BackwardOutput(n.lossDeriv)
	if err != nil {
		return
	}
	// from the second-to-last layer, iterate to the beginning
	for i := len(n.layers) - 2; i >= 0; i-- {
		err = n.layers[i].Backward(n.layers[i+1])
		if err != nil {
			return
		}
	}
	grad, err := n.layers[0].Gradient()
	if err != nil {
		return
	}
	n.gradient = copyMatrix(grad)
	n.backValid = true
	return
}

// UpdateWeights applies each layer's stored update rule using its
// current gradient.  Layers are update-independent at this point, so
// order does not matter.  Gradients are stale afterward until the
// next predict/backward cycle.
func (n *Network) UpdateWeights() (err error) {
	if !n.backValid {
		return errors.WithMessage(ErrOrdering, "update before backward pass")
	}
	for _, l := range n.layers {
		err = l.UpdateWeights()
		if err != nil {
			return
		}
	}
	// weights changed: outputs, loss, and gradients all reflect the
	// old weights now, so force a full predict/backward cycle before
	// they can be read or propagated again
	n.predicted = false
	n.backValid = false
	return
}

// UpdateWeightsWith sets the same params on every layer, then
// updates.
func (n *Network) UpdateWeightsWith(p update.Params) (err error) {
	n.SetUpdateParams(p)
	return n.UpdateWeights()
}

// UpdateWeightsPer sets per-layer params, then updates.  The list
// must contain exactly one entry per layer.
func (n *Network) UpdateWeightsPer(list []update.Params) (err error) {
	err = n.SetUpdateParamsList(list)
	if err != nil {
		return
	}
	return n.UpdateWeights()
}

// TrainConfig configures a training run.  Zero values take defaults:
// StopTol 1e-5, MaxIter 1000.  Inputs and Target, when non-nil,
// replace the stored ones before the first iteration.  Quiet
// suppresses the iteration-cap warning.
type TrainConfig struct {
	StopTol float64
	MaxIter int
	Inputs  [][]float64
	Target  []float64
	Quiet   bool
}

// Train runs training iterations -- predict, backward pass, append
// the scalar loss to the history, update weights -- until the loss
// reaches StopTol or MaxIter iterations have run.
//
// The first iteration always runs, and the stopping check happens
// after each update, not before: convergence is detected one
// iteration late, and one extra update beyond the boundary is always
// applied.  That is the defined semantics of this loop, not an
// accident of implementation.
//
// Hitting MaxIter is not an error; it appends exactly MaxIter history
// entries and prints a warning with the final loss unless Quiet.
func (n *Network) Train(cfg TrainConfig) (err error) {
	if cfg.StopTol == 0 {
		cfg.StopTol = 1e-5
	}
	if cfg.MaxIter == 0 {
		cfg.MaxIter = 1000
	}

	// run first training round
	err = n.iterate(cfg.Inputs, cfg.Target)
	if err != nil {
		return
	}
	iters := 1
	// run until stopping criteria are hit
	for iters < cfg.MaxIter && n.scalar > cfg.StopTol {
		err = n.iterate(nil, nil)
		if err != nil {
			return
		}
		iters++
	}
	if n.scalar > cfg.StopTol && !cfg.Quiet {
		Pf("WARNING: network hit max iterations in training; scalar loss is %v\n", n.scalar)
	}
	return
}

// iterate runs one training iteration.
func (n *Network) iterate(inputs [][]float64, target []float64) (err error) {
	err = n.Predict(inputs, target)
	if err != nil {
		return
	}
	err = n.BackwardPass()
	if err != nil {
		return
	}
	n.history = append(n.history, n.scalar)
	return n.UpdateWeights()
}
