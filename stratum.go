// Package stratum is a small feed-forward neural network trainer.
// A Network owns an ordered chain of layers and drives the
// forward-evaluation, backpropagation, and weight-update protocol
// between them, iterating until a convergence tolerance or iteration
// cap is reached.  Layers are pluggable through the Layer contract;
// loss functions and weight-update rules are pluggable through the
// loss and update packages.
package stratum

import (
	"github.com/pkg/errors"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/stratum/loss"
	"github.com/stevegt/stratum/shape"
	"github.com/stevegt/stratum/update"
)

// Network is an ordered sequence of layers together with the current
// input batch, target, and the derived loss state.  The input shape
// always mirrors the first layer's declared shape and the output
// count always mirrors the last layer's output size; every structural
// mutation re-derives both.
//
// Network methods are not safe for concurrent use; callers must
// serialize access to one instance.
type Network struct {
	Name string

	layers      []Layer
	layerShapes []shape.Shape
	inputShape  shape.Shape
	numOutputs  int

	inputs [][]float64
	target []float64

	lossPair  loss.Pair
	outputs   []float64
	resid     []float64
	scalar    float64
	lossDeriv []float64
	gradient  [][]float64

	history []float64

	predicted bool
	backValid bool
}

// New creates a network with a single auto-sized terminal layer
// mapping the given input shape to numOutputs, using the named
// activation and the given update rule and params.  The loss is
// selected by name from the loss registry.
func New(name string, in shape.Shape, numOutputs int, activation, lossName string, rule update.Rule, params update.Params) (n *Network, err error) {
	pair, err := loss.Lookup(lossName)
	if err != nil {
		return nil, err
	}
	l, err := NewDense(in, numOutputs, activation, rule, params)
	if err != nil {
		return nil, err
	}
	n = &Network{Name: name, lossPair: pair}
	err = n.SetLayers([]Layer{l})
	if err != nil {
		return nil, err
	}
	return
}

// FromLayers creates a network from an explicit ordered layer
// sequence with the named loss function.
func FromLayers(name, lossName string, layers ...Layer) (n *Network, err error) {
	pair, err := loss.Lookup(lossName)
	if err != nil {
		return nil, err
	}
	n = &Network{Name: name, lossPair: pair}
	err = n.SetLayers(layers)
	if err != nil {
		return nil, err
	}
	return
}

// FromLayerList creates a network from an explicit layer sequence
// with the default L2 loss.
func FromLayerList(name string, layers ...Layer) (n *Network, err error) {
	return FromLayers(name, "L2", layers...)
}

// FromShapeSpec builds a dense layer stack from an s-expression
// architecture description, e.g. "(xor (sigmoid 3) (linear 1))".
// The DSL head symbol names the network; each layer gets a fresh
// instance of the named update rule with the given params.
func FromShapeSpec(txt string, in shape.Shape, lossName, ruleName string, params update.Params) (n *Network, err error) {
	ns, err := shape.Parse(txt)
	if err != nil {
		return nil, err
	}
	layerIn := in
	layers := make([]Layer, len(ns.Layers))
	for i, ls := range ns.Layers {
		rule, err := update.New(ruleName)
		if err != nil {
			return nil, err
		}
		l, err := NewDense(layerIn, ls.Size, ls.Activation, rule, params)
		if err != nil {
			return nil, err
		}
		layers[i] = l
		layerIn = shape.Vec(ls.Size)
	}
	return FromLayers(ns.Name, lossName, layers...)
}

// checkChain verifies the adjacency invariant over a candidate layer
// sequence: each layer's output feeds the next layer's declared input
// size.
func checkChain(layers []Layer) (err error) {
	if len(layers) == 0 {
		return errors.WithMessage(ErrCardinality, "network needs at least one layer")
	}
	for i := 1; i < len(layers); i++ {
		out := layers[i-1].NumOutputs()
		in := layers[i].InputShape().Size()
		if out != in {
			return errors.WithMessagef(ErrShapeMismatch, "layer %d emits %d outputs but layer %d expects %d inputs", i-1, out, i, in)
		}
	}
	return
}

// adopt installs a validated layer sequence and re-derives all shape
// bookkeeping in one step.  Derived loss state is dropped.
func (n *Network) adopt(layers []Layer) {
	shapes := make([]shape.Shape, len(layers))
	for i, l := range layers {
		shapes[i] = l.InputShape()
	}
	n.layers = layers
	n.layerShapes = shapes
	n.inputShape = shapes[0]
	n.numOutputs = layers[len(layers)-1].NumOutputs()
	n.predicted = false
	n.backValid = false
}

// SetLayers replaces the layer sequence.  The shape list, input
// shape, and output count are re-derived atomically; on error the
// network is unchanged.
func (n *Network) SetLayers(layers []Layer) (err error) {
	err = checkChain(layers)
	if err != nil {
		return
	}
	n.adopt(layers)
	return
}

// AppendLayers moves the given layers onto the end of the sequence.
// The network takes ownership; callers must not use their handles to
// the layers afterwards.
func (n *Network) AppendLayers(layers ...Layer) (err error) {
	candidate := make([]Layer, 0, len(n.layers)+len(layers))
	candidate = append(candidate, n.layers...)
	candidate = append(candidate, layers...)
	err = checkChain(candidate)
	if err != nil {
		return
	}
	n.adopt(candidate)
	return
}

// InsertLayer inserts a layer before position i.  Inserting at
// position len(layers) is an append.
func (n *Network) InsertLayer(i int, l Layer) (err error) {
	if i < 0 || i > len(n.layers) {
		return errors.WithMessagef(ErrCardinality, "insert position %d with %d layers", i, len(n.layers))
	}
	if i == len(n.layers) {
		return n.AppendLayers(l)
	}
	candidate := make([]Layer, 0, len(n.layers)+1)
	candidate = append(candidate, n.layers[:i]...)
	candidate = append(candidate, l)
	candidate = append(candidate, n.layers[i:]...)
	err = checkChain(candidate)
	if err != nil {
		return
	}
	n.adopt(candidate)
	return
}

// Layers returns the layer sequence.  The slice is a copy; the
// layers are not.
func (n *Network) Layers() (layers []Layer) {
	layers = make([]Layer, len(n.layers))
	copy(layers, n.layers)
	return
}

// LayerInputShapes returns the declared input shape of each layer.
func (n *Network) LayerInputShapes() (shapes []shape.Shape) {
	shapes = make([]shape.Shape, len(n.layerShapes))
	copy(shapes, n.layerShapes)
	return
}

// InputShape returns the network's declared input shape.
func (n *Network) InputShape() shape.Shape {
	return n.inputShape
}

// NumOutputs returns the length of the network's output vector.
func (n *Network) NumOutputs() int {
	return n.numOutputs
}

// GetName returns the name of the network.
func (n *Network) GetName() string {
	return n.Name
}

// SetInputs replaces the input batch.  Without override the matrix
// dimensions must exactly equal the declared input shape.  With
// override the network adopts the new dimensions and pushes the new
// shape into the first layer so later forward passes stay consistent.
func (n *Network) SetInputs(m [][]float64, override bool) (err error) {
	if !shape.Regular(m) {
		return errors.WithMessagef(ErrShapeMismatch, "ragged input matrix with %d rows", len(m))
	}
	got := shape.Of(m)
	if !override {
		if !got.Equal(n.inputShape) {
			return errors.WithMessagef(ErrShapeMismatch, "inputs %s, network expects %s", got, n.inputShape)
		}
		n.inputs = copyMatrix(m)
		n.predicted = false
		n.backValid = false
		return
	}
	err = n.layers[0].SetInputShape(got)
	if err != nil {
		return
	}
	n.inputs = copyMatrix(m)
	n.inputShape = got
	n.layerShapes[0] = got
	err = n.layers[0].SetInputs(n.inputs)
	if err != nil {
		return
	}
	n.predicted = false
	n.backValid = false
	return
}

// SetTarget replaces the target vector.  Without override the length
// must exactly equal the output count.  With override the output
// count, the last layer's output configuration, and the target are
// all updated together.
func (n *Network) SetTarget(v []float64, override bool) (err error) {
	if len(v) != n.numOutputs {
		if !override {
			return errors.WithMessagef(ErrShapeMismatch, "target length %d, network has %d outputs", len(v), n.numOutputs)
		}
		err = n.layers[len(n.layers)-1].SetNumOutputs(len(v))
		if err != nil {
			return
		}
		n.numOutputs = len(v)
	}
	n.target = make([]float64, len(v))
	copy(n.target, v)
	n.predicted = false
	n.backValid = false
	return
}

// Target returns the current target vector.
func (n *Network) Target() (v []float64) {
	v = make([]float64, len(n.target))
	copy(v, n.target)
	return
}

// Weights returns each layer's weight matrix, in forward order.
func (n *Network) Weights() (list [][][]float64) {
	for _, l := range n.layers {
		list = append(list, copyMatrix(l.Weights()))
	}
	return
}

// SetWeights replaces every layer's weights.  The list must contain
// exactly one matrix per layer, each shape-checked against its layer
// before any layer is modified.
func (n *Network) SetWeights(list [][][]float64) (err error) {
	if len(list) != len(n.layers) {
		return errors.WithMessagef(ErrCardinality, "%d weight matrices for %d layers", len(list), len(n.layers))
	}
	for i, l := range n.layers {
		if !shape.Regular(list[i]) {
			return errors.WithMessagef(ErrShapeMismatch, "weights %d are ragged", i)
		}
		got := shape.Of(list[i])
		want := shape.Of(l.Weights())
		if !got.Equal(want) {
			return errors.WithMessagef(ErrShapeMismatch, "weights %d are %s, layer expects %s", i, got, want)
		}
	}
	for i, l := range n.layers {
		err = l.SetWeights(list[i])
		Assert(err == nil, "pre-validated weights rejected: %v", err)
	}
	n.predicted = false
	n.backValid = false
	return
}

// SetUpdateParams gives all layers the same update params.
func (n *Network) SetUpdateParams(p update.Params) {
	for _, l := range n.layers {
		l.SetUpdateParams(p)
	}
}

// SetUpdateParamsList gives each layer its own update params.  The
// list must contain exactly one entry per layer.
func (n *Network) SetUpdateParamsList(list []update.Params) (err error) {
	if len(list) != len(n.layers) {
		return errors.WithMessagef(ErrCardinality, "%d params for %d layers", len(list), len(n.layers))
	}
	for i, l := range n.layers {
		l.SetUpdateParams(list[i])
	}
	return
}

// SetActivations gives all layers the same activation.
func (n *Network) SetActivations(name string) (err error) {
	_, err = lookupActivation(name)
	if err != nil {
		return
	}
	for _, l := range n.layers {
		err = l.SetActivation(name)
		if err != nil {
			return
		}
	}
	n.predicted = false
	n.backValid = false
	return
}

// SetActivationsList gives each layer its own activation.  The list
// must contain exactly one name per layer, all validated before any
// layer is modified.
func (n *Network) SetActivationsList(names []string) (err error) {
	if len(names) != len(n.layers) {
		return errors.WithMessagef(ErrCardinality, "%d activations for %d layers", len(names), len(n.layers))
	}
	for _, name := range names {
		_, err = lookupActivation(name)
		if err != nil {
			return
		}
	}
	for i, l := range n.layers {
		err = l.SetActivation(names[i])
		Assert(err == nil, "pre-validated activation rejected: %v", err)
	}
	n.predicted = false
	n.backValid = false
	return
}

// SetLossFunc selects the loss function by registry name.
func (n *Network) SetLossFunc(name string) (err error) {
	pair, err := loss.Lookup(name)
	if err != nil {
		return
	}
	n.lossPair = pair
	n.predicted = false
	n.backValid = false
	return
}

// SetLossPair injects a custom loss pair, bypassing the registry.
func (n *Network) SetLossPair(p loss.Pair) (err error) {
	if p.Cost == nil || p.Deriv == nil {
		return errors.New("loss pair must provide both cost and deriv")
	}
	n.lossPair = p
	n.predicted = false
	n.backValid = false
	return
}

// Outputs returns the output vector of the last forward pass.
func (n *Network) Outputs() (v []float64) {
	v = make([]float64, len(n.outputs))
	copy(v, n.outputs)
	return
}

// ScalarLoss returns the scalar loss of the last forward pass.
func (n *Network) ScalarLoss() float64 {
	return n.scalar
}

// LossGradient returns the loss gradient of the last forward pass.
func (n *Network) LossGradient() (v []float64) {
	v = make([]float64, len(n.lossDeriv))
	copy(v, n.lossDeriv)
	return
}

// Gradient returns the first layer's weight gradient -- how error
// reaches the network's earliest transformation.  Defined only after
// a backward pass, and stale after a weight update.
func (n *Network) Gradient() (grad [][]float64, err error) {
	if !n.backValid {
		return nil, errors.WithMessage(ErrOrdering, "network gradient")
	}
	return copyMatrix(n.gradient), nil
}

// ErrGradients returns each layer's (error term, gradient) pair, in
// forward order.  Defined only after a backward pass.
func (n *Network) ErrGradients() (errs [][]float64, grads [][][]float64, err error) {
	if !n.backValid {
		return nil, nil, errors.WithMessage(ErrOrdering, "layer gradients")
	}
	for _, l := range n.layers {
		e, lerr := l.Err()
		if lerr != nil {
			return nil, nil, lerr
		}
		g, lerr := l.Gradient()
		if lerr != nil {
			return nil, nil, lerr
		}
		ecopy := make([]float64, len(e))
		copy(ecopy, e)
		errs = append(errs, ecopy)
		grads = append(grads, copyMatrix(g))
	}
	return
}

// TrainingLoss returns the per-iteration loss history, one entry per
// completed training iteration.
func (n *Network) TrainingLoss() (history []float64) {
	history = make([]float64, len(n.history))
	copy(history, n.history)
	return
}

// Randomize sets all layer weights to random values.
func (n *Network) Randomize() {
	for _, l := range n.layers {
		l.Randomize()
	}
	n.predicted = false
	n.backValid = false
}

// Zero sets all layer weights to zero.  The weights go through each
// layer's SetWeights so the result does not depend on whether
// Weights() aliases the layer's own storage.
func (n *Network) Zero() {
	for _, l := range n.layers {
		w := l.Weights()
		z := make([][]float64, len(w))
		for j := range z {
			z[j] = make([]float64, len(w[j]))
		}
		err := l.SetWeights(z)
		Assert(err == nil, "layer rejected zero weights of its own shape: %v", err)
	}
	n.predicted = false
	n.backValid = false
}

// Clone returns a deep copy of the network under a new name.  The
// clone shares no state with the original; training one leaves the
// other untouched.
func (n *Network) Clone(newName string) (clone *Network, err error) {
	layers := make([]Layer, len(n.layers))
	for i, l := range n.layers {
		layers[i], err = l.Clone()
		if err != nil {
			return nil, err
		}
	}
	clone = &Network{Name: newName, lossPair: n.lossPair}
	err = clone.SetLayers(layers)
	if err != nil {
		return nil, err
	}
	if n.inputs != nil {
		clone.inputs = copyMatrix(n.inputs)
	}
	if n.target != nil {
		clone.target = make([]float64, len(n.target))
		copy(clone.target, n.target)
	}
	return
}

// copyMatrix returns a deep copy of m.
func copyMatrix(m [][]float64) (out [][]float64) {
	out = make([][]float64, len(m))
	for i := range m {
		out[i] = make([]float64, len(m[i]))
		copy(out[i], m[i])
	}
	return
}
