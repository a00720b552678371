package stratum

import (
	"math/rand"

	"github.com/pkg/errors"
	"github.com/stevegt/stratum/shape"
	"github.com/stevegt/stratum/update"
)

// Dense is a fully connected layer.  The input matrix is flattened
// row-major; each output unit is the activation of a weighted sum of
// all input elements.  The weight matrix has one row per output unit
// and one column per input element.
type Dense struct {
	inShape shape.Shape
	numOut  int

	actName string
	act     Activation

	weights [][]float64

	inputs     []float64 // flattened current input
	haveInputs bool

	preact  []float64
	outputs []float64
	forward bool

	errTerm []float64
	grad    [][]float64
	back    bool

	ruleName string
	rule     update.Rule
	params   update.Params
}

// NewDense creates a dense layer with randomized weights.  rule may
// be nil, in which case plain SGD is used; params may be nil and set
// later with SetUpdateParams.
func NewDense(in shape.Shape, numOut int, activation string, rule update.Rule, params update.Params) (l *Dense, err error) {
	if in.Size() < 1 {
		return nil, errors.WithMessagef(ErrShapeMismatch, "input shape %s is empty", in)
	}
	if numOut < 1 {
		return nil, errors.WithMessagef(ErrShapeMismatch, "output size %d", numOut)
	}
	act, err := lookupActivation(activation)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		rule = update.NewSGD()
	}
	l = &Dense{
		inShape:  in,
		numOut:   numOut,
		actName:  activation,
		act:      act,
		ruleName: rule.Name(),
		rule:     rule,
		params:   params,
	}
	l.rebuild()
	return
}

// rebuild allocates randomized weights and drops all derived state.
func (l *Dense) rebuild() {
	l.weights = make([][]float64, l.numOut)
	for j := range l.weights {
		l.weights[j] = make([]float64, l.inShape.Size())
	}
	l.Randomize()
	l.invalidate()
}

// invalidate drops forward and backward results.
func (l *Dense) invalidate() {
	l.forward = false
	l.back = false
}

// InputShape returns the declared input matrix shape.
func (l *Dense) InputShape() shape.Shape {
	return l.inShape
}

// SetInputShape redeclares the input shape.  A change in total size
// is incompatible with the current weights, so the weight matrix is
// rebuilt (randomized) in that case.
func (l *Dense) SetInputShape(s shape.Shape) (err error) {
	if s.Size() < 1 {
		return errors.WithMessagef(ErrShapeMismatch, "input shape %s is empty", s)
	}
	resize := s.Size() != l.inShape.Size()
	l.inShape = s
	l.haveInputs = false
	if resize {
		l.rebuild()
	} else {
		l.invalidate()
	}
	return
}

// NumOutputs returns the length of the output vector.
func (l *Dense) NumOutputs() int {
	return l.numOut
}

// SetNumOutputs resizes the output vector, rebuilding the weights.
func (l *Dense) SetNumOutputs(n int) (err error) {
	if n < 1 {
		return errors.WithMessagef(ErrShapeMismatch, "output size %d", n)
	}
	if n == l.numOut {
		return
	}
	l.numOut = n
	l.rebuild()
	return
}

// SetInputs replaces the layer's current input matrix.  The matrix
// is flattened row-major, so any rectangular layout holding exactly
// the declared number of elements is accepted; predecessor layers
// feed n x 1 column vectors regardless of the declared shape.
func (l *Dense) SetInputs(m [][]float64) (err error) {
	if !shape.Regular(m) {
		return errors.WithMessagef(ErrShapeMismatch, "ragged input matrix with %d rows", len(m))
	}
	got := shape.Of(m)
	if got.Size() != l.inShape.Size() {
		return errors.WithMessagef(ErrShapeMismatch, "inputs %s, layer expects %s", got, l.inShape)
	}
	if len(l.inputs) != l.inShape.Size() {
		l.inputs = make([]float64, l.inShape.Size())
	}
	k := 0
	for i := range m {
		for j := range m[i] {
			l.inputs[k] = m[i][j]
			k++
		}
	}
	l.haveInputs = true
	l.invalidate()
	return
}

// Forward fully recomputes the outputs from the current inputs.
func (l *Dense) Forward() (err error) {
	if !l.haveInputs {
		return errors.WithMessage(ErrOrdering, "forward pass before inputs set")
	}
	if l.preact == nil || len(l.preact) != l.numOut {
		l.preact = make([]float64, l.numOut)
		l.outputs = make([]float64, l.numOut)
	}
	for j := 0; j < l.numOut; j++ {
		sum := 0.0
		w := l.weights[j]
		for i, in := range l.inputs {
			sum += w[i] * in
		}
		l.preact[j] = sum
		l.outputs[j] = l.act.F(sum)
	}
	l.forward = true
	l.back = false
	return
}

// Outputs returns the output vector of the last Forward call.
func (l *Dense) Outputs() []float64 {
	return l.outputs
}

// BackwardOutput seeds this layer's error term from the network loss
// gradient.  Terminal layer only.
func (l *Dense) BackwardOutput(lossGrad []float64) (err error) {
	if !l.forward {
		return errors.WithMessage(ErrOrdering, "backward pass before forward pass")
	}
	if len(lossGrad) != l.numOut {
		return errors.WithMessagef(ErrShapeMismatch, "loss gradient length %d, layer has %d outputs", len(lossGrad), l.numOut)
	}
	l.setErr(lossGrad)
	return
}

// Backward derives this layer's error term from its successor's
// error and weights.
func (l *Dense) Backward(next Layer) (err error) {
	if !l.forward {
		return errors.WithMessage(ErrOrdering, "backward pass before forward pass")
	}
	nextErr, err := next.Err()
	if err != nil {
		return errors.WithMessage(err, "successor has no error term")
	}
	nextW := next.Weights()
	if next.InputShape().Size() != l.numOut {
		return errors.WithMessagef(ErrShapeMismatch, "successor expects %d inputs, layer has %d outputs", next.InputShape().Size(), l.numOut)
	}
	// downstream_j = sum_k nextW[k][j] * nextErr[k]
	downstream := make([]float64, l.numOut)
	for k := range nextW {
		for j := 0; j < l.numOut; j++ {
			downstream[j] += nextW[k][j] * nextErr[k]
		}
	}
	l.setErr(downstream)
	return
}

// setErr computes the local error term and weight gradient from the
// incoming error vector.
func (l *Dense) setErr(incoming []float64) {
	if l.errTerm == nil || len(l.errTerm) != l.numOut {
		l.errTerm = make([]float64, l.numOut)
	}
	if l.grad == nil || len(l.grad) != l.numOut || len(l.grad[0]) != len(l.inputs) {
		l.grad = make([][]float64, l.numOut)
		for j := range l.grad {
			l.grad[j] = make([]float64, len(l.inputs))
		}
	}
	for j := 0; j < l.numOut; j++ {
		l.errTerm[j] = incoming[j] * l.act.D1(l.preact[j])
		for i, in := range l.inputs {
			l.grad[j][i] = l.errTerm[j] * in
		}
	}
	l.back = true
}

// Err returns the local error term of the last backward pass.
func (l *Dense) Err() (errTerm []float64, err error) {
	if !l.back {
		return nil, errors.WithMessage(ErrOrdering, "error term not computed")
	}
	return l.errTerm, nil
}

// Gradient returns the weight gradient of the last backward pass.
func (l *Dense) Gradient() (grad [][]float64, err error) {
	if !l.back {
		return nil, errors.WithMessage(ErrOrdering, "gradient not computed")
	}
	return l.grad, nil
}

// Weights returns the weight matrix.
func (l *Dense) Weights() [][]float64 {
	return l.weights
}

// SetWeights replaces the weight matrix.  The supplied matrix must
// have one row per output unit and one column per input element.
func (l *Dense) SetWeights(w [][]float64) (err error) {
	if !shape.Regular(w) {
		return errors.WithMessagef(ErrShapeMismatch, "ragged weight matrix with %d rows", len(w))
	}
	got := shape.Of(w)
	want := shape.New(l.numOut, l.inShape.Size())
	if !got.Equal(want) {
		return errors.WithMessagef(ErrShapeMismatch, "weights %s, layer expects %s", got, want)
	}
	for j := range w {
		copy(l.weights[j], w[j])
	}
	l.invalidate()
	return
}

// Randomize sets the weights to random values in [-1, 1).
func (l *Dense) Randomize() {
	for j := range l.weights {
		for i := range l.weights[j] {
			l.weights[j][i] = rand.Float64()*2 - 1
		}
	}
	l.invalidate()
}

// SetUpdateParams stores rule params for reuse across iterations.
func (l *Dense) SetUpdateParams(p update.Params) {
	l.params = p
}

// UpdateWeights applies one step of the update rule.  The gradient
// from the last backward pass is consumed and goes stale.
func (l *Dense) UpdateWeights() (err error) {
	if !l.back {
		return errors.WithMessage(ErrOrdering, "update before backward pass")
	}
	if l.params == nil {
		return errors.WithMessagef(ErrNoParams, "layer rule %q", l.ruleName)
	}
	err = l.rule.Apply(l.weights, l.grad, l.params)
	if err != nil {
		return
	}
	// post-update gradients are stale until the next full
	// predict/backward cycle
	l.back = false
	return
}

// SetActivation replaces the nonlinearity used by Forward.
func (l *Dense) SetActivation(name string) (err error) {
	act, err := lookupActivation(name)
	if err != nil {
		return
	}
	l.actName = name
	l.act = act
	l.invalidate()
	return
}

// Clone returns a deep copy of the layer with a fresh update-rule
// instance of the same kind.
func (l *Dense) Clone() (clone Layer, err error) {
	rule, err := update.New(l.ruleName)
	if err != nil {
		return nil, errors.WithMessagef(err, "cannot clone layer with unregistered rule %q", l.ruleName)
	}
	c, err := NewDense(l.inShape, l.numOut, l.actName, rule, l.params)
	if err != nil {
		return nil, err
	}
	err = c.SetWeights(l.weights)
	if err != nil {
		return nil, err
	}
	return c, nil
}
