package stratum

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/stratum/shape"
	"github.com/stevegt/stratum/update"
)

func init() {
	rand.Seed(1)
}

// mkDense builds a dense layer for tests, SGD rule with a fixed
// learning rate.
func mkDense(t *testing.T, in shape.Shape, numOut int, act string) (l *Dense) {
	l, err := NewDense(in, numOut, act, update.NewSGD(), update.SGDParams{LR: 0.1})
	Tassert(t, err == nil, err)
	return
}

func TestDenseForwardLinear(t *testing.T) {
	l := mkDense(t, shape.Vec(3), 1, "linear")
	err := l.SetWeights([][]float64{{1, -1, 0.5}})
	Tassert(t, err == nil, err)
	err = l.SetInputs([][]float64{{2}, {3}, {4}})
	Tassert(t, err == nil, err)
	err = l.Forward()
	Tassert(t, err == nil, err)
	z := l.Outputs()
	// 2 - 3 + 2
	Tassert(t, len(z) == 1, z)
	Tassert(t, math.Abs(z[0]-1.0) < 1e-12, z)
}

func TestDenseForwardSigmoid(t *testing.T) {
	l := mkDense(t, shape.Vec(3), 1, "sigmoid")
	err := l.SetWeights([][]float64{{1, -1, 0.5}})
	Tassert(t, err == nil, err)
	err = l.SetInputs([][]float64{{2}, {3}, {4}})
	Tassert(t, err == nil, err)
	err = l.Forward()
	Tassert(t, err == nil, err)
	want := 1.0 / (1.0 + math.Exp(-1.0))
	z := l.Outputs()
	Tassert(t, math.Abs(z[0]-want) < 1e-12, z)
}

func TestDenseMatrixInput(t *testing.T) {
	// a (2 x 2) input matrix is flattened row-major
	l := mkDense(t, shape.New(2, 2), 1, "linear")
	err := l.SetWeights([][]float64{{1, 2, 3, 4}})
	Tassert(t, err == nil, err)
	err = l.SetInputs([][]float64{{1, 1}, {1, 1}})
	Tassert(t, err == nil, err)
	err = l.Forward()
	Tassert(t, err == nil, err)
	Tassert(t, math.Abs(l.Outputs()[0]-10.0) < 1e-12, l.Outputs())
}

func TestDenseBackwardTerminal(t *testing.T) {
	l := mkDense(t, shape.Vec(3), 1, "linear")
	err := l.SetWeights([][]float64{{1, -1, 0.5}})
	Tassert(t, err == nil, err)
	err = l.SetInputs([][]float64{{2}, {3}, {4}})
	Tassert(t, err == nil, err)
	err = l.Forward()
	Tassert(t, err == nil, err)

	err = l.BackwardOutput([]float64{2.0})
	Tassert(t, err == nil, err)
	e, err := l.Err()
	Tassert(t, err == nil, err)
	Tassert(t, math.Abs(e[0]-2.0) < 1e-12, e)
	g, err := l.Gradient()
	Tassert(t, err == nil, err)
	// grad = err * inputs
	Tassert(t, math.Abs(g[0][0]-4.0) < 1e-12, g)
	Tassert(t, math.Abs(g[0][1]-6.0) < 1e-12, g)
	Tassert(t, math.Abs(g[0][2]-8.0) < 1e-12, g)
}

func TestDenseBackwardChain(t *testing.T) {
	// two linear layers; hand-checkable numbers
	l1 := mkDense(t, shape.Vec(2), 2, "linear")
	l2 := mkDense(t, shape.Vec(2), 1, "linear")
	Tassert(t, l1.SetWeights([][]float64{{1, 0}, {0, 1}}) == nil, "weights")
	Tassert(t, l2.SetWeights([][]float64{{2, 3}}) == nil, "weights")

	Tassert(t, l1.SetInputs([][]float64{{1}, {2}}) == nil, "inputs")
	Tassert(t, l1.Forward() == nil, "forward")
	Tassert(t, l2.SetInputs(colVec(l1.Outputs())) == nil, "inputs")
	Tassert(t, l2.Forward() == nil, "forward")
	// y = 2*1 + 3*2
	Tassert(t, math.Abs(l2.Outputs()[0]-8.0) < 1e-12, l2.Outputs())

	Tassert(t, l2.BackwardOutput([]float64{1.0}) == nil, "backward")
	err := l1.Backward(l2)
	Tassert(t, err == nil, err)
	e, err := l1.Err()
	Tassert(t, err == nil, err)
	// err_j = w2[0][j] * err2
	Tassert(t, math.Abs(e[0]-2.0) < 1e-12, e)
	Tassert(t, math.Abs(e[1]-3.0) < 1e-12, e)
	g, err := l1.Gradient()
	Tassert(t, err == nil, err)
	Tassert(t, math.Abs(g[0][0]-2.0) < 1e-12, g)
	Tassert(t, math.Abs(g[0][1]-4.0) < 1e-12, g)
	Tassert(t, math.Abs(g[1][0]-3.0) < 1e-12, g)
	Tassert(t, math.Abs(g[1][1]-6.0) < 1e-12, g)
}

func TestDenseOrdering(t *testing.T) {
	l := mkDense(t, shape.Vec(2), 1, "linear")

	err := l.Forward()
	Tassert(t, errors.Is(err, ErrOrdering), err)

	err = l.BackwardOutput([]float64{1.0})
	Tassert(t, errors.Is(err, ErrOrdering), err)

	_, err = l.Err()
	Tassert(t, errors.Is(err, ErrOrdering), err)
	_, err = l.Gradient()
	Tassert(t, errors.Is(err, ErrOrdering), err)

	err = l.UpdateWeights()
	Tassert(t, errors.Is(err, ErrOrdering), err)
}

func TestDenseShapeErrors(t *testing.T) {
	l := mkDense(t, shape.Vec(2), 1, "linear")

	err := l.SetInputs([][]float64{{1}, {2}, {3}})
	Tassert(t, errors.Is(err, ErrShapeMismatch), err)

	err = l.SetWeights([][]float64{{1, 2, 3}})
	Tassert(t, errors.Is(err, ErrShapeMismatch), err)

	err = l.SetInputs([][]float64{{1}, {2, 3}})
	Tassert(t, errors.Is(err, ErrShapeMismatch), err)

	err = l.SetWeights([][]float64{{1, 2}, {3}})
	Tassert(t, errors.Is(err, ErrShapeMismatch), err)

	_, err = NewDense(shape.Vec(2), 0, "linear", nil, nil)
	Tassert(t, errors.Is(err, ErrShapeMismatch), err)
}

func TestDenseUnknownActivation(t *testing.T) {
	_, err := NewDense(shape.Vec(2), 1, "nope", nil, nil)
	Tassert(t, errors.Is(err, ErrUnknownActivation), err)

	l := mkDense(t, shape.Vec(2), 1, "linear")
	err = l.SetActivation("nope")
	Tassert(t, errors.Is(err, ErrUnknownActivation), err)
}

func TestDenseUpdate(t *testing.T) {
	l := mkDense(t, shape.Vec(2), 1, "linear")
	Tassert(t, l.SetWeights([][]float64{{1, 1}}) == nil, "weights")
	Tassert(t, l.SetInputs([][]float64{{1}, {2}}) == nil, "inputs")
	Tassert(t, l.Forward() == nil, "forward")
	Tassert(t, l.BackwardOutput([]float64{1.0}) == nil, "backward")

	err := l.UpdateWeights()
	Tassert(t, err == nil, err)
	w := l.Weights()
	// w -= 0.1 * grad, grad = {1, 2}
	Tassert(t, math.Abs(w[0][0]-0.9) < 1e-12, w)
	Tassert(t, math.Abs(w[0][1]-0.8) < 1e-12, w)

	// gradient is stale after the update
	_, err = l.Gradient()
	Tassert(t, errors.Is(err, ErrOrdering), err)
}

func TestDenseNoParams(t *testing.T) {
	l, err := NewDense(shape.Vec(2), 1, "linear", update.NewSGD(), nil)
	Tassert(t, err == nil, err)
	Tassert(t, l.SetInputs([][]float64{{1}, {2}}) == nil, "inputs")
	Tassert(t, l.Forward() == nil, "forward")
	Tassert(t, l.BackwardOutput([]float64{1.0}) == nil, "backward")
	err = l.UpdateWeights()
	Tassert(t, errors.Is(err, ErrNoParams), err)

	// params can be set independently of the update call
	l.SetUpdateParams(update.SGDParams{LR: 0.1})
	err = l.UpdateWeights()
	Tassert(t, err == nil, err)
}

func TestDenseReshape(t *testing.T) {
	l := mkDense(t, shape.Vec(2), 1, "linear")

	// same total size keeps the weights
	Tassert(t, l.SetWeights([][]float64{{1, 2}}) == nil, "weights")
	err := l.SetInputShape(shape.New(1, 2))
	Tassert(t, err == nil, err)
	w := l.Weights()
	Tassert(t, w[0][0] == 1 && w[0][1] == 2, w)

	// different size rebuilds them
	err = l.SetInputShape(shape.Vec(3))
	Tassert(t, err == nil, err)
	Tassert(t, len(l.Weights()[0]) == 3, l.Weights())

	err = l.SetNumOutputs(4)
	Tassert(t, err == nil, err)
	Tassert(t, len(l.Weights()) == 4, l.Weights())
}

func TestDenseClone(t *testing.T) {
	l := mkDense(t, shape.Vec(2), 1, "linear")
	Tassert(t, l.SetWeights([][]float64{{1, 2}}) == nil, "weights")
	c, err := l.Clone()
	Tassert(t, err == nil, err)
	cw := c.Weights()
	Tassert(t, cw[0][0] == 1 && cw[0][1] == 2, cw)

	// clone weights are independent
	cw[0][0] = 99
	Tassert(t, l.Weights()[0][0] == 1, l.Weights())
}
