package loss

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	for _, name := range []string{"L2", "mse", "abs", "huber", "crossentropy"} {
		p, err := Lookup(name)
		require.NoError(t, err, name)
		require.NotNil(t, p.Cost, name)
		require.NotNil(t, p.Deriv, name)
	}

	_, err := Lookup("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownLoss))
}

func TestL2(t *testing.T) {
	p := L2()
	outs := []float64{1.0, 2.0}
	targets := []float64{0.0, 0.0}
	// 0.5 * (1 + 4)
	assert.InDelta(t, 2.5, p.Cost(outs, targets), 1e-12)
	ds := p.Deriv(outs, targets)
	assert.InDelta(t, 1.0, ds[0], 1e-12)
	assert.InDelta(t, 2.0, ds[1], 1e-12)
}

func TestMSE(t *testing.T) {
	p := MSE()
	outs := []float64{1.0, 3.0}
	targets := []float64{0.0, 1.0}
	// (0.5*1 + 0.5*4) / 2
	assert.InDelta(t, 1.25, p.Cost(outs, targets), 1e-12)
	ds := p.Deriv(outs, targets)
	assert.InDelta(t, 0.5, ds[0], 1e-12)
	assert.InDelta(t, 1.0, ds[1], 1e-12)
}

func TestAbs(t *testing.T) {
	p := Abs()
	outs := []float64{2.0, -1.0}
	targets := []float64{0.0, 0.0}
	assert.InDelta(t, 1.5, p.Cost(outs, targets), 1e-12)
	ds := p.Deriv(outs, targets)
	assert.InDelta(t, 0.5, ds[0], 1e-12)
	assert.InDelta(t, -0.5, ds[1], 1e-12)
}

func TestHuberRegions(t *testing.T) {
	p := Huber(1.0)

	// inside the quadratic region
	outs := []float64{0.5}
	targets := []float64{0.0}
	assert.InDelta(t, 0.125, p.Cost(outs, targets), 1e-12)
	assert.InDelta(t, 0.5, p.Deriv(outs, targets)[0], 1e-12)

	// outside, the loss grows linearly and the deriv clips
	outs = []float64{3.0}
	// 1*3 - 0.5
	assert.InDelta(t, 2.5, p.Cost(outs, targets), 1e-12)
	assert.InDelta(t, 1.0, p.Deriv(outs, targets)[0], 1e-12)

	outs = []float64{-3.0}
	assert.InDelta(t, -1.0, p.Deriv(outs, targets)[0], 1e-12)
}

func TestCrossEntropy(t *testing.T) {
	p := CrossEntropy()
	outs := []float64{0.5}
	targets := []float64{1.0}
	// -log(0.5)
	assert.InDelta(t, 0.6931471805599453, p.Cost(outs, targets), 1e-12)
	assert.InDelta(t, -2.0, p.Deriv(outs, targets)[0], 1e-12)
}

func TestRegister(t *testing.T) {
	custom := Pair{
		Cost: func(outs, targets []float64) float64 { return 0 },
		Deriv: func(outs, targets []float64) []float64 {
			return make([]float64, len(outs))
		},
	}
	require.NoError(t, Register("zero", custom))
	p, err := Lookup("zero")
	require.NoError(t, err)
	assert.Zero(t, p.Cost([]float64{1}, []float64{2}))

	require.Error(t, Register("L2", custom))
}
