package layers

import (
	"strings"
	"testing"

	"github.com/gomlx/atomgnn/ml/initializers"
	"github.com/gomlx/atomgnn/ml/layers/activations"
	"github.com/gomlx/atomgnn/types/tensors"
	"github.com/gomlx/atomgnn/types/xslices"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDense(t *testing.T) {
	d := NewDense(2, 3, true, 0)
	d.SetWeights(tensors.FromValue([][]float64{{1, 2, 3}, {4, 5, 6}}))
	d.SetBias(tensors.FromValue([]float32{0.5, 0, -0.5}))
	y := d.Forward(tensors.FromValue([][]float32{{1, 1}, {0, 2}}))
	assert.Equal(t, dtypes.Float32, y.DType())
	assert.Equal(t, [][]float32{{5.5, 7, 8.5}, {8.5, 10, 11.5}}, y.Value())
	assert.Equal(t, 9, d.NumParameters())

	// No rows.
	zeroRows := d.Forward(tensors.FromValue([][]float64{{}}).Reshape(0, 2))
	assert.Equal(t, []int{0, 3}, zeroRows.Shape().Dimensions)

	// Invalid inputs panic.
	require.Panics(t, func() { d.Forward(tensors.FromValue([][]float32{{1, 2, 3}})) })
	require.Panics(t, func() { d.Forward(tensors.FromValue([][]int64{{1, 2}})) })
	require.Panics(t, func() { NewDense(0, 1, false, 0) })
	require.Panics(t, func() { NewDense(2, 2, false, 0).SetBias(tensors.FromValue([]float32{1, 2})) })
}

func TestDenseReset(t *testing.T) {
	d := NewDense(8, 4, true, 42)
	initial := d.Weights()
	limit := 1.0 // sqrt(6/(8+4)) < 1
	weights := tensors.CopyFlatData[float64](initial)
	assert.Less(t, xslices.Max(weights), limit)
	assert.Equal(t, make([]float64, 4), d.Bias().Value())

	d.SetWeights(tensors.FromScalarAndDimensions(0.0, 8, 4))
	d.SetBias(tensors.FromScalarAndDimensions(1.0, 4))
	d.ResetParameters()
	assert.True(t, initial.Equal(d.Weights()), "reset must be deterministic")
	assert.Equal(t, make([]float64, 4), d.Bias().Value())

	// Different seed, different weights.
	assert.False(t, initial.Equal(NewDense(8, 4, true, 43).Weights()))
	assert.Nil(t, NewDense(8, 4, false, 42).Bias())

	ones := NewDense(2, 2, false, 0).WithInitializer(initializers.One)
	assert.Equal(t, [][]float64{{1, 1}, {1, 1}}, ones.Weights().Value())
}

// countingModule counts the calls to ResetParameters.
type countingModule struct {
	resets int
}

func (m *countingModule) Forward(x *tensors.Tensor) *tensors.Tensor { return x }
func (m *countingModule) ResetParameters()                          { m.resets++ }

func TestSequential(t *testing.T) {
	counting := &countingModule{}
	dense := NewDense(2, 2, true, 1)
	dense.SetWeights(tensors.FromValue([][]float64{{1, 0}, {0, -1}}))
	seq := NewSequential(dense, NewActivation(activations.TypeRelu), counting)

	children := seq.Children()
	require.Len(t, children, 3)
	assert.True(t, children[0].Resettable())
	assert.False(t, children[1].Resettable())
	assert.True(t, children[2].Resettable())

	y := seq.Forward(tensors.FromValue([][]float64{{1, 2}, {-3, -4}}))
	assert.Equal(t, [][]float64{{1, 0}, {0, 4}}, y.Value())
	assert.Equal(t, 6, seq.NumParameters())

	seq.ResetParameters()
	assert.Equal(t, 1, counting.resets)
	assert.True(t, dense.Weights().Equal(NewDense(2, 2, true, 1).Weights()))
	assert.True(t, strings.HasPrefix(seq.String(), "Sequential(Dense(2->2, bias=true), Activation(relu), "))

	require.Panics(t, func() { NewSequential(nil) })
}
