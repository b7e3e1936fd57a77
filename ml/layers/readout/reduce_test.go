package readout

import (
	"testing"

	"github.com/gomlx/atomgnn/types/errdefs"
	"github.com/gomlx/atomgnn/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupSizes(t *testing.T) {
	sizes := must.M1(GroupSizes(tensors.FromValue([]int64{0, 0, 1, 2, 2, 2}), 6))
	assert.Equal(t, []int{2, 1, 3}, sizes)

	// Ordinals need not be sorted.
	sizes = must.M1(GroupSizes(tensors.FromValue([]int32{1, 0, 1}), 3))
	assert.Equal(t, []int{1, 2}, sizes)

	sizes = must.M1(GroupSizes(nil, 4))
	assert.Equal(t, []int{4}, sizes)

	for name, tc := range map[string]struct {
		batch   *tensors.Tensor
		numRows int
		target  error
	}{
		"missing group 0": {tensors.FromValue([]int64{1, 1}), 2, errdefs.ErrInvalidGroup},
		"gap":             {tensors.FromValue([]int64{0, 2, 2}), 3, errdefs.ErrInvalidGroup},
		"negative":        {tensors.FromValue([]int64{0, -1}), 2, errdefs.ErrInvalidGroup},
		"no rows":         {nil, 0, errdefs.ErrInvalidGroup},
		"length mismatch": {tensors.FromValue([]int64{0, 0, 1}), 2, errdefs.ErrShapeMismatch},
		"float batch":     {tensors.FromValue([]float32{0, 1}), 2, errdefs.ErrShapeMismatch},
		"rank 2 batch":    {tensors.FromValue([][]int64{{0, 1}}), 2, errdefs.ErrShapeMismatch},
	} {
		_, err := GroupSizes(tc.batch, tc.numRows)
		require.Errorf(t, err, "case %q", name)
		assert.Truef(t, errors.Is(err, tc.target), "case %q: got %v", name, err)
	}
}

func TestReduce(t *testing.T) {
	x := tensors.FromValue([][]float64{
		{1, 10},
		{2, 20},
		{3, 30},
		{4, 40},
		{5, 50},
	})
	batch := tensors.FromValue([]int64{0, 0, 1, 1, 1})

	sum := must.M1(Reduce(x, batch, AggregationAdd))
	assert.Equal(t, [][]float64{{3, 30}, {12, 120}}, sum.Value())

	mean := must.M1(Reduce(x, batch, AggregationMean))
	assert.Equal(t, [][]float64{{1.5, 15}, {4, 40}}, mean.Value())

	// Without a batch vector, everything is one graph.
	sum = must.M1(Reduce(x, nil, AggregationAdd))
	assert.Equal(t, [][]float64{{15, 150}}, sum.Value())
	mean = must.M1(Reduce(x, nil, AggregationMean))
	assert.Equal(t, [][]float64{{3, 30}}, mean.Value())

	// A single group is the same as no batch vector.
	single := must.M1(Reduce(x, tensors.FromValue([]int64{0, 0, 0, 0, 0}), AggregationAdd))
	assert.Equal(t, sum.Value(), single.Value())

	// The input is left untouched.
	assert.Equal(t, []float64{1, 10}, x.Value().([][]float64)[0])
}

func TestReduceKeepsDTypeAndDevice(t *testing.T) {
	x := tensors.FromValue([][]float32{{1}, {2}, {4}}).OnDevice("accelerator:0")
	y := must.M1(Reduce(x, tensors.FromValue([]int32{0, 1, 1}), AggregationMean))
	assert.Equal(t, dtypes.Float32, y.DType())
	assert.Equal(t, tensors.Device("accelerator:0"), y.Device())
	assert.Equal(t, [][]float32{{1}, {3}}, y.Value())
}

func TestReduceErrors(t *testing.T) {
	x := tensors.FromValue([][]float64{{1}, {2}})

	_, err := Reduce(nil, nil, AggregationAdd)
	assert.True(t, errors.Is(err, errdefs.ErrMissingField))

	_, err = Reduce(tensors.FromValue([]float64{1, 2}), nil, AggregationAdd)
	assert.True(t, errors.Is(err, errdefs.ErrShapeMismatch))

	_, err = Reduce(tensors.FromValue([][]int64{{1}, {2}}), nil, AggregationAdd)
	assert.True(t, errors.Is(err, errdefs.ErrShapeMismatch))

	_, err = Reduce(x, nil, Aggregation(7))
	assert.True(t, errors.Is(err, errdefs.ErrInvalidConfig))

	// The batch only refers to graph 2: graphs 0 and 1 would be empty.
	_, err = Reduce(x, tensors.FromValue([]int64{2, 2}), AggregationMean)
	assert.True(t, errors.Is(err, errdefs.ErrInvalidGroup))

	_, err = Reduce(x, tensors.FromValue([]int64{0}), AggregationMean)
	assert.True(t, errors.Is(err, errdefs.ErrShapeMismatch))
}
