package graphs

import (
	"testing"

	"github.com/gomlx/atomgnn/ml/data/keys"
	"github.com/gomlx/atomgnn/types/errdefs"
	"github.com/gomlx/atomgnn/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeGraph returns a record with numNodes atoms, positions and the given edge index.
func makeGraph(numNodes int, edgeIndex [][]int64) *Record {
	atomicNum := make([]int64, numNodes)
	positions := make([]float32, 3*numNodes)
	for ii := range numNodes {
		atomicNum[ii] = int64(ii + 1)
		positions[3*ii] = float32(ii)
	}
	return NewRecord().
		Set(keys.AtomicNum, tensors.FromFlatDataAndDimensions(atomicNum, numNodes)).
		Set(keys.Position, tensors.FromFlatDataAndDimensions(positions, numNodes, 3)).
		Set(keys.EdgeIndex, tensors.FromValue(edgeIndex))
}

func TestCollateEdgeShift(t *testing.T) {
	g0 := makeGraph(3, [][]int64{{0, 1}, {1, 2}})
	g1 := makeGraph(2, [][]int64{{0, 1}, {1, 0}})
	batch, err := NewCollater(tensors.CPU).Collate([]*Record{g0, g1})
	require.NoError(t, err)

	assert.Equal(t, [][]int64{{0, 1, 3, 4}, {1, 2, 4, 3}}, batch.Get(keys.EdgeIndex).Value())
	assert.Equal(t, []int64{0, 0, 0, 1, 1}, batch.Get(keys.Batch).Value())
	assert.Equal(t, []int64{1, 2, 3, 1, 2}, batch.Get(keys.AtomicNum).Value())
	assert.Equal(t, []int{5, 3}, batch.Get(keys.Position).Shape().Dimensions)
	assert.Equal(t, 2, batch.NumGraphs())
	assert.Equal(t, 4, batch.NumEdges())

	// Input records are not modified.
	assert.Equal(t, [][]int64{{0, 1}, {1, 0}}, g1.Get(keys.EdgeIndex).Value())
	assert.False(t, g0.Has(keys.Batch))
}

func TestCollateBatchAssignment(t *testing.T) {
	nodeCounts := []int{4, 0, 1, 3, 2}
	records := make([]*Record, len(nodeCounts))
	total := 0
	for ii, n := range nodeCounts {
		records[ii] = makeGraph(n, [][]int64{{}, {}})
		total += n
	}
	batch, err := NewCollater(tensors.CPU).Collate(records)
	require.NoError(t, err)
	assignment := tensors.CopyFlatData[int64](batch.Get(keys.Batch))
	require.Len(t, assignment, total)
	counts := make([]int, len(nodeCounts))
	for _, graphIdx := range assignment {
		counts[graphIdx]++
	}
	assert.Equal(t, nodeCounts, counts)
	// Contiguous and in input order.
	for ii := 1; ii < len(assignment); ii++ {
		assert.LessOrEqual(t, assignment[ii-1], assignment[ii])
	}
}

func TestCollateSingleGraph(t *testing.T) {
	g := makeGraph(3, [][]int64{{0, 1, 2}, {1, 2, 0}})
	batch, err := NewCollater(tensors.CPU).Collate([]*Record{g})
	require.NoError(t, err)
	for key, value := range g.All() {
		assert.Truef(t, value.Equal(batch.Get(key)), "field %q changed", key)
	}
	assert.Equal(t, []int64{0, 0, 0}, batch.Get(keys.Batch).Value())
	assert.Equal(t, append(g.Keys(), keys.Batch), batch.Keys())
}

func TestCollateErrors(t *testing.T) {
	c := NewCollater(tensors.CPU)
	_, err := c.Collate(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errdefs.ErrInvalidBatch))

	// Missing atomic numbers.
	noAtoms := NewRecord().Set(keys.Position, tensors.FromValue([][]float32{{0, 0, 0}}))
	_, err = c.Collate([]*Record{noAtoms})
	assert.True(t, errors.Is(err, errdefs.ErrMissingField))

	// Different trailing dimensions.
	g0 := makeGraph(2, [][]int64{{0}, {1}})
	g1 := makeGraph(2, [][]int64{{0}, {1}})
	g1.Set(keys.Position, tensors.FromValue([][]float32{{0, 0}, {1, 1}}))
	_, err = c.Collate([]*Record{g0, g1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errdefs.ErrShapeMismatch))
	assert.Contains(t, err.Error(), "record #1")

	// Malformed edge index.
	bad := makeGraph(2, [][]int64{{0, 1}, {1, 0}})
	bad.Set(keys.EdgeIndex, tensors.FromValue([][]int64{{0, 1}}))
	_, err = c.Collate([]*Record{bad})
	assert.True(t, errors.Is(err, errdefs.ErrShapeMismatch))
	bad.Set(keys.EdgeIndex, tensors.FromValue([][]float32{{0}, {1}}))
	_, err = c.Collate([]*Record{bad})
	assert.True(t, errors.Is(err, errdefs.ErrShapeMismatch))
}

func TestCollateValidation(t *testing.T) {
	outOfRange := makeGraph(2, [][]int64{{0, 2}, {1, 0}})
	_, err := NewCollater(tensors.CPU).Collate([]*Record{outOfRange})
	require.NoError(t, err, "without validation edge indices are not checked")
	_, err = NewCollater(tensors.CPU).WithValidation(true).Collate([]*Record{outOfRange})
	assert.True(t, errors.Is(err, errdefs.ErrInvalidEdgeIndex))

	wrongRows := makeGraph(2, [][]int64{{0}, {1}})
	wrongRows.Set(keys.EdgeAttr, tensors.FromValue([][]float32{{1}, {2}}))
	_, err = NewCollater(tensors.CPU).WithValidation(true).Collate([]*Record{wrongRows})
	assert.True(t, errors.Is(err, errdefs.ErrShapeMismatch))
}

func TestCollateDTypes(t *testing.T) {
	g0 := makeGraph(1, [][]int64{{0}, {0}})
	g0.Set(keys.Target, tensors.FromValue(float32(1.5)))
	g1 := makeGraph(2, [][]int64{{0}, {1}})
	g1.Set(keys.Target, tensors.FromValue(2.25))                            // float64: cast to float32.
	g1.Set(keys.EdgeIndex, tensors.FromValue([][]int32{{0, 1}, {1, 0}})) // int32: cast to int64.
	g1.Set(keys.Batch, tensors.FromValue([]int64{7, 7}))                   // Ignored.

	batch, err := NewCollater("gpu:1").WithBatchDType(dtypes.Int32).Collate([]*Record{g0, g1})
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, 2.25}, batch.Get(keys.Target).Value())
	assert.Equal(t, [][]int64{{0, 1, 2}, {0, 2, 1}}, batch.Get(keys.EdgeIndex).Value())

	batchVector := batch.Get(keys.Batch)
	assert.Equal(t, dtypes.Int32, batchVector.DType())
	assert.Equal(t, []int32{0, 1, 1}, batchVector.Value())
	assert.Equal(t, tensors.Device("gpu:1"), batchVector.Device())
	assert.Equal(t, tensors.CPU, batch.Get(keys.Position).Device())

	require.Panics(t, func() { NewCollater(tensors.CPU).WithBatchDType(dtypes.Float32) })
}

func TestCollateUnionOfFields(t *testing.T) {
	charge := keys.Node("charge")
	g0 := makeGraph(2, [][]int64{{0}, {1}})
	g0.Set(charge, tensors.FromValue([]float32{0.5, -0.5}))
	g1 := makeGraph(1, [][]int64{{}, {}})
	batch, err := NewCollater(tensors.CPU).Collate([]*Record{g0, g1})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.5}, batch.Get(charge).Value())

	// With validation, the batched field must have one row per node of the batch.
	_, err = NewCollater(tensors.CPU).WithValidation(true).Collate([]*Record{g0, g1})
	assert.True(t, errors.Is(err, errdefs.ErrShapeMismatch), "got %v", err)
	g1.Set(charge, tensors.FromValue([]float32{1}))
	batch, err = NewCollater(tensors.CPU).WithValidation(true).Collate([]*Record{g0, g1})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.5, 1}, batch.Get(charge).Value())
}

func TestCollateIntegerOverflow(t *testing.T) {
	// Shifted indices of the second graph (100..199) don't fit the int8 edge index of the first.
	makeInt8Graph := func() *Record {
		r := makeGraph(100, [][]int64{{}, {}})
		return r.Set(keys.EdgeIndex, tensors.FromValue([][]int8{{0}, {99}}))
	}
	_, err := NewCollater(tensors.CPU).WithValidation(true).Collate([]*Record{makeInt8Graph(), makeInt8Graph()})
	assert.True(t, errors.Is(err, errdefs.ErrShapeMismatch), "got %v", err)

	// The first-seen dtype is the one checked: an int64 edge index after an int8 one is also rejected.
	wide := makeGraph(100, [][]int64{{0}, {99}})
	_, err = NewCollater(tensors.CPU).Collate([]*Record{makeInt8Graph(), wide})
	assert.True(t, errors.Is(err, errdefs.ErrShapeMismatch), "got %v", err)

	// Shifts that fit are fine.
	small := makeGraph(2, [][]int64{{}, {}}).Set(keys.EdgeIndex, tensors.FromValue([][]int8{{0}, {1}}))
	batch, err := NewCollater(tensors.CPU).Collate([]*Record{makeInt8Graph(), small})
	require.NoError(t, err)
	assert.Equal(t, [][]int8{{0, 100}, {99, 101}}, batch.Get(keys.EdgeIndex).Value())

	// 300 graphs can't be numbered with uint8 ordinals.
	records := make([]*Record, 300)
	for ii := range records {
		records[ii] = makeGraph(1, [][]int64{{}, {}})
	}
	_, err = NewCollater(tensors.CPU).WithBatchDType(dtypes.Uint8).Collate(records)
	assert.True(t, errors.Is(err, errdefs.ErrInvalidConfig), "got %v", err)
	batch, err = NewCollater(tensors.CPU).WithBatchDType(dtypes.Uint8).Collate(records[:256])
	require.NoError(t, err)
	assert.Equal(t, uint8(255), tensors.CopyFlatData[uint8](batch.Get(keys.Batch))[255])
}
