// Package readout implements the blocks that compute per-graph properties from node embeddings: a
// segmented reduction of the nodes of each graph in a batch (Reduce), and the Node2Prop1 (EGNN) and
// Node2Prop2 (SchNet) readout blocks built on top of it.
package readout

import (
	"github.com/gomlx/atomgnn/types/errdefs"
	"github.com/gomlx/atomgnn/types/tensors"
	"github.com/pkg/errors"
	"github.com/viterin/vek"
)

// Aggregation selects how the rows of the nodes of a graph are reduced.
type Aggregation int

const (
	// AggregationAdd sums the rows of each graph.
	AggregationAdd Aggregation = iota

	// AggregationMean averages the rows of each graph.
	AggregationMean
)

//go:generate enumer -type=Aggregation -trimprefix=Aggregation -transform=snake -values -text -json -yaml reduce.go

// GroupSizes validates a batch-assignment vector and returns the number of members of each group.
//
// The number of groups is max(batch)+1, and every group in 0..max(batch) must have at least one member.
// If batch is nil, all numRows rows belong to a single group.
//
// Errors wrap errdefs.ErrInvalidGroup (empty or negative groups) or errdefs.ErrShapeMismatch (batch
// is not an integer vector of length numRows).
func GroupSizes(batch *tensors.Tensor, numRows int) ([]int, error) {
	if batch == nil {
		if numRows == 0 {
			return nil, errors.Wrap(errdefs.ErrInvalidGroup, "no batch-assignment vector and no rows: the single group is empty")
		}
		return []int{numRows}, nil
	}
	if !tensors.IsInteger(batch.DType()) || batch.Rank() != 1 {
		return nil, errors.Wrapf(errdefs.ErrShapeMismatch, "batch-assignment must be an integer vector, got %s", batch.Shape())
	}
	if batch.Size() != numRows {
		return nil, errors.Wrapf(errdefs.ErrShapeMismatch, "batch-assignment has length %d, but there are %d rows",
			batch.Size(), numRows)
	}
	if numRows == 0 {
		return nil, errors.Wrap(errdefs.ErrInvalidGroup, "empty batch-assignment vector: no groups")
	}
	ordinals := tensors.CopyFlatDataAs[int64](batch)
	var maxOrdinal int64
	for ii, ordinal := range ordinals {
		if ordinal < 0 {
			return nil, errors.Wrapf(errdefs.ErrInvalidGroup, "negative group ordinal %d at position %d", ordinal, ii)
		}
		maxOrdinal = max(maxOrdinal, ordinal)
	}
	if maxOrdinal >= int64(numRows) {
		// There are more groups than rows, so some must be empty.
		return nil, errors.Wrapf(errdefs.ErrInvalidGroup, "max group ordinal %d implies %d groups, but there are only %d rows",
			maxOrdinal, maxOrdinal+1, numRows)
	}
	sizes := make([]int, maxOrdinal+1)
	for _, ordinal := range ordinals {
		sizes[ordinal]++
	}
	for group, size := range sizes {
		if size == 0 {
			return nil, errors.Wrapf(errdefs.ErrInvalidGroup, "group %d of 0..%d has no members", group, maxOrdinal)
		}
	}
	return sizes, nil
}

// Reduce the rows of x (shape `[N, D]`, float) grouped by the batch-assignment vector batch (integer, length N),
// returning a tensor of shape `[B, D]` with B = max(batch)+1: one row per group, in ordinal order.
//
// If batch is nil, all rows are reduced into one group (B = 1).
//
// The output has the dtype of x and is placed on its device. See GroupSizes for the validation of batch.
func Reduce(x, batch *tensors.Tensor, aggregation Aggregation) (*tensors.Tensor, error) {
	if x == nil {
		return nil, errors.Wrap(errdefs.ErrMissingField, "reduction requires node embeddings")
	}
	if !tensors.IsFloat(x.DType()) || x.Rank() != 2 {
		return nil, errors.Wrapf(errdefs.ErrShapeMismatch, "reduction requires a 2D float tensor of node embeddings, got %s",
			x.Shape())
	}
	if !aggregation.IsAAggregation() {
		return nil, errors.Wrapf(errdefs.ErrInvalidConfig, "invalid aggregation %s, options are %v", aggregation, AggregationValues())
	}
	numRows, numFeatures := x.Shape().Dim(0), x.Shape().Dim(1)
	sizes, err := GroupSizes(batch, numRows)
	if err != nil {
		return nil, err
	}
	var ordinals []int64
	if batch != nil {
		ordinals = tensors.CopyFlatDataAs[int64](batch)
	}

	values := tensors.CopyFlatDataAs[float64](x)
	output := make([]float64, len(sizes)*numFeatures)
	for row := range numRows {
		var group int64
		if ordinals != nil {
			group = ordinals[row]
		}
		vek.Add_Inplace(output[group*int64(numFeatures):(group+1)*int64(numFeatures)],
			values[row*numFeatures:(row+1)*numFeatures])
	}
	if aggregation == AggregationMean {
		for group, size := range sizes {
			vek.DivNumber_Inplace(output[group*numFeatures:(group+1)*numFeatures], float64(size))
		}
	}
	result := tensors.FromFlatDataAndDimensions(output, len(sizes), numFeatures).ConvertDType(x.DType())
	return result.OnDevice(x.Device()), nil
}
