package graphs

import (
	"github.com/gomlx/atomgnn/ml/data/keys"
	"github.com/gomlx/atomgnn/types/errdefs"
	"github.com/gomlx/atomgnn/types/shapes"
	"github.com/gomlx/atomgnn/types/tensors"
	"github.com/gomlx/atomgnn/types/xslices"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Collater merges a list of graph records into one batched record: a single graph made of the disjoint
// union of the input graphs.
//
// Create it with NewCollater and configure it with the With* methods before use.
// A Collater holds no state besides its configuration, and Collate can be called concurrently.
type Collater struct {
	device     tensors.Device
	batchDType dtypes.DType
	validate   bool
}

// NewCollater returns a Collater that places the batch-assignment vector on the given device.
// The batch-assignment vector dtype defaults to Int64.
func NewCollater(device tensors.Device) *Collater {
	if device == "" {
		device = tensors.CPU
	}
	return &Collater{device: device, batchDType: dtypes.Int64}
}

// WithBatchDType sets the dtype of the batch-assignment vector. It must be an integer dtype, or it panics.
func (c *Collater) WithBatchDType(dtype dtypes.DType) *Collater {
	if !tensors.IsInteger(dtype) {
		exceptions.Panicf("Collater.WithBatchDType(%s): batch-assignment vector must have an integer dtype", dtype)
	}
	c.batchDType = dtype
	return c
}

// WithValidation enables checking that edge indices are within [0, N) of their graph, and that node and
// edge level fields have one row per node and per edge, both in each record and in the batched record.
// The latter rejects node or edge fields present in only some of the records.
func (c *Collater) WithValidation(validate bool) *Collater {
	c.validate = validate
	return c
}

// Device where the batch-assignment vector is placed.
func (c *Collater) Device() tensors.Device { return c.device }

// BatchDType is the dtype of the batch-assignment vector.
func (c *Collater) BatchDType() dtypes.DType { return c.batchDType }

// fieldParts accumulates the parts of one field over the records.
type fieldParts struct {
	first    shapes.Shape // Shape of the first occurrence, fixes dtype.
	firstIdx int
	parts    []*tensors.Tensor
}

// Collate merges the records, in order, into one batched record.
//
// Every field is concatenated along its key's concatenation axis, with the dtype of its first occurrence.
// The edge index of each graph is shifted by the number of nodes of the graphs before it. The derived
// batch-assignment vector is stored under keys.Batch: for each node, the ordinal of its graph in records.
//
// Scalar fields are promoted to shape [1], so graph-level scalars become one row per graph.
// Input records are not modified.
//
// Errors wrap one of: errdefs.ErrInvalidBatch (no records), errdefs.ErrMissingField (a record without
// keys.AtomicNum), errdefs.ErrShapeMismatch (incompatible shapes, or malformed edge index) and
// errdefs.ErrInvalidEdgeIndex (with validation enabled).
func (c *Collater) Collate(records []*Record) (*Record, error) {
	if len(records) == 0 {
		return nil, errors.Wrap(errdefs.ErrInvalidBatch, "cannot collate an empty list of records")
	}
	var fieldsOrder []keys.Key
	fields := make(map[keys.Key]*fieldParts)
	var batchAssignment []int64
	nodeOffset := 0
	numEdges := 0
	for recordIdx, record := range records {
		if record == nil {
			return nil, errors.Wrapf(errdefs.ErrInvalidBatch, "record #%d is nil", recordIdx)
		}
		numNodes, err := record.NumNodes()
		if err != nil {
			return nil, errors.WithMessagef(err, "record #%d", recordIdx)
		}
		batchAssignment = xslices.AppendRepeated(batchAssignment, int64(recordIdx), numNodes)
		recordEdges := record.NumEdges()

		for key, t := range record.All() {
			if key == keys.Batch {
				klog.Warningf("Collater: record #%d has a %q field, it is ignored and derived from the node counts", recordIdx, key)
				continue
			}
			if key == keys.EdgeIndex {
				targetDType := t.DType()
				if fp, found := fields[key]; found {
					targetDType = fp.first.DType
				}
				t, err = c.shiftEdgeIndex(t, numNodes, nodeOffset, targetDType)
				if err != nil {
					return nil, errors.WithMessagef(err, "record #%d", recordIdx)
				}
			} else {
				if t.IsScalar() {
					t = t.Reshape(1)
				}
				if c.validate {
					if err = checkRows(key, t, numNodes, recordEdges); err != nil {
						return nil, errors.WithMessagef(err, "record #%d", recordIdx)
					}
				}
			}

			fp, found := fields[key]
			if !found {
				fields[key] = &fieldParts{first: t.Shape(), firstIdx: recordIdx, parts: []*tensors.Tensor{t}}
				fieldsOrder = append(fieldsOrder, key)
				continue
			}
			if !fp.first.EqualDimensionsButAxis(t.Shape(), key.ConcatAxis()) {
				return nil, errors.Wrapf(errdefs.ErrShapeMismatch,
					"record #%d field %q has shape %s, incompatible with shape %s of record #%d",
					recordIdx, key, t.Shape(), fp.first, fp.firstIdx)
			}
			fp.parts = append(fp.parts, t)
		}
		nodeOffset += numNodes
		numEdges += recordEdges
	}

	batched := NewRecord()
	for _, key := range fieldsOrder {
		fp := fields[key]
		merged, err := tensors.Concatenate(key.ConcatAxis(), fp.parts...)
		if err != nil {
			return nil, errors.WithMessagef(err, "concatenating field %q", key)
		}
		if c.validate {
			// Fields missing from some records would misalign with the nodes or edges of the batch.
			if err = checkRows(key, merged, nodeOffset, numEdges); err != nil {
				return nil, errors.WithMessage(err, "batched record")
			}
		}
		batched.Set(key, merged)
	}
	if _, hi := tensors.IntegerRange(c.batchDType); int64(len(records)-1) > hi {
		return nil, errors.Wrapf(errdefs.ErrInvalidConfig, "batch-assignment dtype %s can't hold the ordinals of %d graphs",
			c.batchDType, len(records))
	}
	batchTensor := tensors.FromFlatDataAndDimensions(batchAssignment, len(batchAssignment))
	batched.Set(keys.Batch, batchTensor.ConvertDType(c.batchDType).OnDevice(c.device))
	if klog.V(2).Enabled() {
		klog.Infof("Collater: batched %d graphs, %d nodes, %d edges, %d fields", len(records), nodeOffset, numEdges, batched.Len())
	}
	return batched, nil
}

// shiftEdgeIndex validates the edge index of one graph and returns it shifted by nodeOffset, converted to
// targetDType (the dtype of the first edge index of the batch). Shifted values must fit targetDType.
func (c *Collater) shiftEdgeIndex(edgeIndex *tensors.Tensor, numNodes, nodeOffset int, targetDType dtypes.DType) (*tensors.Tensor, error) {
	if !tensors.IsInteger(edgeIndex.DType()) {
		return nil, errors.Wrapf(errdefs.ErrShapeMismatch, "field %q must be an integer tensor, got %s",
			keys.EdgeIndex, edgeIndex.Shape())
	}
	if edgeIndex.Rank() != 2 || edgeIndex.Shape().Dim(0) != 2 {
		return nil, errors.Wrapf(errdefs.ErrShapeMismatch, "field %q must have shape [2, E], got %s",
			keys.EdgeIndex, edgeIndex.Shape())
	}
	lo, hi := tensors.IntegerRange(targetDType)
	indices := tensors.CopyFlatDataAs[int64](edgeIndex)
	for ii, idx := range indices {
		if c.validate && (idx < 0 || idx >= int64(numNodes)) {
			return nil, errors.Wrapf(errdefs.ErrInvalidEdgeIndex, "edge index value %d at position %d outside of [0, %d)",
				idx, ii, numNodes)
		}
		indices[ii] = idx + int64(nodeOffset)
		if indices[ii] < lo || indices[ii] > hi {
			return nil, errors.Wrapf(errdefs.ErrShapeMismatch, "shifted edge index value %d at position %d doesn't fit dtype %s",
				indices[ii], ii, targetDType)
		}
	}
	shifted := tensors.FromFlatDataAndDimensions(indices, edgeIndex.Shape().Dimensions...)
	return shifted.ConvertDType(targetDType), nil
}

// checkRows verifies that node and edge level fields have one row per node or edge.
func checkRows(key keys.Key, t *tensors.Tensor, numNodes, numEdges int) error {
	var want int
	switch key.Level() {
	case keys.LevelNode:
		want = numNodes
	case keys.LevelEdge:
		want = numEdges
	default:
		return nil
	}
	if got := t.Shape().Dim(0); got != want {
		return errors.Wrapf(errdefs.ErrShapeMismatch, "%s field %q has %d rows, expected %d",
			key.Level(), key, got, want)
	}
	return nil
}
