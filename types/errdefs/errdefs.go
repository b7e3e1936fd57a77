// Package errdefs defines the sentinel errors returned by atomgnn.
//
// Errors returned by the library wrap one of these with context, so callers
// should test for them with errors.Is:
//
//	batch, err := collater.Collate(records)
//	if errors.Is(err, errdefs.ErrShapeMismatch) {
//		...
//	}
package errdefs

import "github.com/pkg/errors"

var (
	// ErrInvalidBatch is returned when a batch can't be built, e.g. from an empty list of records.
	ErrInvalidBatch = errors.New("invalid batch")

	// ErrShapeMismatch is returned when tensors have incompatible shapes (or dtypes) for the
	// requested operation, e.g. the same field with different trailing dimensions across records.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidGroup is returned by segmented reductions when a group ordinal in 0..max has
	// no members, or when an ordinal is negative.
	ErrInvalidGroup = errors.New("invalid group")

	// ErrMissingField is returned when a required field is absent.
	ErrMissingField = errors.New("missing field")

	// ErrInvalidEdgeIndex is returned when an edge index references a node outside of its graph.
	ErrInvalidEdgeIndex = errors.New("invalid edge index")

	// ErrCustomCollate is returned when a caller tries to replace the loader's collate function.
	ErrCustomCollate = errors.New("custom collate function not supported")

	// ErrInvalidConfig is returned for invalid configurations of loaders, layers or cutoffs.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrPrefetcherClosed is returned when reading batches from a prefetcher after it was closed.
	ErrPrefetcherClosed = errors.New("prefetcher closed")
)
