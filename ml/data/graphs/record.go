/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package graphs holds graph records and the tools to batch them: the Collater, which merges a list of
// graphs into one disjoint-union graph, and the Loader, which iterates over a Dataset in mini-batches.
//
// A batched record holds the union of the fields of the graphs it was built from, concatenated along
// axis 0 (node, edge and graph level fields) or axis 1 (the edge index, whose node indices are shifted by
// the number of nodes of the previous graphs), plus the derived batch-assignment vector under keys.Batch.
//
// Example:
//
//	loader, err := graphs.NewLoader(graphs.InMemory(records...), graphs.LoaderConfig{BatchSize: 32, Shuffle: true})
//	if err != nil { ... }
//	for batch, err := range loader.All() {
//		if err != nil { ... }
//		positions := batch.Get(keys.Position)
//		...
//	}
package graphs

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/gomlx/atomgnn/ml/data/keys"
	"github.com/gomlx/atomgnn/types/errdefs"
	"github.com/gomlx/atomgnn/types/tensors"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Record is an ordered mapping from field keys to tensors: the fields of one graph, or of a batch of graphs.
//
// The order of the fields is the order in which they were first set.
type Record struct {
	order  []keys.Key
	fields map[keys.Key]*tensors.Tensor
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{fields: make(map[keys.Key]*tensors.Tensor)}
}

// Set the tensor of a field, and returns the record itself, so calls can be cascaded.
// It panics if the tensor is nil.
func (r *Record) Set(key keys.Key, t *tensors.Tensor) *Record {
	if t == nil {
		exceptions.Panicf("Record.Set(%q): nil tensor", key)
	}
	if _, found := r.fields[key]; !found {
		r.order = append(r.order, key)
	}
	r.fields[key] = t
	return r
}

// Get returns the tensor of the field, or nil if the record doesn't have it.
func (r *Record) Get(key keys.Key) *tensors.Tensor {
	return r.fields[key]
}

// Has returns whether the record has the field.
func (r *Record) Has(key keys.Key) bool {
	_, found := r.fields[key]
	return found
}

// Delete removes the field from the record, if present.
func (r *Record) Delete(key keys.Key) {
	if _, found := r.fields[key]; !found {
		return
	}
	delete(r.fields, key)
	r.order = slices.DeleteFunc(r.order, func(k keys.Key) bool { return k == key })
}

// Len returns the number of fields.
func (r *Record) Len() int { return len(r.order) }

// Keys returns the keys of the fields, in order.
func (r *Record) Keys() []keys.Key { return slices.Clone(r.order) }

// All iterates over the fields in order.
func (r *Record) All() iter.Seq2[keys.Key, *tensors.Tensor] {
	return func(yield func(keys.Key, *tensors.Tensor) bool) {
		for _, key := range r.order {
			if !yield(key, r.fields[key]) {
				return
			}
		}
	}
}

// Clone returns a shallow copy of the record: the tensors are shared.
func (r *Record) Clone() *Record {
	clone := NewRecord()
	for key, t := range r.All() {
		clone.Set(key, t)
	}
	return clone
}

// NumNodes returns the number of nodes: the dimension 0 of the atomic number field.
// It returns an error wrapping errdefs.ErrMissingField if the record doesn't have the field.
func (r *Record) NumNodes() (int, error) {
	atomicNum := r.Get(keys.AtomicNum)
	if atomicNum == nil {
		return 0, errors.Wrapf(errdefs.ErrMissingField, "field %q required to count nodes", keys.AtomicNum)
	}
	if atomicNum.Rank() == 0 {
		return 0, errors.Wrapf(errdefs.ErrShapeMismatch, "field %q must have rank >= 1, got shape %s",
			keys.AtomicNum, atomicNum.Shape())
	}
	return atomicNum.Shape().Dim(0), nil
}

// NumEdges returns the number of edges: dimension 1 of the edge index. It returns 0 if there is no edge index.
func (r *Record) NumEdges() int {
	edgeIndex := r.Get(keys.EdgeIndex)
	if edgeIndex == nil || edgeIndex.Rank() != 2 {
		return 0
	}
	return edgeIndex.Shape().Dim(1)
}

// NumGraphs returns the number of graphs in a batched record, based on its batch-assignment vector.
// Records without keys.Batch hold one graph.
func (r *Record) NumGraphs() int {
	batch := r.Get(keys.Batch)
	if batch == nil {
		return 1
	}
	if batch.Size() == 0 {
		return 0
	}
	ordinals := tensors.CopyFlatDataAs[int64](batch)
	return int(slices.Max(ordinals)) + 1
}

// Memory returns the number of bytes used by the tensors of the record.
func (r *Record) Memory() (memory uintptr) {
	for _, t := range r.fields {
		memory += t.Memory()
	}
	return
}

// String implements fmt.Stringer. It prints the shapes of the fields.
func (r *Record) String() string {
	parts := make([]string, 0, len(r.order))
	for key, t := range r.All() {
		parts = append(parts, fmt.Sprintf("%s=%s", key, t.Shape()))
	}
	return "Record{" + strings.Join(parts, ", ") + "}"
}
