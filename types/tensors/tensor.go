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

// Package tensors implements a `Tensor`, a representation of a multi-dimensional array.
//
// Tensors are multidimensional arrays (from scalar with 0 dimensions, to arbitrarily large dimensions), defined
// by their shape (a data type and its axes dimensions) and their actual content, stored as a flat slice of the
// Go type corresponding to the DType.
//
// Tensors here are eager and live in host memory: they hold the fields of graph records (atomic numbers,
// positions, edge indices, targets, ...) and the inputs and outputs of the readout layers.
//
// There are various ways to construct a Tensor from local data:
//
//   - FromShape(shape shapes.Shape): creates a tensor with the given shape, and zero values.
//
//   - FromScalarAndDimensions[T Supported](value T, dimensions ...int): creates a Tensor with the
//     given dimensions, filled with the scalar value given. `T` must be one of the supported types.
//
//   - FromFlatDataAndDimensions[T Supported](data []T, dimensions ...int): creates a Tensor with the
//     given dimensions, and set the flattened values with the given data. `T` must be one of the supported types.
//     Example:
//
//     t := FromFlatDataAndDimensions([]int8{1, 2, 3, 4}, 2, 2}) // Tensor with [[1,2], [3,4]]
//
//   - FromValue[S MultiDimensionSlice](value S): Generic conversion, works with the scalar supported `DType`s
//     as well as with any arbitrary multidimensional slice of them. Slices of rank > 1 must be regular, that is
//     all the sub-slices must have the same shape. Example:
//
//     t := FromValue([][]float{{1,2}, {3, 5}, {7, 11}})`
//
//   - FromAnyValue(value any): same as FromValue but non-generic, it takes an anonymous type `any`. The exception
//     is if `value` is already a tensor, then it is a no-op and it returns the tensor itself.
//
// Each tensor carries a Device handle. It is an opaque placement label: the data always lives in host memory,
// and moving a tensor to a device (Tensor.OnDevice) shares the underlying storage.
package tensors

import (
	"github.com/gomlx/atomgnn/types/shapes"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/x448/float16"
)

// Device is an opaque handle of where a tensor is placed. The zero value is equivalent to CPU.
type Device string

// CPU is the default device.
const CPU Device = "cpu"

// String implements fmt.Stringer.
func (d Device) String() string {
	if d == "" {
		return string(CPU)
	}
	return string(d)
}

// Number is the set of Go numeric types that can be used for arithmetic on tensors.
type Number interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

// Supported is the set of Go types that can back a tensor: Number and float16.Float16.
type Supported interface {
	Number | float16.Float16
}

// MultiDimensionSlice lists the Go types a Tensor can be converted to/from. There are no recursions in
// generics' constraint definitions, so we enumerate up to 5 levels of slices. Feel free to
// add more if needed, the implementation will work with any arbitrary number.
type MultiDimensionSlice interface {
	Supported | int | []int | [][]int | [][][]int |
		[]int8 | []int16 | []int32 | []int64 | []uint8 | []uint16 | []uint32 | []uint64 |
		[]float32 | []float64 | []float16.Float16 |
		[][]int8 | [][]int16 | [][]int32 | [][]int64 | [][]uint8 | [][]uint16 | [][]uint32 | [][]uint64 |
		[][]float32 | [][]float64 | [][]float16.Float16 |
		[][][]int32 | [][][]int64 | [][][]float32 | [][][]float64 |
		[][][][]float32 | [][][][]float64 | [][][][][]float32 | [][][][][]float64
}

// DTypeOf returns the DType corresponding to the Go type T.
func DTypeOf[T Supported]() dtypes.DType {
	var v T
	switch any(v).(type) {
	case int8:
		return dtypes.Int8
	case int16:
		return dtypes.Int16
	case int32:
		return dtypes.Int32
	case int64:
		return dtypes.Int64
	case uint8:
		return dtypes.Uint8
	case uint16:
		return dtypes.Uint16
	case uint32:
		return dtypes.Uint32
	case uint64:
		return dtypes.Uint64
	case float16.Float16:
		return dtypes.Float16
	case float32:
		return dtypes.Float32
	case float64:
		return dtypes.Float64
	}
	return dtypes.InvalidDType
}

// IsFloat returns whether the dtype is one of the floating point types supported by tensors.
func IsFloat(dtype dtypes.DType) bool {
	return dtype == dtypes.Float16 || dtype == dtypes.Float32 || dtype == dtypes.Float64
}

// IsInteger returns whether the dtype is one of the (signed or unsigned) integer types.
func IsInteger(dtype dtypes.DType) bool {
	switch dtype {
	case dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
		dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64:
		return true
	}
	return false
}

// makeFlat allocates a zero-initialized flat slice for the dtype.
// It returns nil for unsupported dtypes.
func makeFlat(dtype dtypes.DType, size int) any {
	switch dtype {
	case dtypes.Int8:
		return make([]int8, size)
	case dtypes.Int16:
		return make([]int16, size)
	case dtypes.Int32:
		return make([]int32, size)
	case dtypes.Int64:
		return make([]int64, size)
	case dtypes.Uint8:
		return make([]uint8, size)
	case dtypes.Uint16:
		return make([]uint16, size)
	case dtypes.Uint32:
		return make([]uint32, size)
	case dtypes.Uint64:
		return make([]uint64, size)
	case dtypes.Float16:
		return make([]float16.Float16, size)
	case dtypes.Float32:
		return make([]float32, size)
	case dtypes.Float64:
		return make([]float64, size)
	}
	return nil
}

// Tensor represents a multidimensional arrays (from scalar with 0 dimensions, to arbitrarily large dimensions), defined
// by their shape, a data type (dtypes.DType) and its axes' dimensions, and their actual content stored as a flat (1D)
// array of values.
//
// A Tensor is not safe for concurrent mutation. Tensors in batched graph records are created fresh per
// mini-batch and owned by whoever consumes the batch.
//
// More details in the `tensors` package documentation.
type Tensor struct {
	// shape of the tensor.
	shape shapes.Shape

	// flat is a []T slice, where T is the Go type corresponding to shape.DType.
	flat any

	device Device
}

// newTensor returns a Tensor with the given shape and flat storage. It's assumed the sizes match.
func newTensor(shape shapes.Shape, flat any) *Tensor {
	return &Tensor{shape: shape, flat: flat, device: CPU}
}

// Shape of the tensor, includes DType.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType returns the DType of the tensor's shape.
// It is a shortcut to `Tensor.Shape().DType`.
func (t *Tensor) DType() dtypes.DType {
	return t.shape.DType
}

// Rank returns the rank of the tensor's shape.
// It is a shortcut to `Tensor.Shape().Rank()`.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// IsScalar returns whether the tensor represents a scalar value.
// It is a shortcut to `Tensor.Shape().IsScalar()`.
func (t *Tensor) IsScalar() bool { return t.shape.IsScalar() }

// Size returns the number of elements in the tensor.
// It is a shortcut to `Tensor.Shape().Size()`.
func (t *Tensor) Size() int { return t.shape.Size() }

// Memory returns the number of bytes used to store the tensor. An alias to Tensor.Shape().Memory().
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// Ok returns whether the Tensor is in a valid state: it is not nil, and it has a valid shape and storage.
func (t *Tensor) Ok() bool {
	return t != nil && t.shape.Ok() && t.flat != nil
}

// AssertValid panics if the tensor is nil, or if its shape is invalid.
func (t *Tensor) AssertValid() {
	if t == nil {
		exceptions.Panicf("Tensor is nil")
	}
	if !t.shape.Ok() {
		exceptions.Panicf("Tensor shape is invalid")
	}
	if t.flat == nil {
		exceptions.Panicf("Tensor %s has no storage", t.shape)
	}
}

// Device where the tensor is placed.
func (t *Tensor) Device() Device {
	if t.device == "" {
		return CPU
	}
	return t.device
}

// OnDevice returns the tensor placed on the given device.
// If it is already there it returns itself, otherwise it returns a new Tensor sharing the same storage.
func (t *Tensor) OnDevice(device Device) *Tensor {
	t.AssertValid()
	if device == "" {
		device = CPU
	}
	if t.Device() == device {
		return t
	}
	return &Tensor{shape: t.shape, flat: t.flat, device: device}
}

// Reshape returns a tensor with the same data (not copied) and dtype, but with the new dimensions.
// It panics if the new dimensions don't have the same size as the original ones.
func (t *Tensor) Reshape(dimensions ...int) *Tensor {
	t.AssertValid()
	newShape := shapes.Make(t.shape.DType, dimensions...)
	if newShape.Size() != t.shape.Size() {
		exceptions.Panicf("Tensor.Reshape(%v): cannot reshape tensor of shape %s, sizes differ", dimensions, t.shape)
	}
	return &Tensor{shape: newShape, flat: t.flat, device: t.device}
}
