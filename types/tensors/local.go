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

package tensors

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/gomlx/atomgnn/types/shapes"
	"github.com/gomlx/atomgnn/types/xslices"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// FromShape returns a Tensor with the given shape, with the data initialized with zeros.
func FromShape(shape shapes.Shape) (t *Tensor) {
	if !shape.Ok() {
		exceptions.Panicf("tensors.FromShape(): invalid shape %s", shape)
	}
	flat := makeFlat(shape.DType, shape.Size())
	if flat == nil {
		exceptions.Panicf("tensors.FromShape(%s): dtype %s not supported", shape, shape.DType)
	}
	return newTensor(shape.Clone(), flat)
}

// Clone returns a deep copy of the tensor, on the same device.
func (t *Tensor) Clone() *Tensor {
	t.AssertValid()
	clone := FromShape(t.shape)
	reflect.Copy(reflect.ValueOf(clone.flat), reflect.ValueOf(t.flat))
	clone.device = t.device
	return clone
}

// ConstFlatData calls accessFn with the flattened data as a slice of the Go type corresponding to the DType type.
// Even scalar values have a flattened data representation of one element.
//
// This provides accessFn with the actual Tensor data (not a copy), and it's owned by the Tensor, but it should not be
// changed. See Tensor.MutableFlatData to access a mutable version of the flat data.
//
// It panics if the tensor is in an invalid state.
func (t *Tensor) ConstFlatData(accessFn func(flat any)) {
	t.AssertValid()
	accessFn(t.flat)
}

// MutableFlatData calls accessFn with a flat slice pointing to the Tensor data. The type of the slice corresponds
// to the DType of the tensor. The contents of the slice itself can be changed until accessFn returns.
//
// Tensors created with Reshape or OnDevice share their storage with the original, and will see the changes.
func (t *Tensor) MutableFlatData(accessFn func(flat any)) {
	t.AssertValid()
	accessFn(t.flat)
}

// ConstFlatData calls accessFn with the flattened data as a slice of the Go type corresponding to the DType type.
// It is the "generics" version of Tensor.ConstFlatData().
//
// It panics if T doesn't match the tensor's DType.
func ConstFlatData[T Supported](t *Tensor, accessFn func(flat []T)) {
	t.AssertValid()
	flat, ok := t.flat.([]T)
	if !ok {
		exceptions.Panicf("ConstFlatData[%T] given but Tensor has DType %s", flat, t.DType())
	}
	accessFn(flat)
}

// MutableFlatData calls accessFn with a flat slice pointing to the Tensor data.
// It is the "generics" version of Tensor.MutableFlatData(), see its description for more details.
//
// It panics if T doesn't match the tensor's DType.
func MutableFlatData[T Supported](t *Tensor, accessFn func(flat []T)) {
	t.AssertValid()
	flat, ok := t.flat.([]T)
	if !ok {
		exceptions.Panicf("MutableFlatData[%T] given but Tensor has DType %s", flat, t.DType())
	}
	accessFn(flat)
}

// CopyFlatData returns a copy of the flat data of the Tensor.
//
// It panics if T doesn't match the tensor's DType. See CopyFlatDataAs for a version that converts the values.
func CopyFlatData[T Supported](t *Tensor) []T {
	var data []T
	ConstFlatData[T](t, func(flat []T) {
		data = slices.Clone(flat)
	})
	return data
}

// CopyFlatDataAs returns a copy of the flat data of the Tensor converted to T, whatever the
// tensor's DType.
func CopyFlatDataAs[T Number](t *Tensor) []T {
	t.AssertValid()
	if flat, ok := t.flat.([]T); ok {
		return slices.Clone(flat)
	}
	return convertFlat(t.flat, DTypeOf[T]()).([]T)
}

// ToScalar returns the value of a scalar (or one-element) tensor, converted to T.
// It panics if the tensor has more than one element.
func ToScalar[T Number](t *Tensor) T {
	t.AssertValid()
	if t.Size() != 1 {
		exceptions.Panicf("ToScalar() requires a tensor with exactly one element, got shape %s", t.shape)
	}
	return CopyFlatDataAs[T](t)[0]
}

// FromScalar creates a local tensor with the given scalar.
// The `DType` is inferred from the value.
func FromScalar[T Supported](value T) (t *Tensor) {
	return FromScalarAndDimensions(value)
}

// FromScalarAndDimensions creates a local tensor with the given dimensions, filled with the
// given scalar value replicated everywhere.
// The `DType` is inferred from the value.
func FromScalarAndDimensions[T Supported](value T, dimensions ...int) (t *Tensor) {
	shape := shapes.Make(DTypeOf[T](), dimensions...)
	t = FromShape(shape)
	MutableFlatData(t, func(flat []T) {
		xslices.FillSlice(flat, value)
	})
	return
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, filled with the flattened values given in `data`.
// The data is copied to the Tensor.
// The `DType` is inferred from the `data` type.
func FromFlatDataAndDimensions[T Supported](data []T, dimensions ...int) (t *Tensor) {
	shape := shapes.Make(DTypeOf[T](), dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("FromFlatDataAndDimensions(%s): data size is %d, but dimensions size is %d", shape, len(data), shape.Size())
	}
	return newTensor(shape, slices.Clone(data))
}

// FromValue returns a tensor constructed from the given multi-dimension slice (or scalar).
// If the rank of the `value` is larger than 1, the shape of all sub-slices must be the same.
// Go `int` values are stored as Int64.
//
// It panics if the shape is not regular.
//
// Notice that FromFlatDataAndDimensions is much faster if speed here is a concern.
func FromValue[S MultiDimensionSlice](value S) *Tensor {
	return FromAnyValue(value)
}

// FromAnyValue is a non-generic version of FromValue.
// The input is expected to be either a scalar or a slice of slices with homogeneous dimensions.
// If the input is a tensor already, it is simply returned.
//
// Empty slices are converted to axes of dimension 0: `[][]int64{{}, {}}` becomes a tensor of shape `(Int64)[2 0]`,
// the edge index of a graph without edges.
//
// It panics with an error if `value` type is unsupported or the shape is not regular.
func FromAnyValue(value any) (t *Tensor) {
	if valueT, ok := value.(*Tensor); ok {
		// Input is already a Tensor.
		return valueT
	}
	shape, err := shapeForValue(value)
	if err != nil {
		panic(errors.Wrapf(err, "cannot create shape from %T", value))
	}
	t = FromShape(shape)
	flatV := reflect.ValueOf(t.flat)
	if shape.IsScalar() {
		setElement(flatV.Index(0), reflect.ValueOf(value))
		return
	}
	copySlicesRecursively(flatV, reflect.ValueOf(value), layoutStrides(shape.Dimensions))
	return
}

// layoutStrides returns the number of elements to skip for each increment of each axis, in row-major order.
func layoutStrides(dimensions []int) []int {
	strides := make([]int, len(dimensions))
	currentStride := 1
	for axis := len(dimensions) - 1; axis >= 0; axis-- {
		strides[axis] = currentStride
		currentStride *= dimensions[axis]
	}
	return strides
}

// setElement sets dst to src, converting Go `int` values to the (int64) storage type.
func setElement(dst, src reflect.Value) {
	if src.Type() == dst.Type() {
		dst.Set(src)
		return
	}
	dst.Set(src.Convert(dst.Type()))
}

// copySlicesRecursively copy values on a multi-dimension slice to a flat data slice
// assuming the strides for each dimension.
func copySlicesRecursively(data reflect.Value, mdSlice reflect.Value, strides []int) {
	if len(strides) == 1 {
		// Last level of slice, just copy over the slice.
		if data.Type() == mdSlice.Type() {
			reflect.Copy(data, mdSlice)
			return
		}
		for ii := range mdSlice.Len() {
			setElement(data.Index(ii), mdSlice.Index(ii))
		}
		return
	}

	numElements := mdSlice.Len()
	subStrides := strides[1:]
	for ii := 0; ii < numElements; ii++ {
		start := ii * strides[0]
		end := (ii + 1) * strides[0]
		subData := data.Slice(start, end)
		copySlicesRecursively(subData, mdSlice.Index(ii), subStrides)
	}
}

// convertDataToSlices takes data as a flat slice, and creates a multidimensional slices with the given dimensions that
// points to the given data.
func convertDataToSlices(dataV reflect.Value, dimensions ...int) reflect.Value {
	if len(dimensions) <= 1 {
		return dataV
	}
	resultT := dataV.Type().Elem()
	for range dimensions {
		resultT = reflect.SliceOf(resultT)
	}
	return createSlicesRecursively(resultT, dataV, dimensions, layoutStrides(dimensions))
}

// createSlicesRecursively recursively creates slices copy values on a multi-dimension slice to a flat data slice
// assuming the strides for each dimension.
func createSlicesRecursively(resultT reflect.Type, data reflect.Value, dimensions []int, strides []int) reflect.Value {
	if len(strides) == 1 {
		// Last level of slice, just copy over the slice (not the data, just the slice).
		return data
	}

	numElements := dimensions[0]
	slice := reflect.MakeSlice(resultT, numElements, numElements)

	subStrides := strides[1:]
	subDimensions := dimensions[1:]
	subResultT := resultT.Elem()
	for ii := 0; ii < numElements; ii++ {
		start := ii * strides[0]
		end := (ii + 1) * strides[0]
		subData := data.Slice(start, end)
		subSlice := createSlicesRecursively(subResultT, subData, subDimensions, subStrides)
		slice.Index(ii).Set(subSlice)
	}
	return slice
}

// dtypeForGoType maps a Go scalar type to a DType. Go `int` maps to Int64.
func dtypeForGoType(t reflect.Type) dtypes.DType {
	if t == reflect.TypeOf(float16.Float16(0)) {
		return dtypes.Float16
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int64:
		return dtypes.Int64
	case reflect.Int8:
		return dtypes.Int8
	case reflect.Int16:
		return dtypes.Int16
	case reflect.Int32:
		return dtypes.Int32
	case reflect.Uint8:
		return dtypes.Uint8
	case reflect.Uint16:
		return dtypes.Uint16
	case reflect.Uint32:
		return dtypes.Uint32
	case reflect.Uint64:
		return dtypes.Uint64
	case reflect.Float32:
		return dtypes.Float32
	case reflect.Float64:
		return dtypes.Float64
	}
	return dtypes.InvalidDType
}

func shapeForValue(v any) (shape shapes.Shape, err error) {
	if v == nil {
		return shapes.Invalid(), errors.New("cannot convert nil to a tensor")
	}
	err = shapeForValueRecursive(&shape, reflect.ValueOf(v), reflect.TypeOf(v))
	return
}

func shapeForValueRecursive(shape *shapes.Shape, v reflect.Value, t reflect.Type) error {
	if t.Kind() == reflect.Slice {
		// Recurse into inner slices.
		t = t.Elem()
		shape.Dimensions = append(shape.Dimensions, v.Len())
		shapePrefix := shape.Clone()

		if v.Len() == 0 {
			// No reference element: every inner axis has dimension 0.
			for t.Kind() == reflect.Slice {
				shape.Dimensions = append(shape.Dimensions, 0)
				t = t.Elem()
			}
			return shapeForValueRecursive(shape, reflect.Value{}, t)
		}

		// The first element is the reference
		v0 := v.Index(0)
		err := shapeForValueRecursive(shape, v0, t)
		if err != nil {
			return err
		}

		// Test that other elements have the same shape as the first one.
		for ii := 1; ii < v.Len(); ii++ {
			shapeTest := shapePrefix.Clone()
			err = shapeForValueRecursive(&shapeTest, v.Index(ii), t)
			if err != nil {
				return err
			}
			if !shape.Equal(shapeTest) {
				return errors.Errorf("sub-slices have irregular shapes, found shapes %q, and %q", shape, shapeTest)
			}
		}
	} else if t.Kind() == reflect.Pointer {
		return errors.Errorf("cannot convert Pointer (%s) to a concrete value for tensors", t)
	} else {
		shape.DType = dtypeForGoType(t)
		if shape.DType == dtypes.InvalidDType {
			return errors.Errorf("cannot convert type %s to a value concrete tensor type (maybe type not supported yet?)", t)
		}
	}
	return nil
}

// Value returns a copy of the tensor contents as a multidimensional slice of the Go type
// corresponding to its DType, or a scalar for rank-0 tensors.
//
// Example: a tensor of shape (Float32)[2 2] returns a [][]float32.
func (t *Tensor) Value() any {
	t.AssertValid()
	flatV := reflect.ValueOf(t.flat)
	if t.shape.IsScalar() {
		return flatV.Index(0).Interface()
	}
	cloneV := reflect.MakeSlice(flatV.Type(), flatV.Len(), flatV.Len())
	reflect.Copy(cloneV, flatV)
	return convertDataToSlices(cloneV, t.shape.Dimensions...).Interface()
}

// MaxSizeForString is the largest tensor that is actually printed by String(). Larger tensors only print
// their shape.
var MaxSizeForString = 500

// String converts to string, if not too large.
func (t *Tensor) String() string {
	if t == nil {
		return "Tensor(nil)"
	}
	if !t.Ok() {
		return "Tensor(invalid)"
	}
	if t.Size() > MaxSizeForString {
		return fmt.Sprintf("%s: (%d elements, not printed)", t.shape, t.Size())
	}
	value := t.Value()
	if t.DType() == dtypes.Float16 {
		// Print float16 as float32, otherwise the uint16 bits are printed.
		value = t.ConvertDType(dtypes.Float32).Value()
	}
	return fmt.Sprintf("%s: %v", t.shape, value)
}

// Equal checks weather t == otherTensor.
// If they are the same pointer they are considered equal.
// If the shapes are different it returns false.
// If either are invalid (nil) it panics.
func (t *Tensor) Equal(otherTensor *Tensor) bool {
	t.AssertValid()
	otherTensor.AssertValid()

	if t == otherTensor {
		return true
	}
	if !t.shape.Equal(otherTensor.shape) {
		return false
	}
	return reflect.DeepEqual(t.flat, otherTensor.flat)
}

// InDelta checks weather Abs(t - otherTensor) <= delta for every element.
// If the shapes are different it returns false.
// Integer tensors are compared for exact equality.
func (t *Tensor) InDelta(otherTensor *Tensor, delta float64) bool {
	t.AssertValid()
	otherTensor.AssertValid()

	if t == otherTensor {
		return true
	}
	if !t.shape.Equal(otherTensor.shape) {
		return false
	}
	if !IsFloat(t.DType()) {
		return t.Equal(otherTensor)
	}
	return xslices.InDelta(CopyFlatDataAs[float64](t), CopyFlatDataAs[float64](otherTensor), delta)
}
