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
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/x448/float16"
)

// ConvertDType returns the tensor converted to the given dtype, on the same device.
// If the tensor already has the dtype, it returns itself.
//
// Conversions follow Go's numeric conversion rules: float to integer truncates towards zero.
func (t *Tensor) ConvertDType(dtype dtypes.DType) *Tensor {
	t.AssertValid()
	if t.DType() == dtype {
		return t
	}
	flat := convertFlat(t.flat, dtype)
	return &Tensor{shape: t.shape.WithDType(dtype), flat: flat, device: t.device}
}

// IntegerRange returns the range of values representable by an integer dtype, clipped to int64.
// It panics if dtype is not an integer.
func IntegerRange(dtype dtypes.DType) (lo, hi int64) {
	switch dtype {
	case dtypes.Int8:
		return math.MinInt8, math.MaxInt8
	case dtypes.Int16:
		return math.MinInt16, math.MaxInt16
	case dtypes.Int32:
		return math.MinInt32, math.MaxInt32
	case dtypes.Int64:
		return math.MinInt64, math.MaxInt64
	case dtypes.Uint8:
		return 0, math.MaxUint8
	case dtypes.Uint16:
		return 0, math.MaxUint16
	case dtypes.Uint32:
		return 0, math.MaxUint32
	case dtypes.Uint64:
		return 0, math.MaxInt64
	}
	exceptions.Panicf("tensors.IntegerRange(%s): not an integer dtype", dtype)
	return
}

// convertFlat converts a flat slice to a new flat slice of the Go type of dtype.
func convertFlat(flat any, dtype dtypes.DType) any {
	switch src := flat.(type) {
	case []int8:
		return convertFrom(src, dtype)
	case []int16:
		return convertFrom(src, dtype)
	case []int32:
		return convertFrom(src, dtype)
	case []int64:
		return convertFrom(src, dtype)
	case []uint8:
		return convertFrom(src, dtype)
	case []uint16:
		return convertFrom(src, dtype)
	case []uint32:
		return convertFrom(src, dtype)
	case []uint64:
		return convertFrom(src, dtype)
	case []float32:
		return convertFrom(src, dtype)
	case []float64:
		return convertFrom(src, dtype)
	case []float16.Float16:
		f32 := make([]float32, len(src))
		for ii, v := range src {
			f32[ii] = v.Float32()
		}
		return convertFrom(f32, dtype)
	}
	exceptions.Panicf("tensors: cannot convert flat data of type %T", flat)
	return nil
}

func convertFrom[From Number](src []From, dtype dtypes.DType) any {
	switch dtype {
	case dtypes.Int8:
		return convertSlice[From, int8](src)
	case dtypes.Int16:
		return convertSlice[From, int16](src)
	case dtypes.Int32:
		return convertSlice[From, int32](src)
	case dtypes.Int64:
		return convertSlice[From, int64](src)
	case dtypes.Uint8:
		return convertSlice[From, uint8](src)
	case dtypes.Uint16:
		return convertSlice[From, uint16](src)
	case dtypes.Uint32:
		return convertSlice[From, uint32](src)
	case dtypes.Uint64:
		return convertSlice[From, uint64](src)
	case dtypes.Float32:
		return convertSlice[From, float32](src)
	case dtypes.Float64:
		return convertSlice[From, float64](src)
	case dtypes.Float16:
		dst := make([]float16.Float16, len(src))
		for ii, v := range src {
			dst[ii] = float16.Fromfloat32(float32(v))
		}
		return dst
	}
	exceptions.Panicf("tensors: conversion to dtype %s not supported", dtype)
	return nil
}

func convertSlice[From, To Number](src []From) []To {
	dst := make([]To, len(src))
	for ii, v := range src {
		dst[ii] = To(v)
	}
	return dst
}
