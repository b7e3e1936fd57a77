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

package shapes

import (
	"testing"

	. "github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	s := Make(Int64, 2, 0)
	require.True(t, s.Ok())
	require.Equal(t, 2, s.Rank())
	require.Equal(t, 0, s.Size())
	require.Equal(t, 0, s.Dim(-1))
	require.Panics(t, func() { _ = s.Dim(2) })
	require.Panics(t, func() { _ = Make(Float32, 3, -1) })

	require.True(t, Scalar(Float64).IsScalar())
	require.False(t, Invalid().Ok())
	require.Equal(t, 1, Scalar(Float64).Size())

	s2 := s.WithDType(Int32)
	require.True(t, s.EqualDimensions(s2))
	require.False(t, s.Equal(s2))
	require.Equal(t, Int64, s.DType, "WithDType must not change the original shape")
}

func TestEqualDimensionsButAxis(t *testing.T) {
	a := Make(Float32, 3, 4)
	require.True(t, a.EqualDimensionsButAxis(Make(Float32, 7, 4), 0))
	require.False(t, a.EqualDimensionsButAxis(Make(Float32, 7, 5), 0))
	require.True(t, a.EqualDimensionsButAxis(Make(Float32, 3, 1), 1))
	require.False(t, a.EqualDimensionsButAxis(Make(Float32, 3), 0))
}

func TestConcatenateOnAxis(t *testing.T) {
	got, err := ConcatenateOnAxis(1, Make(Int64, 2, 2), Make(Int32, 2, 0), Make(Int64, 2, 3))
	require.NoError(t, err)
	require.True(t, got.Equal(Make(Int64, 2, 5)), "got %s", got)

	_, err = ConcatenateOnAxis(0, Make(Float32, 2, 3), Make(Float32, 2, 4))
	require.Error(t, err)

	_, err = ConcatenateOnAxis(0, Scalar(Float32))
	require.Error(t, err)
}

func TestCheckDims(t *testing.T) {
	s := Make(Float64, 5, 3)
	require.NoError(t, s.CheckDims(-1, 3))
	require.Error(t, s.CheckDims(5))
	require.Error(t, s.Check(Float32, 5, 3))
	require.NoError(t, s.CheckRank(2))
	require.Panics(t, func() { AssertRank(s, 1) })
	require.NotPanics(t, func() { AssertDims(s, 5, UncheckedAxis) })
}
