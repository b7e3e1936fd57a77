package scalers

import (
	"testing"

	"github.com/gomlx/atomgnn/types/errdefs"
	"github.com/gomlx/atomgnn/types/tensors"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreIdentity(t *testing.T) {
	x := tensors.FromValue([][]float32{{1.5, -2}, {3, 0.25}})
	for _, scalerType := range TypeValues() {
		s := must.M1(New(scalerType, nil, nil))
		assert.Equalf(t, x.Value(), s.Forward(x).Value(), "scaler %s with default mean/stddev", scalerType)
	}
}

func TestScaleShiftAndStandardize(t *testing.T) {
	x := tensors.FromValue([][]float64{{1, 2}, {3, 4}})
	scaleShift := must.M1(FromValues(TypeScaleShift, []float64{10, 20}, []float64{2}))
	assert.Equal(t, [][]float64{{12, 24}, {16, 28}}, scaleShift.Forward(x).Value())

	standardize := must.M1(New(TypeStandardize, tensors.FromValue(1.0), tensors.FromValue([]float64{2, 4})))
	assert.Equal(t, [][]float64{{0, 0.25}, {1, 0.75}}, standardize.Forward(x).Value())

	// Round trip.
	scaled := scaleShift.Forward(x)
	inverse := must.M1(FromValues(TypeStandardize, []float64{10, 20}, []float64{2}))
	assert.Equal(t, x.Value(), inverse.Forward(scaled).Value())

	require.Panics(t, func() { scaleShift.Forward(tensors.FromValue([][]float64{{1, 2, 3}})) })
	require.Panics(t, func() { scaleShift.Forward(tensors.FromValue([]float64{1, 2})) })
}

func TestInvalidScalers(t *testing.T) {
	_, err := New(Type(9), nil, nil)
	assert.True(t, errors.Is(err, errdefs.ErrInvalidConfig))
	_, err = FromValues(TypeStandardize, nil, []float64{0})
	assert.True(t, errors.Is(err, errdefs.ErrInvalidConfig))
	_, err = New(TypeScaleShift, tensors.FromValue([][]float64{{1}}), nil)
	assert.True(t, errors.Is(err, errdefs.ErrInvalidConfig))

	typ, err := TypeString("scale_shift")
	require.NoError(t, err)
	assert.Equal(t, TypeScaleShift, typ)
}
