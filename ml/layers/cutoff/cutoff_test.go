package cutoff

import (
	"math"
	"testing"

	"github.com/gomlx/atomgnn/types/errdefs"
	"github.com/gomlx/atomgnn/types/tensors"
	"github.com/gomlx/atomgnn/types/xslices"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestCosine(t *testing.T) {
	c := must.M1(NewCosine(5))
	got := must.M1(c.Apply(tensors.FromValue([]float64{0, 2.5, 5, 5.0001, 7, math.Inf(1)})))
	assert.Equal(t, []float64{1, 0.5, 0, 0, 0, 0}, xslices.Map(got.Value().([]float64), func(v float64) float64 {
		return math.Round(v*1e12) / 1e12
	}))
	values := got.Value().([]float64)
	assert.Equal(t, 1.0, values[0])
	for _, v := range values[2:] {
		assert.Equal(t, 0.0, v)
		assert.False(t, math.Signbit(v), "cutoff must be +0 beyond the radius")
	}

	// Monotonically non-increasing.
	previous := 1.0
	for d := 0.0; d < 6; d += 0.1 {
		v := c.Value(d)
		require.LessOrEqual(t, v, previous)
		require.GreaterOrEqual(t, v, 0.0)
		previous = v
	}

	// Dtype and device are preserved.
	got = must.M1(c.ApplyRaw(tensors.FromValue([]float32{0, 5}).OnDevice("gpu:0")))
	assert.Equal(t, []float32{1, 0}, got.Value())
	assert.Equal(t, tensors.Device("gpu:0"), got.Device())
}

func TestEnvelope(t *testing.T) {
	e := must.M1(NewEnvelope(4, DefaultEnvelopeExponent))
	assert.Equal(t, 5, e.Exponent())

	got := must.M1(e.Apply(tensors.FromValue([]float64{1, 1.5, 0.5})))
	values := got.Value().([]float64)
	assert.Equal(t, 0.0, values[0])
	assert.Equal(t, 0.0, values[1])

	// p = 6: a = -28, b = 48, c = -21.
	x := 0.5
	want := 1/(x+1e-8) - 28*math.Pow(x, 5) + 48*math.Pow(x, 6) - 21*math.Pow(x, 7)
	assert.InDelta(t, want, values[2], 1e-9)

	// Smooth decay to 0 at x=1.
	assert.InDelta(t, 0.0, e.Value(1-1e-6), 1e-6)
	// ~1/x close to 0.
	assert.InDelta(t, 1e3, e.Value(1e-3), 1)

	// ApplyRaw normalizes by the radius.
	raw := must.M1(e.ApplyRaw(tensors.FromValue([]float64{2, 4, 8})))
	assert.InDeltaSlice(t, []float64{e.Value(0.5), 0, 0}, raw.Value(), 1e-12)

	// Exponent 0 (p = 1): a = -3, b = 3, c = -1.
	e0 := must.M1(NewEnvelope(1, 0))
	x = 0.25
	assert.InDelta(t, 1/(x+1e-8)-3+3*x-x*x, e0.Value(x), 1e-9)
}

func TestNew(t *testing.T) {
	f := must.M1(New(TypeCosine, 3))
	assert.IsType(t, &Cosine{}, f)
	assert.Equal(t, 3.0, f.Radius())
	f = must.M1(New(TypeEnvelope, 3))
	assert.IsType(t, &Envelope{}, f)

	for _, radius := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := New(TypeCosine, radius)
		assert.Truef(t, errors.Is(err, errdefs.ErrInvalidConfig), "radius %g", radius)
	}
	_, err := New(Type(7), 1)
	assert.True(t, errors.Is(err, errdefs.ErrInvalidConfig))
	_, err = NewEnvelope(1, -1)
	assert.True(t, errors.Is(err, errdefs.ErrInvalidConfig))

	typ, err := TypeString("envelope")
	require.NoError(t, err)
	assert.Equal(t, TypeEnvelope, typ)
}

func TestInvalidInputs(t *testing.T) {
	c := must.M1(NewCosine(1))
	_, err := c.Apply(tensors.FromValue([]int64{1, 2}))
	assert.True(t, errors.Is(err, errdefs.ErrShapeMismatch))
	_, err = c.Apply(tensors.FromValue([][]float32{{1}}))
	assert.True(t, errors.Is(err, errdefs.ErrShapeMismatch))
	_, err = c.Apply(nil)
	assert.True(t, errors.Is(err, errdefs.ErrMissingField))

	// Empty edges and float16.
	empty := must.M1(c.Apply(tensors.FromValue([]float32{})))
	assert.Equal(t, 0, empty.Size())
	half := must.M1(c.Apply(tensors.FromValue([]float32{0, 1}).ConvertDType(dtypes.Float16)))
	tensors.ConstFlatData(half, func(flat []float16.Float16) {
		assert.Equal(t, float32(1), flat[0].Float32())
		assert.Equal(t, float32(0), flat[1].Float32())
	})
}
