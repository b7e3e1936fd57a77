// Package initializers include several weight initializers, to be used with layers.
//
// An Initializer takes the random number generator of the layer being (re)initialized, so the
// same seed always produces the same parameters.
package initializers

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/gomlx/atomgnn/types/shapes"
	"github.com/gomlx/atomgnn/types/tensors"
	"github.com/gomlx/exceptions"
)

// Initializer returns a tensor with the given shape filled with initial values for a parameter.
type Initializer func(rng *rand.Rand, shape shapes.Shape) *tensors.Tensor

var (
	// Zero initializes variables with zero.
	Zero Initializer = func(_ *rand.Rand, shape shapes.Shape) *tensors.Tensor {
		return tensors.FromShape(shape)
	}

	// One initializes variables with one.
	One Initializer = func(_ *rand.Rand, shape shapes.Shape) *tensors.Tensor {
		return fill(shape, func() float64 { return 1 })
	}
)

// fill returns a tensor with the shape filled by calls to sample.
func fill(shape shapes.Shape, sample func() float64) *tensors.Tensor {
	values := make([]float64, shape.Size())
	for ii := range values {
		values[ii] = sample()
	}
	return tensors.FromFlatDataAndDimensions(values, shape.Dimensions...).ConvertDType(shape.DType)
}

// Normal returns an initializer that generates random normal values with the given standard deviation
// and mean set to 0.
//
// Non-float variables are initialized to 0 instead.
func Normal(stddev float64) Initializer {
	return func(rng *rand.Rand, shape shapes.Shape) *tensors.Tensor {
		if !tensors.IsFloat(shape.DType) {
			return tensors.FromShape(shape)
		}
		return fill(shape, func() float64 { return rng.NormFloat64() * stddev })
	}
}

// Uniform returns an initializer that generates random uniform values from [min, max).
//
// Non-float variables are initialized with zero instead.
func Uniform(minValue, maxValue float64) Initializer {
	return func(rng *rand.Rand, shape shapes.Shape) *tensors.Tensor {
		if !tensors.IsFloat(shape.DType) {
			return tensors.FromShape(shape)
		}
		return fill(shape, func() float64 { return minValue + rng.Float64()*(maxValue-minValue) })
	}
}

// computeFanInFanOut of a variable expected to be the parameters of a dense layer.
func computeFanInFanOut(shape shapes.Shape) (fanIn, fanOut int) {
	rank := shape.Rank()
	switch rank {
	case 0: // Scalar.
		fanIn = 1
		fanOut = fanIn
	case 1: // 1D shape, like a bias term in a dense layer.
		fanIn = 0
		fanOut = fanIn
	case 2: // 2D shape, weights of a dense layer.
		fanIn = shape.Dimensions[0]
		fanOut = shape.Dimensions[1]
	default:
		receptiveFieldSize := 1
		for _, dim := range shape.Dimensions[:rank-2] {
			receptiveFieldSize *= dim
		}
		fanIn = shape.Dimensions[rank-2] * receptiveFieldSize
		fanOut = shape.Dimensions[rank-1] * receptiveFieldSize
	}
	return
}

// fanBased is the common structure of the initializers below: biases (rank <= 1) and non-float
// variables are zero, and weights are sampled from the distribution returned by sampler.
func fanBased(sampler func(rng *rand.Rand, fanIn, fanOut int) func() float64) Initializer {
	return func(rng *rand.Rand, shape shapes.Shape) *tensors.Tensor {
		if !tensors.IsFloat(shape.DType) || shape.Rank() <= 1 {
			return tensors.FromShape(shape)
		}
		fanIn, fanOut := computeFanInFanOut(shape)
		return fill(shape, sampler(rng, fanIn, fanOut))
	}
}

// GlorotUniform returns a Glorot uniform initializer.
//
// It draws samples from a uniform distribution within `[-limit, limit]`, where
// `limit = sqrt(3 / ((fan_in + fan_out)/2))`.
//
// It initializes biases (anything with rank <= 1) to zeros.
var GlorotUniform = fanBased(func(rng *rand.Rand, fanIn, fanOut int) func() float64 {
	scale := max(1.0, float64(fanIn+fanOut)/2.0)
	limit := math.Sqrt(3.0 / scale)
	return func() float64 { return rng.Float64()*2*limit - limit }
})

// XavierUniform generates random values with a uniform distribution with a range
// defined by +/- sqrt(6 / (fanIn+fanOut)).
//
// It initializes biases (anything with rank <= 1) to zeros.
var XavierUniform = fanBased(func(rng *rand.Rand, fanIn, fanOut int) func() float64 {
	scale := max(1.0, float64(fanIn+fanOut))
	limit := math.Sqrt(6.0 / scale)
	return func() float64 { return rng.Float64()*2*limit - limit }
})

// XavierNormal generates random values with a normal distribution with mean in 0
// and stddev of sqrt(2 / (fanIn+fanOut)).
//
// It initializes biases (anything with rank <= 1) to zeros.
var XavierNormal = fanBased(func(rng *rand.Rand, fanIn, fanOut int) func() float64 {
	scale := max(1.0, float64(fanIn+fanOut))
	stddev := math.Sqrt(2.0 / scale)
	return func() float64 { return rng.NormFloat64() * stddev }
})

// He tries to preserve the variance of 1, calculated for the Relu activation functions.
//
// It initializes biases (anything with rank <= 1) to zeros.
//
// [1] https://arxiv.org/pdf/1502.01852
var He = fanBased(func(rng *rand.Rand, fanIn, _ int) func() float64 {
	scale := max(1.0, float64(fanIn))
	stddev := math.Sqrt(2.0 / scale)
	return func() float64 { return rng.NormFloat64() * stddev }
})

// BroadcastTensorToShape is an initializer that takes a constant tensor as baseValue, and during initialization
// it broadcast it to the requested variable shape.
//
// The baseValue tensor's shape must match the last dimensions of the variable's shape. It can have a
// different dtype, in which case it is converted.
//
// It also works with a scalar baseValue, which translates to constant value initializer.
func BroadcastTensorToShape(baseValue *tensors.Tensor) Initializer {
	return func(_ *rand.Rand, shape shapes.Shape) *tensors.Tensor {
		baseShape := baseValue.Shape()
		if shape.Rank() < baseShape.Rank() || !slices.Equal(baseShape.Dimensions, shape.Dimensions[shape.Rank()-baseShape.Rank():]) {
			exceptions.Panicf("invalid BroadcastTensorToShape: variable being initialized has shape %s (rank %d), but base "+
				"tensor has shape %s (rank %d), which is not a suffix of the requested variable shape",
				shape, shape.Rank(), baseShape, baseShape.Rank())
		}
		base := tensors.CopyFlatDataAs[float64](baseValue)
		values := make([]float64, shape.Size())
		for ii := range values {
			values[ii] = base[ii%len(base)]
		}
		return tensors.FromFlatDataAndDimensions(values, shape.Dimensions...).ConvertDType(shape.DType)
	}
}
