// Package activations implements several common activations, and includes a generic Apply method to apply an
// activation by its type.
//
// There is also FromName to convert an activation name (string) to its type. The name is resolved once,
// when a layer is built, and the Type is used from there on.
package activations

import (
	"math"

	"github.com/gomlx/atomgnn/types/errdefs"
	"github.com/gomlx/atomgnn/types/tensors"
	. "github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Type is an enum for the supported activation functions.
//
// It is converted to snake-format strings (e.g.: TypeLeakyRelu -> "leaky_relu"), and can be converted
// from string by using TypeString or FromName.
type Type int

const (
	TypeNone Type = iota
	TypeRelu
	TypeSigmoid
	TypeLeakyRelu
	TypeSelu

	TypeSwish

	// TypeSilu is an alias to TypeSwish
	TypeSilu

	TypeTanh

	// TypeShiftedSoftplus is `ln(1+e^x) - ln(2)`, used by SchNet. It is 0 at x=0.
	TypeShiftedSoftplus
)

//go:generate enumer -type=Type -trimprefix=Type -transform=snake -values -text -json -yaml activations.go

// Apply the given activation type in place to the values in x.
// The TypeNone activation is a no-op.
//
// See TypeValues for valid values.
func Apply(activation Type, x []float64) {
	var fn func(float64) float64
	switch activation {
	case TypeNone:
		return
	case TypeRelu:
		fn = Relu
	case TypeLeakyRelu:
		fn = LeakyRelu
	case TypeSigmoid:
		fn = Sigmoid
	case TypeTanh:
		fn = math.Tanh
	case TypeSwish, TypeSilu:
		fn = Swish
	case TypeSelu:
		fn = Selu
	case TypeShiftedSoftplus:
		fn = ShiftedSoftplus
	default:
		Panicf("Apply got invalid activation value %q: options are %v", activation, TypeValues())
	}
	for ii, v := range x {
		x[ii] = fn(v)
	}
}

// ApplyTensor returns a new tensor with the activation applied to every element of the float tensor x.
// The result has the same shape and dtype as x.
func ApplyTensor(activation Type, x *tensors.Tensor) (*tensors.Tensor, error) {
	if !tensors.IsFloat(x.DType()) {
		return nil, errors.Wrapf(errdefs.ErrShapeMismatch, "activation %s requires a float tensor, got %s", activation, x.Shape())
	}
	values := tensors.CopyFlatDataAs[float64](x)
	Apply(activation, values)
	return tensors.FromFlatDataAndDimensions(values, x.Shape().Dimensions...).ConvertDType(x.DType()), nil
}

// FromName converts the name of an activation to its type.
// It panics with a helpful message if name is invalid.
//
// And empty string is converted to TypeNone.
func FromName(activationName string) Type {
	if activationName == "" {
		return TypeNone
	}
	activation, err := TypeString(activationName)
	if err != nil {
		Panicf("invalid activation name %q: options are %v", activationName, TypeValues())
	}
	return activation
}

// Relu activation function. It returns Max(x, 0), and is commonly used as an activation function in neural networks.
func Relu(x float64) float64 {
	return max(x, 0)
}

// LeakyRelu activation function. It allows a small gradient when the unit is not active (x < 0).
// The `alpha` parameter is fixed at 0.3.
//
// It returns `x if x >= 0; alpha*x if x < 0`.
func LeakyRelu(x float64) float64 {
	return LeakyReluWithAlpha(x, 0.3)
}

// LeakyReluWithAlpha activation function. It allows a small gradient when the unit is not active (x < 0).
//
// It returns `x if x >= 0; alpha*x if x < 0`.
func LeakyReluWithAlpha(x float64, alpha float64) float64 {
	if x >= 0 {
		return x
	}
	return alpha * x
}

// Sigmoid returns `1/(1+e^-x)`.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	// Avoids overflow of e^-x for large negative x.
	e := math.Exp(x)
	return e / (1 + e)
}

// Swish activation (or SiLU) returns `x * Sigmoid(x)`.
//
// The SiLU activation function was introduced in "Gaussian Error Linear Units
// (GELUs)" [Hendrycks et al. 2016](https://arxiv.org/abs/1606.08415) and
// "Sigmoid-Weighted Linear Units for Neural Network Function Approximation in
// Reinforcement Learning"
// [Elfwing et al. 2017](https://arxiv.org/abs/1702.03118) and was independently
// discovered (and called swish) in "Searching for Apply Functions"
// [Ramachandran et al. 2017](https://arxiv.org/abs/1710.05941)
//
// Here the beta parameter is fixed at 1.0.
func Swish(x float64) float64 {
	return x * Sigmoid(x)
}

const (
	SeluAlpha = 1.67326324
	SeluScale = 1.05070098
)

// Selu stands for Scaled Exponential Linear Unit (SELU) activation function is defined as:
// . $SeluScale * x$ if $x > 0$
// . $SeluScale * SeluAlpha * (e^x - 1)$ if $x < 0$
func Selu(x float64) float64 {
	if x > 0 {
		return SeluScale * x
	}
	return SeluScale * SeluAlpha * math.Expm1(x)
}

// ShiftedSoftplus returns `ln(1+e^x) - ln(2)`, computed in a numerically stable way.
func ShiftedSoftplus(x float64) float64 {
	return max(x, 0) + math.Log1p(math.Exp(-math.Abs(x))) - math.Ln2
}
