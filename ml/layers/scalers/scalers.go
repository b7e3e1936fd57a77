// Package scalers implements elementwise affine rescaling of per-node outputs, with a mean and a standard
// deviation given by the caller, typically computed from the training targets.
package scalers

import (
	"fmt"

	"github.com/gomlx/atomgnn/types/errdefs"
	"github.com/gomlx/atomgnn/types/tensors"
	"github.com/gomlx/atomgnn/types/xslices"
	. "github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"github.com/viterin/vek"
)

// Type of scaler.
type Type int

const (
	// TypeNone is the identity.
	TypeNone Type = iota

	// TypeScaleShift returns `x * stddev + mean`: it maps standardized predictions back to the scale of the targets.
	TypeScaleShift

	// TypeStandardize returns `(x - mean) / stddev`.
	TypeStandardize
)

//go:generate enumer -type=Type -trimprefix=Type -transform=snake -values -text -json -yaml scalers.go

// Scaler is a layer that rescales the last axis of its input.
// It has no trainable parameters.
type Scaler struct {
	Type         Type
	mean, stddev []float64 // Either 1 value (broadcast) or one per feature.
}

// New creates a Scaler. mean and stddev can be nil (defaulting to 0 and 1, that is, the identity),
// scalars or 1D tensors with one value per feature.
//
// It returns an error wrapping errdefs.ErrInvalidConfig for invalid parameters.
func New(scalerType Type, mean, stddev *tensors.Tensor) (*Scaler, error) {
	if !scalerType.IsAType() {
		return nil, errors.Wrapf(errdefs.ErrInvalidConfig, "invalid scaler type %s, options are %v", scalerType, TypeValues())
	}
	s := &Scaler{Type: scalerType, mean: []float64{0}, stddev: []float64{1}}
	var err error
	if mean != nil {
		if s.mean, err = parameterValues("mean", mean); err != nil {
			return nil, err
		}
	}
	if stddev != nil {
		if s.stddev, err = parameterValues("stddev", stddev); err != nil {
			return nil, err
		}
	}
	if scalerType == TypeStandardize {
		for _, v := range s.stddev {
			if v == 0 {
				return nil, errors.Wrap(errdefs.ErrInvalidConfig, "standardize scaler requires a non-zero stddev")
			}
		}
	}
	return s, nil
}

// FromValues is like New, but takes the mean and stddev as slices. Empty slices take the defaults.
func FromValues(scalerType Type, mean, stddev []float64) (*Scaler, error) {
	var meanT, stddevT *tensors.Tensor
	if len(mean) > 0 {
		meanT = tensors.FromValue(mean)
	}
	if len(stddev) > 0 {
		stddevT = tensors.FromValue(stddev)
	}
	return New(scalerType, meanT, stddevT)
}

func parameterValues(name string, t *tensors.Tensor) ([]float64, error) {
	if t.Rank() > 1 || t.Size() == 0 {
		return nil, errors.Wrapf(errdefs.ErrInvalidConfig, "scaler %s must be a scalar or a non-empty 1D tensor, got %s", name, t.Shape())
	}
	return tensors.CopyFlatDataAs[float64](t), nil
}

// broadcast returns the values with one per feature. It panics if it can't be broadcast.
func broadcast(name string, values []float64, numFeatures int) []float64 {
	if len(values) == numFeatures {
		return values
	}
	if len(values) != 1 {
		Panicf("scaler %s has %d values, but input has %d features", name, len(values), numFeatures)
	}
	return xslices.SliceWithValue(numFeatures, values[0])
}

// Forward implements layers.Module. The input must be a float tensor of rank 2, `[N, numFeatures]`.
func (s *Scaler) Forward(x *tensors.Tensor) *tensors.Tensor {
	x.AssertValid()
	if !tensors.IsFloat(x.DType()) || x.Rank() != 2 {
		Panicf("Scaler.Forward(): input must be a 2D float tensor, got %s", x.Shape())
	}
	if s.Type == TypeNone {
		return x
	}
	numRows, numFeatures := x.Shape().Dim(0), x.Shape().Dim(1)
	mean := broadcast("mean", s.mean, numFeatures)
	stddev := broadcast("stddev", s.stddev, numFeatures)
	values := tensors.CopyFlatDataAs[float64](x)
	for row := range numRows {
		rowValues := values[row*numFeatures : (row+1)*numFeatures]
		switch s.Type {
		case TypeScaleShift:
			vek.Mul_Inplace(rowValues, stddev)
			vek.Add_Inplace(rowValues, mean)
		case TypeStandardize:
			vek.Sub_Inplace(rowValues, mean)
			vek.Div_Inplace(rowValues, stddev)
		}
	}
	return tensors.FromFlatDataAndDimensions(values, numRows, numFeatures).ConvertDType(x.DType())
}

// String implements fmt.Stringer.
func (s *Scaler) String() string {
	return fmt.Sprintf("Scaler(%s, mean=%v, stddev=%v)", s.Type, s.mean, s.stddev)
}
