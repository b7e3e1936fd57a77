// Package cutoff implements cutoff functions: smooth weights in [0, 1] for the edges of an atomistic graph,
// based on the distance between the atoms, that are exactly 0 at and beyond the cutoff radius.
//
// Two families are available: Cosine, and the polynomial Envelope of DimeNet (Klicpera et al., 2020,
// https://arxiv.org/abs/2003.03123).
package cutoff

import (
	"math"

	"github.com/gomlx/atomgnn/types/errdefs"
	"github.com/gomlx/atomgnn/types/tensors"
	"github.com/pkg/errors"
)

// Type of cutoff function.
type Type int

const (
	TypeCosine Type = iota
	TypeEnvelope
)

//go:generate enumer -type=Type -trimprefix=Type -transform=snake -values -text -json -yaml cutoff.go

// DefaultEnvelopeExponent is the exponent used by New for the Envelope cutoff.
const DefaultEnvelopeExponent = 5

// Function is a cutoff function with a fixed radius.
type Function interface {
	// Apply the cutoff function to the 1D float tensor of distances, returning a tensor with the same
	// shape and dtype. See each implementation for the expected scale of the distances.
	Apply(distances *tensors.Tensor) (*tensors.Tensor, error)

	// ApplyRaw applies the cutoff function to raw (not normalized) distances.
	ApplyRaw(distances *tensors.Tensor) (*tensors.Tensor, error)

	// Radius of the cutoff.
	Radius() float64
}

// New creates a cutoff function of the given type. The Envelope uses DefaultEnvelopeExponent.
func New(cutoffType Type, radius float64) (Function, error) {
	switch cutoffType {
	case TypeCosine:
		return NewCosine(radius)
	case TypeEnvelope:
		return NewEnvelope(radius, DefaultEnvelopeExponent)
	}
	return nil, errors.Wrapf(errdefs.ErrInvalidConfig, "unknown cutoff type %s, options are %v", cutoffType, TypeValues())
}

// mapDistances validates distances and returns a new tensor with fn applied to each of them.
func mapDistances(distances *tensors.Tensor, fn func(d float64) float64) (*tensors.Tensor, error) {
	if distances == nil {
		return nil, errors.Wrap(errdefs.ErrMissingField, "cutoff requires a tensor of distances")
	}
	if !tensors.IsFloat(distances.DType()) || distances.Rank() != 1 {
		return nil, errors.Wrapf(errdefs.ErrShapeMismatch, "cutoff requires a 1D float tensor of distances, got %s",
			distances.Shape())
	}
	values := tensors.CopyFlatDataAs[float64](distances)
	for ii, d := range values {
		values[ii] = fn(d)
	}
	output := tensors.FromFlatDataAndDimensions(values, len(values)).ConvertDType(distances.DType())
	return output.OnDevice(distances.Device()), nil
}

func checkRadius(radius float64) error {
	if !(radius > 0) || math.IsInf(radius, 1) {
		return errors.Wrapf(errdefs.ErrInvalidConfig, "cutoff radius must be a positive finite number, got %g", radius)
	}
	return nil
}

// Cosine cutoff: `0.5 * (cos(d * π / radius) + 1)` for d < radius, and 0 otherwise.
type Cosine struct {
	radius float64
}

// NewCosine returns a Cosine cutoff with the given radius.
func NewCosine(radius float64) (*Cosine, error) {
	if err := checkRadius(radius); err != nil {
		return nil, err
	}
	return &Cosine{radius: radius}, nil
}

// Radius implements Function.
func (c *Cosine) Radius() float64 { return c.radius }

// Value of the cutoff at distance d.
func (c *Cosine) Value(d float64) float64 {
	if !(d < c.radius) {
		return 0
	}
	return 0.5 * (math.Cos(d*math.Pi/c.radius) + 1)
}

// Apply implements Function. Distances are in the same unit as the radius.
func (c *Cosine) Apply(distances *tensors.Tensor) (*tensors.Tensor, error) {
	return mapDistances(distances, c.Value)
}

// ApplyRaw implements Function. It is the same as Apply.
func (c *Cosine) ApplyRaw(distances *tensors.Tensor) (*tensors.Tensor, error) {
	return c.Apply(distances)
}

// Envelope is the polynomial envelope cutoff of order p = exponent + 1, on distances x normalized by the radius:
//
//	1/(x + 1e-8) + a*x^(p-1) + b*x^p + c*x^(p+1), for x < 1, and 0 otherwise
//
// with a = -(p+1)(p+2)/2, b = p(p+2) and c = -p(p+1)/2. It behaves like 1/x close to 0 and decays smoothly to 0
// at x = 1.
type Envelope struct {
	radius   float64
	exponent int
	a, b, c  float64
}

// NewEnvelope returns an Envelope cutoff with the given radius and exponent (>= 0).
func NewEnvelope(radius float64, exponent int) (*Envelope, error) {
	if err := checkRadius(radius); err != nil {
		return nil, err
	}
	if exponent < 0 {
		return nil, errors.Wrapf(errdefs.ErrInvalidConfig, "envelope exponent must be >= 0, got %d", exponent)
	}
	p := float64(exponent + 1)
	return &Envelope{
		radius:   radius,
		exponent: exponent,
		a:        -(p + 1) * (p + 2) / 2,
		b:        p * (p + 2),
		c:        -p * (p + 1) / 2,
	}, nil
}

// Radius implements Function.
func (e *Envelope) Radius() float64 { return e.radius }

// Exponent of the envelope. The order of the polynomial is p = Exponent() + 1.
func (e *Envelope) Exponent() int { return e.exponent }

// Value of the envelope at the normalized distance x.
func (e *Envelope) Value(x float64) float64 {
	if !(x < 1) {
		return 0
	}
	p := e.exponent + 1
	xPowP0 := intPow(x, p-1)
	xPowP1 := xPowP0 * x
	xPowP2 := xPowP1 * x
	return 1/(x+1e-8) + e.a*xPowP0 + e.b*xPowP1 + e.c*xPowP2
}

// Apply implements Function. The distances must be normalized by the radius: the envelope is 0 for
// distances >= 1.
func (e *Envelope) Apply(normalized *tensors.Tensor) (*tensors.Tensor, error) {
	return mapDistances(normalized, e.Value)
}

// ApplyRaw implements Function: it normalizes the distances by the radius before applying the envelope.
func (e *Envelope) ApplyRaw(distances *tensors.Tensor) (*tensors.Tensor, error) {
	return mapDistances(distances, func(d float64) float64 { return e.Value(d / e.radius) })
}

// intPow returns x^n for n >= 0. 0^0 is 1.
func intPow(x float64, n int) float64 {
	result := 1.0
	for range n {
		result *= x
	}
	return result
}
