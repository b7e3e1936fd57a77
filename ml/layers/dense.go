package layers

import (
	"fmt"
	"math/rand/v2"

	"github.com/gomlx/atomgnn/ml/initializers"
	"github.com/gomlx/atomgnn/types/shapes"
	"github.com/gomlx/atomgnn/types/tensors"
	. "github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/viterin/vek"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// Dense is a single dense linear layer, a learnable linear transformation `x · W (+ b)`.
//
// Input has shape `[N, InDim]` and output `[N, OutDim]`, with the same dtype as the input.
// Parameters are kept in float64, and the computation is done in float64.
type Dense struct {
	InDim, OutDim int
	UseBias       bool

	weights []float64 // Shape [InDim, OutDim], row-major.
	bias    []float64 // Shape [OutDim], nil if !UseBias.

	initializer initializers.Initializer
	seed        uint64
}

// NewDense creates a Dense layer, with weights initialized with initializers.XavierUniform from the given seed,
// and zero biases.
//
// It panics if the dimensions are not positive.
func NewDense(inDim, outDim int, useBias bool, seed uint64) *Dense {
	if inDim <= 0 || outDim <= 0 {
		Panicf("NewDense(%d, %d): dimensions must be > 0", inDim, outDim)
	}
	d := &Dense{
		InDim:       inDim,
		OutDim:      outDim,
		UseBias:     useBias,
		initializer: initializers.XavierUniform,
		seed:        seed,
	}
	d.ResetParameters()
	return d
}

// WithInitializer sets the initializer of the weights and reinitializes the parameters.
// Biases are always initialized to zero.
func (d *Dense) WithInitializer(initializer initializers.Initializer) *Dense {
	d.initializer = initializer
	d.ResetParameters()
	return d
}

// ResetParameters implements Resetter. The random number generator is reseeded every time, so the
// parameters are always the same for the same seed.
func (d *Dense) ResetParameters() {
	rng := rand.New(rand.NewPCG(d.seed, uint64(d.InDim)<<32|uint64(d.OutDim)))
	w := d.initializer(rng, shapes.Make(dtypes.Float64, d.InDim, d.OutDim))
	d.weights = tensors.CopyFlatDataAs[float64](w)
	if d.UseBias {
		d.bias = make([]float64, d.OutDim)
	} else {
		d.bias = nil
	}
}

// NumParameters implements ParameterCounter.
func (d *Dense) NumParameters() int {
	return len(d.weights) + len(d.bias)
}

// Weights returns a copy of the weights, shaped `[InDim, OutDim]`.
func (d *Dense) Weights() *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(d.weights, d.InDim, d.OutDim)
}

// Bias returns a copy of the bias, shaped `[OutDim]`, or nil if the layer has no bias.
func (d *Dense) Bias() *tensors.Tensor {
	if !d.UseBias {
		return nil
	}
	return tensors.FromFlatDataAndDimensions(d.bias, d.OutDim)
}

// SetWeights sets the weights from a tensor shaped `[InDim, OutDim]` of any float dtype.
func (d *Dense) SetWeights(w *tensors.Tensor) {
	w.Shape().AssertDims(d.InDim, d.OutDim)
	d.weights = tensors.CopyFlatDataAs[float64](w)
}

// SetBias sets the bias from a tensor shaped `[OutDim]`. It panics if the layer has no bias.
func (d *Dense) SetBias(b *tensors.Tensor) {
	if !d.UseBias {
		Panicf("Dense.SetBias(): layer created without bias")
	}
	b.Shape().AssertDims(d.OutDim)
	d.bias = tensors.CopyFlatDataAs[float64](b)
}

// Forward implements Module.
func (d *Dense) Forward(x *tensors.Tensor) *tensors.Tensor {
	x.AssertValid()
	if !tensors.IsFloat(x.DType()) {
		Panicf("Dense.Forward(): input must be a float tensor, got %s", x.Shape())
	}
	x.Shape().AssertDims(-1, d.InDim)
	numRows := x.Shape().Dim(0)
	output := make([]float64, numRows*d.OutDim)
	if numRows > 0 {
		input := tensors.CopyFlatDataAs[float64](x)
		blas64.Gemm(blas.NoTrans, blas.NoTrans, 1,
			blas64.General{Rows: numRows, Cols: d.InDim, Stride: d.InDim, Data: input},
			blas64.General{Rows: d.InDim, Cols: d.OutDim, Stride: d.OutDim, Data: d.weights},
			0,
			blas64.General{Rows: numRows, Cols: d.OutDim, Stride: d.OutDim, Data: output})
		if d.UseBias {
			for row := range numRows {
				vek.Add_Inplace(output[row*d.OutDim:(row+1)*d.OutDim], d.bias)
			}
		}
	}
	return tensors.FromFlatDataAndDimensions(output, numRows, d.OutDim).ConvertDType(x.DType())
}

// String implements fmt.Stringer.
func (d *Dense) String() string {
	return fmt.Sprintf("Dense(%d->%d, bias=%v)", d.InDim, d.OutDim, d.UseBias)
}
