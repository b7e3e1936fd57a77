package tensors

import (
	"reflect"

	"github.com/gomlx/atomgnn/types/errdefs"
	"github.com/gomlx/atomgnn/types/shapes"
	"github.com/pkg/errors"
)

// Concatenate returns a new tensor with the given tensors concatenated along axis.
//
// The resulting DType is the one of the first tensor: the others are converted to it. The result is
// placed on the device of the first tensor.
//
// It returns an error wrapping errdefs.ErrShapeMismatch if the ranks differ or if any axis other than
// the concatenation axis has a different dimension.
func Concatenate(axis int, tensorsList ...*Tensor) (*Tensor, error) {
	if len(tensorsList) == 0 {
		return nil, errors.Wrap(errdefs.ErrShapeMismatch, "Concatenate requires at least one tensor")
	}
	first := tensorsList[0]
	first.AssertValid()
	dtype := first.DType()
	shapesList := make([]shapes.Shape, len(tensorsList))
	converted := make([]*Tensor, len(tensorsList))
	for ii, t := range tensorsList {
		t.AssertValid()
		converted[ii] = t.ConvertDType(dtype)
		shapesList[ii] = converted[ii].Shape()
	}
	outputShape, err := shapes.ConcatenateOnAxis(axis, shapesList...)
	if err != nil {
		return nil, errors.Wrapf(errdefs.ErrShapeMismatch, "%v", err)
	}
	output := FromShape(outputShape)
	output.device = first.device

	// outerSize: number of "rows" before the concatenation axis.
	outerSize := 1
	for _, dim := range outputShape.Dimensions[:axis] {
		outerSize *= dim
	}
	chunkSizes := make([]int, len(converted))
	for ii, t := range converted {
		chunkSizes[ii] = t.Size() / max(outerSize, 1)
	}

	outputV := reflect.ValueOf(output.flat)
	pos := 0
	for outerIdx := range outerSize {
		for ii, t := range converted {
			chunk := chunkSizes[ii]
			if chunk == 0 {
				continue
			}
			srcV := reflect.ValueOf(t.flat).Slice(outerIdx*chunk, (outerIdx+1)*chunk)
			reflect.Copy(outputV.Slice(pos, pos+chunk), srcV)
			pos += chunk
		}
	}
	return output, nil
}
