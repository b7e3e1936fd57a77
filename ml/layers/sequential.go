package layers

import (
	"fmt"
	"strings"

	"github.com/gomlx/atomgnn/ml/layers/activations"
	"github.com/gomlx/atomgnn/types/tensors"
	. "github.com/gomlx/exceptions"
)

// Activation is a Module that applies an activation function elementwise. It has no parameters,
// so it is not a Resetter.
type Activation struct {
	Type activations.Type
}

// NewActivation returns an activation layer.
func NewActivation(activation activations.Type) *Activation {
	return &Activation{Type: activation}
}

// Forward implements Module.
func (a *Activation) Forward(x *tensors.Tensor) *tensors.Tensor {
	y, err := activations.ApplyTensor(a.Type, x)
	if err != nil {
		panic(err)
	}
	return y
}

// String implements fmt.Stringer.
func (a *Activation) String() string { return "Activation(" + a.Type.String() + ")" }

// Sequential applies its children modules in order.
//
// The list of children is tagged at construction with their capabilities, and ResetParameters only visits
// the children that are Resetter.
type Sequential struct {
	children []Child
}

// NewSequential creates a Sequential with the given modules.
func NewSequential(modules ...Module) *Sequential {
	s := &Sequential{children: make([]Child, 0, len(modules))}
	for ii, m := range modules {
		if m == nil {
			Panicf("NewSequential(): module #%d is nil", ii)
		}
		s.children = append(s.children, NewChild(m))
	}
	return s
}

// Children returns the tagged list of children.
func (s *Sequential) Children() []Child { return s.children }

// Forward implements Module.
func (s *Sequential) Forward(x *tensors.Tensor) *tensors.Tensor {
	for _, child := range s.children {
		x = child.Module.Forward(x)
	}
	return x
}

// ResetParameters implements Resetter: it resets every child with parameters, skipping the others.
func (s *Sequential) ResetParameters() {
	for _, child := range s.children {
		if child.Resettable() {
			child.Resetter.ResetParameters()
		}
	}
}

// NumParameters implements ParameterCounter.
func (s *Sequential) NumParameters() (count int) {
	for _, child := range s.children {
		if counter, ok := child.Module.(ParameterCounter); ok {
			count += counter.NumParameters()
		}
	}
	return
}

// String implements fmt.Stringer.
func (s *Sequential) String() string {
	parts := make([]string, len(s.children))
	for ii, child := range s.children {
		parts[ii] = fmt.Sprint(child.Module)
	}
	return "Sequential(" + strings.Join(parts, ", ") + ")"
}
