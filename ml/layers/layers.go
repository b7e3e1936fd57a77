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

// Package layers holds the small collection of modeling layers used by the readout blocks: a dense layer,
// activations as layers and a sequential container. They are evaluated eagerly on host tensors.
//
// A small convention on naming: typically layers are nouns (like "Dense" (layer), "Sequential"),
// while computations are usually verbs ("Reduce..", "Apply", etc.).
//
// Layers panic (with github.com/gomlx/exceptions) on invalid inputs, like the graph building functions
// they mirror: the blocks that use them convert those panics to errors at their API boundary.
package layers

import (
	"github.com/gomlx/atomgnn/types/tensors"
)

// Module is a layer that transforms a tensor of shape `[N, featureDimension]` into a new one.
type Module interface {
	Forward(x *tensors.Tensor) *tensors.Tensor
}

// Resetter is implemented by modules with parameters: ResetParameters reinitializes them to their
// initial (deterministic) values.
type Resetter interface {
	ResetParameters()
}

// ParameterCounter is implemented by modules with parameters.
type ParameterCounter interface {
	NumParameters() int
}

// Child is an entry in the explicit list of children of a composite module, tagged with its capabilities.
type Child struct {
	Module Module

	// Resetter is the module as a Resetter, or nil if it has no parameters to reset.
	Resetter Resetter
}

// NewChild tags a module with its capabilities.
func NewChild(module Module) Child {
	resetter, _ := module.(Resetter)
	return Child{Module: module, Resetter: resetter}
}

// Resettable returns whether the child has parameters to reset.
func (c Child) Resettable() bool { return c.Resetter != nil }
