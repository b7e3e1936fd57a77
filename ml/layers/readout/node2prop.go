package readout

import (
	"fmt"

	"github.com/gomlx/atomgnn/ml/layers"
	"github.com/gomlx/atomgnn/ml/layers/scalers"
	"github.com/gomlx/atomgnn/types/errdefs"
	"github.com/gomlx/atomgnn/types/tensors"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Block is the common interface of the readout blocks.
type Block interface {
	layers.Resetter
	layers.ParameterCounter

	// Forward computes the per-graph properties, shaped `[B, OutDim]`, from the node embeddings x, shaped
	// `[N, InDim]`, and the batch-assignment vector batch (length N, or nil for a single graph).
	Forward(x, batch *tensors.Tensor) (*tensors.Tensor, error)
}

// checkEmbeddings validates the node embeddings given to Forward.
func (c Config) checkEmbeddings(x *tensors.Tensor) error {
	if x == nil {
		return errors.Wrap(errdefs.ErrMissingField, "readout requires node embeddings")
	}
	if !tensors.IsFloat(x.DType()) || x.Rank() != 2 {
		return errors.Wrapf(errdefs.ErrShapeMismatch, "node embeddings must be a 2D float tensor, got %s", x.Shape())
	}
	if x.Shape().Dim(1) != c.InDim {
		return errors.Wrapf(errdefs.ErrShapeMismatch, "node embeddings have %d features, but in_dim=%d", x.Shape().Dim(1), c.InDim)
	}
	return nil
}

// applyModule runs the module, converting panics to errors.
func applyModule(module layers.Module, x *tensors.Tensor) (y *tensors.Tensor, err error) {
	err = exceptions.TryCatch[error](func() { y = module.Forward(x) })
	return
}

// Node2Prop1 computes global graph properties from node embeddings, as in EGNN:
//
//	Dense(in, hidden) -> activation -> Dense(hidden, hidden)   per node
//	Reduce                                                     per graph
//	Dense(hidden, hidden) -> activation -> Dense(hidden, out)  per graph, the last one without bias
type Node2Prop1 struct {
	config        Config
	nodeTransform *layers.Sequential
	output        *layers.Sequential
}

var _ Block = (*Node2Prop1)(nil)

// NewNode2Prop1 creates a Node2Prop1 block. It returns an error wrapping errdefs.ErrInvalidConfig
// for invalid configurations: Node2Prop1 doesn't support a scaler.
func NewNode2Prop1(config Config) (*Node2Prop1, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Scaler != scalers.TypeNone {
		return nil, errors.Wrapf(errdefs.ErrInvalidConfig, "Node2Prop1 doesn't support a scaler, got %s", config.Scaler)
	}
	seed := config.Seed
	n := &Node2Prop1{
		config: config,
		nodeTransform: layers.NewSequential(
			layers.NewDense(config.InDim, config.HiddenDim, true, seed),
			layers.NewActivation(config.Activation),
			layers.NewDense(config.HiddenDim, config.HiddenDim, true, seed+1),
		),
		output: layers.NewSequential(
			layers.NewDense(config.HiddenDim, config.HiddenDim, true, seed+2),
			layers.NewActivation(config.Activation),
			layers.NewDense(config.HiddenDim, config.OutDim, false, seed+3),
		),
	}
	klog.V(1).Infof("created %s", n)
	return n, nil
}

// Config returns the configuration of the block.
func (n *Node2Prop1) Config() Config { return n.config }

// ResetParameters implements layers.Resetter.
func (n *Node2Prop1) ResetParameters() {
	n.nodeTransform.ResetParameters()
	n.output.ResetParameters()
}

// NumParameters implements layers.ParameterCounter.
func (n *Node2Prop1) NumParameters() int {
	return n.nodeTransform.NumParameters() + n.output.NumParameters()
}

// Forward implements Block.
func (n *Node2Prop1) Forward(x, batch *tensors.Tensor) (*tensors.Tensor, error) {
	if err := n.config.checkEmbeddings(x); err != nil {
		return nil, err
	}
	h, err := applyModule(n.nodeTransform, x)
	if err != nil {
		return nil, errors.WithMessage(err, "Node2Prop1 node transform")
	}
	h, err = Reduce(h, batch, n.config.Aggregation)
	if err != nil {
		return nil, err
	}
	h, err = applyModule(n.output, h)
	if err != nil {
		return nil, errors.WithMessage(err, "Node2Prop1 output")
	}
	return h, nil
}

// String implements fmt.Stringer.
func (n *Node2Prop1) String() string {
	return fmt.Sprintf("Node2Prop1(%d->%d->%d, activation=%s, aggregation=%s)",
		n.config.InDim, n.config.HiddenDim, n.config.OutDim, n.config.Activation, n.config.Aggregation)
}

// Node2Prop2 computes global graph properties from node embeddings, as in SchNet:
//
//	Dense(in, hidden) -> activation -> Dense(hidden, out)  per node, the last one without bias
//	Scaler (optional)                                      per node
//	Reduce                                                 per graph
type Node2Prop2 struct {
	config Config
	output *layers.Sequential
	scaler *scalers.Scaler // nil if no scaler.
}

var _ Block = (*Node2Prop2)(nil)

// NewNode2Prop2 creates a Node2Prop2 block. It returns an error wrapping errdefs.ErrInvalidConfig
// for invalid configurations.
func NewNode2Prop2(config Config) (*Node2Prop2, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	n := &Node2Prop2{
		config: config,
		output: layers.NewSequential(
			layers.NewDense(config.InDim, config.HiddenDim, true, config.Seed),
			layers.NewActivation(config.Activation),
			layers.NewDense(config.HiddenDim, config.OutDim, false, config.Seed+1),
		),
	}
	if config.Scaler != scalers.TypeNone {
		var err error
		n.scaler, err = scalers.FromValues(config.Scaler, config.Mean, config.Stddev)
		if err != nil {
			return nil, err
		}
	}
	klog.V(1).Infof("created %s", n)
	return n, nil
}

// Config returns the configuration of the block.
func (n *Node2Prop2) Config() Config { return n.config }

// ResetParameters implements layers.Resetter. The scaler has no parameters to reset.
func (n *Node2Prop2) ResetParameters() {
	n.output.ResetParameters()
}

// NumParameters implements layers.ParameterCounter.
func (n *Node2Prop2) NumParameters() int {
	return n.output.NumParameters()
}

// Forward implements Block.
func (n *Node2Prop2) Forward(x, batch *tensors.Tensor) (*tensors.Tensor, error) {
	if err := n.config.checkEmbeddings(x); err != nil {
		return nil, err
	}
	h, err := applyModule(n.output, x)
	if err != nil {
		return nil, errors.WithMessage(err, "Node2Prop2 output")
	}
	if n.scaler != nil {
		h, err = applyModule(n.scaler, h)
		if err != nil {
			return nil, errors.WithMessage(err, "Node2Prop2 scaler")
		}
	}
	return Reduce(h, batch, n.config.Aggregation)
}

// String implements fmt.Stringer.
func (n *Node2Prop2) String() string {
	scaler := "none"
	if n.scaler != nil {
		scaler = n.scaler.String()
	}
	return fmt.Sprintf("Node2Prop2(%d->%d->%d, activation=%s, aggregation=%s, scaler=%s)",
		n.config.InDim, n.config.HiddenDim, n.config.OutDim, n.config.Activation, n.config.Aggregation, scaler)
}

// New creates the readout block by name: "node2prop1" or "node2prop2".
func New(name string, config Config) (Block, error) {
	switch name {
	case "node2prop1":
		return NewNode2Prop1(config)
	case "node2prop2":
		return NewNode2Prop2(config)
	}
	return nil, errors.Wrapf(errdefs.ErrInvalidConfig, "unknown readout block %q, options are node2prop1 and node2prop2", name)
}
