package readout

import (
	"github.com/gomlx/atomgnn/ml/layers/activations"
	"github.com/gomlx/atomgnn/ml/layers/scalers"
	"github.com/gomlx/atomgnn/types/errdefs"
	"github.com/pkg/errors"
)

// Config of the readout blocks. It can be read from YAML, for instance:
//
//	in_dim: 64
//	hidden_dim: 128
//	out_dim: 1
//	activation: shifted_softplus
//	aggregation: mean
//	scaler: scale_shift
//	mean: [-76.1]
//	stddev: [10.3]
type Config struct {
	InDim       int              `yaml:"in_dim"`
	HiddenDim   int              `yaml:"hidden_dim"`
	OutDim      int              `yaml:"out_dim"`
	Activation  activations.Type `yaml:"activation"`
	Aggregation Aggregation      `yaml:"aggregation"`

	// Scaler applied to the per-node outputs before the reduction. Only used by Node2Prop2.
	Scaler scalers.Type `yaml:"scaler"`

	// Mean and Stddev of the scaler, with either one value or one per output dimension.
	// They default to 0 and 1.
	Mean   []float64 `yaml:"mean,omitempty"`
	Stddev []float64 `yaml:"stddev,omitempty"`

	// Seed for the initialization of the parameters.
	Seed uint64 `yaml:"seed"`
}

// Node2Prop1Config returns the default configuration of Node2Prop1, as used by EGNN:
// hidden dimension 128, one output, swish activation and sum aggregation.
func Node2Prop1Config(inDim int) Config {
	return Config{
		InDim:       inDim,
		HiddenDim:   128,
		OutDim:      1,
		Activation:  activations.TypeSwish,
		Aggregation: AggregationAdd,
	}
}

// Node2Prop2Config returns the default configuration of Node2Prop2, as used by SchNet:
// hidden dimension 128, one output, shifted softplus activation, sum aggregation and no scaler.
func Node2Prop2Config(inDim int) Config {
	return Config{
		InDim:       inDim,
		HiddenDim:   128,
		OutDim:      1,
		Activation:  activations.TypeShiftedSoftplus,
		Aggregation: AggregationAdd,
	}
}

// Validate returns an error wrapping errdefs.ErrInvalidConfig if the configuration is invalid.
func (c Config) Validate() error {
	if c.InDim <= 0 || c.HiddenDim <= 0 || c.OutDim <= 0 {
		return errors.Wrapf(errdefs.ErrInvalidConfig, "readout dimensions must be > 0, got in_dim=%d, hidden_dim=%d, out_dim=%d",
			c.InDim, c.HiddenDim, c.OutDim)
	}
	if !c.Activation.IsAType() {
		return errors.Wrapf(errdefs.ErrInvalidConfig, "invalid activation %s", c.Activation)
	}
	if !c.Aggregation.IsAAggregation() {
		return errors.Wrapf(errdefs.ErrInvalidConfig, "invalid aggregation %s", c.Aggregation)
	}
	if !c.Scaler.IsAType() {
		return errors.Wrapf(errdefs.ErrInvalidConfig, "invalid scaler %s", c.Scaler)
	}
	for _, param := range []struct {
		name   string
		values []float64
	}{{"mean", c.Mean}, {"stddev", c.Stddev}} {
		if len(param.values) > 1 && len(param.values) != c.OutDim {
			return errors.Wrapf(errdefs.ErrInvalidConfig, "scaler %s has %d values, expected 1 or out_dim=%d",
				param.name, len(param.values), c.OutDim)
		}
	}
	return nil
}
