package readout

import (
	"testing"

	"github.com/gomlx/atomgnn/ml/layers/activations"
	"github.com/gomlx/atomgnn/ml/layers/scalers"
	"github.com/gomlx/atomgnn/types/errdefs"
	"github.com/gomlx/atomgnn/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// nodeEmbeddings returns deterministic embeddings of shape [numNodes, dim].
func nodeEmbeddings(numNodes, dim int) *tensors.Tensor {
	values := make([]float32, numNodes*dim)
	for ii := range values {
		values[ii] = float32(ii%7)/7 - 0.5
	}
	return tensors.FromFlatDataAndDimensions(values, numNodes, dim)
}

func TestNode2Prop1(t *testing.T) {
	config := Node2Prop1Config(4)
	config.HiddenDim = 8
	config.OutDim = 2
	config.Seed = 42
	block := must.M1(NewNode2Prop1(config))
	// (4*8+8) + (8*8+8) + (8*8+8) + 8*2
	assert.Equal(t, 40+72+72+16, block.NumParameters())

	x := nodeEmbeddings(5, 4)
	batch := tensors.FromValue([]int64{0, 0, 1, 1, 1})
	y := must.M1(block.Forward(x, batch))
	assert.Equal(t, dtypes.Float32, y.DType())
	assert.Equal(t, []int{2, 2}, y.Shape().Dimensions)

	// Same seed, same parameters.
	other := must.M1(NewNode2Prop1(config))
	assert.Equal(t, y.Value(), must.M1(other.Forward(x, batch)).Value())

	// Resetting parameters reproduces the initial state.
	block.ResetParameters()
	assert.Equal(t, y.Value(), must.M1(block.Forward(x, batch)).Value())

	// Graph-level outputs depend only on the nodes of each graph.
	first := must.M1(block.Forward(tensors.FromFlatDataAndDimensions(tensors.CopyFlatData[float32](x)[:8], 2, 4), nil))
	require.True(t, tensors.FromValue([][]float32{y.Value().([][]float32)[0]}).InDelta(first, 1e-5))
}

func TestNode2Prop2(t *testing.T) {
	config := Node2Prop2Config(3)
	config.HiddenDim = 6
	config.Seed = 7
	block := must.M1(NewNode2Prop2(config))
	assert.Equal(t, (3*6+6)+6*1, block.NumParameters())

	x := nodeEmbeddings(4, 3)
	batch := tensors.FromValue([]int32{0, 1, 1, 2})
	sum := must.M1(block.Forward(x, batch))
	assert.Equal(t, []int{3, 1}, sum.Shape().Dimensions)

	// Node2Prop2 reduces after the last layer, so the mean is the sum divided by the group sizes.
	config.Aggregation = AggregationMean
	meanBlock := must.M1(NewNode2Prop2(config))
	mean := must.M1(meanBlock.Forward(x, batch))
	sums, means := tensors.CopyFlatData[float32](sum), tensors.CopyFlatData[float32](mean)
	for ii, size := range []float32{1, 2, 1} {
		assert.InDelta(t, sums[ii]/size, means[ii], 1e-5)
	}

	// With a scale-shift scaler, each node contributes `y*stddev + mean`.
	config.Aggregation = AggregationAdd
	config.Scaler = scalers.TypeScaleShift
	config.Mean = []float64{1}
	config.Stddev = []float64{2}
	scaled := must.M1(must.M1(NewNode2Prop2(config)).Forward(x, batch))
	scaledValues := tensors.CopyFlatData[float32](scaled)
	for ii, size := range []float32{1, 2, 1} {
		assert.InDelta(t, 2*sums[ii]+size, scaledValues[ii], 1e-4)
	}
}

func TestReadoutInputErrors(t *testing.T) {
	block := must.M1(NewNode2Prop2(Node2Prop2Config(3)))

	_, err := block.Forward(nil, nil)
	assert.True(t, errors.Is(err, errdefs.ErrMissingField))

	_, err = block.Forward(nodeEmbeddings(2, 4), nil)
	assert.True(t, errors.Is(err, errdefs.ErrShapeMismatch))

	_, err = block.Forward(tensors.FromValue([]float32{1, 2, 3}), nil)
	assert.True(t, errors.Is(err, errdefs.ErrShapeMismatch))

	_, err = block.Forward(nodeEmbeddings(2, 3), tensors.FromValue([]int64{1, 1}))
	assert.True(t, errors.Is(err, errdefs.ErrInvalidGroup))
}

func TestConfig(t *testing.T) {
	var config Config
	require.NoError(t, yaml.Unmarshal([]byte(`
in_dim: 16
hidden_dim: 32
out_dim: 2
activation: silu
aggregation: mean
scaler: standardize
mean: [0.5, 1]
stddev: [2]
seed: 3
`), &config))
	assert.Equal(t, Config{
		InDim:       16,
		HiddenDim:   32,
		OutDim:      2,
		Activation:  activations.TypeSilu,
		Aggregation: AggregationMean,
		Scaler:      scalers.TypeStandardize,
		Mean:        []float64{0.5, 1},
		Stddev:      []float64{2},
		Seed:        3,
	}, config)
	require.NoError(t, config.Validate())
	block := must.M1(New("node2prop2", config))
	assert.Contains(t, block.(*Node2Prop2).String(), "aggregation=mean")

	// Node2Prop1 doesn't take a scaler.
	_, err := New("node2prop1", config)
	assert.True(t, errors.Is(err, errdefs.ErrInvalidConfig))

	for name, modify := range map[string]func(c *Config){
		"zero in_dim":    func(c *Config) { c.InDim = 0 },
		"bad activation": func(c *Config) { c.Activation = activations.Type(99) },
		"bad mean":       func(c *Config) { c.Mean = []float64{1, 2, 3} },
		"zero stddev":    func(c *Config) { c.Stddev = []float64{0} },
	} {
		c := config
		modify(&c)
		_, err := NewNode2Prop2(c)
		assert.Truef(t, errors.Is(err, errdefs.ErrInvalidConfig), "case %q: got %v", name, err)
	}

	_, err = New("node2prop3", config)
	assert.True(t, errors.Is(err, errdefs.ErrInvalidConfig))
}
