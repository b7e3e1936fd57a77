package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gomlx/atomgnn/examples/molecules"
	"github.com/gomlx/atomgnn/ml/layers/activations"
	"github.com/gomlx/atomgnn/ml/layers/cutoff"
	"github.com/gomlx/atomgnn/types/errdefs"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	config := must.M1(ParseConfig(strings.NewReader(`
molecules:
  num_molecules: 20
  min_atoms: 2
  max_atoms: 5
  box_size: 3
  cutoff: 2
loader:
  batch_size: 4
  batch_dtype: int32
block: node2prop1
readout:
  hidden_dim: 8
  out_dim: 1
  activation: swish
  aggregation: mean
cutoff:
  type: envelope
  radius: 2
prefetch: 2
epochs: 3
`)))
	assert.Equal(t, 20, config.Molecules.NumMolecules)
	assert.Equal(t, 4, config.Loader.BatchSize)
	assert.Equal(t, "int32", config.Loader.BatchDType)
	assert.Equal(t, "node2prop1", config.Block)
	assert.Equal(t, activations.TypeSwish, config.Readout.Activation)
	assert.Equal(t, molecules.NumFeatures, config.Readout.InDim)
	assert.Equal(t, cutoff.TypeEnvelope, config.Cutoff.Type)
	assert.Equal(t, 3, config.Epochs)
	// Unset values keep their defaults.
	assert.Equal(t, DefaultConfig().CacheSize, config.CacheSize)

	_, err := ParseConfig(strings.NewReader("unknown_field: 1\n"))
	assert.True(t, errors.Is(err, errdefs.ErrInvalidConfig))
	_, err = ParseConfig(strings.NewReader("epochs: 0\n"))
	assert.True(t, errors.Is(err, errdefs.ErrInvalidConfig))

	// An empty file is the default configuration.
	config = must.M1(ParseConfig(strings.NewReader("")))
	assert.Equal(t, DefaultConfig().Block, config.Block)
}

func TestConfigCommandRoundTrip(t *testing.T) {
	cmd := newConfigCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())
	config := must.M1(ParseConfig(&buf))
	want := DefaultConfig()
	want.Readout.InDim = molecules.NumFeatures
	assert.Equal(t, want, config)
}

func TestRun(t *testing.T) {
	for _, block := range []string{"node2prop1", "node2prop2"} {
		for _, prefetch := range []int{0, 2} {
			config := DefaultConfig()
			config.Molecules.NumMolecules = 10
			config.Loader.BatchSize = 3
			config.Block = block
			config.Prefetch = prefetch
			config.Epochs = 2
			config.Readout.HiddenDim = 4
			report := must.M1(Run(config, false))
			assert.Equal(t, 2, report.Epochs)
			assert.Equal(t, 8, report.Batches, "4 batches per epoch")
			assert.Equal(t, 20, report.Graphs)
			assert.Len(t, report.Predictions, 20)
			assert.Len(t, report.Targets, 20)
			assert.Len(t, report.NumAtoms, 20)
			// The second epoch reads all molecules from the cache.
			assert.Equal(t, int64(10), report.CacheHits)
			assert.Equal(t, int64(10), report.CacheMisses)

			var buf bytes.Buffer
			require.NoError(t, report.Render(&buf))
			assert.Contains(t, buf.String(), "prediction")
			assert.Contains(t, buf.String(), block)
		}
	}

	config := DefaultConfig()
	config.Block = "unknown"
	_, err := Run(config, false)
	assert.True(t, errors.Is(err, errdefs.ErrInvalidConfig))
}
