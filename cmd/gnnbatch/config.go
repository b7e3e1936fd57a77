package main

import (
	"io"
	"os"

	"github.com/gomlx/atomgnn/examples/molecules"
	"github.com/gomlx/atomgnn/ml/data/graphs"
	"github.com/gomlx/atomgnn/ml/layers/cutoff"
	"github.com/gomlx/atomgnn/ml/layers/readout"
	"github.com/gomlx/atomgnn/types/errdefs"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config of a gnnbatch run.
type Config struct {
	Molecules molecules.Config    `yaml:"molecules"`
	Loader    graphs.LoaderConfig `yaml:"loader"`

	// Block is the readout block: "node2prop1" or "node2prop2".
	Block string `yaml:"block"`

	// Readout configuration. Its in_dim is always set to molecules.NumFeatures.
	Readout readout.Config `yaml:"readout"`

	Cutoff CutoffConfig `yaml:"cutoff"`

	// CacheSize is the number of molecules kept in an LRU cache. 0 disables the cache.
	CacheSize int `yaml:"cache_size"`

	// Prefetch is the number of batches prepared in the background. 0 disables prefetching.
	Prefetch int `yaml:"prefetch"`

	Epochs int `yaml:"epochs"`
}

// CutoffConfig selects the cutoff function used to weight the edges of the node features.
type CutoffConfig struct {
	Type   cutoff.Type `yaml:"type"`
	Radius float64     `yaml:"radius"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	loaderConfig := graphs.DefaultLoaderConfig()
	loaderConfig.Name = "molecules"
	loaderConfig.BatchSize = 16
	loaderConfig.Shuffle = true
	readoutConfig := readout.Node2Prop2Config(molecules.NumFeatures)
	readoutConfig.HiddenDim = 32
	return Config{
		Molecules: molecules.DefaultConfig(),
		Loader:    loaderConfig,
		Block:     "node2prop2",
		Readout:   readoutConfig,
		Cutoff:    CutoffConfig{Type: cutoff.TypeCosine, Radius: molecules.DefaultConfig().Cutoff},
		CacheSize: 128,
		Epochs:    1,
	}
}

// LoadConfig reads a YAML configuration from path, on top of DefaultConfig.
// An empty path returns DefaultConfig.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return config, errors.Wrapf(err, "opening configuration %q", path)
	}
	defer func() { _ = f.Close() }()
	return ParseConfig(f)
}

// ParseConfig reads a YAML configuration on top of DefaultConfig. Unknown fields are an error.
func ParseConfig(r io.Reader) (Config, error) {
	config := DefaultConfig()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && err != io.EOF {
		return config, errors.Wrapf(errdefs.ErrInvalidConfig, "parsing configuration: %v", err)
	}
	config.Readout.InDim = molecules.NumFeatures
	if config.Epochs <= 0 {
		return config, errors.Wrapf(errdefs.ErrInvalidConfig, "epochs must be > 0, got %d", config.Epochs)
	}
	return config, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the default configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			encoder := yaml.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent(2)
			if err := encoder.Encode(DefaultConfig()); err != nil {
				return errors.Wrap(err, "encoding configuration")
			}
			return encoder.Close()
		},
	}
}
