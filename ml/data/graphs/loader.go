package graphs

import (
	"fmt"
	"io"
	"iter"
	"math/rand/v2"
	"strings"

	"github.com/gomlx/atomgnn/types/errdefs"
	"github.com/gomlx/atomgnn/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Source of batches: implemented by Loader and Prefetcher.
//
// Next returns io.EOF at the end of an epoch, and keeps returning it until Reset is called.
type Source interface {
	Name() string
	Next() (*Record, error)
	Reset()
}

// LoaderConfig configures a Loader. It can be read from YAML.
type LoaderConfig struct {
	// Name of the loader, used in logs. If empty, a unique name is generated.
	Name string `yaml:"name,omitempty"`

	// BatchSize is the number of graphs per batch. It must be > 0.
	BatchSize int `yaml:"batch_size"`

	// Shuffle the order of the records with a new permutation every epoch.
	Shuffle bool `yaml:"shuffle"`

	// Seed of the random number generator used for shuffling. The same seed gives the same sequence
	// of permutations.
	Seed uint64 `yaml:"seed"`

	// DropIncomplete drops the last batch of an epoch if it has fewer than BatchSize graphs.
	DropIncomplete bool `yaml:"drop_incomplete"`

	// Device where the batch-assignment vector is placed. Defaults to tensors.CPU.
	Device tensors.Device `yaml:"device,omitempty"`

	// BatchDType is the name of the integer dtype of the batch-assignment vector (e.g. "int32").
	// Defaults to "int64".
	BatchDType string `yaml:"batch_dtype,omitempty"`

	// ValidateEdges checks that edge indices are in range and that node/edge fields have the right
	// number of rows. See Collater.WithValidation.
	ValidateEdges bool `yaml:"validate_edges"`

	// CollateFn must be left nil: the loader always merges graphs with its own Collater, and
	// NewLoader fails with errdefs.ErrCustomCollate otherwise.
	CollateFn func(records []*Record) (*Record, error) `yaml:"-"`
}

// DefaultLoaderConfig returns the configuration of a sequential loader with batches of 1 graph.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		BatchSize:  1,
		Device:     tensors.CPU,
		BatchDType: "int64",
	}
}

// ParseIntDType returns the integer dtype with the given name (case-insensitive), e.g. "int32" or "Int64".
func ParseIntDType(name string) (dtypes.DType, error) {
	for _, dtype := range []dtypes.DType{dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
		dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64} {
		if strings.EqualFold(dtype.String(), name) {
			return dtype, nil
		}
	}
	return dtypes.InvalidDType, errors.Wrapf(errdefs.ErrInvalidConfig, "%q is not an integer dtype", name)
}

// Loader iterates over a Dataset in batches of graphs, merged by a Collater.
//
// It follows the states: created, iterating (Next returns batches), exhausted (Next returns io.EOF)
// and, after Reset, a new epoch starts.
//
// A Loader is not safe for concurrent use: it should be owned by one goroutine. See Prefetch to
// prepare batches in the background.
type Loader struct {
	ds       Dataset
	config   LoaderConfig
	collater *Collater
	name     string

	rng   *rand.Rand
	order []int // Order of the records in the current epoch.
	pos   int   // Position in order of the next record to batch.
	epoch int
}

// NewLoader creates a Loader over ds.
//
// It returns an error wrapping errdefs.ErrCustomCollate if config.CollateFn is set, or errdefs.ErrInvalidConfig
// for other invalid configurations.
func NewLoader(ds Dataset, config LoaderConfig) (*Loader, error) {
	if ds == nil {
		return nil, errors.Wrap(errdefs.ErrInvalidConfig, "loader requires a dataset")
	}
	if config.CollateFn != nil {
		return nil, errors.Wrap(errdefs.ErrCustomCollate, "the loader always batches graphs with its own Collater")
	}
	if config.BatchSize <= 0 {
		return nil, errors.Wrapf(errdefs.ErrInvalidConfig, "batch size must be > 0, got %d", config.BatchSize)
	}
	batchDType := dtypes.Int64
	if config.BatchDType != "" {
		var err error
		batchDType, err = ParseIntDType(config.BatchDType)
		if err != nil {
			return nil, errors.WithMessage(err, "batch_dtype")
		}
	}
	l := &Loader{
		ds:     ds,
		config: config,
		collater: NewCollater(config.Device).
			WithBatchDType(batchDType).
			WithValidation(config.ValidateEdges),
		name: config.Name,
		rng:  rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15)),
	}
	if l.name == "" {
		l.name = "loader-" + uuid.NewString()
	}
	l.newEpochOrder()
	klog.V(1).Infof("Loader %q: %d records, batch size %d, shuffle=%v, %d batches per epoch",
		l.name, ds.Len(), config.BatchSize, config.Shuffle, l.NumBatches())
	return l, nil
}

// Name implements Source.
func (l *Loader) Name() string { return l.name }

// Config returns the configuration of the loader.
func (l *Loader) Config() LoaderConfig { return l.config }

// Collater used to merge the graphs.
func (l *Loader) Collater() *Collater { return l.collater }

// Epoch returns the current epoch, starting at 0. It is incremented by Reset.
func (l *Loader) Epoch() int { return l.epoch }

// NumBatches returns the number of batches per epoch.
func (l *Loader) NumBatches() int {
	n := l.ds.Len()
	if l.config.DropIncomplete {
		return n / l.config.BatchSize
	}
	return (n + l.config.BatchSize - 1) / l.config.BatchSize
}

// newEpochOrder draws the order of the records for the epoch.
func (l *Loader) newEpochOrder() {
	n := l.ds.Len()
	if l.config.Shuffle {
		l.order = l.rng.Perm(n)
	} else {
		if len(l.order) != n {
			l.order = make([]int, n)
		}
		for ii := range l.order {
			l.order[ii] = ii
		}
	}
	l.pos = 0
}

// Next implements Source: it returns the next batch of the epoch, or io.EOF when the epoch is exhausted.
func (l *Loader) Next() (*Record, error) {
	remaining := len(l.order) - l.pos
	if remaining <= 0 || (l.config.DropIncomplete && remaining < l.config.BatchSize) {
		l.pos = len(l.order)
		return nil, io.EOF
	}
	size := min(remaining, l.config.BatchSize)
	records := make([]*Record, size)
	for ii := range size {
		idx := l.order[l.pos+ii]
		record, err := l.ds.Get(idx)
		if err != nil {
			return nil, errors.WithMessagef(err, "loader %q: reading record %d", l.name, idx)
		}
		records[ii] = record
	}
	batch, err := l.collater.Collate(records)
	if err != nil {
		return nil, errors.WithMessagef(err, "loader %q: collating records %v", l.name, l.order[l.pos:l.pos+size])
	}
	l.pos += size
	return batch, nil
}

// Reset implements Source: it starts a new epoch, with a new permutation if shuffling.
func (l *Loader) Reset() {
	l.epoch++
	l.newEpochOrder()
	klog.V(1).Infof("Loader %q: starting epoch %d", l.name, l.epoch)
}

// All returns an iterator over one full epoch of batches. If the current epoch has already started,
// the loader is Reset first.
//
// Iteration stops after the first error, which is yielded with a nil batch.
func (l *Loader) All() iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		if l.pos > 0 {
			l.Reset()
		}
		for {
			batch, err := l.Next()
			if err == io.EOF {
				return
			}
			if !yield(batch, err) || err != nil {
				return
			}
		}
	}
}

// String implements fmt.Stringer.
func (l *Loader) String() string {
	return fmt.Sprintf("Loader(%q, batch_size=%d, shuffle=%v, epoch=%d)", l.name, l.config.BatchSize, l.config.Shuffle, l.epoch)
}
