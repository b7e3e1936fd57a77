package graphs

import (
	"sync/atomic"

	"github.com/gomlx/atomgnn/types/errdefs"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// Dataset is a random-access collection of graph records.
//
// Implementations used with Prefetch are read from a background goroutine, and the ones
// used with Cached may be read concurrently.
type Dataset interface {
	// Len returns the number of records.
	Len() int

	// Get returns the record at index, in the range [0, Len()).
	Get(index int) (*Record, error)
}

// InMemoryDataset is a Dataset backed by a slice of records.
type InMemoryDataset struct {
	records []*Record
}

// InMemory returns a Dataset holding the given records. The records are not copied.
func InMemory(records ...*Record) *InMemoryDataset {
	return &InMemoryDataset{records: records}
}

// Len implements Dataset.
func (ds *InMemoryDataset) Len() int { return len(ds.records) }

// Get implements Dataset.
func (ds *InMemoryDataset) Get(index int) (*Record, error) {
	if index < 0 || index >= len(ds.records) {
		return nil, errors.Errorf("index %d out of range for in-memory dataset with %d records", index, len(ds.records))
	}
	return ds.records[index], nil
}

// Append adds records to the dataset.
func (ds *InMemoryDataset) Append(records ...*Record) {
	ds.records = append(ds.records, records...)
}

// CachedDataset keeps the most recently used records of a slow Dataset (e.g. one that builds the
// graphs on the fly) in memory.
//
// It is safe for concurrent use if the underlying dataset is.
type CachedDataset struct {
	ds           Dataset
	cache        *lru.Cache[int, *Record]
	hits, misses atomic.Int64
}

// Cached returns a Dataset that caches up to size records of ds.
// It returns an error wrapping errdefs.ErrInvalidConfig if size <= 0.
func Cached(ds Dataset, size int) (*CachedDataset, error) {
	cache, err := lru.New[int, *Record](size)
	if err != nil {
		return nil, errors.Wrapf(errdefs.ErrInvalidConfig, "cache of size %d: %v", size, err)
	}
	return &CachedDataset{ds: ds, cache: cache}, nil
}

// Len implements Dataset.
func (c *CachedDataset) Len() int { return c.ds.Len() }

// Get implements Dataset.
func (c *CachedDataset) Get(index int) (*Record, error) {
	if record, found := c.cache.Get(index); found {
		c.hits.Add(1)
		return record, nil
	}
	c.misses.Add(1)
	record, err := c.ds.Get(index)
	if err != nil {
		return nil, err
	}
	c.cache.Add(index, record)
	return record, nil
}

// Stats returns the number of cache hits and misses so far.
func (c *CachedDataset) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Purge empties the cache.
func (c *CachedDataset) Purge() {
	c.cache.Purge()
}
