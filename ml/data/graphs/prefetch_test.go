package graphs

import (
	"io"
	"testing"

	"github.com/gomlx/atomgnn/types/errdefs"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefetch(t *testing.T) {
	config := LoaderConfig{BatchSize: 3, Shuffle: true, Seed: 1}
	want := epochTargets(t, must.M1(NewLoader(makeDataset(10), config)))

	p := Prefetch(must.M1(NewLoader(makeDataset(10), config)), 2)
	defer p.Close()
	assert.Contains(t, p.Name(), "[Prefetch]")
	assert.Equal(t, want, epochTargets(t, p))
	_, err := p.Next()
	assert.Equal(t, io.EOF, err)

	// Second epoch matches the second epoch of a plain loader.
	reference := must.M1(NewLoader(makeDataset(10), config))
	_ = epochTargets(t, reference)
	reference.Reset()
	p.Reset()
	assert.Equal(t, epochTargets(t, reference), epochTargets(t, p))
}

func TestPrefetchResetMidEpoch(t *testing.T) {
	p := Prefetch(must.M1(NewLoader(makeDataset(10), LoaderConfig{BatchSize: 1})), 4)
	_ = must.M1(p.Next())
	p.Reset()
	targets := epochTargets(t, p)
	require.Len(t, targets, 10)
	assert.Equal(t, []int64{0}, targets[0])

	p.Close()
	_, err := p.Next()
	assert.True(t, errors.Is(err, errdefs.ErrPrefetcherClosed))
	p.Close() // No-op.
}
