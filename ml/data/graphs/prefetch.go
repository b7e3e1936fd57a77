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

package graphs

import (
	"fmt"
	"io"
	"runtime"

	"github.com/gomlx/atomgnn/types/errdefs"
	"k8s.io/klog/v2"
)

// Prefetcher is a wrapper around a Source that prepares the next batches in a background goroutine,
// while the consumer is busy with the current one.
//
// There is exactly one background goroutine: the wrapped Source is only called from it, so it doesn't need
// to be thread-safe. But the Prefetcher itself should be owned by one goroutine, like the Loader.
//
// To avoid leaking the goroutine, call Close when done. It is also stopped if the Prefetcher is garbage
// collected.
type Prefetcher struct {
	impl *prefetchImpl

	// keepAlive is used only to keep Prefetcher alive in the middle of long calls.
	keepAlive int64
}

type prefetchUnit struct {
	batch *Record
	err   error
}

// prefetchImpl separates the implementation of Prefetcher. It's important
// that it doesn't point back to the original Prefetcher, so garbage collecting
// will also stop the goroutine.
type prefetchImpl struct {
	source Source
	buffer int

	results chan prefetchUnit
	stop    chan struct{}
	done    chan struct{}

	finalErr error // io.EOF or the error that stopped the epoch, once consumed.
	closed   bool
}

// Prefetch starts reading batches from source in a background goroutine, keeping up to buffer batches
// ready. A buffer < 1 is taken as 1.
func Prefetch(source Source, buffer int) *Prefetcher {
	impl := &prefetchImpl{
		source: source,
		buffer: max(buffer, 1),
	}
	p := &Prefetcher{impl: impl}
	// If the Prefetcher is garbage collected, stop the goroutine.
	runtime.SetFinalizer(p, func(p *Prefetcher) {
		p.impl.stopGoRoutine()
	})
	impl.startGoRoutine()
	return p
}

func (impl *prefetchImpl) startGoRoutine() {
	impl.results = make(chan prefetchUnit, impl.buffer)
	impl.stop = make(chan struct{})
	impl.done = make(chan struct{})
	impl.finalErr = nil
	go func(source Source, results chan<- prefetchUnit, stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		defer close(results)
		for {
			batch, err := source.Next()
			select {
			case <-stop:
				return
			case results <- prefetchUnit{batch: batch, err: err}:
				// Batch (or end of epoch) delivered.
			}
			if err != nil {
				if err != io.EOF {
					klog.Errorf("Prefetcher(%q): %+v", source.Name(), err)
				}
				return
			}
		}
	}(impl.source, impl.results, impl.stop, impl.done)
}

// stopGoRoutine signals the goroutine to stop, discards the prefetched batches and waits for it to finish.
func (impl *prefetchImpl) stopGoRoutine() {
	if impl.stop == nil {
		return
	}
	close(impl.stop)
	for range impl.results {
		// Discard remaining entries.
	}
	<-impl.done
	impl.stop = nil
}

// Name implements Source.
func (p *Prefetcher) Name() string {
	return fmt.Sprintf("%s [Prefetch]", p.impl.source.Name())
}

// Next implements Source. It returns the next batch prepared by the background goroutine.
//
// After the end of the epoch (or an error), it keeps returning the same error until Reset.
func (p *Prefetcher) Next() (*Record, error) {
	impl := p.impl
	if impl.closed {
		return nil, errdefs.ErrPrefetcherClosed
	}
	if impl.finalErr != nil {
		return nil, impl.finalErr
	}
	unit, ok := <-impl.results
	if !ok {
		// Only happens if the goroutine was stopped without delivering the final error.
		impl.finalErr = io.EOF
		return nil, impl.finalErr
	}
	if unit.err != nil {
		impl.finalErr = unit.err
	}

	// This no-op prevents `p` from being garbage collected and the goroutine killed in the middle
	// of the Next operation. Leave this at the end.
	p.keepAlive++
	return unit.batch, unit.err
}

// Reset implements Source: it stops the background goroutine, resets the wrapped source and starts again.
func (p *Prefetcher) Reset() {
	impl := p.impl
	if impl.closed {
		klog.Warningf("Prefetcher(%q).Reset called after Close", impl.source.Name())
		return
	}
	impl.stopGoRoutine()
	impl.source.Reset()
	impl.startGoRoutine()

	// This no-op prevents `p` from being garbage collected and the goroutine killed in the middle
	// of the Reset operation. Leave this at the end.
	p.keepAlive++
}

// Close stops the background goroutine. Subsequent calls to Next return errdefs.ErrPrefetcherClosed.
func (p *Prefetcher) Close() {
	impl := p.impl
	if impl.closed {
		return
	}
	impl.stopGoRoutine()
	impl.closed = true
	runtime.SetFinalizer(p, nil)
}
