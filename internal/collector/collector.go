// Package collector aggregates test results from concurrently running tests.
package collector

import (
	"errors"
	"iter"
	"sync"
	"time"

	"github.com/studiowebux/roundtrip/internal/types"
)

// ErrCollectionFinalized is returned by any mutation after Finish
var ErrCollectionFinalized = errors.New("collection finalized")

// Collector is a thread-safe, freezable sink for test results. The elapsed
// clock starts on the first accepted result and stops on Finish.
type Collector struct {
	mu       sync.Mutex
	results  []*types.TestResult
	started  time.Time
	stopped  time.Time
	finished bool
}

// New creates an empty collector with an expected capacity
func New(capacity int) *Collector {
	if capacity < 0 {
		capacity = 0
	}
	return &Collector{
		results: make([]*types.TestResult, 0, capacity),
	}
}

// Add appends a result
func (c *Collector) Add(result *types.TestResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finished {
		return ErrCollectionFinalized
	}
	if c.started.IsZero() {
		c.started = time.Now()
	}
	c.results = append(c.results, result)
	return nil
}

// Remove deletes the first occurrence of result and reports whether it was found
func (c *Collector) Remove(result *types.TestResult) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finished {
		return false, ErrCollectionFinalized
	}
	for i, r := range c.results {
		if r == result {
			c.results = append(c.results[:i], c.results[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// Clear drops every result. The elapsed clock keeps running.
func (c *Collector) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finished {
		return ErrCollectionFinalized
	}
	c.results = c.results[:0]
	return nil
}

// Finish stops the clock and freezes the collection. Calling it again is a no-op.
func (c *Collector) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finished {
		return
	}
	if !c.started.IsZero() {
		c.stopped = time.Now()
	}
	c.finished = true
}

// Frozen reports whether Finish has been called
func (c *Collector) Frozen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

// Count returns the number of results held
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// Elapsed returns the time from the first accepted result to Finish, or to
// now while the collection is still open. It is zero if nothing was added.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.started.IsZero():
		return 0
	case c.finished:
		return c.stopped.Sub(c.started)
	default:
		return time.Since(c.started)
	}
}

// Contains reports whether result is in the collection
func (c *Collector) Contains(result *types.TestResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.results {
		if r == result {
			return true
		}
	}
	return false
}

// Results returns a snapshot of the results in arrival order
func (c *Collector) Results() []*types.TestResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*types.TestResult, len(c.results))
	copy(out, c.results)
	return out
}

// All iterates over a snapshot taken when iteration starts
func (c *Collector) All() iter.Seq[*types.TestResult] {
	return func(yield func(*types.TestResult) bool) {
		for _, r := range c.Results() {
			if !yield(r) {
				return
			}
		}
	}
}
