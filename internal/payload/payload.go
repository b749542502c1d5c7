// Package payload generates the synthetic request bodies sent by each test.
package payload

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// Alphabet is the character set payloads are drawn from
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	// DefaultMinLength is the smallest payload length generated by default
	DefaultMinLength = 0
	// DefaultMaxLength is the exclusive upper bound on payload length
	DefaultMaxLength = 4096
)

// Source hands out payloads on demand
type Source interface {
	Next() []byte
}

// Generator produces alphanumeric payloads with a length drawn uniformly from
// [MinLength, MaxLength). It is safe for concurrent use.
type Generator struct {
	mu        sync.Mutex
	rng       *rand.Rand
	minLength int
	maxLength int
}

// NewGenerator creates a generator seeded from the runtime's entropy source
func NewGenerator(minLength, maxLength int) (*Generator, error) {
	return NewSeededGenerator(minLength, maxLength, rand.Uint64(), rand.Uint64())
}

// NewSeededGenerator creates a deterministic generator, mostly useful in tests
func NewSeededGenerator(minLength, maxLength int, seed1, seed2 uint64) (*Generator, error) {
	if minLength < 0 {
		return nil, fmt.Errorf("minimum payload length cannot be negative")
	}
	if maxLength <= minLength {
		return nil, fmt.Errorf("maximum payload length must be greater than minimum (%d <= %d)", maxLength, minLength)
	}
	return &Generator{
		rng:       rand.New(rand.NewPCG(seed1, seed2)),
		minLength: minLength,
		maxLength: maxLength,
	}, nil
}

// Next returns a new payload
func (g *Generator) Next() []byte {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := g.minLength + g.rng.IntN(g.maxLength-g.minLength)
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = Alphabet[g.rng.IntN(len(Alphabet))]
	}
	return buf
}

// Fixed replays the given payloads in order, wrapping around at the end
type Fixed struct {
	mu       sync.Mutex
	payloads [][]byte
	next     int
}

// NewFixed creates a Fixed source. Without payloads it hands out empty ones.
func NewFixed(payloads ...[]byte) *Fixed {
	if len(payloads) == 0 {
		payloads = [][]byte{{}}
	}
	return &Fixed{payloads: payloads}
}

// Next returns a copy of the next payload
func (f *Fixed) Next() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := f.payloads[f.next%len(f.payloads)]
	f.next++
	out := make([]byte, len(p))
	copy(out, p)
	return out
}
