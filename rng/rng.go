// Package rng provides the injectable random source used by combat, wave
// generation, and upgrade rolls.
//
// Everything that rolls dice takes a Source so runs are reproducible from a
// seed and tests can pin outcomes.
package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// Source is the subset of *rand.Rand the game core consumes.
type Source interface {
	Intn(n int) int
	Float64() float64
	Shuffle(n int, swap func(i, j int))
}

// New returns a seeded pseudo-random source.
func New(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Fixed is a Source that replays a scripted sequence of floats. Intn maps the
// next float onto [0, n). Shuffle is a no-op so list order stays as given.
// When the script runs out it wraps around.
type Fixed struct {
	Values []float64
	pos    int
}

// NewFixed creates a scripted source.
func NewFixed(values ...float64) *Fixed {
	if len(values) == 0 {
		values = []float64{0}
	}
	return &Fixed{Values: values}
}

// Float64 returns the next scripted value.
func (f *Fixed) Float64() float64 {
	v := f.Values[f.pos%len(f.Values)]
	f.pos++
	return v
}

// Intn returns the next scripted value scaled to [0, n).
func (f *Fixed) Intn(n int) int {
	if n <= 0 {
		panic("rng: Intn called with n <= 0")
	}
	i := int(f.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// Shuffle leaves the order untouched.
func (f *Fixed) Shuffle(n int, swap func(i, j int)) {}

// WeightedIndex picks an index with probability proportional to weights.
// Returns -1 when all weights are zero.
func WeightedIndex(src Source, weights []float64) int {
	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return -1
	}
	roll := src.Float64() * total
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if roll < w {
			return i
		}
		roll -= w
	}
	// Float rounding can leave roll == remaining weight; take the last positive.
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return -1
}
