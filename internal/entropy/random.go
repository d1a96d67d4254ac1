// Package entropy provides the seedable random source shared by map generation,
// combat resolution, and AI decision noise. A seed of 0 draws a seed from crypto/rand.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"sync"
	"time"
)

// Source is a goroutine-safe pseudo-random source. Same seed, same sequence.
type Source struct {
	mu   sync.Mutex
	seed int64
	rng  *mrand.Rand
}

// New creates a source for the given seed. Seed 0 picks a random seed.
func New(seed int64) *Source {
	if seed == 0 {
		seed = CryptoSeed()
	}
	return &Source{
		seed: seed,
		rng:  mrand.New(mrand.NewSource(seed)),
	}
}

// Seed returns the seed the source was created with.
func (s *Source) Seed() int64 {
	return s.seed
}

// Float64 returns a random float64 in [0, 1).
func (s *Source) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Range returns a random float64 in [lo, hi].
func (s *Source) Range(lo, hi float64) float64 {
	return lo + s.Float64()*(hi-lo)
}

// Intn returns a random int in [0, n). n must be > 0.
func (s *Source) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// Chance returns true with probability p.
func (s *Source) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return s.Float64() < p
}

// Int63 returns a non-negative random int64, used to derive child seeds.
func (s *Source) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Int63()
}

// CryptoSeed generates a non-zero seed using crypto/rand, falling back to the clock.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if seed == 0 {
		seed = 1
	}
	return seed
}
