// Package rng provides the named, deterministic random streams used by
// voice-local DSP: parameter jitter (rand_p) and signal dither
// (rand_s). Each stream is seeded from the module's random seed, the
// owning voice group's id, and the stream name, so a render of the same
// module content always produces bit-identical output regardless of
// wall-clock time or goroutine scheduling.
package rng

import (
	"hash/fnv"
	"math/rand/v2"
	"strconv"
)

// Names of the two streams the engine defines.
const (
	StreamParam  = "rand_p"
	StreamSignal = "rand_s"
)

// Stream is a seeded, reproducible random source.
type Stream struct {
	src *rand.Rand
}

// New derives a Stream from (moduleSeed, groupID, name). The derivation
// hashes the three components into two 64-bit seeds for rand/v2's PCG
// source, so distinct names or groups never collide even if the
// moduleSeed is zero.
func New(moduleSeed uint64, groupID uint64, name string) *Stream {
	h1 := fnv.New64a()
	h1.Write([]byte(strconv.FormatUint(moduleSeed, 16)))
	h1.Write([]byte{0})
	h1.Write([]byte(strconv.FormatUint(groupID, 16)))
	h1.Write([]byte{0})
	h1.Write([]byte(name))
	seed1 := h1.Sum64()

	h2 := fnv.New64a()
	h2.Write([]byte(name))
	h2.Write([]byte{1})
	h2.Write([]byte(strconv.FormatUint(seed1, 16)))
	seed2 := h2.Sum64()

	return &Stream{src: rand.New(rand.NewPCG(seed1, seed2))}
}

// Float64 returns a uniform value in [0, 1).
func (s *Stream) Float64() float64 { return s.src.Float64() }

// Float64Range returns a uniform value in [lo, hi).
func (s *Stream) Float64Range(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + s.src.Float64()*(hi-lo)
}

// Int64N returns a uniform value in [0, n).
func (s *Stream) Int64N(n int64) int64 {
	if n <= 0 {
		return 0
	}
	return s.src.Int64N(n)
}

// Signed returns a uniform value in [-1, 1), used for dither noise.
func (s *Stream) Signed() float64 {
	return s.src.Float64()*2 - 1
}
