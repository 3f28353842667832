package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameSeedProducesIdenticalStream(t *testing.T) {
	a := New(42, 7, StreamParam)
	b := New(42, 7, StreamParam)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
}

func TestDifferentGroupDiverges(t *testing.T) {
	a := New(42, 7, StreamParam)
	b := New(42, 8, StreamParam)
	same := true
	for i := 0; i < 10; i++ {
		if a.Float64() != b.Float64() {
			same = false
		}
	}
	assert.False(t, same)
}

func TestDifferentStreamNameDiverges(t *testing.T) {
	a := New(42, 7, StreamParam)
	b := New(42, 7, StreamSignal)
	same := true
	for i := 0; i < 10; i++ {
		if a.Float64() != b.Float64() {
			same = false
		}
	}
	assert.False(t, same)
}

func TestSignedWithinBounds(t *testing.T) {
	s := New(1, 1, StreamSignal)
	for i := 0; i < 1000; i++ {
		v := s.Signed()
		assert.GreaterOrEqual(t, v, -1.0)
		assert.Less(t, v, 1.0)
	}
}
