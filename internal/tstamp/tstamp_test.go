package tstamp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewNormalizesRem(t *testing.T) {
	got := New(0, Beat+100)
	require.True(t, got.Valid())
	assert.Equal(t, int64(1), got.Beats)
	assert.Equal(t, int32(100), got.Rem)
}

func TestNewNormalizesNegativeRem(t *testing.T) {
	got := New(1, -1)
	require.True(t, got.Valid())
	assert.Equal(t, int64(0), got.Beats)
	assert.Equal(t, int32(Beat-1), got.Rem)
}

func TestCmpOrdersLexicographically(t *testing.T) {
	a := New(1, 0)
	b := New(1, 1)
	c := New(2, 0)
	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.True(t, a.Equal(New(1, 0)))
}

func TestAddSubRoundTrip(t *testing.T) {
	a := New(3, 12345)
	b := New(1, Beat-1)
	sum := a.Add(b)
	back := sum.Sub(b)
	assert.Equal(t, a, back)
}

func TestToFramesZeroTempo(t *testing.T) {
	assert.Equal(t, int64(0), New(4, 0).ToFrames(0, 48000))
}

func TestRemAlwaysInBoundsProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		beats := rapid.Int64Range(-1000, 1000).Draw(rt, "beats")
		rem := rapid.Int64Range(-2*Beat, 2*Beat).Draw(rt, "rem")
		got := New(beats, rem)
		if !got.Valid() {
			rt.Fatalf("rem out of bounds: %+v", got)
		}
	})
}

func TestAddSubInverseProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		b1 := rapid.Int64Range(-1000, 1000).Draw(rt, "b1")
		r1 := rapid.Int64Range(0, Beat-1).Draw(rt, "r1")
		b2 := rapid.Int64Range(-1000, 1000).Draw(rt, "b2")
		r2 := rapid.Int64Range(0, Beat-1).Draw(rt, "r2")
		a := New(b1, r1)
		b := New(b2, r2)
		if !a.Add(b).Sub(b).Equal(a) {
			rt.Fatalf("add/sub not inverse for a=%+v b=%+v", a, b)
		}
	})
}
