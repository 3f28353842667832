package slider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/kunquat/kunquat-sub007/internal/tstamp"
)

func TestLinearSlideReachesTarget(t *testing.T) {
	s := New(ModeLinear, 48000, 120)
	s.Start(0, 10, tstamp.New(1, 0))
	frames := tstamp.New(1, 0).ToFrames(120, 48000)
	var last float64
	for i := int64(0); i < frames; i++ {
		last = s.Step()
	}
	assert.InDelta(t, 10.0, last, 1e-9)
	assert.True(t, s.TargetReached())
}

func TestExpSlideReachesTarget(t *testing.T) {
	s := New(ModeExp, 48000, 120)
	s.Start(100, 400, tstamp.New(0, tstamp.Beat/4))
	frames := tstamp.New(0, tstamp.Beat/4).ToFrames(120, 48000)
	var last float64
	for i := int64(0); i < frames; i++ {
		last = s.Step()
	}
	assert.InDelta(t, 400.0, last, 1e-6)
}

func TestZeroLengthSnapsImmediately(t *testing.T) {
	s := New(ModeLinear, 48000, 120)
	s.Start(5, 9, tstamp.Zero)
	assert.Equal(t, 9.0, s.Value())
	assert.True(t, s.TargetReached())
}

func TestBreakSnapsToTarget(t *testing.T) {
	s := New(ModeLinear, 48000, 120)
	s.Start(0, 100, tstamp.New(1, 0))
	s.Step()
	s.Break()
	assert.Equal(t, 100.0, s.Value())
	assert.True(t, s.TargetReached())
}

func TestChangeTargetRestartsFromCurrent(t *testing.T) {
	s := New(ModeLinear, 48000, 120)
	s.Start(0, 10, tstamp.New(1, 0))
	s.Step()
	cur := s.Value()
	s.ChangeTarget(20)
	assert.Equal(t, cur, s.Value())
	s.Break()
	assert.Equal(t, 20.0, s.Value())
}

func TestProgressBoundsProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		start := rapid.Float64Range(-1000, 1000).Draw(rt, "start")
		target := rapid.Float64Range(-1000, 1000).Draw(rt, "target")
		beats := rapid.Int64Range(0, 8).Draw(rt, "beats")
		s := New(ModeLinear, 48000, 120)
		s.Start(start, target, tstamp.New(beats, 0))
		steps := rapid.IntRange(0, 200).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			s.Step()
			p := s.Progress()
			if p < 0 || p > 1 {
				rt.Fatalf("progress out of bounds: %v", p)
			}
		}
	})
}

func TestRescaleTempoPreservesDirection(t *testing.T) {
	s := New(ModeLinear, 48000, 120)
	s.Start(0, 100, tstamp.New(1, 0))
	s.Step()
	s.ChangeTempo(240)
	assert.False(t, s.TargetReached())
}
