package lfo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kunquat/kunquat-sub007/internal/tstamp"
)

func stepN(l *LFO, n int) (last float64) {
	for i := 0; i < n; i++ {
		last = l.Step()
	}
	return last
}

func TestLFOTriangleBasicShape(t *testing.T) {
	l := New(WaveTriangle, ModeLinear, 100, 120)
	l.SetSpeedSlide(tstamp.Zero)
	l.SetDepthSlide(tstamp.Zero)
	l.SetSpeed(1.0)
	l.SetDepth(1.0)
	l.TurnOn()

	v0 := l.Step()
	assert.InDelta(t, -1.0, v0, 0.1)

	for i := 0; i < 24; i++ {
		l.Step()
	}
	vq := l.Step()
	assert.InDelta(t, 0.0, vq, 0.1)
}

func TestLFOSquareShape(t *testing.T) {
	l := New(WaveSquare, ModeLinear, 100, 120)
	l.SetSpeedSlide(tstamp.Zero)
	l.SetDepthSlide(tstamp.Zero)
	l.SetSpeed(1.0)
	l.SetDepth(2.0)
	l.TurnOn()

	v := l.Step()
	assert.InDelta(t, 2.0, v, 0.01)

	v = stepN(l, 49)
	assert.InDelta(t, -2.0, v, 0.01)
}

func TestLFOZeroDepthProducesZero(t *testing.T) {
	l := New(WaveTriangle, ModeLinear, 44100, 120)
	l.SetSpeedSlide(tstamp.Zero)
	l.SetDepthSlide(tstamp.Zero)
	l.SetSpeed(5.0)
	l.SetDepth(0)
	l.TurnOn()
	assert.Equal(t, 0.0, l.Step())
}

func TestLFOActiveTracksTurnOffTail(t *testing.T) {
	l := New(WaveTriangle, ModeLinear, 48000, 120)
	assert.False(t, l.Active())

	l.SetDepthSlide(tstamp.Zero)
	l.SetSpeedSlide(tstamp.Zero)
	l.SetSpeed(5.0)
	l.SetDepth(1.0)
	l.TurnOn()
	assert.True(t, l.Active())

	l.SetDepthSlide(tstamp.New(0, tstamp.Beat/4))
	l.TurnOff()
	assert.True(t, l.Active(), "should keep producing a decaying tail")

	frames := tstamp.New(0, tstamp.Beat/4).ToFrames(120, 48000)
	for i := int64(0); i < frames+1; i++ {
		l.Step()
	}
	assert.False(t, l.Active())
}

func TestLFORandomStaysWithinDepth(t *testing.T) {
	l := New(WaveRandom, ModeLinear, 1000, 120)
	l.SetSpeedSlide(tstamp.Zero)
	l.SetDepthSlide(tstamp.Zero)
	l.SetSpeed(10.0)
	l.SetDepth(1.0)
	l.TurnOn()

	for i := 0; i < 200; i++ {
		v := l.Step()
		assert.LessOrEqual(t, math.Abs(v), 1.0+1e-9)
	}
}
