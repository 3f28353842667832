// Package lfo implements a low-frequency oscillator used for vibrato,
// tremolo and filter-wobble modulation. Speed and depth each glide
// through their own Slider, so a performer can change vibrato rate or
// amount smoothly instead of snapping.
package lfo

import (
	"math"

	"github.com/kunquat/kunquat-sub007/internal/slider"
	"github.com/kunquat/kunquat-sub007/internal/tstamp"
)

// Waveform selects the oscillation shape.
const (
	WaveSaw = iota
	WaveSquare
	WaveTriangle
	WaveRandom
)

// Mode selects how the LFO's depth slider interpolates.
type Mode int

const (
	ModeLinear Mode = iota
	ModeExp
)

// activeDepthEpsilon: below this, a turned-off LFO is considered silent.
const activeDepthEpsilon = 1e-5

// LFO is a low-frequency oscillator with independently sliding speed and
// depth.
type LFO struct {
	mode      Mode
	waveform  int
	audioRate int64
	tempo     float64

	on bool

	targetSpeed float64
	speed       *slider.Slider

	targetDepth float64
	depth       *slider.Slider

	offset  float64
	phase   float64
	randVal float64
}

// New creates an LFO at rest with the given waveform and depth-slide
// mode (speed always ramps linearly, matching the original engine).
func New(waveform int, mode Mode, audioRate int64, tempo float64) *LFO {
	if waveform < WaveSaw || waveform > WaveRandom {
		waveform = WaveTriangle
	}
	depthMode := slider.ModeLinear
	if mode == ModeExp {
		depthMode = slider.ModeExp
	}
	return &LFO{
		mode:      mode,
		waveform:  waveform,
		audioRate: audioRate,
		tempo:     tempo,
		speed:     slider.New(slider.ModeLinear, audioRate, tempo),
		depth:     slider.New(depthMode, audioRate, tempo),
	}
}

// SetAudioRate rescales both sub-sliders to a new audio rate.
func (l *LFO) SetAudioRate(rate int64) {
	l.audioRate = rate
	l.speed.ChangeMixRate(rate)
	l.depth.ChangeMixRate(rate)
}

// SetTempo rescales both sub-sliders to a new tempo.
func (l *LFO) SetTempo(tempo float64) {
	l.tempo = tempo
	l.speed.ChangeTempo(tempo)
	l.depth.ChangeTempo(tempo)
}

// SetSpeed sets the new target oscillation speed in Hz, sliding from the
// current speed over the last-set speed-slide length.
func (l *LFO) SetSpeed(speedHz float64) {
	l.targetSpeed = speedHz
	l.speed.ChangeTarget(speedHz)
}

// SetSpeedSlide sets how long a future SetSpeed glides over.
func (l *LFO) SetSpeedSlide(length tstamp.T) {
	l.speed.ChangeLength(length)
}

// SetDepth sets the new target oscillation depth (output amplitude),
// sliding from the current depth over the last-set depth-slide length.
func (l *LFO) SetDepth(depth float64) {
	l.targetDepth = depth
	l.depth.ChangeTarget(depth)
}

// SetDepthSlide sets how long a future SetDepth glides over.
func (l *LFO) SetDepthSlide(length tstamp.T) {
	l.depth.ChangeLength(length)
}

// ChangeDepthRange rescales the in-flight depth slide's endpoints
// without resetting its progress.
func (l *LFO) ChangeDepthRange(fromDepth, toDepth float64) {
	l.depth.Start(fromDepth, toDepth, l.depth.Length())
}

// SetOffset sets the phase offset added before waveform evaluation, in
// [-1, 1] (a full cycle).
func (l *LFO) SetOffset(offset float64) {
	if offset < -1 {
		offset = -1
	} else if offset > 1 {
		offset = 1
	}
	l.offset = offset
}

// TurnOn activates the oscillator.
func (l *LFO) TurnOn() { l.on = true }

// TurnOff deactivates the oscillator; it keeps producing decaying output
// via the depth slider gliding to zero, per Active.
func (l *LFO) TurnOff() {
	l.on = false
	l.SetDepth(0)
}

// Step advances the oscillator by one audio frame and returns its
// current signed output value in roughly [-depth, depth].
func (l *LFO) Step() float64 {
	speed := l.speed.Step()
	depth := l.depth.Step()

	if l.audioRate <= 0 {
		return 0
	}

	oldPhase := l.phase
	l.phase += speed / float64(l.audioRate)
	for l.phase >= 1.0 {
		l.phase -= 1.0
	}

	p := l.phase + l.offset/2
	_, p = math.Modf(p)
	if p < 0 {
		p += 1
	}

	waveVal := l.waveAt(p, oldPhase)
	return waveVal * depth
}

func (l *LFO) waveAt(phase, oldPhase float64) float64 {
	switch l.waveform {
	case WaveSaw:
		return 1.0 - 2.0*phase
	case WaveSquare:
		if phase < 0.5 {
			return 1.0
		}
		return -1.0
	case WaveRandom:
		if phase < oldPhase {
			l.randVal = math.Sin(phase*12345.6789+l.randVal*67890.1234) * 2.0
			l.randVal -= math.Floor(l.randVal)
			l.randVal = l.randVal*2.0 - 1.0
		}
		return l.randVal
	default: // WaveTriangle
		if phase < 0.5 {
			return 4.0*phase - 1.0
		}
		return 3.0 - 4.0*phase
	}
}

// Active reports whether the LFO is still producing a non-trivial
// signal: either turned on, or turned off but still gliding its depth
// down toward (near) zero.
func (l *LFO) Active() bool {
	if l.on {
		return true
	}
	return !l.depth.TargetReached() || math.Abs(l.depth.Value()) > activeDepthEpsilon
}

// TargetSpeed returns the speed the oscillator is sliding toward.
func (l *LFO) TargetSpeed() float64 { return l.targetSpeed }

// TargetDepth returns the depth the oscillator is sliding toward.
func (l *LFO) TargetDepth() float64 { return l.targetDepth }
