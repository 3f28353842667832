// Package slider implements the parametric value ramp used throughout the
// per-voice DSP state to glide a parameter from one value to another over
// a musical duration, rescaling cleanly when tempo or mix rate changes
// mid-slide.
package slider

import (
	"math"

	"github.com/kunquat/kunquat-sub007/internal/tstamp"
)

// Mode selects linear or exponential interpolation.
type Mode int

const (
	ModeLinear Mode = iota
	ModeExp
)

// Slider ramps CurrentValue toward a target over a Tstamp-length window,
// one Step() call per audio frame.
type Slider struct {
	mode    Mode
	mixRate int64
	tempo   float64

	dir        int // -1, 0, +1
	length     tstamp.T
	current    float64
	target     float64
	stepsLeft  float64
	update     float64
}

// New creates a Slider at rest (current=target=0, steps_left=0).
func New(mode Mode, mixRate int64, tempo float64) *Slider {
	s := &Slider{mode: mode, mixRate: mixRate, tempo: tempo}
	if mode == ModeExp {
		s.update = 1
	}
	return s
}

// Value returns the current interpolated value.
func (s *Slider) Value() float64 { return s.current }

// Progress returns how far the slide has advanced toward completion, in
// [0, 1]; 1 when at rest or the target has been reached.
func (s *Slider) Progress() float64 {
	total := s.length.ToFrames(s.tempo, s.mixRate)
	if total <= 0 {
		return 1
	}
	done := float64(total) - s.stepsLeft
	if done < 0 {
		done = 0
	}
	p := done / float64(total)
	if p > 1 {
		p = 1
	}
	return p
}

// Start begins a new slide from start to target over length.
func (s *Slider) Start(start, target float64, length tstamp.T) {
	s.length = length
	frames := length.ToFrames(s.tempo, s.mixRate)
	s.stepsLeft = float64(frames)
	s.current = start
	s.target = target

	zeroSlide := 0.0
	if s.mode == ModeExp {
		zeroSlide = 1.0
		if s.stepsLeft == 0 || start <= 0 || target <= 0 {
			s.update = 1
		} else {
			s.update = math.Exp2((math.Log2(target) - math.Log2(start)) / s.stepsLeft)
		}
	} else {
		if s.stepsLeft == 0 {
			s.update = 0
		} else {
			s.update = (target - start) / s.stepsLeft
		}
	}

	switch {
	case s.update > zeroSlide:
		s.dir = 1
	case s.update < zeroSlide:
		s.dir = -1
	default:
		s.dir = 0
		s.current = s.target
		s.stepsLeft = 0
	}
}

// Step advances the slide by one frame and returns the new value.
func (s *Slider) Step() float64 {
	if s.dir == 0 {
		return s.target
	}
	if s.mode == ModeExp {
		s.current *= s.update
	} else {
		s.current += s.update
	}
	s.stepsLeft--
	if s.stepsLeft <= 0 {
		s.dir = 0
		s.current = s.target
	} else if s.dir == 1 {
		if s.current > s.target {
			s.current = s.target
			s.dir = 0
		}
	} else {
		if s.current < s.target {
			s.current = s.target
			s.dir = 0
		}
	}
	return s.current
}

// ChangeTarget restarts the slide from the current value toward a new
// target over the existing length.
func (s *Slider) ChangeTarget(target float64) {
	s.Start(s.current, target, s.length)
}

// ChangeLength restarts the slide from the current value toward the
// existing target over a new length.
func (s *Slider) ChangeLength(length tstamp.T) {
	s.Start(s.current, s.target, length)
}

// ChangeMixRate rescales the in-progress slide to a new mix rate,
// preserving the real elapsed time already spent sliding.
func (s *Slider) ChangeMixRate(mixRate int64) {
	s.updateTime(mixRate, s.tempo)
}

// ChangeTempo rescales the in-progress slide to a new tempo, preserving
// the real elapsed time already spent sliding.
func (s *Slider) ChangeTempo(tempo float64) {
	s.updateTime(s.mixRate, tempo)
}

func (s *Slider) updateTime(mixRate int64, tempo float64) {
	if s.dir == 0 {
		s.mixRate = mixRate
		s.tempo = tempo
		return
	}
	if s.mode == ModeExp {
		logUpdate := math.Log2(s.update)
		logUpdate *= float64(s.mixRate) / float64(mixRate)
		logUpdate *= tempo / s.tempo
		s.update = math.Exp2(logUpdate)
	} else {
		s.update *= float64(s.mixRate) / float64(mixRate)
		s.update *= tempo / s.tempo
	}
	s.stepsLeft *= float64(mixRate) / float64(s.mixRate)
	s.stepsLeft *= s.tempo / tempo

	s.mixRate = mixRate
	s.tempo = tempo
}

// Length returns the length of the current (or most recent) slide.
func (s *Slider) Length() tstamp.T { return s.length }

// TargetReached reports whether the slide has completed.
func (s *Slider) TargetReached() bool {
	return s.stepsLeft <= 0
}

// Break immediately snaps the slide to its target.
func (s *Slider) Break() {
	s.current = s.target
	s.stepsLeft = 0
	s.dir = 0
}

// SetImmediate sets current and target to v with no active slide.
func (s *Slider) SetImmediate(v float64) {
	s.current = v
	s.target = v
	s.stepsLeft = 0
	s.dir = 0
}
