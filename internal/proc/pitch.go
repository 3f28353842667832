package proc

import (
	"math"

	"github.com/kunquat/kunquat-sub007/internal/lfo"
	"github.com/kunquat/kunquat-sub007/internal/module"
	"github.com/kunquat/kunquat-sub007/internal/slider"
	"github.com/kunquat/kunquat-sub007/internal/tstamp"
)

// MaxArpeggioTones bounds the arpeggio tone table (§4.5.1).
const MaxArpeggioTones = 64

// PitchState is the voice-local state for a pitch processor: a slider
// toward the note's target pitch, an additive carry, a vibrato LFO, and
// an optional arpeggio override.
type PitchState struct {
	Slider *slider.Slider
	Add    float64 // carried pitch offset in cents, set on every control push

	Vibrato *lfo.LFO

	ArpeggioOn    bool
	ArpeggioTones [MaxArpeggioTones]float64
	ArpeggioN     int
	ArpeggioSpeed float64
	arpFrame      int64

	frame int64
}

type pitchProc struct{}

func (pitchProc) NewVoiceState(params module.ProcParams, ctx InitContext) any {
	s := &PitchState{
		Slider:  slider.New(slider.ModeLinear, ctx.AudioRate, 120),
		Vibrato: lfo.New(lfo.WaveTriangle, lfo.ModeLinear, ctx.AudioRate, 120),
	}
	initial := params.Float("init_cents", 0)
	s.Slider.SetImmediate(initial)
	return s
}

func (pitchProc) ClearHistory(vs any) {
	s := vs.(*PitchState)
	s.frame = 0
	s.arpFrame = 0
}

// SetTarget requests a new pitch target over length, matching §4.2's
// "nudge toward target, don't snap" rule when a slide is already live.
func (s *PitchState) SetTarget(cents float64, length tstamp.T) {
	s.Slider.ChangeLength(length)
	s.Slider.ChangeTarget(cents)
}

// SetArpeggio arms/disarms the arpeggio override. Changing speed does
// not reset phase, per §4.5.1.
func (s *PitchState) SetArpeggio(on bool, tones []float64, speed float64) {
	s.ArpeggioOn = on
	s.ArpeggioSpeed = speed
	n := len(tones)
	if n > MaxArpeggioTones {
		n = MaxArpeggioTones
	}
	s.ArpeggioN = n
	for i := 0; i < n; i++ {
		s.ArpeggioTones[i] = tones[i]
	}
}

func (pitchProc) RenderVoice(vsAny any, params module.ProcParams, ctx RenderContext) int {
	s := vsAny.(*PitchState)
	out, ok := ctx.Out[0]
	if !ok {
		return 0
	}

	for i := 0; i < ctx.Frames; i++ {
		var cents float64
		if s.ArpeggioOn && s.ArpeggioN > 0 && ctx.AudioRate > 0 {
			phase := math.Mod(float64(s.arpFrame)*s.ArpeggioSpeed/float64(ctx.AudioRate), float64(s.ArpeggioN))
			if phase < 0 {
				phase += float64(s.ArpeggioN)
			}
			idx := int(phase)
			cents = s.ArpeggioTones[idx] + s.Add
			s.arpFrame++
		} else {
			base := s.Slider.Step()
			vib := s.Vibrato.Step()
			cents = base + s.Add + vib
		}

		if math.IsNaN(cents) {
			// Not-a-number input deactivates the voice (§4.4).
			out.Zero(i)
			return i
		}

		v := float32(clampFinite(cents))
		out.L[i] = v
		out.R[i] = v
		s.frame++
	}
	return ctx.Frames
}
