package proc

import (
	"math"

	"github.com/kunquat/kunquat-sub007/internal/envelope"
	"github.com/kunquat/kunquat-sub007/internal/lfo"
	"github.com/kunquat/kunquat-sub007/internal/module"
	"github.com/kunquat/kunquat-sub007/internal/slider"
)

// ForceState is the voice-local state for a force processor: a slider
// toward the note's target force (dB), a tremolo LFO, and a time-driven
// envelope player (§4.5.2).
type ForceState struct {
	Slider  *slider.Slider
	Tremolo *lfo.LFO

	Env       *envelope.Player
	Final     bool
	lastFinal bool
}

type forceProc struct{}

func (forceProc) NewVoiceState(params module.ProcParams, ctx InitContext) any {
	s := &ForceState{
		Slider:  slider.New(slider.ModeLinear, ctx.AudioRate, 120),
		Tremolo: lfo.New(lfo.WaveTriangle, lfo.ModeLinear, ctx.AudioRate, 120),
	}
	if params.Envelope != nil && params.Envelope.IsValid() {
		step := 1.0
		if ctx.AudioRate > 0 {
			step = 1.0 / float64(ctx.AudioRate)
		}
		s.Env = envelope.NewPlayer(params.Envelope, step)
	}
	s.Slider.SetImmediate(params.Float("init_db", 0))
	return s
}

func (forceProc) ClearHistory(vs any) {
	s := vs.(*ForceState)
	s.Final = false
	s.lastFinal = false
}

// Release tells the envelope player to stop looping sustain and head to
// its release mark, on note_off.
func (s *ForceState) Release() {
	if s.Env != nil {
		s.Env.Release()
	}
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

func (forceProc) RenderVoice(vsAny any, params module.ProcParams, ctx RenderContext) int {
	s := vsAny.(*ForceState)
	out, ok := ctx.Out[0]
	if !ok {
		return 0
	}

	stop := ctx.Frames
	for i := 0; i < ctx.Frames; i++ {
		db := s.Slider.Step() + s.Tremolo.Step()
		envMul := 1.0
		if s.Env != nil {
			envMul = s.Env.Step()
		}
		lin := dbToLinear(db) * envMul

		final := s.Env != nil && s.Env.Done() && lin < 1e-7
		if final && (i == 0 || !s.lastFinal) {
			stop = i
		}
		s.lastFinal = final

		v := float32(clampFinite(lin))
		out.L[i] = v
		out.R[i] = v
	}
	if stop < ctx.Frames {
		out.Zero(stop)
		return stop
	}
	return ctx.Frames
}
