package proc

import "github.com/kunquat/kunquat-sub007/internal/module"

// karplusMinFreqHz bounds the longest ring-buffer delay line the
// processor allocates, per §4.4 ("ring-buffer sized by audio rate /
// 10 Hz").
const karplusMinFreqHz = 10.0

// KarplusState is a plucked-string delay line with a damped recursive
// averaging filter, excited once at note-on.
type KarplusState struct {
	bufL, bufR   []float32
	pos          int
	damping      float64
	excited      bool
}

type karplusProc struct{}

func (karplusProc) NewVoiceState(params module.ProcParams, ctx InitContext) any {
	rate := ctx.AudioRate
	if override := params.Int("audio_rate_override", 0); override > 0 {
		rate = override
	}
	size := int(float64(rate) / karplusMinFreqHz)
	if size < 2 {
		size = 2
	}
	return &KarplusState{
		bufL:    make([]float32, size),
		bufR:    make([]float32, size),
		damping: params.Float("damping", 0.5),
	}
}

func (karplusProc) ClearHistory(vs any) {
	s := vs.(*KarplusState)
	for i := range s.bufL {
		s.bufL[i] = 0
		s.bufR[i] = 0
	}
	s.pos = 0
	s.excited = false
}

// Excite seeds the delay line with noise from src; RenderVoice calls it
// on the first render after the state is created or cleared.
func (s *KarplusState) Excite(src interface{ Signed() float64 }) {
	for i := range s.bufL {
		v := float32(src.Signed())
		s.bufL[i] = v
		s.bufR[i] = v
	}
	s.excited = true
}

func (karplusProc) RenderVoice(vsAny any, params module.ProcParams, ctx RenderContext) int {
	s := vsAny.(*KarplusState)
	out, ok := ctx.Out[0]
	if !ok {
		return 0
	}
	if !s.excited {
		s.Excite(ctx.SignalRand)
	}
	n := len(s.bufL)
	damp := s.damping

	for i := 0; i < ctx.Frames; i++ {
		next := (s.pos + 1) % n
		yl := damp*float64(s.bufL[s.pos]) + (1-damp)*float64(s.bufL[next])
		yr := damp*float64(s.bufR[s.pos]) + (1-damp)*float64(s.bufR[next])
		s.bufL[s.pos] = float32(yl)
		s.bufR[s.pos] = float32(yr)

		out.L[i] = float32(clampFinite(yl))
		out.R[i] = float32(clampFinite(yr))

		s.pos = next
	}
	return ctx.Frames
}
