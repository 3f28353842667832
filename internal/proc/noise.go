package proc

import (
	"github.com/kunquat/kunquat-sub007/internal/module"
)

// onePoleTap holds the state of a single cascaded one-pole stage.
type onePoleTap struct {
	prevIn, prevOut float64
}

// NoiseState is the voice-local state for the noise processor: a small
// cascade of one-pole filters whose order and sign select pink-ish
// (DC-blocking, order >= 0) or resonant pole (order < 0) coloring.
type NoiseState struct {
	taps []onePoleTap
}

type noiseProc struct{}

func (noiseProc) NewVoiceState(params module.ProcParams, ctx InitContext) any {
	order := params.Int("order", 0)
	n := order
	if n < 0 {
		n = -n
	}
	return &NoiseState{taps: make([]onePoleTap, n)}
}

func (noiseProc) ClearHistory(vs any) {
	s := vs.(*NoiseState)
	for i := range s.taps {
		s.taps[i] = onePoleTap{}
	}
}

func (noiseProc) RenderVoice(vsAny any, params module.ProcParams, ctx RenderContext) int {
	s := vsAny.(*NoiseState)
	out, ok := ctx.Out[0]
	if !ok {
		return 0
	}
	order := params.Int("order", 0)

	for i := 0; i < ctx.Frames; i++ {
		white := ctx.SignalRand.Signed()
		var colored float64
		if order >= 0 {
			colored = dcBlockCascade(s.taps, white)
		} else {
			colored = poleCascade(s.taps, white)
		}
		v := float32(clampFinite(colored))
		out.L[i] = v
		out.R[i] = v
	}
	return ctx.Frames
}

// dcBlockCascade runs white through each tap as a one-pole DC blocker
// (y = x - x_prev + r*y_prev), giving a pink-ish, DC-free texture whose
// steepness grows with the number of taps.
func dcBlockCascade(taps []onePoleTap, x float64) float64 {
	const r = 0.995
	for i := range taps {
		y := x - taps[i].prevIn + r*taps[i].prevOut
		taps[i].prevIn = x
		taps[i].prevOut = y
		x = y
	}
	return x
}

// poleCascade runs white through each tap as a one-pole lowpass filter
// (y = (1-r)*x + r*y_prev), used when order is negative.
func poleCascade(taps []onePoleTap, x float64) float64 {
	const r = 0.995
	for i := range taps {
		y := (1-r)*x + r*taps[i].prevOut
		taps[i].prevOut = y
		x = y
	}
	return x
}
