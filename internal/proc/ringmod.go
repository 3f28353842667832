package proc

import "github.com/kunquat/kunquat-sub007/internal/module"

// ringmodProc implements both the ring-modulator and the plain
// multiplier, which share the same 2-in 1-out multiply-and-finalize
// behavior and differ only in how their inputs are normally patched
// (mult is typically used for amplitude control signals, ringmod for
// audio-rate signals) — a distinction the module layer's connections
// express, not this processor's math.
type ringmodProc struct {
	mult bool
}

// ringmodState has two finality flags that RenderVoice neither sets nor
// reads; a silent input does not mark the output as final.
type ringmodState struct {
	aFinal, bFinal bool
}

func (ringmodProc) NewVoiceState(params module.ProcParams, ctx InitContext) any {
	return &ringmodState{}
}

func (ringmodProc) ClearHistory(vs any) {
	s := vs.(*ringmodState)
	s.aFinal = false
	s.bFinal = false
}

func (ringmodProc) RenderVoice(vsAny any, params module.ProcParams, ctx RenderContext) int {
	out, ok := ctx.Out[0]
	if !ok {
		return 0
	}
	a, hasA := ctx.In[0]
	b, hasB := ctx.In[1]
	if !hasA || !hasB {
		out.Zero(0)
		return 0
	}

	for i := 0; i < ctx.Frames; i++ {
		v := a.L[i] * b.L[i]
		vr := a.R[i] * b.R[i]
		out.L[i] = float32(clampFinite(float64(v)))
		out.R[i] = float32(clampFinite(float64(vr)))
	}
	return ctx.Frames
}
