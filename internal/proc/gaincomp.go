package proc

import (
	"math"

	"github.com/kunquat/kunquat-sub007/internal/envelope"
	"github.com/kunquat/kunquat-sub007/internal/module"
)

// gainCompProc applies a user-supplied envelope mapping |x| to |y|,
// preserving the input's sign — used to compensate perceived loudness
// across a processor's dynamic range.
type gainCompProc struct{}

func (gainCompProc) NewVoiceState(params module.ProcParams, ctx InitContext) any {
	return &struct{}{}
}

func (gainCompProc) ClearHistory(vs any) {}

func (gainCompProc) RenderVoice(vsAny any, params module.ProcParams, ctx RenderContext) int {
	out, ok := ctx.Out[0]
	if !ok {
		return 0
	}
	in, hasIn := ctx.In[0]
	if !hasIn || params.Envelope == nil || !params.Envelope.IsValid() {
		out.Zero(0)
		return 0
	}
	env := params.Envelope

	for i := 0; i < ctx.Frames; i++ {
		out.L[i] = compensate(in.L[i], env)
		out.R[i] = compensate(in.R[i], env)
	}
	return ctx.Frames
}

func compensate(x float32, env *envelope.Envelope) float32 {
	mag := math.Abs(float64(x))
	sign := 1.0
	if x < 0 {
		sign = -1
	}
	y := env.ValueAt(mag) * sign
	return float32(clampFinite(y))
}
