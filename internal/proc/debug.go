package proc

import "github.com/kunquat/kunquat-sub007/internal/module"

// debugProc is the minimal "debug" processor selection referenced by
// §4.4's S1 scenario: on note-on it emits a single full-scale impulse,
// then a half-scale plateau for frames 1 through debugPlateauFrames-1,
// then 0.5 scaled by the force envelope supplied via its input port (if
// connected) or a flat 0.5 otherwise.
type debugProc struct{}

// debugPlateauFrames is the first frame at which the force input applies.
const debugPlateauFrames = 48

type debugState struct {
	frame int64
}

func (debugProc) NewVoiceState(params module.ProcParams, ctx InitContext) any {
	return &debugState{}
}

func (debugProc) ClearHistory(vs any) {
	s := vs.(*debugState)
	s.frame = 0
}

func (debugProc) RenderVoice(vsAny any, params module.ProcParams, ctx RenderContext) int {
	s := vsAny.(*debugState)
	out, ok := ctx.Out[0]
	if !ok {
		return 0
	}
	force, hasForce := ctx.In[0]

	for i := 0; i < ctx.Frames; i++ {
		var v float32
		switch {
		case s.frame == 0:
			v = 1.0
		default:
			v = 0.5
			if hasForce && s.frame >= debugPlateauFrames {
				v *= force.L[i]
			}
		}
		out.L[i] = v
		out.R[i] = v
		s.frame++
	}
	return ctx.Frames
}
