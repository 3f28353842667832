package proc

import "github.com/kunquat/kunquat-sub007/internal/module"

// Freeverb tuning constants (comb/allpass delay lengths in samples at
// 44100 Hz, scaled to the actual audio rate at init time), following
// the classic Freeverb algorithm's per-channel topology.
var freeverbCombTuningL = [8]int{1116, 1188, 1277, 1356, 1422, 1491, 1557, 1617}
var freeverbCombTuningR = [8]int{1116 + 23, 1188 + 23, 1277 + 23, 1356 + 23, 1422 + 23, 1491 + 23, 1557 + 23, 1617 + 23}
var freeverbAllpassTuningL = [4]int{556, 441, 341, 225}
var freeverbAllpassTuningR = [4]int{556 + 23, 441 + 23, 341 + 23, 225 + 23}

const freeverbRefRate = 44100.0

type combState struct {
	buf    []float32
	pos    int
	filter float32
}

func (c *combState) process(x, feedback, damping float32) float32 {
	out := c.buf[c.pos]
	c.filter = out*(1-damping) + c.filter*damping
	c.buf[c.pos] = x + c.filter*feedback
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

type allpassState struct {
	buf []float32
	pos int
}

func (a *allpassState) process(x float32) float32 {
	bufOut := a.buf[a.pos]
	const feedback = 0.5
	out := -x + bufOut
	a.buf[a.pos] = x + bufOut*feedback
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return out
}

// FreeverbState holds 8 comb + 4 allpass filters per channel.
type FreeverbState struct {
	combL, combR       [8]combState
	allpassL, allpassR [4]allpassState
}

type freeverbProc struct{}

func scaleLen(n int, rate int64) int {
	l := int(float64(n) * float64(rate) / freeverbRefRate)
	if l < 1 {
		l = 1
	}
	return l
}

func (freeverbProc) NewVoiceState(params module.ProcParams, ctx InitContext) any {
	s := &FreeverbState{}
	for i := 0; i < 8; i++ {
		s.combL[i].buf = make([]float32, scaleLen(freeverbCombTuningL[i], ctx.AudioRate))
		s.combR[i].buf = make([]float32, scaleLen(freeverbCombTuningR[i], ctx.AudioRate))
	}
	for i := 0; i < 4; i++ {
		s.allpassL[i].buf = make([]float32, scaleLen(freeverbAllpassTuningL[i], ctx.AudioRate))
		s.allpassR[i].buf = make([]float32, scaleLen(freeverbAllpassTuningR[i], ctx.AudioRate))
	}
	return s
}

func (freeverbProc) ClearHistory(vs any) {
	s := vs.(*FreeverbState)
	for i := range s.combL {
		clearFloat32(s.combL[i].buf)
		clearFloat32(s.combR[i].buf)
		s.combL[i].filter = 0
		s.combR[i].filter = 0
	}
	for i := range s.allpassL {
		clearFloat32(s.allpassL[i].buf)
		clearFloat32(s.allpassR[i].buf)
	}
}

func clearFloat32(b []float32) {
	for i := range b {
		b[i] = 0
	}
}

func (freeverbProc) RenderVoice(vsAny any, params module.ProcParams, ctx RenderContext) int {
	s := vsAny.(*FreeverbState)
	out, ok := ctx.Out[0]
	if !ok {
		return 0
	}
	in, hasIn := ctx.In[0]
	if !hasIn {
		out.Zero(0)
		return 0
	}

	reflectivity := float32(params.Float("reflectivity", 0.84))
	damping := float32(params.Float("damping", 0.2))

	for i := 0; i < ctx.Frames; i++ {
		inL, inR := in.L[i], in.R[i]

		var sumL, sumR float32
		for c := 0; c < 8; c++ {
			sumL += s.combL[c].process(inL, reflectivity, damping)
			sumR += s.combR[c].process(inR, reflectivity, damping)
		}

		outL, outR := sumL, sumR
		for a := 0; a < 4; a++ {
			outL = s.allpassL[a].process(outL)
			outR = s.allpassR[a].process(outR)
		}

		out.L[i] = float32(clampFinite(float64(outL)))
		out.R[i] = float32(clampFinite(float64(outR)))
	}
	return ctx.Frames
}
