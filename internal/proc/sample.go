package proc

import (
	"math"

	"github.com/kunquat/kunquat-sub007/internal/module"
)

// SampleState is the voice-local playback cursor for a sample
// processor: fractional position, loop bounds, and pitch-driven
// resampling rate.
type SampleState struct {
	pos      float64 // fractional sample index
	dir      float64 // +1 forward, -1 for the bidi bounce
	finished bool
	hitIdx   int // selected hit, -1 if note-on (use default sample)
}

type sampleProc struct{}

func (sampleProc) NewVoiceState(params module.ProcParams, ctx InitContext) any {
	return &SampleState{dir: 1, hitIdx: -1}
}

func (sampleProc) ClearHistory(vs any) {
	s := vs.(*SampleState)
	s.pos = 0
	s.dir = 1
	s.finished = false
}

// SelectHit picks a hit-map sample for this voice. Nothing in the render
// or dispatch path calls it, so a hit trigger does not change the sample.
func (s *SampleState) SelectHit(hm module.HitMap, index int) {
	if sel := hm.SampleFor(index); sel >= 0 {
		s.hitIdx = sel
	}
}

func (sampleProc) RenderVoice(vsAny any, params module.ProcParams, ctx RenderContext) int {
	s := vsAny.(*SampleState)
	out, ok := ctx.Out[0]
	if !ok {
		return 0
	}
	data := params.Sample
	if len(data) == 0 || s.finished {
		out.Zero(0)
		return 0
	}

	pitchIn, hasPitch := ctx.In[1]

	stop := ctx.Frames
	for i := 0; i < ctx.Frames; i++ {
		if s.finished {
			out.Zero(i)
			stop = i
			break
		}
		// Pitch input (cents) modulates playback rate: 1200 cents per
		// octave doubling.
		rate := 1.0
		if hasPitch {
			cents := float64(pitchIn.L[i])
			rate = centsToRatio(cents)
		}

		idx := int(s.pos)
		if idx < 0 {
			idx = 0
		}
		if idx >= len(data) {
			idx = len(data) - 1
		}
		var frac float64
		var next int
		if s.dir > 0 {
			next = idx + 1
		} else {
			next = idx - 1
		}
		frac = s.pos - float64(idx)

		var a, b float32
		a = data[idx]
		if next >= 0 && next < len(data) {
			b = data[next]
		} else {
			b = a
		}
		v := a + float32(frac)*(b-a)
		out.L[i] = v
		out.R[i] = v

		s.pos += rate * s.dir
		s.advanceLoop(params, len(data))
	}
	return stop
}

func (s *SampleState) advanceLoop(params module.ProcParams, n int) {
	if params.LoopEnd > params.LoopStart && params.LoopEnd <= n {
		if params.Bidi {
			if s.dir > 0 && s.pos >= float64(params.LoopEnd) {
				s.pos = float64(params.LoopEnd) - (s.pos - float64(params.LoopEnd))
				s.dir = -1
			} else if s.dir < 0 && s.pos <= float64(params.LoopStart) {
				s.pos = float64(params.LoopStart) + (float64(params.LoopStart) - s.pos)
				s.dir = 1
			}
		} else if s.pos >= float64(params.LoopEnd) {
			s.pos = float64(params.LoopStart) + (s.pos - float64(params.LoopEnd))
		}
		return
	}
	if s.pos >= float64(n) || s.pos < 0 {
		s.finished = true
	}
}

func centsToRatio(cents float64) float64 {
	return math.Exp2(cents / 1200.0)
}
