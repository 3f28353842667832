package proc

import (
	"math"

	"github.com/kunquat/kunquat-sub007/internal/module"
)

// filterCrossfadeFrames is the fixed cross-fade length between old and
// new lowpass coefficients when cutoff/resonance change abruptly (§9:
// "a fixed constant in the source; implementers must document the
// chosen value").
const filterCrossfadeFrames = 64

// filterChangeThresholdHz: cutoff changes smaller than this are applied
// immediately without a cross-fade, avoiding zipper-noise-free
// micro-adjustments from triggering a fade every frame.
const filterChangeThresholdHz = 1.0

// biquadCoeffs holds a direct-form-II transposed 2nd-order section.
type biquadCoeffs struct {
	b0, b1, b2, a1, a2 float64
}

func lowpassCoeffs(cutoffHz, q float64, sampleRate int64) biquadCoeffs {
	if cutoffHz <= 0 {
		cutoffHz = 1
	}
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	nyquist := float64(sampleRate) / 2
	if cutoffHz > nyquist*0.999 {
		cutoffHz = nyquist * 0.999
	}
	if q <= 0 {
		q = 0.707
	}
	w0 := 2 * math.Pi * cutoffHz / float64(sampleRate)
	alpha := math.Sin(w0) / (2 * q)
	cosW0 := math.Cos(w0)

	b0 := (1 - cosW0) / 2
	b1 := 1 - cosW0
	b2 := (1 - cosW0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosW0
	a2 := 1 - alpha

	return biquadCoeffs{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

type biquadState struct {
	x1, x2, y1, y2 float64
}

func (s *biquadState) step(c biquadCoeffs, x float64) float64 {
	y := c.b0*x + c.b1*s.x1 + c.b2*s.x2 - c.a1*s.y1 - c.a2*s.y2
	s.x2, s.x1 = s.x1, x
	s.y2, s.y1 = s.y1, y
	return y
}

// FilterState is the voice-local state for a 2nd-order lowpass
// processor with a smooth coefficient cross-fade on cutoff/resonance
// change.
type FilterState struct {
	cutoff, q float64
	coeffsOld biquadCoeffs
	coeffsNew biquadCoeffs
	fadeLeft  int

	l, r biquadState
}

type filterProc struct{}

func (filterProc) NewVoiceState(params module.ProcParams, ctx InitContext) any {
	s := &FilterState{
		cutoff: params.Float("cutoff_hz", 8000),
		q:      params.Float("resonance", 0.707),
	}
	c := lowpassCoeffs(s.cutoff, s.q, ctx.AudioRate)
	s.coeffsOld = c
	s.coeffsNew = c
	return s
}

func (filterProc) ClearHistory(vs any) {
	s := vs.(*FilterState)
	s.l = biquadState{}
	s.r = biquadState{}
}

// SetCutoff changes the lowpass cutoff, triggering a cross-fade if the
// change exceeds filterChangeThresholdHz.
func (s *FilterState) SetCutoff(cutoffHz float64, sampleRate int64) {
	if math.Abs(cutoffHz-s.cutoff) < filterChangeThresholdHz {
		s.cutoff = cutoffHz
		s.coeffsNew = lowpassCoeffs(cutoffHz, s.q, sampleRate)
		s.coeffsOld = s.coeffsNew
		s.fadeLeft = 0
		return
	}
	s.cutoff = cutoffHz
	s.coeffsOld = s.coeffsNew
	s.coeffsNew = lowpassCoeffs(cutoffHz, s.q, sampleRate)
	s.fadeLeft = filterCrossfadeFrames
}

// SetQ changes the resonance, always cross-fading since a Q change
// alone can move the coefficients as much as a cutoff change.
func (s *FilterState) SetQ(q float64, sampleRate int64) {
	if math.Abs(q-s.q) < 1e-6 {
		return
	}
	s.q = q
	s.coeffsOld = s.coeffsNew
	s.coeffsNew = lowpassCoeffs(s.cutoff, q, sampleRate)
	s.fadeLeft = filterCrossfadeFrames
}

func (filterProc) RenderVoice(vsAny any, params module.ProcParams, ctx RenderContext) int {
	s := vsAny.(*FilterState)
	in, hasIn := ctx.In[0]
	out, hasOut := ctx.Out[0]
	if !hasOut {
		return 0
	}
	if !hasIn {
		out.Zero(0)
		return 0
	}

	for i := 0; i < ctx.Frames; i++ {
		xl, xr := float64(in.L[i]), float64(in.R[i])
		var yl, yr float64
		if s.fadeLeft > 0 {
			t := 1 - float64(s.fadeLeft)/float64(filterCrossfadeFrames)
			// Cross-fade by interpolating coefficients directly rather
			// than running two parallel filter histories; cheaper and
			// avoids doubling filter state per voice.
			blended := biquadCoeffs{
				b0: s.coeffsOld.b0 + t*(s.coeffsNew.b0-s.coeffsOld.b0),
				b1: s.coeffsOld.b1 + t*(s.coeffsNew.b1-s.coeffsOld.b1),
				b2: s.coeffsOld.b2 + t*(s.coeffsNew.b2-s.coeffsOld.b2),
				a1: s.coeffsOld.a1 + t*(s.coeffsNew.a1-s.coeffsOld.a1),
				a2: s.coeffsOld.a2 + t*(s.coeffsNew.a2-s.coeffsOld.a2),
			}
			yl = blended.b0*xl + blended.b1*s.l.x1 + blended.b2*s.l.x2 - blended.a1*s.l.y1 - blended.a2*s.l.y2
			yr = blended.b0*xr + blended.b1*s.r.x1 + blended.b2*s.r.x2 - blended.a1*s.r.y1 - blended.a2*s.r.y2
			s.l.x2, s.l.x1 = s.l.x1, xl
			s.l.y2, s.l.y1 = s.l.y1, yl
			s.r.x2, s.r.x1 = s.r.x1, xr
			s.r.y2, s.r.y1 = s.r.y1, yr
			s.fadeLeft--
		} else {
			yl = s.l.step(s.coeffsNew, xl)
			yr = s.r.step(s.coeffsNew, xr)
		}
		out.L[i] = float32(clampFinite(yl))
		out.R[i] = float32(clampFinite(yr))
	}
	return ctx.Frames
}
