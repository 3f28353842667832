package proc

import (
	"math"
	"strconv"

	"github.com/kunquat/kunquat-sub007/internal/module"
)

// ChorusVoicesMax bounds the number of simultaneous delay lines a
// chorus processor may mix (§4.4).
const ChorusVoicesMax = 8

// ChorusDelayMax is the largest base delay, in milliseconds, a chorus
// voice may use.
const ChorusDelayMax = 40.0

// ChorusVoiceParams configures one delay line within a chorus.
type ChorusVoiceParams struct {
	DelayMs  float64
	RangeMs  float64 // modulation depth
	SpeedHz  float64 // modulation rate
	VolumeDB float64
}

type chorusVoiceState struct {
	bufL, bufR []float32
	pos        int
	phase      float64
}

// ChorusState holds one delay-line ring buffer per configured voice.
type ChorusState struct {
	voices []chorusVoiceState
	params []ChorusVoiceParams
}

type chorusProc struct{}

func chorusVoicesFromParams(p module.ProcParams) []ChorusVoiceParams {
	n := int(p.Int("voices", 1))
	if n < 1 {
		n = 1
	}
	if n > ChorusVoicesMax {
		n = ChorusVoicesMax
	}
	out := make([]ChorusVoiceParams, n)
	for i := 0; i < n; i++ {
		pre := "voice" + strconv.Itoa(i) + "_"
		delay := p.Float(pre+"delay_ms", 0)
		if delay < 0 {
			delay = 0
		} else if delay > ChorusDelayMax {
			delay = ChorusDelayMax
		}
		out[i] = ChorusVoiceParams{
			DelayMs:  delay,
			RangeMs:  p.Float(pre+"range_ms", 0),
			SpeedHz:  p.Float(pre+"speed_hz", 0),
			VolumeDB: p.Float(pre+"volume_db", 0),
		}
	}
	return out
}

func (chorusProc) NewVoiceState(params module.ProcParams, ctx InitContext) any {
	vps := chorusVoicesFromParams(params)
	s := &ChorusState{params: vps, voices: make([]chorusVoiceState, len(vps))}
	for i, vp := range vps {
		size := int((vp.DelayMs+vp.RangeMs+ChorusDelayMax)*float64(ctx.AudioRate)/1000.0) + 4
		if size < 4 {
			size = 4
		}
		s.voices[i] = chorusVoiceState{bufL: make([]float32, size), bufR: make([]float32, size)}
	}
	return s
}

func (chorusProc) ClearHistory(vs any) {
	s := vs.(*ChorusState)
	for i := range s.voices {
		v := &s.voices[i]
		for j := range v.bufL {
			v.bufL[j] = 0
			v.bufR[j] = 0
		}
		v.pos = 0
		v.phase = 0
	}
}

func (chorusProc) RenderVoice(vsAny any, params module.ProcParams, ctx RenderContext) int {
	s := vsAny.(*ChorusState)
	out, ok := ctx.Out[0]
	if !ok {
		return 0
	}
	in, hasIn := ctx.In[0]
	if !hasIn {
		out.Zero(0)
		return 0
	}

	rate := float64(ctx.AudioRate)
	for i := 0; i < ctx.Frames; i++ {
		var mixL, mixR float32
		for vi := range s.voices {
			vs := &s.voices[vi]
			vp := s.params[vi]
			size := len(vs.bufL)

			vs.bufL[vs.pos] = in.L[i]
			vs.bufR[vs.pos] = in.R[i]

			mod := math.Sin(vs.phase) * vp.RangeMs * rate / 1000.0
			vs.phase += 2 * math.Pi * vp.SpeedHz / rate
			if vs.phase > 2*math.Pi {
				vs.phase -= 2 * math.Pi
			}

			delaySamples := vp.DelayMs*rate/1000.0 + mod
			readPos := float64(vs.pos) - delaySamples
			for readPos < 0 {
				readPos += float64(size)
			}
			idx := int(readPos) % size
			frac := float32(readPos - math.Floor(readPos))
			idx2 := (idx + 1) % size

			dl := vs.bufL[idx]*(1-frac) + vs.bufL[idx2]*frac
			dr := vs.bufR[idx]*(1-frac) + vs.bufR[idx2]*frac

			gain := float32(dbToLinear(vp.VolumeDB))
			mixL += dl * gain
			mixR += dr * gain

			vs.pos++
			if vs.pos >= size {
				vs.pos = 0
			}
		}
		out.L[i] = float32(clampFinite(float64(mixL)))
		out.R[i] = float32(clampFinite(float64(mixR)))
	}
	return ctx.Frames
}
