package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunquat/kunquat-sub007/internal/module"
	"github.com/kunquat/kunquat-sub007/internal/rng"
)

func makePort(n int) Port {
	return Port{L: make([]float32, n), R: make([]float32, n)}
}

func TestDebugProcessorS1Shape(t *testing.T) {
	p := debugProc{}
	vs := p.NewVoiceState(module.ProcParams{}, InitContext{AudioRate: 48000})
	out := makePort(480)
	ctx := RenderContext{Frames: 480, AudioRate: 48000, Tempo: 120, Out: map[module.Port]Port{0: out}}
	stop := p.RenderVoice(vs, module.ProcParams{}, ctx)
	require.Equal(t, 480, stop)
	assert.Equal(t, float32(1.0), out.L[0])
	assert.Equal(t, float32(0.5), out.L[1])
	assert.Equal(t, float32(0.5), out.L[47])
}

func TestRingmodFinalsZeroWithMissingInput(t *testing.T) {
	p := ringmodProc{}
	vs := p.NewVoiceState(module.ProcParams{}, InitContext{AudioRate: 48000})
	out := makePort(10)
	ctx := RenderContext{Frames: 10, Out: map[module.Port]Port{0: out}}
	stop := p.RenderVoice(vs, module.ProcParams{}, ctx)
	assert.Equal(t, 0, stop)
	for _, v := range out.L {
		assert.Equal(t, float32(0), v)
	}
}

func TestRingmodMultipliesInputs(t *testing.T) {
	p := ringmodProc{}
	vs := p.NewVoiceState(module.ProcParams{}, InitContext{AudioRate: 48000})
	a := makePort(4)
	b := makePort(4)
	for i := range a.L {
		a.L[i], a.R[i] = 2, 2
		b.L[i], b.R[i] = 3, 3
	}
	out := makePort(4)
	ctx := RenderContext{Frames: 4, In: map[module.Port]Port{0: a, 1: b}, Out: map[module.Port]Port{0: out}}
	p.RenderVoice(vs, module.ProcParams{}, ctx)
	for _, v := range out.L {
		assert.Equal(t, float32(6), v)
	}
}

func TestChorusSingleVoiceIdentity(t *testing.T) {
	params := module.ProcParams{Ints: map[string]int64{"voices": 1}, Floats: map[string]float64{
		"voice0_delay_ms": 0, "voice0_range_ms": 0, "voice0_speed_hz": 0, "voice0_volume_db": 0,
	}}
	p := chorusProc{}
	vs := p.NewVoiceState(params, InitContext{AudioRate: 48000})

	in := makePort(16)
	for i := range in.L {
		in.L[i] = float32(i) * 0.01
		in.R[i] = float32(i) * 0.02
	}
	out := makePort(16)
	ctx := RenderContext{Frames: 16, AudioRate: 48000, In: map[module.Port]Port{0: in}, Out: map[module.Port]Port{0: out}}
	p.RenderVoice(vs, params, ctx)
	for i := range in.L {
		assert.InDelta(t, float64(in.L[i]), float64(out.L[i]), 1e-5)
	}
}

func TestNoiseStaysWithinSignedRange(t *testing.T) {
	p := noiseProc{}
	params := module.ProcParams{Ints: map[string]int64{"order": 2}}
	vs := p.NewVoiceState(params, InitContext{AudioRate: 48000})
	out := makePort(200)
	ctx := RenderContext{
		Frames:     200,
		AudioRate:  48000,
		Out:        map[module.Port]Port{0: out},
		SignalRand: rng.New(1, 1, rng.StreamSignal),
	}
	p.RenderVoice(vs, params, ctx)
	for _, v := range out.L {
		assert.LessOrEqual(t, v, float32(4))
		assert.GreaterOrEqual(t, v, float32(-4))
	}
}

func TestFilterPassesLowFrequencyNearUnity(t *testing.T) {
	p := filterProc{}
	params := module.ProcParams{Floats: map[string]float64{"cutoff_hz": 8000, "resonance": 0.707}}
	vs := p.NewVoiceState(params, InitContext{AudioRate: 48000})

	in := makePort(64)
	for i := range in.L {
		in.L[i], in.R[i] = 1, 1 // DC step; lowpass should settle near 1
	}
	out := makePort(64)
	ctx := RenderContext{Frames: 64, AudioRate: 48000, In: map[module.Port]Port{0: in}, Out: map[module.Port]Port{0: out}}
	p.RenderVoice(vs, params, ctx)
	assert.InDelta(t, 1.0, float64(out.L[63]), 0.05)
}

func TestKarplusExcitesOnFirstRender(t *testing.T) {
	p := karplusProc{}
	params := module.ProcParams{Floats: map[string]float64{"damping": 0.5}}
	vs := p.NewVoiceState(params, InitContext{AudioRate: 48000})
	out := makePort(100)
	ctx := RenderContext{
		Frames:     100,
		AudioRate:  48000,
		Out:        map[module.Port]Port{0: out},
		SignalRand: rng.New(1, 1, rng.StreamSignal),
	}
	p.RenderVoice(vs, params, ctx)
	nonZero := false
	for _, v := range out.L {
		if v != 0 {
			nonZero = true
			break
		}
	}
	assert.True(t, nonZero)
}
