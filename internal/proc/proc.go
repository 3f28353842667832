// Package proc implements the per-processor-type DSP state machines of
// the device graph: pitch, force, filter, sample, noise, ringmod/mult,
// gain-compensation, chorus, Karplus-Strong and Freeverb. Rather than
// inheriting from a common base type (the original C engine's
// struct-embedding idiom), each processor type is a small value
// implementing Processor, and RegisterBuiltins wires them into a
// type-keyed dispatch table — "a small v-table of
// init/render/destroy/clear_history" per the design notes this engine
// follows.
package proc

import (
	"github.com/kunquat/kunquat-sub007/internal/module"
	"github.com/kunquat/kunquat-sub007/internal/rng"
)

// Port is one stereo audio/control signal buffer slice borrowed for the
// duration of a single RenderVoice call. Length is always Frames.
type Port struct {
	L, R []float32
}

// Zero fills the port with silence from start to len(L).
func (p Port) Zero(start int) {
	for i := start; i < len(p.L); i++ {
		p.L[i] = 0
		p.R[i] = 0
	}
}

// RenderContext is everything a processor needs to render one voice's
// contribution for one chunk.
type RenderContext struct {
	Frames    int
	AudioRate int64
	Tempo     float64

	// In holds this processor's connected input ports by port index;
	// an absent entry means silence.
	In map[module.Port]Port
	// Out holds this processor's output ports by port index; the
	// processor writes its result here.
	Out map[module.Port]Port

	ParamRand  *rng.Stream
	SignalRand *rng.Stream

	NoteOff bool // true once the owning voice group has received note_off
}

// Processor is the behavior of one processor type: it owns no instance
// data itself (parameters live in module.Processor, instance state in
// the per-voice arena returned by NewVoiceState).
type Processor interface {
	// NewVoiceState allocates this processor type's per-voice state,
	// initialized from its module-level parameters.
	NewVoiceState(params module.ProcParams, ctx InitContext) any

	// RenderVoice advances vs by ctx.Frames frames and returns the
	// index past the last frame with non-silent, non-final output
	// (§4.4's "actual stop index"); callers may deactivate the voice
	// once that index is 0 and the keep-alive window has elapsed.
	RenderVoice(vs any, params module.ProcParams, ctx RenderContext) int

	// ClearHistory resets any internal delay/filter history, called
	// when a voice is reused for a new note via a stolen slot (§9 open
	// question: source never calls this consistently; this spec calls
	// it on every steal).
	ClearHistory(vs any)
}

// InitContext carries the handful of init-time facts a voice state
// needs to size itself (e.g. delay-line lengths scale with audio rate).
type InitContext struct {
	AudioRate int64
}

// Table maps a processor type to its behavior.
type Table map[module.ProcType]Processor

// RegisterBuiltins returns a Table with every processor type named in
// SPEC_FULL.md wired to a concrete implementation.
func RegisterBuiltins() Table {
	return Table{
		module.ProcPitch:         pitchProc{},
		module.ProcForce:         forceProc{},
		module.ProcFilter:        filterProc{},
		module.ProcSample:        sampleProc{},
		module.ProcNoise:         noiseProc{},
		module.ProcRingmod:       ringmodProc{mult: false},
		module.ProcMult:          ringmodProc{mult: true},
		module.ProcGainComp:      gainCompProc{},
		module.ProcChorus:        chorusProc{},
		module.ProcKarplusStrong: karplusProc{},
		module.ProcFreeverb:      freeverbProc{},
		module.ProcDebug:         debugProc{},
	}
}

func clampFinite(x float64) float64 {
	const maxV = 3.4e38 // [-FLT_MAX, FLT_MAX], §6.4
	if x != x { // NaN
		return 0
	}
	if x > maxV {
		return maxV
	}
	if x < -maxV {
		return -maxV
	}
	return x
}
