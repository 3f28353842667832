package graph

import (
	"github.com/kunquat/kunquat-sub007/internal/module"
	"github.com/kunquat/kunquat-sub007/internal/proc"
	"github.com/kunquat/kunquat-sub007/internal/tstamp"
)

// VoiceControl carries one chunk's worth of channel-state inputs core
// pushes down into a voice's per-processor state before rendering it.
// It exists so the dispatch package (which owns Channel) never needs to
// know proc's concrete state layouts, and the graph package (which owns
// that layout) never needs to know dispatch's Channel shape.
type VoiceControl struct {
	AudioRate int64
	Tempo     float64

	PitchTarget      float64
	PitchSlideLength tstamp.T
	PitchCarry       float64
	VibratoOn        bool
	VibratoSpeed     float64
	VibratoDepth     float64
	ArpeggioOn       bool
	ArpeggioTones    []float64
	ArpeggioSpeed    float64

	ForceTarget      float64
	ForceSlideLength tstamp.T
	TremoloOn        bool
	TremoloSpeed     float64
	TremoloDepth     float64
	Release          bool // note_off: head the force envelope to its release mark

	FilterCutoff float64
	FilterQ      float64
}

// ApplyVoiceControl pushes a channel's current control state into every
// pitch/force/filter processor of the voice occupying slot, rendering
// into auIndex this chunk. It is a no-op for processor types the
// control doesn't address (sample, noise, chorus, ...), which read their
// module-level parameters directly.
func (g *Graph) ApplyVoiceControl(slot, auIndex int, vc VoiceControl) {
	v := g.pool.Slot(slot)
	arena := g.ensureArena(v, auIndex)
	au := g.mod.AudioUnits[auIndex]

	for i, p := range au.Processors {
		switch p.Type {
		case module.ProcPitch:
			ps := arena.states[i].(*proc.PitchState)
			ps.Slider.ChangeMixRate(vc.AudioRate)
			ps.Slider.ChangeTempo(vc.Tempo)
			ps.SetTarget(vc.PitchTarget, vc.PitchSlideLength)
			ps.Add = vc.PitchCarry
			ps.Vibrato.SetAudioRate(vc.AudioRate)
			ps.Vibrato.SetTempo(vc.Tempo)
			if vc.VibratoOn {
				ps.Vibrato.SetSpeed(vc.VibratoSpeed)
				ps.Vibrato.SetDepth(vc.VibratoDepth)
				ps.Vibrato.TurnOn()
			} else {
				ps.Vibrato.TurnOff()
			}
			ps.SetArpeggio(vc.ArpeggioOn, vc.ArpeggioTones, vc.ArpeggioSpeed)

		case module.ProcForce:
			fs := arena.states[i].(*proc.ForceState)
			fs.Slider.ChangeMixRate(vc.AudioRate)
			fs.Slider.ChangeTempo(vc.Tempo)
			fs.Slider.ChangeLength(vc.ForceSlideLength)
			fs.Slider.ChangeTarget(vc.ForceTarget)
			fs.Tremolo.SetAudioRate(vc.AudioRate)
			fs.Tremolo.SetTempo(vc.Tempo)
			if vc.TremoloOn {
				fs.Tremolo.SetSpeed(vc.TremoloSpeed)
				fs.Tremolo.SetDepth(vc.TremoloDepth)
				fs.Tremolo.TurnOn()
			} else {
				fs.Tremolo.TurnOff()
			}
			if vc.Release {
				fs.Release()
			}

		case module.ProcFilter:
			fl := arena.states[i].(*proc.FilterState)
			fl.SetCutoff(vc.FilterCutoff, vc.AudioRate)
			fl.SetQ(vc.FilterQ, vc.AudioRate)
		}
	}
}

// ClearVoiceHistory resets every processor's internal history for the
// voice in slot, called by core whenever a slot is reused for a new
// note — whether via a fresh allocation into the same AU or a steal
// into a different one — per the Processor interface's steal contract.
func (g *Graph) ClearVoiceHistory(slot int) {
	v := g.pool.Slot(slot)
	a, ok := v.VState.(*voiceArena)
	if !ok {
		return
	}
	au := g.mod.AudioUnits[a.auIndex]
	for i, p := range au.Processors {
		impl := g.procTable[p.Type]
		impl.ClearHistory(a.states[i])
	}
}
