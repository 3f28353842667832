// Package core wires the Timeline Sequencer, Event Dispatcher, Voice
// Pool and Device Graph into the caller-facing operations of §6.2:
// core_init, core_play/core_play_pattern/core_stop, core_render,
// core_get_output_buffer, core_fire and core_get_position. Grounded on
// the teacher's Player, which plays the analogous role of owning a
// sequencer plus a voice engine and exposing a small synchronous
// surface to the caller — adapted here from the teacher's event-channel
// push API (Play/Watch/Wait) to the spec's synchronous pull API
// (core_render returning frames_produced).
package core

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/kunquat/kunquat-sub007/internal/dispatch"
	"github.com/kunquat/kunquat-sub007/internal/graph"
	"github.com/kunquat/kunquat-sub007/internal/module"
	"github.com/kunquat/kunquat-sub007/internal/proc"
	"github.com/kunquat/kunquat-sub007/internal/sequencer"
	"github.com/kunquat/kunquat-sub007/internal/tstamp"
	"github.com/kunquat/kunquat-sub007/internal/value"
	"github.com/kunquat/kunquat-sub007/internal/voice"
)

// Core is the real-time rendering core: one module bound to one voice
// pool, device graph, dispatcher and sequencer.
type Core struct {
	mod *module.Module
	cfg Config

	audioRate  int64
	chunkMax   int
	moduleSeed uint64

	procTable proc.Table
	pool      *voice.Pool
	graph     *graph.Graph
	disp      *dispatch.Dispatcher
	seq       *sequencer.Sequencer

	frameCounter  int64
	silentSince   map[int]int64
	keepAliveSpan int64

	outL, outR []float32
}

// New implements core_init: it validates the module's device graphs
// (returning an init-time configuration error per §7 on a cyclic
// connection graph or an unregistered processor type) and allocates the
// voice pool, dispatcher and sequencer bound to it.
func New(mod *module.Module, audioRate int64, chunkMax int, opts ...Option) (*Core, error) {
	if audioRate <= 0 {
		return nil, fmt.Errorf("core: audio rate must be positive, got %d", audioRate)
	}
	if chunkMax <= 0 {
		return nil, fmt.Errorf("core: chunk_max must be positive, got %d", chunkMax)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	seed := mod.RandomSeed
	if cfg.RandomSeed != 0 {
		seed = cfg.RandomSeed
	}

	procTable := proc.RegisterBuiltins()
	pool := voice.NewPool(cfg.VoicePoolSize)

	g, err := graph.NewGraph(mod, procTable, pool, audioRate, chunkMax)
	if err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}

	c := &Core{
		mod:           mod,
		cfg:           cfg,
		audioRate:     audioRate,
		chunkMax:      chunkMax,
		moduleSeed:    seed,
		procTable:     procTable,
		pool:          pool,
		graph:         g,
		silentSince:   make(map[int]int64),
		keepAliveSpan: audioRate / 20, // 50ms, §4.5.6's keep-alive window
	}

	hooks := &voiceHooks{pool: pool, g: g}
	c.disp = dispatch.New(mod, numChannels, hooks, audioRate)
	c.seq = sequencer.New(mod, c.disp, numChannels, audioRate)

	return c, nil
}

// SetRate implements core_set_rate: it rebuilds the device graph at the
// new audio rate (effect AUs with internal delay lines, e.g. chorus and
// Freeverb, lose their history on a rate change — resizing their buffers
// in place is not supported, matching how the original engine also only
// offers a clean driver restart on device change), rescales the master
// tempo slider to preserve its remaining real time, and re-applies the
// master volume to the new graph on the next render.
func (c *Core) SetRate(rate int64) error {
	if rate <= 0 {
		return fmt.Errorf("core: audio rate must be positive, got %d", rate)
	}
	g, err := graph.NewGraph(c.mod, c.procTable, c.pool, rate, c.chunkMax)
	if err != nil {
		return fmt.Errorf("core: %w", err)
	}
	c.audioRate = rate
	c.graph = g
	c.keepAliveSpan = rate / 20
	c.disp.Master().TempoSlide.ChangeMixRate(rate)
	c.disp.Master().VolumeDirty = true
	return nil
}

// SetBufferSize implements core_set_buffer_size: it rebuilds the device
// graph's work buffers at the new chunk_max, the same resource-reset
// path as SetRate.
func (c *Core) SetBufferSize(size int) error {
	if size <= 0 {
		return fmt.Errorf("core: chunk_max must be positive, got %d", size)
	}
	g, err := graph.NewGraph(c.mod, c.procTable, c.pool, c.audioRate, size)
	if err != nil {
		return fmt.Errorf("core: %w", err)
	}
	c.chunkMax = size
	c.graph = g
	return nil
}

// Play implements core_play.
func (c *Core) Play(trackIndex int) error { return c.seq.Play(trackIndex) }

// PlayPattern implements core_play_pattern.
func (c *Core) PlayPattern(patIndex int) error { return c.seq.PlayPattern(patIndex) }

// Stop implements core_stop.
func (c *Core) Stop() { c.seq.Stop() }

// EndReached implements core_end_reached.
func (c *Core) EndReached() bool { return c.seq.EndReached() }

// Position implements core_get_position.
func (c *Core) Position() (track, section, patternInstance int, beats tstamp.T) {
	return c.seq.Position()
}

// Fire implements core_fire, the external-trigger entry point (e.g. a
// live MIDI-to-event bridge or a GUI control) distinct from triggers the
// sequencer itself fires from the timeline.
func (c *Core) Fire(channel int, eventName string, arg value.Value) {
	if channel < 0 || channel >= numChannels {
		log.Warn("core: fire on out-of-range channel", "channel", channel)
		return
	}
	c.disp.Fire(channel, eventName, arg)
}

// OutputBuffer implements core_get_output_buffer: channelIndex 0 is the
// left output, 1 is the right, matching §6.4's "stereo ... split by
// channel" choice.
func (c *Core) OutputBuffer(channelIndex int) []float32 {
	switch channelIndex {
	case 0:
		return c.outL
	case 1:
		return c.outR
	default:
		return nil
	}
}
