// Package dispatch implements the Event Dispatcher: per-namespace
// handler tables for master (m.*), channel (c.*), audio-unit (a.*),
// processor/generator (g.*), control-variable (cv.*) and environment
// (env.*) triggers, plus the Channel and Master state those handlers
// mutate. Grounded on the teacher's big per-event switch in
// sequencer.go's applyControl, restructured into name-keyed handler
// tables rather than one large switch, per SPEC_FULL.md's
// generalization of that dispatch style.
package dispatch

import (
	"strings"

	"github.com/charmbracelet/log"

	"github.com/kunquat/kunquat-sub007/internal/lfo"
	"github.com/kunquat/kunquat-sub007/internal/module"
	"github.com/kunquat/kunquat-sub007/internal/slider"
	"github.com/kunquat/kunquat-sub007/internal/tstamp"
	"github.com/kunquat/kunquat-sub007/internal/tuning"
	"github.com/kunquat/kunquat-sub007/internal/value"
	"github.com/kunquat/kunquat-sub007/internal/voice"
)

// maxJumpStack bounds the active-jumps stack per §7's "jump stack
// overflow -> excess jump ignored" rule.
const maxJumpStack = 64

// maxGotoSteps bounds consecutive goto resolution per chunk before the
// dispatcher reports playback should stop (§7's goto safety counter).
const maxGotoSteps = 256

// NoteTarget names which (channel, group) a voice-lifecycle handler
// should act on; the dispatcher resolves this from the firing channel.
type NoteTarget struct {
	Channel int
	AUIndex int
}

// VoiceHooks lets the dispatcher drive voice allocation and per-voice
// parameter pushes without importing internal/graph (avoiding a
// dispatch<->graph<->core import cycle); internal/core wires a concrete
// implementation backed by the voice pool and device graph.
type VoiceHooks interface {
	AllocateVoice(channel, auIndex int, groupID uint64, isExternal bool) int
	Deactivate(slot int)
	Demote(groupID uint64)
	ActiveGroup(groupID uint64) bool
	NewGroupID() uint64
	ClearVoiceHistory(slot int)
}

// Channel is one of the 64 fixed per-column state blocks: the AU it
// currently targets, its control sliders, LFOs, arpeggio state, and
// carry/control-variable bookkeeping.
type Channel struct {
	AUIndex int

	Pitch            float64
	PitchImmediate   bool // true once c.pitch/note_on set it; c.pitch_slide clears it
	PitchSlideLength tstamp.T

	Force            float64
	ForceImmediate   bool
	ForceSlideLength tstamp.T

	FilterCutoff float64
	FilterQ      float64

	Vibrato, Tremolo, Autowah *lfo.LFO

	ArpeggioOn    bool
	ArpeggioTones [64]float64
	ArpeggioN     int
	ArpeggioSpeed float64

	CarryNoteExpression bool

	CVState map[string]value.Value
	CVCarry map[string]bool

	TestOutput *value.Value

	ActiveGroup uint64 // group id of the channel's currently-held foreground note, 0 if none

	// ControlsDirty marks that pitch/force/filter/vibrato/tremolo/
	// arpeggio state changed since core last pushed it into this
	// channel's active voices. Core clears it after pushing; gating the
	// push this way means an unchanged slider/LFO target is never
	// re-applied every render chunk, which would otherwise restart its
	// glide from the current value over the full configured length
	// again and again instead of letting it converge (see
	// graph.ApplyVoiceControl's caller contract).
	ControlsDirty bool
}

func newChannel(audioRate int64, tempo float64) *Channel {
	return &Channel{
		CVState:        make(map[string]value.Value),
		CVCarry:        make(map[string]bool),
		PitchImmediate: true,
		ForceImmediate: true,
		ControlsDirty:  true,
		Vibrato:        lfo.New(lfo.WaveTriangle, lfo.ModeLinear, audioRate, tempo),
		Tremolo:        lfo.New(lfo.WaveTriangle, lfo.ModeLinear, audioRate, tempo),
		Autowah:        lfo.New(lfo.WaveTriangle, lfo.ModeLinear, audioRate, tempo),
	}
}

// jumpContext is one entry in the active-jumps stack. masterJump records
// the pattern instance and row it jumped from; TriggerIndex and Counter
// are not filled in, and entries are not de-duplicated, so each pass over
// the same jump trigger pushes a new entry until the stack is full.
type jumpContext struct {
	Pattern      int
	Row          tstamp.T
	TriggerIndex int
	Counter      int
}

// Master holds global playback position, tempo, volume and the bounded
// jump/goto machinery.
type Master struct {
	Track, Section, PatternInstance int
	Beats                           tstamp.T

	Tempo      float64
	TempoSlide *slider.Slider

	Volume            float64
	VolumeImmediate   bool // true once m.volume set it; m.volume_slide clears it
	VolumeSlideLength tstamp.T

	// VolumeDirty mirrors Channel.ControlsDirty for the one master-level
	// slider: core pushes Volume into the graph's own master-gain slider
	// only when this is set, then clears it, so an unchanged volume is
	// never re-pushed every render chunk.
	VolumeDirty bool

	jumpStack   []jumpContext
	gotoSteps   int
	StopPending bool

	// Epoch increments every time a jump/goto trigger overwrites Beats
	// out of band, so the sequencer knows to resynchronize its per-
	// column trigger cursors instead of trusting monotonic advance.
	Epoch uint64

	Tunings map[int]*tuning.Table
}

// ResetGotoSteps clears the per-chunk goto safety counter; the
// sequencer calls this once at the start of each render chunk so a
// module that legitimately gotos often across many chunks is never
// penalized for a previous chunk's count.
func (m *Master) ResetGotoSteps() { m.gotoSteps = 0 }

// Dispatcher owns Channel/Master state and the name-keyed handler
// tables, and mutates voice lifecycle through VoiceHooks.
type Dispatcher struct {
	channels []*Channel
	master   *Master
	hooks    VoiceHooks
	mod      *module.Module

	masterHandlers  map[string]func(*Dispatcher, value.Value) error
	channelHandlers map[string]func(*Dispatcher, int, value.Value) error

	auBypass     map[int]bool
	genOverrides map[int]map[string]float64
}

// New builds a Dispatcher with numChannels fixed Channel slots (64 per
// SPEC_FULL.md) and wires every built-in handler.
func New(mod *module.Module, numChannels int, hooks VoiceHooks, audioRate int64) *Dispatcher {
	d := &Dispatcher{
		channels: make([]*Channel, numChannels),
		mod:      mod,
		hooks:    hooks,
	}
	for i := range d.channels {
		d.channels[i] = newChannel(audioRate, 120)
	}
	d.master = &Master{
		Tempo:           120,
		TempoSlide:      slider.New(slider.ModeLinear, audioRate, 120),
		Volume:          1.0,
		VolumeImmediate: true,
		VolumeDirty:     true,
		Tunings:         make(map[int]*tuning.Table),
	}
	d.master.TempoSlide.SetImmediate(120)

	d.registerMasterHandlers()
	d.registerChannelHandlers()
	return d
}

func (d *Dispatcher) Channel(i int) *Channel { return d.channels[i] }
func (d *Dispatcher) Master() *Master        { return d.master }

// Fire dispatches one trigger by full name (e.g. "m.tempo", "c.note_on",
// "cv.brightness") to its namespace's handler table. An unknown name or
// an argument-type mismatch is logged and dropped, never propagated as
// an error that would stop playback (§7's "trigger value-type mismatch:
// logged-and-dropped").
func (d *Dispatcher) Fire(channel int, name string, arg value.Value) {
	ns, rest, ok := splitNamespace(name)
	if !ok {
		log.Warn("dispatch: malformed event name", "name", name)
		return
	}

	var err error
	switch ns {
	case "m":
		h, found := d.masterHandlers[rest]
		if !found {
			log.Warn("dispatch: unknown master event", "name", name)
			return
		}
		err = h(d, arg)
	case "c":
		h, found := d.channelHandlers[rest]
		if !found {
			log.Warn("dispatch: unknown channel event", "name", name)
			return
		}
		err = h(d, channel, arg)
	case "a":
		err = d.fireAU(channel, rest, arg)
	case "g":
		err = d.fireGenerator(channel, rest, arg)
	case "cv":
		err = d.fireControlVar(channel, rest, arg)
	case "env":
		// Environment triggers have no engine-side target in this
		// core; MIDI/GUI routing is an external collaborator's
		// concern (SPEC_FULL.md's env.* non-goal). Accept and drop.
		return
	default:
		log.Warn("dispatch: unknown event namespace", "name", name)
		return
	}
	if err != nil {
		log.Warn("dispatch: handler rejected argument", "name", name, "err", err)
	}
}

func splitNamespace(name string) (ns, rest string, ok bool) {
	i := strings.IndexByte(name, '.')
	if i < 0 {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}
