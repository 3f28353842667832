// Package module defines the in-memory, immutable-during-render
// composition tree the core consumes: songs, patterns, columns,
// triggers, audio units, processors and their connections. Parsing the
// on-disk composition format into this tree is an external concern;
// this package only models the shape the core reads.
package module

import (
	"github.com/kunquat/kunquat-sub007/internal/envelope"
	"github.com/kunquat/kunquat-sub007/internal/tstamp"
	"github.com/kunquat/kunquat-sub007/internal/value"
)

// ProcType identifies a processor's DSP behavior.
type ProcType int

const (
	ProcPitch ProcType = iota
	ProcForce
	ProcFilter
	ProcSample
	ProcNoise
	ProcRingmod
	ProcMult
	ProcGainComp
	ProcChorus
	ProcKarplusStrong
	ProcFreeverb
	ProcDebug // an impulse-then-plateau test generator used for S1-style tests
)

// Trigger is one authored event: a name selecting a handler table, a
// typed argument, and the beat-accurate position it fires at.
type Trigger struct {
	Name string
	Arg  value.Value
	Pos  tstamp.T
}

// Column is one voice/note lane within a pattern, holding its triggers
// in position order.
type Column struct {
	Triggers []Trigger
}

// Pattern is a fixed-length section of the timeline containing one or
// more columns (one per channel that uses it).
type Pattern struct {
	Length  tstamp.T
	Columns []Column
}

// PatternInstance places a Pattern at a position within a Song's track.
type PatternInstance struct {
	Pattern int
}

// Song is an ordered list of pattern instances forming one playable
// track list ("track" in the external interface's position tuple).
type Song struct {
	Instances []PatternInstance
}

// HitMap maps a velocity/index range to a sample index, used by
// hit-triggered processors to pick among round-robin or velocity-layered
// samples.
type HitMapEntry struct {
	IndexLo, IndexHi int
	SampleIndex      int
}

type HitMap struct {
	Entries []HitMapEntry
}

// SampleFor returns the sample index bound to a hit index, or -1 if
// none of the entries cover it.
func (h HitMap) SampleFor(index int) int {
	for _, e := range h.Entries {
		if index >= e.IndexLo && index <= e.IndexHi {
			return e.SampleIndex
		}
	}
	return -1
}

// Port is a single numbered input or output on a device (0..31 per
// direction).
type Port int

// Connection is a directed edge between two device ports within a
// device graph (either the AU-internal graph or the master graph).
type Connection struct {
	FromDevice int // -1 means "this AU's own input/output pseudo-device"
	FromPort   Port
	ToDevice   int
	ToPort     Port
}

// Processor is a typed DSP node owned by an AU.
type Processor struct {
	Type   ProcType
	Params ProcParams

	// Ports this processor exposes, by direction.
	InPorts, OutPorts uint32 // bitmask, bit i = port i present
}

// ProcParams bundles every processor parameter type a processor may use;
// only the fields relevant to Type are populated, matching the source's
// typed-but-sparse parameter blocks.
type ProcParams struct {
	Bools    map[string]bool
	Ints     map[string]int64
	Floats   map[string]float64
	Tstamps  map[string]tstamp.T
	Envelope *envelope.Envelope

	// Sample holds decoded PCM (already demuxed from the excluded codec
	// layer) for ProcSample.
	Sample     []float32
	SampleRate int64
	LoopStart  int
	LoopEnd    int
	Bidi       bool
}

func (p ProcParams) Float(name string, def float64) float64 {
	if p.Floats == nil {
		return def
	}
	if v, ok := p.Floats[name]; ok {
		return v
	}
	return def
}

func (p ProcParams) Int(name string, def int64) int64 {
	if p.Ints == nil {
		return def
	}
	if v, ok := p.Ints[name]; ok {
		return v
	}
	return def
}

func (p ProcParams) Bool(name string, def bool) bool {
	if p.Bools == nil {
		return def
	}
	if v, ok := p.Bools[name]; ok {
		return v
	}
	return def
}

// AUKind distinguishes voiced instruments from mixed-only effects.
type AUKind int

const (
	AUInstrument AUKind = iota
	AUEffect
)

// AudioUnit is a composite device: a processor table plus an inner
// connection graph, envelopes, hit-map, and control-variable
// definitions.
type AudioUnit struct {
	Kind AUKind

	InPorts, OutPorts uint32

	Processors        []Processor
	InnerConnections   []Connection

	ForceEnv  *envelope.Envelope
	FilterEnv *envelope.Envelope
	PitchEnv  *envelope.Envelope

	HitMap HitMap
	// HitProcFilter[i] is the processor-index bitmask enabled for hit
	// index i; a nil entry enables every processor (note-on default).
	HitProcFilter map[int]uint64

	ControlVars []ControlVarDef
}

// ControlVarDef declares one named, typed control variable an AU
// exposes to cv.* triggers.
type ControlVarDef struct {
	Name string
	Kind value.Kind
}

// TuningTableDef is the module-supplied base data for a tuning.Table;
// entries are cents-from-A440 at a reference MIDI-style note.
type TuningTableDef struct {
	Notes []TuningEntry
}

type TuningEntry struct {
	Note  int64
	Cents float64
}

// Module is the full, immutable composition tree consumed by core_init.
type Module struct {
	Songs         []Song
	Patterns      []Pattern
	AudioUnits    []AudioUnit
	TuningTables  []TuningTableDef
	Connections   []Connection // master-graph connections, AU-to-AU and AU-to-master
	RandomSeed    uint64
}
