// Package sequencer implements the Timeline Sequencer: it walks the
// module's song/pattern/column tree in Tstamp time, firing each due
// trigger into the Event Dispatcher in position order, and reports how
// many audio frames a render chunk actually advanced.
//
// Grounded on the teacher's tick-driven Process/dispatchTick loop: a
// fractional per-frame tick accumulator advances a cursor, and at each
// tick every track's next-due event fires before rendering proceeds.
// This generalizes that loop from a fixed MML tick rate to Tstamp beats
// advanced by the per-frame tempo slide, and from one flat track per
// channel to the spec's song/pattern-instance/column tree.
package sequencer

import (
	"github.com/charmbracelet/log"

	"github.com/kunquat/kunquat-sub007/internal/dispatch"
	"github.com/kunquat/kunquat-sub007/internal/module"
	"github.com/kunquat/kunquat-sub007/internal/tstamp"
)

// maxTriggersPerFrame bounds how many triggers the same-instant repeat
// loop (spec §4.1 step 4: "if a trigger fires at this instant, dispatch
// it and repeat") may fire before giving up, guarding against a
// pathological jump/goto cycle that the dispatcher's own goto-safety
// counter didn't catch (e.g. two jumps that alternate without ever
// invoking goto).
const maxTriggersPerFrame = 4096

// Sequencer owns per-column trigger cursors and advances the shared
// dispatch.Master position every render frame.
type Sequencer struct {
	mod  *module.Module
	disp *dispatch.Dispatcher

	audioRate int64

	colCursor  []int // per channel, index into the current pattern's column triggers
	lastEpoch  uint64
	endReached bool
}

// New builds a Sequencer over mod's songs, bound to disp for firing
// triggers and reading/writing the shared Master position.
func New(mod *module.Module, disp *dispatch.Dispatcher, numChannels int, audioRate int64) *Sequencer {
	return &Sequencer{
		mod:       mod,
		disp:      disp,
		audioRate: audioRate,
		colCursor: make([]int, numChannels),
	}
}

// Play starts playback from the beginning of song trackIndex.
func (s *Sequencer) Play(trackIndex int) error {
	if trackIndex < 0 || trackIndex >= len(s.mod.Songs) {
		return errOutOfRange("track", trackIndex, len(s.mod.Songs))
	}
	song := s.mod.Songs[trackIndex]
	if len(song.Instances) == 0 {
		return errOutOfRange("track has no pattern instances", trackIndex, 0)
	}
	s.disp.Master().SetPosition(trackIndex, 0, song.Instances[0].Pattern, tstamp.Zero)
	s.resyncCursors()
	s.endReached = false
	return nil
}

// PlayPattern starts playback from pattern patIndex directly, outside
// any song's track list (core_play_pattern).
func (s *Sequencer) PlayPattern(patIndex int) error {
	if patIndex < 0 || patIndex >= len(s.mod.Patterns) {
		return errOutOfRange("pattern", patIndex, len(s.mod.Patterns))
	}
	s.disp.Master().SetPosition(-1, -1, patIndex, tstamp.Zero)
	s.resyncCursors()
	s.endReached = false
	return nil
}

// Stop marks playback ended; core_end_reached will report true.
func (s *Sequencer) Stop() {
	s.endReached = true
}

// EndReached reports whether the timeline ran out of pattern instances
// (or a goto-safety/stop trigger ended playback).
func (s *Sequencer) EndReached() bool {
	return s.endReached
}

// Position exposes the external position tuple for core_get_position.
func (s *Sequencer) Position() (track, section, patternInstance int, beats tstamp.T) {
	m := s.disp.Master()
	return m.Track, m.Section, m.PatternInstance, m.Beats
}

func (s *Sequencer) currentPattern() *module.Pattern {
	m := s.disp.Master()
	if m.PatternInstance < 0 || m.PatternInstance >= len(s.mod.Patterns) {
		return nil
	}
	return &s.mod.Patterns[m.PatternInstance]
}

// resyncCursors recomputes every column's trigger cursor from scratch
// against the current pattern and position, needed after a jump/goto or
// a pattern-instance change since the old cursor indices belonged to a
// different column slice.
func (s *Sequencer) resyncCursors() {
	pat := s.currentPattern()
	for ch := range s.colCursor {
		if pat == nil || ch >= len(pat.Columns) {
			s.colCursor[ch] = 0
			continue
		}
		triggers := pat.Columns[ch].Triggers
		beats := s.disp.Master().Beats
		i := 0
		for i < len(triggers) && triggers[i].Pos.Less(beats) {
			i++
		}
		s.colCursor[ch] = i
	}
	s.lastEpoch = s.disp.Master().Epoch
}

// Render advances playback by up to frames audio frames, firing every
// trigger due at each frame's position, and returns the number of
// frames actually produced (less than frames once the timeline ends).
func (s *Sequencer) Render(frames int) int {
	m := s.disp.Master()
	m.ResetGotoSteps()

	produced := 0
	for produced < frames {
		if s.endReached || m.StopPending {
			break
		}

		s.dispatchDueTriggers()
		if s.endReached || m.StopPending {
			break
		}

		tempo := m.TempoSlide.Step()
		m.Tempo = tempo
		delta := tstamp.FromFrames(1, tempo, s.audioRate)
		m.Beats = m.Beats.Add(delta)
		produced++

		s.advancePatternIfNeeded()
	}
	return produced
}

// dispatchDueTriggers fires every trigger at or before the current
// position across all columns, in column-index order, and — per §4.1's
// "if a trigger fires at this instant, dispatch it and repeat" — keeps
// doing so if a jump/goto mid-dispatch moved the position, until no
// column has anything left due.
func (s *Sequencer) dispatchDueTriggers() {
	m := s.disp.Master()
	if m.Epoch != s.lastEpoch {
		s.resyncCursors()
	}

	fired := 0
	for {
		any := false
		pat := s.currentPattern()
		if pat == nil {
			return
		}
		for ch := 0; ch < len(s.colCursor); ch++ {
			if ch >= len(pat.Columns) {
				continue
			}
			triggers := pat.Columns[ch].Triggers
			for s.colCursor[ch] < len(triggers) && triggers[s.colCursor[ch]].Pos.LessEq(m.Beats) {
				tr := triggers[s.colCursor[ch]]
				s.colCursor[ch]++
				s.disp.Fire(ch, tr.Name, tr.Arg)
				any = true
				fired++

				if m.Epoch != s.lastEpoch {
					s.resyncCursors()
					pat = s.currentPattern()
					if pat == nil {
						return
					}
				}
				if fired > maxTriggersPerFrame {
					log.Error("sequencer: same-instant trigger loop exceeded safety bound, stopping")
					s.endReached = true
					return
				}
			}
		}
		if !any {
			return
		}
	}
}

// advancePatternIfNeeded moves to the next pattern instance once Beats
// reaches the current pattern's length, carrying the remainder forward;
// running off the end of the current song marks the timeline ended.
func (s *Sequencer) advancePatternIfNeeded() {
	m := s.disp.Master()
	pat := s.currentPattern()
	if pat == nil {
		return
	}
	if m.Beats.Less(pat.Length) {
		return
	}
	remainder := m.Beats.Sub(pat.Length)

	if m.Track < 0 {
		// Playing a bare pattern (core_play_pattern): nothing to
		// advance to, so playback simply ends.
		s.endReached = true
		return
	}

	song := s.mod.Songs[m.Track]
	nextSection := m.Section + 1
	if nextSection >= len(song.Instances) {
		s.endReached = true
		return
	}
	m.SetPosition(m.Track, nextSection, song.Instances[nextSection].Pattern, remainder)
	s.resyncCursors()
}

type rangeError struct {
	what     string
	idx, max int
}

func (e rangeError) Error() string {
	return e.what + " index out of range"
}

func errOutOfRange(what string, idx, max int) error {
	return rangeError{what: what, idx: idx, max: max}
}
