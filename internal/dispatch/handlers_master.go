package dispatch

import (
	"fmt"
	"math"

	"github.com/charmbracelet/log"

	"github.com/kunquat/kunquat-sub007/internal/tstamp"
	"github.com/kunquat/kunquat-sub007/internal/value"
)

func (d *Dispatcher) registerMasterHandlers() {
	d.masterHandlers = map[string]func(*Dispatcher, value.Value) error{
		"tempo":        masterSetTempo,
		"tempo_slide":  masterSlideTempo,
		"volume":              masterSetVolume,
		"volume_slide":        masterSlideVolume,
		"volume_slide_length": masterSetVolumeSlideLength,
		"jump":         masterJump,
		"goto":         masterGoto,
		"stop":         masterStop,
	}
}

func masterSetTempo(d *Dispatcher, arg value.Value) error {
	bpm, err := arg.AsFloat()
	if err != nil {
		return err
	}
	if bpm <= 0 {
		return fmt.Errorf("tempo must be positive, got %g", bpm)
	}
	d.master.Tempo = bpm
	d.master.TempoSlide.SetImmediate(bpm)
	return nil
}

// masterSlideTempo glides tempo toward arg over the slide length already
// configured on TempoSlide (the slider's existing length; no master
// trigger sets a tempo slide length). §8's S3-adjacent
// scenario requires the *position integral* over a slide from 120->240
// BPM over 1 beat to equal the arithmetic-mean BPM's elapsed seconds;
// piecewise-linear-in-BPM sliding (rather than linear-in-period) gives
// exactly that mean, so no special-casing is needed here beyond driving
// the slider every render frame (see sequencer.go's tempo integration).
func masterSlideTempo(d *Dispatcher, arg value.Value) error {
	bpm, err := arg.AsFloat()
	if err != nil {
		return err
	}
	if bpm <= 0 {
		return fmt.Errorf("tempo slide target must be positive, got %g", bpm)
	}
	d.master.TempoSlide.ChangeTarget(bpm)
	return nil
}

func masterSetVolume(d *Dispatcher, arg value.Value) error {
	db, err := arg.AsFloat()
	if err != nil {
		return err
	}
	lin := dbToLin(db)
	d.master.Volume = lin
	d.master.VolumeImmediate = true
	d.master.VolumeDirty = true
	return nil
}

// masterSlideVolume stores a new master volume target that glides over
// the configured volume_slide_length rather than snapping; core applies
// it to the graph's own master-gain slider (see internal/core's
// VolumeDirty-gated push).
func masterSlideVolume(d *Dispatcher, arg value.Value) error {
	db, err := arg.AsFloat()
	if err != nil {
		return err
	}
	d.master.Volume = dbToLin(db)
	d.master.VolumeImmediate = false
	d.master.VolumeDirty = true
	return nil
}

func masterSetVolumeSlideLength(d *Dispatcher, arg value.Value) error {
	length, err := arg.AsTstamp()
	if err != nil {
		return err
	}
	d.master.VolumeSlideLength = length
	return nil
}

func dbToLin(db float64) float64 {
	if db <= -300 {
		return 0
	}
	return math.Pow(10, db/20)
}

// masterJump pushes a jump context onto the bounded active-jumps stack;
// beyond maxJumpStack entries the excess jump is silently ignored
// (§7's "jump stack overflow -> excess jump ignored").
func masterJump(d *Dispatcher, arg value.Value) error {
	pos, err := arg.AsTstamp()
	if err != nil {
		return err
	}
	if len(d.master.jumpStack) >= maxJumpStack {
		log.Warn("dispatch: jump stack full, ignoring jump", "pos", pos)
		return nil
	}
	d.master.jumpStack = append(d.master.jumpStack, jumpContext{
		Pattern: d.master.PatternInstance,
		Row:     d.master.Beats,
	})
	d.master.Beats = pos
	d.master.Epoch++
	return nil
}

// masterGoto resolves a named goto target, counting consecutive
// resolutions this chunk; exceeding maxGotoSteps stops playback
// cleanly rather than looping the render function forever (§7).
func masterGoto(d *Dispatcher, arg value.Value) error {
	pos, err := arg.AsTstamp()
	if err != nil {
		return err
	}
	d.master.gotoSteps++
	if d.master.gotoSteps > maxGotoSteps {
		log.Error("dispatch: goto safety counter exceeded, stopping playback")
		d.master.StopPending = true
		return nil
	}
	d.master.Beats = pos
	d.master.Epoch++
	return nil
}

func masterStop(d *Dispatcher, _ value.Value) error {
	d.master.StopPending = true
	return nil
}

// SetPosition overwrites the master cursor wholesale, used by
// core_play/core_play_pattern rather than by a trigger.
func (m *Master) SetPosition(track, section, patternInstance int, beats tstamp.T) {
	m.Track, m.Section, m.PatternInstance, m.Beats = track, section, patternInstance, beats
	m.Epoch++
}
