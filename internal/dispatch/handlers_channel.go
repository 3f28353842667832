package dispatch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kunquat/kunquat-sub007/internal/value"
)

func (d *Dispatcher) registerChannelHandlers() {
	d.channelHandlers = map[string]func(*Dispatcher, int, value.Value) error{
		"note_on":       channelNoteOn,
		"hit":           channelHit,
		"note_off":      channelNoteOff,
		"set_au":        channelSetAU,
		"pitch":              channelSetPitch,
		"pitch_slide":        channelSlidePitch,
		"pitch_slide_length": channelSetPitchSlideLength,
		"carry":              channelSetCarry,
		"force":              channelSetForce,
		"force_slide":        channelSlideForce,
		"force_slide_length": channelSetForceSlideLength,
		"filter_cutoff": channelSetFilterCutoff,
		"filter_q":      channelSetFilterQ,
		"vibrato_speed": channelVibratoSpeed,
		"vibrato_depth": channelVibratoDepth,
		"vibrato_off":   channelVibratoOff,
		"tremolo_speed": channelTremoloSpeed,
		"tremolo_depth": channelTremoloDepth,
		"tremolo_off":   channelTremoloOff,
		"arpeggio_on":    channelArpeggioOn,
		"arpeggio_off":   channelArpeggioOff,
		"arpeggio_tones": channelArpeggioTones,
		"test_output":   channelTestOutput,
	}
}

// channelNoteOn clears the channel's non-carried control variables and
// reserves a new voice group for the channel's current AU. The carry flag
// only affects pitch: when set, the note's cents are added to the
// channel's current pitch instead of replacing it. Force and filter keep
// their channel values whether or not the flag is set.
func channelNoteOn(d *Dispatcher, ch int, arg value.Value) error {
	cents, err := arg.AsFloat()
	if err != nil {
		return err
	}
	c := d.channels[ch]
	d.ResetControlVarsForNoteOn(ch)
	groupID := d.hooks.NewGroupID()
	slot := d.hooks.AllocateVoice(ch, c.AUIndex, groupID, true)
	if slot < 0 {
		return nil
	}
	d.hooks.ClearVoiceHistory(slot)
	if !c.CarryNoteExpression {
		c.Pitch = cents
	} else {
		c.Pitch += cents
	}
	c.PitchImmediate = true
	c.ActiveGroup = groupID
	c.ControlsDirty = true
	return nil
}

// channelHit reserves a new voice group like note_on. The integer argument
// is validated but otherwise unused: it does not select a sample and the
// AU's per-hit processor filter is not applied, so every processor of the
// AU renders for a hit.
func channelHit(d *Dispatcher, ch int, arg value.Value) error {
	idx, err := arg.AsInt()
	if err != nil {
		return err
	}
	c := d.channels[ch]
	groupID := d.hooks.NewGroupID()
	slot := d.hooks.AllocateVoice(ch, c.AUIndex, groupID, true)
	if slot < 0 {
		return nil
	}
	d.hooks.ClearVoiceHistory(slot)
	c.ActiveGroup = groupID
	c.ControlsDirty = true
	_ = idx // the hit index is not passed on to any processor
	return nil
}

// channelNoteOff demotes the channel's currently-held foreground group
// to background; each voice starts its own note-off envelope.
func channelNoteOff(d *Dispatcher, ch int, _ value.Value) error {
	c := d.channels[ch]
	if c.ActiveGroup == 0 {
		return nil
	}
	d.hooks.Demote(c.ActiveGroup)
	c.ActiveGroup = 0
	return nil
}

func channelSetAU(d *Dispatcher, ch int, arg value.Value) error {
	i, err := arg.AsInt()
	if err != nil {
		return err
	}
	if int(i) < 0 || int(i) >= len(d.mod.AudioUnits) {
		return fmt.Errorf("audio unit index %d out of range", i)
	}
	d.channels[ch].AUIndex = int(i)
	return nil
}

func channelSetPitch(d *Dispatcher, ch int, arg value.Value) error {
	cents, err := arg.AsFloat()
	if err != nil {
		return err
	}
	c := d.channels[ch]
	c.Pitch = cents
	c.PitchImmediate = true
	c.ControlsDirty = true
	return nil
}

// channelSlidePitch stores a new pitch target that glides over the
// channel's configured pitch_slide_length rather than snapping; the
// actual glide is driven by each active voice's pitch processor slider
// (core pushes this target via graph.ApplyVoiceControl on the next chunk,
// since the trigger sets ControlsDirty).
func channelSlidePitch(d *Dispatcher, ch int, arg value.Value) error {
	cents, err := arg.AsFloat()
	if err != nil {
		return err
	}
	c := d.channels[ch]
	c.Pitch = cents
	c.PitchImmediate = false
	c.ControlsDirty = true
	return nil
}

func channelSetPitchSlideLength(d *Dispatcher, ch int, arg value.Value) error {
	length, err := arg.AsTstamp()
	if err != nil {
		return err
	}
	d.channels[ch].PitchSlideLength = length
	return nil
}

func channelSlideForce(d *Dispatcher, ch int, arg value.Value) error {
	db, err := arg.AsFloat()
	if err != nil {
		return err
	}
	c := d.channels[ch]
	c.Force = db
	c.ForceImmediate = false
	c.ControlsDirty = true
	return nil
}

func channelSetForceSlideLength(d *Dispatcher, ch int, arg value.Value) error {
	length, err := arg.AsTstamp()
	if err != nil {
		return err
	}
	d.channels[ch].ForceSlideLength = length
	return nil
}

func channelSetCarry(d *Dispatcher, ch int, arg value.Value) error {
	on, err := arg.AsBool()
	if err != nil {
		return err
	}
	d.channels[ch].CarryNoteExpression = on
	return nil
}

func channelSetForce(d *Dispatcher, ch int, arg value.Value) error {
	db, err := arg.AsFloat()
	if err != nil {
		return err
	}
	c := d.channels[ch]
	c.Force = db
	c.ForceImmediate = true
	c.ControlsDirty = true
	return nil
}

func channelSetFilterCutoff(d *Dispatcher, ch int, arg value.Value) error {
	hz, err := arg.AsFloat()
	if err != nil {
		return err
	}
	c := d.channels[ch]
	c.FilterCutoff = hz
	c.ControlsDirty = true
	return nil
}

func channelSetFilterQ(d *Dispatcher, ch int, arg value.Value) error {
	q, err := arg.AsFloat()
	if err != nil {
		return err
	}
	c := d.channels[ch]
	c.FilterQ = q
	c.ControlsDirty = true
	return nil
}

func channelVibratoSpeed(d *Dispatcher, ch int, arg value.Value) error {
	hz, err := arg.AsFloat()
	if err != nil {
		return err
	}
	c := d.channels[ch]
	if c.Vibrato != nil {
		c.Vibrato.SetSpeed(hz)
	}
	c.ControlsDirty = true
	return nil
}

func channelVibratoDepth(d *Dispatcher, ch int, arg value.Value) error {
	cents, err := arg.AsFloat()
	if err != nil {
		return err
	}
	c := d.channels[ch]
	if c.Vibrato != nil {
		c.Vibrato.SetDepth(cents)
		c.Vibrato.TurnOn()
	}
	c.ControlsDirty = true
	return nil
}

func channelVibratoOff(d *Dispatcher, ch int, _ value.Value) error {
	c := d.channels[ch]
	if c.Vibrato != nil {
		c.Vibrato.TurnOff()
	}
	c.ControlsDirty = true
	return nil
}

func channelTremoloSpeed(d *Dispatcher, ch int, arg value.Value) error {
	hz, err := arg.AsFloat()
	if err != nil {
		return err
	}
	c := d.channels[ch]
	if c.Tremolo != nil {
		c.Tremolo.SetSpeed(hz)
	}
	c.ControlsDirty = true
	return nil
}

func channelTremoloDepth(d *Dispatcher, ch int, arg value.Value) error {
	db, err := arg.AsFloat()
	if err != nil {
		return err
	}
	c := d.channels[ch]
	if c.Tremolo != nil {
		c.Tremolo.SetDepth(db)
		c.Tremolo.TurnOn()
	}
	c.ControlsDirty = true
	return nil
}

func channelTremoloOff(d *Dispatcher, ch int, _ value.Value) error {
	c := d.channels[ch]
	if c.Tremolo != nil {
		c.Tremolo.TurnOff()
	}
	c.ControlsDirty = true
	return nil
}

// channelArpeggioOn turns the arpeggio on with the float argument as its
// speed; the tones themselves are loaded by arpeggio_tones.
func channelArpeggioOn(d *Dispatcher, ch int, arg value.Value) error {
	speed, err := arg.AsFloat()
	if err != nil {
		return err
	}
	c := d.channels[ch]
	c.ArpeggioOn = true
	c.ArpeggioSpeed = speed
	c.ControlsDirty = true
	return nil
}

func channelArpeggioOff(d *Dispatcher, ch int, _ value.Value) error {
	c := d.channels[ch]
	c.ArpeggioOn = false
	c.ControlsDirty = true
	return nil
}

// channelArpeggioTones loads up to 64 cents-offset tones from a
// comma-separated string argument (§4.5.1's tones array); an empty
// string clears it back to unison.
func channelArpeggioTones(d *Dispatcher, ch int, arg value.Value) error {
	s, err := arg.AsString()
	if err != nil {
		return err
	}
	c := d.channels[ch]
	c.ArpeggioN = 0
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		cents, perr := strconv.ParseFloat(field, 64)
		if perr != nil {
			return fmt.Errorf("arpeggio_tones: %w", perr)
		}
		if c.ArpeggioN >= len(c.ArpeggioTones) {
			break
		}
		c.ArpeggioTones[c.ArpeggioN] = cents
		c.ArpeggioN++
	}
	c.ControlsDirty = true
	return nil
}

func channelTestOutput(d *Dispatcher, ch int, arg value.Value) error {
	v := arg
	d.channels[ch].TestOutput = &v
	return nil
}
