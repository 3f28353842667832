package core

import (
	"github.com/kunquat/kunquat-sub007/internal/dispatch"
	"github.com/kunquat/kunquat-sub007/internal/graph"
	"github.com/kunquat/kunquat-sub007/internal/tstamp"
	"github.com/kunquat/kunquat-sub007/internal/voice"
)

// Render implements core_render: it advances playback by frames audio
// frames and returns how many were actually produced (less than
// requested once the timeline ends). Work proceeds in chunkMax-sized
// sub-chunks because the device graph's WorkBuffers are fixed-capacity
// at chunkMax (§4.4); a caller asking for more than chunkMax frames in
// one call transparently gets several render passes stitched together.
func (c *Core) Render(frames int) int {
	if frames <= 0 {
		return 0
	}
	if len(c.outL) < frames {
		c.outL = make([]float32, frames)
		c.outR = make([]float32, frames)
	}

	produced := 0
	for produced < frames {
		want := frames - produced
		if want > c.chunkMax {
			want = c.chunkMax
		}
		got := c.renderChunk(want, c.outL[produced:produced+want], c.outR[produced:produced+want])
		produced += got
		if got < want {
			break // timeline ended mid-chunk
		}
	}
	if produced < frames {
		c.outL = c.outL[:produced]
		c.outR = c.outR[:produced]
	} else {
		c.outL = c.outL[:frames]
		c.outR = c.outR[:frames]
	}
	return produced
}

// renderChunk advances the timeline by up to n frames, pushes the
// resulting channel/AU state into every active voice, renders the
// device graph, and retires voices past their keep-alive window.
func (c *Core) renderChunk(n int, dstL, dstR []float32) int {
	advanced := c.seq.Render(n)
	if advanced == 0 {
		return 0
	}

	for auIdx := range c.mod.AudioUnits {
		c.graph.SetAUBypass(auIdx, c.disp.AUBypassed(auIdx))
	}

	if m := c.disp.Master(); m.VolumeDirty {
		length := m.VolumeSlideLength
		if m.VolumeImmediate {
			length = tstamp.Zero
		}
		c.graph.SetMasterVolume(m.Volume, length)
		m.VolumeDirty = false
	}

	active := c.buildActiveVoices(advanced)

	out, err := c.graph.Render(advanced, active, c.disp.Master().Tempo, c.moduleSeed)
	if err != nil {
		return 0
	}
	copy(dstL, out.L[:advanced])
	copy(dstR, out.R[:advanced])

	c.retireSilentVoices(active, advanced)
	c.pool.SettleNew()
	c.frameCounter += int64(advanced)

	return advanced
}

// buildActiveVoices collects every occupied pool slot into the graph's
// ActiveVoice list and, for channels whose control state changed this
// chunk, pushes that state into each of the channel's voices before
// they render (§4.5's per-voice DSP state is driven from the owning
// channel's pitch/force/filter/vibrato/tremolo/arpeggio fields).
func (c *Core) buildActiveVoices(advanced int) []graph.ActiveVoice {
	slots := c.pool.Slots()
	active := make([]graph.ActiveVoice, 0, len(slots))
	touchedChannels := make(map[int]bool)

	for i := range slots {
		v := &slots[i]
		if v.Priority == voice.Inactive {
			continue
		}
		noteOff := v.Priority == voice.Background
		active = append(active, graph.ActiveVoice{
			Slot:       i,
			ChannelNum: v.ChannelNum,
			AUIndex:    v.AUIndex,
			GroupID:    v.GroupID,
			NoteOff:    noteOff,
		})

		ch := c.disp.Channel(v.ChannelNum)
		if !ch.ControlsDirty {
			continue
		}
		vc := c.buildVoiceControl(ch, noteOff)
		c.graph.ApplyVoiceControl(i, v.AUIndex, vc)
		touchedChannels[v.ChannelNum] = true
	}

	for ch := range touchedChannels {
		c.disp.Channel(ch).ControlsDirty = false
	}

	return active
}

// buildVoiceControl translates one channel's dispatch-level state into
// the graph's per-processor control surface. An "immediate" pitch/force
// change (note_on, c.pitch, c.force) pushes with a zero-length slide so
// the processor's own slider snaps instead of gliding; a "slide" change
// (c.pitch_slide, c.force_slide) carries the channel's configured slide
// length.
func (c *Core) buildVoiceControl(ch *dispatch.Channel, noteOff bool) graph.VoiceControl {
	pitchLen := ch.PitchSlideLength
	if ch.PitchImmediate {
		pitchLen = tstamp.Zero
	}
	forceLen := ch.ForceSlideLength
	if ch.ForceImmediate {
		forceLen = tstamp.Zero
	}

	return graph.VoiceControl{
		AudioRate: c.audioRate,
		Tempo:     c.disp.Master().Tempo,

		PitchTarget:      ch.Pitch,
		PitchSlideLength: pitchLen,
		PitchCarry:       0,
		VibratoOn:        ch.Vibrato != nil && ch.Vibrato.Active(),
		VibratoSpeed:     vibratoSpeed(ch),
		VibratoDepth:     vibratoDepth(ch),
		ArpeggioOn:       ch.ArpeggioOn,
		ArpeggioTones:    ch.ArpeggioTones[:ch.ArpeggioN],
		ArpeggioSpeed:    ch.ArpeggioSpeed,

		ForceTarget:      ch.Force,
		ForceSlideLength: forceLen,
		TremoloOn:        ch.Tremolo != nil && ch.Tremolo.Active(),
		TremoloSpeed:     tremoloSpeed(ch),
		TremoloDepth:     tremoloDepth(ch),
		Release:          noteOff,

		FilterCutoff: ch.FilterCutoff,
		FilterQ:      ch.FilterQ,
	}
}

func vibratoSpeed(ch *dispatch.Channel) float64 {
	if ch.Vibrato == nil {
		return 0
	}
	return ch.Vibrato.TargetSpeed()
}

func vibratoDepth(ch *dispatch.Channel) float64 {
	if ch.Vibrato == nil {
		return 0
	}
	return ch.Vibrato.TargetDepth()
}

func tremoloSpeed(ch *dispatch.Channel) float64 {
	if ch.Tremolo == nil {
		return 0
	}
	return ch.Tremolo.TargetSpeed()
}

func tremoloDepth(ch *dispatch.Channel) float64 {
	if ch.Tremolo == nil {
		return 0
	}
	return ch.Tremolo.TargetDepth()
}

// retireSilentVoices implements §4.5.6's keep-alive window: a
// Background-priority (post note-off) voice whose AU-connected
// processors have produced no audible output keeps rendering for
// keepAliveSpan more frames (effect tails, release envelopes finishing
// their approach to silence) before the pool reclaims its slot.
func (c *Core) retireSilentVoices(active []graph.ActiveVoice, advanced int) {
	seen := make(map[int]bool, len(active))
	for _, av := range active {
		seen[av.Slot] = true
		if !av.NoteOff {
			delete(c.silentSince, av.Slot)
			continue
		}
		if !c.graph.VoiceSilent(av.Slot) {
			delete(c.silentSince, av.Slot)
			continue
		}
		since, ok := c.silentSince[av.Slot]
		if !ok {
			c.silentSince[av.Slot] = c.frameCounter
			continue
		}
		if c.frameCounter+int64(advanced)-since >= c.keepAliveSpan {
			c.pool.Deactivate(av.Slot)
			delete(c.silentSince, av.Slot)
		}
	}
	for slot := range c.silentSince {
		if !seen[slot] {
			delete(c.silentSince, slot)
		}
	}
}
