package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunquat/kunquat-sub007/internal/module"
	"github.com/kunquat/kunquat-sub007/internal/tstamp"
	"github.com/kunquat/kunquat-sub007/internal/value"
)

// debugInstrument builds a one-processor instrument AU wired straight to
// the master sink, matching internal/graph's test fixture.
func debugInstrument() module.AudioUnit {
	return module.AudioUnit{
		Kind:       module.AUInstrument,
		Processors: []module.Processor{{Type: module.ProcDebug}},
		InnerConnections: []module.Connection{
			{FromDevice: 0, ToDevice: -1},
		},
	}
}

// oneNoteModule builds a one-song, one-pattern module whose only column
// fires a single note_on at the start and nothing else; length is the
// pattern's length as a tstamp (callers pass whole beats).
func oneNoteModule(length tstamp.T) *module.Module {
	return &module.Module{
		AudioUnits:  []module.AudioUnit{debugInstrument()},
		Connections: []module.Connection{{FromDevice: 0, ToDevice: -1}},
		Patterns: []module.Pattern{{
			Length: length,
			Columns: []module.Column{{
				Triggers: []module.Trigger{
					{Name: "c.note_on", Arg: value.Float(0), Pos: tstamp.Zero},
				},
			}},
		}},
		Songs: []module.Song{{Instances: []module.PatternInstance{{Pattern: 0}}}},
	}
}

func TestNewRejectsInvalidRateOrChunkMax(t *testing.T) {
	mod := oneNoteModule(tstamp.New(4, 0))
	_, err := New(mod, 0, 512)
	require.Error(t, err)
	_, err = New(mod, 48000, 0)
	require.Error(t, err)
}

func TestRenderProducesRequestedFramesAndAdvancesPosition(t *testing.T) {
	mod := oneNoteModule(tstamp.New(4, 0))
	c, err := New(mod, 48000, 256)
	require.NoError(t, err)
	require.NoError(t, c.Play(0))

	produced := c.Render(64)
	assert.Equal(t, 64, produced)

	l := c.OutputBuffer(0)
	r := c.OutputBuffer(1)
	require.Len(t, l, 64)
	require.Len(t, r, 64)
	assert.NotEqual(t, float32(0), l[0])

	_, _, _, beats := c.Position()
	assert.True(t, beats.Cmp(tstamp.Zero) > 0)
}

// TestRenderSpansMultipleChunks exercises the chunkMax-sub-chunking loop
// by requesting more frames than chunkMax in one call.
func TestRenderSpansMultipleChunks(t *testing.T) {
	mod := oneNoteModule(tstamp.New(1_000_000, 0))
	c, err := New(mod, 48000, 64)
	require.NoError(t, err)
	require.NoError(t, c.Play(0))

	produced := c.Render(200)
	assert.Equal(t, 200, produced)
	assert.Len(t, c.OutputBuffer(0), 200)
}

func TestRenderStopsAtEndOfTimeline(t *testing.T) {
	mod := oneNoteModule(tstamp.New(0, tstamp.Beat/100))
	c, err := New(mod, 48000, 256)
	require.NoError(t, err)
	require.NoError(t, c.Play(0))

	// 1/100 beat at 120 BPM is much less than 10000 frames at 48kHz, so
	// the lone pattern instance (with no further song section) ends
	// playback partway through this request.
	produced := c.Render(10000)
	assert.Less(t, produced, 10000)
	assert.True(t, c.EndReached())
}

func TestFireUnknownChannelIsIgnored(t *testing.T) {
	mod := oneNoteModule(tstamp.New(4, 0))
	c, err := New(mod, 48000, 256)
	require.NoError(t, err)
	c.Fire(-1, "c.note_on", value.Float(0)) // out of range, must not panic
	c.Fire(1000, "c.note_on", value.Float(0))
}

func TestCoreFireAllocatesVoiceOutsideTheTimeline(t *testing.T) {
	mod := oneNoteModule(tstamp.New(4, 0))
	c, err := New(mod, 48000, 256)
	require.NoError(t, err)
	require.NoError(t, c.PlayPattern(0))

	c.Fire(0, "c.note_on", value.Float(0))
	produced := c.Render(32)
	require.Equal(t, 32, produced)
	assert.NotEqual(t, float32(0), c.OutputBuffer(0)[0])
}

func TestSetRateRebuildsGraphAtNewRate(t *testing.T) {
	mod := oneNoteModule(tstamp.New(4, 0))
	c, err := New(mod, 48000, 256)
	require.NoError(t, err)
	require.NoError(t, c.SetRate(44100))
	require.NoError(t, c.Play(0))
	produced := c.Render(32)
	assert.Equal(t, 32, produced)
}

func TestSetBufferSizeRebuildsGraphAtNewChunkMax(t *testing.T) {
	mod := oneNoteModule(tstamp.New(4, 0))
	c, err := New(mod, 48000, 256)
	require.NoError(t, err)
	require.NoError(t, c.SetBufferSize(32))
	require.NoError(t, c.Play(0))
	produced := c.Render(64)
	assert.Equal(t, 64, produced)
}
