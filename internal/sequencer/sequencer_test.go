package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunquat/kunquat-sub007/internal/dispatch"
	"github.com/kunquat/kunquat-sub007/internal/module"
	"github.com/kunquat/kunquat-sub007/internal/tstamp"
	"github.com/kunquat/kunquat-sub007/internal/value"
)

type recordingHooks struct{ nextGroup uint64 }

func (h *recordingHooks) AllocateVoice(channel, auIndex int, groupID uint64, isExternal bool) int {
	return 0
}
func (h *recordingHooks) Deactivate(slot int)        {}
func (h *recordingHooks) Demote(groupID uint64)      {}
func (h *recordingHooks) ActiveGroup(g uint64) bool  { return false }
func (h *recordingHooks) NewGroupID() uint64         { h.nextGroup++; return h.nextGroup }
func (h *recordingHooks) ClearVoiceHistory(slot int) {}

func onePatternModule() *module.Module {
	pat := module.Pattern{
		Length: tstamp.New(4, 0),
		Columns: []module.Column{
			{Triggers: []module.Trigger{
				{Name: "c.note_on", Arg: value.Float(0), Pos: tstamp.New(0, 0)},
				{Name: "c.note_off", Arg: value.None(), Pos: tstamp.New(2, 0)},
			}},
		},
	}
	return &module.Module{
		Patterns: []module.Pattern{pat},
		Songs:    []module.Song{{Instances: []module.PatternInstance{{Pattern: 0}}}},
	}
}

func newTestSequencer(mod *module.Module) (*Sequencer, *dispatch.Dispatcher) {
	disp := dispatch.New(mod, 1, &recordingHooks{}, 48000)
	return New(mod, disp, 1, 48000), disp
}

func TestPlayStartsAtOrigin(t *testing.T) {
	seq, disp := newTestSequencer(onePatternModule())
	require.NoError(t, seq.Play(0))
	track, section, patInst, beats := seq.Position()
	assert.Equal(t, 0, track)
	assert.Equal(t, 0, section)
	assert.Equal(t, 0, patInst)
	assert.True(t, beats.Equal(tstamp.Zero))
	_ = disp
}

func TestPlayRejectsOutOfRangeTrack(t *testing.T) {
	seq, _ := newTestSequencer(onePatternModule())
	assert.Error(t, seq.Play(5))
}

func TestRenderFiresNoteOnAtOrigin(t *testing.T) {
	seq, disp := newTestSequencer(onePatternModule())
	require.NoError(t, seq.Play(0))
	seq.Render(1)
	assert.NotZero(t, disp.Channel(0).ActiveGroup)
}

func TestRenderFiresNoteOffAtItsPosition(t *testing.T) {
	seq, disp := newTestSequencer(onePatternModule())
	require.NoError(t, seq.Play(0))

	// Advance well past beat 2 where note_off sits, across many small
	// chunks to also exercise the chunked-rendering path.
	totalFrames := int(tstamp.New(3, 0).ToFrames(120, 48000))
	remaining := totalFrames
	for remaining > 0 {
		n := 64
		if n > remaining {
			n = remaining
		}
		got := seq.Render(n)
		remaining -= got
		if got < n {
			break
		}
	}
	assert.Zero(t, disp.Channel(0).ActiveGroup)
}

func TestEndReachedAfterLastPatternInstance(t *testing.T) {
	seq, _ := newTestSequencer(onePatternModule())
	require.NoError(t, seq.Play(0))

	totalFrames := int(tstamp.New(4, 0).ToFrames(120, 48000)) + 100
	remaining := totalFrames
	for remaining > 0 && !seq.EndReached() {
		got := seq.Render(256)
		remaining -= got
		if got == 0 {
			break
		}
	}
	assert.True(t, seq.EndReached())
}

func TestChunkedRenderMatchesSingleCallFrameCount(t *testing.T) {
	modA := onePatternModule()
	modB := onePatternModule()
	seqA, _ := newTestSequencer(modA)
	seqB, _ := newTestSequencer(modB)
	require.NoError(t, seqA.Play(0))
	require.NoError(t, seqB.Play(0))

	producedA := seqA.Render(1000)

	producedB := 0
	for producedB < 1000 {
		got := seqB.Render(100)
		producedB += got
		if got == 0 {
			break
		}
	}
	assert.Equal(t, producedA, 1000)
	assert.Equal(t, producedB, 1000)
}

func TestPlayPatternBypassesSongTrack(t *testing.T) {
	seq, _ := newTestSequencer(onePatternModule())
	require.NoError(t, seq.PlayPattern(0))
	track, _, patInst, _ := seq.Position()
	assert.Equal(t, -1, track)
	assert.Equal(t, 0, patInst)
}
