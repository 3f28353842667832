package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunquat/kunquat-sub007/internal/module"
	"github.com/kunquat/kunquat-sub007/internal/tstamp"
	"github.com/kunquat/kunquat-sub007/internal/value"
)

type fakeHooks struct {
	nextGroup  uint64
	allocated  []int
	demoted    []uint64
	cleared    []int
	activeSet  map[uint64]bool
}

func newFakeHooks() *fakeHooks { return &fakeHooks{activeSet: map[uint64]bool{}} }

func (f *fakeHooks) AllocateVoice(channel, auIndex int, groupID uint64, isExternal bool) int {
	f.allocated = append(f.allocated, channel)
	f.activeSet[groupID] = true
	return 0
}
func (f *fakeHooks) Deactivate(slot int)       {}
func (f *fakeHooks) Demote(groupID uint64)     { f.demoted = append(f.demoted, groupID) }
func (f *fakeHooks) ActiveGroup(g uint64) bool { return f.activeSet[g] }
func (f *fakeHooks) NewGroupID() uint64        { f.nextGroup++; return f.nextGroup }
func (f *fakeHooks) ClearVoiceHistory(slot int) { f.cleared = append(f.cleared, slot) }

func testModule() *module.Module {
	return &module.Module{
		AudioUnits: []module.AudioUnit{
			{ControlVars: []module.ControlVarDef{{Name: "brightness", Kind: value.KindFloat}}},
		},
	}
}

func TestMasterTempoSet(t *testing.T) {
	d := New(testModule(), 4, newFakeHooks(), 48000)
	d.Fire(0, "m.tempo", value.Float(140))
	assert.Equal(t, 140.0, d.Master().Tempo)
}

func TestMasterTempoRejectsNonPositive(t *testing.T) {
	d := New(testModule(), 4, newFakeHooks(), 48000)
	d.Fire(0, "m.tempo", value.Float(0))
	assert.Equal(t, 120.0, d.Master().Tempo) // unchanged; invalid value dropped
}

func TestChannelNoteOnThenNoteOffDemotesGroup(t *testing.T) {
	hooks := newFakeHooks()
	d := New(testModule(), 4, hooks, 48000)
	d.Fire(0, "c.note_on", value.Float(0))
	require.NotZero(t, d.Channel(0).ActiveGroup)

	group := d.Channel(0).ActiveGroup
	d.Fire(0, "c.note_off", value.None())
	assert.Equal(t, []uint64{group}, hooks.demoted)
	assert.Zero(t, d.Channel(0).ActiveGroup)
}

func TestUnknownEventIsDroppedNotFatal(t *testing.T) {
	d := New(testModule(), 4, newFakeHooks(), 48000)
	assert.NotPanics(t, func() {
		d.Fire(0, "m.not_a_real_event", value.None())
	})
}

func TestJumpStackBoundedAtMax(t *testing.T) {
	d := New(testModule(), 4, newFakeHooks(), 48000)
	for i := 0; i < maxJumpStack+10; i++ {
		d.Fire(0, "m.jump", value.Tstamp(tstamp.Zero))
	}
	assert.LessOrEqual(t, len(d.master.jumpStack), maxJumpStack)
}

func TestControlVarRejectsUndeclaredName(t *testing.T) {
	d := New(testModule(), 4, newFakeHooks(), 48000)
	d.Fire(0, "cv.unknown_var", value.Float(1))
	_, ok := d.Channel(0).CVState["unknown_var"]
	assert.False(t, ok)
}

func TestControlVarCarryPersistsAcrossReset(t *testing.T) {
	d := New(testModule(), 4, newFakeHooks(), 48000)
	d.Fire(0, "cv.brightness.carry", value.Bool(true))
	d.Fire(0, "cv.brightness", value.Float(0.75))
	d.ResetControlVarsForNoteOn(0)
	v, ok := d.Channel(0).CVState["brightness"]
	require.True(t, ok)
	assert.Equal(t, 0.75, v.Float)
}

func TestControlVarWithoutCarryClearsOnNoteOn(t *testing.T) {
	d := New(testModule(), 4, newFakeHooks(), 48000)
	d.Fire(0, "cv.brightness", value.Float(0.5))
	d.ResetControlVarsForNoteOn(0)
	_, ok := d.Channel(0).CVState["brightness"]
	assert.False(t, ok)
}

func TestEnvNamespaceIsAcceptedAndDropped(t *testing.T) {
	d := New(testModule(), 4, newFakeHooks(), 48000)
	assert.NotPanics(t, func() {
		d.Fire(0, "env.whatever", value.String("x"))
	})
}
