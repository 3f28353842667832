package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunquat/kunquat-sub007/internal/module"
	"github.com/kunquat/kunquat-sub007/internal/proc"
	"github.com/kunquat/kunquat-sub007/internal/voice"
)

// oneDebugAU builds a minimal instrument AU: a single debug processor
// wired straight to the AU's output.
func oneDebugAU() module.AudioUnit {
	return module.AudioUnit{
		Kind:       module.AUInstrument,
		Processors: []module.Processor{{Type: module.ProcDebug}},
		InnerConnections: []module.Connection{
			{FromDevice: 0, FromPort: 0, ToDevice: -1, ToPort: 0},
		},
	}
}

func TestNewGraphRejectsCyclicInnerConnections(t *testing.T) {
	au := module.AudioUnit{
		Processors: []module.Processor{{Type: module.ProcDebug}, {Type: module.ProcDebug}},
		InnerConnections: []module.Connection{
			{FromDevice: 0, ToDevice: 1},
			{FromDevice: 1, ToDevice: 0},
		},
	}
	mod := &module.Module{AudioUnits: []module.AudioUnit{au}}
	_, err := NewGraph(mod, proc.RegisterBuiltins(), voice.NewPool(4), 48000, 512)
	require.Error(t, err)
}

func TestNewGraphRejectsCyclicMasterConnections(t *testing.T) {
	mod := &module.Module{
		AudioUnits: []module.AudioUnit{oneDebugAU(), oneDebugAU()},
		Connections: []module.Connection{
			{FromDevice: 0, ToDevice: 1},
			{FromDevice: 1, ToDevice: 0},
		},
	}
	_, err := NewGraph(mod, proc.RegisterBuiltins(), voice.NewPool(4), 48000, 512)
	require.Error(t, err)
}

func TestRenderSumsSingleVoiceDebugOutputToMaster(t *testing.T) {
	mod := &module.Module{
		AudioUnits: []module.AudioUnit{oneDebugAU()},
		Connections: []module.Connection{
			{FromDevice: 0, ToDevice: masterSink},
		},
	}
	pool := voice.NewPool(4)
	g, err := NewGraph(mod, proc.RegisterBuiltins(), pool, 48000, 512)
	require.NoError(t, err)

	slot := pool.Allocate(0, 0, pool.NewGroupID(), true)
	active := []ActiveVoice{{Slot: slot, ChannelNum: 0, AUIndex: 0, GroupID: pool.Slot(slot).GroupID}}

	out, err := g.Render(8, active, 120, 1)
	require.NoError(t, err)
	assert.True(t, out.Valid)
	// debug processor's first frame is a full-scale impulse; the DC
	// blocker's first output sample equals its input exactly (zero prior
	// state), and master volume starts at unity.
	assert.InDelta(t, 1.0, float64(out.L[0]), 1e-6)
}

func TestRenderWithNoActiveVoicesIsSilent(t *testing.T) {
	mod := &module.Module{
		AudioUnits:  []module.AudioUnit{oneDebugAU()},
		Connections: []module.Connection{{FromDevice: 0, ToDevice: masterSink}},
	}
	pool := voice.NewPool(4)
	g, err := NewGraph(mod, proc.RegisterBuiltins(), pool, 48000, 512)
	require.NoError(t, err)

	out, err := g.Render(8, nil, 120, 1)
	require.NoError(t, err)
	for _, v := range out.L {
		assert.Equal(t, float32(0), v)
	}
}

func TestTopoSortProcessorsOrdersDependentsAfterSources(t *testing.T) {
	au := module.AudioUnit{
		Processors: []module.Processor{{Type: module.ProcPitch}, {Type: module.ProcSample}},
		InnerConnections: []module.Connection{
			{FromDevice: 0, ToDevice: 1, ToPort: 1},
			{FromDevice: 1, ToDevice: -1},
		},
	}
	order, err := topoSortProcessors(au)
	require.NoError(t, err)
	require.Len(t, order, 2)
	assert.Equal(t, 0, order[0])
	assert.Equal(t, 1, order[1])
}
