package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateFillsFreeSlotsFirst(t *testing.T) {
	p := NewPool(2)
	g1 := p.NewGroupID()
	s1 := p.Allocate(0, 0, g1, true)
	require.GreaterOrEqual(t, s1, 0)
	assert.Equal(t, g1, p.Slot(s1).GroupID)

	g2 := p.NewGroupID()
	s2 := p.Allocate(0, 0, g2, true)
	require.GreaterOrEqual(t, s2, 0)
	assert.NotEqual(t, s1, s2)
}

func TestAllocateStealsLowestPriorityWhenFull(t *testing.T) {
	p := NewPool(1)
	g1 := p.NewGroupID()
	s1 := p.Allocate(0, 0, g1, true)
	p.Slot(s1).Priority = Background

	g2 := p.NewGroupID()
	s2 := p.Allocate(0, 0, g2, true)
	assert.Equal(t, s1, s2)
	assert.Equal(t, g2, p.Slot(s2).GroupID)
}

func TestStealTakesSlotFromOtherGroup(t *testing.T) {
	p := NewPool(2)
	g1 := p.NewGroupID()
	p.Allocate(0, 0, g1, true)
	p.Allocate(0, 0, g1, true) // same group occupies both slots

	g2 := p.NewGroupID()
	s := p.Allocate(0, 0, g2, true)
	assert.NotEqual(t, uint64(0), p.Slot(s).GroupID)
	assert.Equal(t, g2, p.Slot(s).GroupID)
}

func TestStealingInvalidatesWholeGroup(t *testing.T) {
	p := NewPool(3)
	g1 := p.NewGroupID()
	s1 := p.Allocate(0, 0, g1, true)
	s2 := p.Allocate(0, 0, g1, true)
	p.Slot(s1).Priority = Background
	p.Slot(s2).Priority = Background
	p.Allocate(0, 0, p.NewGroupID(), true) // fills the 3rd slot

	g3 := p.NewGroupID()
	stolen := p.Allocate(0, 0, g3, true)
	require.GreaterOrEqual(t, stolen, 0)

	for i := 0; i < p.Len(); i++ {
		if p.Slot(i).GroupID == g1 {
			t.Fatalf("slot %d still belongs to invalidated group g1", i)
		}
	}
}

func TestInternalAllocationNeverSteals(t *testing.T) {
	p := NewPool(1)
	p.Allocate(0, 0, p.NewGroupID(), true)
	got := p.Allocate(0, 0, p.NewGroupID(), false)
	assert.Equal(t, -1, got)
}

func TestGroupIDsAreMonotonicAndNeverZero(t *testing.T) {
	p := NewPool(1)
	var last uint64
	for i := 0; i < 5; i++ {
		id := p.NewGroupID()
		assert.NotEqual(t, uint64(0), id)
		assert.Greater(t, id, last)
		last = id
	}
}

func TestDeactivateClearsSlot(t *testing.T) {
	p := NewPool(1)
	s := p.Allocate(0, 0, p.NewGroupID(), true)
	p.Deactivate(s)
	assert.Equal(t, Inactive, p.Slot(s).Priority)
	assert.Equal(t, uint64(0), p.Slot(s).GroupID)
}
