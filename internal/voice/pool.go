// Package voice implements the fixed-size voice pool and its
// steal-lowest-priority allocator.
package voice

import (
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Priority ranks a voice's eligibility for being stolen; lower values
// are stolen first.
type Priority int

const (
	Inactive Priority = iota
	Background
	Foreground
	New
)

// Voice is one slot in the pool.
type Voice struct {
	GroupID    uint64
	ChannelNum int
	AUIndex    int
	Priority   Priority

	// age orders same-priority voices for stealing (oldest first) and
	// for tie-breaking; it is the pool's allocation sequence number,
	// not a frame count.
	age uint64

	// VState is an opaque per-processor-type voice state arena; the
	// graph package owns its concrete layout and casts through this
	// slot.
	VState any
}

// Pool owns a fixed number of voice slots and the monotonic group-id
// counter used to identify note-on/hit groups.
type Pool struct {
	slots    []Voice
	nextID   atomic.Uint64
	allocSeq uint64
}

// NewPool creates a pool with the given fixed slot count. Slot count is
// chosen at core_init time and never changes afterward.
func NewPool(slots int) *Pool {
	p := &Pool{slots: make([]Voice, slots)}
	p.nextID.Store(1) // 0 is reserved as the null group
	return p
}

// NewGroupID draws the next monotonic group id. This is the pool's only
// atomic operation, safe to call concurrently from parallel voice-group
// rendering (see SPEC_FULL.md's concurrency notes).
func (p *Pool) NewGroupID() uint64 {
	return p.nextID.Add(1) - 1
}

// Slots exposes the underlying slot slice for iteration by the graph
// executor; callers must not resize it.
func (p *Pool) Slots() []Voice { return p.slots }

// Slot returns a pointer to slot i for in-place mutation.
func (p *Pool) Slot(i int) *Voice { return &p.slots[i] }

// Len returns the number of slots in the pool.
func (p *Pool) Len() int { return len(p.slots) }

// Allocate reserves one voice slot for (channelNum, groupID, auIndex).
// If every slot is occupied, the lowest-priority slot of another group
// is stolen (see stealVictim). Allocate returns -1 when isExternal is
// false (internal re-acquisition must not steal another group) or when
// no slot outside groupID can be stolen.
func (p *Pool) Allocate(channelNum, auIndex int, groupID uint64, isExternal bool) int {
	for i := range p.slots {
		if p.slots[i].Priority == Inactive {
			p.reserve(i, channelNum, auIndex, groupID)
			return i
		}
	}
	if !isExternal {
		log.Warn("voice pool: internal allocation found no free slot and may not steal")
		return -1
	}
	victim := p.stealVictim(groupID)
	if victim < 0 {
		log.Warn("voice pool: no victim found to steal; pool exhausted")
		return -1
	}
	p.invalidateGroup(p.slots[victim].GroupID, victim)
	log.Debug("voice pool: stole voice", "slot", victim, "newGroup", groupID)
	p.reserve(victim, channelNum, auIndex, groupID)
	return victim
}

func (p *Pool) reserve(i, channelNum, auIndex int, groupID uint64) {
	p.allocSeq++
	p.slots[i] = Voice{
		GroupID:    groupID,
		ChannelNum: channelNum,
		AUIndex:    auIndex,
		Priority:   New,
		age:        p.allocSeq,
	}
}

// stealVictim finds the lowest-priority, oldest slot not belonging to
// excludeGroup (a new note-on must never steal from its own group).
func (p *Pool) stealVictim(excludeGroup uint64) int {
	best := -1
	for i := range p.slots {
		v := &p.slots[i]
		if v.GroupID == excludeGroup {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		bv := &p.slots[best]
		if v.Priority < bv.Priority || (v.Priority == bv.Priority && v.age < bv.age) {
			best = i
		}
	}
	return best
}

// invalidateGroup resets every other slot sharing groupID with the
// stolen slot so a partially-stolen group never produces output,
// matching §4.3's same-cycle group invalidation rule.
func (p *Pool) invalidateGroup(groupID uint64, stolenSlot int) {
	if groupID == 0 {
		return
	}
	for i := range p.slots {
		if i == stolenSlot {
			continue
		}
		if p.slots[i].GroupID == groupID {
			p.slots[i] = Voice{}
		}
	}
}

// Deactivate marks a slot inactive, e.g. after its keep-alive window
// elapses (§4.5.6).
func (p *Pool) Deactivate(i int) {
	p.slots[i] = Voice{}
}

// Demote lowers every voice in a group from Foreground to Background,
// e.g. on note_off.
func (p *Pool) Demote(groupID uint64) {
	for i := range p.slots {
		if p.slots[i].GroupID == groupID && p.slots[i].Priority == Foreground {
			p.slots[i].Priority = Background
		}
	}
}

// SettleNew demotes every New-priority voice to Foreground once a chunk
// boundary has passed, so the priority order for the *next* allocation
// reflects "held note" rather than "just allocated this instant".
func (p *Pool) SettleNew() {
	for i := range p.slots {
		if p.slots[i].Priority == New {
			p.slots[i].Priority = Foreground
		}
	}
}

// ActiveGroup reports whether any slot still belongs to groupID.
func (p *Pool) ActiveGroup(groupID uint64) bool {
	if groupID == 0 {
		return false
	}
	for i := range p.slots {
		if p.slots[i].GroupID == groupID {
			return true
		}
	}
	return false
}
