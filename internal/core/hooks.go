package core

import (
	"github.com/kunquat/kunquat-sub007/internal/graph"
	"github.com/kunquat/kunquat-sub007/internal/voice"
)

// voiceHooks implements dispatch.VoiceHooks over the shared voice pool
// and device graph. It is the one seam where dispatch's trigger
// handlers reach into voice allocation and processor state without
// either package importing the other (see dispatch.VoiceHooks's doc
// comment on the import-cycle this avoids).
type voiceHooks struct {
	pool *voice.Pool
	g    *graph.Graph
}

func (h *voiceHooks) AllocateVoice(channel, auIndex int, groupID uint64, isExternal bool) int {
	return h.pool.Allocate(channel, auIndex, groupID, isExternal)
}

func (h *voiceHooks) Deactivate(slot int) { h.pool.Deactivate(slot) }

func (h *voiceHooks) Demote(groupID uint64) { h.pool.Demote(groupID) }

func (h *voiceHooks) ActiveGroup(groupID uint64) bool { return h.pool.ActiveGroup(groupID) }

func (h *voiceHooks) NewGroupID() uint64 { return h.pool.NewGroupID() }

func (h *voiceHooks) ClearVoiceHistory(slot int) { h.g.ClearVoiceHistory(slot) }
