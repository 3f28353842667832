// Package graph implements the device graph and signal pipeline:
// per-port stereo work buffers, the mixed pipeline (effect chains) and
// the voice pipeline (per-voice-group processor execution), joined by
// a one-pole DC-blocker and master volume stage.
package graph

import "github.com/kunquat/kunquat-sub007/internal/proc"

// WorkBuffer is a stereo audio buffer bound to one device port, carrying
// the three render-cycle flags the pipeline uses to shortcut work: a
// buffer that hasn't been written this cycle is !Valid; a buffer whose
// tail has settled to a constant is non-decreasing ConstStart; a buffer
// whose last value is steady-state forever is Final.
type WorkBuffer struct {
	L, R       []float32
	Valid      bool
	ConstStart int
	Final      bool
}

// NewWorkBuffer allocates a buffer sized to hold chunkMax frames.
func NewWorkBuffer(chunkMax int) *WorkBuffer {
	return &WorkBuffer{L: make([]float32, chunkMax), R: make([]float32, chunkMax)}
}

// Clear zeroes [0, n) and resets the cycle flags, called once per chunk
// before mixing begins.
func (b *WorkBuffer) Clear(n int) {
	for i := 0; i < n; i++ {
		b.L[i] = 0
		b.R[i] = 0
	}
	b.Valid = false
	b.ConstStart = n
	b.Final = false
}

// AddFrom accumulates src into b over [0, n), the mixed pipeline's
// "receiving port is the sum of all incoming sender buffers" rule.
func (b *WorkBuffer) AddFrom(src *WorkBuffer, n int) {
	for i := 0; i < n; i++ {
		b.L[i] += src.L[i]
		b.R[i] += src.R[i]
	}
	b.Valid = true
}

// Port returns a proc.Port view over the buffer's first n frames, for
// handing to a Processor's RenderVoice.
func (b *WorkBuffer) Port(n int) proc.Port {
	return proc.Port{L: b.L[:n], R: b.R[:n]}
}
