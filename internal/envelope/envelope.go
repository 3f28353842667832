// Package envelope implements a piecewise-linear curve defined by an
// ordered list of (x, y) marks, used for volume/filter/pitch envelopes
// and force-to-param mapping curves.
package envelope

import "sort"

// Mark is one node of the envelope curve.
type Mark struct {
	X, Y float64
}

// Envelope is a piecewise-linear function over an ordered set of marks,
// with an optional sustain/release node used by staged amplitude
// envelopes (attack/decay/sustain/release).
type Envelope struct {
	marks       []Mark
	loopStart   int
	loopEnd     int
	looping     bool
	releaseMark int // index of the mark a note-off jumps to; -1 if none
}

// New builds an Envelope from marks, which must already be in
// non-decreasing X order (the caller, typically module data loading,
// is responsible for sorting at construction time).
func New(marks []Mark) *Envelope {
	e := &Envelope{marks: append([]Mark(nil), marks...), releaseMark: -1}
	return e
}

// IsValid reports whether the envelope has at least two marks with
// non-decreasing X coordinates, matching the engine's validity rule for
// a usable envelope.
func (e *Envelope) IsValid() bool {
	if len(e.marks) < 2 {
		return false
	}
	for i := 1; i < len(e.marks); i++ {
		if e.marks[i].X < e.marks[i-1].X {
			return false
		}
	}
	return true
}

// SetLoop marks a [start, end) mark-index range to repeat indefinitely
// once reached, used for sustain loops in amplitude envelopes.
func (e *Envelope) SetLoop(start, end int) {
	if start < 0 || end <= start || end > len(e.marks) {
		e.looping = false
		return
	}
	e.loopStart = start
	e.loopEnd = end
	e.looping = true
}

// SetReleaseMark designates the mark index a note-off should resume
// from, skipping any sustain loop.
func (e *Envelope) SetReleaseMark(idx int) {
	if idx < 0 || idx >= len(e.marks) {
		idx = -1
	}
	e.releaseMark = idx
}

// ValueAt linearly interpolates the envelope's Y value at x, clamping to
// the first/last mark outside the envelope's domain.
func (e *Envelope) ValueAt(x float64) float64 {
	if len(e.marks) == 0 {
		return 0
	}
	if x <= e.marks[0].X {
		return e.marks[0].Y
	}
	last := e.marks[len(e.marks)-1]
	if x >= last.X {
		return last.Y
	}
	i := sort.Search(len(e.marks), func(i int) bool { return e.marks[i].X > x })
	prev, next := e.marks[i-1], e.marks[i]
	if next.X == prev.X {
		return next.Y
	}
	t := (x - prev.X) / (next.X - prev.X)
	return prev.Y + t*(next.Y-prev.Y)
}

// Len returns the number of marks.
func (e *Envelope) Len() int { return len(e.marks) }

// Mark returns the mark at index i.
func (e *Envelope) Mark(i int) Mark { return e.marks[i] }

// Looping reports whether a sustain loop is configured.
func (e *Envelope) Looping() bool { return e.looping }

// LoopRange returns the configured loop's [start, end) mark indices.
func (e *Envelope) LoopRange() (int, int) { return e.loopStart, e.loopEnd }

// ReleaseMark returns the release mark index, or -1 if none is set.
func (e *Envelope) ReleaseMark() int { return e.releaseMark }

// Player walks an Envelope forward in x one step at a time, honoring its
// sustain loop until Release is called, after which it continues from
// the release mark to the end instead of looping.
type Player struct {
	env      *Envelope
	x        float64
	step     float64
	released bool
}

// NewPlayer creates a Player over env, advancing x by step per Step call.
func NewPlayer(env *Envelope, step float64) *Player {
	return &Player{env: env, step: step}
}

// Release stops any sustain loop; if a release mark is set the position
// jumps to it, and subsequent Step calls march toward the envelope's
// last mark.
func (p *Player) Release() {
	p.released = true
	if p.env.releaseMark >= 0 {
		p.x = p.env.marks[p.env.releaseMark].X
	}
}

// Step advances the player by one frame and returns the interpolated
// value at the new position.
func (p *Player) Step() float64 {
	if p.env.looping && !p.released && len(p.env.marks) > 0 {
		loEnd := p.env.marks[p.env.loopEnd-1].X
		loStart := p.env.marks[p.env.loopStart].X
		if p.x >= loEnd && loEnd > loStart {
			p.x = loStart + (p.x - loEnd)
		}
	}
	v := p.env.ValueAt(p.x)
	p.x += p.step
	return v
}

// Done reports whether the player has walked past the envelope's last
// mark (always false while a sustain loop is active and un-released).
func (p *Player) Done() bool {
	if len(p.env.marks) == 0 {
		return true
	}
	if p.env.looping && !p.released {
		return false
	}
	return p.x >= p.env.marks[len(p.env.marks)-1].X
}
