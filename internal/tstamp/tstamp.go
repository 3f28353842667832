// Package tstamp implements Kunquat's fixed-point song-timeline timestamp:
// a whole beat count plus a sub-beat remainder, compared lexicographically.
package tstamp

import "fmt"

// Beat is the number of Rem units in a single beat. Kept large and highly
// composite (matches the original engine's constant) so common musical
// fractions (1/2, 1/3, 1/4, ... 1/16) land on exact integers.
const Beat int64 = 882161280

// T is a beats+remainder timestamp. Rem is always kept in [0, Beat).
type T struct {
	Beats int64
	Rem   int32
}

// New builds a T, normalizing rem into [0, Beat).
func New(beats int64, rem int64) T {
	return normalize(beats, rem)
}

func normalize(beats int64, rem int64) T {
	b := beats + rem/Beat
	r := rem % Beat
	if r < 0 {
		r += Beat
		b--
	}
	return T{Beats: b, Rem: int32(r)}
}

// Zero is the origin timestamp.
var Zero = T{}

// Valid reports whether t.Rem is within its required bounds.
func (t T) Valid() bool {
	return t.Rem >= 0 && int64(t.Rem) < Beat
}

// Cmp returns -1, 0, or 1 as t is less than, equal to, or greater than o,
// comparing beats first and then the sub-beat remainder.
func (t T) Cmp(o T) int {
	switch {
	case t.Beats < o.Beats:
		return -1
	case t.Beats > o.Beats:
		return 1
	case t.Rem < o.Rem:
		return -1
	case t.Rem > o.Rem:
		return 1
	default:
		return 0
	}
}

func (t T) Less(o T) bool    { return t.Cmp(o) < 0 }
func (t T) Equal(o T) bool   { return t.Cmp(o) == 0 }
func (t T) LessEq(o T) bool  { return t.Cmp(o) <= 0 }
func (t T) GreaterEq(o T) bool { return t.Cmp(o) >= 0 }

// Add returns t + o.
func (t T) Add(o T) T {
	return normalize(t.Beats+o.Beats, int64(t.Rem)+int64(o.Rem))
}

// Sub returns t - o.
func (t T) Sub(o T) T {
	return normalize(t.Beats-o.Beats, int64(t.Rem)-int64(o.Rem))
}

// Neg returns -t.
func (t T) Neg() T {
	return normalize(-t.Beats, -int64(t.Rem))
}

// IsNegative reports whether t represents a negative duration.
func (t T) IsNegative() bool {
	return t.Beats < 0
}

// ToFrames converts t to an audio frame count at the given tempo (beats
// per minute) and mix rate (frames per second). tempo <= 0 is treated as
// producing zero frames, matching the engine's defensive clamp at the
// render boundary (§7: a non-positive tempo never advances playback).
func (t T) ToFrames(tempo float64, mixRate int64) int64 {
	if tempo <= 0 || mixRate <= 0 {
		return 0
	}
	beatsF := float64(t.Beats) + float64(t.Rem)/float64(Beat)
	seconds := beatsF * 60.0 / tempo
	return int64(seconds*float64(mixRate) + 0.5)
}

// FromFrames converts a frame count back to a timestamp at the given
// tempo and mix rate. The inverse of ToFrames, used by the sequencer to
// know how far a chunk boundary advanced the timeline.
func FromFrames(frames int64, tempo float64, mixRate int64) T {
	if tempo <= 0 || mixRate <= 0 {
		return Zero
	}
	seconds := float64(frames) / float64(mixRate)
	beatsF := seconds * tempo / 60.0
	beats := int64(beatsF)
	rem := int64((beatsF - float64(beats)) * float64(Beat))
	return normalize(beats, rem)
}

func (t T) String() string {
	return fmt.Sprintf("%d+%d/%d", t.Beats, t.Rem, Beat)
}
