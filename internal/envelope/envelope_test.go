package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestValueAtInterpolatesLinearly(t *testing.T) {
	e := New([]Mark{{0, 0}, {1, 10}, {2, 0}})
	assert.Equal(t, 0.0, e.ValueAt(0))
	assert.InDelta(t, 5.0, e.ValueAt(0.5), 1e-9)
	assert.Equal(t, 10.0, e.ValueAt(1))
	assert.InDelta(t, 5.0, e.ValueAt(1.5), 1e-9)
}

func TestValueAtClampsOutsideDomain(t *testing.T) {
	e := New([]Mark{{0, 1}, {1, 2}})
	assert.Equal(t, 1.0, e.ValueAt(-5))
	assert.Equal(t, 2.0, e.ValueAt(5))
}

func TestIsValidRequiresTwoNonDecreasingMarks(t *testing.T) {
	assert.False(t, New(nil).IsValid())
	assert.False(t, New([]Mark{{0, 0}}).IsValid())
	assert.True(t, New([]Mark{{0, 0}, {1, 1}}).IsValid())
	assert.False(t, New([]Mark{{1, 0}, {0, 1}}).IsValid())
}

func TestPlayerLoopsUntilReleased(t *testing.T) {
	e := New([]Mark{{0, 0}, {1, 1}, {2, 2}, {3, 0}})
	e.SetLoop(1, 3)
	p := NewPlayer(e, 0.5)
	for i := 0; i < 20; i++ {
		p.Step()
		assert.False(t, p.Done())
	}
	p.Release()
	for !p.Done() {
		p.Step()
	}
}

func TestValueAtBoundsProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(2, 6).Draw(rt, "n")
		marks := make([]Mark, n)
		minY, maxY := 0.0, 0.0
		for i := 0; i < n; i++ {
			y := rapid.Float64Range(-100, 100).Draw(rt, "y")
			marks[i] = Mark{X: float64(i), Y: y}
			if i == 0 || y < minY {
				minY = y
			}
			if i == 0 || y > maxY {
				maxY = y
			}
		}
		e := New(marks)
		x := rapid.Float64Range(-2, float64(n)+2).Draw(rt, "x")
		v := e.ValueAt(x)
		if v < minY-1e-6 || v > maxY+1e-6 {
			rt.Fatalf("value %v outside mark range [%v,%v]", v, minY, maxY)
		}
	})
}
