package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunquat/kunquat-sub007/internal/tstamp"
)

func TestAsFloatCoercesIntAndBool(t *testing.T) {
	f, err := Int(3).AsFloat()
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	f, err = Bool(true).AsFloat()
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)
}

func TestAsIntRejectsString(t *testing.T) {
	_, err := String("x").AsInt()
	assert.Error(t, err)
}

func TestTstampRoundTrip(t *testing.T) {
	ts := tstamp.New(2, 100)
	v := Tstamp(ts)
	got, err := v.AsTstamp()
	require.NoError(t, err)
	assert.Equal(t, ts, got)
}

func TestStringRendering(t *testing.T) {
	assert.Equal(t, "none", None().String())
	assert.Equal(t, "3", Int(3).String())
	assert.Equal(t, "true", Bool(true).String())
}
