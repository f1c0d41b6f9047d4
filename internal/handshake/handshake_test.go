package handshake

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStartsAtTick(t *testing.T) {
	h := New()
	assert.True(t, h.IsTick())
	assert.False(t, h.IsTok())
	assert.False(t, h.IsClosed())
}

func TestTickTokRoundTrip(t *testing.T) {
	h := New()
	assert.True(t, h.Tick())
	assert.True(t, h.IsTok())
	// A second tick attempt while already in tok must fail.
	assert.False(t, h.Tick())

	assert.True(t, h.Tok())
	assert.True(t, h.IsTick())
}

func TestCloseOnlyFromTick(t *testing.T) {
	h := New()
	h.Tick()
	assert.False(t, h.Close(), "close must not succeed from the tok state")

	h.Tok()
	assert.True(t, h.Close())
	assert.True(t, h.IsClosed())
	assert.False(t, h.Tick())
	assert.False(t, h.Tok())
}
