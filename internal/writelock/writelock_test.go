package writelock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLock_ZeroValueUnlocked(t *testing.T) {
	var l Lock
	assert.False(t, l.Held())
	assert.Equal(t, time.Duration(0), l.Duration())
}

func TestLock_SetAndClear(t *testing.T) {
	var l Lock

	l.Set()
	assert.True(t, l.Held())
	assert.GreaterOrEqual(t, l.Duration(), time.Duration(0))

	l.Clear()
	assert.False(t, l.Held())
	assert.Equal(t, time.Duration(0), l.Duration())
}

func TestLock_DoubleSetKeepsOriginalStart(t *testing.T) {
	var l Lock

	l.Set()
	time.Sleep(10 * time.Millisecond)
	first := l.Duration()

	l.Set()
	assert.GreaterOrEqual(t, l.Duration(), first)
}
