package logger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLevelGateRequiresBothLocalAndGlobal(t *testing.T) {
	SetGlobalLevel(LevelWarning)
	defer SetGlobalLevel(LevelInfo)

	l := New("test-node", FormatJSON)
	l.SetLocalLevel(LevelInfo)

	assert.True(t, l.enabled(LevelWarning))
	assert.False(t, l.enabled(LevelInfo), "global ceiling is Warning, Info must not pass")
}

func TestLocalLevelBelowGlobalGates(t *testing.T) {
	SetGlobalLevel(LevelInfo)
	l := New("test-node-2", FormatJSON)
	l.SetLocalLevel(LevelError)

	assert.True(t, l.enabled(LevelError))
	assert.False(t, l.enabled(LevelWarning))
}

func TestThrottledAllowsOnceThenBlocksWithinWindow(t *testing.T) {
	SetGlobalLevel(LevelInfo)
	l := New("test-node-3", FormatJSON)

	l.Throttled("tag", LevelInfo, "tick")
	lim := l.throttles["tag"]
	if assert.NotNil(t, lim) {
		assert.False(t, lim.Allow(), "second call within the same second should be throttled")
	}
	time.Sleep(time.Millisecond)
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"none", "error", "warning", "info"} {
		_, ok := ParseLevel(s)
		assert.True(t, ok)
	}
	_, ok := ParseLevel("bogus")
	assert.False(t, ok)
}
