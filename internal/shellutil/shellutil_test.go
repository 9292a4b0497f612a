package shellutil

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchLiteral(t *testing.T) {
	assert.True(t, Match("worker-0", "worker-0"))
	assert.False(t, Match("worker-0", "worker-1"))
}

func TestMatchStar(t *testing.T) {
	assert.True(t, Match("worker-*", "worker-0"))
	assert.True(t, Match("worker-*", "worker-"))
	assert.True(t, Match("*", ""))
	assert.False(t, Match("worker-*", "other-0"))
}

func TestMatchQuestionMark(t *testing.T) {
	assert.True(t, Match("worker-?", "worker-0"))
	assert.False(t, Match("worker-?", "worker-00"))
}

func TestMatchConsecutiveStarsMerge(t *testing.T) {
	assert.True(t, Match("worker-**", "worker-anything"))
}

func TestMatchAnchoredBothEnds(t *testing.T) {
	assert.False(t, Match("worker", "worker-0"))
	assert.False(t, Match("worker-0", "worker"))
}

func TestGlobStopScenario(t *testing.T) {
	names := []string{"worker-0", "worker-1", "other-0"}
	var matched []string
	for _, n := range names {
		if Match("worker-*", n) {
			matched = append(matched, n)
		}
	}
	assert.ElementsMatch(t, []string{"worker-0", "worker-1"}, matched)
}

func TestRenderTableProducesAlignedOutput(t *testing.T) {
	var buf bytes.Buffer
	RenderTable(&buf, []string{"KIND", "NAME", "REFCOUNT"}, [][]string{
		{"MESSAGE", "timeval", "2"},
	})
	out := buf.String()
	assert.Contains(t, out, "KIND")
	assert.Contains(t, out, "timeval")
}
