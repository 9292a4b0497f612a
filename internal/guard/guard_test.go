package guard

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xinyang-go/tos/internal/metrics"
)

func TestAdmitRejectsAtMaxNodes(t *testing.T) {
	g := New(Config{MaxNodes: 1}, nil)
	ok, _ := g.Admit()
	assert.True(t, ok)

	before := testutil.ToFloat64(metrics.NodeAdmissionRejectionsTotal.WithLabelValues("max_nodes"))
	g.NodeStarted()
	ok, reason := g.Admit()
	assert.False(t, ok)
	assert.Contains(t, reason, "max nodes")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.NodeAdmissionRejectionsTotal.WithLabelValues("max_nodes")))
}

func TestAdmitRejectsOverCPUThreshold(t *testing.T) {
	g := New(Config{MaxNodes: 100, CPURejectThreshold: 50}, nil)
	g.currentCPU.Store(90.0)

	ok, reason := g.Admit()
	assert.False(t, ok)
	assert.Contains(t, reason, "CPU")
}

func TestNodeStartedStoppedRoundTrip(t *testing.T) {
	g := New(Config{MaxNodes: 1}, nil)
	g.NodeStarted()
	ok, _ := g.Admit()
	require.False(t, ok)

	g.NodeStopped()
	ok, _ = g.Admit()
	assert.True(t, ok)
}

func TestGoroutineLimiter(t *testing.T) {
	g := New(Config{MaxGoroutines: 1}, nil)
	assert.True(t, g.AcquireGoroutine())
	assert.False(t, g.AcquireGoroutine())
	g.ReleaseGoroutine()
	assert.True(t, g.AcquireGoroutine())
}
