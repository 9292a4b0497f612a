// Package guard implements NodeGuard: admission control in front of the
// shell's `exec`, gating new nodes on a hard node-count limit and on CPU,
// memory, and goroutine pressure.
package guard

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/xinyang-go/tos/internal/logger"
	"github.com/xinyang-go/tos/internal/metrics"
)

// Config is NodeGuard's static policy. Thresholds set to zero disable
// their check.
type Config struct {
	MaxNodes           int
	MaxGoroutines      int
	CPURejectThreshold float64 // percent; exec rejected above this
	MemoryLimitBytes   int64   // 0 = auto-detect from cgroup, else 0 means unlimited if detection also fails
}

// NodeGuard enforces Config against live process state.
type NodeGuard struct {
	cfg Config
	log *logger.Logger

	currentCPU    atomic.Value // float64
	currentMemory atomic.Value // int64
	currentNodes  atomic.Int64

	goroutines chan struct{}
}

// New constructs a NodeGuard. If cfg.MemoryLimitBytes is 0, it is detected
// from the cgroup memory limit at construction time (0 again if none is
// configured, meaning memory is never checked).
func New(cfg Config, log *logger.Logger) *NodeGuard {
	if cfg.MemoryLimitBytes == 0 {
		cfg.MemoryLimitBytes = cgroupMemoryLimit()
	}
	capacity := cfg.MaxGoroutines
	if capacity < 1 {
		capacity = 1
	}
	g := &NodeGuard{cfg: cfg, log: log, goroutines: make(chan struct{}, capacity)}
	g.currentCPU.Store(0.0)
	g.currentMemory.Store(int64(0))
	return g
}

// Admit checks, in order: hard node-count limit, CPU reject threshold,
// memory limit, goroutine limit. Returns ok=false with a human-readable
// reason on the first failing check. A true result does NOT reserve a
// node slot by itself — callers increment via NodeStarted and must call
// NodeStopped on exit.
func (g *NodeGuard) Admit() (ok bool, reason string) {
	current := g.currentNodes.Load()
	if g.cfg.MaxNodes > 0 && current >= int64(g.cfg.MaxNodes) {
		metrics.NodeAdmissionRejectionsTotal.WithLabelValues("max_nodes").Inc()
		return false, fmt.Sprintf("at max nodes (%d)", g.cfg.MaxNodes)
	}

	cpuPct := g.currentCPU.Load().(float64)
	if g.cfg.CPURejectThreshold > 0 && cpuPct > g.cfg.CPURejectThreshold {
		metrics.NodeAdmissionRejectionsTotal.WithLabelValues("cpu").Inc()
		return false, fmt.Sprintf("CPU %.1f%% > %.1f%%", cpuPct, g.cfg.CPURejectThreshold)
	}

	mem := g.currentMemory.Load().(int64)
	if g.cfg.MemoryLimitBytes > 0 && mem > g.cfg.MemoryLimitBytes {
		metrics.NodeAdmissionRejectionsTotal.WithLabelValues("memory").Inc()
		return false, "memory limit exceeded"
	}

	if runtime.NumGoroutine() > g.cfg.MaxGoroutines && g.cfg.MaxGoroutines > 0 {
		metrics.NodeAdmissionRejectionsTotal.WithLabelValues("goroutines").Inc()
		return false, fmt.Sprintf("goroutine limit exceeded (%d > %d)", runtime.NumGoroutine(), g.cfg.MaxGoroutines)
	}

	return true, "OK"
}

// NodeStarted records one more live node, for the MaxNodes check. Call
// after Admit succeeds and the node is actually created.
func (g *NodeGuard) NodeStarted() { g.currentNodes.Add(1) }

// NodeStopped records a node's exit.
func (g *NodeGuard) NodeStopped() { g.currentNodes.Add(-1) }

// AcquireGoroutine attempts to reserve a goroutine slot for work done on
// the guard's behalf (e.g. background metrics scraping), returning false
// if at MaxGoroutines.
func (g *NodeGuard) AcquireGoroutine() bool {
	select {
	case g.goroutines <- struct{}{}:
		return true
	default:
		return false
	}
}

// ReleaseGoroutine releases a slot acquired by AcquireGoroutine.
func (g *NodeGuard) ReleaseGoroutine() { <-g.goroutines }

// UpdateResources samples CPU percent and process memory, for the periodic
// monitor in StartMonitoring.
func (g *NodeGuard) UpdateResources() {
	pct, err := cpu.Percent(100*time.Millisecond, false)
	if err == nil && len(pct) > 0 {
		g.currentCPU.Store(pct[0])
		metrics.CPUPercent.Set(pct[0])
	} else if g.log != nil && err != nil {
		g.log.Warning("guard: cpu sample failed: " + err.Error())
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	g.currentMemory.Store(int64(mem.Alloc))
	metrics.MemoryBytes.Set(float64(mem.Alloc))
}

// StartMonitoring samples resources on interval until ctx is done.
func (g *NodeGuard) StartMonitoring(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.UpdateResources()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stats returns a snapshot for the shell's introspection/debugging use.
func (g *NodeGuard) Stats() map[string]any {
	return map[string]any{
		"max_nodes":            g.cfg.MaxNodes,
		"current_nodes":        g.currentNodes.Load(),
		"cpu_percent":          g.currentCPU.Load().(float64),
		"cpu_reject_threshold": g.cfg.CPURejectThreshold,
		"memory_bytes":         g.currentMemory.Load().(int64),
		"memory_limit_bytes":   g.cfg.MemoryLimitBytes,
		"goroutines_current":   runtime.NumGoroutine(),
		"goroutines_limit":     g.cfg.MaxGoroutines,
	}
}
