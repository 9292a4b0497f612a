// Package metrics exposes prometheus counters and gauges for the registry,
// channels, endpoints, and NodeGuard. Collectors are package-level vars
// registered at init, exposed over HTTP via promhttp.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ObjectsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tos_objects_active",
			Help: "Number of live registry entries, by kind.",
		},
		[]string{"kind"},
	)

	ChannelBufferDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tos_channel_buffer_depth",
			Help: "Current element count of a named channel's buffer(s).",
		},
		[]string{"channel"},
	)

	ChannelDropsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tos_channel_drops_total",
			Help: "Elements evicted by overwrite-on-full push, by channel.",
		},
		[]string{"channel"},
	)

	EndpointDropsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tos_endpoint_drops_total",
			Help: "Pending requests evicted (resolved RequestLost) by endpoint name.",
		},
		[]string{"endpoint"},
	)

	NodeAdmissionRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tos_node_admission_rejections_total",
			Help: "exec calls rejected by NodeGuard, by reason.",
		},
		[]string{"reason"},
	)

	CPUPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tos_guard_cpu_percent",
		Help: "Most recent CPU percent sample observed by NodeGuard.",
	})

	MemoryBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tos_guard_memory_bytes",
		Help: "Most recent process memory sample observed by NodeGuard.",
	})
)

func init() {
	prometheus.MustRegister(
		ObjectsActive,
		ChannelBufferDepth,
		ChannelDropsTotal,
		EndpointDropsTotal,
		NodeAdmissionRejectionsTotal,
		CPUPercent,
		MemoryBytes,
	)
}

// Handler returns the promhttp handler for mounting on the metrics
// listener.
func Handler() http.Handler {
	return promhttp.Handler()
}
