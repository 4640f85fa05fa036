package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the gateway's operational counters, exposed at /metrics.
type Metrics struct {
	PeersConnected  prometheus.Gauge
	MessagesRelayed prometheus.Counter
	FramesRelayed   prometheus.Counter
	BytesRelayed    prometheus.Counter
	RelayErrors     prometheus.Counter
}

// NewMetrics registers and returns the gateway's metric set against the
// default prometheus registry.
func NewMetrics() *Metrics {
	return &Metrics{
		PeersConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "distcore",
			Subsystem: "gateway",
			Name:      "peers_connected",
			Help:      "Number of currently connected peer sockets.",
		}),
		MessagesRelayed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "distcore",
			Subsystem: "gateway",
			Name:      "messages_relayed_total",
			Help:      "Number of envelope messages relayed between peers.",
		}),
		FramesRelayed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "distcore",
			Subsystem: "gateway",
			Name:      "frames_relayed_total",
			Help:      "Number of individual wire frames relayed.",
		}),
		BytesRelayed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "distcore",
			Subsystem: "gateway",
			Name:      "bytes_relayed_total",
			Help:      "Total bytes relayed across all frames.",
		}),
		RelayErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "distcore",
			Subsystem: "gateway",
			Name:      "relay_errors_total",
			Help:      "Number of relay write failures.",
		}),
	}
}
