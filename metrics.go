package socketio

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "socketio"

// metrics holds the Prometheus collectors of one Manager.
type metrics struct {
	packetsSent     *prometheus.CounterVec
	packetsReceived *prometheus.CounterVec
	handshakes      *prometheus.CounterVec
	transportErrors prometheus.Counter
	heartbeats      prometheus.Counter
	activeSessions  prometheus.Gauge
	activeEndpoints prometheus.Gauge
}

// newMetrics creates the collectors; a nil registerer leaves them unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		packetsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "packets_sent_total",
			Help:      "Total number of socket.io packets sent, by packet type",
		}, []string{"type"}),

		packetsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "packets_received_total",
			Help:      "Total number of socket.io packets received, by packet type",
		}, []string{"type"}),

		handshakes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "handshakes_total",
			Help:      "Total number of handshakes, by result",
		}, []string{"result"}),

		transportErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transport_errors_total",
			Help:      "Total number of websocket dial, read and write failures",
		}),

		heartbeats: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "heartbeats_sent_total",
			Help:      "Total number of heartbeats sent",
		}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_sessions",
			Help:      "Number of open transport sessions",
		}),

		activeEndpoints: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_endpoints",
			Help:      "Number of connected endpoint clients",
		}),
	}
}
