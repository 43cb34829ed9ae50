package protocol

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus metrics.
type Metrics struct {
	MessagesProduced prometheus.Counter
	MessagesDropped  prometheus.Counter
	MessagesConsumed prometheus.Counter
	PeersDiscovered  prometheus.Gauge
}

// NewMetrics creates metrics under the given namespace, registered on the
// default registry. Call at most once per process; engines constructed
// without explicit metrics use an unregistered set.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		MessagesProduced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Discovery messages enqueued for the bus.",
		}),
		MessagesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Discovery messages dropped because the outbound queue was full.",
		}),
		MessagesConsumed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Discovery messages drained from the inbound queue.",
		}),
		PeersDiscovered: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peers_discovered",
			Help:      "Current number of distinct discovered peers.",
		}),
	}
}

// newNopMetrics returns a metrics set that is never registered, so tests
// can construct any number of engines without registration conflicts.
func newNopMetrics() *Metrics {
	return &Metrics{
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{Name: "nop_messages_produced_total"}),
		MessagesDropped:  prometheus.NewCounter(prometheus.CounterOpts{Name: "nop_messages_dropped_total"}),
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{Name: "nop_messages_consumed_total"}),
		PeersDiscovered:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "nop_peers_discovered"}),
	}
}
