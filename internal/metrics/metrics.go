package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the cache namespaces.
type Metrics struct {
	Registry *prometheus.Registry

	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	sets      *prometheus.CounterVec
	disposals *prometheus.CounterVec
	entries   *prometheus.GaugeVec

	broadcastFailures *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ttlcache",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits",
		}, []string{"namespace"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ttlcache",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses",
		}, []string{"namespace"}),
		sets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ttlcache",
			Subsystem: "cache",
			Name:      "sets_total",
			Help:      "Total number of cache set operations",
		}, []string{"namespace"}),
		disposals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ttlcache",
			Subsystem: "cache",
			Name:      "disposals_total",
			Help:      "Total number of removed entries by reason",
		}, []string{"namespace", "reason"}),
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ttlcache",
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Current number of entries in the namespace",
		}, []string{"namespace"}),
		broadcastFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ttlcache",
			Subsystem: "ws",
			Name:      "send_failures_total",
			Help:      "Total number of disposal events that could not be sent to a subscriber",
		}, []string{"namespace"}),
	}

	for _, c := range []prometheus.Collector{m.hits, m.misses, m.sets, m.disposals, m.entries, m.broadcastFailures} {
		if err := m.Registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordGet counts a lookup as a hit or a miss.
func (m *Metrics) RecordGet(namespace string, hit bool) {
	if hit {
		m.hits.WithLabelValues(namespace).Inc()
		return
	}
	m.misses.WithLabelValues(namespace).Inc()
}

// RecordSet counts a set operation.
func (m *Metrics) RecordSet(namespace string) {
	m.sets.WithLabelValues(namespace).Inc()
}

// RecordDisposal counts a removed entry.
func (m *Metrics) RecordDisposal(namespace, reason string) {
	m.disposals.WithLabelValues(namespace, reason).Inc()
}

// UpdateEntries sets the entry gauge of a namespace.
func (m *Metrics) UpdateEntries(namespace string, n int) {
	m.entries.WithLabelValues(namespace).Set(float64(n))
}

// RecordBroadcastFailures counts disposal events a subscriber did not receive.
func (m *Metrics) RecordBroadcastFailures(namespace string, n int) {
	m.broadcastFailures.WithLabelValues(namespace).Add(float64(n))
}
