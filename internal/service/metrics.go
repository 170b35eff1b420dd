package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the relay's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	Submissions  *prometheus.CounterVec
	Forwards     *prometheus.CounterVec
	Routing      *prometheus.CounterVec
	Deliveries   *prometheus.CounterVec
	AlbumFlushes *prometheus.CounterVec
	AlbumParts   prometheus.Histogram
}

// NewMetrics creates the collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_submissions_total",
				Help: "Inbound submissions by gate outcome",
			},
			[]string{"status"},
		),
		Forwards: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_forwards_total",
				Help: "Logical units forwarded to staff",
			},
			[]string{"status"},
		),
		Routing: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_routing_total",
				Help: "Staff actions and replies routed through the link store",
			},
			[]string{"kind", "result"},
		),
		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_deliveries_total",
				Help: "Messages delivered to requesters",
			},
			[]string{"kind", "status"},
		),
		AlbumFlushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_album_flushes_total",
				Help: "Multi-part albums flushed, by trigger",
			},
			[]string{"trigger"},
		),
		AlbumParts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "relay_album_parts",
				Help:    "Parts per flushed album",
				Buckets: []float64{1, 2, 3, 5, 8, 10, 20},
			},
		),
	}

	m.Registry.MustRegister(
		m.Submissions,
		m.Forwards,
		m.Routing,
		m.Deliveries,
		m.AlbumFlushes,
		m.AlbumParts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) IncSubmission(status string) {
	if m == nil || m.Submissions == nil {
		return
	}
	m.Submissions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncForward(status string) {
	if m == nil || m.Forwards == nil {
		return
	}
	m.Forwards.WithLabelValues(status).Inc()
}

func (m *Metrics) IncRouting(kind, result string) {
	if m == nil || m.Routing == nil {
		return
	}
	m.Routing.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) IncDelivery(kind, status string) {
	if m == nil || m.Deliveries == nil {
		return
	}
	m.Deliveries.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) ObserveAlbum(trigger string, parts int) {
	if m == nil || m.AlbumFlushes == nil {
		return
	}
	m.AlbumFlushes.WithLabelValues(trigger).Inc()
	if m.AlbumParts != nil {
		m.AlbumParts.Observe(float64(parts))
	}
}
