package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the hub's Prometheus collectors.
type Metrics struct {
	ActiveConnections *prometheus.GaugeVec
	EventsPublished   *prometheus.CounterVec
	FramesQueued      prometheus.Counter
	Disconnects       *prometheus.CounterVec
	HeartbeatsQueued  prometheus.Counter
	PublishFanout     prometheus.Histogram
}

// NewMetrics registers the collectors with reg. A nil reg yields unregistered
// collectors, which is what tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eventhub_active_connections",
				Help: "Number of registered streaming connections by transport",
			},
			[]string{"transport"},
		),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventhub_events_published_total",
				Help: "Events published by topic",
			},
			[]string{"topic"},
		),
		FramesQueued: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "eventhub_event_frames_queued_total",
				Help: "Event frames queued for delivery across all connections",
			},
		),
		Disconnects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventhub_disconnects_total",
				Help: "Connections removed from the registry by reason",
			},
			[]string{"reason"},
		),
		HeartbeatsQueued: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "eventhub_heartbeats_queued_total",
				Help: "Keep-alive frames queued",
			},
		),
		PublishFanout: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "eventhub_publish_fanout",
				Help:    "Number of matching connections per published event",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
			},
		),
	}
}
