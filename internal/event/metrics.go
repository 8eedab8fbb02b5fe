package event

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type busMetrics struct {
	eventsTotal    *prometheus.CounterVec
	subscribers    *prometheus.GaugeVec
	deliveryErrors *prometheus.CounterVec
}

func newBusMetrics(reg prometheus.Registerer) *busMetrics {
	f := promauto.With(reg)
	return &busMetrics{
		eventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "event_events_total",
			Help: "Events published, by type.",
		}, []string{"type"}),
		subscribers: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "event_subscribers",
			Help: "Current subscribers, by event type and subscriber kind.",
		}, []string{"type", "kind"}),
		deliveryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "event_delivery_errors_total",
			Help: "Failed or dropped deliveries, by event type and subscriber kind.",
		}, []string{"type", "kind"}),
	}
}
