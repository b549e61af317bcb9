package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters for the event pipeline and push channel.
type Metrics struct {
	EventsPublished      *prometheus.CounterVec
	PublishFailures      *prometheus.CounterVec
	EventsConsumed       *prometheus.CounterVec
	ConsumeFailures      *prometheus.CounterVec
	NotificationsCreated *prometheus.CounterVec
	PushesDelivered      prometheus.Counter
	PushesDropped        prometheus.Counter
}

// NewMetrics registers and returns the pipeline metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ping_events_published_total",
			Help: "Events accepted by the event bus, by topic.",
		}, []string{"topic"}),
		PublishFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ping_events_publish_failures_total",
			Help: "Events the bus rejected, by topic.",
		}, []string{"topic"}),
		EventsConsumed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ping_events_consumed_total",
			Help: "Envelopes handed to the fanout engine, by topic.",
		}, []string{"topic"}),
		ConsumeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ping_events_consume_failures_total",
			Help: "Envelopes that failed fanout processing, by topic.",
		}, []string{"topic"}),
		NotificationsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ping_notifications_created_total",
			Help: "Notification records created, by notification type.",
		}, []string{"type"}),
		PushesDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "ping_pushes_delivered_total",
			Help: "Push payloads delivered to at least one live connection.",
		}),
		PushesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "ping_pushes_dropped_total",
			Help: "Push payloads dropped because the recipient was offline.",
		}),
	}
}
