package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "orgstatus"

var (
	subscribersConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "subscribers",
			Help:      "Number of currently connected realtime subscribers",
		},
	)

	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "events_published_total",
			Help:      "Total events published by kind and action",
		},
		[]string{"kind", "action"},
	)

	subscribersDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "subscribers_dropped_total",
			Help:      "Subscribers disconnected because their buffer was full",
		},
	)

	webhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "webhook_deliveries_total",
			Help:      "Webhook delivery attempts by outcome",
		},
		[]string{"status"},
	)
)

func recordPublished(kind Kind, action Action) {
	eventsPublished.WithLabelValues(string(kind), string(action)).Inc()
}

func recordWebhookDelivery(status string) {
	webhookDeliveries.WithLabelValues(status).Inc()
}
