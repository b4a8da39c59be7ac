// Package metrics exposes Prometheus collectors for the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectedClients tracks the number of live WebSocket connections.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_connected_clients",
		Help: "Number of currently connected WebSocket clients.",
	})

	// EventsTotal counts inbound events by event name.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_events_total",
		Help: "Total inbound events processed, by event name.",
	}, []string{"event"})

	// NotificationsDropped counts notifications whose target user had no
	// connected session. Delivery is at-most-once by design, so a drop is
	// not an error, but it is worth watching.
	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_notifications_dropped_total",
		Help: "Notifications dropped because the target user was not connected.",
	})
)
