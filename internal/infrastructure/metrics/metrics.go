// Package metrics provides Prometheus metrics for the realtime chat server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OnlineUsers tracks the number of users with at least one registered connection.
	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_presence_online_users",
			Help: "Number of users currently online",
		},
	)

	// RegisteredConnections tracks connections present in the presence registry.
	RegisteredConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_presence_registered_connections",
			Help: "Number of realtime connections registered for presence",
		},
	)

	// PresenceBroadcasts counts full presence snapshots fanned out.
	PresenceBroadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_presence_broadcasts_total",
			Help: "Total number of presence snapshot broadcasts",
		},
	)

	// RelayDelivered counts relay events written to a receiver connection.
	RelayDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_relay_delivered_total",
			Help: "Total number of relay events handed to receiver connections",
		},
	)

	// RelayDropped counts relay events that reached no connection.
	RelayDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_relay_dropped_total",
			Help: "Total number of relay events dropped",
		},
		[]string{"reason"},
	)

	// SessionStateTransitions tracks connection session state changes.
	SessionStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_session_state_transitions_total",
			Help: "Total number of connection session state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	// MessagesPersisted counts successful appendMessage calls.
	MessagesPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Total number of messages appended to persistence",
		},
	)
)

// RecordDropped increments the dropped counter for a reason.
func RecordDropped(reason string) {
	RelayDropped.WithLabelValues(reason).Inc()
}

// RecordStateTransition records a session state change.
func RecordStateTransition(fromState, toState string) {
	SessionStateTransitions.WithLabelValues(fromState, toState).Inc()
}
