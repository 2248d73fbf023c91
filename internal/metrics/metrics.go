// Package metrics exposes Prometheus collectors for the lobby and the
// handler that serves them at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Lobby groups the collectors updated by the room directory, relay and
// transports. A nil *Lobby is valid and records nothing, so tests can build
// lobby components without a registry.
type Lobby struct {
	rooms          prometheus.Gauge
	sessions       prometheus.Gauge
	roomsCreated   prometheus.Counter
	roomsRemoved   *prometheus.CounterVec
	commands       *prometheus.CounterVec
	relayed        prometheus.Counter
	sendFailures   *prometheus.CounterVec
	pingRoundTrips prometheus.Histogram
}

// New creates the lobby collectors and registers them with reg.
func New(reg prometheus.Registerer) *Lobby {
	m := &Lobby{
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lobby",
			Name:      "rooms",
			Help:      "Rooms currently held by the directory.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lobby",
			Name:      "sessions",
			Help:      "Connected client sessions across all transports.",
		}),
		roomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lobby",
			Name:      "rooms_created_total",
			Help:      "Rooms created by clients.",
		}),
		roomsRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lobby",
			Name:      "rooms_removed_total",
			Help:      "Rooms removed, by reason (closed, idle, empty).",
		}, []string{"reason"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lobby",
			Name:      "commands_total",
			Help:      "Inbound lines handled, by command.",
		}, []string{"command"}),
		relayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lobby",
			Name:      "messages_relayed_total",
			Help:      "Messages queued for delivery to room members.",
		}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lobby",
			Name:      "send_failures_total",
			Help:      "Messages not queued for a session, by reason (closed, queue_full).",
		}, []string{"reason"}),
		pingRoundTrips: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lobby",
			Name:      "ping_round_trip_seconds",
			Help:      "Client measured go_ping_me/PONG round trips.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}

	reg.MustRegister(
		m.rooms,
		m.sessions,
		m.roomsCreated,
		m.roomsRemoved,
		m.commands,
		m.relayed,
		m.sendFailures,
		m.pingRoundTrips,
	)
	return m
}

// Handler exposes the metrics gathered by g at /metrics.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RoomCreated counts a new room and raises the open room gauge.
func (m *Lobby) RoomCreated() {
	if m == nil {
		return
	}
	m.roomsCreated.Inc()
	m.rooms.Inc()
}

// RoomRemoved counts a room leaving the directory for reason and lowers
// the open room gauge.
func (m *Lobby) RoomRemoved(reason string) {
	if m == nil {
		return
	}
	m.roomsRemoved.WithLabelValues(reason).Inc()
	m.rooms.Dec()
}

// SessionOpened raises the connected session gauge.
func (m *Lobby) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// SessionClosed lowers the connected session gauge.
func (m *Lobby) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

// Command counts one inbound line by command name.
func (m *Lobby) Command(name string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(name).Inc()
}

// Relayed counts n messages queued for delivery.
func (m *Lobby) Relayed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.relayed.Add(float64(n))
}

// SendFailed counts a message that could not be queued, by reason.
func (m *Lobby) SendFailed(reason string) {
	if m == nil {
		return
	}
	m.sendFailures.WithLabelValues(reason).Inc()
}

// PingObserved records a ping round trip in seconds.
func (m *Lobby) PingObserved(seconds float64) {
	if m == nil {
		return
	}
	m.pingRoundTrips.Observe(seconds)
}
