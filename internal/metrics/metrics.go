// Package metrics holds the Prometheus instruments for the dispatcher and the
// suggestion sequencer. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "predtext"

// Effect routes.
const (
	RouteTransport = "transport"
	RouteRequeue   = "requeue"
)

// Metrics is the set of instruments registered for one process.
type Metrics struct {
	// eventsDispatched counts events applied by the dispatcher.
	// Labels: type, kind
	eventsDispatched *prometheus.CounterVec

	// effects counts side effects by route (transport, requeue).
	effects *prometheus.CounterVec

	// reducerErrors counts events whose reduction failed or panicked.
	// Labels: type
	reducerErrors *prometheus.CounterVec

	staleReplies    prometheus.Counter
	cappedRequests  prometheus.Counter
	transportErrors prometheus.Counter
	backlogEvents   prometheus.Counter

	// suggestionLatency is the time between a request and its reply, as
	// seen in logs.
	suggestionLatency prometheus.Histogram

	participants prometheus.Gauge
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		eventsDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "events_total",
			Help:      "Events applied to session state",
		}, []string{"type", "kind"}),
		effects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "effects_total",
			Help:      "Side effects routed by the dispatcher",
		}, []string{"route"}),
		reducerErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "reducer_errors_total",
			Help:      "Events whose reduction returned an error or panicked",
		}, []string{"type"}),
		staleReplies: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sequencer",
			Name:      "stale_replies_total",
			Help:      "Suggestion replies discarded because the context moved on",
		}),
		cappedRequests: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sequencer",
			Name:      "capped_requests_total",
			Help:      "Suggestion requests withheld by the outstanding-request cap",
		}),
		transportErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "errors_total",
			Help:      "Failed transport sends",
		}),
		backlogEvents: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "backlog_events_total",
			Help:      "Events replayed from a reconnect backlog",
		}),
		suggestionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sequencer",
			Name:      "suggestion_latency_seconds",
			Help:      "Time from suggestion request to reply",
			Buckets:   []float64{0.025, 0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1, 2, 5},
		}),
		participants: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "panopticon",
			Name:      "participants",
			Help:      "Participants tracked by the monitor",
		}),
	}
}

// EventDispatched records one applied event.
func (m *Metrics) EventDispatched(typ, kind string) {
	if m == nil {
		return
	}
	m.eventsDispatched.WithLabelValues(typ, kind).Inc()
}

// EffectRouted records one side effect sent along route.
func (m *Metrics) EffectRouted(route string) {
	if m == nil {
		return
	}
	m.effects.WithLabelValues(route).Inc()
}

// ReducerError records a failed reduction.
func (m *Metrics) ReducerError(typ string) {
	if m == nil {
		return
	}
	m.reducerErrors.WithLabelValues(typ).Inc()
}

// TransportError records a failed send.
func (m *Metrics) TransportError() {
	if m == nil {
		return
	}
	m.transportErrors.Inc()
}

// BacklogReplayed records n events replayed from a backlog.
func (m *Metrics) BacklogReplayed(n int) {
	if m == nil {
		return
	}
	m.backlogEvents.Add(float64(n))
}

// SuggestionLatency records a request/reply round trip in milliseconds.
func (m *Metrics) SuggestionLatency(ms int64) {
	if m == nil || ms < 0 {
		return
	}
	m.suggestionLatency.Observe(float64(ms) / 1000)
}

// SetParticipants sets the number of monitored participants.
func (m *Metrics) SetParticipants(n int) {
	if m == nil {
		return
	}
	m.participants.Set(float64(n))
}

// ReplyDiscarded implements trial.Observer.
func (m *Metrics) ReplyDiscarded(string, int, int) {
	if m == nil {
		return
	}
	m.staleReplies.Inc()
}

// RequestCapped implements trial.Observer.
func (m *Metrics) RequestCapped(string, int) {
	if m == nil {
		return
	}
	m.cappedRequests.Inc()
}
