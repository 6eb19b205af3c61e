// Package telemetry carries the ambient observability surface: structured
// logging and the prometheus metric registry. Neither is part of the
// world-building domain itself, but the Non-goals never exclude ambient
// stack, so this module gets the same logging/metrics rigor the rest of the
// corpus applies to its own domains.
package telemetry

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// NewLogger builds the process-wide zerolog logger: console-pretty in dev,
// plain JSON otherwise, tagged with the service name so multiple worldsimd
// instances' logs interleave cleanly in aggregate.
func NewLogger(pretty bool) zerolog.Logger {
	var writer = os.Stderr
	base := zerolog.New(writer).With().Timestamp().Str("service", "worldsimd").Logger()
	if pretty {
		base = base.Output(zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339})
	}
	return base
}

// Metrics is the full prometheus surface. httpapi records action outcomes,
// throttle rejections and the websocket client count into it; nothing in the
// server sets AgentsOnline, PrimitiveCount, PrimitiveRevision or TickTotal.
// Fields are exported so callers increment/set them directly rather than
// going through wrapper methods for every call site.
type Metrics struct {
	AgentsOnline      prometheus.Gauge
	PrimitiveCount    prometheus.Gauge
	PrimitiveRevision prometheus.Gauge
	TickTotal         prometheus.Counter
	ActionTotal       *prometheus.CounterVec
	ThrottleRejected  *prometheus.CounterVec
	BroadcastClients  prometheus.Gauge
}

// NewMetrics registers every gauge/counter against reg. Call once per
// process; registering twice against the same registry panics, which is
// promauto's way of catching a duplicate-wiring bug at startup instead of
// silently double-counting.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AgentsOnline: factory.NewGauge(prometheus.GaugeOpts{
			Name: "weltgrid_agents_online",
			Help: "Number of agents currently connected.",
		}),
		PrimitiveCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "weltgrid_primitive_count",
			Help: "Number of primitives currently placed in the world.",
		}),
		PrimitiveRevision: factory.NewGauge(prometheus.GaugeOpts{
			Name: "weltgrid_primitive_revision",
			Help: "Monotonic revision counter, bumped on every primitive create/delete.",
		}),
		TickTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "weltgrid_tick_total",
			Help: "Total number of server ticks processed.",
		}),
		ActionTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "weltgrid_action_total",
			Help: "Total actions processed, labeled by action kind and outcome.",
		}, []string{"action", "outcome"}),
		ThrottleRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "weltgrid_throttle_rejections_total",
			Help: "Total actions rejected by the per-agent throttle, labeled by action kind.",
		}, []string{"action"}),
		BroadcastClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "weltgrid_broadcast_clients",
			Help: "Number of websocket clients currently subscribed to the sync fabric.",
		}),
	}
}

// RecordAction is the one-line call httpapi's server makes after every action
// dispatch, so individual handlers never touch the CounterVec labels
// directly.
func (m *Metrics) RecordAction(action, outcome string) {
	m.ActionTotal.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) RecordThrottled(action string) {
	m.ThrottleRejected.WithLabelValues(action).Inc()
}
