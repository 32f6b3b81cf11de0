package gateway

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cadencevoice/callpipe/obs"
)

// CallMetrics implements live.Metrics on a Prometheus registry.
type CallMetrics struct {
	activeCalls  prometheus.Gauge
	callsTotal   prometheus.Counter
	callDuration prometheus.Histogram
	turnsTotal   prometheus.Counter
	bargeIns     prometheus.Counter
}

// NewCallMetrics registers the call instruments on reg.
func NewCallMetrics(reg prometheus.Registerer) *CallMetrics {
	m := &CallMetrics{
		activeCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "callpipe_active_calls",
			Help: "Media streams currently connected.",
		}),
		callsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callpipe_calls_total",
			Help: "Media streams accepted since start.",
		}),
		callDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "callpipe_call_duration_seconds",
			Help:    "Duration of completed calls.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		turnsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callpipe_turns_total",
			Help: "Assistant turns dispatched.",
		}),
		bargeIns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callpipe_barge_ins_total",
			Help: "Times a caller interrupted assistant playback.",
		}),
	}
	reg.MustRegister(m.activeCalls, m.callsTotal, m.callDuration, m.turnsTotal, m.bargeIns)
	return m
}

// CallStarted implements live.Metrics.
func (m *CallMetrics) CallStarted() {
	m.activeCalls.Inc()
	m.callsTotal.Inc()
	obs.RecordCallStarted(context.Background())
}

// CallEnded implements live.Metrics.
func (m *CallMetrics) CallEnded(duration time.Duration) {
	m.activeCalls.Dec()
	m.callDuration.Observe(duration.Seconds())
	obs.RecordCallEnded(context.Background(), duration)
}

// TurnDispatched implements live.Metrics.
func (m *CallMetrics) TurnDispatched() {
	m.turnsTotal.Inc()
	obs.RecordTurn(context.Background())
}

// BargeIn implements live.Metrics.
func (m *CallMetrics) BargeIn() {
	m.bargeIns.Inc()
	obs.RecordBargeIn(context.Background())
}
