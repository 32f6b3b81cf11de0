package obs

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce       sync.Once
	callCounter       metric.Int64Counter
	callDurationHist  metric.Float64Histogram
	turnCounter       metric.Int64Counter
	bargeInCounter    metric.Int64Counter
	sttRestartCounter metric.Int64Counter
	oracleLatencyHist metric.Float64Histogram
)

func installMetrics(meter metric.Meter) {
	metricsOnce.Do(func() {
		callCounter, _ = meter.Int64Counter(
			"callpipe.calls",
			metric.WithDescription("Calls handled, by direction"),
		)
		callDurationHist, _ = meter.Float64Histogram(
			"callpipe.call.duration",
			metric.WithDescription("Call duration in seconds"),
			metric.WithUnit("s"),
		)
		turnCounter, _ = meter.Int64Counter(
			"callpipe.turns",
			metric.WithDescription("Assistant turns dispatched"),
		)
		bargeInCounter, _ = meter.Int64Counter(
			"callpipe.barge_ins",
			metric.WithDescription("Times the caller interrupted playback"),
		)
		sttRestartCounter, _ = meter.Int64Counter(
			"callpipe.stt.restarts",
			metric.WithDescription("Recognition stream restarts"),
		)
		oracleLatencyHist, _ = meter.Float64Histogram(
			"callpipe.oracle.latency",
			metric.WithDescription("Response generation latency in seconds"),
			metric.WithUnit("s"),
		)
	})
}

// RecordCallStarted counts an accepted call.
func RecordCallStarted(ctx context.Context) {
	if callCounter == nil {
		return
	}
	callCounter.Add(ctx, 1)
}

// RecordCallEnded records the finished call's duration.
func RecordCallEnded(ctx context.Context, duration time.Duration) {
	if callDurationHist == nil {
		return
	}
	callDurationHist.Record(ctx, duration.Seconds())
}

// RecordTurn counts a dispatched assistant turn.
func RecordTurn(ctx context.Context) {
	if turnCounter == nil {
		return
	}
	turnCounter.Add(ctx, 1)
}

// RecordBargeIn counts an interruption of assistant playback.
func RecordBargeIn(ctx context.Context) {
	if bargeInCounter == nil {
		return
	}
	bargeInCounter.Add(ctx, 1)
}

// RecordSTTRestart counts a recognition stream restart.
func RecordSTTRestart(ctx context.Context, reason string) {
	if sttRestartCounter == nil {
		return
	}
	sttRestartCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordOracleLatency records how long response generation took.
func RecordOracleLatency(ctx context.Context, d time.Duration) {
	if oracleLatencyHist == nil {
		return
	}
	oracleLatencyHist.Record(ctx, d.Seconds())
}
