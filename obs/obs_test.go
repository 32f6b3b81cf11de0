package obs

import (
	"context"
	"testing"
	"time"
)

func TestInitAndShutdown(t *testing.T) {
	shutdown, err := Init(context.Background(), Options{
		ServiceName: "callpipe-test",
		Exporter:    ExporterNone,
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if Tracer() == nil {
		t.Fatal("expected tracer")
	}
	if Meter() == nil {
		t.Fatal("expected meter")
	}

	ctx := context.Background()
	RecordCallStarted(ctx)
	RecordCallEnded(ctx, 3*time.Second)
	RecordTurn(ctx)
	RecordBargeIn(ctx)
	RecordSTTRestart(ctx, "age_limit")
	RecordOracleLatency(ctx, 250*time.Millisecond)

	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestRecordersNoopBeforeInit(t *testing.T) {
	// Instruments may be nil when metrics are disabled. Recorders must
	// not panic in that case.
	saved := callCounter
	callCounter = nil
	defer func() { callCounter = saved }()
	RecordCallStarted(context.Background())
}
