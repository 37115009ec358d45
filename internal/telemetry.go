package internal

import (
	"context"
	"sync"
)

// Telemetry hooks for import and generation runs. The default emitter is a
// no-op; wiring code may register a metrics backend or a test stub.

type telemetryEmitter func(ctx context.Context, name string, labels map[string]string, value any)

var (
	teleMu   sync.Mutex
	teleImpl telemetryEmitter = func(ctx context.Context, name string, labels map[string]string, value any) {}
)

// RegisterTelemetryEmitter replaces the active emitter. nil restores the no-op.
func RegisterTelemetryEmitter(fn telemetryEmitter) {
	teleMu.Lock()
	defer teleMu.Unlock()
	if fn == nil {
		teleImpl = func(ctx context.Context, name string, labels map[string]string, value any) {}
		return
	}
	teleImpl = fn
}

func emitter() telemetryEmitter {
	teleMu.Lock()
	defer teleMu.Unlock()
	return teleImpl
}

// EmitLatency records the duration of a stage in milliseconds.
// name: "lowcoder_stage_latency_ms" with label {"stage": "<import|expand|export|generate>"}
func EmitLatency(ctx context.Context, stage string, ms int64) {
	emitter()(ctx, "lowcoder_stage_latency_ms", map[string]string{"stage": stage}, ms)
}

// EmitCount records a counter such as the number of imported tables.
// name: "lowcoder_count" with label {"kind": "<kind>"}
func EmitCount(ctx context.Context, kind string, n int64) {
	emitter()(ctx, "lowcoder_count", map[string]string{"kind": kind}, n)
}
