package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// StoredTrace is a span context serialised into table columns so work picked up later (the
// outbox relay) continues the trace of the request that produced it.
type StoredTrace struct {
	Traceparent string
	Tracestate  string
}

// CaptureTrace serialises the span context of ctx; it is empty when ctx carries none.
func CaptureTrace(ctx context.Context) StoredTrace {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return StoredTrace{Traceparent: carrier.Get("traceparent"), Tracestate: carrier.Get("tracestate")}
}

func (t StoredTrace) Empty() bool {
	return t.Traceparent == ""
}

// Resume returns ctx with t as its remote parent. An empty or unparseable value leaves ctx
// untouched.
func (t StoredTrace) Resume(ctx context.Context) context.Context {
	if t.Empty() {
		return ctx
	}
	carrier := propagation.MapCarrier{"traceparent": t.Traceparent}
	if t.Tracestate != "" {
		carrier["tracestate"] = t.Tracestate
	}
	out := otel.GetTextMapPropagator().Extract(ctx, carrier)
	if !trace.SpanContextFromContext(out).IsValid() {
		return ctx
	}
	return out
}
