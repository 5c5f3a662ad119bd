package kafkax

import (
	"context"
	"net"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestInjectTraceHeadersKeepsEventMeta(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	meta := EventMeta{EventID: "evt-1", EventType: "clinic.session.recorded.v1"}
	headers := InjectTraceHeaders(ctx, meta.Headers())

	if HeaderValue(headers, HeaderEventID) != "evt-1" || HeaderValue(headers, HeaderEventType) != meta.EventType {
		t.Fatalf("event meta headers lost: %+v", headers)
	}
	want := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	if got := HeaderValue(headers, "traceparent"); got != want {
		t.Fatalf("expected traceparent %q, got %q", want, got)
	}

	// A second injection overwrites rather than duplicates.
	headers = InjectTraceHeaders(ctx, headers)
	n := 0
	for _, h := range headers {
		if h.Key == "traceparent" {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("expected one traceparent header, got %d", n)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092,")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", got)
	}
	if SplitBrokers("") != nil {
		t.Fatalf("expected no brokers for an empty value")
	}
}

func TestPing(t *testing.T) {
	if err := Ping(context.Background(), nil); err == nil {
		t.Fatalf("expected an error without brokers")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	err = Ping(context.Background(), []string{addr})
	if err == nil || !strings.Contains(err.Error(), addr) {
		t.Fatalf("expected dial error naming %s, got %v", addr, err)
	}
}
