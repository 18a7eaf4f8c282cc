// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package telemetry wraps the OpenTelemetry trace and metric APIs for the
// compilation engine. It uses the global providers: when no SDK is
// installed those are no-ops, so instrumented code behaves identically
// with or without an exporter.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scope = "github.com/meshintel/latexforge"

var (
	tracer = otel.Tracer(scope)
	meter  = otel.Meter(scope)

	mu         sync.Mutex
	counters   = map[string]metric.Int64Counter{}
	histograms = map[string]metric.Float64Histogram{}
)

// StartSpan begins a span with the given name and attributes. Callers
// must end the returned span.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Count adds n to the named counter.
func Count(ctx context.Context, name string, n int64, attrs ...attribute.KeyValue) {
	mu.Lock()
	c, ok := counters[name]
	if !ok {
		c, _ = meter.Int64Counter(name)
		counters[name] = c
	}
	mu.Unlock()
	if c != nil {
		c.Add(ctx, n, metric.WithAttributes(attrs...))
	}
}

// Observe records v on the named histogram.
func Observe(ctx context.Context, name string, v float64, attrs ...attribute.KeyValue) {
	mu.Lock()
	h, ok := histograms[name]
	if !ok {
		h, _ = meter.Float64Histogram(name)
		histograms[name] = h
	}
	mu.Unlock()
	if h != nil {
		h.Record(ctx, v, metric.WithAttributes(attrs...))
	}
}
