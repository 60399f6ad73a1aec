// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// OTelConfig configures the OTLP exporter endpoint for OTelTracer.
type OTelConfig struct {
	// ServiceName identifies this process in exported traces.
	ServiceName string

	// Endpoint is the OTLP/HTTP collector address, e.g. "localhost:4318".
	// Empty disables export; spans are still created and tracked locally
	// but Flush is a no-op.
	Endpoint string

	// Insecure disables TLS on the OTLP connection (local collectors only).
	Insecure bool
}

// OTelTracer exports spans over OTLP/HTTP, translating the arbiter's Span
// type to OpenTelemetry's trace API. RecordMetric is a no-op: this tracer
// exports traces only.
type OTelTracer struct {
	tracerProvider *sdktrace.TracerProvider
	tracer         oteltrace.Tracer

	mu     sync.Mutex
	active map[string]oteltrace.Span // keyed by Span.SpanID
}

// NewTracer builds an OTLP-backed Tracer. If cfg.Endpoint is empty, spans
// are tracked locally (for SpanFromContext linkage) but never exported.
func NewTracer(ctx context.Context, cfg OTelConfig) (*OTelTracer, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "verdikta-arbiter"
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
		)),
	}

	if cfg.Endpoint != "" {
		exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	return &OTelTracer{
		tracerProvider: tp,
		tracer:         tp.Tracer(cfg.ServiceName),
		active:         make(map[string]oteltrace.Span),
	}, nil
}

// StartSpan creates both the arbiter's Span (for callers that inspect
// attributes directly) and an underlying OTel span that carries the same
// identity for export.
func (t *OTelTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	otelCtx, otelSpan := t.tracer.Start(ctx, name)

	span := &Span{
		TraceID:    otelSpan.SpanContext().TraceID().String(),
		SpanID:     otelSpan.SpanContext().SpanID().String(),
		Name:       name,
		StartTime:  time.Now(),
		Attributes: make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(span)
	}
	if parent := SpanFromContext(ctx); parent != nil {
		span.ParentID = parent.SpanID
	}
	for k, v := range span.Attributes {
		otelSpan.SetAttributes(toAttribute(k, v))
	}

	t.mu.Lock()
	t.active[span.SpanID] = otelSpan
	t.mu.Unlock()

	return ContextWithSpan(otelCtx, span), span
}

// EndSpan finalizes both the arbiter span's duration and the underlying
// OTel span, exporting it via the batch processor.
func (t *OTelTracer) EndSpan(span *Span) {
	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)

	t.mu.Lock()
	otelSpan, ok := t.active[span.SpanID]
	delete(t.active, span.SpanID)
	t.mu.Unlock()
	if !ok {
		return
	}

	if span.Status.Code == StatusError {
		otelSpan.RecordError(errFromStatus(span.Status))
	}
	for _, ev := range span.Events {
		attrs := make([]attribute.KeyValue, 0, len(ev.Attributes))
		for k, v := range ev.Attributes {
			attrs = append(attrs, toAttribute(k, v))
		}
		otelSpan.AddEvent(ev.Name, oteltrace.WithAttributes(attrs...))
	}
	otelSpan.End()
}

// RecordMetric is a no-op: this tracer exports traces only.
func (t *OTelTracer) RecordMetric(name string, value float64, labels map[string]string) {}

// RecordEvent attaches a standalone event to the span found in ctx, if any.
func (t *OTelTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	if span := SpanFromContext(ctx); span != nil {
		span.AddEvent(name, attributes)
	}
}

// Flush forces the batch span processor to export everything buffered.
func (t *OTelTracer) Flush(ctx context.Context) error {
	return t.tracerProvider.ForceFlush(ctx)
}

// Shutdown stops the tracer provider, flushing and releasing exporter
// resources. Not part of the Tracer interface; callers invoke it directly
// during process shutdown.
func (t *OTelTracer) Shutdown(ctx context.Context) error {
	return t.tracerProvider.Shutdown(ctx)
}

func toAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

type statusError struct{ msg string }

func (e statusError) Error() string { return e.msg }

func errFromStatus(status Status) error {
	if status.Message == "" {
		return statusError{msg: "span recorded an error"}
	}
	return statusError{msg: status.Message}
}

// Ensure OTelTracer implements Tracer interface.
var _ Tracer = (*OTelTracer)(nil)
