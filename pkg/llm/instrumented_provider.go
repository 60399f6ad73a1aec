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
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/verdikta/arbiter/pkg/observability"
)

// InstrumentedAdapter wraps any Adapter with observability instrumentation,
// recording a span and a set of latency/error metrics around every call.
// The wrapper is transparent and can wrap any Adapter implementation.
type InstrumentedAdapter struct {
	adapter Adapter
	tracer  observability.Tracer
}

// NewInstrumentedAdapter creates a new instrumented adapter.
func NewInstrumentedAdapter(adapter Adapter, tracer observability.Tracer) *InstrumentedAdapter {
	return &InstrumentedAdapter{adapter: adapter, tracer: tracer}
}

// Name returns the underlying adapter's provider name.
func (a *InstrumentedAdapter) Name() string { return a.adapter.Name() }

// Capabilities returns the underlying adapter's capability row.
func (a *InstrumentedAdapter) Capabilities(model string) Capabilities {
	return a.adapter.Capabilities(model)
}

// Generate calls the underlying adapter with tracing and metrics.
func (a *InstrumentedAdapter) Generate(ctx context.Context, prompt, model string, opts GenerateOptions) (string, error) {
	return a.instrument(ctx, model, func() (string, error) {
		return a.adapter.Generate(ctx, prompt, model, opts)
	})
}

// GenerateWithAttachments calls the underlying adapter with tracing and metrics.
func (a *InstrumentedAdapter) GenerateWithAttachments(ctx context.Context, prompt, model string, attachments []Attachment, opts GenerateOptions) (string, error) {
	return a.instrument(ctx, model, func() (string, error) {
		return a.adapter.GenerateWithAttachments(ctx, prompt, model, attachments, opts)
	})
}

func (a *InstrumentedAdapter) instrument(ctx context.Context, model string, call func() (string, error)) (string, error) {
	_, span := a.tracer.StartSpan(ctx, observability.SpanLLMCompletion)
	defer a.tracer.EndSpan(span)

	start := time.Now()
	span.SetAttribute(observability.AttrLLMProvider, a.adapter.Name())
	span.SetAttribute(observability.AttrLLMModel, model)

	text, err := call()
	duration := time.Since(start)
	span.SetAttribute("llm.duration_ms", duration.Milliseconds())

	labels := map[string]string{
		observability.AttrLLMProvider: a.adapter.Name(),
		observability.AttrLLMModel:    model,
	}

	if err != nil {
		span.Status = observability.Status{Code: observability.StatusError, Message: err.Error()}
		span.SetAttribute(observability.AttrErrorType, fmt.Sprintf("%T", err))
		span.SetAttribute(observability.AttrErrorMessage, err.Error())
		a.tracer.RecordMetric(observability.MetricLLMErrors, 1, labels)
		return "", err
	}

	span.Status = observability.Status{Code: observability.StatusOK}
	span.SetAttribute("llm.response.length", len(text))
	a.tracer.RecordMetric(observability.MetricLLMCalls, 1, labels)
	a.tracer.RecordMetric(observability.MetricLLMLatency, float64(duration.Milliseconds()), labels)

	return text, nil
}

var _ Adapter = (*InstrumentedAdapter)(nil)
