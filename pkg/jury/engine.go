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
package jury

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/verdikta/arbiter/pkg/llm"
	"github.com/verdikta/arbiter/pkg/observability"
)

// Engine runs a deliberation job to completion: N parallel slots per
// iteration, T iterations, and one justifier call at the end.
type Engine struct {
	registry *Registry
	config   Config
	tracer   observability.Tracer
	logger   *zap.Logger
}

// NewEngine builds an Engine backed by registry, using config's deadlines
// and justifier identity.
func NewEngine(registry *Registry, config Config, tracer observability.Tracer, logger *zap.Logger) *Engine {
	return &Engine{registry: registry, config: config, tracer: tracer, logger: logger}
}

// Deliberate runs job to completion under ctx, which the caller has already
// bound to the overall request deadline (§4.7.6). A context deadline hit
// during deliberation surfaces as ctx.Err(), which callers translate to
// REQUEST_TIMEOUT.
func (e *Engine) Deliberate(ctx context.Context, job Job) (Result, error) {
	ctx, span := e.tracer.StartSpan(ctx, observability.SpanJuryDeliberation)
	defer e.tracer.EndSpan(span)

	k := len(job.Outcomes)
	iterations := job.Iterations
	if iterations < 1 {
		iterations = 1
	}

	var aggregate []int
	var allOutcomes [][]slotOutcome

	for iter := 1; iter <= iterations; iter++ {
		e.tracer.RecordMetric(observability.MetricJuryIterations, 1, nil)

		prompt := job.Prompt
		if iter > 1 {
			prompt = appendPriorOutputs(prompt, allOutcomes[len(allOutcomes)-1])
		}

		outcomes, err := e.runIteration(ctx, iter, prompt, job, k)
		if err != nil {
			return Result{}, err
		}
		allOutcomes = append(allOutcomes, outcomes)

		vector, err := aggregateIteration(outcomes, k, e.config.MinSuccessPercent)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			e.tracer.RecordMetric(observability.MetricJuryQuorumFailures, 1, nil)
			return Result{}, err
		}
		aggregate = vector
	}

	justification := e.synthesizeJustification(ctx, aggregate, job, allOutcomes[len(allOutcomes)-1])

	scores := make([]ScoreEntry, k)
	for i, label := range job.Outcomes {
		scores[i] = ScoreEntry{Outcome: label, Score: aggregate[i]}
	}
	return Result{Scores: scores, Justification: justification}, nil
}

// runIteration fans the jury's slots out in parallel under settle-all
// semantics (§4.7.2): every slot runs to completion or its own timeout,
// regardless of whether peers fail.
func (e *Engine) runIteration(ctx context.Context, iter int, prompt string, job Job, k int) ([]slotOutcome, error) {
	ctx, span := e.tracer.StartSpan(ctx, observability.SpanJuryIteration)
	defer e.tracer.EndSpan(span)

	results := make(chan slotOutcome, len(job.Jury))
	for _, slot := range job.Jury {
		slot := slot
		go func() {
			results <- e.runSlot(ctx, iter, prompt, slot, job.Attachments, k)
		}()
	}

	outcomes := make([]slotOutcome, 0, len(job.Jury))
	for range job.Jury {
		outcomes = append(outcomes, <-results)
	}
	return outcomes, nil
}

// runSlot drives one jury seat: an inner serial count-loop of identical
// calls, component-wise floor-averaged, under a single per-slot deadline.
func (e *Engine) runSlot(ctx context.Context, iter int, prompt string, spec SlotSpec, attachments []llm.Attachment, k int) slotOutcome {
	slotCtx, cancel := context.WithTimeout(ctx, e.config.SlotTimeout)
	defer cancel()

	adapter, err := e.registry.Resolve(spec)
	if err != nil {
		return fallbackOutcome(spec, k, err.Error())
	}
	cb := e.registry.Breaker(spec.Provider)

	count := spec.Count
	if count < 1 {
		count = 1
	}

	sums := make([]int64, k)
	var lastJustification string
	successes := 0

	for i := 0; i < count; i++ {
		raw, err := callWithRetry(slotCtx, DefaultRetryConfig(), cb, e.logger, func() (string, error) {
			if len(attachments) > 0 {
				return adapter.GenerateWithAttachments(slotCtx, prompt, spec.Model, attachments, llm.GenerateOptions{})
			}
			return adapter.Generate(slotCtx, prompt, spec.Model, llm.GenerateOptions{})
		})
		if err != nil {
			if slotCtx.Err() != nil {
				return slotOutcome{spec: spec, status: SlotTimedOut, failed: true, vector: uniformFallback(k),
					failureReason: fmt.Sprintf("slot deadline exceeded: %v", err)}
			}
			return fallbackOutcome(spec, k, err.Error())
		}

		parsed, err := parseModelResponse(raw, k)
		if err != nil {
			return fallbackOutcome(spec, k, err.Error())
		}
		for i, v := range parsed.Score {
			sums[i] += int64(v)
		}
		lastJustification = parsed.Justification
		successes++
	}

	if successes == 0 {
		return fallbackOutcome(spec, k, "no successful calls in slot")
	}

	vector := make([]int, k)
	sum := 0
	for i, s := range sums {
		vector[i] = int(s / int64(successes))
		sum += vector[i]
	}
	vector[0] += 1_000_000 - sum

	return slotOutcome{spec: spec, status: SlotSuccess, vector: vector, justification: lastJustification}
}

func fallbackOutcome(spec SlotSpec, k int, reason string) slotOutcome {
	return slotOutcome{
		spec:          spec,
		status:        SlotFallback,
		failed:        true,
		vector:        uniformFallback(k),
		failureReason: truncate(reason, 500),
		justification: fmt.Sprintf("slot %s:%s failed to produce a parseable verdict: %s", spec.Provider, spec.Model, truncate(reason, 200)),
	}
}

// appendPriorOutputs builds the next iteration's prompt by appending every
// prior slot's provider:model and justification text (score vectors are not
// included), per §4.7.1.
func appendPriorOutputs(basePrompt string, prior []slotOutcome) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nPrior iteration outputs:\n")
	for _, o := range prior {
		fmt.Fprintf(&b, "- %s:%s: %s\n", o.spec.Provider, o.spec.Model, o.justification)
	}
	return b.String()
}

// synthesizeJustification invokes the distinguished justifier once, on the
// final aggregate, falling back to the concatenated per-slot justifications
// if the justifier errors or times out (§4.7.5). It never fails the request.
func (e *Engine) synthesizeJustification(ctx context.Context, aggregate []int, job Job, lastOutcomes []slotOutcome) string {
	ctx, span := e.tracer.StartSpan(ctx, observability.SpanJuryJustify)
	defer e.tracer.EndSpan(span)

	fallback := concatenateJustifications(lastOutcomes)

	if e.config.Justifier.Provider == "" {
		return fallback
	}

	adapter, err := e.registry.Resolve(e.config.Justifier)
	if err != nil {
		e.logger.Warn("justifier adapter unavailable, using concatenated justifications", zap.Error(err))
		return fallback
	}

	justifyCtx, cancel := context.WithTimeout(ctx, e.config.JustifierTimeout)
	defer cancel()

	prompt := buildJustifierPrompt(job.Outcomes, aggregate, lastOutcomes)

	raw, err := adapter.Generate(justifyCtx, prompt, e.config.Justifier.Model, llm.GenerateOptions{})
	if err != nil {
		e.logger.Warn("justifier call failed, using concatenated justifications", zap.Error(err))
		return fallback
	}

	return llm.StripThinking(raw)
}

func concatenateJustifications(outcomes []slotOutcome) string {
	var b strings.Builder
	for i, o := range outcomes {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s:%s — %s", o.spec.Provider, o.spec.Model, o.justification)
	}
	return b.String()
}

func buildJustifierPrompt(outcomes []string, aggregate []int, lastOutcomes []slotOutcome) string {
	var b strings.Builder
	b.WriteString("The jury reached the following weighted verdict:\n")
	for i, label := range outcomes {
		fmt.Fprintf(&b, "- %s: %d\n", label, aggregate[i])
	}
	b.WriteString("\nIndividual juror justifications:\n")
	b.WriteString(concatenateJustifications(lastOutcomes))
	b.WriteString("\n\nWrite a single concise justification for the verdict above.")
	return b.String()
}
