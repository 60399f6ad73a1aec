// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package jury

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/verdikta/arbiter/pkg/llm"
	"github.com/verdikta/arbiter/pkg/observability"
)

// scriptedAdapter returns one canned JSON response per call, cycling through
// responses (repeating the last one if exhausted), or a fixed error.
type scriptedAdapter struct {
	mu        sync.Mutex
	calls     int
	responses []string
	err       error
}

func (a *scriptedAdapter) Name() string { return "scripted" }

func (a *scriptedAdapter) Capabilities(string) llm.Capabilities { return llm.Capabilities{} }

func (a *scriptedAdapter) Generate(_ context.Context, _, _ string, _ llm.GenerateOptions) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	idx := a.calls
	if idx >= len(a.responses) {
		idx = len(a.responses) - 1
	}
	a.calls++
	return a.responses[idx], nil
}

func (a *scriptedAdapter) GenerateWithAttachments(ctx context.Context, prompt, model string, _ []llm.Attachment, opts llm.GenerateOptions) (string, error) {
	return a.Generate(ctx, prompt, model, opts)
}

func newEngine(lookup AdapterLookup, cfg Config) *Engine {
	return NewEngine(NewRegistry(lookup), cfg, observability.NewNoOpTracer(), zap.NewNop())
}

func scoreResponse(a, b int) string {
	return fmt.Sprintf(`{"score": [%d, %d], "justification": "slot verdict"}`, a, b)
}

func TestEngine_Deliberate_WeightedFanOut(t *testing.T) {
	adapterA := &scriptedAdapter{responses: []string{scoreResponse(1_000_000, 0)}}
	adapterB := &scriptedAdapter{responses: []string{scoreResponse(0, 1_000_000)}}
	lookup := &fakeLookup{adapters: map[string]llm.Adapter{"a": adapterA, "b": adapterB}}

	engine := newEngine(lookup, Config{SlotTimeout: 5 * time.Second, JustifierTimeout: 5 * time.Second, MinSuccessPercent: 0.5})

	job := Job{
		Prompt:   "deliberate",
		Outcomes: []string{"A", "B"},
		Jury: []SlotSpec{
			{Provider: "a", Model: "m", Weight: 2, Count: 1},
			{Provider: "b", Model: "m", Weight: 1, Count: 1},
		},
		Iterations: 1,
	}

	result, err := engine.Deliberate(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, result.Scores, 2)

	sum := 0
	for _, s := range result.Scores {
		sum += s.Score
	}
	assert.Equal(t, 1_000_000, sum)
	assert.InDelta(t, 666_667, result.Scores[0].Score, 1)
	assert.InDelta(t, 333_333, result.Scores[1].Score, 1)
	assert.Contains(t, result.Justification, "slot verdict")
}

func TestEngine_Deliberate_CountFloorAverage(t *testing.T) {
	adapter := &scriptedAdapter{responses: []string{
		scoreResponse(600_000, 400_000),
		scoreResponse(600_000, 400_000),
		scoreResponse(700_000, 300_000),
	}}
	lookup := &fakeLookup{adapters: map[string]llm.Adapter{"a": adapter}}

	engine := newEngine(lookup, Config{SlotTimeout: 5 * time.Second, JustifierTimeout: 5 * time.Second, MinSuccessPercent: 0.5})

	job := Job{
		Prompt:     "deliberate",
		Outcomes:   []string{"A", "B"},
		Jury:       []SlotSpec{{Provider: "a", Model: "m", Weight: 1, Count: 3}},
		Iterations: 1,
	}

	result, err := engine.Deliberate(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, result.Scores, 2)

	// sums = [1,900,000, 1,100,000] over 3 calls -> floor(633333, 366666),
	// remainder 1 added to index 0.
	assert.Equal(t, 633_334, result.Scores[0].Score)
	assert.Equal(t, 366_666, result.Scores[1].Score)
	assert.Equal(t, 3, adapter.calls)
}

func TestEngine_Deliberate_QuorumFailure(t *testing.T) {
	good := &scriptedAdapter{responses: []string{scoreResponse(1_000_000, 0)}}
	bad := &scriptedAdapter{err: errors.New("model is unavailable")}
	lookup := &fakeLookup{adapters: map[string]llm.Adapter{"good": good, "bad": bad}}

	engine := newEngine(lookup, Config{SlotTimeout: 5 * time.Second, JustifierTimeout: 5 * time.Second, MinSuccessPercent: 1.0})

	job := Job{
		Prompt:   "deliberate",
		Outcomes: []string{"A", "B"},
		Jury: []SlotSpec{
			{Provider: "good", Model: "m", Weight: 1, Count: 1},
			{Provider: "bad", Model: "m", Weight: 1, Count: 1},
		},
		Iterations: 1,
	}

	_, err := engine.Deliberate(context.Background(), job)
	require.Error(t, err)
}

func TestEngine_Deliberate_MultiIterationFansOutEachRound(t *testing.T) {
	adapterA := &scriptedAdapter{responses: []string{
		scoreResponse(1_000_000, 0),
		scoreResponse(800_000, 200_000),
	}}
	adapterB := &scriptedAdapter{responses: []string{
		scoreResponse(0, 1_000_000),
		scoreResponse(200_000, 800_000),
	}}
	lookup := &fakeLookup{adapters: map[string]llm.Adapter{"a": adapterA, "b": adapterB}}

	engine := newEngine(lookup, Config{SlotTimeout: 5 * time.Second, JustifierTimeout: 5 * time.Second, MinSuccessPercent: 0.5})

	job := Job{
		Prompt:   "deliberate",
		Outcomes: []string{"A", "B"},
		Jury: []SlotSpec{
			{Provider: "a", Model: "m", Weight: 1, Count: 1},
			{Provider: "b", Model: "m", Weight: 1, Count: 1},
		},
		Iterations: 2,
	}

	result, err := engine.Deliberate(context.Background(), job)
	require.NoError(t, err)
	// Aggregate reflects only the final iteration's outcomes (800k/200k and
	// 200k/800k averaged 1:1 -> 500k/500k), but both adapters must have been
	// called once per iteration.
	assert.Equal(t, 2, adapterA.calls)
	assert.Equal(t, 2, adapterB.calls)
	assert.Equal(t, 500_000, result.Scores[0].Score)
	assert.Equal(t, 500_000, result.Scores[1].Score)
}

func TestEngine_Deliberate_SlotParseFailureFallsBackUniform(t *testing.T) {
	good := &scriptedAdapter{responses: []string{scoreResponse(1_000_000, 0)}}
	unparsable := &scriptedAdapter{responses: []string{"I cannot comply with that format."}}
	lookup := &fakeLookup{adapters: map[string]llm.Adapter{"good": good, "unparsable": unparsable}}

	engine := newEngine(lookup, Config{SlotTimeout: 5 * time.Second, JustifierTimeout: 5 * time.Second, MinSuccessPercent: 0.5})

	job := Job{
		Prompt:   "deliberate",
		Outcomes: []string{"A", "B"},
		Jury: []SlotSpec{
			{Provider: "good", Model: "m", Weight: 1, Count: 1},
			{Provider: "unparsable", Model: "m", Weight: 1, Count: 1},
		},
		Iterations: 1,
	}

	// MinSuccessPercent 0.5 with one of two slots failing still meets quorum
	// (required = ceil(2*0.5) = 1), so the aggregate uses only the good slot.
	result, err := engine.Deliberate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1_000_000, result.Scores[0].Score)
	assert.Equal(t, 0, result.Scores[1].Score)
}
