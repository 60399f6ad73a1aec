// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package jury

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdikta/arbiter/pkg/llm"
)

type fakeLookup struct {
	adapters map[string]llm.Adapter
}

func (f *fakeLookup) Get(provider string) (llm.Adapter, bool) {
	a, ok := f.adapters[provider]
	return a, ok
}

type stubAdapter struct{}

func (s *stubAdapter) Name() string                                 { return "stub" }
func (s *stubAdapter) Capabilities(string) llm.Capabilities         { return llm.Capabilities{} }
func (s *stubAdapter) Generate(context.Context, string, string, llm.GenerateOptions) (string, error) {
	return "", nil
}
func (s *stubAdapter) GenerateWithAttachments(context.Context, string, string, []llm.Attachment, llm.GenerateOptions) (string, error) {
	return "", nil
}

func TestRegistry_Resolve(t *testing.T) {
	adapter := &stubAdapter{}
	registry := NewRegistry(&fakeLookup{adapters: map[string]llm.Adapter{"openai": adapter}})

	got, err := registry.Resolve(SlotSpec{Provider: "openai"})
	require.NoError(t, err)
	assert.Same(t, adapter, got)

	_, err = registry.Resolve(SlotSpec{Provider: "missing"})
	assert.Error(t, err)
}

func TestRegistry_ResolveIsCaseInsensitive(t *testing.T) {
	adapter := &stubAdapter{}
	registry := NewRegistry(&fakeLookup{adapters: map[string]llm.Adapter{
		"openai":    adapter,
		"anthropic": adapter,
		"xai":       adapter,
	}})

	for _, provider := range []string{"OpenAI", "Anthropic", "xAI", "OPENAI"} {
		got, err := registry.Resolve(SlotSpec{Provider: provider})
		require.NoError(t, err, "provider %q should resolve", provider)
		assert.Same(t, adapter, got)
	}
}

func TestRegistry_BreakerIsSharedPerProvider(t *testing.T) {
	registry := NewRegistry(&fakeLookup{})

	cb1 := registry.Breaker("openai")
	cb2 := registry.Breaker("openai")
	cb3 := registry.Breaker("anthropic")

	assert.Same(t, cb1, cb2)
	assert.NotSame(t, cb1, cb3)
}

func TestRegistry_BreakerIsCaseInsensitive(t *testing.T) {
	registry := NewRegistry(&fakeLookup{})

	cb1 := registry.Breaker("OpenAI")
	cb2 := registry.Breaker("openai")

	assert.Same(t, cb1, cb2)
}
