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

// Package factory builds the C6 provider registry: one llm.Adapter per
// configured provider family, keyed by name.
package factory

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	verdiktalog "github.com/verdikta/arbiter/internal/log"
	"github.com/verdikta/arbiter/pkg/llm"
	"github.com/verdikta/arbiter/pkg/llm/anthropic"
	"github.com/verdikta/arbiter/pkg/llm/bedrock"
	"github.com/verdikta/arbiter/pkg/llm/ollama"
	"github.com/verdikta/arbiter/pkg/llm/openai"
	"github.com/verdikta/arbiter/pkg/llm/xai"
)

// Config holds per-provider credentials and connection settings. Fields left
// blank fall back to well-known environment variables inside each adapter's
// own constructor, matching the layering used by internal/config.
type Config struct {
	DefaultProvider string
	DefaultModel    string

	AnthropicAPIKey string
	AnthropicModel  string

	BedrockRegion          string
	BedrockAccessKeyID     string
	BedrockSecretAccessKey string
	BedrockModelID         string

	OllamaEndpoint string
	OllamaModel    string

	OpenAIAPIKey string
	OpenAIModel  string

	XAIAPIKey string
	XAIModel  string

	Timeout time.Duration
}

// Registry holds constructed adapters keyed by provider name.
type Registry struct {
	config    Config
	providers map[string]llm.Adapter
}

// NewRegistry constructs adapters for the configured providers without
// failing construction. Anthropic, OpenAI and xAI are registered only when
// an API key is set; Ollama is always registered; Bedrock is registered
// whenever the AWS SDK configuration loads, whether or not credentials are
// present. A jury slot naming an unregistered provider fails at dispatch
// time in pkg/jury and counts against the quorum.
func NewRegistry(ctx context.Context, cfg Config) (*Registry, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 150 * time.Second
	}

	r := &Registry{config: cfg, providers: make(map[string]llm.Adapter)}

	if key := firstNonEmpty(cfg.AnthropicAPIKey, os.Getenv("ANTHROPIC_API_KEY")); key != "" {
		r.providers["anthropic"] = anthropic.NewClient(anthropic.Config{
			APIKey: key,
			Model:  cfg.AnthropicModel,
		})
	} else {
		verdiktalog.Debug("skipping provider: no credentials configured", zap.String("provider", "anthropic"))
	}

	if bc, err := bedrock.NewClient(ctx, bedrock.Config{
		Region:          cfg.BedrockRegion,
		AccessKeyID:     cfg.BedrockAccessKeyID,
		SecretAccessKey: cfg.BedrockSecretAccessKey,
		ModelID:         cfg.BedrockModelID,
	}); err == nil {
		r.providers["bedrock"] = bc
	} else {
		verdiktalog.Debug("skipping provider: no credentials configured", zap.String("provider", "bedrock"), zap.Error(err))
	}

	r.providers["ollama"] = ollama.NewClient(ollama.Config{
		Endpoint: cfg.OllamaEndpoint,
		Model:    cfg.OllamaModel,
		Timeout:  cfg.Timeout,
	})

	if key := firstNonEmpty(cfg.OpenAIAPIKey, os.Getenv("OPENAI_API_KEY")); key != "" {
		r.providers["openai"] = openai.NewClient(openai.Config{
			APIKey:  key,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.Timeout,
		})
	} else {
		verdiktalog.Debug("skipping provider: no credentials configured", zap.String("provider", "openai"))
	}

	if key := firstNonEmpty(cfg.XAIAPIKey, os.Getenv("XAI_API_KEY")); key != "" {
		r.providers["xai"] = xai.NewClient(xai.Config{
			APIKey:  key,
			Model:   cfg.XAIModel,
			Timeout: cfg.Timeout,
		})
	} else {
		verdiktalog.Debug("skipping provider: no credentials configured", zap.String("provider", "xai"))
	}

	return r, nil
}

// Get returns the adapter registered for provider, or false if that
// provider has no usable configuration. provider is matched
// case-insensitively since manifests spell provider names as shown in the
// capability matrix (e.g. "OpenAI") while the registry keys are lowercase.
func (r *Registry) Get(provider string) (llm.Adapter, bool) {
	a, ok := r.providers[strings.ToLower(provider)]
	return a, ok
}

// MustGet is a convenience wrapper returning an error in the same shape
// C9 expects when a manifest names a provider with no registered adapter.
func (r *Registry) MustGet(provider string) (llm.Adapter, error) {
	a, ok := r.providers[strings.ToLower(provider)]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured", provider)
	}
	return a, nil
}

// Names returns the set of providers with a registered adapter.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
