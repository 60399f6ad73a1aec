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

// Package xai adapts xAI's Grok API, which speaks the same chat-completions
// wire protocol as OpenAI, to the C6 provider contract. There is no teacher
// equivalent for this provider; the adapter is grounded directly on
// pkg/llm/openai's client, reusing its request/response shape.
package xai

import (
	"context"
	"os"
	"regexp"
	"time"

	"github.com/verdikta/arbiter/pkg/llm"
	"github.com/verdikta/arbiter/pkg/llm/openai"
)

const (
	defaultModel    = "grok-4"
	defaultEndpoint = "https://api.x.ai/v1/chat/completions"
	defaultTimeout  = 150 * time.Second
)

var reasoningPattern = regexp.MustCompile(`(?i)^grok-(4|3)`)

// Config holds configuration for the xAI client.
type Config struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

// Client implements llm.Adapter for xAI's Grok API.
type Client struct {
	inner *openai.Client
}

// NewClient creates a new xAI client.
func NewClient(config Config) *Client {
	if config.APIKey == "" {
		config.APIKey = os.Getenv("XAI_API_KEY")
	}
	if config.Model == "" {
		if m := os.Getenv("XAI_DEFAULT_MODEL"); m != "" {
			config.Model = m
		} else {
			config.Model = defaultModel
		}
	}
	if config.Endpoint == "" {
		config.Endpoint = defaultEndpoint
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Client{inner: openai.NewClient(openai.Config{
		APIKey:      config.APIKey,
		Model:       config.Model,
		Endpoint:    config.Endpoint,
		Timeout:     config.Timeout,
		ProviderTag: "xai",
	})}
}

// Name implements llm.Adapter.
func (c *Client) Name() string { return "xai" }

// Capabilities implements llm.Adapter per the §6 capability matrix: grok-4
// family accepts images but never native document binaries.
func (c *Client) Capabilities(model string) llm.Capabilities {
	return llm.Capabilities{
		SupportsImage:          true,
		SupportsAttachment:     true,
		SupportsNativeDocument: false,
		ReasoningClass:         reasoningPattern.MatchString(model),
	}
}

// Generate implements llm.Adapter.
func (c *Client) Generate(ctx context.Context, prompt, model string, opts llm.GenerateOptions) (string, error) {
	return c.inner.Generate(ctx, prompt, model, opts)
}

// GenerateWithAttachments implements llm.Adapter. Document attachments are
// dropped here rather than sent, since xAI's API has no native document
// support; the attachment pipeline (C5) is expected to have already chosen
// extract-text mode for an xAI-first jury, but this is a defensive floor.
func (c *Client) GenerateWithAttachments(ctx context.Context, prompt, model string, attachments []llm.Attachment, opts llm.GenerateOptions) (string, error) {
	filtered := make([]llm.Attachment, 0, len(attachments))
	for _, a := range attachments {
		if a.Kind == "document" {
			continue
		}
		filtered = append(filtered, a)
	}
	return c.inner.GenerateWithAttachments(ctx, prompt, model, filtered, opts)
}

var _ llm.Adapter = (*Client)(nil)
