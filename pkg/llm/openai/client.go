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

// Package openai adapts the OpenAI chat-completions API to the C6 provider
// contract. The wire format here is reused verbatim by pkg/llm/xai, since
// xAI's Grok API is OpenAI-wire-compatible.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/verdikta/arbiter/pkg/llm"
)

const (
	defaultModel    = "gpt-4o"
	defaultEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultTimeout  = 150 * time.Second
)

var reasoningModelPattern = regexp.MustCompile(`(?i)^(o1|o3|gpt-5)`)

// Config holds configuration for the OpenAI client.
type Config struct {
	APIKey      string
	Model       string
	Endpoint    string
	Timeout     time.Duration
	ProviderTag string // overrides Name(), used by pkg/llm/xai
}

// Client implements llm.Adapter for OpenAI's chat completions API.
type Client struct {
	apiKey      string
	model       string
	endpoint    string
	providerTag string
	httpClient  *http.Client
}

// NewClient creates a new OpenAI client.
func NewClient(config Config) *Client {
	if config.APIKey == "" {
		config.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if config.Model == "" {
		if m := os.Getenv("OPENAI_DEFAULT_MODEL"); m != "" {
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
	if config.ProviderTag == "" {
		config.ProviderTag = "openai"
	}

	return &Client{
		apiKey:      config.APIKey,
		model:       config.Model,
		endpoint:    config.Endpoint,
		providerTag: config.ProviderTag,
		httpClient:  &http.Client{Timeout: config.Timeout},
	}
}

// Name implements llm.Adapter.
func (c *Client) Name() string { return c.providerTag }

// IsReasoningModel reports whether model belongs to a reasoning family per
// the §6 capability matrix (o1, o3, gpt-5 and its variants).
func IsReasoningModel(model string) bool {
	return reasoningModelPattern.MatchString(model)
}

// Capabilities implements llm.Adapter. gpt-4o and later accept images and
// native documents; earlier gpt-4 models do not.
func (c *Client) Capabilities(model string) llm.Capabilities {
	legacy := strings.HasPrefix(model, "gpt-4") && !strings.Contains(model, "4o") && !strings.Contains(model, "4.1")
	return llm.Capabilities{
		SupportsImage:          !legacy,
		SupportsAttachment:     true,
		SupportsNativeDocument: !legacy,
		ReasoningClass:         IsReasoningModel(model),
	}
}

// Generate implements llm.Adapter.
func (c *Client) Generate(ctx context.Context, prompt, model string, opts llm.GenerateOptions) (string, error) {
	return c.generate(ctx, prompt, model, nil, opts)
}

// GenerateWithAttachments implements llm.Adapter.
func (c *Client) GenerateWithAttachments(ctx context.Context, prompt, model string, attachments []llm.Attachment, opts llm.GenerateOptions) (string, error) {
	return c.generate(ctx, prompt, model, attachments, opts)
}

func (c *Client) generate(ctx context.Context, prompt, model string, attachments []llm.Attachment, opts llm.GenerateOptions) (string, error) {
	if model == "" {
		model = c.model
	}
	reasoning := IsReasoningModel(model)
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = llm.DefaultMaxTokens(reasoning)
	}

	parts := []contentPart{{Type: "text", Text: prompt}}
	for _, a := range attachments {
		if a.Kind == "image" {
			parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: a.Content}})
		} else {
			parts = append(parts, contentPart{Type: "text", Text: a.Content})
		}
	}

	req := &chatCompletionRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: parts}},
	}
	if reasoning {
		req.MaxCompletionTokens = maxTokens
		if opts.ReasoningEffort != "" {
			req.ReasoningEffort = opts.ReasoningEffort
		}
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.call(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", &llm.Error{Kind: llm.ErrProviderInvalidInput, Provider: c.providerTag, Model: model, Cause: fmt.Errorf("empty choices")}
	}

	text, _ := resp.Choices[0].Message.Content.(string)
	return llm.StripThinking(text), nil
}

func (c *Client) call(ctx context.Context, req *chatCompletionRequest) (*chatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &llm.Error{Kind: llm.ErrProviderInvalidInput, Provider: c.providerTag, Model: req.Model, Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &llm.Error{Kind: llm.ErrProviderInvalidInput, Provider: c.providerTag, Model: req.Model, Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &llm.Error{Kind: llm.ErrProviderTimeout, Provider: c.providerTag, Model: req.Model, Cause: ctx.Err()}
		}
		return nil, &llm.Error{Kind: llm.ErrProviderUnavailable, Provider: c.providerTag, Model: req.Model, Cause: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &llm.Error{Kind: llm.ErrProviderUnavailable, Provider: c.providerTag, Model: req.Model, Cause: err}
	}

	if httpResp.StatusCode != http.StatusOK {
		var parsed chatCompletionResponse
		_ = json.Unmarshal(respBody, &parsed)
		msg := ""
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		cause := fmt.Errorf("status %d: %s", httpResp.StatusCode, msg)
		switch httpResp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, &llm.Error{Kind: llm.ErrProviderAuth, Provider: c.providerTag, Model: req.Model, Cause: cause}
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			return nil, &llm.Error{Kind: llm.ErrProviderUnavailable, Provider: c.providerTag, Model: req.Model, Cause: cause}
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return nil, &llm.Error{Kind: llm.ErrProviderTimeout, Provider: c.providerTag, Model: req.Model, Cause: cause}
		default:
			return nil, &llm.Error{Kind: llm.ErrProviderInvalidInput, Provider: c.providerTag, Model: req.Model, Cause: cause}
		}
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &llm.Error{Kind: llm.ErrProviderInvalidInput, Provider: c.providerTag, Model: req.Model, Cause: err}
	}
	return &resp, nil
}

var _ llm.Adapter = (*Client)(nil)
