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

// Package anthropic adapts Claude's Messages API to the C6 provider contract.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/verdikta/arbiter/pkg/llm"
)

const (
	defaultModel    = "claude-sonnet-4-20250514"
	defaultEndpoint = "https://api.anthropic.com/v1/messages"
	defaultTimeout  = 150 * time.Second
	apiVersion      = "2023-06-01"
)

// Config holds configuration for the Anthropic client.
type Config struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

// Client implements llm.Adapter for Anthropic's Claude API.
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a new Anthropic client, applying env-var fallbacks the
// way the rest of this module's provider clients do.
func NewClient(config Config) *Client {
	if config.APIKey == "" {
		config.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if config.Model == "" {
		if m := os.Getenv("ANTHROPIC_DEFAULT_MODEL"); m != "" {
			config.Model = m
		} else {
			config.Model = defaultModel
		}
	}
	if config.Endpoint == "" {
		if e := os.Getenv("ANTHROPIC_API_ENDPOINT"); e != "" {
			config.Endpoint = e
		} else {
			config.Endpoint = defaultEndpoint
		}
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Client{
		apiKey:     config.APIKey,
		model:      config.Model,
		endpoint:   config.Endpoint,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Name implements llm.Adapter.
func (c *Client) Name() string { return "anthropic" }

// Capabilities implements llm.Adapter per the §6 capability matrix: every
// Claude 3.5+/4 model accepts images and native documents.
func (c *Client) Capabilities(model string) llm.Capabilities {
	return llm.Capabilities{
		SupportsImage:          true,
		SupportsAttachment:     true,
		SupportsNativeDocument: true,
		ReasoningClass:         false,
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
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = llm.DefaultMaxTokens(false)
	}

	blocks := []contentBlock{{Type: "text", Text: prompt}}
	for _, a := range attachments {
		data, mediaType, ok := decodeDataURI(a.Content)
		if !ok {
			continue
		}
		blocks = append(blocks, contentBlock{
			Type:   blockTypeFor(a.Kind),
			Source: &blockSource{Type: "base64", MediaType: mediaType, Data: data},
		})
	}

	req := &messagesRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: blocks}},
	}

	resp, err := c.call(ctx, req)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			out.WriteString(b.Text)
		}
	}
	return llm.StripThinking(out.String()), nil
}

func blockTypeFor(kind string) string {
	if kind == "image" {
		return "image"
	}
	return "document"
}

func (c *Client) call(ctx context.Context, req *messagesRequest) (*messagesResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &llm.Error{Kind: llm.ErrProviderInvalidInput, Provider: "anthropic", Model: req.Model, Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &llm.Error{Kind: llm.ErrProviderInvalidInput, Provider: "anthropic", Model: req.Model, Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &llm.Error{Kind: llm.ErrProviderTimeout, Provider: "anthropic", Model: req.Model, Cause: ctx.Err()}
		}
		return nil, &llm.Error{Kind: llm.ErrProviderUnavailable, Provider: "anthropic", Model: req.Model, Cause: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &llm.Error{Kind: llm.ErrProviderUnavailable, Provider: "anthropic", Model: req.Model, Cause: err}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyStatus(httpResp.StatusCode, req.Model, respBody)
	}

	var resp messagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &llm.Error{Kind: llm.ErrProviderInvalidInput, Provider: "anthropic", Model: req.Model, Cause: err}
	}
	return &resp, nil
}

func classifyStatus(status int, model string, body []byte) error {
	var parsed apiError
	_ = json.Unmarshal(body, &parsed)
	cause := fmt.Errorf("status %d: %s", status, parsed.Error.Message)
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &llm.Error{Kind: llm.ErrProviderAuth, Provider: "anthropic", Model: model, Cause: cause}
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return &llm.Error{Kind: llm.ErrProviderUnavailable, Provider: "anthropic", Model: model, Cause: cause}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return &llm.Error{Kind: llm.ErrProviderTimeout, Provider: "anthropic", Model: model, Cause: cause}
	default:
		return &llm.Error{Kind: llm.ErrProviderInvalidInput, Provider: "anthropic", Model: model, Cause: cause}
	}
}

// decodeDataURI splits a "data:<mediaType>;base64,<data>" string, or returns
// false if the content is not data-URI encoded.
func decodeDataURI(s string) (data, mediaType string, ok bool) {
	if !strings.HasPrefix(s, "data:") {
		return "", "", false
	}
	rest := strings.TrimPrefix(s, "data:")
	parts := strings.SplitN(rest, ";base64,", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[1], parts[0], true
}

var _ llm.Adapter = (*Client)(nil)
