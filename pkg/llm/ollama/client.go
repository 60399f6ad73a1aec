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

// Package ollama adapts a local Ollama server to the C6 provider contract,
// representing the §6 capability matrix's "open-source/local" row.
package ollama

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
	defaultEndpoint = "http://localhost:11434"
	defaultTimeout  = 180 * time.Second
)

// models known to accept images natively, e.g. llava.
var imageCapableModels = []string{"llava", "bakllava", "moondream"}

// reasoningModels known to emit <think> blocks, e.g. deepseek-r1.
var reasoningModels = []string{"deepseek-r1"}

// Config holds configuration for the Ollama client.
type Config struct {
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// Client implements llm.Adapter for a local Ollama server.
type Client struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

// NewClient creates a new Ollama client.
func NewClient(config Config) *Client {
	if config.Endpoint == "" {
		if e := os.Getenv("OLLAMA_ENDPOINT"); e != "" {
			config.Endpoint = e
		} else {
			config.Endpoint = defaultEndpoint
		}
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Client{
		endpoint:   config.Endpoint,
		model:      config.Model,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Name implements llm.Adapter.
func (c *Client) Name() string { return "ollama" }

// Capabilities implements llm.Adapter.
func (c *Client) Capabilities(model string) llm.Capabilities {
	lower := strings.ToLower(model)
	image := false
	for _, m := range imageCapableModels {
		if strings.HasPrefix(lower, m) {
			image = true
			break
		}
	}
	reasoning := false
	for _, m := range reasoningModels {
		if strings.HasPrefix(lower, m) {
			reasoning = true
			break
		}
	}
	return llm.Capabilities{
		SupportsImage:          image,
		SupportsAttachment:     true,
		SupportsNativeDocument: false,
		ReasoningClass:         reasoning,
	}
}

// Generate implements llm.Adapter.
func (c *Client) Generate(ctx context.Context, prompt, model string, opts llm.GenerateOptions) (string, error) {
	return c.generate(ctx, prompt, model, nil, opts)
}

// GenerateWithAttachments implements llm.Adapter. Ollama's /api/generate
// accepts a flat "images" array of base64 strings (no media-type envelope);
// document attachments must already be extracted text by the time they
// reach this adapter, since Ollama has no native document ingestion.
func (c *Client) GenerateWithAttachments(ctx context.Context, prompt, model string, attachments []llm.Attachment, opts llm.GenerateOptions) (string, error) {
	return c.generate(ctx, prompt, model, attachments, opts)
}

func (c *Client) generate(ctx context.Context, prompt, model string, attachments []llm.Attachment, opts llm.GenerateOptions) (string, error) {
	if model == "" {
		model = c.model
	}

	var images []string
	fullPrompt := prompt
	for _, a := range attachments {
		switch a.Kind {
		case "image":
			if _, data, ok := splitDataURI(a.Content); ok {
				images = append(images, data)
			}
		default:
			fullPrompt += "\n\n" + a.Content
		}
	}

	req := generateRequest{
		Model:  model,
		Prompt: fullPrompt,
		Images: images,
		Stream: false,
		Options: map[string]interface{}{
			"num_predict": llm.DefaultMaxTokens(false),
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", &llm.Error{Kind: llm.ErrProviderInvalidInput, Provider: "ollama", Model: model, Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", &llm.Error{Kind: llm.ErrProviderInvalidInput, Provider: "ollama", Model: model, Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", &llm.Error{Kind: llm.ErrProviderTimeout, Provider: "ollama", Model: model, Cause: ctx.Err()}
		}
		return "", &llm.Error{Kind: llm.ErrProviderUnavailable, Provider: "ollama", Model: model, Cause: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", &llm.Error{Kind: llm.ErrProviderUnavailable, Provider: "ollama", Model: model, Cause: err}
	}
	if httpResp.StatusCode != http.StatusOK {
		return "", &llm.Error{Kind: llm.ErrProviderInvalidInput, Provider: "ollama", Model: model, Cause: fmt.Errorf("status %d: %s", httpResp.StatusCode, string(respBody))}
	}

	var resp generateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", &llm.Error{Kind: llm.ErrProviderInvalidInput, Provider: "ollama", Model: model, Cause: err}
	}
	return llm.StripThinking(resp.Response), nil
}

type generateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Images  []string               `json:"images,omitempty"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func splitDataURI(s string) (mediaType, data string, ok bool) {
	if !strings.HasPrefix(s, "data:") {
		return "", "", false
	}
	rest := strings.TrimPrefix(s, "data:")
	parts := strings.SplitN(rest, ";base64,", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

var _ llm.Adapter = (*Client)(nil)
