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

// Package bedrock adapts AWS Bedrock's Converse API to the C6 provider
// contract, representing Claude-family models hosted on Bedrock.
package bedrock

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/verdikta/arbiter/pkg/llm"
)

const defaultModelID = "us.anthropic.claude-sonnet-4-20250514-v1:0"

// Config holds configuration for the Bedrock client.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ModelID         string
}

// Client implements llm.Adapter for AWS Bedrock-hosted models.
type Client struct {
	client  *bedrockruntime.Client
	modelID string
}

// NewClient creates a new Bedrock client, resolving AWS credentials from the
// config struct first, then falling back to the default SDK credential chain.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	region := cfg.Region
	if region == "" {
		if r := os.Getenv("AWS_REGION"); r != "" {
			region = r
		} else {
			region = "us-east-1"
		}
	}

	var optFns []func(*awsconfig.LoadOptions) error
	optFns = append(optFns, awsconfig.WithRegion(region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	modelID := cfg.ModelID
	if modelID == "" {
		modelID = defaultModelID
	}

	return &Client{
		client:  bedrockruntime.NewFromConfig(awsCfg),
		modelID: modelID,
	}, nil
}

// Name implements llm.Adapter.
func (c *Client) Name() string { return "bedrock" }

// Capabilities implements llm.Adapter. Bedrock's Claude-family models carry
// the same image/document support as the native Anthropic adapter.
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
	modelID := model
	if modelID == "" {
		modelID = c.modelID
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = llm.DefaultMaxTokens(false)
	}

	blocks := []bedrocktypes.ContentBlock{&bedrocktypes.ContentBlockMemberText{Value: prompt}}
	for _, a := range attachments {
		block, ok := toContentBlock(a)
		if ok {
			blocks = append(blocks, block)
		}
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: []bedrocktypes.Message{{Role: bedrocktypes.ConversationRoleUser, Content: blocks}},
		InferenceConfig: &bedrocktypes.InferenceConfiguration{
			MaxTokens: aws.Int32(int32(maxTokens)),
		},
	}

	out, err := c.client.Converse(ctx, input)
	if err != nil {
		return "", classify(err, modelID)
	}

	resp, ok := out.Output.(*bedrocktypes.ConverseOutputMemberMessage)
	if !ok {
		return "", &llm.Error{Kind: llm.ErrProviderInvalidInput, Provider: "bedrock", Model: modelID, Cause: fmt.Errorf("unexpected output shape")}
	}

	var text strings.Builder
	for _, block := range resp.Value.Content {
		if tb, ok := block.(*bedrocktypes.ContentBlockMemberText); ok {
			text.WriteString(tb.Value)
		}
	}
	return llm.StripThinking(text.String()), nil
}

func toContentBlock(a llm.Attachment) (bedrocktypes.ContentBlock, bool) {
	mediaType, data, ok := splitDataURI(a.Content)
	if !ok {
		return nil, false
	}
	if a.Kind == "image" {
		fmt := bedrockImageFormat(mediaType)
		return &bedrocktypes.ContentBlockMemberImage{Value: bedrocktypes.ImageBlock{
			Format: fmt,
			Source: &bedrocktypes.ImageSourceMemberBytes{Value: []byte(data)},
		}}, true
	}
	return &bedrocktypes.ContentBlockMemberDocument{Value: bedrocktypes.DocumentBlock{
		Format: bedrocktypes.DocumentFormatPdf,
		Name:   aws.String("attachment"),
		Source: &bedrocktypes.DocumentSourceMemberBytes{Value: []byte(data)},
	}}, true
}

func bedrockImageFormat(mediaType string) bedrocktypes.ImageFormat {
	switch {
	case strings.Contains(mediaType, "png"):
		return bedrocktypes.ImageFormatPng
	case strings.Contains(mediaType, "gif"):
		return bedrocktypes.ImageFormatGif
	case strings.Contains(mediaType, "webp"):
		return bedrocktypes.ImageFormatWebp
	default:
		return bedrocktypes.ImageFormatJpeg
	}
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

func classify(err error, model string) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "AccessDenied") || strings.Contains(msg, "UnrecognizedClient"):
		return &llm.Error{Kind: llm.ErrProviderAuth, Provider: "bedrock", Model: model, Cause: err}
	case strings.Contains(msg, "ThrottlingException") || strings.Contains(msg, "ServiceUnavailable"):
		return &llm.Error{Kind: llm.ErrProviderUnavailable, Provider: "bedrock", Model: model, Cause: err}
	case strings.Contains(msg, "context deadline exceeded"):
		return &llm.Error{Kind: llm.ErrProviderTimeout, Provider: "bedrock", Model: model, Cause: err}
	default:
		return &llm.Error{Kind: llm.ErrProviderInvalidInput, Provider: "bedrock", Model: model, Cause: err}
	}
}

var _ llm.Adapter = (*Client)(nil)

// elapsed is a small helper kept for future latency instrumentation.
func elapsed(start time.Time) time.Duration { return time.Since(start) }
