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

// Package catwalk is the static provider capability matrix (§6): which
// providers support image attachments, native document ingestion, and
// reasoning-class models. It is read once at startup and is otherwise
// unconsulted by pkg/jury, which only knows about llm.Adapter.
package catwalk

// InferenceProvider identifies a model provider.
type InferenceProvider string

// Known inference providers.
const (
	InferenceProviderAnthropic InferenceProvider = "anthropic"
	InferenceProviderOpenAI    InferenceProvider = "openai"
	InferenceProviderXAI       InferenceProvider = "xai"
	InferenceProviderOllama    InferenceProvider = "ollama"
	InferenceProviderBedrock   InferenceProvider = "bedrock"
)

// Model describes one model's capabilities within a provider's row of the
// §6 capability matrix.
type Model struct {
	ID                     string
	Name                   string
	SupportsImage          bool
	SupportsNativeDocument bool
	ReasoningClass         bool
}

// Provider is one row of the capability matrix.
type Provider struct {
	ID     InferenceProvider
	Name   string
	Models []Model
}

// Matrix is the static §6 capability table, seeded from the provider
// capability matrix: OpenAI (image/native-doc from 4o, reasoning on
// o1/o3/gpt-5), Anthropic (image and native-doc on every current model, no
// reasoning class), xAI (image yes, native-doc never, reasoning on
// grok-4/grok-3), and local/open-source models served through Ollama (image
// only on llava, native-doc never, reasoning on deepseek-r1).
var Matrix = []Provider{
	{
		ID:   InferenceProviderOpenAI,
		Name: "OpenAI",
		Models: []Model{
			{ID: "gpt-4o", Name: "GPT-4o", SupportsImage: true, SupportsNativeDocument: true},
			{ID: "gpt-4o-mini", Name: "GPT-4o mini", SupportsImage: true, SupportsNativeDocument: true},
			{ID: "gpt-5", Name: "GPT-5", SupportsImage: true, SupportsNativeDocument: true, ReasoningClass: true},
			{ID: "o1", Name: "o1", SupportsImage: true, SupportsNativeDocument: true, ReasoningClass: true},
			{ID: "o3", Name: "o3", SupportsImage: true, SupportsNativeDocument: true, ReasoningClass: true},
		},
	},
	{
		ID:   InferenceProviderAnthropic,
		Name: "Anthropic",
		Models: []Model{
			{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", SupportsImage: true, SupportsNativeDocument: true},
			{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", SupportsImage: true, SupportsNativeDocument: true},
			{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", SupportsImage: true, SupportsNativeDocument: true},
		},
	},
	{
		ID:   InferenceProviderXAI,
		Name: "xAI",
		Models: []Model{
			{ID: "grok-4", Name: "Grok 4", SupportsImage: true, ReasoningClass: true},
			{ID: "grok-3", Name: "Grok 3", SupportsImage: true, ReasoningClass: true},
			{ID: "grok-2", Name: "Grok 2", SupportsImage: true},
		},
	},
	{
		ID:   InferenceProviderOllama,
		Name: "Ollama (local/open-source)",
		Models: []Model{
			{ID: "llava", Name: "LLaVA", SupportsImage: true},
			{ID: "deepseek-r1", Name: "DeepSeek R1", ReasoningClass: true},
			{ID: "llama3.2", Name: "Llama 3.2"},
		},
	},
	{
		ID:   InferenceProviderBedrock,
		Name: "Amazon Bedrock",
		Models: []Model{
			{ID: "anthropic.claude-sonnet-4-20250514-v1:0", Name: "Claude Sonnet 4 (Bedrock)", SupportsImage: true, SupportsNativeDocument: true},
		},
	},
}

// LookupModel returns the matrix entry for provider:model, or false if the
// pair is unknown. An unknown pair is not an error; callers should fall
// back to conservative (all-false) capabilities.
func LookupModel(provider InferenceProvider, modelID string) (Model, bool) {
	for _, p := range Matrix {
		if p.ID != provider {
			continue
		}
		for _, m := range p.Models {
			if m.ID == modelID {
				return m, true
			}
		}
	}
	return Model{}, false
}

// GetProvider returns a provider row by ID, or nil if unknown.
func GetProvider(id InferenceProvider) *Provider {
	for i := range Matrix {
		if Matrix[i].ID == id {
			return &Matrix[i]
		}
	}
	return nil
}
