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
package observability

// Standard span names for consistency across the arbiter.
// Use these constants instead of hardcoding strings.
const (
	// LLM spans
	SpanLLMCompletion = "llm.completion"

	// Jury (C7) spans
	SpanJuryDeliberation = "jury.deliberation"
	SpanJuryIteration    = "jury.iteration"
	SpanJuryJustify      = "jury.justify"

	// Request (C9) spans
	SpanRequestEvaluate = "request.evaluate"

	// Content-store (C1) spans
	SpanContentStoreFetch  = "contentstore.fetch"
	SpanContentStoreUpload = "contentstore.upload"
)

// Standard metric names for consistency.
const (
	// LLM metrics
	MetricLLMCalls        = "llm.calls.total"
	MetricLLMLatency      = "llm.latency"
	MetricLLMTokensInput  = "llm.tokens.input"  // #nosec G101 -- not a credential, just metric name
	MetricLLMTokensOutput = "llm.tokens.output" // #nosec G101 -- not a credential, just metric name
	MetricLLMErrors       = "llm.errors.total"

	// Jury metrics
	MetricJuryQuorumFailures = "jury.quorum_failures.total"
	MetricJuryIterations     = "jury.iterations.total"

	// Request metrics
	MetricRequestDuration = "request.duration"
	MetricRequestErrors   = "request.errors.total"
)

// Standard attribute names for consistency.
// Use these constants for span and event attributes.
const (
	// Request context
	AttrRequestID = "request.id"

	// LLM attributes
	AttrLLMProvider    = "llm.provider"
	AttrLLMModel       = "llm.model"
	AttrLLMTemperature = "llm.temperature"
	AttrLLMMaxTokens   = "llm.max_tokens" // #nosec G101 -- not a credential, just attribute name

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"

	// Jury attributes
	AttrJurySlot    = "jury.slot"
	AttrJuryWeight  = "jury.weight"
	AttrJuryVerdict = "jury.verdict"
)
