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

// Package jury implements the C7 Jury Engine: a concurrent fan-out across a
// weighted panel of model adapters, per-model timeouts, multi-iteration
// deliberation, and justification synthesis.
package jury

import (
	"time"

	"github.com/verdikta/arbiter/pkg/llm"
)

// SlotSpec names one seat on the jury, as parsed from a manifest's
// juryParameters.AI_NODES entry.
type SlotSpec struct {
	Provider string
	Model    string
	Weight   float64
	Count    int
}

// Job is the deliberation job produced by C4 and consumed by the engine.
type Job struct {
	Prompt      string
	Outcomes    []string
	Jury        []SlotSpec
	Iterations  int
	Attachments []llm.Attachment
}

// Config carries the engine's tunable deadlines and the justifier identity.
type Config struct {
	SlotTimeout       time.Duration // default 120s
	JustifierTimeout  time.Duration // default 45s
	MinSuccessPercent float64       // default 0.5
	Justifier         SlotSpec
}

// DefaultConfig returns the spec-default deadlines (§4.7, §6).
func DefaultConfig() Config {
	return Config{
		SlotTimeout:       120 * time.Second,
		JustifierTimeout:  45 * time.Second,
		MinSuccessPercent: 0.5,
	}
}

// ScoreEntry pairs one outcome label with its aggregated score.
type ScoreEntry struct {
	Outcome string `json:"outcome"`
	Score   int    `json:"score"`
}

// Result is the jury's output: a score vector paired with its outcome
// labels, plus the synthesized justification.
type Result struct {
	Scores        []ScoreEntry
	Justification string
}

// SlotStatus is the terminal state of one jury slot's state machine (§4.7.7).
type SlotStatus string

const (
	SlotSuccess  SlotStatus = "success"
	SlotTimedOut SlotStatus = "timed_out"
	SlotFallback SlotStatus = "fallback"
)

// slotOutcome is one slot's contribution to an iteration, after the inner
// count-loop average and response parsing.
type slotOutcome struct {
	spec          SlotSpec
	status        SlotStatus
	failed        bool
	vector        []int // uniform fallback if failed; not used in the aggregate
	justification string
	failureReason string
}
