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
package jury

import (
	"fmt"
	"math"

	"github.com/verdikta/arbiter/internal/errs"
)

// aggregateFailure describes one slot excluded from an iteration's
// aggregate, surfaced verbatim in an INSUFFICIENT_MODELS error's detail.
type aggregateFailure struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Reason   string `json:"reason"`
}

// aggregateIteration folds one iteration's slot outcomes into a single
// score vector per §4.7.4: quorum check, then weight-normalized average
// over successful slots only, floored to integers with any remainder
// distributed into index 0.
func aggregateIteration(outcomes []slotOutcome, k int, minSuccessPercent float64) ([]int, error) {
	n := len(outcomes)
	required := int(math.Ceil(float64(n) * minSuccessPercent))

	var successful []slotOutcome
	var failures []aggregateFailure
	for _, o := range outcomes {
		if o.failed {
			failures = append(failures, aggregateFailure{
				Provider: o.spec.Provider,
				Model:    o.spec.Model,
				Reason:   o.failureReason,
			})
			continue
		}
		successful = append(successful, o)
	}

	if len(successful) < required {
		detail := map[string]interface{}{"failures": failures, "required": required, "succeeded": len(successful)}
		return nil, errs.New(errs.InsufficientModels,
			fmt.Sprintf("only %d/%d slots succeeded, need %d", len(successful), n, required)).WithDetail(detail)
	}

	totalWeight := 0.0
	for _, o := range successful {
		totalWeight += o.spec.Weight
	}
	if totalWeight <= 0 {
		return nil, errs.New(errs.InsufficientModels, "successful slots carry zero total weight")
	}

	raw := make([]float64, k)
	for _, o := range successful {
		for i, v := range o.vector {
			raw[i] += float64(v) * o.spec.Weight / totalWeight
		}
	}

	return normalizeToMillion(raw), nil
}

// normalizeToMillion floors each component and distributes the rounding
// remainder into index 0, guaranteeing the §3 sum-to-1,000,000 invariant.
// A worked two-outcome example elsewhere puts the +1 on index 1 instead
// (largest-remainder rounding); this follows the literal index-0 rule.
func normalizeToMillion(raw []float64) []int {
	vector := make([]int, len(raw))
	sum := 0
	for i, v := range raw {
		vector[i] = int(math.Floor(v))
		sum += vector[i]
	}
	vector[0] += 1_000_000 - sum
	return vector
}
