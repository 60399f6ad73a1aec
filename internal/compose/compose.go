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

// Package compose builds the composed deliberation prompt from a primary
// manifest and its bound secondaries (§4.4).
package compose

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/verdikta/arbiter/internal/errs"
	"github.com/verdikta/arbiter/internal/manifest"
	"github.com/verdikta/arbiter/pkg/jury"
)

// Job is the deliberation job handed to C7, plus the merged reference list
// (informational, not consumed by the jury engine itself).
type Job struct {
	jury.Job
	References []string
}

// sanitizer strips the four characters that could be used to smuggle
// prompt-injection markers through an unvalidated addendum value.
var sanitizer = strings.NewReplacer("<", "", ">", "", "{", "", "}", "")

// Compose builds the final deliberation job from manifests, where
// manifests[0] is the primary and manifests[1:] are bound secondaries in
// the same order as the caller's CID list. addendumString is the optional
// inline datum supplied alongside the request. logger receives the §4.4
// secondary-name-mismatch warning; a nil logger silently drops it.
func Compose(manifests []*manifest.Manifest, addendumString string, logger *zap.Logger) (*Job, error) {
	if len(manifests) == 0 {
		return nil, errs.New(errs.InvalidRequest, "compose: no manifests supplied")
	}

	primary := manifests[0]
	secondaries := manifests[1:]

	if len(secondaries) > 0 {
		if len(primary.BCIDs) != len(secondaries) {
			return nil, errs.New(errs.CompositionMismatch, fmt.Sprintf(
				"primary bCIDs has %d entries but %d secondary CIDs were supplied",
				len(primary.BCIDs), len(secondaries)))
		}
	}

	var b strings.Builder
	b.WriteString(primary.Query.Query)

	for i, secondary := range secondaries {
		expected := primary.BCIDs[i]
		if secondary.Name != "" && secondary.Name != expected.Name {
			// Name mismatch is non-fatal (§4.4): log and continue with
			// expected.Name, which is what the composed prompt uses below.
			if logger != nil {
				logger.Warn("secondary manifest name does not match its bCID entry",
					zap.String("expectedName", expected.Name), zap.String("actualName", secondary.Name))
			}
		}
		fmt.Fprintf(&b, "\n\n**\n%s:\nName: %s\n%s", expected.Role, expected.Name, secondary.Query.Query)
	}

	if hasNonEmptyReferences(secondaries) {
		b.WriteString("\n\nReferences:\n")
		for i, secondary := range secondaries {
			label := primary.BCIDs[i].Name
			if secondary.Name != "" {
				label = secondary.Name
			}
			fmt.Fprintf(&b, "%s: \n", label)
			for _, ref := range secondary.Query.References {
				b.WriteString(ref)
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}

	if primary.Addendum != "" && addendumString != "" {
		fmt.Fprintf(&b, "\n\nAddendum: \n%s: %s", primary.Addendum, sanitizer.Replace(addendumString))
	}

	jurySlots := make([]jury.SlotSpec, len(primary.JuryParameters.AINodes))
	for i, node := range primary.JuryParameters.AINodes {
		jurySlots[i] = jury.SlotSpec{
			Provider: node.Provider,
			Model:    node.Model,
			Weight:   node.Weight,
			Count:    node.NoCounts,
		}
	}

	return &Job{
		Job: jury.Job{
			Prompt:     b.String(),
			Outcomes:   primary.Query.Outcomes,
			Jury:       jurySlots,
			Iterations: primary.JuryParameters.Iterations,
		},
		References: mergeReferences(primary, secondaries),
	}, nil
}

func hasNonEmptyReferences(secondaries []*manifest.Manifest) bool {
	for _, s := range secondaries {
		if len(s.Query.References) > 0 {
			return true
		}
	}
	return false
}

func mergeReferences(primary *manifest.Manifest, secondaries []*manifest.Manifest) []string {
	var refs []string
	refs = append(refs, primary.Query.References...)
	for _, s := range secondaries {
		refs = append(refs, s.Query.References...)
	}
	return refs
}
