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

package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/verdikta/arbiter/internal/manifest"
)

func primaryManifest(bcids []manifest.BCIDEntry, addendum string) *manifest.Manifest {
	return &manifest.Manifest{
		Version: "1",
		BCIDs:   bcids,
		Addendum: addendum,
		Query: &manifest.Query{
			Query:      "what is the verdict?",
			References: []string{"primary-ref-1"},
			Outcomes:   []string{"yes", "no"},
		},
		JuryParameters: &manifest.JuryParameters{
			NumberOfOutcomes: 2,
			Iterations:       1,
			AINodes: []manifest.AINode{
				{Provider: "OpenAI", Model: "gpt-4", Weight: 1.0, NoCounts: 1},
			},
		},
	}
}

func secondaryManifest(name, query string, refs []string) *manifest.Manifest {
	return &manifest.Manifest{
		Version: "1",
		Name:    name,
		Query: &manifest.Query{
			Query:      query,
			References: refs,
		},
	}
}

func TestCompose_SingleCID(t *testing.T) {
	primary := primaryManifest(nil, "")

	job, err := Compose([]*manifest.Manifest{primary}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "what is the verdict?", job.Prompt)
	assert.Equal(t, []string{"yes", "no"}, job.Outcomes)
	assert.Equal(t, []string{"primary-ref-1"}, job.References)
}

func TestCompose_MultiCID_CountMismatchFails(t *testing.T) {
	primary := primaryManifest([]manifest.BCIDEntry{{Name: "plaintiff", Role: "the plaintiff"}}, "")
	secondA := secondaryManifest("plaintiff", "plaintiff's statement", nil)
	secondB := secondaryManifest("defendant", "defendant's statement", nil)

	_, err := Compose([]*manifest.Manifest{primary, secondA, secondB}, "", nil)
	assert.Error(t, err)
}

func TestCompose_MultiCID_BuildsPromptBlocks(t *testing.T) {
	primary := primaryManifest([]manifest.BCIDEntry{
		{Name: "plaintiff", Role: "the plaintiff"},
		{Name: "defendant", Role: "the defendant"},
	}, "")
	plaintiff := secondaryManifest("plaintiff", "plaintiff's statement", []string{"p-ref"})
	defendant := secondaryManifest("defendant", "defendant's statement", []string{"d-ref"})

	job, err := Compose([]*manifest.Manifest{primary, plaintiff, defendant}, "", nil)
	require.NoError(t, err)

	assert.Contains(t, job.Prompt, "what is the verdict?")
	assert.Contains(t, job.Prompt, "\n\n**\nthe plaintiff:\nName: plaintiff\nplaintiff's statement")
	assert.Contains(t, job.Prompt, "\n\n**\nthe defendant:\nName: defendant\ndefendant's statement")
	assert.Contains(t, job.Prompt, "References:\n")
	assert.Contains(t, job.Prompt, "plaintiff: \np-ref\n")
	assert.Contains(t, job.Prompt, "defendant: \nd-ref\n")
}

func TestCompose_AddendumSanitization(t *testing.T) {
	primary := primaryManifest(nil, "ETH price USD")

	job, err := Compose([]*manifest.Manifest{primary}, "2009.67<script>{evil}", nil)
	require.NoError(t, err)
	assert.Contains(t, job.Prompt, "\n\nAddendum: \nETH price USD: 2009.67scriptevil")
}

func TestCompose_NoAddendumWithoutManifestField(t *testing.T) {
	primary := primaryManifest(nil, "")

	job, err := Compose([]*manifest.Manifest{primary}, "some addendum", nil)
	require.NoError(t, err)
	assert.NotContains(t, job.Prompt, "Addendum")
}

func TestCompose_ReferencesOnlyAppearWhenNonEmpty(t *testing.T) {
	primary := primaryManifest([]manifest.BCIDEntry{{Name: "witness", Role: "the witness"}}, "")
	primary.Query.References = nil
	witness := secondaryManifest("witness", "witness statement", nil)

	job, err := Compose([]*manifest.Manifest{primary, witness}, "", nil)
	require.NoError(t, err)
	assert.NotContains(t, job.Prompt, "References:")
}

func TestCompose_NameMismatchLogsWarningButContinues(t *testing.T) {
	primary := primaryManifest([]manifest.BCIDEntry{{Name: "plaintiff", Role: "the plaintiff"}}, "")
	secondary := secondaryManifest("someone-else", "plaintiff's statement", nil)

	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	job, err := Compose([]*manifest.Manifest{primary, secondary}, "", logger)
	require.NoError(t, err)

	// The composed prompt still uses the bCID's expected name, not the
	// mismatched one.
	assert.Contains(t, job.Prompt, "Name: plaintiff")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Contains(t, entry.Message, "does not match")
	assert.Equal(t, "plaintiff", entry.ContextMap()["expectedName"])
	assert.Equal(t, "someone-else", entry.ContextMap()["actualName"])
}
