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

// Package manifest parses and resolves a deliberation-job manifest (§4.3):
// manifest.json plus the primary query it names, with every additional and
// support blob materialized to a local path.
package manifest

// Manifest is the declarative description of one deliberation input,
// resolved so every referenced blob has a concrete local path.
type Manifest struct {
	Version string `json:"version"`
	Name    string `json:"name,omitempty"`

	Primary        PrimaryRef      `json:"primary"`
	JuryParameters *JuryParameters `json:"juryParameters,omitempty"`

	Additional []Reference `json:"additional,omitempty"`
	Support    []Reference `json:"support,omitempty"`

	// BCIDs maps secondary-manifest names to human-readable roles, in
	// manifest-file insertion order. Presence switches the request into
	// multi-CID composition.
	BCIDs []BCIDEntry `json:"-"`

	Addendum string `json:"addendum,omitempty"`

	// Query is the resolved primary query (or, for a secondary manifest
	// loaded as one of the bound CIDs, that manifest's own query).
	Query *Query `json:"-"`

	// ExtractedPath is the local directory this manifest's archive was
	// unpacked into.
	ExtractedPath string `json:"-"`
}

// BCIDEntry preserves the insertion order of the bCIDs mapping, which
// ordinary decoding into a Go map would lose.
type BCIDEntry struct {
	Name string
	Role string
}

// PrimaryRef names the primary query file, either in-archive (Filename) or
// by remote CID (Hash). Exactly one must be set.
type PrimaryRef struct {
	Filename string `json:"filename,omitempty"`
	Hash     string `json:"hash,omitempty"`
}

// JuryParameters configures the deliberation: how many outcomes, who sits
// on the jury, and how many iterations to run. Only meaningful on a
// primary manifest.
type JuryParameters struct {
	NumberOfOutcomes int        `json:"NUMBER_OF_OUTCOMES"`
	AINodes          []AINode   `json:"AI_NODES"`
	Iterations       int        `json:"ITERATIONS"`
}

// AINode is one jury slot.
type AINode struct {
	Provider  string  `json:"AI_PROVIDER"`
	Model     string  `json:"AI_MODEL"`
	Weight    float64 `json:"WEIGHT"`
	NoCounts  int     `json:"NO_COUNTS"`
}

// Reference is one `additional` or `support` entry: either an in-archive
// file or a remote CID, resolved to LocalPath once materialized.
type Reference struct {
	Name     string `json:"name,omitempty"`
	Type     string `json:"type,omitempty"`
	Filename string `json:"filename,omitempty"`
	Hash     string `json:"hash,omitempty"`

	// LocalPath is set once the entry has been resolved to a file under
	// the manifest's extracted directory.
	LocalPath string `json:"-"`
}

// Query is the primary (or secondary) query document.
type Query struct {
	Query      string   `json:"query"`
	References []string `json:"references,omitempty"`
	Outcomes   []string `json:"outcomes,omitempty"`
}
