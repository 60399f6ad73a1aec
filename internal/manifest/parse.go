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

package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xeipuuv/gojsonschema"

	"github.com/verdikta/arbiter/internal/errs"
)

const (
	defaultNumberOfOutcomes = 2
	defaultIterations       = 1
)

var manifestSchemaLoader = gojsonschema.NewStringLoader(`{
	"type": "object",
	"required": ["version", "primary"],
	"properties": {
		"version": {"type": "string"},
		"primary": {"type": "object"}
	}
}`)

// Fetcher resolves a CID to bytes. internal/contentstore.Client satisfies
// this.
type Fetcher interface {
	Fetch(ctx context.Context, cid string) ([]byte, error)
}

// rawManifest mirrors manifest.json's wire shape; bCIDs is kept raw so its
// key order can be recovered (encoding/json discards map order).
type rawManifest struct {
	Version        string          `json:"version"`
	Name           string          `json:"name,omitempty"`
	Primary        PrimaryRef      `json:"primary"`
	JuryParameters *JuryParameters `json:"juryParameters,omitempty"`
	Additional     []Reference     `json:"additional,omitempty"`
	Support        []Reference     `json:"support,omitempty"`
	BCIDs          json.RawMessage `json:"bCIDs,omitempty"`
	Addendum       string          `json:"addendum,omitempty"`
}

// Parse reads manifest.json from extractedPath, validates and defaults it
// per §4.3, and resolves the primary query plus every additional/support
// reference to a local path (fetching by CID through fetcher where needed).
func Parse(ctx context.Context, extractedPath string, fetcher Fetcher) (*Manifest, error) {
	manifestPath := filepath.Join(extractedPath, "manifest.json")
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidManifest, "reading manifest.json", err)
	}

	var rm rawManifest
	if err := json.Unmarshal(raw, &rm); err != nil {
		return nil, errs.Wrap(errs.InvalidManifest, "parsing manifest.json", err)
	}

	if err := validateSchema(raw); err != nil {
		return nil, errs.Wrap(errs.InvalidManifest, "manifest.json failed schema validation", err)
	}
	if rm.Version == "" {
		return nil, errs.New(errs.InvalidManifest, "manifest.json missing version")
	}
	if rm.Primary.Filename == "" && rm.Primary.Hash == "" {
		return nil, errs.New(errs.InvalidManifest, "manifest.json primary has neither filename nor hash")
	}
	if rm.Primary.Filename != "" && rm.Primary.Hash != "" {
		return nil, errs.New(errs.InvalidManifest, "manifest.json primary has both filename and hash")
	}

	bcids, err := parseBCIDs(rm.BCIDs)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidManifest, "parsing bCIDs", err)
	}

	m := &Manifest{
		Version:       rm.Version,
		Name:          rm.Name,
		Primary:       rm.Primary,
		Additional:    rm.Additional,
		Support:       rm.Support,
		BCIDs:         bcids,
		Addendum:      rm.Addendum,
		ExtractedPath: extractedPath,
	}

	m.JuryParameters = applyJuryDefaults(rm.JuryParameters)

	query, err := resolveQuery(ctx, m, fetcher)
	if err != nil {
		return nil, err
	}
	applyOutcomeDefaults(query, m.JuryParameters.NumberOfOutcomes)
	m.Query = query

	if err := resolveReferences(ctx, m.Additional, extractedPath, "additional", fetcher); err != nil {
		return nil, err
	}
	if err := resolveReferences(ctx, m.Support, extractedPath, "support", fetcher); err != nil {
		return nil, err
	}

	return m, nil
}

func validateSchema(raw []byte) error {
	result, err := gojsonschema.Validate(manifestSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return err
	}
	if !result.Valid() {
		return fmt.Errorf("%v", result.Errors())
	}
	return nil
}

// parseBCIDs recovers the bCIDs JSON object's key insertion order by
// walking its tokens directly rather than decoding into a Go map.
func parseBCIDs(raw json.RawMessage) ([]BCIDEntry, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("bCIDs must be a JSON object")
	}

	var entries []BCIDEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("bCIDs key must be a string")
		}

		var value string
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("bCIDs[%q] must be a string role", key)
		}
		entries = append(entries, BCIDEntry{Name: key, Role: value})
	}
	return entries, nil
}

func applyJuryDefaults(jp *JuryParameters) *JuryParameters {
	if jp == nil {
		jp = &JuryParameters{}
	}
	if jp.NumberOfOutcomes == 0 {
		jp.NumberOfOutcomes = defaultNumberOfOutcomes
	}
	if len(jp.AINodes) == 0 {
		jp.AINodes = []AINode{{Provider: "OpenAI", Model: "gpt-4", Weight: 1.0, NoCounts: 1}}
	}
	if jp.Iterations == 0 {
		jp.Iterations = defaultIterations
	}
	return jp
}

func applyOutcomeDefaults(q *Query, numberOfOutcomes int) {
	if len(q.Outcomes) > 0 {
		return
	}
	outcomes := make([]string, numberOfOutcomes)
	for i := range outcomes {
		outcomes[i] = fmt.Sprintf("outcome%d", i+1)
	}
	q.Outcomes = outcomes
}

// resolveQuery reads the primary query document, either from an in-archive
// file or by fetching rm.Primary.Hash through fetcher.
func resolveQuery(ctx context.Context, m *Manifest, fetcher Fetcher) (*Query, error) {
	var data []byte
	var err error

	if m.Primary.Filename != "" {
		data, err = os.ReadFile(filepath.Join(m.ExtractedPath, m.Primary.Filename))
		if err != nil {
			return nil, errs.Wrap(errs.InvalidQuery, "reading primary query file", err)
		}
	} else {
		if fetcher == nil {
			return nil, errs.New(errs.InvalidQuery, "primary query is a remote CID but no fetcher was provided")
		}
		data, err = fetcher.Fetch(ctx, m.Primary.Hash)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidQuery, "fetching primary query by CID", err)
		}
	}

	var q Query
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, errs.Wrap(errs.InvalidQuery, "parsing primary query", err)
	}
	if q.Query == "" {
		return nil, errs.New(errs.InvalidQuery, "primary query text is absent")
	}
	return &q, nil
}

// resolveReferences materializes each CID-backed reference to a
// deterministically-named local file under extractedPath.
func resolveReferences(ctx context.Context, refs []Reference, extractedPath, kind string, fetcher Fetcher) error {
	for i := range refs {
		ref := &refs[i]
		if ref.Filename != "" {
			ref.LocalPath = filepath.Join(extractedPath, ref.Filename)
			continue
		}
		if ref.Hash == "" {
			return errs.New(errs.InvalidManifest, fmt.Sprintf("%s entry %q has neither filename nor hash", kind, ref.Name))
		}
		if fetcher == nil {
			return errs.New(errs.InvalidManifest, fmt.Sprintf("%s entry %q references a CID but no fetcher was provided", kind, ref.Name))
		}

		data, err := fetcher.Fetch(ctx, ref.Hash)
		if err != nil {
			return errs.Wrap(errs.InvalidManifest, fmt.Sprintf("fetching %s entry %q", kind, ref.Name), err)
		}

		localName := fmt.Sprintf("%s_%s", kind, ref.Hash)
		localPath := filepath.Join(extractedPath, localName)
		if err := os.WriteFile(localPath, data, 0o644); err != nil {
			return errs.Wrap(errs.InvalidManifest, fmt.Sprintf("materializing %s entry %q", kind, ref.Name), err)
		}
		ref.LocalPath = localPath
	}
	return nil
}
