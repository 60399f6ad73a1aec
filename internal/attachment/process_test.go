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

package attachment

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdikta/arbiter/internal/catwalk"
	"github.com/verdikta/arbiter/internal/manifest"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestProcess_PlainText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "hello jury")

	refs := []manifest.Reference{{Name: "notes", Type: "text/plain", LocalPath: path}}
	atts, skips, err := Process(context.Background(), refs, catwalk.InferenceProviderOpenAI, "gpt-4o-mini", DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, skips)
	require.Len(t, atts, 1)
	assert.Equal(t, "text", atts[0].Kind)
	assert.Equal(t, "hello jury", atts[0].Content)
}

func TestProcess_HTMLStripsTagsInExtractMode(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "page.html", "<html><body><b>Hello</b> world</body></html>")

	refs := []manifest.Reference{{Name: "page", Type: "text/html", LocalPath: path}}
	atts, _, err := Process(context.Background(), refs, catwalk.InferenceProviderOllama, "llama3.2", DefaultConfig())
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.NotContains(t, atts[0].Content, "<b>")
	assert.Contains(t, atts[0].Content, "Hello")
}

func TestProcess_NativeDocumentModePassesThroughBase64(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.pdf", "%PDF-1.4 fake content")

	refs := []manifest.Reference{{Name: "doc", Type: "application/pdf", LocalPath: path}}
	atts, skips, err := Process(context.Background(), refs, catwalk.InferenceProviderOpenAI, "gpt-4o", DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, skips)
	require.Len(t, atts, 1)
	assert.Equal(t, "document", atts[0].Kind)
	assert.True(t, strings.HasPrefix(atts[0].Content, "data:application/pdf;base64,"))
}

func TestProcess_ImageSizeLimit(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "big.jpg", strings.Repeat("x", 10))

	refs := []manifest.Reference{{Name: "big", Type: "image/jpeg", LocalPath: path}}
	cfg := DefaultConfig()
	cfg.MaxImageBytes = 5

	_, _, err := Process(context.Background(), refs, catwalk.InferenceProviderOpenAI, "gpt-4o", cfg)
	assert.Error(t, err)
}

func TestProcess_UnknownTypeHeuristicRejectsBinary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.bin")
	data := make([]byte, 100)
	for i := range data {
		if i%10 == 0 {
			data[i] = 0
		}
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	refs := []manifest.Reference{{Name: "blob", LocalPath: path}}
	_, _, err := Process(context.Background(), refs, catwalk.InferenceProvider("unknown"), "unknown", DefaultConfig())
	assert.Error(t, err)
}

func TestProcess_ExtractedTextTruncated(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "long.txt", strings.Repeat("a", 200))

	refs := []manifest.Reference{{Name: "long", Type: "text/plain", LocalPath: path}}
	cfg := DefaultConfig()
	cfg.MaxExtractedChars = 50

	atts, _, err := Process(context.Background(), refs, catwalk.InferenceProviderOllama, "llama3.2", cfg)
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Contains(t, atts[0].Content, "truncated")
}

func TestProcess_ExtractionTimeout(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "slow.html", "<html></html>")

	refs := []manifest.Reference{{Name: "slow", Type: "text/html", LocalPath: path}}
	cfg := DefaultConfig()
	cfg.PerFileTimeout = time.Nanosecond

	_, _, err := Process(context.Background(), refs, catwalk.InferenceProviderOllama, "llama3.2", cfg)
	assert.Error(t, err)
}
