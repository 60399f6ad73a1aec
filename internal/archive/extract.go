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

// Package archive unpacks a fetched zip archive into a per-request scratch
// subdirectory (§4.2), rejecting entries that would escape it.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
)

func init() {
	// Faster deflate implementation than stdlib's; archive/zip consults
	// this registration for method 8 (deflate) transparently.
	zip.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
}

// Extract unpacks data (a zip archive) into a new subdirectory of scratchDir
// named after id (typically the archive's CID), and returns that
// subdirectory's path.
//
// Entries whose normalized path would escape the destination directory are
// rejected; extraction stops at the first such entry. On any error the
// partially-extracted subdirectory is left in place for the caller to clean
// up alongside the rest of the request's scratch space.
func Extract(data []byte, scratchDir, id string) (string, error) {
	destDir := filepath.Join(scratchDir, sanitizeID(id))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("archive: creating destination %s: %w", destDir, err)
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("archive: not a valid zip: %w", err)
	}

	for _, entry := range reader.File {
		target, err := safeJoin(destDir, entry.Name)
		if err != nil {
			return "", fmt.Errorf("archive: entry %q: %w", entry.Name, err)
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return "", fmt.Errorf("archive: creating dir %s: %w", target, err)
			}
			continue
		}

		if err := extractFile(entry, target); err != nil {
			return "", fmt.Errorf("archive: extracting %q: %w", entry.Name, err)
		}
	}

	return destDir, nil
}

func extractFile(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entry.Mode().Perm()|0o600)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// safeJoin joins destDir and name, rejecting the join if the normalized
// result escapes destDir (zip-slip protection: "../", absolute paths, or
// symlink-style entries that resolve outside the tree).
func safeJoin(destDir, name string) (string, error) {
	cleaned := filepath.Clean(strings.ReplaceAll(name, "\\", "/"))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("entry path %q escapes destination", name)
	}

	target := filepath.Join(destDir, cleaned)
	destWithSep := destDir + string(os.PathSeparator)
	if target != destDir && !strings.HasPrefix(target, destWithSep) {
		return "", fmt.Errorf("entry path %q escapes destination", name)
	}
	return target, nil
}

// sanitizeID strips path separators from id so it is safe to use as a
// single path segment under scratchDir.
func sanitizeID(id string) string {
	id = strings.ReplaceAll(id, "/", "_")
	id = strings.ReplaceAll(id, "\\", "_")
	if id == "" {
		id = "archive"
	}
	return id
}
