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

// Package attachment normalizes manifest-referenced blobs into the
// provider-agnostic attachment shape the jury engine consumes (§4.5).
//
// Processing mode (native binary document vs. extracted text) is decided
// once, from the first jury slot's provider and model only, exactly as
// specified — a known limitation for mixed-capability juries: a secondary
// slot that could have consumed the native binary instead receives
// extracted text, and vice versa.
package attachment

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/richardlehane/mscfb"
	"github.com/richardlehane/msoleps"
	"go.uber.org/zap"

	"github.com/verdikta/arbiter/internal/catwalk"
	"github.com/verdikta/arbiter/internal/errs"
	"github.com/verdikta/arbiter/internal/fsext"
	"github.com/verdikta/arbiter/internal/manifest"
	"github.com/verdikta/arbiter/pkg/llm"
)

// Config bounds attachment processing per §4.5.
type Config struct {
	MaxImageBytes         int64
	MaxDocumentInputBytes int64
	MaxExtractedChars     int
	PerFileTimeout        time.Duration
	Logger                *zap.Logger
}

// DefaultConfig returns the §4.5 defaults.
func DefaultConfig() Config {
	return Config{
		MaxImageBytes:         20 * 1024 * 1024,
		MaxDocumentInputBytes: 50 * 1024 * 1024,
		MaxExtractedChars:     100_000,
		PerFileTimeout:        60 * time.Second,
		Logger:                zap.NewNop(),
	}
}

// Skip records an attachment that was silently dropped rather than
// surfaced as an error, per §4.5's "skip the attachment entirely" rule for
// unrecoverable binary-only extraction failures.
type Skip struct {
	Name   string
	Reason string
}

var imageMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Process normalizes refs (manifest additional/support entries, already
// resolved to local paths) into jury-ready attachments. provider/model
// identify the first jury slot, whose capability row decides the
// processing mode for every attachment.
func Process(ctx context.Context, refs []manifest.Reference, provider catwalk.InferenceProvider, model string, cfg Config) ([]llm.Attachment, []Skip, error) {
	nativeDocuments := false
	if m, ok := catwalk.LookupModel(provider, model); ok {
		nativeDocuments = m.SupportsNativeDocument
	}

	var out []llm.Attachment
	var skips []Skip

	for _, ref := range refs {
		att, skip, err := processOne(ctx, ref, nativeDocuments, cfg)
		if err != nil {
			return nil, nil, err
		}
		if skip != nil {
			skips = append(skips, *skip)
			cfg.logger().Warn("skipped attachment", zap.String("name", ref.Name), zap.String("reason", skip.Reason))
			continue
		}
		out = append(out, *att)
	}
	return out, skips, nil
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func processOne(ctx context.Context, ref manifest.Reference, nativeDocuments bool, cfg Config) (*llm.Attachment, *Skip, error) {
	info, err := os.Stat(ref.LocalPath)
	if err != nil {
		return nil, nil, errs.Wrap(errs.AttachmentUnreadable, fmt.Sprintf("stat attachment %q", ref.Name), err)
	}

	mediaType := detectMediaType(ref)

	if imageMediaTypes[mediaType] {
		if info.Size() > cfg.MaxImageBytes {
			return nil, nil, errs.New(errs.AttachmentTooLarge, fmt.Sprintf("image %q exceeds %d bytes", ref.Name, cfg.MaxImageBytes))
		}
		data, err := os.ReadFile(ref.LocalPath)
		if err != nil {
			return nil, nil, errs.Wrap(errs.AttachmentUnreadable, fmt.Sprintf("reading image %q", ref.Name), err)
		}
		return &llm.Attachment{
			Kind:      "image",
			MediaType: mediaType,
			Content:   dataURI(mediaType, data),
		}, nil, nil
	}

	if info.Size() > cfg.MaxDocumentInputBytes {
		return nil, nil, errs.New(errs.AttachmentTooLarge, fmt.Sprintf("document %q exceeds %d bytes", ref.Name, cfg.MaxDocumentInputBytes))
	}

	if nativeDocuments && isBinaryOnlyFormat(mediaType) {
		data, err := os.ReadFile(ref.LocalPath)
		if err != nil {
			return nil, nil, errs.Wrap(errs.AttachmentUnreadable, fmt.Sprintf("reading document %q", ref.Name), err)
		}
		return &llm.Attachment{
			Kind:      "document",
			MediaType: mediaType,
			Content:   dataURI(mediaType, data),
		}, nil, nil
	}

	text, err := extractWithTimeout(ctx, ref.LocalPath, mediaType, cfg.PerFileTimeout)
	if err != nil {
		if isBinaryOnlyFormat(mediaType) {
			return nil, &Skip{Name: ref.Name, Reason: err.Error()}, nil
		}
		return nil, nil, errs.Wrap(errs.AttachmentUnreadable, fmt.Sprintf("extracting text from %q", ref.Name), err)
	}

	if len(text) > cfg.MaxExtractedChars {
		text = text[:cfg.MaxExtractedChars] + fmt.Sprintf("\n[truncated: extracted text exceeded the %d character limit]", cfg.MaxExtractedChars)
	}

	return &llm.Attachment{
		Kind:      "text",
		MediaType: mediaType,
		Content:   text,
	}, nil, nil
}

func detectMediaType(ref manifest.Reference) string {
	if ref.Type != "" && strings.Contains(ref.Type, "/") {
		return ref.Type
	}
	if ext := fsext.Ext(ref.LocalPath); ext != "" {
		if mt := mime.TypeByExtension(ext); mt != "" {
			return strings.SplitN(mt, ";", 2)[0]
		}
	}
	f, err := os.Open(ref.LocalPath)
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	return http.DetectContentType(buf[:n])
}

func dataURI(mediaType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(data))
}

func isBinaryOnlyFormat(mediaType string) bool {
	switch mediaType {
	case "application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return true
	default:
		return false
	}
}

// extractWithTimeout bounds one file's extraction to timeout, matching the
// jury engine's per-slot context.WithTimeout idiom.
func extractWithTimeout(ctx context.Context, path, mediaType string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := extractText(path, mediaType)
		done <- result{text, err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("extraction of %s timed out: %w", fsext.Base(path), ctx.Err())
	case r := <-done:
		return r.text, r.err
	}
}

var (
	htmlTagPattern = regexp.MustCompile(`(?s)<script.*?</script>|<style.*?</style>|<[^>]+>`)
	rtfGroupSkip   = regexp.MustCompile(`\\[a-z]+-?\d* ?|[{}]`)
)

func extractText(path, mediaType string) (string, error) {
	switch {
	case mediaType == "text/html":
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(htmlTagPattern.ReplaceAllString(string(raw), " ")), nil

	case mediaType == "application/rtf" || mediaType == "text/rtf":
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(rtfGroupSkip.ReplaceAllString(string(raw), " ")), nil

	case mediaType == "application/pdf":
		return extractPDF(path)

	case mediaType == "application/msword":
		return extractLegacyDoc(path)

	case mediaType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return extractDocx(path)

	case strings.HasPrefix(mediaType, "text/") || mediaType == "application/json":
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(raw), nil

	default:
		return extractUnknown(path)
	}
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("pdf: opening: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf: extracting text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("pdf: reading extracted text: %w", err)
	}
	return buf.String(), nil
}

// extractLegacyDoc pulls the WordDocument stream out of the OLE compound
// file and recovers printable runs heuristically; legacy binary .doc has
// no simple plain-text layer the way OOXML does.
func extractLegacyDoc(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	doc, err := mscfb.New(f)
	if err != nil {
		return "", fmt.Errorf("doc: opening compound file: %w", err)
	}

	var wordStream []byte
	var title string
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case "WordDocument":
			buf := make([]byte, entry.Size)
			_, _ = doc.Read(buf)
			wordStream = buf
		case "\x05SummaryInformation":
			buf := make([]byte, entry.Size)
			_, _ = doc.Read(buf)
			title = summaryTitle(buf)
		}
	}

	if wordStream == nil {
		return "", fmt.Errorf("doc: no WordDocument stream found")
	}

	text := heuristicPrintableText(wordStream)
	if title != "" {
		text = title + "\n\n" + text
	}
	return text, nil
}

// summaryTitle pulls the document title out of a raw OLE
// "\x05SummaryInformation" property-set stream, if present. The property
// set itself is parsed by msoleps; any failure just means no title prefix
// is prepended, which is cosmetic, not an extraction error.
func summaryTitle(raw []byte) string {
	props, err := msoleps.New(bytes.NewReader(raw))
	if err != nil || len(props.Property) == 0 {
		return ""
	}
	for _, p := range props.Property {
		if p == nil {
			continue
		}
		if strings.EqualFold(p.Name, "Title") {
			return strings.TrimSpace(fmt.Sprintf("%v", p.Value()))
		}
	}
	return ""
}

func extractDocx(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docx: not a valid zip: %w", err)
	}
	for _, f := range reader.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			return "", err
		}
		return strings.TrimSpace(htmlTagPattern.ReplaceAllString(buf.String(), " ")), nil
	}
	return "", fmt.Errorf("docx: word/document.xml not found")
}

func extractUnknown(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, 5000)
	n, _ := f.Read(buf)
	buf = buf[:n]

	nullCount := bytes.Count(buf, []byte{0})
	if nullCount > 5 {
		return "", fmt.Errorf("unknown type: heuristic UTF-8 sniff failed (%d null bytes in first %d)", nullCount, n)
	}
	return string(buf), nil
}

// heuristicPrintableText collapses runs of non-printable bytes in a raw
// binary stream to whitespace, keeping only printable ASCII (0x20-0x7e);
// non-ASCII bytes are dropped. This is a best-effort fallback, not a real binary
// Word-format parser.
func heuristicPrintableText(data []byte) string {
	var b strings.Builder
	lastWasSpace := true
	for _, c := range data {
		printable := c >= 0x20 && c < 0x7f
		if printable {
			b.WriteByte(c)
			lastWasSpace = c == ' '
			continue
		}
		if !lastWasSpace {
			b.WriteByte(' ')
			lastWasSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}
