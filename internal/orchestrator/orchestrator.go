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

// Package orchestrator implements C9: it ties C1-C8 together into the
// nine-step request pipeline of §4.9, including commit/reveal branching
// and scratch-directory lifecycle.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/verdikta/arbiter/internal/archive"
	"github.com/verdikta/arbiter/internal/attachment"
	"github.com/verdikta/arbiter/internal/catwalk"
	"github.com/verdikta/arbiter/internal/commitstore"
	"github.com/verdikta/arbiter/internal/compose"
	"github.com/verdikta/arbiter/internal/errs"
	"github.com/verdikta/arbiter/internal/manifest"
	"github.com/verdikta/arbiter/pkg/jury"
	"github.com/verdikta/arbiter/pkg/observability"
)

// ContentStore is the C1 surface the orchestrator depends on.
// *contentstore.Client satisfies this, and it doubles as manifest.Fetcher.
type ContentStore interface {
	Fetch(ctx context.Context, cid string) ([]byte, error)
	Upload(ctx context.Context, data []byte) (string, error)
}

// JuryEngine is the C7 surface the orchestrator depends on.
// *jury.Engine satisfies this.
type JuryEngine interface {
	Deliberate(ctx context.Context, job jury.Job) (jury.Result, error)
}

// CommitStore is the C8 surface the orchestrator depends on.
// *commitstore.Store satisfies this.
type CommitStore interface {
	Save(hash string, entry commitstore.Entry) error
	Get(hash string) (commitstore.Entry, bool, error)
	Delete(hash string) error
}

// Config bounds the orchestrator's request-wide behavior.
type Config struct {
	// RequestTimeout is the overall deadline (§4.7.6), encompassing
	// ingestion, deliberation, and justification upload.
	RequestTimeout time.Duration
	// ScratchBaseDir is the parent directory under which each request's
	// scratch subdirectory is created (os.MkdirTemp's dir argument).
	ScratchBaseDir string
	Attachment     attachment.Config
}

// DefaultConfig returns the §6 defaults.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 240 * time.Second,
		Attachment:     attachment.DefaultConfig(),
	}
}

// Orchestrator is C9: the only component that knows the end-to-end request
// shape and owns scratch-directory lifecycle.
type Orchestrator struct {
	content ContentStore
	jury    JuryEngine
	commits CommitStore
	config  Config
	tracer  observability.Tracer
	logger  *zap.Logger
}

// New builds an Orchestrator from its already-constructed dependencies.
func New(content ContentStore, juryEngine JuryEngine, commits CommitStore, config Config, tracer observability.Tracer, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &Orchestrator{content: content, jury: juryEngine, commits: commits, config: config, tracer: tracer, logger: logger}
}

// Request is the §6 HTTP request payload, decoded once at the surface.
type Request struct {
	ID   string      `json:"id"`
	Data RequestData `json:"data"`
	Mode *ModeField  `json:"mode,omitempty"`
}

// RequestData carries the CID field, the request's only required datum.
type RequestData struct {
	CID string `json:"cid"`
}

// ModeField distinguishes plain evaluation from commit/reveal mode. It
// unmarshals either the bare string "commit" or an object {"reveal": hash}.
type ModeField struct {
	Commit bool
	Reveal string
}

func (m *ModeField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "commit" {
			return fmt.Errorf("orchestrator: unrecognized mode %q", s)
		}
		m.Commit = true
		return nil
	}

	var obj struct {
		Reveal string `json:"reveal"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("orchestrator: invalid mode field: %w", err)
	}
	if obj.Reveal == "" {
		return fmt.Errorf("orchestrator: reveal mode missing hash")
	}
	m.Reveal = obj.Reveal
	return nil
}

// Response is the sum type of the two success-shaped envelopes (§6);
// errors are returned as *errs.ArbiterError instead and never implement
// this interface.
type Response interface {
	isResponse()
}

// SuccessResponse is the §6 "success" envelope.
type SuccessResponse struct {
	JobRunID   string      `json:"jobRunID"`
	StatusCode int         `json:"statusCode"`
	Status     string      `json:"status"`
	Data       SuccessData `json:"data"`
}

// SuccessData is the aggregated score plus where the justification text
// was uploaded.
type SuccessData struct {
	AggregatedScore   []int  `json:"aggregatedScore"`
	JustificationCID  string `json:"justificationCID"`
}

func (*SuccessResponse) isResponse() {}

// CommitResponse is the §6 "committed" envelope.
type CommitResponse struct {
	JobRunID   string     `json:"jobRunID"`
	StatusCode int        `json:"statusCode"`
	Status     string     `json:"status"`
	Data       CommitData `json:"data"`
}

// CommitData carries only the commit hash; scores and justification stay
// in the commit store until revealed.
type CommitData struct {
	CommitHash string `json:"commitHash"`
}

func (*CommitResponse) isResponse() {}

// pipelineResult is the internal outcome of steps 1-7, before the
// commit/plain branch decides what to expose externally.
type pipelineResult struct {
	aggregatedScore   []int
	justification     string
	justificationCID  string
}

// Evaluate runs the full request pipeline: reveal mode short-circuits to
// the commit store; otherwise it executes all nine steps of §4.9 and,
// depending on req.Mode, either returns the scores directly or commits
// them and returns a hash.
func (o *Orchestrator) Evaluate(ctx context.Context, req Request) (Response, error) {
	if req.Mode != nil && req.Mode.Reveal != "" {
		return o.reveal(req.ID, req.Mode.Reveal)
	}

	ctx, cancel := context.WithTimeout(ctx, o.requestTimeout())
	defer cancel()
	ctx, span := o.tracer.StartSpan(ctx, observability.SpanRequestEvaluate)
	defer o.tracer.EndSpan(span)

	result, err := o.runPipeline(ctx, req)
	if err != nil {
		if ctx.Err() != nil && !isKind(err, errs.InsufficientModels) {
			return nil, errs.Wrap(errs.RequestTimeout, "request deadline exceeded", ctx.Err())
		}
		return nil, err
	}

	if req.Mode != nil && req.Mode.Commit {
		return o.commit(req.ID, result)
	}

	return &SuccessResponse{
		JobRunID:   req.ID,
		StatusCode: 200,
		Status:     "success",
		Data: SuccessData{
			AggregatedScore:  result.aggregatedScore,
			JustificationCID: result.justificationCID,
		},
	}, nil
}

func (o *Orchestrator) requestTimeout() time.Duration {
	if o.config.RequestTimeout <= 0 {
		return 240 * time.Second
	}
	return o.config.RequestTimeout
}

// runPipeline executes steps 1-7 of §4.9: CID parsing, per-CID
// fetch/extract/parse, composition, attachment processing, and
// deliberation, finishing with the justification upload. The scratch
// directory it creates is removed on every exit path, including panics.
func (o *Orchestrator) runPipeline(ctx context.Context, req Request) (pipelineResult, error) {
	cids, addendum, err := splitCIDField(req.Data.CID)
	if err != nil {
		return pipelineResult{}, err
	}

	scratchDir, err := os.MkdirTemp(o.config.ScratchBaseDir, "verdikta-request-*")
	if err != nil {
		return pipelineResult{}, errs.Wrap(errs.Internal, "failed to acquire scratch directory", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(scratchDir); rmErr != nil {
			o.logger.Warn("scratch cleanup failed", zap.String("scratchDir", scratchDir), zap.Error(rmErr))
		}
	}()

	manifests := make([]*manifest.Manifest, 0, len(cids))
	for i, cid := range cids {
		m, err := o.resolveCID(ctx, cid, scratchDir, i)
		if err != nil {
			return pipelineResult{}, err
		}
		manifests = append(manifests, m)
	}

	job, err := compose.Compose(manifests, addendum, o.logger)
	if err != nil {
		return pipelineResult{}, err
	}

	primary := manifests[0]
	refs := make([]manifest.Reference, 0, len(primary.Additional)+len(primary.Support))
	refs = append(refs, primary.Additional...)
	refs = append(refs, primary.Support...)

	provider, model := firstSlotIdentity(job.Jury)
	attachments, _, err := attachment.Process(ctx, refs, provider, model, o.config.Attachment)
	if err != nil {
		return pipelineResult{}, err
	}
	job.Attachments = attachments

	result, err := o.jury.Deliberate(ctx, job.Job)
	if err != nil {
		return pipelineResult{}, err
	}

	scores := make([]int, len(result.Scores))
	for i, s := range result.Scores {
		scores[i] = s.Score
	}

	justificationCID, err := o.content.Upload(ctx, []byte(result.Justification))
	if err != nil {
		return pipelineResult{}, err
	}

	return pipelineResult{
		aggregatedScore:  scores,
		justification:    result.Justification,
		justificationCID: justificationCID,
	}, nil
}

// resolveCID runs one CID through C1.Fetch, C2.Extract, and C3.Parse,
// tagging it with its position for scratch-subdirectory naming.
func (o *Orchestrator) resolveCID(ctx context.Context, cid, scratchDir string, index int) (*manifest.Manifest, error) {
	archiveBytes, err := o.content.Fetch(ctx, cid)
	if err != nil {
		return nil, err
	}

	extractedPath, err := archive.Extract(archiveBytes, scratchDir, fmt.Sprintf("%d-%s", index, cid))
	if err != nil {
		return nil, err
	}

	m, err := manifest.Parse(ctx, extractedPath, o.content)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// firstSlotIdentity returns the provider/model that decides attachment
// processing mode (§4.5's "first jury slot" rule), tolerating an empty
// jury (which manifest defaulting never actually produces).
func firstSlotIdentity(slots []jury.SlotSpec) (catwalk.InferenceProvider, string) {
	if len(slots) == 0 {
		return "", ""
	}
	return catwalk.InferenceProvider(strings.ToLower(slots[0].Provider)), slots[0].Model
}

// splitCIDField parses "cid1[,cid2...][:addendum]" into an ordered,
// trimmed CID list and an optional addendum string (§4.9 steps 1-2).
func splitCIDField(field string) ([]string, string, error) {
	if strings.TrimSpace(field) == "" {
		return nil, "", errs.New(errs.InvalidRequest, "data.cid is required")
	}

	cidPart := field
	addendum := ""
	if idx := strings.Index(field, ":"); idx >= 0 {
		cidPart = field[:idx]
		addendum = field[idx+1:]
	}

	rawCIDs := strings.Split(cidPart, ",")
	cids := make([]string, 0, len(rawCIDs))
	for _, c := range rawCIDs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		cids = append(cids, c)
	}
	if len(cids) == 0 {
		return nil, "", errs.New(errs.InvalidRequest, "data.cid contains no CIDs")
	}
	return cids, addendum, nil
}

// commit computes the §4.8 commit hash over the pipeline result, saves it,
// and returns only the hash (step: "mode=commit").
func (o *Orchestrator) commit(jobRunID string, result pipelineResult) (Response, error) {
	payload, err := json.Marshal(struct {
		AggregatedScore  []int  `json:"aggregatedScore"`
		Justification    string `json:"justification"`
		JustificationCID string `json:"justificationCID"`
	}{
		AggregatedScore:  result.aggregatedScore,
		Justification:    result.justification,
		JustificationCID: result.justificationCID,
	})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to marshal commit payload", err)
	}

	hash := commitHash(payload)
	if err := o.commits.Save(hash, commitstore.Entry{Payload: payload, Created: time.Now()}); err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to save commit", err)
	}

	return &CommitResponse{
		JobRunID:   jobRunID,
		StatusCode: 200,
		Status:     "committed",
		Data:       CommitData{CommitHash: hash},
	}, nil
}

// reveal looks up a prior commit and deletes it on success (steps
// "mode=reveal(hash)"), skipping the entire ingestion/deliberation pipeline.
func (o *Orchestrator) reveal(jobRunID, hash string) (Response, error) {
	entry, ok, err := o.commits.Get(hash)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to read commit store", err)
	}
	if !ok {
		return nil, errs.New(errs.CommitNotFound, fmt.Sprintf("no commit found for hash %q", hash))
	}

	var payload struct {
		AggregatedScore  []int  `json:"aggregatedScore"`
		JustificationCID string `json:"justificationCID"`
	}
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to decode stored commit payload", err)
	}

	if err := o.commits.Delete(hash); err != nil {
		o.logger.Warn("commit delete-after-reveal failed", zap.String("hash", hash), zap.Error(err))
	}

	return &SuccessResponse{
		JobRunID:   jobRunID,
		StatusCode: 200,
		Status:     "success",
		Data: SuccessData{
			AggregatedScore:  payload.AggregatedScore,
			JustificationCID: payload.JustificationCID,
		},
	}, nil
}

// commitHash renders the first 16 bytes of a sha256 digest over payload as
// hex, per §4.8's "16-byte key".
func commitHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:16])
}

// isKind reports whether err is an *errs.ArbiterError of the given kind.
func isKind(err error, kind errs.Kind) bool {
	var ae *errs.ArbiterError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Kind == kind
}
