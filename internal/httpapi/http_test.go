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

package httpapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdikta/arbiter/internal/errs"
	"github.com/verdikta/arbiter/internal/orchestrator"
)

type fakeEvaluator struct {
	resp orchestrator.Response
	err  error
}

func (f *fakeEvaluator) Evaluate(_ context.Context, _ orchestrator.Request) (orchestrator.Response, error) {
	return f.resp, f.err
}

type fakeReadiness struct {
	err error
}

func (f *fakeReadiness) Ready(_ context.Context) error {
	return f.err
}

func TestHandleEvaluate_Success(t *testing.T) {
	resp := &orchestrator.SuccessResponse{
		JobRunID:   "job-1",
		StatusCode: 200,
		Status:     "success",
		Data:       orchestrator.SuccessData{AggregatedScore: []int{1000000}, JustificationCID: "cid"},
	}
	srv := New(":0", &fakeEvaluator{resp: resp}, nil, DefaultCORSConfig(), nil)

	body, _ := json.Marshal(map[string]interface{}{"id": "job-1", "data": map[string]string{"cid": "cid1"}})
	req := httptest.NewRequest(http.MethodPost, "/evaluate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var decoded orchestrator.SuccessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Equal(t, "job-1", decoded.JobRunID)
	assert.Equal(t, []int{1000000}, decoded.Data.AggregatedScore)
}

func TestHandleEvaluate_ErrorEnvelope(t *testing.T) {
	srv := New(":0", &fakeEvaluator{err: errs.New(errs.InsufficientModels, "quorum not met")}, nil, DefaultCORSConfig(), nil)

	body, _ := json.Marshal(map[string]interface{}{"id": "job-2", "data": map[string]string{"cid": "cid1"}})
	req := httptest.NewRequest(http.MethodPost, "/evaluate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var decoded errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Equal(t, "job-2", decoded.JobRunID)
	assert.Equal(t, errs.InsufficientModels, decoded.Error.Kind)
}

func TestHandleEvaluate_NonArbiterErrorMapsToInternal(t *testing.T) {
	srv := New(":0", &fakeEvaluator{err: errors.New("boom")}, nil, DefaultCORSConfig(), nil)

	body, _ := json.Marshal(map[string]interface{}{"id": "job-3", "data": map[string]string{"cid": "cid1"}})
	req := httptest.NewRequest(http.MethodPost, "/evaluate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var decoded errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Equal(t, errs.Internal, decoded.Error.Kind)
}

func TestHandleEvaluate_MalformedBody(t *testing.T) {
	srv := New(":0", &fakeEvaluator{}, nil, DefaultCORSConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/evaluate", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEvaluate_WrongMethod(t *testing.T) {
	srv := New(":0", &fakeEvaluator{}, nil, DefaultCORSConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/evaluate", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv := New(":0", &fakeEvaluator{}, nil, DefaultCORSConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestHandleReady_NilCheckerAlwaysReady(t *testing.T) {
	srv := New(":0", &fakeEvaluator{}, nil, DefaultCORSConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleReady_FailingChecker(t *testing.T) {
	srv := New(":0", &fakeEvaluator{}, &fakeReadiness{err: errors.New("all gateways down")}, DefaultCORSConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSMiddleware_PreflightRequest(t *testing.T) {
	srv := New(":0", &fakeEvaluator{}, nil, DefaultCORSConfig(), nil)

	req := httptest.NewRequest(http.MethodOptions, "/evaluate", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSetTLSConfig_ArmsServer(t *testing.T) {
	srv := New(":0", &fakeEvaluator{}, nil, DefaultCORSConfig(), nil)
	assert.Nil(t, srv.httpServer.TLSConfig)

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	srv.SetTLSConfig(tlsConfig)
	assert.Same(t, tlsConfig, srv.httpServer.TLSConfig)

	srv.SetTLSConfig(nil)
	assert.Nil(t, srv.httpServer.TLSConfig)
}
