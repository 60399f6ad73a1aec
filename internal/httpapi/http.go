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

// Package httpapi is C10: the plain net/http surface fronting the
// orchestrator. It has no business logic of its own beyond request
// decoding, error-envelope shaping, and CORS/lifecycle plumbing.
package httpapi

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/verdikta/arbiter/internal/errs"
	"github.com/verdikta/arbiter/internal/orchestrator"
)

// Evaluator is the C9 surface this server depends on. *orchestrator.Orchestrator
// satisfies this.
type Evaluator interface {
	Evaluate(ctx context.Context, req orchestrator.Request) (orchestrator.Response, error)
}

// ReadinessChecker reports whether downstream dependencies (content-store
// gateways, primarily) are reachable. A nil checker makes /ready always
// succeed.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig returns a permissive CORS configuration.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:         86400,
	}
}

// Server is the HTTP surface: POST /evaluate, GET /health, GET /ready.
type Server struct {
	evaluator  Evaluator
	readiness  ReadinessChecker
	httpServer *http.Server
	logger     *zap.Logger
	corsConfig CORSConfig
}

// SetTLSConfig arms the server to terminate TLS on the next Start call.
// Passing nil reverts the server to plain HTTP.
func (s *Server) SetTLSConfig(tlsConfig *tls.Config) {
	s.httpServer.TLSConfig = tlsConfig
}

// New builds a Server listening on addr. readiness may be nil.
func New(addr string, evaluator Evaluator, readiness ReadinessChecker, corsConfig CORSConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		evaluator:  evaluator,
		readiness:  readiness,
		logger:     logger,
		corsConfig: corsConfig,
		httpServer: &http.Server{
			Addr:         addr,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 300 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/evaluate", s.handleEvaluate)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)

	var handler http.Handler = mux
	if corsConfig.Enabled {
		handler = s.corsMiddleware(mux)
	}
	s.httpServer.Handler = handler
	return s
}

// Start runs the HTTP server until it is stopped or fails. If SetTLSConfig
// was called with a non-nil config, the server terminates TLS in place;
// the certificate and key files are ignored since GetCertificate supplies
// the certificate dynamically.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr), zap.Bool("tls", s.httpServer.TLSConfig != nil))
	var err error
	if s.httpServer.TLSConfig != nil {
		err = s.httpServer.ListenAndServeTLS("", "")
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down, honoring ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req orchestrator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "", errs.New(errs.InvalidRequest, "malformed request body: "+err.Error()))
		return
	}

	resp, err := s.evaluator.Evaluate(r.Context(), req)
	if err != nil {
		s.logger.Warn("evaluate failed", zap.String("jobRunID", req.ID), zap.Error(err))
		writeError(w, req.ID, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.readiness == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	if err := s.readiness.Ready(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// errorResponse is the §6 error envelope.
type errorResponse struct {
	JobRunID   string      `json:"jobRunID"`
	StatusCode int         `json:"statusCode"`
	Status     string      `json:"status"`
	Error      errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    errs.Kind              `json:"kind"`
	Message string                 `json:"message"`
	Detail  map[string]interface{} `json:"detail,omitempty"`
}

func writeError(w http.ResponseWriter, jobRunID string, err error) {
	var ae *errs.ArbiterError
	if !errors.As(err, &ae) {
		ae = errs.Wrap(errs.Internal, "unexpected internal error", err)
	}

	status := errs.HTTPStatus(ae.Kind)
	writeJSON(w, status, errorResponse{
		JobRunID:   jobRunID,
		StatusCode: status,
		Status:     "errored",
		Error: errorDetail{
			Kind:    ae.Kind,
			Message: ae.Message,
			Detail:  ae.Detail,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// corsMiddleware adds CORS headers to HTTP responses, ported from the
// gateway's CORS handling for a plain net/http.ServeMux.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed := s.allowedOrigin(origin); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
		}
		if s.corsConfig.AllowCredentials {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		setJoinedHeader(w, "Access-Control-Allow-Methods", s.corsConfig.AllowedMethods)
		setJoinedHeader(w, "Access-Control-Allow-Headers", s.corsConfig.AllowedHeaders)
		setJoinedHeader(w, "Access-Control-Expose-Headers", s.corsConfig.ExposedHeaders)
		if s.corsConfig.MaxAge > 0 {
			w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", s.corsConfig.MaxAge))
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) string {
	if origin == "" {
		return ""
	}
	for _, allowed := range s.corsConfig.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return allowed
		}
	}
	return ""
}

func setJoinedHeader(w http.ResponseWriter, header string, values []string) {
	if len(values) == 0 {
		return
	}
	joined := values[0]
	for _, v := range values[1:] {
		joined += ", " + v
	}
	w.Header().Set(header, joined)
}
