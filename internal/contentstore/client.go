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

// Package contentstore is the resilient content-addressed fetch/upload
// client (§4.1): CID-keyed retrieval across an ordered gateway list with
// backoff and retry, and pinning-service upload (used for the justification
// text).
package contentstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/verdikta/arbiter/internal/errs"
	"github.com/verdikta/arbiter/internal/slice"
)

// Config configures gateway fallback, backoff, and pinning-service
// credentials for one Client.
type Config struct {
	// Gateways is the ordered list of gateway base URLs, each expected to
	// accept a CID appended as a path segment. Must be non-empty.
	Gateways []string

	// PinningServiceURL is the upload endpoint of the configured pinning
	// service.
	PinningServiceURL string

	// PinningServiceKey is the bearer credential sent with uploads.
	PinningServiceKey string

	// MaxAttempts is the number of fetch attempts before giving up.
	// Default: 5.
	MaxAttempts int

	// AttemptTimeout bounds a single HTTP round trip.
	// Default: 30s.
	AttemptTimeout time.Duration

	// InitialBackoff is the first retry delay.
	// Default: 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff delay.
	// Default: 15s.
	MaxBackoff time.Duration

	Logger *zap.Logger
}

// DefaultConfig returns the §4.1 defaults with no gateways or credentials
// configured; callers must set Gateways before use.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    5,
		AttemptTimeout: 30 * time.Second,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     15 * time.Second,
		Logger:         zap.NewNop(),
	}
}

// Client fetches and uploads content-addressed payloads.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a Client. Returns an error if config.Gateways is empty.
func NewClient(config Config) (*Client, error) {
	config.Gateways = slice.Unique(config.Gateways)
	if len(config.Gateways) == 0 {
		return nil, fmt.Errorf("contentstore: at least one gateway is required")
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.AttemptTimeout <= 0 {
		config.AttemptTimeout = 30 * time.Second
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = 1 * time.Second
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 15 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{},
		logger:     logger,
	}, nil
}

// Fetch retrieves the bytes addressed by cid, rotating across the
// configured gateway list on each attempt (attempt i uses
// gateways[(i-1) mod len(gateways)]).
func (c *Client) Fetch(ctx context.Context, cid string) ([]byte, error) {
	n := len(c.config.Gateways)
	attempt := 0
	var result []byte

	operation := func() error {
		gateway := c.config.Gateways[attempt%n]
		attempt++

		attemptCtx, cancel := context.WithTimeout(ctx, c.config.AttemptTimeout)
		defer cancel()

		body, err := c.fetchOnce(attemptCtx, gateway, cid)
		if err != nil {
			return err
		}
		result = body
		return nil
	}

	if err := c.retry(ctx, operation); err != nil {
		return nil, errs.Wrap(errs.ContentStoreUnavailable, fmt.Sprintf("fetch %s", cid), err)
	}
	return result, nil
}

func (c *Client) fetchOnce(ctx context.Context, gateway, cid string) ([]byte, error) {
	url := strings.TrimRight(gateway, "/") + "/" + cid
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("timeout fetching from %s: %w", gateway, ctx.Err())
		}
		return nil, fmt.Errorf("network error fetching from %s: %w", gateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, backoff.Permanent(fmt.Errorf("gateway %s returned %d", gateway, resp.StatusCode))
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("gateway %s returned %d", gateway, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body from %s: %w", gateway, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response body from %s", gateway)
	}
	return data, nil
}

// Upload pins data with the configured pinning service and returns its CID.
func (c *Client) Upload(ctx context.Context, data []byte) (string, error) {
	if c.config.PinningServiceURL == "" {
		return "", errs.New(errs.ContentStoreUnavailable, "no pinning service configured")
	}

	var cid string
	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.config.AttemptTimeout)
		defer cancel()

		result, err := c.uploadOnce(attemptCtx, data)
		if err != nil {
			return err
		}
		cid = result
		return nil
	}

	if err := c.retry(ctx, operation); err != nil {
		return "", errs.Wrap(errs.ContentStoreUnavailable, "upload", err)
	}
	return cid, nil
}

func (c *Client) uploadOnce(ctx context.Context, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.PinningServiceURL, bytes.NewReader(data))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.PinningServiceKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("timeout uploading: %w", ctx.Err())
		}
		return "", fmt.Errorf("network error uploading: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", backoff.Permanent(fmt.Errorf("pinning service auth failed: %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return "", backoff.Permanent(fmt.Errorf("pinning service returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("pinning service returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading pinning response: %w", err)
	}
	cid := strings.TrimSpace(string(body))
	if cid == "" {
		return "", fmt.Errorf("empty CID in pinning response")
	}
	return cid, nil
}

// retry runs operation with the §4.1 backoff policy: initial 1s, factor 2,
// cap 15s, ±50% jitter, MaxAttempts total tries. A backoff.Permanent error
// (HTTP 4xx, or 401/403 on upload) stops retrying immediately.
func (c *Client) retry(ctx context.Context, operation backoff.Operation) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.config.InitialBackoff
	exp.MaxInterval = c.config.MaxBackoff
	exp.Multiplier = 2
	exp.RandomizationFactor = 0.5
	exp.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.config.MaxAttempts-1)), ctx)

	err := backoff.Retry(operation, policy)
	if err == nil {
		return nil
	}
	var permErr *backoff.PermanentError
	if errors.As(err, &permErr) {
		return permErr.Unwrap()
	}
	return err
}
