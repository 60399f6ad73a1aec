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
package jury

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/verdikta/arbiter/pkg/llm"
)

// RetryConfig configures retry-with-backoff around one provider call.
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig mirrors §4.1's content-store backoff shape, scaled down
// for a per-slot call budget that must still fit inside the slot deadline.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        4 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// callWithRetry retries fn on PROVIDER_UNAVAILABLE and PROVIDER_TIMEOUT
// errors using exponential backoff, and consults cb before each attempt.
// PROVIDER_AUTH and PROVIDER_INVALID_INPUT are never retried.
func callWithRetry(ctx context.Context, cfg RetryConfig, cb *CircuitBreaker, logger *zap.Logger, fn func() (string, error)) (string, error) {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	backoff := cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if !cb.AllowRequest() {
			return "", &llm.Error{Kind: llm.ErrProviderUnavailable, Cause: errors.New("circuit breaker open")}
		}
		text, err := fn()
		if err == nil {
			cb.RecordSuccess()
			return text, nil
		}
		lastErr = err
		if isRetryable(err) {
			cb.RecordFailure()
		}

		if !isRetryable(err) || attempt == maxAttempts {
			break
		}

		logger.Debug("retrying provider call", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-time.After(backoff):
			backoff = time.Duration(math.Min(float64(backoff)*cfg.BackoffMultiplier, float64(cfg.MaxBackoff)))
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return "", lastErr
}

func isRetryable(err error) bool {
	var e *llm.Error
	if errors.As(err, &e) {
		return e.Kind == llm.ErrProviderUnavailable || e.Kind == llm.ErrProviderTimeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}
