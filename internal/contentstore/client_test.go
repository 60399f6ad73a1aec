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

package contentstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(gateways ...string) Config {
	cfg := DefaultConfig()
	cfg.Gateways = gateways
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	cfg.AttemptTimeout = time.Second
	return cfg
}

func TestNewClient_RequiresGateway(t *testing.T) {
	client, err := NewClient(Config{})
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestNewClient_DeduplicatesGateways(t *testing.T) {
	cfg := testConfig("https://a.example/", "https://b.example/", "https://a.example/")
	client, err := NewClient(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/", "https://b.example/"}, client.config.Gateways)
}

func TestClient_Fetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	data, err := client.Fetch(context.Background(), "bafyabc")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestClient_Fetch_EmptyBodyRetriesThenFails(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.MaxAttempts = 3
	client, err := NewClient(cfg)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), "bafyabc")
	assert.Error(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestClient_Fetch_4xxIsTerminal(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.MaxAttempts = 5
	client, err := NewClient(cfg)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), "bafyabc")
	assert.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "4xx must not be retried")
}

func TestClient_Fetch_RotatesGateways(t *testing.T) {
	var firstCalls, secondCalls int32
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&firstCalls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&secondCalls, 1)
		_, _ = w.Write([]byte("payload"))
	}))
	defer working.Close()

	client, err := NewClient(testConfig(failing.URL, working.URL))
	require.NoError(t, err)

	data, err := client.Fetch(context.Background(), "bafyabc")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.EqualValues(t, 1, atomic.LoadInt32(&firstCalls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&secondCalls))
}

func TestClient_Fetch_ContextCancellation(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = client.Fetch(ctx, "bafyabc")
	assert.Error(t, err)
}

func TestClient_Upload_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("bafynewcid"))
	}))
	defer server.Close()

	cfg := testConfig("http://example.invalid")
	cfg.PinningServiceURL = server.URL
	cfg.PinningServiceKey = "test-key"
	client, err := NewClient(cfg)
	require.NoError(t, err)

	cid, err := client.Upload(context.Background(), []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, "bafynewcid", cid)
}

func TestClient_Upload_NoRetryOnAuthFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	cfg := testConfig("http://example.invalid")
	cfg.PinningServiceURL = server.URL
	cfg.MaxAttempts = 5
	client, err := NewClient(cfg)
	require.NoError(t, err)

	_, err = client.Upload(context.Background(), []byte("data"))
	assert.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestClient_Upload_RequiresPinningService(t *testing.T) {
	client, err := NewClient(testConfig("http://example.invalid"))
	require.NoError(t, err)

	_, err = client.Upload(context.Background(), []byte("data"))
	assert.Error(t, err)
}
