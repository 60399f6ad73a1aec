// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEnv(t *testing.T, key, value string) {
	t.Helper()
	original, had := os.LookupEnv(key)
	require.NoError(t, os.Setenv(key, value))
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, original)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	withEnv(t, "VERDIKTA_DATA_DIR", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Server.CORS.Enabled)
	assert.Equal(t, []string{"*"}, cfg.Server.CORS.AllowedOrigins)

	assert.Equal(t, 240_000, cfg.Timeouts.RequestTimeoutMS)
	assert.Equal(t, 120_000, cfg.Timeouts.ModelTimeoutMS)
	assert.Equal(t, 45_000, cfg.Timeouts.JustificationTimeoutMS)

	assert.Equal(t, 0.5, cfg.Jury.MinSuccessfulModelsPercent)

	assert.False(t, cfg.TLS.Enabled)
	assert.Equal(t, "self-signed", cfg.TLS.Mode)

	assert.Equal(t, "memory", cfg.CommitStore.Mode)
	assert.Equal(t, int64(3*24*60*60*1000), cfg.CommitStore.TTLMS)

	assert.NotEmpty(t, cfg.ContentStore.Gateways)
	assert.Equal(t, "http://localhost:11434", cfg.Providers.OllamaEndpoint)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	withEnv(t, "VERDIKTA_DATA_DIR", t.TempDir())
	withEnv(t, "VERDIKTA_TIMEOUTS_REQUEST_TIMEOUT_MS", "60000")
	withEnv(t, "VERDIKTA_COMMIT_STORE_MODE", "file")
	withEnv(t, "VERDIKTA_JURY_JUSTIFIER_MODEL", "openai:gpt-4o")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 60000, cfg.Timeouts.RequestTimeoutMS)
	assert.Equal(t, "file", cfg.CommitStore.Mode)
	assert.Equal(t, "openai:gpt-4o", cfg.Jury.JustifierModel)
}

func TestLoad_ConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	withEnv(t, "VERDIKTA_DATA_DIR", dir)

	cfgFile := filepath.Join(dir, "arbiter.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("server:\n  port: 9090\n"), 0o600))

	cfg, err := Load(cfgFile)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_MissingConfigFileIsNotFatal(t *testing.T) {
	withEnv(t, "VERDIKTA_DATA_DIR", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_DataDirIsResolved(t *testing.T) {
	dataDir := t.TempDir()
	withEnv(t, "VERDIKTA_DATA_DIR", dataDir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, dataDir, cfg.DataDir)
}

func TestLoadSecretsFromKeyring_DoesNotOverrideSetValue(t *testing.T) {
	cfg := &Config{}
	cfg.Providers.OpenAIAPIKey = "already-set"

	loadSecretsFromKeyring(cfg)

	assert.Equal(t, "already-set", cfg.Providers.OpenAIAPIKey)
}

func TestLoadSecretsFromKeyring_UnavailableKeyringIsNonFatal(t *testing.T) {
	cfg := &Config{}
	assert.NotPanics(t, func() {
		loadSecretsFromKeyring(cfg)
	})
}
