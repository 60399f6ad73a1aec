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

// Package config loads process configuration from flags, a config file,
// environment variables (VERDIKTA_* prefix), and the system keyring, in
// that priority order, per §6's enumerated environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"

	verdiktapaths "github.com/verdikta/arbiter/pkg/config"
)

// ServiceName is the keyring service under which provider credentials are
// stored.
const ServiceName = "verdikta-arbiter"

// DefaultConfigFileName is the config file basename (without extension)
// searched for in the standard locations.
const DefaultConfigFileName = "arbiter"

// Config holds all process configuration. Priority: CLI flags > config
// file > environment variables > defaults.
type Config struct {
	DataDir string `mapstructure:"-"`

	Server        ServerConfig        `mapstructure:"server"`
	TLS           TLSConfig           `mapstructure:"tls"`
	Timeouts      TimeoutsConfig      `mapstructure:"timeouts"`
	Jury          JuryConfig          `mapstructure:"jury"`
	ContentStore  ContentStoreConfig  `mapstructure:"content_store"`
	Providers     ProvidersConfig     `mapstructure:"providers"`
	CommitStore   CommitStoreConfig   `mapstructure:"commit_store"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// TLSConfig controls whether the HTTP surface terminates TLS, and how it
// sources its certificate. Mode "self-signed" needs no further settings;
// mode "manual" requires CertFile/KeyFile.
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Mode     string `mapstructure:"mode"` // manual | self-signed
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
	CAFile   string `mapstructure:"ca_file"`
}

// ServerConfig holds the HTTP surface's listen address and CORS policy.
type ServerConfig struct {
	Host string           `mapstructure:"host"`
	Port int              `mapstructure:"port"`
	CORS CORSServerConfig `mapstructure:"cors"`
}

// CORSServerConfig mirrors internal/httpapi.CORSConfig as a serializable
// shape; cmd/verdiktad translates it at wiring time.
type CORSServerConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// TimeoutsConfig holds the §6-enumerated deadline knobs, all in milliseconds
// on the wire (mapstructure tags match the *_MS env var names once
// lower-cased by viper's env binding).
type TimeoutsConfig struct {
	RequestTimeoutMS       int `mapstructure:"request_timeout_ms"`
	ModelTimeoutMS         int `mapstructure:"model_timeout_ms"`
	JustificationTimeoutMS int `mapstructure:"justification_timeout_ms"`
}

// JuryConfig holds the jury engine's configurable quorum and justifier
// identity.
type JuryConfig struct {
	MinSuccessfulModelsPercent float64 `mapstructure:"min_successful_models_percent"`
	JustifierModel             string  `mapstructure:"justifier_model"` // "provider:model"
}

// ContentStoreConfig holds the C1 gateway list and pinning-service
// credentials (credentials loaded from keyring if not set here).
type ContentStoreConfig struct {
	Gateways          []string `mapstructure:"gateways"`
	PinningServiceURL string   `mapstructure:"pinning_service_url"`
	PinningServiceKey string   `mapstructure:"pinning_service_key"` // from CLI/env/keyring only
}

// ProvidersConfig holds per-provider credentials, loaded from keyring if
// not set via CLI/env/config file.
type ProvidersConfig struct {
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	XAIAPIKey       string `mapstructure:"xai_api_key"`
	OllamaEndpoint  string `mapstructure:"ollama_endpoint"`

	BedrockRegion          string `mapstructure:"bedrock_region"`
	BedrockAccessKeyID     string `mapstructure:"bedrock_access_key_id"`
	BedrockSecretAccessKey string `mapstructure:"bedrock_secret_access_key"`
	BedrockSessionToken    string `mapstructure:"bedrock_session_token"`
}

// CommitStoreConfig holds C8's durability mode and TTL.
type CommitStoreConfig struct {
	Mode  string `mapstructure:"mode"` // memory | file
	Path  string `mapstructure:"path"`
	TTLMS int64  `mapstructure:"ttl_ms"`
}

// LoggingConfig holds zap's level/format knobs.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig holds the OTLP exporter endpoint. Empty Endpoint
// means traces are tracked locally but never exported.
type ObservabilityConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"otlp_endpoint"`
	Insecure bool   `mapstructure:"otlp_insecure"`
}

// Load reads configuration from cfgFile (if non-empty), the standard
// search paths, environment variables under the VERDIKTA_ prefix, and
// finally the system keyring for any credential still unset. Each call
// uses a fresh *viper.Viper so tests can invoke it repeatedly without
// leaking state between env-var fixtures.
func Load(cfgFile string) (*Config, error) {
	return LoadFromViper(viper.New(), cfgFile)
}

// LoadFromViper runs the same layered load as Load but against a
// caller-supplied *viper.Viper. cmd/verdiktad uses this with a viper
// instance that already has CLI flags bound via BindPFlag, so flags take
// priority over the config file and environment, per the documented
// CLI > file > env > defaults order.
func LoadFromViper(v *viper.Viper, cfgFile string) (*Config, error) {
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(verdiktapaths.GetDataDir())
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/verdikta/")
		v.SetConfigName(DefaultConfigFileName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix("VERDIKTA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.DataDir = verdiktapaths.GetDataDir()

	loadSecretsFromKeyring(&cfg)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.enabled", true)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("server.cors.allowed_headers", []string{"*"})
	v.SetDefault("server.cors.exposed_headers", []string{"Content-Length", "Content-Type"})
	v.SetDefault("server.cors.max_age", 86400)

	v.SetDefault("tls.enabled", false)
	v.SetDefault("tls.mode", "self-signed")

	v.SetDefault("timeouts.request_timeout_ms", 240_000)
	v.SetDefault("timeouts.model_timeout_ms", 120_000)
	v.SetDefault("timeouts.justification_timeout_ms", 45_000)

	v.SetDefault("jury.min_successful_models_percent", 0.5)
	v.SetDefault("jury.justifier_model", "")

	// Keys with no default are unknown to viper, and AutomaticEnv values
	// for unknown keys are not picked up by Unmarshal; register the
	// credential keys so their VERDIKTA_* env vars take effect.
	v.SetDefault("content_store.pinning_service_url", "")
	v.SetDefault("content_store.pinning_service_key", "")
	v.SetDefault("providers.openai_api_key", "")
	v.SetDefault("providers.anthropic_api_key", "")
	v.SetDefault("providers.xai_api_key", "")
	v.SetDefault("providers.bedrock_access_key_id", "")
	v.SetDefault("providers.bedrock_secret_access_key", "")
	v.SetDefault("providers.bedrock_session_token", "")

	v.SetDefault("content_store.gateways", []string{
		"https://ipfs.io/ipfs/",
		"https://cloudflare-ipfs.com/ipfs/",
		"https://gateway.pinata.cloud/ipfs/",
	})

	v.SetDefault("providers.ollama_endpoint", "http://localhost:11434")
	v.SetDefault("providers.bedrock_region", "us-east-1")

	v.SetDefault("commit_store.mode", "memory")
	v.SetDefault("commit_store.path", "")
	v.SetDefault("commit_store.ttl_ms", int64(3*24*60*60*1000))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("observability.enabled", false)
	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_insecure", true)
}

// secretMapping describes one credential loadable from the keyring when
// absent from CLI/env/config-file sources.
type secretMapping struct {
	keyringKey string
	isSet      func(*Config) bool
	setter     func(*Config, string)
}

func secretMappings() []secretMapping {
	return []secretMapping{
		{"openai_api_key", func(c *Config) bool { return c.Providers.OpenAIAPIKey != "" }, func(c *Config, v string) { c.Providers.OpenAIAPIKey = v }},
		{"anthropic_api_key", func(c *Config) bool { return c.Providers.AnthropicAPIKey != "" }, func(c *Config, v string) { c.Providers.AnthropicAPIKey = v }},
		{"xai_api_key", func(c *Config) bool { return c.Providers.XAIAPIKey != "" }, func(c *Config, v string) { c.Providers.XAIAPIKey = v }},
		{"bedrock_access_key_id", func(c *Config) bool { return c.Providers.BedrockAccessKeyID != "" }, func(c *Config, v string) { c.Providers.BedrockAccessKeyID = v }},
		{"bedrock_secret_access_key", func(c *Config) bool { return c.Providers.BedrockSecretAccessKey != "" }, func(c *Config, v string) { c.Providers.BedrockSecretAccessKey = v }},
		{"bedrock_session_token", func(c *Config) bool { return c.Providers.BedrockSessionToken != "" }, func(c *Config, v string) { c.Providers.BedrockSessionToken = v }},
		{"ipfs_pinning_key", func(c *Config) bool { return c.ContentStore.PinningServiceKey != "" }, func(c *Config, v string) { c.ContentStore.PinningServiceKey = v }},
	}
}

// loadSecretsFromKeyring fills in any credential not already set.
// Non-fatal: the keyring may be unavailable in headless/CI environments,
// in which case callers fall back to CLI/env-supplied credentials.
func loadSecretsFromKeyring(cfg *Config) {
	for _, m := range secretMappings() {
		if m.isSet(cfg) {
			continue
		}
		value, err := keyring.Get(ServiceName, m.keyringKey)
		if err == nil && value != "" {
			m.setter(cfg, value)
		}
	}
}

// SaveSecret stores a credential in the system keyring under this
// service's namespace.
func SaveSecret(key, value string) error {
	return keyring.Set(ServiceName, key, value)
}
