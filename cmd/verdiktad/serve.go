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
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	verdiktaconfig "github.com/verdikta/arbiter/internal/config"
	"github.com/verdikta/arbiter/internal/contentstore"
	"github.com/verdikta/arbiter/internal/fsext"
	"github.com/verdikta/arbiter/internal/httpapi"
	verdiktalog "github.com/verdikta/arbiter/internal/log"
	"github.com/verdikta/arbiter/internal/ordered"
	"github.com/verdikta/arbiter/internal/orchestrator"
	"github.com/verdikta/arbiter/pkg/jury"
	"github.com/verdikta/arbiter/pkg/llm/factory"
	"github.com/verdikta/arbiter/pkg/observability"
	verdiktatls "github.com/verdikta/arbiter/pkg/tls"

	"github.com/verdikta/arbiter/internal/commitstore"
	verdiktapaths "github.com/verdikta/arbiter/pkg/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Verdikta Arbiter HTTP server",
	Long: `Start the Verdikta Arbiter server.

The server will:
- Build a provider registry from configured LLM credentials
- Fetch and deliberate dispute packages referenced by CID
- Serve POST /evaluate, GET /health, and GET /ready

Press Ctrl+C to gracefully shut down.`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func buildLogger(cfg verdiktaconfig.LoggingConfig) *zap.Logger {
	var zapConfig zap.Config
	if cfg.Format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	level := zap.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			log.Printf("invalid log level %q, using info: %v", cfg.Level, err)
		}
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapConfig.Build()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	return logger
}

func buildTracer(ctx context.Context, cfg verdiktaconfig.ObservabilityConfig, logger *zap.Logger) observability.Tracer {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return observability.NewNoOpTracer()
	}
	tracer, err := observability.NewTracer(ctx, observability.OTelConfig{
		ServiceName: "verdikta-arbiter",
		Endpoint:    cfg.Endpoint,
		Insecure:    cfg.Insecure,
	})
	if err != nil {
		logger.Warn("failed to start OTLP tracer, falling back to no-op", zap.Error(err))
		return observability.NewNoOpTracer()
	}
	return tracer
}

// gatewayReadiness reports not ready when the first configured
// content-store gateway cannot be reached. C1 itself has no persistent
// health state, so this does a lightweight HEAD probe against the first
// gateway on each /ready call; any HTTP response, whatever its status,
// counts as reachable, and the other gateways are not probed.
type gatewayReadiness struct {
	gateways []string
	client   *http.Client
}

func (g *gatewayReadiness) Ready(ctx context.Context) error {
	if len(g.gateways) == 0 {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, g.gateways[0], nil)
	if err != nil {
		return err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("content-store gateway unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	return nil
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := appCfg
	logger := buildLogger(cfg.Logging)
	verdiktalog.SetLogger(logger)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting verdikta arbiter")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracer := buildTracer(ctx, cfg.Observability, logger)
	if otelTracer, ok := tracer.(*observability.OTelTracer); ok {
		defer func() { _ = otelTracer.Shutdown(context.Background()) }()
	}

	content, err := contentstore.NewClient(contentConfigFrom(cfg, logger))
	if err != nil {
		logger.Fatal("failed to build content-store client", zap.Error(err))
	}

	registry, err := factory.NewRegistry(ctx, factory.Config{
		AnthropicAPIKey:        cfg.Providers.AnthropicAPIKey,
		BedrockRegion:          cfg.Providers.BedrockRegion,
		BedrockAccessKeyID:     cfg.Providers.BedrockAccessKeyID,
		BedrockSecretAccessKey: cfg.Providers.BedrockSecretAccessKey,
		OllamaEndpoint:         cfg.Providers.OllamaEndpoint,
		OpenAIAPIKey:           cfg.Providers.OpenAIAPIKey,
		XAIAPIKey:              cfg.Providers.XAIAPIKey,
	})
	if err != nil {
		logger.Fatal("failed to build provider registry", zap.Error(err))
	}

	juryRegistry := jury.NewRegistry(registry)
	juryConfig := jury.Config{
		SlotTimeout:       time.Duration(cfg.Timeouts.ModelTimeoutMS) * time.Millisecond,
		JustifierTimeout:  time.Duration(cfg.Timeouts.JustificationTimeoutMS) * time.Millisecond,
		MinSuccessPercent: ordered.Clamp(cfg.Jury.MinSuccessfulModelsPercent, 0, 1),
		Justifier:         justifierSlotFrom(cfg.Jury.JustifierModel),
	}
	juryEngine := jury.NewEngine(juryRegistry, juryConfig, tracer, logger)

	if cfg.CommitStore.Mode == string(commitstore.ModeFile) && cfg.CommitStore.Path != "" {
		if fsext.Exists(cfg.CommitStore.Path) {
			logger.Info("resuming commit store from existing snapshot", zap.String("path", cfg.CommitStore.Path))
		} else {
			logger.Info("starting commit store with a fresh snapshot", zap.String("path", cfg.CommitStore.Path))
		}
	}
	commitStore := commitstore.New(commitstore.Mode(cfg.CommitStore.Mode), cfg.CommitStore.Path)
	var purgeScheduler *commitstore.PurgeScheduler
	if cfg.CommitStore.TTLMS > 0 {
		ttl := time.Duration(cfg.CommitStore.TTLMS) * time.Millisecond
		purgeScheduler, err = commitstore.NewPurgeScheduler(commitStore, ttl, "@every 1h", logger)
		if err != nil {
			logger.Warn("failed to build commit store purge scheduler", zap.Error(err))
		} else {
			purgeScheduler.Start()
		}
	}

	scratchDir := verdiktapaths.GetScratchDir()
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		logger.Fatal("failed to create scratch directory", zap.String("dir", scratchDir), zap.Error(err))
	}

	orchConfig := orchestrator.DefaultConfig()
	orchConfig.RequestTimeout = time.Duration(cfg.Timeouts.RequestTimeoutMS) * time.Millisecond
	orchConfig.ScratchBaseDir = scratchDir
	orch := orchestrator.New(content, juryEngine, commitStore, orchConfig, tracer, logger)

	readiness := &gatewayReadiness{gateways: cfg.ContentStore.Gateways, client: &http.Client{Timeout: 5 * time.Second}}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := httpapi.New(addr, orch, readiness, corsConfigFrom(cfg.Server.CORS), logger)

	var tlsManager *verdiktatls.Manager
	if cfg.TLS.Enabled {
		tlsManager, err = verdiktatls.NewManager(tlsConfigFrom(cfg.TLS))
		if err != nil {
			logger.Fatal("failed to build TLS manager", zap.Error(err))
		}
		if err := tlsManager.Start(ctx); err != nil {
			logger.Fatal("failed to start TLS manager", zap.Error(err))
		}
		server.SetTLSConfig(tlsManager.TLSConfig())
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
	logger.Info("listening", zap.String("addr", addr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping HTTP server", zap.Error(err))
	}

	if purgeScheduler != nil {
		purgeScheduler.Stop()
	}

	if tlsManager != nil {
		if err := tlsManager.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping TLS manager", zap.Error(err))
		}
	}

	if err := tracer.Flush(shutdownCtx); err != nil {
		logger.Warn("error flushing tracer", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

func contentConfigFrom(cfg *verdiktaconfig.Config, logger *zap.Logger) contentstore.Config {
	c := contentstore.DefaultConfig()
	c.Gateways = cfg.ContentStore.Gateways
	c.PinningServiceURL = cfg.ContentStore.PinningServiceURL
	c.PinningServiceKey = cfg.ContentStore.PinningServiceKey
	c.Logger = logger
	return c
}

// tlsConfigFrom translates the flat TLSConfig settings into pkg/tls's
// mode-specific shape. Self-signed mode needs no further settings; manual
// mode forwards the certificate/key/CA file paths as-is.
func tlsConfigFrom(cfg verdiktaconfig.TLSConfig) *verdiktatls.Config {
	out := &verdiktatls.Config{
		Enabled: cfg.Enabled,
		Mode:    cfg.Mode,
	}
	switch cfg.Mode {
	case "manual":
		out.Manual = &verdiktatls.ManualConfig{
			CertFile: cfg.CertFile,
			KeyFile:  cfg.KeyFile,
			CAFile:   cfg.CAFile,
		}
	default:
		out.SelfSigned = &verdiktatls.SelfSignedConfig{
			Hostnames:    []string{"localhost"},
			IPAddresses:  []string{"127.0.0.1"},
			ValidityDays: 365,
			Organization: "Verdikta Arbiter",
		}
	}
	return out
}

func corsConfigFrom(cfg verdiktaconfig.CORSServerConfig) httpapi.CORSConfig {
	return httpapi.CORSConfig{
		Enabled:          cfg.Enabled,
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   cfg.ExposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}
}

// justifierSlotFrom parses the "provider:model" JUSTIFIER_MODEL setting
// into a jury.SlotSpec; an empty setting yields an empty SlotSpec, and the
// engine then uses the concatenated per-slot justifications instead of a
// justifier call.
func justifierSlotFrom(spec string) jury.SlotSpec {
	if spec == "" {
		return jury.SlotSpec{}
	}
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return jury.SlotSpec{Provider: spec}
	}
	return jury.SlotSpec{Provider: parts[0], Model: parts[1]}
}
