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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	verdiktaconfig "github.com/verdikta/arbiter/internal/config"
	"github.com/verdikta/arbiter/internal/version"
	verdiktapaths "github.com/verdikta/arbiter/pkg/config"
)

var (
	cfgFile string
	appCfg  *verdiktaconfig.Config
	rootV   = viper.New()
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:     "verdiktad",
	Short:   "Verdikta Arbiter - deliberation oracle bridge",
	Version: version.Get(),
	Long: `Verdiktad receives arbitration requests referencing an
IPFS-addressed dispute package, deliberates across a configured jury of
LLMs, and returns a signed numeric verdict with justification.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $VERDIKTA_DATA_DIR/arbiter.yaml)")

	rootCmd.PersistentFlags().String("host", "0.0.0.0", "HTTP server host")
	rootCmd.PersistentFlags().Int("port", 8080, "HTTP server port")

	rootCmd.PersistentFlags().Bool("tls-enabled", false, "terminate TLS on the HTTP surface")
	rootCmd.PersistentFlags().String("tls-mode", "self-signed", "TLS certificate source (manual, self-signed)")
	rootCmd.PersistentFlags().String("tls-cert-file", "", "certificate file path (tls-mode=manual)")
	rootCmd.PersistentFlags().String("tls-key-file", "", "private key file path (tls-mode=manual)")
	rootCmd.PersistentFlags().String("tls-ca-file", "", "CA bundle file path (tls-mode=manual, optional)")

	rootCmd.PersistentFlags().Int("request-timeout-ms", 240_000, "overall per-request deadline in milliseconds")
	rootCmd.PersistentFlags().Int("model-timeout-ms", 120_000, "per-slot model deadline in milliseconds")
	rootCmd.PersistentFlags().Int("justification-timeout-ms", 45_000, "justifier synthesis deadline in milliseconds")
	rootCmd.PersistentFlags().Float64("min-successful-models-percent", 0.5, "minimum fraction of jury slots that must succeed")
	rootCmd.PersistentFlags().String("justifier-model", "", "provider:model used to synthesize the justification")

	rootCmd.PersistentFlags().String("commit-store-mode", "memory", "commit store durability mode (memory, file)")
	rootCmd.PersistentFlags().String("commit-store-path", "", "commit store snapshot path (file mode only)")

	defaultDataDir := verdiktapaths.GetDataDir()
	rootCmd.PersistentFlags().String("data-dir", defaultDataDir, "base directory for state and scratch files")

	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, console)")

	rootCmd.PersistentFlags().Bool("otel-enabled", false, "export traces over OTLP")
	rootCmd.PersistentFlags().String("otel-endpoint", "", "OTLP/HTTP collector endpoint")

	_ = rootV.BindPFlag("server.host", rootCmd.PersistentFlags().Lookup("host"))
	_ = rootV.BindPFlag("server.port", rootCmd.PersistentFlags().Lookup("port"))

	_ = rootV.BindPFlag("tls.enabled", rootCmd.PersistentFlags().Lookup("tls-enabled"))
	_ = rootV.BindPFlag("tls.mode", rootCmd.PersistentFlags().Lookup("tls-mode"))
	_ = rootV.BindPFlag("tls.cert_file", rootCmd.PersistentFlags().Lookup("tls-cert-file"))
	_ = rootV.BindPFlag("tls.key_file", rootCmd.PersistentFlags().Lookup("tls-key-file"))
	_ = rootV.BindPFlag("tls.ca_file", rootCmd.PersistentFlags().Lookup("tls-ca-file"))

	_ = rootV.BindPFlag("timeouts.request_timeout_ms", rootCmd.PersistentFlags().Lookup("request-timeout-ms"))
	_ = rootV.BindPFlag("timeouts.model_timeout_ms", rootCmd.PersistentFlags().Lookup("model-timeout-ms"))
	_ = rootV.BindPFlag("timeouts.justification_timeout_ms", rootCmd.PersistentFlags().Lookup("justification-timeout-ms"))
	_ = rootV.BindPFlag("jury.min_successful_models_percent", rootCmd.PersistentFlags().Lookup("min-successful-models-percent"))
	_ = rootV.BindPFlag("jury.justifier_model", rootCmd.PersistentFlags().Lookup("justifier-model"))

	_ = rootV.BindPFlag("commit_store.mode", rootCmd.PersistentFlags().Lookup("commit-store-mode"))
	_ = rootV.BindPFlag("commit_store.path", rootCmd.PersistentFlags().Lookup("commit-store-path"))

	_ = rootV.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = rootV.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	_ = rootV.BindPFlag("observability.enabled", rootCmd.PersistentFlags().Lookup("otel-enabled"))
	_ = rootV.BindPFlag("observability.otlp_endpoint", rootCmd.PersistentFlags().Lookup("otel-endpoint"))
}

// initConfig loads configuration once viper has parsed CLI flags.
func initConfig() {
	cfg, err := verdiktaconfig.LoadFromViper(rootV, cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	appCfg = cfg
}
