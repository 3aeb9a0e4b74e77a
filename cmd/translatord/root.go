package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"translatord/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "translatord",
		Short: "Sinhala to English translation service",
		Long: `translatord serves a LoRA-adapted mBART-50 model over HTTP.

Configuration is read from --config (yaml, json or toml), then overridden by
flags and TRANSLATORD_* environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
	bindFlags(root.PersistentFlags())

	root.AddCommand(
		&cobra.Command{Use: "serve", Short: "Load the model and serve HTTP (default)", RunE: func(cmd *cobra.Command, args []string) error { return runServe(cmd) }},
		&cobra.Command{Use: "check", Short: "Check device, artifacts and backend without loading the model", RunE: func(cmd *cobra.Command, args []string) error { return runCheck(cmd) }},
		&cobra.Command{Use: "fetch", Short: "Download tokenizer and adapter files into the hub cache", RunE: func(cmd *cobra.Command, args []string) error { return runFetch(cmd) }},
		&cobra.Command{Use: "version", Short: "Print the version", Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "translatord", version)
		}},
	)
	return root
}

// bindFlags registers every configuration flag. Help shows the built-in
// defaults; unset flags never override the config file.
func bindFlags(fs *pflag.FlagSet) {
	d := config.Defaults()
	fs.String("config", "", "Path to a yaml, json or toml config file")
	fs.String("addr", d.Addr, "HTTP listen address")
	fs.String("log-level", d.LogLevel, "Log level: debug|info|warn|error|off")
	fs.String("log-format", d.LogFormat, "Log format: console|json")
	fs.Bool("debug", false, "Raise log verbosity to debug")
	fs.String("device", d.Device, "Device preference: auto|cpu|cuda")

	fs.String("base-model", d.BaseModel, "Base model identifier")
	fs.String("base-model-path", "", "Local base model weights (required for the llama backend)")
	fs.String("tokenizer-dir", d.TokenizerDir, "Tokenizer directory")
	fs.String("tokenizer-repo", "", "Hub repository for the tokenizer (defaults to base model)")
	fs.String("adapter-dir", d.AdapterDir, "LoRA adapter directory")
	fs.String("adapter-repo", "", "Hub repository for the adapter")
	fs.String("hub-cache-dir", "", "Hugging Face hub cache directory")
	fs.String("hub-token", "", "Hugging Face hub token (defaults to HF_TOKEN)")
	fs.Bool("download", false, "Fetch missing artifacts from the hub")

	fs.String("source-lang", d.SourceLang, "Source language code")
	fs.String("target-lang", d.TargetLang, "Target language code")
	fs.Int("max-input-tokens", d.MaxInputTokens, "Maximum encoded input length")
	fs.Int("max-output-tokens", d.MaxOutputTokens, "Maximum generated length")
	fs.Int("num-beams", d.NumBeams, "Beam count (greedy only)")

	fs.String("backend", d.Backend, "Inference backend: server|llama")
	fs.String("backend-url", d.BackendURL, "Inference server base URL")
	fs.String("backend-model", d.BackendModel, "Model name on the inference server")
	fs.String("backend-api-key", "", "Bearer token for the inference server")
	fs.Int("backend-timeout-seconds", 0, "Inference server request timeout")
	fs.Int("connect-timeout-seconds", 0, "Inference server connect timeout")
	fs.Int("llama-ctx", 0, "llama.cpp context size")
	fs.Int("llama-threads", 0, "llama.cpp threads")
	fs.Int("llama-gpu-layers", 0, "llama.cpp layers offloaded when on cuda")

	fs.Int("max-queue-depth", d.MaxQueueDepth, "Queued translations before 429")
	fs.Int("max-wait-seconds", d.MaxWaitSeconds, "Maximum wait for a queue or generation slot")
	fs.Int64("infer-timeout-seconds", 0, "Per-request timeout including queue wait (0 disables)")
	fs.Int("generation-timeout-seconds", 0, "Timeout for one generation (0 disables)")
	fs.Int("shutdown-timeout-seconds", d.ShutdownTimeoutSeconds, "Graceful shutdown timeout")
	fs.Int64("max-body-bytes", d.MaxBodyBytes, "Maximum request body size")

	fs.Bool("cors-enabled", true, "Enable CORS")
	fs.String("cors-allowed-origins", "*", "Comma-separated allowed origins")
	fs.String("memory-path", "", "Translation memory sqlite file (empty disables)")
}

// loadConfig builds the effective configuration: file, then env and flags,
// then defaults. The result is validated.
func loadConfig(fs *pflag.FlagSet) (config.Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRANSLATORD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return config.Config{}, fmt.Errorf("bind flags: %w", err)
	}

	var cfg config.Config
	if path := v.GetString("config"); path != "" {
		c, err := config.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	overlay(&cfg, v)
	if cfg.HubToken == "" {
		cfg.HubToken = os.Getenv("HF_TOKEN")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// overlay copies every explicitly set flag or env value onto cfg.
func overlay(cfg *config.Config, v *viper.Viper) {
	str := map[string]*string{
		"addr":            &cfg.Addr,
		"log-level":       &cfg.LogLevel,
		"log-format":      &cfg.LogFormat,
		"device":          &cfg.Device,
		"base-model":      &cfg.BaseModel,
		"base-model-path": &cfg.BaseModelPath,
		"tokenizer-dir":   &cfg.TokenizerDir,
		"tokenizer-repo":  &cfg.TokenizerRepo,
		"adapter-dir":     &cfg.AdapterDir,
		"adapter-repo":    &cfg.AdapterRepo,
		"hub-cache-dir":   &cfg.HubCacheDir,
		"hub-token":       &cfg.HubToken,
		"source-lang":     &cfg.SourceLang,
		"target-lang":     &cfg.TargetLang,
		"backend":         &cfg.Backend,
		"backend-url":     &cfg.BackendURL,
		"backend-model":   &cfg.BackendModel,
		"backend-api-key": &cfg.BackendAPIKey,
		"memory-path":     &cfg.MemoryPath,
	}
	for k, p := range str {
		if v.IsSet(k) {
			*p = v.GetString(k)
		}
	}
	ints := map[string]*int{
		"max-input-tokens":           &cfg.MaxInputTokens,
		"max-output-tokens":          &cfg.MaxOutputTokens,
		"num-beams":                  &cfg.NumBeams,
		"backend-timeout-seconds":    &cfg.BackendTimeoutSeconds,
		"connect-timeout-seconds":    &cfg.ConnectTimeoutSeconds,
		"llama-ctx":                  &cfg.LlamaCtx,
		"llama-threads":              &cfg.LlamaThreads,
		"llama-gpu-layers":           &cfg.LlamaGPULayers,
		"max-queue-depth":            &cfg.MaxQueueDepth,
		"max-wait-seconds":           &cfg.MaxWaitSeconds,
		"generation-timeout-seconds": &cfg.GenerationTimeoutSeconds,
		"shutdown-timeout-seconds":   &cfg.ShutdownTimeoutSeconds,
	}
	for k, p := range ints {
		if v.IsSet(k) {
			*p = v.GetInt(k)
		}
	}
	if v.IsSet("infer-timeout-seconds") {
		cfg.InferTimeoutSeconds = v.GetInt64("infer-timeout-seconds")
	}
	if v.IsSet("max-body-bytes") {
		cfg.MaxBodyBytes = v.GetInt64("max-body-bytes")
	}
	if v.IsSet("debug") {
		cfg.Debug = v.GetBool("debug")
	}
	if v.IsSet("download") {
		cfg.Download = v.GetBool("download")
	}
	if v.IsSet("cors-enabled") {
		on := v.GetBool("cors-enabled")
		cfg.CORSEnabled = &on
	}
	if v.IsSet("cors-allowed-origins") {
		cfg.CORSAllowedOrigins = splitCSV(v.GetString("cors-allowed-origins"))
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
