package config

import (
	"fmt"
	"strings"
)

// Defaults mirror the values the service was originally deployed with.
const (
	DefaultAddr            = ":5000"
	DefaultBaseModel       = "facebook/mbart-large-50-many-to-many-mmt"
	DefaultTokenizerDir    = "./model/tokenizer"
	DefaultAdapterDir      = "./model/peft_lora"
	DefaultSourceLang      = "si_LK"
	DefaultTargetLang      = "en_XX"
	DefaultMaxInputTokens  = 128
	DefaultMaxOutputTokens = 96
	DefaultNumBeams        = 1
	DefaultBackend         = "server"
	DefaultBackendURL      = "http://127.0.0.1:8000"
	DefaultBackendModel    = "mbart-si-en"
	DefaultMaxQueueDepth   = 32
	DefaultMaxWaitSeconds  = 30
	DefaultMaxBodyBytes    = 1 << 20
	DefaultShutdownSeconds = 30
)

// Defaults returns a Config with every field set to its default.
func Defaults() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unspecified fields in place.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.Device == "" {
		c.Device = "auto"
	}
	if c.BaseModel == "" {
		c.BaseModel = DefaultBaseModel
	}
	if c.TokenizerDir == "" {
		c.TokenizerDir = DefaultTokenizerDir
	}
	if c.AdapterDir == "" {
		c.AdapterDir = DefaultAdapterDir
	}
	if c.SourceLang == "" {
		c.SourceLang = DefaultSourceLang
	}
	if c.TargetLang == "" {
		c.TargetLang = DefaultTargetLang
	}
	if c.MaxInputTokens <= 0 {
		c.MaxInputTokens = DefaultMaxInputTokens
	}
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if c.NumBeams <= 0 {
		c.NumBeams = DefaultNumBeams
	}
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if c.BackendURL == "" {
		c.BackendURL = DefaultBackendURL
	}
	if c.BackendModel == "" {
		c.BackendModel = DefaultBackendModel
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = DefaultMaxQueueDepth
	}
	if c.MaxWaitSeconds <= 0 {
		c.MaxWaitSeconds = DefaultMaxWaitSeconds
	}
	if c.ShutdownTimeoutSeconds <= 0 {
		c.ShutdownTimeoutSeconds = DefaultShutdownSeconds
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.CORSEnabled == nil {
		enabled := true
		c.CORSEnabled = &enabled
	}
	if len(c.CORSAllowedOrigins) == 0 {
		c.CORSAllowedOrigins = []string{"*"}
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch strings.ToLower(c.Device) {
	case "auto", "cpu", "cuda":
	default:
		return fmt.Errorf("invalid device: %q (want auto, cpu or cuda)", c.Device)
	}
	switch c.Backend {
	case "server", "llama":
	default:
		return fmt.Errorf("invalid backend: %q (want server or llama)", c.Backend)
	}
	if c.Backend == "llama" && strings.TrimSpace(c.BaseModelPath) == "" {
		return fmt.Errorf("backend llama requires base_model_path")
	}
	if c.SourceLang == c.TargetLang {
		return fmt.Errorf("source_lang and target_lang are both %q", c.SourceLang)
	}
	if c.NumBeams != 1 {
		return fmt.Errorf("invalid num_beams: %d (only greedy decoding is supported)", c.NumBeams)
	}
	if c.MaxInputTokens < 3 {
		return fmt.Errorf("invalid max_input_tokens: %d (must leave room for language code and eos)", c.MaxInputTokens)
	}
	if c.InferTimeoutSeconds < 0 {
		return fmt.Errorf("invalid infer_timeout_seconds: %d", c.InferTimeoutSeconds)
	}
	if c.GenerationTimeoutSeconds < 0 {
		return fmt.Errorf("invalid generation_timeout_seconds: %d", c.GenerationTimeoutSeconds)
	}
	return nil
}

// CORS reports whether CORS is enabled after defaults.
func (c Config) CORS() bool { return c.CORSEnabled == nil || *c.CORSEnabled }
