package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by Defaults via ApplyDefaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`
	Debug     bool   `json:"debug" yaml:"debug" toml:"debug"`

	// Device preference: auto, cpu or cuda.
	Device string `json:"device" yaml:"device" toml:"device"`

	// Model artifacts
	BaseModel     string `json:"base_model" yaml:"base_model" toml:"base_model"`
	BaseModelPath string `json:"base_model_path" yaml:"base_model_path" toml:"base_model_path"`
	TokenizerDir  string `json:"tokenizer_dir" yaml:"tokenizer_dir" toml:"tokenizer_dir"`
	TokenizerRepo string `json:"tokenizer_repo" yaml:"tokenizer_repo" toml:"tokenizer_repo"`
	AdapterDir    string `json:"adapter_dir" yaml:"adapter_dir" toml:"adapter_dir"`
	AdapterRepo   string `json:"adapter_repo" yaml:"adapter_repo" toml:"adapter_repo"`
	HubCacheDir   string `json:"hub_cache_dir" yaml:"hub_cache_dir" toml:"hub_cache_dir"`
	HubToken      string `json:"hub_token" yaml:"hub_token" toml:"hub_token"`
	Download      bool   `json:"download" yaml:"download" toml:"download"`

	// Language pair, fixed for the process lifetime.
	SourceLang string `json:"source_lang" yaml:"source_lang" toml:"source_lang"`
	TargetLang string `json:"target_lang" yaml:"target_lang" toml:"target_lang"`

	// Generation
	MaxInputTokens  int `json:"max_input_tokens" yaml:"max_input_tokens" toml:"max_input_tokens"`
	MaxOutputTokens int `json:"max_output_tokens" yaml:"max_output_tokens" toml:"max_output_tokens"`
	NumBeams        int `json:"num_beams" yaml:"num_beams" toml:"num_beams"`

	// Backend: server (KServe v2 inference server) or llama (in-process, build tag 'llama').
	Backend               string `json:"backend" yaml:"backend" toml:"backend"`
	BackendURL            string `json:"backend_url" yaml:"backend_url" toml:"backend_url"`
	BackendModel          string `json:"backend_model" yaml:"backend_model" toml:"backend_model"`
	BackendAPIKey         string `json:"backend_api_key" yaml:"backend_api_key" toml:"backend_api_key"`
	BackendTimeoutSeconds int    `json:"backend_timeout_seconds" yaml:"backend_timeout_seconds" toml:"backend_timeout_seconds"`
	ConnectTimeoutSeconds int    `json:"connect_timeout_seconds" yaml:"connect_timeout_seconds" toml:"connect_timeout_seconds"`
	LlamaCtx              int    `json:"llama_ctx" yaml:"llama_ctx" toml:"llama_ctx"`
	LlamaThreads          int    `json:"llama_threads" yaml:"llama_threads" toml:"llama_threads"`
	LlamaGPULayers        int    `json:"llama_gpu_layers" yaml:"llama_gpu_layers" toml:"llama_gpu_layers"`

	// Admission and HTTP limits
	MaxQueueDepth            int   `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitSeconds           int   `json:"max_wait_seconds" yaml:"max_wait_seconds" toml:"max_wait_seconds"`
	InferTimeoutSeconds      int64 `json:"infer_timeout_seconds" yaml:"infer_timeout_seconds" toml:"infer_timeout_seconds"`
	GenerationTimeoutSeconds int   `json:"generation_timeout_seconds" yaml:"generation_timeout_seconds" toml:"generation_timeout_seconds"`
	ShutdownTimeoutSeconds   int   `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds" toml:"shutdown_timeout_seconds"`
	MaxBodyBytes             int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	// CORS
	CORSEnabled        *bool    `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`

	// Translation memory (sqlite). Empty disables it.
	MemoryPath string `json:"memory_path" yaml:"memory_path" toml:"memory_path"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse json %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse toml %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
