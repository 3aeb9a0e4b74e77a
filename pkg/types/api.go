package types

// TranslateRequest represents a translation request payload.
type TranslateRequest struct {
	// Required source text. Must be a non-empty string.
	// example: කසළ රෝගය
	Text string `json:"text" example:"කසළ රෝගය"`
}

// TranslateResponse is returned by POST /translate.
type TranslateResponse struct {
	// The original input, verbatim.
	// example: කසළ රෝගය
	Input string `json:"input" example:"කසළ රෝගය"`
	// The translated text with special tokens removed.
	// example: Cholera
	Translation string `json:"translation" example:"Cholera"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// Always "ok" once the process has finished startup.
	// example: ok
	Status string `json:"status" example:"ok"`
	// Selected compute device (cpu or cuda).
	// example: cuda
	Device string `json:"device" example:"cuda"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: Invalid JSON
	Error string `json:"error" example:"Invalid JSON"`
	// Optional details, e.g. the JSON parse failure.
	// example: invalid character 'o' in literal null (expecting 'u')
	Details string `json:"details,omitempty" example:"invalid character 'o' in literal null (expecting 'u')"`
}

// ModelInfo identifies the loaded base model and adapter.
type ModelInfo struct {
	// Base model identifier.
	// example: facebook/mbart-large-50-many-to-many-mmt
	BaseModel string `json:"base_model" example:"facebook/mbart-large-50-many-to-many-mmt"`
	// Adapter directory that was merged onto the base model.
	// example: /srv/model/peft_lora
	Adapter string `json:"adapter" example:"/srv/model/peft_lora"`
	// LoRA rank read from the adapter config.
	// example: 16
	AdapterRank int `json:"adapter_rank,omitempty" example:"16"`
	// Tokenizer source (directory or hub repository).
	// example: /srv/model/tokenizer
	Tokenizer string `json:"tokenizer" example:"/srv/model/tokenizer"`
	// Fixed source language tag.
	// example: si_LK
	SourceLang string `json:"source_lang" example:"si_LK"`
	// Fixed target language tag.
	// example: en_XX
	TargetLang string `json:"target_lang" example:"en_XX"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Engine lifecycle state (loading, ready, draining, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Selected compute device.
	// example: cpu
	Device string `json:"device" example:"cpu"`
	// Why the device was selected.
	// example: no accelerator found
	DeviceReason string `json:"device_reason,omitempty" example:"no accelerator found"`
	// Backend adapter in use (server or llama).
	// example: server
	Backend string `json:"backend" example:"server"`
	// Loaded model identity.
	Model ModelInfo `json:"model"`
	// Current queue length for incoming requests.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Number of in-flight generations (0 or 1).
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum queued requests allowed before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Total successful translations.
	// example: 120
	TranslationsTotal uint64 `json:"translations_total" example:"120"`
	// Total failed translations.
	// example: 1
	FailuresTotal uint64 `json:"failures_total" example:"1"`
	// Translations served from the translation memory.
	// example: 12
	MemoryHitsTotal uint64 `json:"memory_hits_total" example:"12"`
	// Last error observed by the engine (if any).
	LastError string `json:"last_error,omitempty"`
	// Time spent loading the model, in milliseconds.
	// example: 18250
	LoadMillis int64 `json:"load_ms" example:"18250"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
