package engine

import (
	"time"

	"github.com/rs/zerolog"

	"translatord/internal/artifacts"
	"translatord/internal/device"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxQueueDepth   = 32
	defaultMaxWait         = 30 * time.Second
	defaultDrainTimeout    = 30 * time.Second
	defaultMaxInputTokens  = 128
	defaultMaxOutputTokens = 96
	defaultServerTimeout   = 60 * time.Second
	defaultConnectTimeout  = 5 * time.Second
)

// Config encapsulates all tunables for Engine construction.
type Config struct {
	BaseModel     string
	BaseModelPath string
	TokenizerDir  string
	TokenizerRepo string
	AdapterDir    string
	AdapterRepo   string
	Download      bool
	Hub           artifacts.Hub

	SourceLang      string
	TargetLang      string
	MaxInputTokens  int
	MaxOutputTokens int
	NumBeams        int

	Device device.Selection

	// Backend selects the adapter: "server" or "llama". Adapter, when set, wins.
	Backend         string
	Adapter         Seq2SeqAdapter
	TokenizerLoader TokenizerLoader

	ServerURL      string
	ServerModel    string
	ServerAPIKey   string
	ServerTimeout  time.Duration
	ConnectTimeout time.Duration

	LlamaCtx       int
	LlamaThreads   int
	LlamaGPULayers int

	MaxQueueDepth int
	MaxWait       time.Duration
	// InferTimeout bounds one generation; zero disables.
	InferTimeout time.Duration
	DrainTimeout time.Duration

	Memory    Memory
	Publisher EventPublisher
	Logger    *zerolog.Logger
}

// New constructs an Engine from Config. The model is not loaded until Load.
func New(cfg Config) *Engine {
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = defaultMaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	if cfg.MaxInputTokens <= 0 {
		cfg.MaxInputTokens = defaultMaxInputTokens
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = defaultMaxOutputTokens
	}
	if cfg.NumBeams <= 0 {
		cfg.NumBeams = 1
	}
	if cfg.ServerTimeout <= 0 {
		cfg.ServerTimeout = defaultServerTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.Device.Device == "" {
		cfg.Device = device.Selection{Device: device.CPU, Reason: "unspecified"}
	}
	if cfg.TokenizerLoader == nil {
		cfg.TokenizerLoader = localTokenizer
	}
	e := &Engine{
		cfg:       cfg,
		state:     StateLoading,
		publisher: noopPublisher{},
		queueCh:   make(chan struct{}, cfg.MaxQueueDepth),
		genCh:     make(chan struct{}, 1),
		startTime: time.Now(),
	}
	if cfg.Publisher != nil {
		e.publisher = cfg.Publisher
	}
	if cfg.Logger != nil {
		e.log = *cfg.Logger
	} else {
		e.log = zerolog.Nop()
	}
	e.adapter = cfg.Adapter
	if e.adapter == nil {
		switch cfg.Backend {
		case "llama":
			e.adapter = NewLlamaAdapter(cfg.LlamaCtx, cfg.LlamaThreads, cfg.LlamaGPULayers)
		default:
			e.adapter = NewServerAdapter(ServerOptions{
				BaseURL:        cfg.ServerURL,
				Model:          cfg.ServerModel,
				APIKey:         cfg.ServerAPIKey,
				Timeout:        cfg.ServerTimeout,
				ConnectTimeout: cfg.ConnectTimeout,
			})
		}
	}
	return e
}
