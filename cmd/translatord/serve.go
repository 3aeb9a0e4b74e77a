package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"translatord/internal/artifacts"
	"translatord/internal/config"
	"translatord/internal/device"
	"translatord/internal/engine"
	"translatord/internal/httpapi"
	"translatord/internal/logging"
	"translatord/internal/store"
)

// hubFor returns the hub client settings, defaulting the cache directory.
func hubFor(cfg config.Config) artifacts.Hub {
	cache := cfg.HubCacheDir
	if cache == "" {
		cache = artifacts.DefaultCacheDir()
	}
	return artifacts.Hub{CacheDir: cache, Token: cfg.HubToken}
}

// engineConfig maps the service configuration onto engine tunables.
func engineConfig(cfg config.Config, sel device.Selection) engine.Config {
	return engine.Config{
		BaseModel:       cfg.BaseModel,
		BaseModelPath:   cfg.BaseModelPath,
		TokenizerDir:    cfg.TokenizerDir,
		TokenizerRepo:   cfg.TokenizerRepo,
		AdapterDir:      cfg.AdapterDir,
		AdapterRepo:     cfg.AdapterRepo,
		Download:        cfg.Download,
		Hub:             hubFor(cfg),
		SourceLang:      cfg.SourceLang,
		TargetLang:      cfg.TargetLang,
		MaxInputTokens:  cfg.MaxInputTokens,
		MaxOutputTokens: cfg.MaxOutputTokens,
		NumBeams:        cfg.NumBeams,
		Device:          sel,
		Backend:         cfg.Backend,
		ServerURL:       cfg.BackendURL,
		ServerModel:     cfg.BackendModel,
		ServerAPIKey:    cfg.BackendAPIKey,
		ServerTimeout:   time.Duration(cfg.BackendTimeoutSeconds) * time.Second,
		ConnectTimeout:  time.Duration(cfg.ConnectTimeoutSeconds) * time.Second,
		LlamaCtx:        cfg.LlamaCtx,
		LlamaThreads:    cfg.LlamaThreads,
		LlamaGPULayers:  cfg.LlamaGPULayers,
		MaxQueueDepth:   cfg.MaxQueueDepth,
		MaxWait:         time.Duration(cfg.MaxWaitSeconds) * time.Second,
		InferTimeout:    time.Duration(cfg.GenerationTimeoutSeconds) * time.Second,
		DrainTimeout:    time.Duration(cfg.ShutdownTimeoutSeconds) * time.Second,
	}
}

// configureHTTP applies the HTTP layer settings.
func configureHTTP(cfg config.Config, logger zerolog.Logger) {
	httpapi.SetLogger(logger)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetInferTimeoutSeconds(cfg.InferTimeoutSeconds)
	httpapi.SetCORSOptions(cfg.CORS(), cfg.CORSAllowedOrigins, nil, nil)
	if cfg.Debug {
		httpapi.SetDefaultLogLevel("debug")
	}
}

// purgeMemory drops translations remembered for other model keys.
func purgeMemory(ctx context.Context, mem *store.Store, modelKey string, logger zerolog.Logger) {
	n, err := mem.Purge(ctx, modelKey)
	if err != nil {
		logger.Warn().Err(err).Msg("translation memory purge failed")
		return
	}
	if n > 0 {
		logger.Info().Int64("entries", n).Str("model_key", modelKey).Msg("purged stale translation memory")
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat, cfg.Debug, os.Stderr)

	sel := device.Select(cfg.Device, device.HostProbe())
	logger.Info().Str("device", sel.Device).Str("reason", sel.Reason).Msg("device selected")

	ecfg := engineConfig(cfg, sel)
	ecfg.Logger = &logger
	var mem *store.Store
	if cfg.MemoryPath != "" {
		mem, err = store.New(cfg.MemoryPath)
		if err != nil {
			return fmt.Errorf("open translation memory: %w", err)
		}
		defer mem.Close()
		ecfg.Memory = mem
		logger.Info().Str("path", cfg.MemoryPath).Msg("translation memory enabled")
	}
	eng := engine.New(ecfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := eng.Load(ctx); err != nil {
		logger.Error().Err(err).Msg("model load failed")
		return fmt.Errorf("load model: %w", err)
	}
	logger.Info().Str("base_model", cfg.BaseModel).Str("adapter", cfg.AdapterDir).
		Dur("took", time.Since(start)).Msg("model ready")
	if mem != nil {
		purgeMemory(ctx, mem, eng.ModelKey(), logger)
	}

	configureHTTP(cfg, logger)
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(eng),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("translatord listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			_ = eng.Close()
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Drain the engine first so queued work finishes, then close the listener.
	if err := eng.Close(); err != nil {
		logger.Warn().Err(err).Msg("engine close")
	}
	shCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown error")
	}
	cancelBase()
	return nil
}
