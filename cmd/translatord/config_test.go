package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"translatord/internal/device"
)

func parse(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	cmd := newRootCmd()
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return cmd.Flags()
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(parse(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":5000" || cfg.SourceLang != "si_LK" || cfg.MaxOutputTokens != 96 || !cfg.CORS() {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "translatord.yaml")
	body := "addr: \":7000\"\nbackend_url: http://file.example\nmax_queue_depth: 4\n"
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("TRANSLATORD_BACKEND_URL", "http://env.example")
	t.Setenv("TRANSLATORD_CORS_ENABLED", "false")

	cfg, err := loadConfig(parse(t, "--config", p, "--max-queue-depth", "9"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7000" {
		t.Fatalf("file value lost: %q", cfg.Addr)
	}
	if cfg.BackendURL != "http://env.example" {
		t.Fatalf("env should override file: %q", cfg.BackendURL)
	}
	if cfg.MaxQueueDepth != 9 {
		t.Fatalf("flag should override file: %d", cfg.MaxQueueDepth)
	}
	if cfg.CORS() {
		t.Fatalf("env should disable cors")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	if _, err := loadConfig(parse(t, "--device", "tpu")); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := loadConfig(parse(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestLoadConfig_HFTokenFallback(t *testing.T) {
	t.Setenv("HF_TOKEN", "hf_abc")
	cfg, err := loadConfig(parse(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HubToken != "hf_abc" {
		t.Fatalf("token=%q", cfg.HubToken)
	}
}

func TestEngineConfigMapping(t *testing.T) {
	cfg, err := loadConfig(parse(t, "--generation-timeout-seconds", "7", "--max-wait-seconds", "3", "--hub-cache-dir", "/tmp/hub"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sel := device.Selection{Device: device.CUDA, Reason: "test"}
	ec := engineConfig(cfg, sel)
	if ec.InferTimeout != 7*time.Second || ec.MaxWait != 3*time.Second {
		t.Fatalf("timeouts: %+v", ec)
	}
	if ec.Hub.CacheDir != "/tmp/hub" || ec.Device != sel || ec.ServerURL != cfg.BackendURL {
		t.Fatalf("mapping: %+v", ec)
	}
	if ec.MaxOutputTokens != 96 || ec.MaxInputTokens != 128 || ec.NumBeams != 1 {
		t.Fatalf("generation: %+v", ec)
	}
}
