// Package artifacts locates and validates the on-disk model artifacts:
// the tokenizer directory and the LoRA adapter overlay.
package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"translatord/internal/common/fsutil"
)

// AdapterConfigFile is the PEFT adapter descriptor written next to the weights.
const AdapterConfigFile = "adapter_config.json"

// Adapter weight file names, in lookup order.
var adapterWeightFiles = []string{"adapter_model.safetensors", "adapter_model.bin"}

// ErrIncompatibleAdapter is returned when the adapter was trained for a different base model.
var ErrIncompatibleAdapter = errors.New("adapter incompatible with base model")

// AdapterConfig is the subset of adapter_config.json the service inspects.
type AdapterConfig struct {
	PeftType      string   `json:"peft_type"`
	BaseModel     string   `json:"base_model_name_or_path"`
	TaskType      string   `json:"task_type"`
	Rank          int      `json:"r"`
	LoraAlpha     float64  `json:"lora_alpha"`
	LoraDropout   float64  `json:"lora_dropout"`
	TargetModules []string `json:"target_modules"`
	InferenceMode bool     `json:"inference_mode"`
}

// Spec names the artifacts to resolve.
type Spec struct {
	BaseModel    string
	TokenizerDir string
	AdapterDir   string

	// When Download is set, a missing directory is fetched from the hub
	// repository named below (TokenizerRepo defaults to BaseModel).
	Download      bool
	TokenizerRepo string
	AdapterRepo   string
	Hub           Hub
}

// Set is the resolved artifact set. Paths are absolute.
type Set struct {
	BaseModel      string        `json:"base_model"`
	TokenizerDir   string        `json:"tokenizer_dir"`
	AdapterDir     string        `json:"adapter_dir"`
	AdapterWeights string        `json:"adapter_weights"`
	AdapterDigest  string        `json:"adapter_digest"` // hex SHA-256 of AdapterWeights
	Adapter        AdapterConfig `json:"adapter"`
}

// ReadAdapterConfig parses dir/adapter_config.json.
func ReadAdapterConfig(dir string) (AdapterConfig, error) {
	var ac AdapterConfig
	p := filepath.Join(dir, AdapterConfigFile)
	b, err := os.ReadFile(p)
	if err != nil {
		return ac, fmt.Errorf("read adapter config: %w", err)
	}
	if err := json.Unmarshal(b, &ac); err != nil {
		return ac, fmt.Errorf("parse %s: %w", p, err)
	}
	return ac, nil
}

// CheckCompatible verifies the adapter is a LoRA overlay trained on baseModel.
// An adapter that does not record its base model is accepted.
func (ac AdapterConfig) CheckCompatible(baseModel string) error {
	if !strings.EqualFold(ac.PeftType, "LORA") {
		return fmt.Errorf("%w: peft_type %q is not LORA", ErrIncompatibleAdapter, ac.PeftType)
	}
	if ac.BaseModel != "" && baseModel != "" && !sameModel(ac.BaseModel, baseModel) {
		return fmt.Errorf("%w: adapter base %q, configured base %q", ErrIncompatibleAdapter, ac.BaseModel, baseModel)
	}
	return nil
}

// sameModel compares hub ids, tolerating a local path whose last two
// elements spell the same id (e.g. /models/facebook/mbart-large-50-...).
func sameModel(a, b string) bool {
	if a == b {
		return true
	}
	tail := func(s string) string {
		s = filepath.ToSlash(strings.TrimRight(s, "/"))
		parts := strings.Split(s, "/")
		if len(parts) >= 2 {
			return strings.Join(parts[len(parts)-2:], "/")
		}
		return s
	}
	return tail(a) == tail(b)
}

// Resolve expands and validates every artifact path and reads the adapter config.
func Resolve(s Spec) (Set, error) {
	var set Set
	set.BaseModel = s.BaseModel
	tokRepo := s.TokenizerRepo
	if tokRepo == "" {
		tokRepo = s.BaseModel
	}
	tok, err := resolveOrFetch(s.TokenizerDir, s.Download, tokRepo, s.Hub.FetchTokenizer)
	if err != nil {
		return set, fmt.Errorf("tokenizer dir: %w", err)
	}
	set.TokenizerDir = tok
	ad, err := resolveOrFetch(s.AdapterDir, s.Download, s.AdapterRepo, s.Hub.FetchAdapter)
	if err != nil {
		return set, fmt.Errorf("adapter dir: %w", err)
	}
	set.AdapterDir = ad
	ac, err := ReadAdapterConfig(ad)
	if err != nil {
		return set, err
	}
	if err := ac.CheckCompatible(s.BaseModel); err != nil {
		return set, err
	}
	set.Adapter = ac
	w, ok := fsutil.FindFirst(ad, adapterWeightFiles...)
	if !ok {
		return set, fmt.Errorf("adapter weights not found in %s (want one of %s)", ad, strings.Join(adapterWeightFiles, ", "))
	}
	set.AdapterWeights = w
	d, err := fileDigest(w)
	if err != nil {
		return set, fmt.Errorf("adapter weights: %w", err)
	}
	set.AdapterDigest = d
	return set, nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func resolveOrFetch(dir string, download bool, repoID string, fetch func(string) (string, error)) (string, error) {
	p, err := fsutil.ResolveDir(dir)
	if err == nil || !download || repoID == "" || !errors.Is(err, os.ErrNotExist) {
		return p, err
	}
	return fetch(repoID)
}
