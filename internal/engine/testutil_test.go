package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"translatord/internal/device"
)

const testBase = "facebook/mbart-large-50-many-to-many-mmt"

// Special token ids used by the test tokenizer.json.
const (
	idBOS  = 0
	idPAD  = 1
	idEOS  = 2
	idUNK  = 3
	idSiLK = 100
	idEnXX = 101
)

const testTokenizerJSON = `{
  "version": "1.0",
  "added_tokens": [
    {"id": 0, "content": "<s>", "special": true},
    {"id": 1, "content": "<pad>", "special": true},
    {"id": 2, "content": "</s>", "special": true},
    {"id": 3, "content": "<unk>", "special": true},
    {"id": 100, "content": "si_LK", "special": true},
    {"id": 101, "content": "en_XX", "special": true}
  ],
  "normalizer": {"type": "Precompiled"},
  "pre_tokenizer": {"type": "Metaspace", "replacement": "▁", "add_prefix_space": true},
  "decoder": {"type": "Metaspace", "replacement": "▁", "add_prefix_space": true},
  "model": {
    "type": "Unigram",
    "unk_id": 3,
    "vocab": [
      ["<s>", 0.0], ["<pad>", 0.0], ["</s>", 0.0], ["<unk>", 0.0],
      ["▁", -2.0], ["▁hello", -3.0], ["▁hel", -4.0], ["lo", -4.0],
      ["▁world", -3.5], ["w", -6.0], ["o", -6.0]
    ]
  }
}`

// Piece ids of the test vocab.
const (
	idSpace = 4
	idHello = 5
	idWorld = 8
)

// writeArtifacts lays out a tokenizer dir and a LoRA adapter dir.
func writeArtifacts(t *testing.T, adapterBase string) (tokDir, adDir string) {
	t.Helper()
	tokDir = t.TempDir()
	adDir = t.TempDir()
	if err := os.WriteFile(filepath.Join(tokDir, "tokenizer.json"), []byte(testTokenizerJSON), 0o644); err != nil {
		t.Fatalf("write tokenizer.json: %v", err)
	}
	cfg := `{"peft_type":"LORA","base_model_name_or_path":"` + adapterBase + `","r":8,"lora_alpha":16}`
	if err := os.WriteFile(filepath.Join(adDir, "adapter_config.json"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("write adapter config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(adDir, "adapter_model.safetensors"), []byte("w"), 0o644); err != nil {
		t.Fatalf("write adapter weights: %v", err)
	}
	return tokDir, adDir
}

// wordTokenizer maps whitespace-separated words to stable ids starting at 1000.
type wordTokenizer struct {
	mu    sync.Mutex
	ids   map[string]int
	words map[int]string
	// frame adds <s> ... </s> around Encode output, like tokenizers with a post-processor.
	frame bool
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{ids: map[string]int{}, words: map[int]string{}}
}

func (w *wordTokenizer) Encode(text string) []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []int
	if w.frame {
		out = append(out, idBOS)
	}
	for _, f := range strings.Fields(text) {
		id, ok := w.ids[f]
		if !ok {
			id = 1000 + len(w.ids)
			w.ids[f] = id
			w.words[id] = f
		}
		out = append(out, id)
	}
	if w.frame {
		out = append(out, idEOS)
	}
	return out
}

func (w *wordTokenizer) Decode(ids []int) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if s, ok := w.words[id]; ok {
			parts = append(parts, s)
		} else {
			parts = append(parts, "<?>")
		}
	}
	return strings.Join(parts, " ")
}

// echoAdapter "translates" by echoing the content tokens framed as a decoder output.
type echoAdapter struct {
	loadErr   error
	genErr    error
	gate      chan struct{} // when set, Generate blocks until a value is received
	loaded    LoadSpec
	loads     atomic.Int32
	gens      atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
	closed    atomic.Bool
	lastEnc   Encoding
	lastParam GenerateParams
	mu        sync.Mutex
}

func (a *echoAdapter) Name() string { return "echo" }

func (a *echoAdapter) Load(ctx context.Context, spec LoadSpec) (Session, error) {
	a.loads.Add(1)
	a.loaded = spec
	if a.loadErr != nil {
		return nil, a.loadErr
	}
	return &echoSession{a: a}, nil
}

type echoSession struct{ a *echoAdapter }

func (s *echoSession) Generate(ctx context.Context, enc Encoding, p GenerateParams) (Generation, error) {
	a := s.a
	n := a.active.Add(1)
	defer a.active.Add(-1)
	for {
		m := a.maxActive.Load()
		if n <= m || a.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	a.gens.Add(1)
	a.mu.Lock()
	a.lastEnc = enc
	a.lastParam = p
	a.mu.Unlock()
	if a.gate != nil {
		select {
		case <-a.gate:
		case <-ctx.Done():
			return Generation{}, ctx.Err()
		}
	}
	if a.genErr != nil {
		return Generation{}, a.genErr
	}
	out := []int{idEOS, p.ForcedBOSTokenID}
	for i, id := range enc.InputIDs {
		if enc.AttentionMask[i] == 0 || id == idSiLK || id == idEOS {
			continue
		}
		out = append(out, id)
	}
	out = append(out, idEOS)
	return Generation{TokenIDs: out}, nil
}

func (s *echoSession) Close() error {
	s.a.closed.Store(true)
	return nil
}

func testConfig(t *testing.T, ad *echoAdapter) Config {
	t.Helper()
	tokDir, adDir := writeArtifacts(t, testBase)
	tok := newWordTokenizer()
	return Config{
		BaseModel:       testBase,
		TokenizerDir:    tokDir,
		AdapterDir:      adDir,
		SourceLang:      "si_LK",
		TargetLang:      "en_XX",
		Device:          device.Selection{Device: device.CPU, Reason: "test"},
		Adapter:         ad,
		TokenizerLoader: func(string) (Tokenizer, error) { return tok, nil },
		MaxWait:         2 * time.Second,
		DrainTimeout:    500 * time.Millisecond,
	}
}

// newLoadedEngine builds and loads an engine backed by ad.
func newLoadedEngine(t *testing.T, ad *echoAdapter, mutate ...func(*Config)) *Engine {
	t.Helper()
	cfg := testConfig(t, ad)
	for _, m := range mutate {
		m(&cfg)
	}
	e := New(cfg)
	if err := e.Load(testCtx(t)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return e
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

var errBoom = errors.New("boom")
