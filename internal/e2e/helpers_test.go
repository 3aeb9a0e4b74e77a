package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"translatord/internal/device"
	"translatord/internal/engine"
	"translatord/internal/httpapi"
)

const baseModel = "facebook/mbart-large-50-many-to-many-mmt"

const tokenizerJSON = `{
  "version": "1.0",
  "added_tokens": [
    {"id": 0, "content": "<s>", "special": true},
    {"id": 1, "content": "<pad>", "special": true},
    {"id": 2, "content": "</s>", "special": true},
    {"id": 3, "content": "<unk>", "special": true},
    {"id": 100, "content": "si_LK", "special": true},
    {"id": 101, "content": "en_XX", "special": true}
  ],
  "model": {"type": "Unigram"}
}`

// vocab is a fixed word-level vocabulary shared by the tokenizer and the fake server.
var vocab = map[string]int{
	"කසළ":     1000,
	"රෝගය":    1001,
	"Cholera": 2000,
	"disease": 2001,
}

// dictionary maps source id sequences to target id sequences.
var dictionary = map[string][]int64{
	"1000 1001": {2000},
	"1001":      {2001},
}

type vocabTokenizer struct{}

func (vocabTokenizer) Encode(text string) []int {
	var out []int
	for _, f := range strings.Fields(text) {
		if id, ok := vocab[f]; ok {
			out = append(out, id)
		} else {
			out = append(out, 3)
		}
	}
	return out
}

func (vocabTokenizer) Decode(ids []int) string {
	words := make([]string, 0, len(ids))
	for _, id := range ids {
		for w, v := range vocab {
			if v == id {
				words = append(words, w)
			}
		}
	}
	return strings.Join(words, " ")
}

// kserve is a fake KServe v2 inference server translating through dictionary.
type kserve struct {
	mu     sync.Mutex
	infers int
	loads  int

	gate    chan struct{}
	// entered receives a value each time an infer request starts.
	entered chan struct{}
}

type tensor struct {
	Name     string  `json:"name"`
	Shape    []int   `json:"shape"`
	Datatype string  `json:"datatype"`
	Data     []int64 `json:"data"`
}

func (k *kserve) handler() http.Handler {
	mux := http.NewServeMux()
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	mux.HandleFunc("/v2/health/ready", ok)
	mux.HandleFunc("/v2/models/mbart/ready", ok)
	mux.HandleFunc("/v2/repository/models/mbart/unload", ok)
	mux.HandleFunc("/v2/repository/models/mbart/load", func(w http.ResponseWriter, r *http.Request) {
		k.mu.Lock()
		k.loads++
		k.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v2/models/mbart/infer", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID         string         `json:"id"`
			Inputs     []tensor       `json:"inputs"`
			Parameters map[string]any `json:"parameters"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		k.mu.Lock()
		k.infers++
		gate, entered := k.gate, k.entered
		k.mu.Unlock()
		if entered != nil {
			entered <- struct{}{}
		}
		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		ids := req.Inputs[0].Data
		// Strip the language code and eos framing.
		content := ids[1 : len(ids)-1]
		key := make([]string, len(content))
		for i, id := range content {
			key[i] = strconv.FormatInt(id, 10)
		}
		out := []int64{2, 101}
		if tgt, ok := dictionary[strings.Join(key, " ")]; ok {
			out = append(out, tgt...)
		} else {
			out = append(out, content...)
		}
		out = append(out, 2)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    req.ID,
			"model": "mbart",
			"outputs": []tensor{{Name: "output_ids", Shape: []int{1, len(out)}, Datatype: "INT64", Data: out}},
		})
	})
	return mux
}

func (k *kserve) inferCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.infers
}

// writeArtifacts lays out a tokenizer dir and a LoRA adapter dir.
func writeArtifacts(t *testing.T) (tokDir, adDir string) {
	t.Helper()
	tokDir, adDir = t.TempDir(), t.TempDir()
	files := map[string]string{
		filepath.Join(tokDir, "tokenizer.json"):           tokenizerJSON,
		filepath.Join(adDir, "adapter_config.json"):       `{"peft_type":"LORA","base_model_name_or_path":"` + baseModel + `","r":16}`,
		filepath.Join(adDir, "adapter_model.safetensors"): "weights",
	}
	for p, body := range files {
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	return tokDir, adDir
}

type stack struct {
	srv     *httptest.Server
	eng     *engine.Engine
	backend *kserve
	events  *engine.MemoryPublisher
}

// newStack wires a fake inference server, a loaded engine and the HTTP API.
func newStack(t *testing.T, k *kserve, mutate ...func(*engine.Config)) *stack {
	t.Helper()
	ks := httptest.NewServer(k.handler())
	t.Cleanup(ks.Close)
	tokDir, adDir := writeArtifacts(t)
	pub := engine.NewMemoryPublisher()
	cfg := engine.Config{
		BaseModel:       baseModel,
		TokenizerDir:    tokDir,
		AdapterDir:      adDir,
		SourceLang:      "si_LK",
		TargetLang:      "en_XX",
		Device:          device.Select("cpu", device.HostProbe()),
		Backend:         "server",
		ServerURL:       ks.URL,
		ServerModel:     "mbart",
		ServerTimeout:   5 * time.Second,
		TokenizerLoader: func(string) (engine.Tokenizer, error) { return vocabTokenizer{}, nil },
		MaxWait:         2 * time.Second,
		DrainTimeout:    time.Second,
		Publisher:       pub,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	eng := engine.New(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := eng.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	srv := httptest.NewServer(httpapi.NewMux(eng))
	t.Cleanup(srv.Close)
	return &stack{srv: srv, eng: eng, backend: k, events: pub}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func postTranslate(t *testing.T, base, body string) (int, []byte) {
	t.Helper()
	resp, err := http.Post(base+"/translate", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /translate: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}
