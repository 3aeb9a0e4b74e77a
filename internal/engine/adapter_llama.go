//go:build llama

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"

	"translatord/internal/common/fsutil"
	"translatord/internal/device"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// llamaAdapterFiles are the converted LoRA files llama.cpp can apply.
var llamaAdapterFiles = []string{"adapter_model.gguf", "ggml-adapter-model.bin"}

// llamaAdapter holds global config used to initialize the model.
type llamaAdapter struct {
	ctxSize   int
	threads   int
	gpuLayers int
}

func NewLlamaAdapter(ctxSize, threads, gpuLayers int) Seq2SeqAdapter {
	return &llamaAdapter{ctxSize: ctxSize, threads: threads, gpuLayers: gpuLayers}
}

func (a *llamaAdapter) Name() string { return "llama" }

func (a *llamaAdapter) Ping(context.Context) error { return nil }

// llamaSession owns the loaded model
type llamaSession struct {
	model   *llama.LLama
	threads int
}

func (a *llamaAdapter) Load(ctx context.Context, spec LoadSpec) (Session, error) {
	if strings.TrimSpace(spec.BaseModelPath) == "" {
		return nil, errors.New("base model path is empty")
	}
	lora, ok := fsutil.FindFirst(spec.Artifacts.AdapterDir, llamaAdapterFiles...)
	if !ok {
		return nil, fmt.Errorf("no llama.cpp adapter file in %s (want one of %s)", spec.Artifacts.AdapterDir, strings.Join(llamaAdapterFiles, ", "))
	}
	mo := []llama.ModelOption{
		llama.SetContext(zn(a.ctxSize, 512)),
		llama.SetLoraBase(spec.BaseModelPath),
		llama.SetLoraAdapter(lora),
	}
	if spec.Device == device.CUDA && a.gpuLayers > 0 {
		mo = append(mo, llama.SetGPULayers(a.gpuLayers))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := llama.New(spec.BaseModelPath, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaSession{model: m, threads: a.threads}, nil
}

func translationPrompt(p GenerateParams, text string) string {
	return "Translate from " + p.SourceLang + " to " + p.TargetLang + ":\n" + text + "\n"
}

// Generate prompts the GGUF model with enc.Text. llama.cpp tokenizes with its
// own vocabulary, so enc.InputIDs and p.ForcedBOSTokenID are not used; the
// target language travels in the prompt.
func (s *llamaSession) Generate(ctx context.Context, enc Encoding, p GenerateParams) (Generation, error) {
	if s.model == nil {
		return Generation{}, errors.New("llama model not initialized")
	}
	s.model.SetTokenCallback(func(string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	})
	// Greedy: top-k 1 at zero temperature.
	po := []llama.PredictOption{
		llama.SetTokens(max(1, p.MaxLength)),
		llama.SetThreads(max(1, s.threads)),
		llama.SetTopK(1),
		llama.SetTemperature(0),
		llama.SetPenalty(llama.DefaultOptions.Penalty),
		llama.SetSeed(0),
		llama.SetStopWords("\n"),
	}
	text, err := s.model.Predict(translationPrompt(p, enc.Text), po...)
	if err != nil {
		if ctx.Err() != nil {
			return Generation{}, ctx.Err()
		}
		return Generation{}, err
	}
	return Generation{Text: strings.TrimSpace(text)}, nil
}

func (s *llamaSession) Close() error {
	if s.model != nil {
		s.model.Free()
		s.model = nil
	}
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
