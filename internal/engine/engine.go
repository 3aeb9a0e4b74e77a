package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"translatord/internal/artifacts"
)

// Memory remembers finished translations keyed by NormalizeSource text,
// language pair and model identity.
type Memory interface {
	Lookup(ctx context.Context, sourceText, sourceLang, targetLang, modelKey string) (string, bool, error)
	Save(ctx context.Context, sourceText, sourceLang, targetLang, modelKey, translation string) error
}

type Engine struct {
	mu        sync.RWMutex
	cfg       Config
	state     State
	err       string
	adapter   Seq2SeqAdapter
	sess      Session
	tok       Tokenizer
	specials  SpecialTokens
	srcLangID int
	tgtLangID int
	arts      artifacts.Set
	modelKey  string
	publisher EventPublisher
	log       zerolog.Logger

	// Queueing primitives
	genCh   chan struct{} // size 1: single in-flight generation
	queueCh chan struct{} // buffered: queue slots

	startTime time.Time
	loadDur   time.Duration

	translations atomic.Uint64
	failures     atomic.Uint64
	memoryHits   atomic.Uint64

	closeOnce sync.Once
}

// SetEventPublisher installs an event publisher; nil restores the no-op default.
func (e *Engine) SetEventPublisher(p EventPublisher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p == nil {
		e.publisher = noopPublisher{}
		return
	}
	e.publisher = p
}

func (e *Engine) publish(name string, fields map[string]any) {
	e.mu.RLock()
	p := e.publisher
	e.mu.RUnlock()
	if fields == nil {
		fields = map[string]any{}
	}
	p.Publish(Event{Name: name, Fields: fields})
}

// Ready reports whether the model is loaded and accepting work.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state == StateReady
}

// Device returns the compute device the session was placed on.
func (e *Engine) Device() string { return e.cfg.Device.Device }

// Languages returns the fixed source and target language codes.
func (e *Engine) Languages() (source, target string) {
	return e.cfg.SourceLang, e.cfg.TargetLang
}

// Load resolves artifacts, loads the tokenizer and the adapted model, in
// that order, without retrying. Any failure leaves the engine in StateError.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateLoading {
		st := e.state
		e.mu.Unlock()
		return fmt.Errorf("load: engine is %s", st)
	}
	e.mu.Unlock()

	start := time.Now()
	e.publish(EventLoadStart, map[string]any{"base_model": e.cfg.BaseModel, "device": e.cfg.Device.Device, "backend": e.adapter.Name()})
	err := e.load(ctx)
	if err != nil {
		e.mu.Lock()
		e.state = StateError
		e.err = err.Error()
		e.mu.Unlock()
		e.publish(EventLoadError, map[string]any{"error": err.Error()})
		e.log.Error().Err(err).Msg("model load failed")
		return err
	}
	e.mu.Lock()
	e.loadDur = time.Since(start)
	e.state = StateReady
	e.mu.Unlock()
	e.publish(EventReady, map[string]any{"load_ms": e.loadDur.Milliseconds()})
	e.log.Info().Str("device", e.cfg.Device.Device).Str("backend", e.adapter.Name()).
		Dur("load", e.loadDur).Msg("model ready")
	return nil
}

func (e *Engine) load(ctx context.Context) error {
	arts, err := artifacts.Resolve(artifacts.Spec{
		BaseModel:     e.cfg.BaseModel,
		TokenizerDir:  e.cfg.TokenizerDir,
		AdapterDir:    e.cfg.AdapterDir,
		Download:      e.cfg.Download,
		TokenizerRepo: e.cfg.TokenizerRepo,
		AdapterRepo:   e.cfg.AdapterRepo,
		Hub:           e.cfg.Hub,
	})
	if err != nil {
		return fmt.Errorf("resolve artifacts: %w", err)
	}

	tok, err := e.cfg.TokenizerLoader(arts.TokenizerDir)
	if err != nil {
		return fmt.Errorf("tokenizer: %w", err)
	}
	specials, err := LoadSpecialTokens(arts.TokenizerDir)
	if err != nil {
		return fmt.Errorf("tokenizer special tokens: %w", err)
	}
	srcID, ok := specials.ID(e.cfg.SourceLang)
	if !ok {
		return fmt.Errorf("tokenizer has no language code %q", e.cfg.SourceLang)
	}
	tgtID, ok := specials.ID(e.cfg.TargetLang)
	if !ok {
		return fmt.Errorf("tokenizer has no language code %q", e.cfg.TargetLang)
	}
	if specials.EOS < 0 {
		return errors.New("tokenizer has no end-of-sequence token")
	}
	e.publish(EventTokenizerLoaded, map[string]any{"dir": arts.TokenizerDir, "special_tokens": specials.Len()})

	if err := ctx.Err(); err != nil {
		return err
	}
	sess, err := e.adapter.Load(ctx, LoadSpec{
		BaseModel:     e.cfg.BaseModel,
		BaseModelPath: e.cfg.BaseModelPath,
		Artifacts:     arts,
		Device:        e.cfg.Device.Device,
		Merge:         true,
		SourceLang:    e.cfg.SourceLang,
		TargetLang:    e.cfg.TargetLang,
	})
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	e.publish(EventAdapterMerged, map[string]any{"adapter": arts.AdapterDir, "rank": arts.Adapter.Rank})

	e.mu.Lock()
	e.arts = arts
	e.tok = tok
	e.specials = specials
	e.srcLangID = srcID
	e.tgtLangID = tgtID
	e.sess = sess
	e.modelKey = e.cfg.BaseModel + "+" + arts.AdapterDir + "@" + arts.AdapterDigest
	e.mu.Unlock()
	return nil
}

// ModelKey identifies the loaded base model and adapter weights. It is empty
// until Load succeeds.
func (e *Engine) ModelKey() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.modelKey
}

// NormalizeSource is the form of the input that is both encoded and used as
// the translation memory key: trimmed and NFC normalized.
func NormalizeSource(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// Translate runs one translation. Generation is greedy, so identical inputs
// yield identical outputs.
func (e *Engine) Translate(ctx context.Context, text string) (string, error) {
	e.mu.RLock()
	st := e.state
	e.mu.RUnlock()
	if st != StateReady {
		return "", ErrNotReady(st)
	}

	src := NormalizeSource(text)
	if out, ok := e.recall(ctx, src); ok {
		return out, nil
	}

	release, err := e.beginGeneration(ctx)
	if err != nil {
		if IsTooBusy(err) {
			observeOutcome("busy")
		}
		return "", err
	}
	defer release()

	e.mu.RLock()
	sess := e.sess
	e.mu.RUnlock()
	if sess == nil {
		return "", ErrNotReady(StateDraining)
	}

	if e.cfg.InferTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.InferTimeout)
		defer cancel()
	}

	enc := Encode(e.tok, e.specials, src, e.srcLangID, e.cfg.MaxInputTokens)
	enc = PadBatch([]Encoding{enc}, e.specials.PAD)[0]
	params := GenerateParams{
		MaxLength:        e.cfg.MaxOutputTokens,
		NumBeams:         e.cfg.NumBeams,
		EarlyStopping:    true,
		ForcedBOSTokenID: e.tgtLangID,
		SourceLang:       e.cfg.SourceLang,
		TargetLang:       e.cfg.TargetLang,
	}
	start := time.Now()
	gen, err := sess.Generate(ctx, enc, params)
	generationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		e.failures.Add(1)
		observeOutcome("error")
		e.log.Error().Err(err).Int("input_tokens", enc.Len()).Msg("generation failed")
		return "", fmt.Errorf("generate: %w", err)
	}
	out := gen.Text
	if out == "" && len(gen.TokenIDs) > 0 {
		out = Decode(e.tok, e.specials, gen.TokenIDs)
	}
	tokensTotal.WithLabelValues("input").Add(float64(enc.Len()))
	tokensTotal.WithLabelValues("output").Add(float64(len(gen.TokenIDs)))
	e.translations.Add(1)
	observeOutcome("ok")
	e.log.Debug().Int("input_tokens", enc.Len()).Int("output_tokens", len(gen.TokenIDs)).
		Dur("took", time.Since(start)).Msg("translated")

	e.remember(ctx, src, out)
	return out, nil
}

func (e *Engine) recall(ctx context.Context, src string) (string, bool) {
	if e.cfg.Memory == nil {
		return "", false
	}
	out, ok, err := e.cfg.Memory.Lookup(ctx, src, e.cfg.SourceLang, e.cfg.TargetLang, e.modelKey)
	if err != nil {
		e.log.Warn().Err(err).Msg("translation memory lookup failed")
		return "", false
	}
	if !ok {
		return "", false
	}
	e.memoryHits.Add(1)
	e.translations.Add(1)
	memoryHitsTotal.Inc()
	observeOutcome("memory")
	return out, true
}

func (e *Engine) remember(ctx context.Context, src, out string) {
	if e.cfg.Memory == nil || out == "" {
		return
	}
	if err := e.cfg.Memory.Save(ctx, src, e.cfg.SourceLang, e.cfg.TargetLang, e.modelKey, out); err != nil {
		e.log.Warn().Err(err).Msg("translation memory save failed")
	}
}

// Close drains queued and in-flight work (bounded by the drain timeout) and
// releases the model session. It is safe to call more than once.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.state = StateDraining
		e.mu.Unlock()
		e.publish(EventDrainStart, nil)

		deadline := time.Now().Add(e.cfg.DrainTimeout)
		for len(e.queueCh) > 0 || len(e.genCh) > 0 {
			if time.Now().After(deadline) {
				e.publish(EventDrainTimeout, map[string]any{"inflight": len(e.genCh), "queue": len(e.queueCh)})
				break
			}
			time.Sleep(10 * time.Millisecond)
		}

		e.mu.Lock()
		sess := e.sess
		e.sess = nil
		e.mu.Unlock()
		if sess != nil {
			err = sess.Close()
		}
		e.publish(EventClosed, nil)
	})
	return err
}
