package engine

import (
	"context"

	"translatord/internal/artifacts"
)

// Seq2SeqAdapter abstracts the runtime that owns model weights and generation.
// Concrete implementations (inference server, llama.cpp) satisfy this interface.
type Seq2SeqAdapter interface {
	// Name identifies the backend in status reports.
	Name() string
	// Load places the base model on the device, overlays and merges the
	// adapter and switches to evaluation mode.
	Load(ctx context.Context, spec LoadSpec) (Session, error)
}

// Session is the single process-lifetime model session.
type Session interface {
	// Generate runs one generation. Implementations must return when ctx is canceled.
	Generate(ctx context.Context, enc Encoding, params GenerateParams) (Generation, error)
	// Close releases any resources associated with the session.
	Close() error
}

// LoadSpec describes what the adapter must load.
type LoadSpec struct {
	BaseModel     string
	BaseModelPath string
	Artifacts     artifacts.Set
	Device        string
	Merge         bool
	SourceLang    string
	TargetLang    string
}

// GenerateParams captures generation parameters passed to the adapter.
type GenerateParams struct {
	MaxLength     int
	NumBeams      int
	EarlyStopping bool
	// ForcedBOSTokenID is the first decoder token; -1 means none.
	ForcedBOSTokenID int
	SourceLang       string
	TargetLang       string
}

// Generation is the adapter output. Backends that decode themselves fill
// Text; otherwise the engine decodes TokenIDs.
type Generation struct {
	TokenIDs []int
	Text     string
}
