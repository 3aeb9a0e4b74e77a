package engine

import (
	"context"

	"translatord/internal/artifacts"
)

// Pinger is implemented by adapters that can check their runtime without loading.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SanityReport describes preflight checks for artifacts and the backend.
type SanityReport struct {
	Device           string         `json:"device"`
	DeviceReason     string         `json:"device_reason"`
	Backend          string         `json:"backend"`
	LlamaBuilt       bool           `json:"llama_built"`
	ArtifactsOK      bool           `json:"artifacts_ok"`
	Artifacts        *artifacts.Set `json:"artifacts,omitempty"`
	BackendReachable bool           `json:"backend_reachable"`
	Errors           []string       `json:"errors,omitempty"`
}

// OK reports whether every check passed.
func (r SanityReport) OK() bool { return r.ArtifactsOK && r.BackendReachable }

// SanityCheck validates artifacts, loads the tokenizer and checks backend reachability.
// It does not load the model and does not mutate state.
func (e *Engine) SanityCheck(ctx context.Context) SanityReport {
	r := SanityReport{
		Device:       e.cfg.Device.Device,
		DeviceReason: e.cfg.Device.Reason,
		Backend:      e.adapter.Name(),
		LlamaBuilt:   llamaBuilt,
	}
	set, err := artifacts.Resolve(artifacts.Spec{
		BaseModel:    e.cfg.BaseModel,
		TokenizerDir: e.cfg.TokenizerDir,
		AdapterDir:   e.cfg.AdapterDir,
	})
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	} else {
		r.ArtifactsOK = true
		r.Artifacts = &set
		if _, err := LoadSpecialTokens(set.TokenizerDir); err != nil {
			r.ArtifactsOK = false
			r.Errors = append(r.Errors, err.Error())
		}
		if _, err := e.cfg.TokenizerLoader(set.TokenizerDir); err != nil {
			r.ArtifactsOK = false
			r.Errors = append(r.Errors, "tokenizer: "+err.Error())
		}
	}
	if p, ok := e.adapter.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			r.Errors = append(r.Errors, err.Error())
		} else {
			r.BackendReachable = true
		}
	} else {
		r.BackendReachable = true
	}
	return r
}
