//go:build !llama

package engine

import "context"

// llamaBuilt indicates this binary was compiled without llama support.
var llamaBuilt = false

const llamaMissing = "llama support not built (missing 'llama' build tag)"

// llamaAdapter is a stub that refuses to load without the 'llama' build tag,
// keeping default builds and CI CGO-free.
type llamaAdapter struct {
	ctxSize   int
	threads   int
	gpuLayers int
}

func NewLlamaAdapter(ctxSize, threads, gpuLayers int) Seq2SeqAdapter {
	return &llamaAdapter{ctxSize: ctxSize, threads: threads, gpuLayers: gpuLayers}
}

func (a *llamaAdapter) Name() string { return "llama" }

func (a *llamaAdapter) Ping(context.Context) error { return ErrDependencyUnavailable(llamaMissing) }

func (a *llamaAdapter) Load(context.Context, LoadSpec) (Session, error) {
	return nil, ErrDependencyUnavailable(llamaMissing)
}
