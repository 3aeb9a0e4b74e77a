// Package engine owns the single translation model session: it loads the
// tokenizer and the adapted model once at startup, frames inputs for the
// seq2seq model, serializes access to the session and decodes outputs.
// It is structured into small files by concern:
//
//   - engine.go: Engine type, Load, Translate, Close.
//   - config.go: Config and package defaults; New applies defaults.
//   - types.go: lifecycle State.
//   - errors.go: error types and helpers (IsTooBusy, IsNotReady, IsDependencyUnavailable).
//   - tokenizer.go: Tokenizer interface and the special-token table.
//   - tokenizer_unigram.go: offline Unigram tokenizer read from tokenizer.json.
//   - encoding.go: input framing (language code, eos, truncation, padding) and decoding.
//   - admission.go: FIFO queueing and the single in-flight generation slot.
//   - adapter_iface.go: Seq2SeqAdapter/Session contract for backends.
//   - adapter_server.go: KServe v2 inference server backend.
//   - adapter_llama.go: in-process go-llama.cpp backend (build tag 'llama').
//   - status_report.go, sanity.go, metrics.go: reporting.
//
// Build tags:
//
//   - In-process llama: enabled with `-tags=llama`. Files: adapter_llama.go,
//     llama_cgo.go. A no-CGO stub is compiled otherwise: adapter_llama_stub.go.
package engine
