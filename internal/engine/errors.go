package engine

import "errors"

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ reason string }

func (e tooBusyError) Error() string { return "too busy: " + e.reason }

// ErrTooBusy constructs a tooBusyError.
func ErrTooBusy(reason string) error { return tooBusyError{reason: reason} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// notReadyError signals the model is not (or no longer) loaded.
type notReadyError struct{ state State }

func (e notReadyError) Error() string { return "engine not ready: " + string(e.state) }

// ErrNotReady constructs a notReadyError for the given state.
func ErrNotReady(state State) error { return notReadyError{state: state} }

// IsNotReady reports whether err indicates the engine cannot serve yet (return 503).
func IsNotReady(err error) bool {
	var e notReadyError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a missing external dependency (inference
// server, llama.cpp) so the HTTP layer can return 503 instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}
