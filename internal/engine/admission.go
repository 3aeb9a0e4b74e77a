package engine

import (
	"context"
	"time"
)

// beginGeneration reserves a queue slot and then the single in-flight slot.
// Returns a release func to be deferred.
func (e *Engine) beginGeneration(ctx context.Context) (func(), error) {
	// If draining, reject new work to allow graceful shutdown
	e.mu.RLock()
	st := e.state
	e.mu.RUnlock()
	if st != StateReady {
		return func() {}, ErrNotReady(st)
	}

	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}

	timer := time.NewTimer(e.cfg.MaxWait)
	defer timer.Stop()
	select {
	case e.queueCh <- struct{}{}:
		queueDepth.Set(float64(len(e.queueCh)))
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, ErrTooBusy("queue full")
	}

	// Wait to acquire the single in-flight slot
	acquired := false
	defer func() {
		if !acquired {
			<-e.queueCh
			queueDepth.Set(float64(len(e.queueCh)))
		}
	}()
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	timer2 := time.NewTimer(e.cfg.MaxWait)
	defer timer2.Stop()
	select {
	case e.genCh <- struct{}{}:
		acquired = true
		return func() {
			<-e.genCh
			<-e.queueCh
			queueDepth.Set(float64(len(e.queueCh)))
		}, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer2.C:
		return func() {}, ErrTooBusy("wait timeout")
	}
}
