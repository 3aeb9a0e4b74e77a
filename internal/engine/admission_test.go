package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAdmission_QueueFullIsTooBusy(t *testing.T) {
	ad := &echoAdapter{gate: make(chan struct{})}
	e := newLoadedEngine(t, ad, func(c *Config) {
		c.MaxQueueDepth = 1
		c.MaxWait = 100 * time.Millisecond
	})
	done := make(chan error, 1)
	go func() {
		_, err := e.Translate(context.Background(), "first")
		done <- err
	}()
	waitFor(t, func() bool { return ad.gens.Load() == 1 })

	_, err := e.Translate(context.Background(), "second")
	if !IsTooBusy(err) {
		t.Fatalf("want too busy, got %v", err)
	}
	ad.gate <- struct{}{}
	if err := <-done; err != nil {
		t.Fatalf("first: %v", err)
	}
}

func TestAdmission_WaitTimeoutIsTooBusy(t *testing.T) {
	ad := &echoAdapter{gate: make(chan struct{})}
	e := newLoadedEngine(t, ad, func(c *Config) {
		c.MaxQueueDepth = 4
		c.MaxWait = 100 * time.Millisecond
	})
	go func() { _, _ = e.Translate(context.Background(), "first") }()
	waitFor(t, func() bool { return ad.gens.Load() == 1 })
	if _, err := e.Translate(context.Background(), "second"); !IsTooBusy(err) {
		t.Fatalf("want too busy, got %v", err)
	}
	if st := e.Status(); st.QueueLen != 1 || st.Inflight != 1 {
		t.Fatalf("queue slot not released: %+v", st)
	}
	ad.gate <- struct{}{}
}

func TestAdmission_CanceledContext(t *testing.T) {
	e := newLoadedEngine(t, &echoAdapter{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Translate(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("want canceled, got %v", err)
	}
}

func TestAdmission_CancelWhileWaitingForGen(t *testing.T) {
	ad := &echoAdapter{gate: make(chan struct{})}
	e := newLoadedEngine(t, ad)
	go func() { _, _ = e.Translate(context.Background(), "first") }()
	waitFor(t, func() bool { return ad.gens.Load() == 1 })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if _, err := e.Translate(ctx, "second"); !errors.Is(err, context.Canceled) {
		t.Fatalf("want canceled, got %v", err)
	}
	if got := len(e.queueCh); got != 1 {
		t.Fatalf("queue len=%d after cancel, want 1", got)
	}
	ad.gate <- struct{}{}
}

func TestAdmission_NeverOverlaps(t *testing.T) {
	ad := &echoAdapter{gate: make(chan struct{})}
	e := newLoadedEngine(t, ad, func(c *Config) { c.MaxQueueDepth = 8 })
	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Translate(context.Background(), "same words")
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		ad.gate <- struct{}{}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("translate: %v", err)
		}
	}
	if m := ad.maxActive.Load(); m != 1 {
		t.Fatalf("max concurrent generations=%d", m)
	}
}

func TestInferTimeout(t *testing.T) {
	ad := &echoAdapter{gate: make(chan struct{})}
	e := newLoadedEngine(t, ad, func(c *Config) { c.InferTimeout = 50 * time.Millisecond })
	if _, err := e.Translate(context.Background(), "x"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
}
