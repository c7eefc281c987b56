package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// slowRegistry blocks every Get until release is closed.
type slowRegistry struct {
	*MemoryStore
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *slowRegistry) Get(ctx context.Context, id string) (string, error) {
	r.calls.Add(1)
	r.once.Do(func() { close(r.entered) })
	<-r.release
	return r.MemoryStore.Get(ctx, id)
}

func TestCoalescedGetDeduplicates(t *testing.T) {
	inner := &slowRegistry{
		MemoryStore: NewMemoryStore(0),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	_ = inner.MemoryStore.Set(context.Background(), "abc", "sess1")
	c := Coalesce(inner)

	const goroutines = 10
	results := make([]string, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)

	go func() {
		defer wg.Done()
		results[0], _ = c.Get(context.Background(), "abc")
	}()
	<-inner.entered

	for i := 1; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.Get(context.Background(), "abc")
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	for i, got := range results {
		if got != "sess1" {
			t.Errorf("results[%d] = %q, want %q", i, got, "sess1")
		}
	}
	if n := inner.calls.Load(); n >= goroutines {
		t.Errorf("inner Get called %d times, want fewer than %d", n, goroutines)
	}
}

// ctxRegistry blocks every Get until release is closed or ctx is done.
type ctxRegistry struct {
	*MemoryStore
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *ctxRegistry) Get(ctx context.Context, id string) (string, error) {
	r.calls.Add(1)
	r.once.Do(func() { close(r.entered) })
	select {
	case <-r.release:
		return r.MemoryStore.Get(ctx, id)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestCoalescedGetSurvivesCancelledCaller(t *testing.T) {
	inner := &ctxRegistry{
		MemoryStore: NewMemoryStore(0),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	_ = inner.MemoryStore.Set(context.Background(), "abc", "sess1")
	c := Coalesce(inner)

	type result struct {
		id  string
		err error
	}
	first := make(chan result, 1)
	second := make(chan result, 1)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	go func() {
		id, err := c.Get(firstCtx, "abc")
		first <- result{id, err}
	}()
	<-inner.entered

	go func() {
		id, err := c.Get(context.Background(), "abc")
		second <- result{id, err}
	}()
	time.Sleep(50 * time.Millisecond)
	cancelFirst()

	select {
	case r := <-first:
		if !errors.Is(r.err, context.Canceled) {
			t.Errorf("cancelled caller err = %v, want context.Canceled", r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(inner.release)
	select {
	case r := <-second:
		if r.err != nil {
			t.Fatalf("live caller returned unexpected error: %v", r.err)
		}
		if r.id != "sess1" {
			t.Errorf("live caller got %q, want %q", r.id, "sess1")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("live caller did not return")
	}
	if n := inner.calls.Load(); n != 1 {
		t.Errorf("inner Get called %d times, want 1", n)
	}
}

func TestCoalescedGetTimesOut(t *testing.T) {
	inner := &ctxRegistry{
		MemoryStore: NewMemoryStore(0),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	c := Coalesce(inner)
	c.timeout = 20 * time.Millisecond

	_, err := c.Get(context.Background(), "abc")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Get err = %v, want context.DeadlineExceeded", err)
	}
}

func TestCoalescedSetAndDelete(t *testing.T) {
	inner := NewMemoryStore(0)
	c := Coalesce(inner)
	ctx := context.Background()

	if err := c.Set(ctx, "abc", "sess1"); err != nil {
		t.Fatalf("Set returned unexpected error: %v", err)
	}
	got, err := c.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get returned unexpected error: %v", err)
	}
	if got != "sess1" {
		t.Errorf("Get = %q, want %q", got, "sess1")
	}

	if err := c.Delete(ctx, "abc"); err != nil {
		t.Fatalf("Delete returned unexpected error: %v", err)
	}
	if inner.Len() != 0 {
		t.Errorf("inner Len after Delete = %d, want 0", inner.Len())
	}
	if c.Unwrap() != Registry(inner) {
		t.Error("Unwrap did not return the wrapped registry")
	}
}

// getSetOnly is a Registry with neither Delete nor Sweep.
type getSetOnly struct{ m *MemoryStore }

func (r getSetOnly) Get(ctx context.Context, id string) (string, error) { return r.m.Get(ctx, id) }
func (r getSetOnly) Set(ctx context.Context, id, s string) error        { return r.m.Set(ctx, id, s) }

func TestCoalescedOptionalCapabilities(t *testing.T) {
	c := Coalesce(getSetOnly{m: NewMemoryStore(0)})

	if err := c.Delete(context.Background(), "abc"); err != nil {
		t.Errorf("Delete on non-deleter returned %v, want nil", err)
	}
	if n := c.Sweep(context.Background()); n != 0 {
		t.Errorf("Sweep on non-expirer = %d, want 0", n)
	}
}
