package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolConcurrencyLimit(t *testing.T) {
	pool := New(2)
	defer func() {
		_ = pool.Shutdown(context.Background())
	}()

	var current int32
	var max int32

	work := func() {
		val := atomic.AddInt32(&current, 1)
		for {
			prev := atomic.LoadInt32(&max)
			if val <= prev {
				break
			}
			if atomic.CompareAndSwapInt32(&max, prev, val) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&current, -1)
	}

	for i := 0; i < 4; i++ {
		if err := pool.TrySubmit(work); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}

	_ = pool.Shutdown(context.Background())
	if max > 2 {
		t.Fatalf("expected max concurrency <= 2, got %d", max)
	}
}

func TestPoolTrySubmitFull(t *testing.T) {
	pool := New(1, WithQueueSize(1))
	release := make(chan struct{})
	started := make(chan struct{})
	defer func() {
		close(release)
		_ = pool.Shutdown(context.Background())
	}()

	if err := pool.TrySubmit(func() {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	<-started

	if err := pool.TrySubmit(func() { <-release }); err != nil {
		t.Fatalf("queued submit failed: %v", err)
	}
	if err := pool.TrySubmit(func() {}); !errors.Is(err, ErrPoolFull) {
		t.Fatalf("expected ErrPoolFull, got %v", err)
	}
}

func TestPoolTrySubmitAfterShutdown(t *testing.T) {
	pool := New(1)
	_ = pool.Shutdown(context.Background())
	if err := pool.TrySubmit(func() {}); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}

func TestPoolRecoversPanics(t *testing.T) {
	var recovered atomic.Value
	pool := New(1, WithPanicHandler(func(r any) { recovered.Store(r) }))

	if err := pool.TrySubmit(func() { panic("boom") }); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	var ran atomic.Bool
	if err := pool.TrySubmit(func() { ran.Store(true) }); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	_ = pool.Shutdown(context.Background())

	if recovered.Load() != "boom" {
		t.Fatalf("expected panic value to be reported, got %v", recovered.Load())
	}
	if !ran.Load() {
		t.Fatal("pool stopped working after panic")
	}
}

func TestPoolShutdownDrainsQueue(t *testing.T) {
	pool := New(1, WithQueueSize(4))
	var done atomic.Int32
	for i := 0; i < 4; i++ {
		if err := pool.TrySubmit(func() {
			time.Sleep(5 * time.Millisecond)
			done.Add(1)
		}); err != nil {
			t.Fatalf("submit %d failed: %v", i, err)
		}
	}
	if err := pool.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if done.Load() != 4 {
		t.Fatalf("expected 4 tasks to finish, got %d", done.Load())
	}
}

func TestPoolShutdownTimeout(t *testing.T) {
	pool := New(1)
	release := make(chan struct{})
	defer close(release)
	if err := pool.TrySubmit(func() { <-release }); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := pool.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline exceeded, got %v", err)
	}
	if pool.Size() != 1 {
		t.Fatalf("expected size 1, got %d", pool.Size())
	}
}
