package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPool_StartStop(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, job int) error {
		processed.Add(1)
		return nil
	}

	pool := NewPool("test", 2, 10, processor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	for i := 0; i < 5; i++ {
		if err := pool.Submit(ctx, i); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	// Stop drains the queue before returning.
	pool.Stop()

	if processed.Load() != 5 {
		t.Errorf("expected 5 jobs processed, got %d", processed.Load())
	}
}

func TestPool_ConcurrentSubmit(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, job int) error {
		processed.Add(1)
		return nil
	}

	pool := NewPool("test", 4, 100, processor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		go func(n int) {
			pool.Submit(ctx, n)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 100; i++ {
		<-done
	}

	pool.Stop()

	if processed.Load() != 100 {
		t.Errorf("expected 100 jobs processed, got %d", processed.Load())
	}
}

func TestPool_TrySubmitCoalesces(t *testing.T) {
	release := make(chan struct{})
	var processed atomic.Int64
	processor := func(ctx context.Context, job string) error {
		<-release
		processed.Add(1)
		return nil
	}

	pool := NewPool("cycles", 1, 1, processor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	if !pool.TrySubmit("first") {
		t.Fatal("expected first job to be queued")
	}
	// Wait for the worker to pick up the first job so the queue is empty.
	deadline := time.Now().Add(time.Second)
	for len(pool.jobs) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if !pool.TrySubmit("second") {
		t.Fatal("expected second job to fill the queue")
	}
	if pool.TrySubmit("third") {
		t.Error("expected third job to be rejected while the queue is full")
	}

	close(release)
	pool.Stop()

	if processed.Load() != 2 {
		t.Errorf("expected 2 jobs processed, got %d", processed.Load())
	}
}

func TestPool_SubmitAfterStop(t *testing.T) {
	pool := NewPool("test", 1, 1, func(ctx context.Context, job int) error { return nil })
	pool.Start(context.Background())
	pool.Stop()
	pool.Stop()

	if err := pool.Submit(context.Background(), 1); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("expected ErrPoolStopped, got %v", err)
	}
	if pool.TrySubmit(1) {
		t.Error("expected TrySubmit to fail after Stop")
	}
}

func TestPool_SubmitHonorsContext(t *testing.T) {
	release := make(chan struct{})
	pool := NewPool("test", 1, 0, func(ctx context.Context, job int) error {
		<-release
		return nil
	})
	pool.Start(context.Background())

	// The only worker is busy with this job and the queue has no buffer.
	if err := pool.Submit(context.Background(), 1); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := pool.Submit(ctx, 2); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	close(release)
	pool.Stop()
}

func TestPool_ContextCancellation(t *testing.T) {
	var started atomic.Int64
	var completed atomic.Int64

	processor := func(ctx context.Context, job int) error {
		started.Add(1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
			completed.Add(1)
			return nil
		}
	}

	pool := NewPool("test", 2, 10, processor)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	for i := 0; i < 5; i++ {
		pool.Submit(ctx, i)
	}

	time.Sleep(50 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool.Stop() timed out")
	}

	t.Logf("started: %d, completed: %d", started.Load(), completed.Load())
}
