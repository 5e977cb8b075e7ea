package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPool_DoRunsJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPool(2, zerolog.Nop())
	p.Start(ctx)

	ran := false
	if err := p.Do(ctx, func(context.Context) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if !ran {
		t.Fatalf("expected job to run")
	}
}

func TestPool_DoReturnsJobError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPool(1, zerolog.Nop())
	p.Start(ctx)

	want := errors.New("boom")
	if err := p.Do(ctx, func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestPool_LimitsConcurrency(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const workers = 2
	p := NewPool(workers, zerolog.Nop())
	p.Start(ctx)

	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Do(ctx, func(context.Context) error {
				n := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if peak > workers {
		t.Fatalf("expected at most %d concurrent jobs, saw %d", workers, peak)
	}
}

func TestPool_RecoversPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPool(1, zerolog.Nop())
	p.Start(ctx)

	if err := p.Do(ctx, func(context.Context) error { panic("bad") }); err == nil {
		t.Fatalf("expected error from panicking job")
	}
	if err := p.Do(ctx, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("worker should survive a panic, got %v", err)
	}
}

func TestPool_CancelledCallerDoesNotWait(t *testing.T) {
	poolCtx, stop := context.WithCancel(context.Background())
	defer stop()

	p := NewPool(1, zerolog.Nop())
	p.Start(poolCtx)

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = p.Do(poolCtx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	defer close(release)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Do(ctx, func(context.Context) error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestPool_ClosedAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPool(1, zerolog.Nop())
	p.Start(ctx)
	cancel()
	p.Wait()

	if err := p.Do(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed after the pool stopped, got %v", err)
	}
}

func TestPool_StopRunsQueuedJobs(t *testing.T) {
	poolCtx, stop := context.WithCancel(context.Background())
	defer stop()

	p := NewPool(1, zerolog.Nop())
	p.Start(poolCtx)

	started := make(chan struct{})
	release := make(chan struct{})
	busy := make(chan error, 1)
	go func() {
		busy <- p.Do(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	var ran atomic.Bool
	queued := make(chan error, 1)
	go func() {
		queued <- p.Do(context.Background(), func(context.Context) error {
			ran.Store(true)
			return nil
		})
	}()

	deadline := time.Now().Add(time.Second)
	for len(p.jobs) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("second job was never queued")
		}
		time.Sleep(time.Millisecond)
	}

	stop()
	close(release)

	for name, ch := range map[string]chan error{"busy": busy, "queued": queued} {
		select {
		case err := <-ch:
			if err != nil {
				t.Fatalf("%s job returned %v", name, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s job caller still blocked after stop", name)
		}
	}
	if !ran.Load() {
		t.Fatalf("queued job did not run")
	}

	waited := make(chan struct{})
	go func() {
		p.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatalf("workers did not exit after draining")
	}
}
