package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitRunsJob(t *testing.T) {
	p := New(2, 1)
	defer p.Close()

	done := make(chan struct{})
	if !p.Submit(context.Background(), func(ctx context.Context) { close(done) }) {
		t.Fatal("Submit rejected with empty queue")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Job did not run")
	}
}

func TestSubmitBackPressure(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	p.Submit(context.Background(), func(ctx context.Context) {
		close(started)
		<-release
	})
	<-started

	if !p.Submit(context.Background(), func(ctx context.Context) {}) {
		t.Fatal("Expected queue slot to accept one job")
	}
	if p.Submit(context.Background(), func(ctx context.Context) {}) {
		t.Fatal("Expected full queue to reject")
	}
	close(release)
}

func TestPanicIsRecovered(t *testing.T) {
	p := New(1, 2)
	var mu sync.Mutex
	var got any
	p.OnPanic(func(r any) {
		mu.Lock()
		got = r
		mu.Unlock()
	})

	var ran atomic.Bool
	p.Submit(context.Background(), func(ctx context.Context) { panic("boom") })
	p.Submit(context.Background(), func(ctx context.Context) { ran.Store(true) })
	p.Close()

	mu.Lock()
	defer mu.Unlock()
	if got != "boom" {
		t.Fatalf("Expected panic value boom, got %v", got)
	}
	if !ran.Load() {
		t.Fatal("Pool stopped after a panic")
	}
	if err := PanicError(got); err == nil || err.Error() != "panic: boom" {
		t.Fatalf("Unexpected PanicError %v", err)
	}
}

func TestCancelledJobSkipped(t *testing.T) {
	p := New(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Bool
	p.Submit(ctx, func(context.Context) { ran.Store(true) })
	p.Close()
	if ran.Load() {
		t.Fatal("Job with cancelled context should not run")
	}
}

func TestSubmitAfterClose(t *testing.T) {
	p := New(1, 1)
	p.Close()
	p.Close()
	if p.Submit(context.Background(), func(context.Context) {}) {
		t.Fatal("Submit after Close must fail")
	}
}
