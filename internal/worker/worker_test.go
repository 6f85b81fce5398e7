package worker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_SubmitRunsJobs(t *testing.T) {
	p := New(4, 16)
	defer p.Stop()

	var n int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		if err := p.Submit(func() {
			atomic.AddInt32(&n, 1)
			wg.Done()
		}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	wg.Wait()

	if atomic.LoadInt32(&n) != 10 {
		t.Fatalf("expected 10 jobs run, got %d", n)
	}
}

func TestPool_SubmitAfterStopReturnsErrClosed(t *testing.T) {
	p := New(1, 4)
	p.Stop()

	if err := p.Submit(func() {}); err != ErrClosed {
		t.Fatalf("expected ErrClosed after Stop, got %v", err)
	}
}

func TestPool_TrySubmitReturnsFalseWhenFull(t *testing.T) {
	p := New(1, 1)
	defer p.Stop()

	block := make(chan struct{})
	if !p.TrySubmit(func() { <-block }) {
		t.Fatalf("expected first job to be accepted")
	}
	// Give the single worker a moment to dequeue the blocking job, leaving
	// the queue slot free for the next submission to actually fill it.
	time.Sleep(10 * time.Millisecond)
	if !p.TrySubmit(func() {}) {
		t.Fatalf("expected the queue slot to accept a second job")
	}
	if p.TrySubmit(func() {}) {
		t.Fatalf("expected TrySubmit to report false once the queue is full")
	}
	close(block)
}
