package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_RetriesUntilSuccess(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	var results []Result

	cfg := Config{Workers: 1, QueueSize: 4, MaxRetries: 3, RetryDelay: time.Millisecond}
	cfg.OnResult = func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}
	p, err := New(cfg, func(ctx context.Context, task *Task) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("broker unavailable")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.Start()

	if err := p.Submit(&Task{ID: "evt-1"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if len(results) != 1 || results[0].Err != nil || results[0].Attempts != 3 {
		t.Fatalf("unexpected results %+v", results)
	}
	s := p.Stats()
	if s.Completed != 1 || s.Retried != 2 || s.Failed != 0 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestPool_GivesUpAfterMaxRetries(t *testing.T) {
	errSink := errors.New("sink down")
	var last Result
	cfg := Config{Workers: 1, QueueSize: 1, MaxRetries: 2, RetryDelay: time.Millisecond}
	cfg.OnResult = func(r Result) { last = r }

	p, _ := New(cfg, func(ctx context.Context, task *Task) error { return errSink }, nil)
	p.Start()
	p.Submit(&Task{ID: "evt-2"})
	p.Stop()

	if !errors.Is(last.Err, errSink) || last.Attempts != 3 {
		t.Errorf("unexpected result %+v", last)
	}
	if p.Stats().Failed != 1 {
		t.Errorf("failed = %d, want 1", p.Stats().Failed)
	}
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p, _ := New(DefaultConfig(), func(ctx context.Context, task *Task) error { return nil }, nil)
	p.Start()
	p.Stop()
	if err := p.Submit(&Task{ID: "late"}); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}
}

func TestPool_QueueFull(t *testing.T) {
	block := make(chan struct{})
	p, _ := New(Config{Workers: 1, QueueSize: 1}, func(ctx context.Context, task *Task) error {
		<-block
		return nil
	}, nil)

	// Not started: the single slot fills and the next submit is rejected.
	if err := p.Submit(&Task{ID: "a"}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := p.Submit(&Task{ID: "b"}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	if p.IsHealthy() {
		t.Error("a full queue is unhealthy")
	}

	close(block)
	p.Start()
	p.Stop()
	if s := p.Stats(); s.Dropped != 1 || s.Completed != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestNew_RequiresFunc(t *testing.T) {
	if _, err := New(DefaultConfig(), nil, nil); err == nil {
		t.Fatal("expected error without worker func")
	}
}
