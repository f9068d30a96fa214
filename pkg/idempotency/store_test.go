package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestProcess_ReplaysFinishedResult(t *testing.T) {
	s := NewStore(DefaultConfig(), nil)
	calls := 0
	fn := func(ctx context.Context) (json.RawMessage, error) {
		calls++
		return json.RawMessage(`{"n":1}`), nil
	}

	first, err := s.Process(context.Background(), "k1", fn)
	if err != nil || !first.IsNew {
		t.Fatalf("first Process = %+v, %v", first, err)
	}
	second, err := s.Process(context.Background(), "k1", fn)
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if second.IsNew || string(second.Value) != `{"n":1}` {
		t.Errorf("expected replay, got %+v", second)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestProcess_InProgressKeyIsRejected(t *testing.T) {
	s := NewStore(DefaultConfig(), nil)
	started := make(chan struct{})
	release := make(chan struct{})

	go s.Process(context.Background(), "k", func(ctx context.Context) (json.RawMessage, error) {
		close(started)
		<-release
		return json.RawMessage(`1`), nil
	})
	<-started

	_, err := s.Process(context.Background(), "k", func(ctx context.Context) (json.RawMessage, error) {
		t.Error("second run must not execute")
		return nil, nil
	})
	close(release)
	if !errors.Is(err, ErrInProgress) {
		t.Errorf("expected ErrInProgress, got %v", err)
	}
}

func TestProcess_FailureReleasesKey(t *testing.T) {
	s := NewStore(DefaultConfig(), nil)
	boom := errors.New("boom")

	if _, err := s.Process(context.Background(), "k", func(ctx context.Context) (json.RawMessage, error) {
		return nil, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("failed key should be released, %d tracked", s.Len())
	}

	res, err := s.Process(context.Background(), "k", func(ctx context.Context) (json.RawMessage, error) {
		return json.RawMessage(`2`), nil
	})
	if err != nil || !res.IsNew {
		t.Errorf("retry = %+v, %v", res, err)
	}
}

func TestCleanup_DropsExpiredAndAbandoned(t *testing.T) {
	s := NewStore(Config{TTL: time.Minute, RecoveryTimeout: time.Minute}, nil)
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	s.Process(context.Background(), "done", func(ctx context.Context) (json.RawMessage, error) {
		return json.RawMessage(`1`), nil
	})
	s.mu.Lock()
	s.entries["stuck"] = &entry{status: StatusStarted, updatedAt: clock}
	s.mu.Unlock()

	if n := s.Cleanup(); n != 0 {
		t.Fatalf("nothing should expire yet, removed %d", n)
	}
	clock = clock.Add(2 * time.Minute)
	if n := s.Cleanup(); n != 2 {
		t.Errorf("removed %d, want 2", n)
	}
}
