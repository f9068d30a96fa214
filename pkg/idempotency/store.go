// Package idempotency replays the stored result of a request retried with
// the same idempotency key instead of running it twice.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Status represents the processing status of a key
type Status string

const (
	StatusStarted  Status = "STARTED"
	StatusFinished Status = "FINISHED"
)

// ErrInProgress indicates the key is being processed by another request
var ErrInProgress = errors.New("request with this idempotency key is in progress")

type entry struct {
	status    Status
	result    json.RawMessage
	updatedAt time.Time
	expiresAt time.Time
}

// Config holds store configuration
type Config struct {
	// TTL is how long a finished result is replayed
	TTL time.Duration
	// CleanupInterval is how often expired keys are dropped
	CleanupInterval time.Duration
	// RecoveryTimeout is when a STARTED key is considered abandoned
	RecoveryTimeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		TTL:             10 * time.Minute,
		CleanupInterval: time.Minute,
		RecoveryTimeout: 2 * time.Minute,
	}
}

// Result is the outcome of Process
type Result struct {
	// IsNew is false when Value was replayed from an earlier run
	IsNew bool
	Value json.RawMessage
}

// ProcessFunc produces the result to store for a key
type ProcessFunc func(ctx context.Context) (json.RawMessage, error)

// Store keeps idempotency keys in memory
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	config  Config
	now     func() time.Time
	logger  *zap.Logger
	tracer  trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStore creates a store. Zero config fields take defaults.
func NewStore(cfg Config, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = def.RecoveryTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		entries: make(map[string]*entry),
		config:  cfg,
		now:     time.Now,
		logger:  logger,
		tracer:  otel.Tracer("idempotency"),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Process runs fn once per key. A finished key replays its stored value; a
// key still running returns ErrInProgress. A failed run releases the key so
// the client may retry.
func (s *Store) Process(ctx context.Context, key string, fn ProcessFunc) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "idempotency_process",
		trace.WithAttributes(attribute.String("idempotency_key", key)))
	defer span.End()

	s.mu.Lock()
	now := s.now()
	if e, ok := s.entries[key]; ok {
		switch {
		case e.status == StatusFinished && now.Before(e.expiresAt):
			s.mu.Unlock()
			span.SetAttributes(attribute.Bool("duplicate", true))
			return &Result{IsNew: false, Value: e.result}, nil
		case e.status == StatusStarted && now.Sub(e.updatedAt) < s.config.RecoveryTimeout:
			s.mu.Unlock()
			return nil, ErrInProgress
		}
		s.logger.Debug("reclaiming idempotency key",
			zap.String("key", key), zap.String("status", string(e.status)))
	}
	s.entries[key] = &entry{status: StatusStarted, updatedAt: now}
	s.mu.Unlock()

	value, err := fn(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		delete(s.entries, key)
		span.RecordError(err)
		return nil, err
	}
	now = s.now()
	s.entries[key] = &entry{
		status:    StatusFinished,
		result:    value,
		updatedAt: now,
		expiresAt: now.Add(s.config.TTL),
	}
	return &Result{IsNew: true, Value: value}, nil
}

// Cleanup drops expired results and abandoned keys, returning how many
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		expired := e.status == StatusFinished && !now.Before(e.expiresAt)
		abandoned := e.status == StatusStarted && now.Sub(e.updatedAt) >= s.config.RecoveryTimeout
		if expired || abandoned {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Start begins periodic cleanup
func (s *Store) Start() {
	go s.cleanupLoop()
	s.logger.Info("idempotency cleanup started", zap.Duration("interval", s.config.CleanupInterval))
}

// Stop stops the cleanup loop. Call only after Start.
func (s *Store) Stop() {
	s.cancel()
	<-s.done
}

func (s *Store) cleanupLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if n := s.Cleanup(); n > 0 {
				s.logger.Debug("expired idempotency keys removed", zap.Int("count", n))
			}
		}
	}
}
