package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/drfirst/medguide/internal/audit"
)

// ErrSessionNotFound is returned for unknown or evicted session ids
var ErrSessionNotFound = errors.New("session not found")

// ManagerConfig holds session registry configuration
type ManagerConfig struct {
	// IdleTTL is how long a session may go unused before eviction
	IdleTTL time.Duration
	// SweepInterval is how often idle sessions are looked for
	SweepInterval time.Duration
}

// DefaultManagerConfig returns sensible defaults
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		IdleTTL:       30 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// Manager is the in-memory session registry
type Manager struct {
	deps   Deps
	config ManagerConfig
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started atomic.Bool
}

// NewManager creates a registry. Call Start to enable idle eviction.
func NewManager(deps Deps, cfg ManagerConfig, logger *zap.Logger) (*Manager, error) {
	if deps.Asker == nil || deps.Modifier == nil {
		return nil, fmt.Errorf("session asker and modifier are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultManagerConfig()
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = def.IdleTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	deps.Logger = logger
	deps = deps.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		deps:     deps,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}, nil
}

// Create starts a new session on the default topic
func (m *Manager) Create(ctx context.Context) *Session {
	s := newSession(uuid.NewString(), m.deps, m.now)

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.deps.Observer.SessionOpened()
	m.deps.Recorder.Record(ctx, s.id, audit.EventSessionStarted, audit.SessionStartedData{
		Topic: s.Snapshot().Topic,
	})
	m.logger.Debug("session created", zap.String("session_id", s.id))
	return s
}

// Get returns a live session and marks it as used
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.touch()
	return s, nil
}

// Delete ends a session
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	m.deps.Observer.SessionClosed()
	return nil
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were removed
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.config.IdleTTL)

	m.mu.Lock()
	var evicted []string
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			evicted = append(evicted, id)
		}
	}
	m.mu.Unlock()

	for range evicted {
		m.deps.Observer.SessionClosed()
	}
	if len(evicted) > 0 {
		m.logger.Info("idle sessions evicted", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

// Start launches the idle sweep
func (m *Manager) Start() {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	go m.sweepLoop()
	m.logger.Info("session sweep started",
		zap.Duration("idle_ttl", m.config.IdleTTL),
		zap.Duration("interval", m.config.SweepInterval))
}

// Stop ends the idle sweep
func (m *Manager) Stop() {
	m.cancel()
	if m.started.Load() {
		<-m.done
	}
}

func (m *Manager) sweepLoop() {
	defer close(m.done)

	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
