// Package postgres stores conversation audit events in a transactional
// outbox table and relays them to Kafka.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drfirst/medguide/internal/audit"
)

// Schema creates the outbox table. It is safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_outbox (
	id          BIGSERIAL PRIMARY KEY,
	event_id    UUID NOT NULL UNIQUE,
	session_id  TEXT NOT NULL,
	event_type  TEXT NOT NULL,
	payload     JSONB NOT NULL,
	kafka_topic TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	processed_at TIMESTAMPTZ,
	retry_count INT NOT NULL DEFAULT 0,
	last_error  TEXT
);
CREATE INDEX IF NOT EXISTS audit_outbox_pending_idx
	ON audit_outbox (created_at) WHERE processed_at IS NULL;
`

// DBTX is the subset of pgx shared by pools, connections and transactions
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OutboxEntry is one row of the audit outbox
type OutboxEntry struct {
	ID          int64
	EventID     string
	SessionID   string
	EventType   string
	Payload     json.RawMessage
	KafkaTopic  string
	CreatedAt   time.Time
	ProcessedAt *time.Time
	RetryCount  int
	LastError   *string
}

// EntryFromEvent builds the outbox row for an audit event
func EntryFromEvent(topic string, event *audit.Event) (*OutboxEntry, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	return &OutboxEntry{
		EventID:    event.ID,
		SessionID:  event.SessionID,
		EventType:  string(event.EventType),
		Payload:    payload,
		KafkaTopic: topic,
	}, nil
}

// EnsureSchema applies Schema
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply outbox schema: %w", err)
	}
	return nil
}

// WriteEntry inserts an outbox row. Re-inserting an event id is a no-op.
func WriteEntry(ctx context.Context, db DBTX, entry *OutboxEntry) error {
	query := `
		INSERT INTO audit_outbox (event_id, session_id, event_type, payload, kafka_topic)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING
	`
	if _, err := db.Exec(ctx, query,
		entry.EventID,
		entry.SessionID,
		entry.EventType,
		entry.Payload,
		entry.KafkaTopic,
	); err != nil {
		return fmt.Errorf("failed to write outbox entry: %w", err)
	}
	return nil
}

// OutboxWriter is the postgres audit sink
type OutboxWriter struct {
	pool  *pgxpool.Pool
	topic string
}

// NewOutboxWriter writes audit events destined for topic
func NewOutboxWriter(pool *pgxpool.Pool, topic string) *OutboxWriter {
	return &OutboxWriter{pool: pool, topic: topic}
}

// Publish implements audit.Publisher
func (w *OutboxWriter) Publish(ctx context.Context, event *audit.Event) error {
	entry, err := EntryFromEvent(w.topic, event)
	if err != nil {
		return err
	}
	return WriteEntry(ctx, w.pool, entry)
}

// Close implements audit.Publisher. The pool is owned by the caller.
func (w *OutboxWriter) Close() error { return nil }

// RelayConfig holds configuration for the outbox relay
type RelayConfig struct {
	// BatchSize is the number of entries to process per batch
	BatchSize int
	// PollInterval is how often to poll for new entries
	PollInterval time.Duration
	// MaxRetries is the number of failed publishes before dead-lettering
	MaxRetries int
	// DeadLetterTopic receives entries that exhausted their retries
	DeadLetterTopic string
	// Retention is how long processed rows are kept
	Retention time.Duration
}

// DefaultRelayConfig returns sensible defaults
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		BatchSize:    100,
		PollInterval: 500 * time.Millisecond,
		MaxRetries:   5,
		Retention:    24 * time.Hour,
	}
}

// RelayPublisher sends a raw record to Kafka
type RelayPublisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// relayLockID guards the relay so only one instance drains the outbox
const relayLockID int64 = 0x6d6564677569 // "medgui"

// Relay polls the outbox and publishes pending rows
type Relay struct {
	pool      *pgxpool.Pool
	config    RelayConfig
	publisher RelayPublisher
	logger    *zap.Logger
	tracer    trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRelay creates a relay
func NewRelay(pool *pgxpool.Pool, publisher RelayPublisher, cfg RelayConfig, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultRelayConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Relay{
		pool:      pool,
		config:    cfg,
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer("audit-outbox"),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start begins polling
func (r *Relay) Start() {
	go r.loop()
	r.logger.Info("outbox relay started",
		zap.Int("batch_size", r.config.BatchSize),
		zap.Duration("poll_interval", r.config.PollInterval))
}

// Stop waits for the current batch and stops polling
func (r *Relay) Stop() {
	r.cancel()
	<-r.done
	r.logger.Info("outbox relay stopped")
}

func (r *Relay) loop() {
	defer close(r.done)

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.ProcessBatch(r.ctx); err != nil {
				r.logger.Error("outbox batch failed", zap.Error(err))
			}
		}
	}
}

// ProcessBatch relays up to BatchSize pending rows inside one transaction
// and returns how many were published.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := r.tracer.Start(ctx, "outbox_process_batch")
	defer span.End()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var acquired bool
	if err := tx.QueryRow(ctx, "SELECT pg_try_advisory_xact_lock($1)", relayLockID).Scan(&acquired); err != nil {
		return 0, fmt.Errorf("acquire relay lock: %w", err)
	}
	if !acquired {
		return 0, nil
	}

	entries, err := r.fetchPending(ctx, tx)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	span.SetAttributes(attribute.Int("batch_size", len(entries)))

	published := 0
	for _, entry := range entries {
		if err := r.relay(ctx, tx, entry); err != nil {
			r.logger.Warn("failed to relay outbox entry",
				zap.Int64("id", entry.ID),
				zap.String("event_type", entry.EventType),
				zap.Error(err))
			continue
		}
		published++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return published, nil
}

func (r *Relay) fetchPending(ctx context.Context, tx pgx.Tx) ([]*OutboxEntry, error) {
	query := `
		SELECT id, event_id, session_id, event_type, payload, kafka_topic,
		       created_at, retry_count, last_error
		FROM audit_outbox
		WHERE processed_at IS NULL
		ORDER BY id ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := tx.Query(ctx, query, r.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer rows.Close()

	var entries []*OutboxEntry
	for rows.Next() {
		entry := &OutboxEntry{}
		if err := rows.Scan(
			&entry.ID, &entry.EventID, &entry.SessionID, &entry.EventType,
			&entry.Payload, &entry.KafkaTopic, &entry.CreatedAt,
			&entry.RetryCount, &entry.LastError,
		); err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *Relay) relay(ctx context.Context, tx pgx.Tx, entry *OutboxEntry) error {
	ctx, span := r.tracer.Start(ctx, "outbox_relay_entry",
		trace.WithAttributes(
			attribute.Int64("entry_id", entry.ID),
			attribute.String("event_type", entry.EventType),
			attribute.String("session_id", entry.SessionID),
		))
	defer span.End()

	topic, payload := entry.KafkaTopic, []byte(entry.Payload)
	if entry.RetryCount >= r.config.MaxRetries && r.config.DeadLetterTopic != "" {
		topic = r.config.DeadLetterTopic
		payload = deadLetterPayload(entry)
	}

	if err := r.publisher.Publish(ctx, topic, entry.SessionID, payload); err != nil {
		span.RecordError(err)
		if _, uerr := tx.Exec(ctx, `
			UPDATE audit_outbox
			SET retry_count = retry_count + 1, last_error = $1, updated_at = NOW()
			WHERE id = $2`, err.Error(), entry.ID); uerr != nil {
			r.logger.Error("failed to record relay error", zap.Error(uerr))
		}
		return fmt.Errorf("publish: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE audit_outbox
		SET processed_at = NOW(), updated_at = NOW()
		WHERE id = $1`, entry.ID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

func deadLetterPayload(entry *OutboxEntry) []byte {
	out, _ := json.Marshal(map[string]interface{}{
		"original_topic": entry.KafkaTopic,
		"event_id":       entry.EventID,
		"event_type":     entry.EventType,
		"session_id":     entry.SessionID,
		"payload":        entry.Payload,
		"retry_count":    entry.RetryCount,
		"last_error":     entry.LastError,
		"created_at":     entry.CreatedAt,
	})
	return out
}

// CleanupProcessed removes processed rows older than the retention window
func (r *Relay) CleanupProcessed(ctx context.Context) (int64, error) {
	if r.config.Retention <= 0 {
		return 0, nil
	}
	result, err := r.pool.Exec(ctx, `
		DELETE FROM audit_outbox
		WHERE processed_at IS NOT NULL
		  AND processed_at < NOW() - make_interval(secs => $1)`,
		r.config.Retention.Seconds())
	if err != nil {
		return 0, fmt.Errorf("cleanup failed: %w", err)
	}
	return result.RowsAffected(), nil
}

// OutboxStats summarises the outbox table
type OutboxStats struct {
	Pending       int64      `json:"pending"`
	Retrying      int64      `json:"retrying"`
	OldestPending *time.Time `json:"oldest_pending,omitempty"`
}

// Stats returns current outbox statistics
func Stats(ctx context.Context, db DBTX) (*OutboxStats, error) {
	stats := &OutboxStats{}
	err := db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE retry_count > 0),
		       MIN(created_at)
		FROM audit_outbox
		WHERE processed_at IS NULL`).Scan(&stats.Pending, &stats.Retrying, &stats.OldestPending)
	if err != nil {
		return nil, fmt.Errorf("outbox stats: %w", err)
	}
	return stats, nil
}
