package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/drfirst/medguide/pkg/workerpool"
)

// Observer is told about every delivery attempt outcome
type Observer interface {
	AuditPublished(eventType string, err error)
}

// Dispatcher implements Recorder by handing events to a worker pool that
// publishes them with retries. Record never blocks the caller.
type Dispatcher struct {
	publisher Publisher
	pool      *workerpool.Pool
	observer  Observer
	requestID func(ctx context.Context) string
	logger    *zap.Logger
}

// DispatcherConfig holds dispatcher configuration
type DispatcherConfig struct {
	Pool workerpool.Config
	// RequestID extracts the request id to stamp on events; optional
	RequestID func(ctx context.Context) string
	// Observer is optional
	Observer Observer
}

// NewDispatcher creates a dispatcher. Call Start before recording.
func NewDispatcher(publisher Publisher, cfg DispatcherConfig, logger *zap.Logger) (*Dispatcher, error) {
	if publisher == nil {
		return nil, fmt.Errorf("audit publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		publisher: publisher,
		observer:  cfg.Observer,
		requestID: cfg.RequestID,
		logger:    logger,
	}

	poolCfg := cfg.Pool
	poolCfg.OnResult = d.onResult
	pool, err := workerpool.New(poolCfg, d.publish, logger.Named("audit-pool"))
	if err != nil {
		return nil, fmt.Errorf("create audit worker pool: %w", err)
	}
	d.pool = pool
	return d, nil
}

// Start launches the publishing workers
func (d *Dispatcher) Start() { d.pool.Start() }

// Stop drains queued events and closes the publisher
func (d *Dispatcher) Stop() error {
	poolErr := d.pool.Stop()
	if err := d.publisher.Close(); err != nil {
		return fmt.Errorf("close audit publisher: %w", err)
	}
	return poolErr
}

// Stats exposes the worker pool counters
func (d *Dispatcher) Stats() workerpool.Stats { return d.pool.Stats() }

// Healthy reports whether the queue has room
func (d *Dispatcher) Healthy() bool { return d.pool.IsHealthy() }

// Record builds an event and queues it. Failures are logged and dropped.
func (d *Dispatcher) Record(ctx context.Context, sessionID string, eventType EventType, data interface{}) {
	event, err := NewEvent(sessionID, eventType, data)
	if err != nil {
		d.logger.Error("failed to encode audit event",
			zap.String("event_type", string(eventType)), zap.Error(err))
		return
	}
	if d.requestID != nil {
		event.WithRequestID(d.requestID(ctx))
	}

	if err := d.pool.Submit(&workerpool.Task{ID: event.ID, Payload: event}); err != nil {
		d.logger.Warn("audit event dropped",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
		if d.observer != nil {
			d.observer.AuditPublished(string(eventType), err)
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, task *workerpool.Task) error {
	event, ok := task.Payload.(*Event)
	if !ok {
		return fmt.Errorf("unexpected audit payload %T", task.Payload)
	}
	return d.publisher.Publish(ctx, event)
}

func (d *Dispatcher) onResult(res workerpool.Result) {
	if d.observer == nil {
		return
	}
	var eventType string
	if event, ok := res.Payload.(*Event); ok {
		eventType = string(event.EventType)
	}
	d.observer.AuditPublished(eventType, res.Err)
}
