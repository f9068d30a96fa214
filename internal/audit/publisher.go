package audit

import (
	"context"

	"go.uber.org/zap"
)

// Publisher delivers one event to a sink
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// Recorder is what sessions emit events through
type Recorder interface {
	Record(ctx context.Context, sessionID string, eventType EventType, data interface{})
}

// Nop discards every event
type Nop struct{}

// Record implements Recorder
func (Nop) Record(context.Context, string, EventType, interface{}) {}

// LogPublisher writes events to a zap logger
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a publisher that logs at info level
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger.Named("audit")}
}

// Publish implements Publisher
func (p *LogPublisher) Publish(_ context.Context, event *Event) error {
	p.logger.Info("conversation event",
		zap.String("event_id", event.ID),
		zap.String("session_id", event.SessionID),
		zap.String("event_type", string(event.EventType)),
		zap.ByteString("data", event.Data),
		zap.String("request_id", event.RequestID),
		zap.Time("timestamp", event.Timestamp))
	return nil
}

// Close implements Publisher
func (p *LogPublisher) Close() error { return nil }
