// Package audit records metadata about conversation activity. Events never
// carry conversation text or patient data.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of conversation event
type EventType string

const (
	EventSessionStarted    EventType = "SessionStarted"
	EventTopicSelected     EventType = "TopicSelected"
	EventPromptSetRerolled EventType = "PromptSetRerolled"
	EventTurnAppended      EventType = "TurnAppended"
	EventResponseModified  EventType = "ResponseModified"
	EventModifyFailed      EventType = "ModifyFailed"
)

// Event is one audit record, keyed by session
type Event struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	EventType EventType       `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewEvent creates a new event
func NewEvent(sessionID string, eventType EventType, data interface{}) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		EventType: eventType,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// WithRequestID sets the originating HTTP request id
func (e *Event) WithRequestID(id string) *Event {
	e.RequestID = id
	return e
}

// SessionStartedData is emitted when a session is created
type SessionStartedData struct {
	Topic string `json:"topic"`
}

// TopicSelectedData is emitted when the active topic changes
type TopicSelectedData struct {
	Topic string `json:"topic"`
}

// PromptSetRerolledData is emitted after a reroll
type PromptSetRerolledData struct {
	Topic    string `json:"topic"`
	SetIndex int    `json:"set_index"`
}

// TurnAppendedData describes a new turn without its content
type TurnAppendedData struct {
	TurnID          int64  `json:"turn_id"`
	Role            string `json:"role"`
	ContentLength   int    `json:"content_length"`
	ResponseID      string `json:"response_id,omitempty"`
	ConfidenceLevel string `json:"confidence_level,omitempty"`
	EvidenceQuality string `json:"evidence_quality,omitempty"`
	SourceCount     int    `json:"source_count,omitempty"`
	Fallback        bool   `json:"fallback,omitempty"`
}

// ResponseModifiedData is emitted after a successful modification
type ResponseModifiedData struct {
	TurnID          int64  `json:"turn_id"`
	PriorResponseID string `json:"prior_response_id"`
	ResponseID      string `json:"response_id"`
	Kind            string `json:"modification_type"`
}

// ModifyFailedData is emitted when the backend rejects a modification
type ModifyFailedData struct {
	ResponseID string `json:"response_id"`
	Kind       string `json:"modification_type"`
	Reason     string `json:"reason"`
}
