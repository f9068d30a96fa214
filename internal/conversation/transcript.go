// Package conversation keeps the ordered record of user and assistant turns
// for one session.
package conversation

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/drfirst/medguide/internal/medical"
)

// Role identifies who produced a turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// State is the coarse display state of a transcript
type State int

const (
	// StateEmpty means no turn exists yet and the prompt gallery is shown
	StateEmpty State = iota
	// StateActive means the transcript is shown. It is never left.
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "empty"
}

// View returns the name of the screen the state maps to
func (s State) View() string {
	if s == StateActive {
		return "transcript"
	}
	return "gallery"
}

// Turn is one entry of the transcript. User turns carry Text, assistant
// turns carry Response.
type Turn struct {
	ID        int64
	Role      Role
	Text      string
	Response  *medical.Response
	Timestamp time.Time
}

type turnJSON struct {
	ID        int64       `json:"id"`
	Role      Role        `json:"role"`
	Content   interface{} `json:"content"`
	Timestamp string      `json:"timestamp"`
}

// MarshalJSON renders user content as a string and assistant content as the
// full response object.
func (t Turn) MarshalJSON() ([]byte, error) {
	out := turnJSON{
		ID:        t.ID,
		Role:      t.Role,
		Content:   t.Text,
		Timestamp: t.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if t.Role == RoleAssistant {
		out.Content = t.Response
	}
	return json.Marshal(out)
}

func (t Turn) clone() Turn {
	t.Response = t.Response.Clone()
	return t
}

// Transcript is an append-only, concurrency-safe sequence of turns with
// strictly increasing ids.
type Transcript struct {
	mu       sync.RWMutex
	turns    []Turn
	lastID   int64
	inFlight int
	now      func() time.Time
}

// NewTranscript returns an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{now: time.Now}
}

// AppendUser records a user message
func (t *Transcript) AppendUser(text string) Turn {
	return t.append(Turn{Role: RoleUser, Text: text})
}

// AppendAssistant records an assistant answer. The response is copied.
func (t *Transcript) AppendAssistant(resp *medical.Response) Turn {
	return t.append(Turn{Role: RoleAssistant, Response: resp.Clone()})
}

func (t *Transcript) append(turn Turn) Turn {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastID++
	turn.ID = t.lastID
	turn.Timestamp = t.now()
	t.turns = append(t.turns, turn)
	return turn.clone()
}

// ReplaceResponse swaps content, follow-up prompts and id into every
// assistant turn whose response id is priorID. All other response fields are
// kept. It returns the last updated turn and false when nothing matched.
func (t *Transcript) ReplaceResponse(priorID string, modified *medical.Response) (Turn, bool) {
	if modified == nil {
		return Turn{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var updated Turn
	found := false
	for i := range t.turns {
		r := t.turns[i].Response
		if t.turns[i].Role != RoleAssistant || r == nil || r.ID != priorID {
			continue
		}
		next := r.Clone()
		next.ID = modified.ID
		next.Content = modified.Content
		next.FollowUpPrompts = append([]medical.FollowUpPrompt(nil), modified.FollowUpPrompts...)
		t.turns[i].Response = next
		updated = t.turns[i].clone()
		found = true
	}
	return updated, found
}

// FindResponse returns the assistant turn carrying responseID
func (t *Transcript) FindResponse(responseID string) (Turn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, turn := range t.turns {
		if turn.Role == RoleAssistant && turn.Response != nil && turn.Response.ID == responseID {
			return turn.clone(), true
		}
	}
	return Turn{}, false
}

// Turns returns a copy of every turn in order
func (t *Transcript) Turns() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Turn, len(t.turns))
	for i, turn := range t.turns {
		out[i] = turn.clone()
	}
	return out
}

// Len returns the number of turns
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// HistoryBefore returns the turns preceding turnID in backend wire form
func (t *Transcript) HistoryBefore(turnID int64) ([]medical.HistoryTurn, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	history := make([]medical.HistoryTurn, 0, len(t.turns))
	for _, turn := range t.turns {
		if turn.ID >= turnID {
			break
		}
		var content interface{} = turn.Text
		if turn.Role == RoleAssistant {
			content = turn.Response
		}
		raw, err := json.Marshal(content)
		if err != nil {
			return nil, fmt.Errorf("encode turn %d: %w", turn.ID, err)
		}
		history = append(history, medical.HistoryTurn{
			ID:        turn.ID,
			Role:      string(turn.Role),
			Content:   raw,
			Timestamp: turn.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}
	return history, nil
}

// State reports Empty until the first turn is appended
func (t *Transcript) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.turns) == 0 {
		return StateEmpty
	}
	return StateActive
}

// Begin marks a backend request as in flight
func (t *Transcript) Begin() {
	t.mu.Lock()
	t.inFlight++
	t.mu.Unlock()
}

// End marks an in-flight request as finished
func (t *Transcript) End() {
	t.mu.Lock()
	if t.inFlight > 0 {
		t.inFlight--
	}
	t.mu.Unlock()
}

// AwaitingResponse reports whether any backend request is in flight. It is
// informational and never blocks input.
func (t *Transcript) AwaitingResponse() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.inFlight > 0
}
