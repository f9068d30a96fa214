// Package session composes prompt selection, the transcript and the medical
// backend into one conversation.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/drfirst/medguide/internal/audit"
	"github.com/drfirst/medguide/internal/catalog"
	"github.com/drfirst/medguide/internal/conversation"
	"github.com/drfirst/medguide/internal/guide"
	"github.com/drfirst/medguide/internal/medical"
)

var (
	// ErrEmptyMessage is returned for blank message text
	ErrEmptyMessage = errors.New("message is empty")
	// ErrResponseNotFound is returned when no turn carries a response id
	ErrResponseNotFound = errors.New("response not found")
	// ErrPromptNotFound is returned for a prompt index outside the filtered list
	ErrPromptNotFound = errors.New("prompt not found")
)

// Asker answers questions and never fails
type Asker interface {
	Ask(ctx context.Context, question string, patient medical.PatientContext, history []medical.HistoryTurn) *medical.Response
}

// Observer receives session activity for metrics
type Observer interface {
	Rerolled()
	ModificationDone(kind string, err error)
	SessionOpened()
	SessionClosed()
}

type nopObserver struct{}

func (nopObserver) Rerolled() {}
func (nopObserver) ModificationDone(string, error) {}
func (nopObserver) SessionOpened() {}
func (nopObserver) SessionClosed() {}

// Deps are shared by every session
type Deps struct {
	Asker    Asker
	Modifier medical.Modifier
	Patient  medical.PatientContext
	Recorder audit.Recorder
	Observer Observer
	Logger   *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Recorder == nil {
		d.Recorder = audit.Nop{}
	}
	if d.Observer == nil {
		d.Observer = nopObserver{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

// Session is one user's conversation. All methods are safe for concurrent
// use; sends are serialised so every user turn is directly followed by its
// answer.
type Session struct {
	id   string
	deps Deps
	now  func() time.Time

	mu        sync.Mutex
	selection *guide.Selection
	lastSeen  time.Time
	createdAt time.Time

	transcript *conversation.Transcript
	sendSlot   chan struct{}
}

func newSession(id string, deps Deps, now func() time.Time) *Session {
	t := now()
	return &Session{
		id:         id,
		deps:       deps,
		now:        now,
		selection:  guide.NewSelection(),
		lastSeen:   t,
		createdAt:  t,
		transcript: conversation.NewTranscript(),
		sendSlot:   make(chan struct{}, 1),
	}
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = s.now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// View is a point-in-time summary of a session
type View struct {
	ID               string             `json:"session_id"`
	View             string             `json:"view"`
	Topic            string             `json:"topic"`
	SetIndex         int                `json:"set_index"`
	NumSets          int                `json:"num_sets"`
	Search           string             `json:"search"`
	Priority         guide.PriorityMode `json:"priority"`
	AwaitingResponse bool               `json:"awaiting_response"`
	TurnCount        int                `json:"turn_count"`
	CreatedAt        time.Time          `json:"created_at"`
}

// Snapshot returns the current view
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	topic := s.selection.Topic()
	return View{
		ID:               s.id,
		View:             s.transcript.State().View(),
		Topic:            topic.Name,
		SetIndex:         s.selection.Index(),
		NumSets:          topic.NumSets(),
		Search:           s.selection.Search(),
		Priority:         s.selection.Priority(),
		AwaitingResponse: s.transcript.AwaitingResponse(),
		TurnCount:        s.transcript.Len(),
		CreatedAt:        s.createdAt,
	}
}

// PromptList is the filtered gallery for the current selection
type PromptList struct {
	Topic    string             `json:"topic"`
	SetIndex int                `json:"set_index"`
	NumSets  int                `json:"num_sets"`
	Search   string             `json:"search"`
	Priority guide.PriorityMode `json:"priority"`
	Prompts  []catalog.Prompt   `json:"prompts"`
}

func (s *Session) promptsLocked() PromptList {
	topic := s.selection.Topic()
	return PromptList{
		Topic:    topic.Name,
		SetIndex: s.selection.Index(),
		NumSets:  topic.NumSets(),
		Search:   s.selection.Search(),
		Priority: s.selection.Priority(),
		Prompts:  s.selection.Prompts(),
	}
}

// Prompts filters the active prompt set
func (s *Session) Prompts() PromptList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promptsLocked()
}

// SetFilters replaces search text and priority mode and returns the
// resulting prompts
func (s *Session) SetFilters(search string, mode guide.PriorityMode) PromptList {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.SetSearch(search)
	s.selection.SetPriority(mode)
	return s.promptsLocked()
}

// SetSearch replaces the search text
func (s *Session) SetSearch(text string) {
	s.mu.Lock()
	s.selection.SetSearch(text)
	s.mu.Unlock()
}

// SetPriority replaces the priority mode
func (s *Session) SetPriority(mode guide.PriorityMode) {
	s.mu.Lock()
	s.selection.SetPriority(mode)
	s.mu.Unlock()
}

// SelectTopic switches topic and rewinds to its first prompt set
func (s *Session) SelectTopic(ctx context.Context, name string) (PromptList, error) {
	s.mu.Lock()
	if err := s.selection.SelectTopic(name); err != nil {
		s.mu.Unlock()
		return PromptList{}, err
	}
	list := s.promptsLocked()
	s.mu.Unlock()

	s.deps.Recorder.Record(ctx, s.id, audit.EventTopicSelected, audit.TopicSelectedData{Topic: name})
	return list, nil
}

// Reroll advances to the next prompt set of the active topic
func (s *Session) Reroll(ctx context.Context) PromptList {
	s.mu.Lock()
	idx := s.selection.Reroll()
	list := s.promptsLocked()
	s.mu.Unlock()

	s.deps.Observer.Rerolled()
	s.deps.Recorder.Record(ctx, s.id, audit.EventPromptSetRerolled, audit.PromptSetRerolledData{
		Topic:    list.Topic,
		SetIndex: idx,
	})
	return list
}

// Exchange is the pair of turns produced by one send
type Exchange struct {
	User      conversation.Turn `json:"user"`
	Assistant conversation.Turn `json:"assistant"`
}

// Send appends text as a user turn, asks the backend with the preceding
// turns as history and appends the answer. A failed backend call yields a
// fallback answer, never an error. Errors are returned only for blank text
// or when ctx ends while waiting for an earlier send.
func (s *Session) Send(ctx context.Context, text string) (Exchange, error) {
	if strings.TrimSpace(text) == "" {
		return Exchange{}, ErrEmptyMessage
	}

	select {
	case s.sendSlot <- struct{}{}:
	case <-ctx.Done():
		return Exchange{}, fmt.Errorf("waiting for previous message: %w", ctx.Err())
	}
	defer func() { <-s.sendSlot }()

	s.touch()
	user := s.transcript.AppendUser(text)
	s.recordTurn(ctx, user)

	history, err := s.transcript.HistoryBefore(user.ID)
	if err != nil {
		s.deps.Logger.Error("failed to encode history, asking without it",
			zap.String("session_id", s.id), zap.Error(err))
		history = []medical.HistoryTurn{}
	}

	s.transcript.Begin()
	resp := s.deps.Asker.Ask(ctx, text, s.deps.Patient, history)
	s.transcript.End()

	assistant := s.transcript.AppendAssistant(resp)
	s.recordTurn(ctx, assistant)

	return Exchange{User: user, Assistant: assistant}, nil
}

// SendPrompt sends the prompt text at index of the current filtered list
func (s *Session) SendPrompt(ctx context.Context, index int) (Exchange, error) {
	list := s.Prompts()
	if index < 0 || index >= len(list.Prompts) {
		return Exchange{}, fmt.Errorf("%w: index %d of %d", ErrPromptNotFound, index, len(list.Prompts))
	}
	return s.Send(ctx, list.Prompts[index].Prompt)
}

// Modify asks the backend to rewrite an earlier answer. On failure the turn
// is left untouched and the error is returned.
func (s *Session) Modify(ctx context.Context, responseID string, kind medical.ModificationKind) (conversation.Turn, error) {
	if _, ok := s.transcript.FindResponse(responseID); !ok {
		return conversation.Turn{}, fmt.Errorf("%w: %s", ErrResponseNotFound, responseID)
	}
	s.touch()

	s.transcript.Begin()
	modified, err := s.deps.Modifier.Modify(ctx, responseID, kind, s.deps.Patient)
	s.transcript.End()

	s.deps.Observer.ModificationDone(string(kind), err)
	if err != nil {
		s.deps.Recorder.Record(ctx, s.id, audit.EventModifyFailed, audit.ModifyFailedData{
			ResponseID: responseID,
			Kind:       string(kind),
			Reason:     err.Error(),
		})
		return conversation.Turn{}, fmt.Errorf("modify response %s: %w", responseID, err)
	}

	turn, ok := s.transcript.ReplaceResponse(responseID, modified)
	if !ok {
		return conversation.Turn{}, fmt.Errorf("%w: %s", ErrResponseNotFound, responseID)
	}
	s.deps.Recorder.Record(ctx, s.id, audit.EventResponseModified, audit.ResponseModifiedData{
		TurnID:          turn.ID,
		PriorResponseID: responseID,
		ResponseID:      modified.ID,
		Kind:            string(kind),
	})
	return turn, nil
}

// Turns returns the transcript in order
func (s *Session) Turns() []conversation.Turn {
	return s.transcript.Turns()
}

func (s *Session) recordTurn(ctx context.Context, turn conversation.Turn) {
	data := audit.TurnAppendedData{
		TurnID:        turn.ID,
		Role:          string(turn.Role),
		ContentLength: len(turn.Text),
	}
	if r := turn.Response; r != nil {
		data.ContentLength = len(r.Content)
		data.ResponseID = r.ID
		data.ConfidenceLevel = string(r.ConfidenceLevel)
		data.EvidenceQuality = string(r.EvidenceQuality)
		data.SourceCount = len(r.Sources)
		data.Fallback = r.Fallback
	}
	s.deps.Recorder.Record(ctx, s.id, audit.EventTurnAppended, data)
}
