package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/drfirst/medguide/internal/audit"
	"github.com/drfirst/medguide/internal/catalog"
	"github.com/drfirst/medguide/internal/conversation"
	"github.com/drfirst/medguide/internal/guide"
	"github.com/drfirst/medguide/internal/medical"
)

type askCall struct {
	question string
	history  []medical.HistoryTurn
}

type fakeAsker struct {
	mu    sync.Mutex
	calls []askCall
	gate  chan struct{}
}

func (f *fakeAsker) Ask(ctx context.Context, q string, _ medical.PatientContext, history []medical.HistoryTurn) *medical.Response {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, askCall{question: q, history: history})
	return &medical.Response{
		ID:              "resp-" + q,
		Content:         "answer to " + q,
		Sources:         []medical.Source{},
		ConfidenceLevel: medical.ConfidenceModerate,
		EvidenceQuality: medical.EvidenceModerate,
	}
}

type fakeModifier struct {
	resp *medical.Response
	err  error
}

func (f *fakeModifier) Modify(ctx context.Context, id string, kind medical.ModificationKind, _ medical.PatientContext) (*medical.Response, error) {
	return f.resp, f.err
}

type recordedEvent struct {
	sessionID string
	eventType audit.EventType
	data      interface{}
}

type memoryRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *memoryRecorder) Record(_ context.Context, id string, t audit.EventType, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{id, t, data})
}

func (r *memoryRecorder) types() []audit.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.eventType
	}
	return out
}

func newTestSession(asker Asker, mod medical.Modifier, rec audit.Recorder) *Session {
	deps := Deps{Asker: asker, Modifier: mod, Patient: catalog.Patient(), Recorder: rec}.withDefaults()
	return newSession("sess-1", deps, time.Now)
}

func TestSend_AppendsUserThenAssistantWithPriorHistory(t *testing.T) {
	asker := &fakeAsker{}
	rec := &memoryRecorder{}
	s := newTestSession(asker, &fakeModifier{}, rec)

	if got := s.Snapshot().View; got != "gallery" {
		t.Fatalf("view = %q, want gallery", got)
	}

	first, err := s.Send(context.Background(), "What is HbA1c?")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if first.User.Role != conversation.RoleUser || first.Assistant.Role != conversation.RoleAssistant {
		t.Errorf("unexpected roles %s/%s", first.User.Role, first.Assistant.Role)
	}
	if first.Assistant.ID <= first.User.ID {
		t.Error("assistant turn must follow the user turn")
	}

	if _, err := s.Send(context.Background(), "What should it be?"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(asker.calls[0].history) != 0 {
		t.Errorf("first ask should carry no history, got %d", len(asker.calls[0].history))
	}
	second := asker.calls[1].history
	if len(second) != 2 || second[0].Role != "user" || second[1].Role != "assistant" {
		t.Fatalf("second ask history = %+v", second)
	}
	var text string
	json.Unmarshal(second[0].Content, &text)
	if text != "What is HbA1c?" {
		t.Errorf("history user content = %q", text)
	}

	view := s.Snapshot()
	if view.View != "transcript" || view.TurnCount != 4 || view.AwaitingResponse {
		t.Errorf("unexpected view %+v", view)
	}

	want := []audit.EventType{audit.EventTurnAppended, audit.EventTurnAppended, audit.EventTurnAppended, audit.EventTurnAppended}
	if diff := cmp.Diff(want, rec.types()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestSend_RejectsBlankText(t *testing.T) {
	s := newTestSession(&fakeAsker{}, &fakeModifier{}, nil)
	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := s.Send(context.Background(), text); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Send(%q) error = %v, want ErrEmptyMessage", text, err)
		}
	}
	if s.Snapshot().TurnCount != 0 {
		t.Error("blank messages must not create turns")
	}
}

func TestSend_SerialisesOverlappingSends(t *testing.T) {
	asker := &fakeAsker{gate: make(chan struct{})}
	s := newTestSession(asker, &fakeModifier{}, nil)

	var wg sync.WaitGroup
	for _, q := range []string{"first", "second"} {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			s.Send(context.Background(), q)
		}(q)
	}

	// Only one send may be inside the backend call at a time.
	time.Sleep(20 * time.Millisecond)
	if n := s.Snapshot().TurnCount; n != 1 {
		t.Errorf("turns while first send is in flight = %d, want 1", n)
	}
	if !s.Snapshot().AwaitingResponse {
		t.Error("expected awaiting response")
	}
	asker.gate <- struct{}{}
	asker.gate <- struct{}{}
	wg.Wait()

	turns := s.Turns()
	if len(turns) != 4 {
		t.Fatalf("got %d turns, want 4", len(turns))
	}
	for i := 0; i < 4; i += 2 {
		if turns[i].Role != conversation.RoleUser || turns[i+1].Role != conversation.RoleAssistant {
			t.Fatalf("turns not paired: %v/%v at %d", turns[i].Role, turns[i+1].Role, i)
		}
		if turns[i+1].Response.ID != "resp-"+turns[i].Text {
			t.Errorf("answer %q does not follow question %q", turns[i+1].Response.ID, turns[i].Text)
		}
	}
}

func TestSend_HonoursContextWhileWaiting(t *testing.T) {
	asker := &fakeAsker{gate: make(chan struct{})}
	s := newTestSession(asker, &fakeModifier{}, nil)

	go s.Send(context.Background(), "slow")
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := s.Send(ctx, "impatient"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	close(asker.gate)
}

func TestSendPrompt(t *testing.T) {
	asker := &fakeAsker{}
	s := newTestSession(asker, &fakeModifier{}, nil)
	s.SetPriority(guide.ModeAll)

	list := s.Prompts()
	ex, err := s.SendPrompt(context.Background(), 1)
	if err != nil {
		t.Fatalf("SendPrompt: %v", err)
	}
	if ex.User.Text != list.Prompts[1].Prompt {
		t.Errorf("sent %q, want %q", ex.User.Text, list.Prompts[1].Prompt)
	}

	if _, err := s.SendPrompt(context.Background(), 99); !errors.Is(err, ErrPromptNotFound) {
		t.Errorf("expected ErrPromptNotFound, got %v", err)
	}
}

func TestModify_ReplacesOnSuccess(t *testing.T) {
	mod := &fakeModifier{resp: &medical.Response{ID: "resp-simple", Content: "Simply put."}}
	rec := &memoryRecorder{}
	s := newTestSession(&fakeAsker{}, mod, rec)
	ex, _ := s.Send(context.Background(), "q")

	turn, err := s.Modify(context.Background(), ex.Assistant.Response.ID, medical.ModifySimplify)
	if err != nil {
		t.Fatalf("Modify: %v", err)
	}
	if turn.ID != ex.Assistant.ID || turn.Response.ID != "resp-simple" || turn.Response.Content != "Simply put." {
		t.Errorf("unexpected turn %+v", turn.Response)
	}
	if turn.Response.ConfidenceLevel != medical.ConfidenceModerate {
		t.Error("metadata outside content, follow-ups and id must be kept")
	}
	if last := rec.types()[len(rec.types())-1]; last != audit.EventResponseModified {
		t.Errorf("last event = %s", last)
	}
}

func TestModify_FailureLeavesTurnUnchanged(t *testing.T) {
	backendErr := &medical.StatusError{Endpoint: medical.EndpointModify, StatusCode: 503}
	rec := &memoryRecorder{}
	s := newTestSession(&fakeAsker{}, &fakeModifier{err: backendErr}, rec)
	ex, _ := s.Send(context.Background(), "q")

	_, err := s.Modify(context.Background(), ex.Assistant.Response.ID, medical.ModifyDetail)
	var se *medical.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected backend error, got %v", err)
	}

	turns := s.Turns()
	if diff := cmp.Diff(ex.Assistant.Response, turns[1].Response); diff != "" {
		t.Errorf("turn changed after failed modify (-want +got):\n%s", diff)
	}
	if last := rec.types()[len(rec.types())-1]; last != audit.EventModifyFailed {
		t.Errorf("last event = %s", last)
	}
}

func TestModify_UnknownResponse(t *testing.T) {
	s := newTestSession(&fakeAsker{}, &fakeModifier{resp: &medical.Response{ID: "x"}}, nil)
	if _, err := s.Modify(context.Background(), "nope", medical.ModifySimplify); !errors.Is(err, ErrResponseNotFound) {
		t.Errorf("expected ErrResponseNotFound, got %v", err)
	}
}

func TestSelectTopicAndReroll(t *testing.T) {
	rec := &memoryRecorder{}
	s := newTestSession(&fakeAsker{}, &fakeModifier{}, rec)

	list := s.Reroll(context.Background())
	if list.SetIndex != 1 {
		t.Errorf("set index after reroll = %d", list.SetIndex)
	}

	list, err := s.SelectTopic(context.Background(), "Quality of Life")
	if err != nil {
		t.Fatalf("SelectTopic: %v", err)
	}
	if list.Topic != "Quality of Life" || list.SetIndex != 0 {
		t.Errorf("unexpected list %+v", list)
	}

	if _, err := s.SelectTopic(context.Background(), "Nope"); !errors.Is(err, guide.ErrUnknownTopic) {
		t.Errorf("expected ErrUnknownTopic, got %v", err)
	}

	want := []audit.EventType{audit.EventPromptSetRerolled, audit.EventTopicSelected}
	if diff := cmp.Diff(want, rec.types()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestSetFilters(t *testing.T) {
	s := newTestSession(&fakeAsker{}, &fakeModifier{}, nil)
	all := s.SetFilters("", guide.ModeAll)
	narrowed := s.SetFilters("zzz-no-match", guide.ModeAll)
	if len(all.Prompts) == 0 || len(narrowed.Prompts) != 0 {
		t.Errorf("unexpected filter results %d/%d", len(all.Prompts), len(narrowed.Prompts))
	}
	if v := s.Snapshot(); v.Search != "zzz-no-match" || v.Priority != guide.ModeAll {
		t.Errorf("filters not stored: %+v", v)
	}
}
