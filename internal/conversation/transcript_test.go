package conversation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/drfirst/medguide/internal/medical"
)

func answer(id, content string) *medical.Response {
	return &medical.Response{
		ID:              id,
		Content:         content,
		Sources:         []medical.Source{{Title: "PubMed", URL: "https://pubmed.ncbi.nlm.nih.gov"}},
		ConfidenceLevel: medical.ConfidenceHigh,
		EvidenceQuality: medical.EvidenceStrong,
		FollowUpPrompts: []medical.FollowUpPrompt{{Category: "research", Prompt: "Tell me more"}},
		SafetyNotes:     "Consult your doctor.",
	}
}

func TestTranscript_AppendAssignsIncreasingIDs(t *testing.T) {
	tr := NewTranscript()
	if tr.State() != StateEmpty || tr.State().View() != "gallery" {
		t.Fatalf("fresh transcript should be empty, got %s", tr.State())
	}

	u := tr.AppendUser("What is HbA1c?")
	a := tr.AppendAssistant(answer("r1", "A blood test."))
	u2 := tr.AppendUser("And the target?")

	if !(u.ID < a.ID && a.ID < u2.ID) {
		t.Errorf("ids not increasing: %d %d %d", u.ID, a.ID, u2.ID)
	}
	if tr.State() != StateActive || tr.State().View() != "transcript" {
		t.Errorf("state = %s, want active", tr.State())
	}
	if tr.Len() != 3 {
		t.Errorf("len = %d, want 3", tr.Len())
	}
}

func TestTranscript_AppendAssistantCopiesResponse(t *testing.T) {
	tr := NewTranscript()
	resp := answer("r1", "original")
	tr.AppendAssistant(resp)
	resp.Content = "mutated"

	if got := tr.Turns()[0].Response.Content; got != "original" {
		t.Errorf("transcript was mutated through caller's response: %q", got)
	}
}

func TestTranscript_ReplaceResponse(t *testing.T) {
	tr := NewTranscript()
	tr.AppendUser("q")
	tr.AppendAssistant(answer("r1", "Long technical answer."))
	tr.AppendUser("q2")
	tr.AppendAssistant(answer("r2", "Other answer."))

	modified := &medical.Response{
		ID:              "r1-simple",
		Content:         "Short answer.",
		ConfidenceLevel: medical.ConfidenceLow,
		FollowUpPrompts: []medical.FollowUpPrompt{{Category: "context", Prompt: "Why?"}},
	}
	turn, ok := tr.ReplaceResponse("r1", modified)
	if !ok {
		t.Fatal("expected a match")
	}

	want := answer("r1", "")
	want.ID = "r1-simple"
	want.Content = "Short answer."
	want.FollowUpPrompts = modified.FollowUpPrompts
	if diff := cmp.Diff(want, turn.Response); diff != "" {
		t.Errorf("replaced response mismatch (-want +got):\n%s", diff)
	}

	turns := tr.Turns()
	if turns[3].Response.ID != "r2" || turns[3].Response.Content != "Other answer." {
		t.Error("unrelated turn changed")
	}
	if _, ok := tr.FindResponse("r1"); ok {
		t.Error("old response id should no longer be found")
	}
	if found, ok := tr.FindResponse("r1-simple"); !ok || found.ID != turns[1].ID {
		t.Error("new response id should resolve to the same turn")
	}
}

func TestTranscript_ReplaceResponseNoMatch(t *testing.T) {
	tr := NewTranscript()
	tr.AppendAssistant(answer("r1", "keep me"))

	if _, ok := tr.ReplaceResponse("missing", answer("x", "y")); ok {
		t.Fatal("expected no match")
	}
	if got := tr.Turns()[0].Response.Content; got != "keep me" {
		t.Errorf("content changed to %q", got)
	}
}

func TestTranscript_HistoryBefore(t *testing.T) {
	tr := NewTranscript()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return fixed }

	u1 := tr.AppendUser("first")
	tr.AppendAssistant(answer("r1", "reply"))
	u2 := tr.AppendUser("second")

	history, err := tr.HistoryBefore(u2.ID)
	if err != nil {
		t.Fatalf("HistoryBefore: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d turns, want 2", len(history))
	}
	if history[0].ID != u1.ID || history[0].Role != "user" || string(history[0].Content) != `"first"` {
		t.Errorf("unexpected first history turn %+v", history[0])
	}
	if history[0].Timestamp != "2025-03-01T12:00:00Z" {
		t.Errorf("timestamp = %q", history[0].Timestamp)
	}

	var resp medical.Response
	if err := json.Unmarshal(history[1].Content, &resp); err != nil {
		t.Fatalf("assistant content is not a response: %v", err)
	}
	if resp.ID != "r1" {
		t.Errorf("assistant history id = %q", resp.ID)
	}

	if first, _ := tr.HistoryBefore(u1.ID); len(first) != 0 {
		t.Errorf("history before the first turn should be empty, got %d", len(first))
	}
}

func TestTranscript_AwaitingResponse(t *testing.T) {
	tr := NewTranscript()
	tr.Begin()
	tr.Begin()
	tr.End()
	if !tr.AwaitingResponse() {
		t.Error("one request still in flight")
	}
	tr.End()
	tr.End()
	if tr.AwaitingResponse() {
		t.Error("no request in flight")
	}
}

func TestTurn_MarshalJSON(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	user, err := json.Marshal(Turn{ID: 1, Role: RoleUser, Text: "hi", Timestamp: ts})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"id":1,"role":"user","content":"hi","timestamp":"2025-03-01T12:00:00Z"}`
	if string(user) != want {
		t.Errorf("got %s, want %s", user, want)
	}

	asst, err := json.Marshal(Turn{ID: 2, Role: RoleAssistant, Response: answer("r1", "ok"), Timestamp: ts})
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Content medical.Response `json:"content"`
	}
	if err := json.Unmarshal(asst, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Content.ID != "r1" {
		t.Errorf("assistant content id = %q", decoded.Content.ID)
	}
}
