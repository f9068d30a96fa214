package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/drfirst/medguide/internal/catalog"
	"github.com/drfirst/medguide/internal/medical"
	"github.com/drfirst/medguide/internal/session"
	"github.com/drfirst/medguide/pkg/idempotency"
)

type stubAsker struct{}

func (stubAsker) Ask(ctx context.Context, q string, _ medical.PatientContext, _ []medical.HistoryTurn) *medical.Response {
	return &medical.Response{
		ID:              "resp-1",
		Content:         "answer to " + q,
		Sources:         []medical.Source{},
		ConfidenceLevel: medical.ConfidenceHigh,
		EvidenceQuality: medical.EvidenceStrong,
	}
}

type stubModifier struct {
	err error
}

func (m stubModifier) Modify(ctx context.Context, id string, kind medical.ModificationKind, _ medical.PatientContext) (*medical.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &medical.Response{
		ID:              "resp-2",
		Content:         "simpler answer",
		Sources:         []medical.Source{},
		ConfidenceLevel: medical.ConfidenceHigh,
		EvidenceQuality: medical.EvidenceStrong,
	}, nil
}

func newTestServer(t *testing.T, mod medical.Modifier) *httptest.Server {
	t.Helper()
	m, err := session.NewManager(session.Deps{
		Asker:    stubAsker{},
		Modifier: mod,
		Patient:  catalog.Patient(),
	}, session.ManagerConfig{IdleTTL: time.Hour, SweepInterval: time.Hour}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	h := NewConversationHandler(m, catalog.Patient(), nil).
		WithIdempotency(idempotency.NewStore(idempotency.DefaultConfig(), nil))
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

type turnsBody struct {
	View  string `json:"view"`
	Turns []struct {
		ID      int64           `json:"id"`
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"turns"`
}

func createSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	var view session.View
	if code := do(t, http.MethodPost, srv.URL+"/sessions", nil, &view); code != http.StatusCreated {
		t.Fatalf("create session: status %d", code)
	}
	return view.ID
}

func TestCatalogEndpoints(t *testing.T) {
	srv := newTestServer(t, stubModifier{})

	var topics []catalog.PromptTopic
	if code := do(t, http.MethodGet, srv.URL+"/topics", nil, &topics); code != http.StatusOK {
		t.Fatalf("topics status %d", code)
	}
	if len(topics) != len(catalog.TopicNames()) {
		t.Errorf("got %d topics", len(topics))
	}

	var paths []catalog.ConversationPath
	if code := do(t, http.MethodGet, srv.URL+"/paths", nil, &paths); code != http.StatusOK || len(paths) == 0 {
		t.Fatalf("paths status %d, %d paths", code, len(paths))
	}

	var patient medical.PatientContext
	do(t, http.MethodGet, srv.URL+"/patient", nil, &patient)
	if diff := cmp.Diff(catalog.Patient(), patient); diff != "" {
		t.Errorf("patient mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t, stubModifier{})
	id := createSession(t, srv)
	base := srv.URL + "/sessions/" + id

	var view session.View
	if code := do(t, http.MethodGet, base, nil, &view); code != http.StatusOK {
		t.Fatalf("get status %d", code)
	}
	if view.View != "gallery" || view.Topic != catalog.DefaultTopic().Name {
		t.Errorf("unexpected view %+v", view)
	}

	var list session.PromptList
	if code := do(t, http.MethodPut, base+"/topic", SelectTopicRequest{Topic: "Latest Research"}, &list); code != http.StatusOK {
		t.Fatalf("select topic status %d", code)
	}
	if list.Topic != "Latest Research" || list.SetIndex != 0 {
		t.Errorf("unexpected list %+v", list)
	}

	if code := do(t, http.MethodPut, base+"/topic", SelectTopicRequest{Topic: "Astrology"}, nil); code != http.StatusNotFound {
		t.Errorf("unknown topic status %d, want 404", code)
	}

	do(t, http.MethodPost, base+"/reroll", nil, &list)
	if list.NumSets > 1 && list.SetIndex != 1 {
		t.Errorf("reroll index = %d, want 1", list.SetIndex)
	}

	if code := do(t, http.MethodDelete, base, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete status %d", code)
	}
	if code := do(t, http.MethodGet, base, nil, nil); code != http.StatusNotFound {
		t.Errorf("get after delete status %d, want 404", code)
	}
}

func TestListPrompts_Filters(t *testing.T) {
	srv := newTestServer(t, stubModifier{})
	base := srv.URL + "/sessions/" + createSession(t, srv)

	var list session.PromptList
	if code := do(t, http.MethodGet, base+"/prompts?priority=all", nil, &list); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if list.Priority != "all" {
		t.Errorf("priority = %q", list.Priority)
	}

	if code := do(t, http.MethodGet, base+"/prompts?priority=urgent", nil, nil); code != http.StatusBadRequest {
		t.Errorf("invalid priority status %d, want 400", code)
	}

	do(t, http.MethodGet, base+"/prompts?q=zzzz-no-match", nil, &list)
	if len(list.Prompts) != 0 || list.Search != "zzzz-no-match" {
		t.Errorf("expected empty filtered list, got %+v", list)
	}
}

func TestSendAndModify(t *testing.T) {
	srv := newTestServer(t, stubModifier{})
	base := srv.URL + "/sessions/" + createSession(t, srv)

	if code := do(t, http.MethodPost, base+"/messages", SendMessageRequest{Content: "  "}, nil); code != http.StatusBadRequest {
		t.Errorf("blank message status %d, want 400", code)
	}

	var ex struct {
		User      map[string]interface{} `json:"user"`
		Assistant struct {
			ID      int64            `json:"id"`
			Role    string           `json:"role"`
			Content medical.Response `json:"content"`
		} `json:"assistant"`
	}
	if code := do(t, http.MethodPost, base+"/messages", SendMessageRequest{Content: "What is HbA1c?"}, &ex); code != http.StatusCreated {
		t.Fatalf("send status %d", code)
	}
	if ex.User["content"] != "What is HbA1c?" || ex.Assistant.Content.ID != "resp-1" {
		t.Errorf("unexpected exchange %+v", ex)
	}

	var turns turnsBody
	do(t, http.MethodGet, base+"/turns", nil, &turns)
	if turns.View != "transcript" || len(turns.Turns) != 2 {
		t.Errorf("unexpected turns view=%q len=%d", turns.View, len(turns.Turns))
	}

	if code := do(t, http.MethodPost, base+"/responses/resp-1/modify", ModifyRequest{ModificationType: "shorten"}, nil); code != http.StatusBadRequest {
		t.Errorf("invalid kind status %d, want 400", code)
	}
	if code := do(t, http.MethodPost, base+"/responses/nope/modify", ModifyRequest{ModificationType: "simplify"}, nil); code != http.StatusNotFound {
		t.Errorf("unknown response status %d, want 404", code)
	}

	var modified struct {
		Content medical.Response `json:"content"`
	}
	if code := do(t, http.MethodPost, base+"/responses/resp-1/modify", ModifyRequest{ModificationType: "simplify"}, &modified); code != http.StatusOK {
		t.Fatalf("modify status %d", code)
	}
	if modified.Content.ID != "resp-2" || modified.Content.Content != "simpler answer" {
		t.Errorf("unexpected modified turn %+v", modified)
	}
}

func TestModify_BackendFailureReturnsBadGateway(t *testing.T) {
	srv := newTestServer(t, stubModifier{err: &medical.StatusError{Endpoint: medical.EndpointModify, StatusCode: 500}})
	base := srv.URL + "/sessions/" + createSession(t, srv)

	do(t, http.MethodPost, base+"/messages", SendMessageRequest{Content: "q"}, nil)

	var body map[string]string
	if code := do(t, http.MethodPost, base+"/responses/resp-1/modify", ModifyRequest{ModificationType: "detail"}, &body); code != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", code)
	}
	if body["error"] == "" {
		t.Error("expected error message")
	}

	var turns turnsBody
	do(t, http.MethodGet, base+"/turns", nil, &turns)
	if len(turns.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns.Turns))
	}
	var answer medical.Response
	if err := json.Unmarshal(turns.Turns[1].Content, &answer); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if got := answer.ID; got != "resp-1" {
		t.Errorf("turn changed to %q after failed modify", got)
	}
}

func TestSendPrompt(t *testing.T) {
	srv := newTestServer(t, stubModifier{})
	base := srv.URL + "/sessions/" + createSession(t, srv)

	if code := do(t, http.MethodPost, base+"/prompts/0/send", nil, nil); code != http.StatusCreated {
		t.Errorf("send prompt status %d", code)
	}
	if code := do(t, http.MethodPost, base+"/prompts/999/send", nil, nil); code != http.StatusNotFound {
		t.Errorf("out of range status %d, want 404", code)
	}
	if code := do(t, http.MethodPost, base+"/prompts/x/send", nil, nil); code != http.StatusBadRequest {
		t.Errorf("non-numeric index status %d, want 400", code)
	}
}

func TestSendMessage_IdempotencyKeyReplays(t *testing.T) {
	srv := newTestServer(t, stubModifier{})
	base := srv.URL + "/sessions/" + createSession(t, srv)

	send := func() (*http.Response, []byte) {
		body, _ := json.Marshal(SendMessageRequest{Content: "What is HbA1c?"})
		req, _ := http.NewRequest(http.MethodPost, base+"/messages", bytes.NewReader(body))
		req.Header.Set(HeaderIdempotencyKey, "retry-1")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		defer resp.Body.Close()
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		return resp, buf.Bytes()
	}

	first, firstBody := send()
	second, secondBody := send()
	if first.StatusCode != http.StatusCreated || second.StatusCode != http.StatusCreated {
		t.Fatalf("statuses %d, %d", first.StatusCode, second.StatusCode)
	}
	if second.Header.Get("Idempotent-Replayed") != "true" {
		t.Error("second send should be marked as replayed")
	}
	if !bytes.Equal(firstBody, secondBody) {
		t.Errorf("replayed body differs:\n%s\n%s", firstBody, secondBody)
	}

	var turns turnsBody
	do(t, http.MethodGet, base+"/turns", nil, &turns)
	if len(turns.Turns) != 2 {
		t.Errorf("expected one exchange, got %d turns", len(turns.Turns))
	}
}
