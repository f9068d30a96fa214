// Package handlers provides HTTP handlers for the conversation API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drfirst/medguide/internal/catalog"
	"github.com/drfirst/medguide/internal/conversation"
	"github.com/drfirst/medguide/internal/guide"
	"github.com/drfirst/medguide/internal/medical"
	"github.com/drfirst/medguide/internal/session"
	"github.com/drfirst/medguide/pkg/idempotency"
)

const (
	maxBodyBytes = 64 << 10

	// HeaderIdempotencyKey lets clients retry a send without a second turn
	HeaderIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
)

// ConversationHandler serves the catalog and session endpoints
type ConversationHandler struct {
	sessions *session.Manager
	idem     *idempotency.Store
	patient  medical.PatientContext
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewConversationHandler creates a new handler
func NewConversationHandler(sessions *session.Manager, patient medical.PatientContext, logger *zap.Logger) *ConversationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationHandler{
		sessions: sessions,
		patient:  patient,
		logger:   logger,
		tracer:   otel.Tracer("conversation-handler"),
	}
}

// WithIdempotency makes sends honour the Idempotency-Key header
func (h *ConversationHandler) WithIdempotency(store *idempotency.Store) *ConversationHandler {
	h.idem = store
	return h
}

// Routes returns the handler routes
func (h *ConversationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/patient", h.GetPatient)
	r.Get("/topics", h.ListTopics)
	r.Get("/paths", h.ListPaths)

	r.Post("/sessions", h.CreateSession)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Delete("/", h.DeleteSession)
		r.Put("/topic", h.SelectTopic)
		r.Post("/reroll", h.Reroll)
		r.Get("/prompts", h.ListPrompts)
		r.Post("/prompts/{index}/send", h.SendPrompt)
		r.Post("/messages", h.SendMessage)
		r.Get("/turns", h.ListTurns)
		r.Post("/responses/{responseID}/modify", h.ModifyResponse)
	})
	return r
}

// GetPatient handles GET /patient
func (h *ConversationHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.patient)
}

// ListTopics handles GET /topics
func (h *ConversationHandler) ListTopics(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, catalog.Topics())
}

// ListPaths handles GET /paths
func (h *ConversationHandler) ListPaths(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, catalog.Paths())
}

// CreateSession handles POST /sessions
func (h *ConversationHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create(r.Context())
	h.writeJSON(w, http.StatusCreated, s.Snapshot())
}

// GetSession handles GET /sessions/{id}
func (h *ConversationHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, s.Snapshot())
}

// DeleteSession handles DELETE /sessions/{id}
func (h *ConversationHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SelectTopicRequest is the body of PUT /sessions/{id}/topic
type SelectTopicRequest struct {
	Topic string `json:"topic"`
}

// SelectTopic handles PUT /sessions/{id}/topic
func (h *ConversationHandler) SelectTopic(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SelectTopicRequest
	if !h.decode(w, r, &req) {
		return
	}
	list, err := s.SelectTopic(r.Context(), req.Topic)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

// Reroll handles POST /sessions/{id}/reroll
func (h *ConversationHandler) Reroll(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, s.Reroll(r.Context()))
}

// ListPrompts handles GET /sessions/{id}/prompts?q=&priority=. Supplied
// parameters replace the stored filters; omitted ones keep them.
func (h *ConversationHandler) ListPrompts(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	if query.Has("priority") {
		mode, err := guide.ParsePriorityMode(query.Get("priority"))
		if err != nil {
			h.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.SetPriority(mode)
	}
	if query.Has("q") {
		s.SetSearch(query.Get("q"))
	}
	h.writeJSON(w, http.StatusOK, s.Prompts())
}

// SendPrompt handles POST /sessions/{id}/prompts/{index}/send
func (h *ConversationHandler) SendPrompt(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.jsonError(w, "prompt index must be an integer", http.StatusBadRequest)
		return
	}

	h.send(w, r, s, "send_prompt", []attribute.KeyValue{attribute.Int("prompt_index", index)},
		func(ctx context.Context) (session.Exchange, error) {
			return s.SendPrompt(ctx, index)
		})
}

// SendMessageRequest is the body of POST /sessions/{id}/messages
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessage handles POST /sessions/{id}/messages
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SendMessageRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.send(w, r, s, "send_message", nil, func(ctx context.Context) (session.Exchange, error) {
		return s.Send(ctx, req.Content)
	})
}

// send runs one exchange, replaying the stored reply when the request
// repeats an idempotency key already answered for this session
func (h *ConversationHandler) send(w http.ResponseWriter, r *http.Request, s *session.Session, name string,
	attrs []attribute.KeyValue, fn func(ctx context.Context) (session.Exchange, error)) {
	ctx, span := h.tracer.Start(r.Context(), name,
		trace.WithAttributes(append(attrs, attribute.String("session_id", s.ID()))...))
	defer span.End()

	run := func(ctx context.Context) (json.RawMessage, error) {
		ex, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if resp := ex.Assistant.Response; resp != nil {
			span.SetAttributes(
				attribute.String("response_id", resp.ID),
				attribute.Bool("fallback", resp.Fallback))
		}
		return json.Marshal(ex)
	}

	key := r.Header.Get(HeaderIdempotencyKey)
	if key == "" || h.idem == nil {
		body, err := run(ctx)
		if err != nil {
			span.RecordError(err)
			h.handleError(w, r, err)
			return
		}
		h.writeRaw(w, http.StatusCreated, body)
		return
	}

	res, err := h.idem.Process(ctx, s.ID()+":"+key, run)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, idempotency.ErrInProgress) {
			h.jsonError(w, err.Error(), http.StatusConflict)
			return
		}
		h.handleError(w, r, err)
		return
	}
	if !res.IsNew {
		w.Header().Set(headerReplayed, "true")
	}
	h.writeRaw(w, http.StatusCreated, res.Value)
}

// TurnsResponse lists the transcript
type TurnsResponse struct {
	View             string              `json:"view"`
	AwaitingResponse bool                `json:"awaiting_response"`
	Turns            []conversation.Turn `json:"turns"`
}

// ListTurns handles GET /sessions/{id}/turns
func (h *ConversationHandler) ListTurns(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	view := s.Snapshot()
	h.writeJSON(w, http.StatusOK, TurnsResponse{
		View:             view.View,
		AwaitingResponse: view.AwaitingResponse,
		Turns:            s.Turns(),
	})
}

// ModifyRequest is the body of POST /sessions/{id}/responses/{responseID}/modify
type ModifyRequest struct {
	ModificationType string `json:"modification_type"`
}

// ModifyResponse handles POST /sessions/{id}/responses/{responseID}/modify
func (h *ConversationHandler) ModifyResponse(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ModifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	kind, err := medical.ParseModificationKind(req.ModificationType)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	responseID := chi.URLParam(r, "responseID")
	ctx, span := h.tracer.Start(r.Context(), "modify_response",
		trace.WithAttributes(
			attribute.String("session_id", s.ID()),
			attribute.String("response_id", responseID),
			attribute.String("modification_type", string(kind))))
	defer span.End()

	turn, err := s.Modify(ctx, responseID, kind)
	if err != nil {
		span.RecordError(err)
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, turn)
}

func (h *ConversationHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *ConversationHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// handleError maps domain errors to status codes
func (h *ConversationHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var se *medical.StatusError
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		h.jsonError(w, "session not found", http.StatusNotFound)
	case errors.Is(err, guide.ErrUnknownTopic):
		h.jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, session.ErrPromptNotFound):
		h.jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, session.ErrResponseNotFound):
		h.jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, session.ErrEmptyMessage):
		h.jsonError(w, "message content is required", http.StatusBadRequest)
	case errors.Is(err, medical.ErrInvalidModification):
		h.jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.jsonError(w, "request cancelled while waiting for the conversation", http.StatusServiceUnavailable)
	case errors.Is(err, medical.ErrCircuitOpen),
		errors.Is(err, medical.ErrMalformedResponse),
		errors.As(err, &se):
		h.logger.Warn("medical backend failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		h.jsonError(w, "medical backend unavailable", http.StatusBadGateway)
	default:
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		h.jsonError(w, "medical backend unavailable", http.StatusBadGateway)
	}
}

func (h *ConversationHandler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *ConversationHandler) writeRaw(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}

func (h *ConversationHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
