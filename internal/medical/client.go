package medical

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drfirst/medguide/pkg/circuitbreaker"
)

// Backend endpoints, relative to the configured base URL
const (
	EndpointAsk    = "/medical/ask"
	EndpointModify = "/medical/modify"
)

// Call outcomes reported to the Observer
const (
	OutcomeSuccess        = "success"
	OutcomeHTTPError      = "http_error"
	OutcomeTransportError = "transport_error"
	OutcomeDecodeError    = "decode_error"
	OutcomeCircuitOpen    = "circuit_open"
)

var (
	// ErrInvalidModification is returned for an unknown modification kind
	ErrInvalidModification = errors.New("invalid modification type")
	// ErrMalformedResponse is returned when a 2xx body is not a valid answer
	ErrMalformedResponse = errors.New("malformed backend response")
	// ErrCircuitOpen is returned when the backend breaker rejects a call
	ErrCircuitOpen = circuitbreaker.ErrOpen
)

// StatusError reports a non-2xx reply from the backend
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: backend returned HTTP %d", e.Endpoint, e.StatusCode)
}

// Observer receives one observation per backend call
type Observer interface {
	ObserveBackendCall(endpoint, outcome string, elapsed time.Duration)
}

// Config holds client configuration
type Config struct {
	// BaseURL is the backend root, e.g. http://localhost:8000/api
	BaseURL string
	// Timeout bounds each call; zero disables the client-side deadline
	Timeout time.Duration
	// HTTPClient overrides the transport, mostly for tests
	HTTPClient *http.Client
	// RequestID extracts the inbound request id to forward as X-Request-ID
	RequestID func(ctx context.Context) string
	// Observer is optional
	Observer Observer
	// OnBreakerStateChange is called when either endpoint breaker changes
	// state; optional
	OnBreakerStateChange circuitbreaker.StateListener
}

// Client calls the medical backend. Both calls return errors; use
// RecoveringAsker for the fallback policy on Ask.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	requestID  func(ctx context.Context) string
	observer   Observer

	askBreaker    *circuitbreaker.CircuitBreaker
	modifyBreaker *circuitbreaker.CircuitBreaker

	logger *zap.Logger
	tracer trace.Tracer
}

// NewClient creates a backend client with one breaker per endpoint
func NewClient(cfg Config, breakers *circuitbreaker.Manager, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("medical backend base URL is required")
	}
	if breakers == nil {
		breakers = circuitbreaker.NewManager(logger)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	askBreaker, err := breakers.GetOrCreate("medical-ask", breakerConfig(cfg.OnBreakerStateChange))
	if err != nil {
		return nil, fmt.Errorf("create ask breaker: %w", err)
	}
	modifyBreaker, err := breakers.GetOrCreate("medical-modify", breakerConfig(cfg.OnBreakerStateChange))
	if err != nil {
		return nil, fmt.Errorf("create modify breaker: %w", err)
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		timeout:       cfg.Timeout,
		httpClient:    httpClient,
		requestID:     cfg.RequestID,
		observer:      cfg.Observer,
		askBreaker:    askBreaker,
		modifyBreaker: modifyBreaker,
		logger:        logger,
		tracer:        otel.Tracer("medical-client"),
	}, nil
}

// breakerConfig treats 4xx replies and caller cancellation as healthy: the
// backend was not at fault.
func breakerConfig(listener circuitbreaker.StateListener) circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig("")
	cfg.OnStateChange = listener
	cfg.IsSuccessful = func(err error) bool {
		var se *StatusError
		if errors.As(err, &se) {
			return se.StatusCode < 500
		}
		return err == nil || errors.Is(err, context.Canceled)
	}
	return cfg
}

// Ask posts a question with the patient context and prior turns
func (c *Client) Ask(ctx context.Context, question string, patient PatientContext, history []HistoryTurn) (*Response, error) {
	if history == nil {
		history = []HistoryTurn{}
	}
	body := AskRequest{
		Question:            question,
		PatientContext:      patient,
		ConversationHistory: history,
		IncludeSources:      true,
	}
	return c.call(ctx, c.askBreaker, EndpointAsk, body)
}

// Modify asks the backend to rewrite an earlier answer. Failures are
// returned to the caller unchanged.
func (c *Client) Modify(ctx context.Context, responseID string, kind ModificationKind, patient PatientContext) (*Response, error) {
	if responseID == "" {
		return nil, errors.New("response id is required")
	}
	if _, err := ParseModificationKind(string(kind)); err != nil {
		return nil, err
	}
	body := ModifyRequest{
		ResponseID:       responseID,
		ModificationType: kind,
		PatientContext:   patient,
	}
	return c.call(ctx, c.modifyBreaker, EndpointModify, body)
}

func (c *Client) call(ctx context.Context, cb *circuitbreaker.CircuitBreaker, endpoint string, body interface{}) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "medical"+strings.ReplaceAll(endpoint, "/", "."),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("medical.endpoint", endpoint)))
	defer span.End()

	start := time.Now()
	result, err := cb.Execute(ctx, func() (interface{}, error) {
		return c.post(ctx, endpoint, body)
	})
	outcome := classify(err)
	if c.observer != nil {
		c.observer.ObserveBackendCall(endpoint, outcome, time.Since(start))
	}
	span.SetAttributes(attribute.String("medical.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return result.(*Response), nil
}

func (c *Client) post(ctx context.Context, endpoint string, body interface{}) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", endpoint, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.requestID != nil {
		if id := c.requestID(ctx); id != "" {
			req.Header.Set("X-Request-ID", id)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(snippet),
		}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", endpoint, ErrMalformedResponse, err)
	}
	if out.Sources == nil {
		out.Sources = []Source{}
	}

	c.logger.Debug("medical backend replied",
		zap.String("endpoint", endpoint),
		zap.String("response_id", out.ID),
		zap.String("confidence", string(out.ConfidenceLevel)))
	return &out, nil
}

func classify(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrCircuitOpen):
		return OutcomeCircuitOpen
	case errors.As(err, &se):
		return OutcomeHTTPError
	case errors.Is(err, ErrMalformedResponse):
		return OutcomeDecodeError
	default:
		return OutcomeTransportError
	}
}
