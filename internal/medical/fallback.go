package medical

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Asker is anything that can answer a question and may fail
type Asker interface {
	Ask(ctx context.Context, question string, patient PatientContext, history []HistoryTurn) (*Response, error)
}

// Modifier rewrites an earlier answer and may fail
type Modifier interface {
	Modify(ctx context.Context, responseID string, kind ModificationKind, patient PatientContext) (*Response, error)
}

// FallbackNotifier is told whenever a fallback answer is served
type FallbackNotifier interface {
	FallbackServed(err error)
}

// RecoveringAsker never fails: any error from the wrapped Asker is replaced
// by a locally built fallback answer.
type RecoveringAsker struct {
	next     Asker
	logger   *zap.Logger
	notifier FallbackNotifier
}

// NewRecoveringAsker wraps next with the fallback policy
func NewRecoveringAsker(next Asker, notifier FallbackNotifier, logger *zap.Logger) *RecoveringAsker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecoveringAsker{next: next, logger: logger, notifier: notifier}
}

// Ask returns the backend answer, or the fallback answer on any failure
func (r *RecoveringAsker) Ask(ctx context.Context, question string, patient PatientContext, history []HistoryTurn) *Response {
	resp, err := r.next.Ask(ctx, question, patient, history)
	if err == nil && resp != nil {
		return resp
	}
	r.logger.Warn("medical backend unavailable, serving fallback answer", zap.Error(err))
	if r.notifier != nil {
		r.notifier.FallbackServed(err)
	}
	return Fallback(question)
}

// Fallback builds the placeholder answer shown when the backend cannot be
// reached. The question is quoted verbatim in the content.
func Fallback(question string) *Response {
	return &Response{
		ID: "fallback_" + uuid.NewString(),
		Content: fmt.Sprintf("I'd be happy to help answer \"%s\". For the most accurate medical information, "+
			"I recommend consulting with healthcare professionals who can provide personalized guidance.", question),
		Sources:         []Source{},
		ConfidenceLevel: ConfidenceLow,
		EvidenceQuality: EvidenceInsufficient,
		FollowUpPrompts: []FollowUpPrompt{
			{Category: "consultation", Prompt: "What questions should I ask my doctor about this?", Rationale: "Professional guidance"},
			{Category: "research", Prompt: "What should I research before my appointment?", Rationale: "Preparation"},
			{Category: "context", Prompt: "What additional information would be helpful?", Rationale: "Context gathering"},
		},
		SafetyNotes: "This is a fallback response. Please consult healthcare professionals for reliable medical information.",
		Type:        "research",
		Fallback:    true,
	}
}
