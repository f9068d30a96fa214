// Package medical is the client for the external medical answering backend.
package medical

import (
	"encoding/json"
	"fmt"
)

// PatientContext is the fixed patient record sent with every backend call
type PatientContext struct {
	Name           string `json:"name"`
	Age            int    `json:"age"`
	Conditions     string `json:"conditions"`
	Medications    string `json:"medications"`
	RecentConcerns string `json:"recent_concerns"`
	UpcomingEvents string `json:"upcoming_events"`
	LastLabs       string `json:"last_labs,omitempty"`
}

// ConfidenceLevel rates how sure the backend is of an answer
type ConfidenceLevel string

const (
	ConfidenceHigh     ConfidenceLevel = "high"
	ConfidenceModerate ConfidenceLevel = "moderate"
	ConfidenceLow      ConfidenceLevel = "low"
)

// EvidenceQuality rates the evidence behind an answer
type EvidenceQuality string

const (
	EvidenceStrong       EvidenceQuality = "strong"
	EvidenceModerate     EvidenceQuality = "moderate"
	EvidenceLimited      EvidenceQuality = "limited"
	EvidenceInsufficient EvidenceQuality = "insufficient"
)

// ModificationKind selects how an existing answer is rewritten
type ModificationKind string

const (
	ModifySimplify    ModificationKind = "simplify"
	ModifyDetail      ModificationKind = "detail"
	ModifyPersonalize ModificationKind = "personalize"
)

// ParseModificationKind validates a modification kind from user input
func ParseModificationKind(s string) (ModificationKind, error) {
	switch k := ModificationKind(s); k {
	case ModifySimplify, ModifyDetail, ModifyPersonalize:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidModification, s)
}

// Source is a reference cited by an answer
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// FollowUpPrompt is a suggested next question attached to an answer
type FollowUpPrompt struct {
	Category  string `json:"category"`
	Prompt    string `json:"prompt"`
	Rationale string `json:"rationale"`
}

// Response is an answer produced by the backend, or the local fallback
type Response struct {
	ID              string           `json:"id"`
	Content         string           `json:"content"`
	Sources         []Source         `json:"sources"`
	ConfidenceLevel ConfidenceLevel  `json:"confidence_level"`
	EvidenceQuality EvidenceQuality  `json:"evidence_quality"`
	PriorityLevel   string           `json:"priority_level,omitempty"`
	FollowUpPrompts []FollowUpPrompt `json:"follow_up_prompts,omitempty"`
	PriorityTags    []string         `json:"priority_tags,omitempty"`
	SafetyNotes     string           `json:"safety_notes"`
	Type            string           `json:"type,omitempty"`
	// Fallback is set locally when the answer did not come from the backend
	Fallback bool `json:"fallback,omitempty"`
}

// Clone returns a deep copy of r
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	if r.Sources != nil {
		out.Sources = make([]Source, len(r.Sources))
		copy(out.Sources, r.Sources)
	}
	out.FollowUpPrompts = append([]FollowUpPrompt(nil), r.FollowUpPrompts...)
	out.PriorityTags = append([]string(nil), r.PriorityTags...)
	return &out
}

// HistoryTurn is one prior conversation turn as the backend expects it.
// Content is a string for user turns and a Response object for assistant
// turns.
type HistoryTurn struct {
	ID        int64           `json:"id"`
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	Timestamp string          `json:"timestamp"`
}

// AskRequest is the body of POST /medical/ask
type AskRequest struct {
	Question            string         `json:"question"`
	PatientContext      PatientContext `json:"patient_context"`
	ConversationHistory []HistoryTurn  `json:"conversation_history"`
	IncludeSources      bool           `json:"include_sources"`
}

// ModifyRequest is the body of POST /medical/modify
type ModifyRequest struct {
	ResponseID       string           `json:"response_id"`
	ModificationType ModificationKind `json:"modification_type"`
	PatientContext   PatientContext   `json:"patient_context"`
}
