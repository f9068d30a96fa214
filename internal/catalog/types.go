// Package catalog holds the static guided-prompt catalog, the follow-up
// conversation paths and the demo patient record.
package catalog

// Category classifies what kind of answer a prompt asks for
type Category string

const (
	CategoryResearch      Category = "research"
	CategoryPersonalized  Category = "personalized"
	CategoryActionable    Category = "actionable"
	CategoryPlanning      Category = "planning"
	CategoryCommunity     Category = "community"
	CategoryPreventive    Category = "preventive"
	CategoryOpportunities Category = "opportunities"
)

// Priority ranks a prompt's clinical urgency. The zero value means the
// prompt carries no priority.
type Priority string

const (
	PriorityNone     Priority = ""
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityModerate Priority = "moderate"
	PriorityLow      Priority = "low"
)

// Valid reports whether p is one of the four ranked priorities
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityModerate, PriorityLow:
		return true
	}
	return false
}

// Tags that mark a prompt as recommended regardless of its priority
const (
	TagLifesavingDrugs = "lifesaving-drugs"
	TagSurgeryPrep     = "surgery-prep"
	TagEmergencyCare   = "emergency-care"
)

// Prompt is a canned question offered to the user
type Prompt struct {
	Title     string   `json:"title"`
	Prompt    string   `json:"prompt"`
	Rationale string   `json:"rationale"`
	Category  Category `json:"type"`
	Priority  Priority `json:"priority,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// HasTag reports whether the prompt carries tag
func (p Prompt) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// PromptSet is one curated alternative group of prompts for a topic
type PromptSet []Prompt

// PromptTopic groups interchangeable prompt sets under a unique name
type PromptTopic struct {
	Name       string      `json:"name"`
	Icon       string      `json:"icon"`
	Color      string      `json:"color"`
	PromptSets []PromptSet `json:"prompt_sets"`
}

// NumSets returns how many alternative prompt sets the topic has
func (t PromptTopic) NumSets() int { return len(t.PromptSets) }

// clone returns a deep copy so catalog data cannot be mutated through it
func (t PromptTopic) clone() PromptTopic {
	out := t
	out.PromptSets = make([]PromptSet, len(t.PromptSets))
	for i, set := range t.PromptSets {
		cp := make(PromptSet, len(set))
		for j, p := range set {
			cp[j] = p
			if p.Tags != nil {
				cp[j].Tags = append([]string(nil), p.Tags...)
			}
		}
		out.PromptSets[i] = cp
	}
	return out
}

// PathCategory names a follow-up conversation path
type PathCategory string

const (
	PathConsultation PathCategory = "consultation"
	PathResearch     PathCategory = "research"
	PathContext      PathCategory = "context"
)

// ConversationPath is a group of canned follow-up questions shown under an
// assistant answer
type ConversationPath struct {
	Key         PathCategory `json:"key"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Icon        string       `json:"icon"`
	Prompts     []string     `json:"prompts"`
}
