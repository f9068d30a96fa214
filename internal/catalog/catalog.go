package catalog

import "github.com/drfirst/medguide/internal/medical"

// Topics returns every topic in display order
func Topics() []PromptTopic {
	out := make([]PromptTopic, len(topics))
	for i, t := range topics {
		out[i] = t.clone()
	}
	return out
}

// TopicNames returns the topic keys in display order
func TopicNames() []string {
	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = t.Name
	}
	return names
}

// Topic looks up a topic by name
func Topic(name string) (PromptTopic, bool) {
	for _, t := range topics {
		if t.Name == name {
			return t.clone(), true
		}
	}
	return PromptTopic{}, false
}

// DefaultTopic is the topic a fresh session starts on
func DefaultTopic() PromptTopic {
	return topics[0].clone()
}

// Paths returns the follow-up conversation paths
func Paths() []ConversationPath {
	out := make([]ConversationPath, len(paths))
	for i, p := range paths {
		out[i] = p
		out[i].Prompts = append([]string(nil), p.Prompts...)
	}
	return out
}

// Patient returns the demo patient record sent as context on every backend
// call
func Patient() medical.PatientContext {
	return medical.PatientContext{
		Name:           "John Doe",
		Age:            45,
		Conditions:     "Type 2 Diabetes Mellitus, Hypertension, Prediabetic Neuropathy",
		Medications:    "Metformin 1000mg BID, Lisinopril 10mg daily, Atorvastatin 20mg daily",
		RecentConcerns: "HbA1c 8.2%, frequent hypoglycemic episodes, tingling in feet",
		UpcomingEvents: "endocrinologist appointment March 15, 2025, diabetic eye exam scheduled",
		LastLabs:       "HbA1c: 8.2%, fasting glucose: 165 mg/dL, eGFR: 78 mL/min",
	}
}

var paths = []ConversationPath{
	{
		Key:         PathConsultation,
		Title:       "Consultation",
		Description: "Questions to ask your doctor",
		Icon:        "stethoscope",
		Prompts: []string{
			"What questions should I ask my doctor about this?",
			"How should I discuss this with my healthcare team?",
			"What information should I prepare for my next appointment?",
			"When should I schedule a follow-up consultation?",
			"What warning signs should prompt immediate medical attention?",
		},
	},
	{
		Key:         PathResearch,
		Title:       "Research",
		Description: "Evidence-based information",
		Icon:        "search",
		Prompts: []string{
			"What does the latest research say about this?",
			"Are there any recent clinical trials I should know about?",
			"What are the current treatment guidelines?",
			"What do medical experts recommend for this situation?",
			"What peer-reviewed studies support this approach?",
		},
	},
	{
		Key:         PathContext,
		Title:       "Context",
		Description: "Additional helpful information",
		Icon:        "file-text",
		Prompts: []string{
			"What additional information would be helpful to know?",
			"How does this relate to my other health conditions?",
			"What background information should I understand?",
			"Are there related topics I should explore?",
			"What context am I missing about this situation?",
		},
	},
}
