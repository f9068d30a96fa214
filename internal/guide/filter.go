// Package guide selects which canned prompts a user is shown.
package guide

import (
	"fmt"
	"strings"

	"github.com/drfirst/medguide/internal/catalog"
)

// PriorityMode is the priority filter applied to a prompt set
type PriorityMode string

const (
	// ModeRecommended keeps critical and high prompts plus anything tagged
	// as lifesaving, surgical or emergency care
	ModeRecommended PriorityMode = "recommended"
	// ModeAll disables priority filtering
	ModeAll PriorityMode = "all"

	ModeCritical PriorityMode = PriorityMode(catalog.PriorityCritical)
	ModeHigh     PriorityMode = PriorityMode(catalog.PriorityHigh)
	ModeModerate PriorityMode = PriorityMode(catalog.PriorityModerate)
	ModeLow      PriorityMode = PriorityMode(catalog.PriorityLow)
)

var recommendedTags = []string{
	catalog.TagLifesavingDrugs,
	catalog.TagSurgeryPrep,
	catalog.TagEmergencyCare,
}

// ParsePriorityMode validates user input. An empty string selects
// ModeRecommended.
func ParsePriorityMode(s string) (PriorityMode, error) {
	m := PriorityMode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "":
		return ModeRecommended, nil
	case ModeRecommended, ModeAll, ModeCritical, ModeHigh, ModeModerate, ModeLow:
		return m, nil
	}
	return "", fmt.Errorf("unknown priority mode %q", s)
}

// SetIndex folds any integer into [0, n). It returns 0 when n is zero.
func SetIndex(index, n int) int {
	if n <= 0 {
		return 0
	}
	return ((index % n) + n) % n
}

// Filter returns the prompts of the selected set that match both the search
// text and the priority mode, in their original order.
func Filter(topic catalog.PromptTopic, index int, search string, mode PriorityMode) []catalog.Prompt {
	n := topic.NumSets()
	if n == 0 {
		return []catalog.Prompt{}
	}
	set := topic.PromptSets[SetIndex(index, n)]

	needle := strings.ToLower(search)
	out := make([]catalog.Prompt, 0, len(set))
	for _, p := range set {
		if matchesText(p, needle) && matchesPriority(p, mode) {
			out = append(out, p)
		}
	}
	return out
}

func matchesText(p catalog.Prompt, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Title), needle) ||
		strings.Contains(strings.ToLower(p.Prompt), needle)
}

func matchesPriority(p catalog.Prompt, mode PriorityMode) bool {
	switch mode {
	case ModeAll:
		return true
	case ModeRecommended, "":
		if p.Priority == catalog.PriorityCritical || p.Priority == catalog.PriorityHigh {
			return true
		}
		for _, tag := range recommendedTags {
			if p.HasTag(tag) {
				return true
			}
		}
		return false
	default:
		return p.Priority != catalog.PriorityNone && string(p.Priority) == string(mode)
	}
}
