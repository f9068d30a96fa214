package guide

import (
	"errors"
	"fmt"

	"github.com/drfirst/medguide/internal/catalog"
)

// ErrUnknownTopic is returned when selecting a topic the catalog lacks
var ErrUnknownTopic = errors.New("unknown topic")

// Selection is the prompt gallery state of one session: active topic,
// active prompt set and the two filters. It is not safe for concurrent use.
type Selection struct {
	topic    catalog.PromptTopic
	index    int
	search   string
	priority PriorityMode
}

// NewSelection starts on the catalog default topic, first set, no search
// and the recommended priority mode.
func NewSelection() *Selection {
	return &Selection{
		topic:    catalog.DefaultTopic(),
		priority: ModeRecommended,
	}
}

// Topic returns the active topic
func (s *Selection) Topic() catalog.PromptTopic { return s.topic }

// Index returns the active prompt set index
func (s *Selection) Index() int { return s.index }

// Search returns the active search text
func (s *Selection) Search() string { return s.search }

// Priority returns the active priority mode
func (s *Selection) Priority() PriorityMode { return s.priority }

// SelectTopic switches topic and always rewinds to the first set, even when
// name is already active.
func (s *Selection) SelectTopic(name string) error {
	t, ok := catalog.Topic(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTopic, name)
	}
	s.topic = t
	s.index = 0
	return nil
}

// Reroll advances to the next prompt set, wrapping after the last one
func (s *Selection) Reroll() int {
	n := s.topic.NumSets()
	if n == 0 {
		s.index = 0
		return 0
	}
	s.index = (s.index + 1) % n
	return s.index
}

// SetSearch replaces the search text
func (s *Selection) SetSearch(text string) { s.search = text }

// SetPriority replaces the priority mode
func (s *Selection) SetPriority(mode PriorityMode) { s.priority = mode }

// Prompts applies Filter to the current selection
func (s *Selection) Prompts() []catalog.Prompt {
	return Filter(s.topic, s.index, s.search, s.priority)
}
