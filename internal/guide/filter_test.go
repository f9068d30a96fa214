package guide

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/drfirst/medguide/internal/catalog"
)

func titles(prompts []catalog.Prompt) []string {
	out := make([]string, len(prompts))
	for i, p := range prompts {
		out[i] = p.Title
	}
	return out
}

var testTopic = catalog.PromptTopic{
	Name: "Test",
	PromptSets: []catalog.PromptSet{
		{
			{Title: "Insulin Timing", Prompt: "When should I take insulin?", Priority: catalog.PriorityCritical},
			{Title: "Diet", Prompt: "What should I eat for breakfast?", Priority: catalog.PriorityModerate},
			{Title: "Pre-op", Prompt: "How do I prepare for surgery?", Priority: catalog.PriorityLow, Tags: []string{catalog.TagSurgeryPrep}},
			{Title: "Apps", Prompt: "Which tracking apps help?"},
			{Title: "Exercise", Prompt: "Is running safe with INSULIN?", Priority: catalog.PriorityHigh},
		},
		{
			{Title: "Second Set", Prompt: "second", Priority: catalog.PriorityHigh},
		},
		{
			{Title: "Third Set", Prompt: "third", Priority: catalog.PriorityHigh},
		},
	},
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name   string
		index  int
		search string
		mode   PriorityMode
		want   []string
	}{
		{"recommended keeps critical high and tagged", 0, "", ModeRecommended, []string{"Insulin Timing", "Pre-op", "Exercise"}},
		{"empty mode behaves as recommended", 0, "", "", []string{"Insulin Timing", "Pre-op", "Exercise"}},
		{"all returns the whole set", 0, "", ModeAll, []string{"Insulin Timing", "Diet", "Pre-op", "Apps", "Exercise"}},
		{"explicit priority is exact", 0, "", ModeModerate, []string{"Diet"}},
		{"explicit priority excludes unranked prompts", 0, "", ModeLow, []string{"Pre-op"}},
		{"search matches title or prompt case-insensitively", 0, "insulin", ModeAll, []string{"Insulin Timing", "Exercise"}},
		{"search and priority combine", 0, "insulin", ModeCritical, []string{"Insulin Timing"}},
		{"no match", 0, "zebra", ModeAll, []string{}},
		{"index wraps past the end", 4, "", ModeAll, []string{"Second Set"}},
		{"negative index wraps from the end", -1, "", ModeAll, []string{"Third Set"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := titles(Filter(testTopic, tt.index, tt.search, tt.mode))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Filter mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilter_IndexIsCyclic(t *testing.T) {
	n := testTopic.NumSets()
	for i := -7; i < 7; i++ {
		a := Filter(testTopic, i, "", ModeAll)
		b := Filter(testTopic, i+n, "", ModeAll)
		if diff := cmp.Diff(a, b); diff != "" {
			t.Errorf("index %d and %d differ:\n%s", i, i+n, diff)
		}
	}
}

func TestFilter_TopicWithoutSets(t *testing.T) {
	got := Filter(catalog.PromptTopic{Name: "Empty"}, 3, "", ModeAll)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestFilter_CatalogAllModeReturnsFullSets(t *testing.T) {
	for _, topic := range catalog.Topics() {
		for i, set := range topic.PromptSets {
			if got := Filter(topic, i, "", ModeAll); len(got) != len(set) {
				t.Errorf("%s set %d: got %d prompts, want %d", topic.Name, i, len(got), len(set))
			}
		}
	}
}

func TestParsePriorityMode(t *testing.T) {
	tests := []struct {
		in      string
		want    PriorityMode
		wantErr bool
	}{
		{"", ModeRecommended, false},
		{"all", ModeAll, false},
		{" Critical ", ModeCritical, false},
		{"low", ModeLow, false},
		{"urgent", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePriorityMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePriorityMode(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePriorityMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
