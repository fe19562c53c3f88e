package llm

import (
	"strings"
	"testing"
)

func TestSignalExtractionPrompt(t *testing.T) {
	chunk := "0#Team Leadership Award|She led the launch.\n\n"
	prompt := SignalExtractionPrompt(chunk)

	if !strings.Contains(prompt, chunk) {
		t.Errorf("prompt does not contain the chunk text")
	}
	if !strings.Contains(prompt, "<award_index>#<title>|<message>") {
		t.Errorf("prompt does not describe the entry format")
	}
}

func TestListPromptsAreOrderIndependent(t *testing.T) {
	a := ClusterPrompt([]string{"mentorship", "cross-functional leadership", "innovation"})
	b := ClusterPrompt([]string{"innovation", "mentorship", "cross-functional leadership"})
	if a != b {
		t.Errorf("ClusterPrompt() depends on input order")
	}

	d1 := DifferencePrompt([]string{"B", "A"}, []string{"D", "C"})
	d2 := DifferencePrompt([]string{"A", "B"}, []string{"C", "D"})
	if d1 != d2 {
		t.Errorf("DifferencePrompt() depends on input order")
	}
}

func TestDedupePromptQuotesNames(t *testing.T) {
	prompt := DedupePrompt([]string{`Team "A" Leadership`})
	if !strings.Contains(prompt, `"Team \"A\" Leadership"`) {
		t.Errorf("DedupePrompt() did not JSON-quote the name:\n%s", prompt)
	}
}

func TestDedupePromptMergePolicy(t *testing.T) {
	prompt := DedupePrompt([]string{"Team Leadership", "Leading Teams"})

	tests := []struct {
		name string
		want string
	}{
		{"overlap in wording, scope or granularity", "wording, in scope or in granularity"},
		{"merge when uncertain", "When you are uncertain whether two names belong together, merge them."},
		{"merging preferred", "Merging is always preferred over keeping names apart."},
		{"most general alias is canonical", "The canonical name is the most general name among the group's aliases."},
		{"no invented canonical name", "Pick it from the aliases; do not invent a new name."},
		{"short neutral summary", "neutral summary of the shared meaning in 1 to 2 sentences"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(prompt, tt.want) {
				t.Errorf("DedupePrompt() missing %q", tt.want)
			}
		})
	}

	if strings.Contains(prompt, "choose a concise canonical name") {
		t.Errorf("DedupePrompt() still lets the model coin canonical names")
	}
}

func TestJSONListEmpty(t *testing.T) {
	if got := jsonList(nil); got != "[]" {
		t.Errorf("jsonList(nil) = %q, want []", got)
	}
}
