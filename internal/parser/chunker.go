package parser

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/promosignal/internal/models"
)

// AwardChunk is a token-bounded group of consecutive awards, formatted for
// the extraction prompt.
type AwardChunk struct {
	Position     int
	Text         string
	AwardIndices []int
	Tokens       int
	// Oversize is set when the chunk holds a single award whose own token
	// count exceeds the budget.
	Oversize bool
}

// FormatAward renders one award as it appears inside a chunk.
func FormatAward(index int, award models.AwardRecord) string {
	return fmt.Sprintf("%d#%s|%s\n\n", index, strings.TrimSpace(award.Title), strings.TrimSpace(award.Message))
}

// ChunkAwards packs awards greedily, in order, into chunks whose token count
// stays within maxTokens. An award that alone exceeds the budget is emitted
// as its own oversize chunk rather than split. No empty chunks are produced.
func ChunkAwards(awards []models.AwardRecord, maxTokens int, counter TokenCounter) ([]AwardChunk, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("max tokens must be positive, got %d", maxTokens)
	}

	var chunks []AwardChunk
	var buf strings.Builder
	var indices []int
	tokens := 0

	flush := func() {
		if len(indices) == 0 {
			return
		}
		chunks = append(chunks, AwardChunk{
			Position:     len(chunks),
			Text:         buf.String(),
			AwardIndices: indices,
			Tokens:       tokens,
			Oversize:     tokens > maxTokens,
		})
		buf.Reset()
		indices = nil
		tokens = 0
	}

	for i, award := range awards {
		text := FormatAward(i, award)
		n := counter.CountTokens(text)

		// If adding this award would exceed the budget, flush first
		if len(indices) > 0 && tokens+n > maxTokens {
			flush()
		}

		buf.WriteString(text)
		indices = append(indices, i)
		tokens += n
	}
	flush()

	return chunks, nil
}

// ChunkTexts returns the text of each chunk.
func ChunkTexts(chunks []AwardChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
