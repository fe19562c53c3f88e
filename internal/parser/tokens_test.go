package parser

import (
	"testing"

	"github.com/raphaelgruber/promosignal/internal/models"
)

func TestTiktokenCounter(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping tokenizer test in short mode (downloads vocabulary)")
	}

	counter, err := NewTiktokenCounter("")
	if err != nil {
		t.Fatalf("NewTiktokenCounter() error = %v", err)
	}
	if counter.Encoding() != DefaultEncoding {
		t.Errorf("Encoding() = %q, want %q", counter.Encoding(), DefaultEncoding)
	}

	if n := counter.CountTokens(""); n != 0 {
		t.Errorf("CountTokens(\"\") = %d, want 0", n)
	}
	short := counter.CountTokens("hello world")
	long := counter.CountTokens("hello world, this sentence is clearly longer than the first")
	if short <= 0 || long <= short {
		t.Errorf("CountTokens() short=%d long=%d, want 0 < short < long", short, long)
	}

	awards := []models.AwardRecord{
		{Title: "Team Leadership Award", Message: "She led the team through a major product launch."},
		{Title: "Innovation", Message: "Built the new onboarding flow."},
	}
	chunks, err := ChunkAwards(awards, 40000, counter)
	if err != nil {
		t.Fatalf("ChunkAwards() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Errorf("ChunkAwards() got %d chunks, want 1", len(chunks))
	}
}
