package service

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/raphaelgruber/promosignal/internal/models"
	"github.com/raphaelgruber/promosignal/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChunkSignals(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		indices []int
		want    models.SignalMap
		wantErr error
	}{
		{
			name:    "fenced object",
			raw:     "```json\n{\"3\": {\"1\": [\"ownership\"]}}\n```",
			indices: []int{3, 4},
			want:    models.SignalMap{"3": {"1": {"ownership"}}},
		},
		{
			name:    "keys are canonicalized",
			raw:     `{" 03 ": {"01": ["ownership"]}}`,
			indices: []int{3},
			want:    models.SignalMap{"3": {"1": {"ownership"}}},
		},
		{
			name:    "award outside chunk is dropped",
			raw:     `{"3": {"1": ["a"]}, "5": {"1": ["b"]}}`,
			indices: []int{3, 4},
			want:    models.SignalMap{"3": {"1": {"a"}}},
		},
		{
			name:    "shape violations are skipped",
			raw:     `{"3": ["not", "an", "object"], "4": {"x": ["bad sub"], "1": "not a list", "2": [1, 2], "3": ["  keep   me "]}}`,
			indices: []int{3, 4},
			want:    models.SignalMap{"4": {"3": {"keep me"}}},
		},
		{
			name:    "blank phrases drop their sentence and award",
			raw:     `{"3": {"1": ["", "  "]}}`,
			indices: []int{3},
			want:    models.SignalMap{},
		},
		{
			name:    "not json",
			raw:     "There are no signals in these awards.",
			indices: []int{0},
			wantErr: parser.ErrMalformedResponse,
		},
		{
			name:    "json array",
			raw:     `[{"0": {}}]`,
			indices: []int{0},
			wantErr: parser.ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseChunkSignals(tt.raw, tt.indices, slog.Default())
			if tt.wantErr != nil {
				require.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseClusterSet(t *testing.T) {
	input := []string{"Cross-functional leadership", "mentoring"}
	raw := `{
		"  People   Development ": {"phrases": ["MENTORING"], "description": "Grows others."},
		"Bad": "not an object",
		"Leadership": {"phrases": ["cross-functional leadership", "mentoring"], "description": ""}
	}`

	got, err := parseClusterSet(raw, input, slog.Default())
	require.NoError(t, err)
	// Leadership sorts first and claims both phrases, leaving the other
	// cluster empty.
	assert.Equal(t, models.ClusterSet{
		"Leadership": {Phrases: []string{"Cross-functional leadership", "mentoring"}},
	}, got)
}

func TestParseClusterSet_CollidingNamesAreStable(t *testing.T) {
	input := []string{"ownership", "mentoring"}
	raw := `{
		"Leadership ": {"phrases": ["mentoring"], "description": "second"},
		"Leadership": {"phrases": ["ownership"], "description": "first"}
	}`

	for range 50 {
		got, err := parseClusterSet(raw, input, slog.Default())
		require.NoError(t, err)
		require.Equal(t, models.ClusterSet{
			"Leadership": {Phrases: []string{"ownership"}, Description: "first"},
		}, got)
	}
}

func TestParseCanonicalSet(t *testing.T) {
	raw := `{"Ownership": {"aliases": ["Ownership", "Accountability"], "summary": " Owns outcomes. "}, "Broken": 42, " ": {"aliases": ["x"]}}`

	got, err := parseCanonicalSet(raw, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, models.CanonicalSet{
		"Ownership": {Aliases: []string{"Ownership", "Accountability"}, Summary: "Owns outcomes."},
	}, got)

	_, err = parseCanonicalSet("null", slog.Default())
	assert.ErrorIs(t, err, parser.ErrMalformedResponse)
}
