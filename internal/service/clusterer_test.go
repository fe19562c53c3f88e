package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/raphaelgruber/promosignal/internal/llm"
	"github.com/raphaelgruber/promosignal/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCluster(t *testing.T) {
	ctx := context.Background()
	phrases := []string{"Mentoring", "ownership", "process automation"}

	model := &scriptedModel{
		cluster: func(string) (string, error) {
			return `{
				"Ownership": {"phrases": ["ownership", "invented phrase"], "description": "Takes responsibility for outcomes."},
				"People Development": {"phrases": ["mentoring", "ownership"], "description": " Grows others. "},
				"Empty": {"phrases": ["nothing real"], "description": "x"}
			}`, nil
		},
	}
	artifacts, dir := newTestArtifacts(t)
	cl := NewClusterer(model, artifacts, nil)

	set, err := cl.Cluster(ctx, 3, models.CohortVP, phrases)
	require.NoError(t, err)

	want := models.ClusterSet{
		"Ownership":          {Phrases: []string{"ownership"}, Description: "Takes responsibility for outcomes."},
		"People Development": {Phrases: []string{"Mentoring"}, Description: "Grows others."},
	}
	assert.Equal(t, want, set)

	_, err = os.Stat(filepath.Join(dir, "True", "employee_3_clustering_result.json"))
	require.NoError(t, err)

	stored, err := artifacts.LoadClusterSet(ctx, models.CohortVP, 3)
	require.NoError(t, err)
	assert.Equal(t, want, stored)
}

func TestCluster_NoPhrasesSkipsModel(t *testing.T) {
	model := &scriptedModel{}
	artifacts, dir := newTestArtifacts(t)
	cl := NewClusterer(model, artifacts, nil)

	set, err := cl.Cluster(context.Background(), 4, models.CohortNonVP, nil)
	require.NoError(t, err)
	assert.Empty(t, set)
	assert.Zero(t, model.calls())

	data, err := os.ReadFile(filepath.Join(dir, "False", "employee_4_clustering_result.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}

func TestCluster_Failures(t *testing.T) {
	tests := []struct {
		name      string
		answer    func(string) (string, error)
		wantErr   error
		persisted bool
	}{
		{
			name:      "malformed output persists empty set",
			answer:    func(string) (string, error) { return `["not", "an", "object"]`, nil },
			persisted: true,
		},
		{
			name:   "call error is not persisted",
			answer: func(string) (string, error) { return "", errors.New("timeout") },
		},
		{
			name: "fatal error is returned",
			answer: func(string) (string, error) {
				return "", fmt.Errorf("%w: invalid api key", llm.ErrFatalAPI)
			},
			wantErr: llm.ErrFatalAPI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			artifacts, _ := newTestArtifacts(t)
			cl := NewClusterer(&scriptedModel{cluster: tt.answer}, artifacts, nil)

			set, err := cl.Cluster(ctx, 5, models.CohortNonVP, []string{"ownership"})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Empty(t, set)
			}

			ok, err := artifacts.HasClusterSet(ctx, models.CohortNonVP, 5)
			require.NoError(t, err)
			assert.Equal(t, tt.persisted, ok)
		})
	}
}
