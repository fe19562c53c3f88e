package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/raphaelgruber/promosignal/internal/llm"
	"github.com/raphaelgruber/promosignal/internal/models"
	"github.com/raphaelgruber/promosignal/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const promptTail = "\n\nReturn only the JSON object."

// themeModel extracts "leadership" from awards mentioning a migration and
// "mentoring" otherwise, clusters every phrase on its own and keeps every
// name as its own canonical group.
func themeModel() *scriptedModel {
	return &scriptedModel{
		extract: func(indices []int, chunk string) (string, error) {
			phrase := "mentoring"
			if strings.Contains(chunk, "migration") {
				phrase = "leadership"
			}
			parts := make([]string, len(indices))
			for i, idx := range indices {
				parts[i] = fmt.Sprintf(`"%d": {"1": [%q]}`, idx, phrase)
			}
			return "{" + strings.Join(parts, ",") + "}", nil
		},
		cluster: func(list string) (string, error) {
			var phrases []string
			if err := json.Unmarshal([]byte(strings.TrimSuffix(list, promptTail)), &phrases); err != nil {
				return "", err
			}
			out := make(map[string]models.Cluster, len(phrases))
			for _, p := range phrases {
				out["Theme "+p] = models.Cluster{Phrases: []string{p}, Description: "About " + p + "."}
			}
			data, err := json.Marshal(out)
			return string(data), err
		},
		dedupe: func(list string) (string, error) {
			var names []string
			if err := json.Unmarshal([]byte(strings.TrimSuffix(list, promptTail)), &names); err != nil {
				return "", err
			}
			out := make(models.CanonicalSet, len(names))
			for _, n := range names {
				out[n] = models.CanonicalCluster{Aliases: []string{n}, Summary: "Summary of " + n + "."}
			}
			data, err := json.Marshal(out)
			return string(data), err
		},
		difference: func(string) (string, error) {
			return `{"Leadership": {"aliases": ["Theme leadership"], "summary": "Leads.", "group_presence": "treatment_only"}}`, nil
		},
	}
}

func newTestPipeline(model Generator, artifacts *store.Artifacts, opts PipelineOptions) *Pipeline {
	return NewPipeline(
		NewExtractor(model, artifacts, wordCounter{}, ExtractorOptions{}, nil),
		NewClusterer(model, artifacts, nil),
		NewDeduplicator(model, artifacts, nil),
		NewTaxonomyBuilder(model, artifacts),
		artifacts,
		opts,
	)
}

func testEmployees() []models.Employee {
	return []models.Employee{
		employee(1, true, "Team Leadership Award|She led a cross-functional migration effort."),
		employee(2, false, "Mentor Award|He mentored three new hires."),
		employee(3, false),
	}
}

func TestPipelineRun(t *testing.T) {
	ctx := context.Background()
	model := themeModel()
	artifacts, dir := newTestArtifacts(t)

	var mu sync.Mutex
	var events []RunSnapshot
	p := newTestPipeline(model, artifacts, PipelineOptions{
		EmployeeConcurrency: 2,
		Difference:          true,
		OnProgress: func(s RunSnapshot) {
			mu.Lock()
			events = append(events, s)
			mu.Unlock()
		},
	})

	report, err := p.Run(ctx, testEmployees())
	require.NoError(t, err)

	assert.Equal(t, RunStatusCompleted, report.Run.Status)
	assert.Equal(t, 3, report.Run.Progress)
	assert.Equal(t, models.Taxonomy{
		"Theme leadership": "Summary of Theme leadership.",
		"Theme mentoring":  "Summary of Theme mentoring.",
	}, report.Taxonomy)
	assert.Equal(t, []string{"Theme leadership"}, report.Patterns[models.CohortVP].Names())
	assert.Equal(t, []string{"Theme mentoring"}, report.Patterns[models.CohortNonVP].Names())
	assert.Contains(t, report.Difference, "Leadership")

	for _, rel := range []string{
		"employee_1_award_chunks.jsonl",
		"employee_1_keywords.json",
		"employee_3_keywords.json",
		filepath.Join("True", "employee_1_clustering_result.json"),
		filepath.Join("False", "employee_2_clustering_result.json"),
		filepath.Join("False", "employee_3_clustering_result.json"),
		filepath.Join("True", "pattern_results.json"),
		filepath.Join("False", "pattern_results.json"),
		"taxonomy.json",
		"taxonomy_diff.json",
		filepath.Join("runs", report.Run.ID+".json"),
	} {
		_, err := os.Stat(filepath.Join(dir, rel))
		assert.NoError(t, err, rel)
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events)
	assert.Equal(t, RunStatusCompleted, events[len(events)-1].Status)
}

func TestPipelineRun_Resume(t *testing.T) {
	ctx := context.Background()
	artifacts, _ := newTestArtifacts(t)

	first := themeModel()
	_, err := newTestPipeline(first, artifacts, PipelineOptions{}).Run(ctx, testEmployees())
	require.NoError(t, err)

	second := themeModel()
	report, err := newTestPipeline(second, artifacts, PipelineOptions{Resume: true}).Run(ctx, testEmployees())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Run.Skipped)
	assert.Zero(t, second.callsContaining("\nAwards:\n"))
	assert.Zero(t, second.callsContaining("\nPhrases:\n"))
	assert.Equal(t, 2, second.callsContaining("\nNames:\n"))
	assert.Len(t, report.Taxonomy, 2)
}

func TestPipelineRun_ResumeRetriesFailedExtraction(t *testing.T) {
	ctx := context.Background()
	artifacts, _ := newTestArtifacts(t)

	flaky := themeModel()
	flaky.extract = func([]int, string) (string, error) {
		return "", errors.New("connection reset")
	}
	report, err := newTestPipeline(flaky, artifacts, PipelineOptions{}).Run(ctx, testEmployees())
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, report.Run.Status)
	assert.NotEmpty(t, report.Run.Warnings)

	for _, emp := range testEmployees()[:2] {
		done, err := artifacts.HasClusterSet(ctx, emp.Cohort(), emp.ID)
		require.NoError(t, err)
		assert.False(t, done, "employee %d", emp.ID)
	}
	// No awards means nothing failed, so the empty set is final
	done, err := artifacts.HasClusterSet(ctx, models.CohortNonVP, 3)
	require.NoError(t, err)
	assert.True(t, done)

	healthy := themeModel()
	report, err = newTestPipeline(healthy, artifacts, PipelineOptions{Resume: true}).Run(ctx, testEmployees())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Run.Skipped)
	assert.Equal(t, 2, healthy.callsContaining("\nAwards:\n"))
	assert.Len(t, report.Taxonomy, 2)
}

func TestPipelineRun_FatalErrorFailsRun(t *testing.T) {
	ctx := context.Background()
	model := themeModel()
	model.extract = func([]int, string) (string, error) {
		return "", fmt.Errorf("%w: quota exceeded", llm.ErrFatalAPI)
	}
	artifacts, dir := newTestArtifacts(t)

	report, err := newTestPipeline(model, artifacts, PipelineOptions{}).Run(ctx, testEmployees())
	require.ErrorIs(t, err, llm.ErrFatalAPI)
	require.NotNil(t, report)
	assert.Equal(t, RunStatusFailed, report.Run.Status)
	assert.NotEmpty(t, report.Run.Error)

	data, err := os.ReadFile(filepath.Join(dir, "runs", report.Run.ID+".json"))
	require.NoError(t, err)
	var manifest RunSnapshot
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, RunStatusFailed, manifest.Status)

	_, err = os.Stat(filepath.Join(dir, "taxonomy.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestTaxonomyBuilder_FromStored(t *testing.T) {
	ctx := context.Background()
	artifacts, _ := newTestArtifacts(t)
	b := NewTaxonomyBuilder(themeModel(), artifacts)

	_, _, err := b.FromStored(ctx, false)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, artifacts.SaveCanonicalSet(ctx, models.CohortVP, models.CanonicalSet{"A": {Summary: "vp"}}))
	require.NoError(t, artifacts.SaveCanonicalSet(ctx, models.CohortNonVP, models.CanonicalSet{"A": {Summary: "non"}, "B": {Summary: "b"}}))

	tax, diff, err := b.FromStored(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, models.Taxonomy{"A": "vp", "B": "b"}, tax)
	assert.Contains(t, diff, "Leadership")
}

func TestClusterStored(t *testing.T) {
	ctx := context.Background()
	artifacts, _ := newTestArtifacts(t)
	cl := NewClusterer(themeModel(), artifacts, nil)
	emp := employee(4, true)

	_, err := cl.ClusterStored(ctx, emp)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, artifacts.SaveSignals(ctx, 4, models.SignalMap{"0": {"1": {"ownership"}}}))
	set, err := cl.ClusterStored(ctx, emp)
	require.NoError(t, err)
	assert.Equal(t, []string{"Theme ownership"}, set.Names())
}
