package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/raphaelgruber/promosignal/internal/metrics"
	"github.com/raphaelgruber/promosignal/internal/models"
)

// Backend stores raw artifact bytes.
type Backend interface {
	Put(ctx context.Context, key Key, data []byte) error
	// Get returns ErrNotFound when the artifact does not exist.
	Get(ctx context.Context, key Key) ([]byte, error)
	// ListClusters returns the employee IDs with a cluster set in cohort,
	// in ascending order.
	ListClusters(ctx context.Context, cohort models.Cohort) ([]int, error)
}

// Artifacts encodes pipeline values and writes them through a Backend.
// JSON output is indented with sorted map keys, so identical values produce
// identical bytes.
type Artifacts struct {
	backend Backend
	metrics *metrics.Collector
}

// NewArtifacts creates the typed artifact store. The collector may be nil.
func NewArtifacts(backend Backend, mc *metrics.Collector) *Artifacts {
	return &Artifacts{backend: backend, metrics: mc}
}

// SaveChunks writes chunk texts as JSON Lines, one JSON string per line.
func (a *Artifacts) SaveChunks(ctx context.Context, employeeID int, chunks []string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, c := range chunks {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("encode chunk: %w", err)
		}
	}
	return a.put(ctx, ChunksKey(employeeID), buf.Bytes())
}

// LoadChunks reads the chunk texts written by SaveChunks.
func (a *Artifacts) LoadChunks(ctx context.Context, employeeID int) ([]string, error) {
	data, err := a.backend.Get(ctx, ChunksKey(employeeID))
	if err != nil {
		return nil, err
	}
	var chunks []string
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var c string
		if err := dec.Decode(&c); err != nil {
			return nil, fmt.Errorf("decode chunks for employee %d: %w", employeeID, err)
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// SaveSignals writes an employee's SignalMap.
func (a *Artifacts) SaveSignals(ctx context.Context, employeeID int, signals models.SignalMap) error {
	return a.putJSON(ctx, SignalsKey(employeeID), nonNil(signals))
}

// LoadSignals reads an employee's SignalMap.
func (a *Artifacts) LoadSignals(ctx context.Context, employeeID int) (models.SignalMap, error) {
	var m models.SignalMap
	if err := a.getJSON(ctx, SignalsKey(employeeID), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// SaveClusterSet writes an employee's cluster set under its cohort.
func (a *Artifacts) SaveClusterSet(ctx context.Context, cohort models.Cohort, employeeID int, set models.ClusterSet) error {
	return a.putJSON(ctx, ClustersKey(cohort, employeeID), nonNil(set))
}

// HasClusterSet reports whether a cluster set exists for the employee.
func (a *Artifacts) HasClusterSet(ctx context.Context, cohort models.Cohort, employeeID int) (bool, error) {
	_, err := a.backend.Get(ctx, ClustersKey(cohort, employeeID))
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

// LoadClusterSet reads one employee's cluster set.
func (a *Artifacts) LoadClusterSet(ctx context.Context, cohort models.Cohort, employeeID int) (models.ClusterSet, error) {
	var s models.ClusterSet
	if err := a.getJSON(ctx, ClustersKey(cohort, employeeID), &s); err != nil {
		return nil, err
	}
	return s, nil
}

// ListClusterSets returns the employee IDs that have a cluster set in cohort.
func (a *Artifacts) ListClusterSets(ctx context.Context, cohort models.Cohort) ([]int, error) {
	return a.backend.ListClusters(ctx, cohort)
}

// SaveCanonicalSet writes a cohort's deduplicated pattern set.
func (a *Artifacts) SaveCanonicalSet(ctx context.Context, cohort models.Cohort, set models.CanonicalSet) error {
	return a.putJSON(ctx, PatternsKey(cohort), nonNil(set))
}

// LoadCanonicalSet reads a cohort's deduplicated pattern set.
func (a *Artifacts) LoadCanonicalSet(ctx context.Context, cohort models.Cohort) (models.CanonicalSet, error) {
	var s models.CanonicalSet
	if err := a.getJSON(ctx, PatternsKey(cohort), &s); err != nil {
		return nil, err
	}
	return s, nil
}

// SaveTaxonomy writes the merged taxonomy.
func (a *Artifacts) SaveTaxonomy(ctx context.Context, t models.Taxonomy) error {
	return a.putJSON(ctx, TaxonomyKey(), nonNil(t))
}

// LoadTaxonomy reads the merged taxonomy.
func (a *Artifacts) LoadTaxonomy(ctx context.Context) (models.Taxonomy, error) {
	var t models.Taxonomy
	if err := a.getJSON(ctx, TaxonomyKey(), &t); err != nil {
		return nil, err
	}
	return t, nil
}

// SaveDifference writes the treatment/control comparison.
func (a *Artifacts) SaveDifference(ctx context.Context, d models.Difference) error {
	return a.putJSON(ctx, DifferenceKey(), nonNil(d))
}

// SaveRun writes a run manifest.
func (a *Artifacts) SaveRun(ctx context.Context, runID string, manifest any) error {
	return a.putJSON(ctx, RunKey(runID), manifest)
}

func (a *Artifacts) putJSON(ctx context.Context, key Key, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return a.put(ctx, key, append(data, '\n'))
}

func (a *Artifacts) put(ctx context.Context, key Key, data []byte) error {
	start := time.Now()
	if err := a.backend.Put(ctx, key, data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if a.metrics != nil {
		a.metrics.RecordTiming(metrics.OpArtifactWrite, time.Since(start))
	}
	return nil
}

func (a *Artifacts) getJSON(ctx context.Context, key Key, v any) error {
	data, err := a.backend.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// nonNil keeps empty results serialized as {} rather than null.
func nonNil[M ~map[K]V, K comparable, V any](m M) M {
	if m == nil {
		return M{}
	}
	return m
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
