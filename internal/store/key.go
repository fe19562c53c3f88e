// Package store persists pipeline artifacts under stable, human-readable keys.
package store

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strconv"

	"github.com/raphaelgruber/promosignal/internal/models"
)

// ErrNotFound is returned when an artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// Kind identifies an artifact type.
type Kind string

// Artifact kinds.
const (
	KindChunks     Kind = "chunks"
	KindSignals    Kind = "signals"
	KindClusters   Kind = "clusters"
	KindPatterns   Kind = "patterns"
	KindTaxonomy   Kind = "taxonomy"
	KindDifference Kind = "difference"
	KindRun        Kind = "run"
)

// Key addresses one artifact. Only the fields relevant to Kind are used.
type Key struct {
	Kind       Kind
	EmployeeID int
	Cohort     models.Cohort
	RunID      string
}

// ChunksKey addresses an employee's persisted chunks.
func ChunksKey(employeeID int) Key { return Key{Kind: KindChunks, EmployeeID: employeeID} }

// SignalsKey addresses an employee's SignalMap.
func SignalsKey(employeeID int) Key { return Key{Kind: KindSignals, EmployeeID: employeeID} }

// ClustersKey addresses an employee's cluster set within a cohort.
func ClustersKey(cohort models.Cohort, employeeID int) Key {
	return Key{Kind: KindClusters, EmployeeID: employeeID, Cohort: cohort}
}

// PatternsKey addresses a cohort's canonical set.
func PatternsKey(cohort models.Cohort) Key { return Key{Kind: KindPatterns, Cohort: cohort} }

// TaxonomyKey addresses the merged taxonomy.
func TaxonomyKey() Key { return Key{Kind: KindTaxonomy} }

// DifferenceKey addresses the treatment/control comparison.
func DifferenceKey() Key { return Key{Kind: KindDifference} }

// RunKey addresses a run manifest.
func RunKey(runID string) Key { return Key{Kind: KindRun, RunID: runID} }

// Path returns the slash-separated location of the artifact relative to the
// output root.
func (k Key) Path() (string, error) {
	switch k.Kind {
	case KindChunks:
		return fmt.Sprintf("employee_%d_award_chunks.jsonl", k.EmployeeID), nil
	case KindSignals:
		return fmt.Sprintf("employee_%d_keywords.json", k.EmployeeID), nil
	case KindClusters:
		return path.Join(k.Cohort.String(), fmt.Sprintf("employee_%d_clustering_result.json", k.EmployeeID)), nil
	case KindPatterns:
		return path.Join(k.Cohort.String(), "pattern_results.json"), nil
	case KindTaxonomy:
		return "taxonomy.json", nil
	case KindDifference:
		return "taxonomy_diff.json", nil
	case KindRun:
		if k.RunID == "" {
			return "", errors.New("run key without run id")
		}
		return path.Join("runs", k.RunID+".json"), nil
	default:
		return "", fmt.Errorf("unknown artifact kind %q", k.Kind)
	}
}

// String returns the artifact path, or the kind when the key is invalid.
func (k Key) String() string {
	p, err := k.Path()
	if err != nil {
		return string(k.Kind)
	}
	return p
}

var clusterFileRe = regexp.MustCompile(`^employee_(\d+)_clustering_result\.json$`)

// ParseClusterFile extracts the employee ID from a cluster result file name.
func ParseClusterFile(name string) (int, bool) {
	m := clusterFileRe.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}
