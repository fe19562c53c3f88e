package models

import (
	"maps"
	"slices"
)

// Cluster is a theme grouping within one employee's phrases.
type Cluster struct {
	Phrases     []string `json:"phrases"`
	Description string   `json:"description"`
}

// ClusterSet maps cluster names to clusters for one employee.
type ClusterSet map[string]Cluster

// Names returns the cluster names in sorted order.
func (s ClusterSet) Names() []string {
	return slices.Sorted(maps.Keys(s))
}

// CanonicalCluster groups cluster names that denote the same theme.
type CanonicalCluster struct {
	Aliases []string `json:"aliases"`
	Summary string   `json:"summary"`
}

// CanonicalSet maps canonical names to their alias groups for one cohort.
type CanonicalSet map[string]CanonicalCluster

// Names returns the canonical names in sorted order.
func (s CanonicalSet) Names() []string {
	return slices.Sorted(maps.Keys(s))
}

// PartitionReport describes how a canonical set deviates from partitioning
// a set of input names.
type PartitionReport struct {
	Missing    []string // input names in no alias list
	Duplicated []string // input names in more than one alias list
	Unknown    []string // aliases that are not input names
}

// OK reports whether the set partitions the names exactly.
func (r PartitionReport) OK() bool {
	return len(r.Missing) == 0 && len(r.Duplicated) == 0 && len(r.Unknown) == 0
}

// CheckPartition reports whether every name appears in exactly one alias list
// and no alias falls outside names.
func (s CanonicalSet) CheckPartition(names []string) PartitionReport {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}

	counts := make(map[string]int)
	unknown := make(map[string]struct{})
	for _, canonical := range s.Names() {
		for _, alias := range s[canonical].Aliases {
			if _, ok := want[alias]; !ok {
				unknown[alias] = struct{}{}
				continue
			}
			counts[alias]++
		}
	}

	var r PartitionReport
	for _, n := range names {
		switch c := counts[n]; {
		case c == 0:
			r.Missing = append(r.Missing, n)
		case c > 1:
			r.Duplicated = append(r.Duplicated, n)
		}
	}
	r.Unknown = slices.Sorted(maps.Keys(unknown))
	slices.Sort(r.Missing)
	slices.Sort(r.Duplicated)
	return r
}
