package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/raphaelgruber/promosignal/internal/llm"
	"github.com/raphaelgruber/promosignal/internal/metrics"
	"github.com/raphaelgruber/promosignal/internal/models"
	"github.com/raphaelgruber/promosignal/internal/parser"
	"github.com/raphaelgruber/promosignal/internal/store"
)

// Deduplicator merges a cohort's cluster names into canonical clusters.
type Deduplicator struct {
	gen       Generator
	artifacts *store.Artifacts
	metrics   *metrics.Collector
}

// NewDeduplicator creates a deduplicator. The collector may be nil.
func NewDeduplicator(gen Generator, artifacts *store.Artifacts, mc *metrics.Collector) *Deduplicator {
	return &Deduplicator{gen: gen, artifacts: artifacts, metrics: mc}
}

// CollectNames returns the sorted union of cluster names across every
// persisted cluster set of the cohort. Unreadable sets are logged and skipped.
func (d *Deduplicator) CollectNames(ctx context.Context, cohort models.Cohort) ([]string, error) {
	ids, err := d.artifacts.ListClusterSets(ctx, cohort)
	if err != nil {
		return nil, fmt.Errorf("collect cluster names: %w", err)
	}

	seen := make(map[string]struct{})
	var names []string
	for _, id := range ids {
		set, err := d.artifacts.LoadClusterSet(ctx, cohort, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("skipping unreadable cluster set", "employee", id, "cohort", cohort.Slug(), "error", err)
			continue
		}
		for _, name := range set.Names() {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// Deduplicate groups equivalent names into canonical clusters and persists
// the result for the cohort. The returned set partitions names: aliases the
// model invented are dropped, a name claimed twice stays with the first
// group, and names the model left out become their own group. Malformed
// output or a failed call yields an empty set.
func (d *Deduplicator) Deduplicate(ctx context.Context, names []string, cohort models.Cohort) (models.CanonicalSet, error) {
	start := time.Now()
	log := slog.With("cohort", cohort.Slug())
	names = uniqueSorted(names)

	set := models.CanonicalSet{}
	if len(names) > 0 {
		raw, err := d.gen.Generate(ctx, llm.DedupePrompt(names))
		if err != nil {
			if errors.Is(err, llm.ErrFatalAPI) || ctx.Err() != nil {
				return nil, fmt.Errorf("dedupe %s: %w", cohort.Slug(), err)
			}
			log.Warn("dedupe call failed", "error", err)
		} else {
			parsed, err := parseCanonicalSet(raw, log)
			switch {
			case errors.Is(err, parser.ErrMalformedResponse):
				log.Warn("discarding malformed dedupe output", "error", err)
			case err != nil:
				return nil, err
			default:
				set = reconcileAliases(parsed, names, log)
			}
		}
	}

	if err := d.artifacts.SaveCanonicalSet(ctx, cohort, set); err != nil {
		return nil, err
	}

	if d.metrics != nil {
		d.metrics.RecordTiming(metrics.OpDedupe, time.Since(start))
	}
	log.Info("deduplicated cluster names", "names", len(names), "canonical", len(set))
	return set, nil
}

// DedupeCohort collects the cohort's cluster names and deduplicates them.
func (d *Deduplicator) DedupeCohort(ctx context.Context, cohort models.Cohort) (models.CanonicalSet, error) {
	names, err := d.CollectNames(ctx, cohort)
	if err != nil {
		return nil, err
	}
	return d.Deduplicate(ctx, names, cohort)
}

// reconcileAliases repairs set so that it partitions names.
func reconcileAliases(set models.CanonicalSet, names []string, log *slog.Logger) models.CanonicalSet {
	report := set.CheckPartition(names)
	if report.OK() {
		return set
	}
	log.Warn("repairing dedupe partition",
		"missing", report.Missing, "duplicated", report.Duplicated, "unknown", report.Unknown)

	input := make(map[string]bool, len(names))
	for _, n := range names {
		input[n] = true
	}

	out := make(models.CanonicalSet, len(set))
	claimed := make(map[string]bool, len(names))
	for _, canonical := range set.Names() {
		c := set[canonical]
		var aliases []string
		for _, a := range c.Aliases {
			if !input[a] || claimed[a] {
				continue
			}
			claimed[a] = true
			aliases = append(aliases, a)
		}
		if len(aliases) == 0 {
			continue
		}
		out[canonical] = models.CanonicalCluster{Aliases: aliases, Summary: c.Summary}
	}

	for _, n := range names {
		if claimed[n] {
			continue
		}
		claimed[n] = true
		if c, ok := out[n]; ok {
			c.Aliases = append(c.Aliases, n)
			out[n] = c
			continue
		}
		out[n] = models.CanonicalCluster{Aliases: []string{n}}
	}
	return out
}

func uniqueSorted(items []string) []string {
	out := slices.Clone(items)
	slices.Sort(out)
	return slices.Compact(out)
}
