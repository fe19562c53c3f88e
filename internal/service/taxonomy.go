package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/promosignal/internal/llm"
	"github.com/raphaelgruber/promosignal/internal/models"
	"github.com/raphaelgruber/promosignal/internal/parser"
	"github.com/raphaelgruber/promosignal/internal/store"
)

// BuildTaxonomy merges the canonical sets of both cohorts into one
// name-to-summary map. VP entries are visited first, each set in sorted name
// order, and the first summary seen for a name wins.
func BuildTaxonomy(vp, nonVP models.CanonicalSet) models.Taxonomy {
	out := make(models.Taxonomy, len(vp)+len(nonVP))
	for _, set := range []models.CanonicalSet{vp, nonVP} {
		for _, name := range set.Names() {
			if _, ok := out[name]; ok {
				continue
			}
			out[name] = set[name].Summary
		}
	}
	return out
}

// TaxonomyBuilder produces the merged taxonomy and the optional
// treatment/control comparison.
type TaxonomyBuilder struct {
	gen       Generator
	artifacts *store.Artifacts
}

// NewTaxonomyBuilder creates a builder. gen is only used by Difference and
// may be nil when comparisons are disabled.
func NewTaxonomyBuilder(gen Generator, artifacts *store.Artifacts) *TaxonomyBuilder {
	return &TaxonomyBuilder{gen: gen, artifacts: artifacts}
}

// Build merges the cohorts with BuildTaxonomy and persists the result.
func (b *TaxonomyBuilder) Build(ctx context.Context, vp, nonVP models.CanonicalSet) (models.Taxonomy, error) {
	t := BuildTaxonomy(vp, nonVP)
	if err := b.artifacts.SaveTaxonomy(ctx, t); err != nil {
		return nil, err
	}
	slog.Info("built taxonomy", "vp", len(vp), "non_vp", len(nonVP), "categories", len(t))
	return t, nil
}

// Difference asks the model which themes are shared, treatment-only or
// control-only, and persists the result. Malformed output or a failed call
// yields an empty comparison.
func (b *TaxonomyBuilder) Difference(ctx context.Context, vp, nonVP models.CanonicalSet) (models.Difference, error) {
	if b.gen == nil {
		return nil, errors.New("difference requires a model")
	}

	diff := models.Difference{}
	if len(vp) > 0 || len(nonVP) > 0 {
		raw, err := b.gen.Generate(ctx, llm.DifferencePrompt(vp.Names(), nonVP.Names()))
		if err != nil {
			if errors.Is(err, llm.ErrFatalAPI) || ctx.Err() != nil {
				return nil, fmt.Errorf("difference: %w", err)
			}
			slog.Warn("difference call failed", "error", err)
		} else {
			parsed, err := parseDifference(raw, slog.Default())
			switch {
			case errors.Is(err, parser.ErrMalformedResponse):
				slog.Warn("discarding malformed difference output", "error", err)
			case err != nil:
				return nil, err
			default:
				diff = parsed
			}
		}
	}

	if err := b.artifacts.SaveDifference(ctx, diff); err != nil {
		return nil, err
	}
	slog.Info("built treatment/control difference", "categories", len(diff))
	return diff, nil
}

// FromStored builds the taxonomy from the persisted canonical sets of both
// cohorts, and the comparison when withDifference is set.
func (b *TaxonomyBuilder) FromStored(ctx context.Context, withDifference bool) (models.Taxonomy, models.Difference, error) {
	vp, err := b.artifacts.LoadCanonicalSet(ctx, models.CohortVP)
	if err != nil {
		return nil, nil, fmt.Errorf("load vp patterns: %w", err)
	}
	nonVP, err := b.artifacts.LoadCanonicalSet(ctx, models.CohortNonVP)
	if err != nil {
		return nil, nil, fmt.Errorf("load non-vp patterns: %w", err)
	}

	t, err := b.Build(ctx, vp, nonVP)
	if err != nil {
		return nil, nil, err
	}
	if !withDifference {
		return t, nil, nil
	}
	d, err := b.Difference(ctx, vp, nonVP)
	if err != nil {
		return nil, nil, err
	}
	return t, d, nil
}
