package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/promosignal/internal/llm"
	"github.com/raphaelgruber/promosignal/internal/metrics"
	"github.com/raphaelgruber/promosignal/internal/models"
	"github.com/raphaelgruber/promosignal/internal/parser"
	"github.com/raphaelgruber/promosignal/internal/store"
)

// Clusterer groups one employee's phrases into themes.
type Clusterer struct {
	gen       Generator
	artifacts *store.Artifacts
	metrics   *metrics.Collector
}

// NewClusterer creates a clusterer. The collector may be nil.
func NewClusterer(gen Generator, artifacts *store.Artifacts, mc *metrics.Collector) *Clusterer {
	return &Clusterer{gen: gen, artifacts: artifacts, metrics: mc}
}

// Cluster groups phrases into a ClusterSet and persists it under the
// employee's cohort. An empty phrase set yields an empty set without a model
// call. Malformed model output yields, and persists, an empty set. A failed
// model call returns an empty set without persisting, so a resumed run
// retries the employee.
func (c *Clusterer) Cluster(ctx context.Context, employeeID int, cohort models.Cohort, phrases []string) (models.ClusterSet, error) {
	start := time.Now()
	log := slog.With("employee", employeeID, "cohort", cohort.Slug())

	set := models.ClusterSet{}
	if len(phrases) > 0 {
		raw, err := c.gen.Generate(ctx, llm.ClusterPrompt(phrases))
		if err != nil {
			if errors.Is(err, llm.ErrFatalAPI) || ctx.Err() != nil {
				return nil, fmt.Errorf("cluster employee %d: %w", employeeID, err)
			}
			log.Warn("clustering call failed", "error", err)
			return set, nil
		}

		parsed, err := parseClusterSet(raw, phrases, log)
		switch {
		case errors.Is(err, parser.ErrMalformedResponse):
			log.Warn("discarding malformed clustering output", "error", err)
		case err != nil:
			return nil, err
		default:
			set = parsed
		}
	}

	if err := c.artifacts.SaveClusterSet(ctx, cohort, employeeID, set); err != nil {
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.RecordTiming(metrics.OpClustering, time.Since(start))
	}
	log.Info("clustered phrases", "phrases", len(phrases), "clusters", len(set))
	return set, nil
}

// ClusterStored clusters the employee from previously persisted signals.
func (c *Clusterer) ClusterStored(ctx context.Context, emp models.Employee) (models.ClusterSet, error) {
	signals, err := c.artifacts.LoadSignals(ctx, emp.ID)
	if err != nil {
		return nil, fmt.Errorf("load signals for employee %d: %w", emp.ID, err)
	}
	return c.Cluster(ctx, emp.ID, emp.Cohort(), signals.Phrases())
}
