package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/promosignal/internal/models"
	"github.com/raphaelgruber/promosignal/internal/stage"
	"github.com/raphaelgruber/promosignal/internal/store"
	"golang.org/x/sync/errgroup"
)

// Stage names of the pipeline graph.
const (
	StageSignals     = "signals"
	StageDedupeVP    = "dedupe-vp"
	StageDedupeNonVP = "dedupe-non-vp"
	StageTaxonomy    = "taxonomy"
	StageDifference  = "difference"
)

// PipelineOptions configures a full run.
type PipelineOptions struct {
	// EmployeeConcurrency bounds how many employees are processed at once
	// (default 1)
	EmployeeConcurrency int
	// Resume skips employees whose cluster set is already persisted
	Resume bool
	// Difference also builds the treatment/control comparison
	Difference bool
	// OnProgress is called after every stage change and finished employee
	OnProgress func(RunSnapshot)
}

// RunReport holds the outputs of a full run.
type RunReport struct {
	Run        RunSnapshot
	Patterns   map[models.Cohort]models.CanonicalSet
	Taxonomy   models.Taxonomy
	Difference models.Difference
}

// Pipeline wires the stages into one stage graph.
type Pipeline struct {
	extractor *Extractor
	clusterer *Clusterer
	dedupe    *Deduplicator
	taxonomy  *TaxonomyBuilder
	artifacts *store.Artifacts
	opts      PipelineOptions
}

// NewPipeline creates a pipeline from its stages.
func NewPipeline(ex *Extractor, cl *Clusterer, dd *Deduplicator, tb *TaxonomyBuilder, artifacts *store.Artifacts, opts PipelineOptions) *Pipeline {
	if opts.EmployeeConcurrency <= 0 {
		opts.EmployeeConcurrency = 1
	}
	return &Pipeline{extractor: ex, clusterer: cl, dedupe: dd, taxonomy: tb, artifacts: artifacts, opts: opts}
}

// Run processes every employee, deduplicates both cohorts, and builds the
// taxonomy (and the comparison when enabled). The run manifest is persisted
// whether the run succeeds or fails.
func (p *Pipeline) Run(ctx context.Context, employees []models.Employee) (*RunReport, error) {
	run := NewRun(len(employees))
	report := &RunReport{Patterns: make(map[models.Cohort]models.CanonicalSet, 2)}
	slog.Info("pipeline run started", "run_id", run.ID(), "employees", len(employees))

	var vp, nonVP models.CanonicalSet
	steps := []stage.Step{
		{
			Name: StageSignals,
			Run: func(ctx context.Context) error {
				p.enter(run, StageSignals)
				return p.processEmployees(ctx, run, employees)
			},
		},
		{
			Name:      StageDedupeVP,
			DependsOn: []string{StageSignals},
			Run: func(ctx context.Context) (err error) {
				p.enter(run, StageDedupeVP)
				vp, err = p.DedupeCohort(ctx, models.CohortVP)
				return err
			},
		},
		{
			Name:      StageDedupeNonVP,
			DependsOn: []string{StageSignals},
			Run: func(ctx context.Context) (err error) {
				p.enter(run, StageDedupeNonVP)
				nonVP, err = p.DedupeCohort(ctx, models.CohortNonVP)
				return err
			},
		},
		{
			Name:      StageTaxonomy,
			DependsOn: []string{StageDedupeVP, StageDedupeNonVP},
			Run: func(ctx context.Context) (err error) {
				p.enter(run, StageTaxonomy)
				report.Taxonomy, err = p.taxonomy.Build(ctx, vp, nonVP)
				return err
			},
		},
	}
	if p.opts.Difference {
		steps = append(steps, stage.Step{
			Name:      StageDifference,
			DependsOn: []string{StageDedupeVP, StageDedupeNonVP},
			Run: func(ctx context.Context) (err error) {
				p.enter(run, StageDifference)
				report.Difference, err = p.taxonomy.Difference(ctx, vp, nonVP)
				return err
			},
		})
	}

	graph, err := stage.NewGraph(steps)
	if err != nil {
		return nil, err
	}

	runErr := graph.Run(ctx, 2)
	if runErr != nil {
		run.Fail(runErr)
	} else {
		run.Complete()
	}
	report.Patterns[models.CohortVP] = vp
	report.Patterns[models.CohortNonVP] = nonVP
	report.Run = run.Snapshot()
	p.notify(run)

	// The manifest is written even when ctx is cancelled
	if err := p.artifacts.SaveRun(context.WithoutCancel(ctx), run.ID(), report.Run); err != nil {
		slog.Warn("failed to persist run manifest", "run_id", run.ID(), "error", err)
	}

	if runErr != nil {
		slog.Error("pipeline run failed", "run_id", run.ID(), "error", runErr)
		return report, runErr
	}
	slog.Info("pipeline run complete", "run_id", run.ID(), "warnings", len(report.Run.Warnings), "categories", len(report.Taxonomy))
	return report, nil
}

// processEmployees runs ProcessEmployee for every employee with bounded
// concurrency. Each employee writes only its own artifacts.
func (p *Pipeline) processEmployees(ctx context.Context, run *Run, employees []models.Employee) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.opts.EmployeeConcurrency)

	for _, emp := range employees {
		eg.Go(func() error {
			if p.opts.Resume {
				done, err := p.artifacts.HasClusterSet(egCtx, emp.Cohort(), emp.ID)
				if err != nil {
					return err
				}
				if done {
					slog.Info("skipping employee with existing cluster set", "employee", emp.ID)
					run.Advance(true)
					p.notify(run)
					return nil
				}
			}

			warnings, err := p.ProcessEmployee(egCtx, emp)
			if err != nil {
				return err
			}
			run.Advance(false, warnings...)
			p.notify(run)
			return nil
		})
	}
	return eg.Wait()
}

// ProcessEmployee extracts the employee's signals and clusters the resulting
// phrase set. It returns the recoverable per-chunk failures as warnings. When
// every chunk failed, no cluster set is written so that a resumed run
// retries the employee.
func (p *Pipeline) ProcessEmployee(ctx context.Context, emp models.Employee) ([]string, error) {
	res, err := p.extractor.Extract(ctx, emp)
	if err != nil {
		return nil, err
	}
	if res.AllFailed() {
		slog.Warn("every chunk failed, leaving employee unclustered", "employee", emp.ID, "chunks", res.Chunks)
		return append(res.Errors, fmt.Sprintf("employee %d: all %d chunks failed, clustering skipped", emp.ID, res.Chunks)), nil
	}
	if _, err := p.clusterer.Cluster(ctx, emp.ID, emp.Cohort(), res.Signals.Phrases()); err != nil {
		return nil, err
	}
	return res.Errors, nil
}

// DedupeCohort collects the cohort's cluster names and deduplicates them.
func (p *Pipeline) DedupeCohort(ctx context.Context, cohort models.Cohort) (models.CanonicalSet, error) {
	return p.dedupe.DedupeCohort(ctx, cohort)
}

func (p *Pipeline) enter(run *Run, name string) {
	run.SetStage(name)
	p.notify(run)
}

func (p *Pipeline) notify(run *Run) {
	if p.opts.OnProgress != nil {
		p.opts.OnProgress(run.Snapshot())
	}
}
