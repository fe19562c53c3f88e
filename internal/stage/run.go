package stage

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Run executes the graph level by level. Steps within a level run
// concurrently, at most maxParallel at a time (unbounded when <= 0). The
// first failing step cancels its siblings and stops the run; the returned
// error is a *StepError.
func (g *Graph) Run(ctx context.Context, maxParallel int) error {
	for depth, level := range g.Levels() {
		eg, egCtx := errgroup.WithContext(ctx)
		if maxParallel > 0 {
			eg.SetLimit(maxParallel)
		}

		for _, name := range level {
			step := g.steps[g.index[name]]
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return &StepError{Step: step.Name, Err: err}
				}
				start := time.Now()
				slog.Debug("stage started", "stage", step.Name, "level", depth)
				if err := step.Run(egCtx); err != nil {
					return &StepError{Step: step.Name, Err: err}
				}
				slog.Info("stage complete", "stage", step.Name, "duration", time.Since(start).Round(time.Millisecond))
				return nil
			})
		}

		if err := eg.Wait(); err != nil {
			return err
		}
	}
	return nil
}
