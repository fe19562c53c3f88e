// Package service implements the stages of the award signal pipeline:
// extraction, per-employee clustering, cohort deduplication and taxonomy
// construction.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raphaelgruber/promosignal/internal/llm"
	"github.com/raphaelgruber/promosignal/internal/metrics"
	"github.com/raphaelgruber/promosignal/internal/models"
	"github.com/raphaelgruber/promosignal/internal/parser"
	"github.com/raphaelgruber/promosignal/internal/store"
)

// Generator produces a completion for a prompt. *llm.Model implements it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ExtractorOptions configures signal extraction.
type ExtractorOptions struct {
	// MaxTokens is the chunk budget (default 40000)
	MaxTokens int
	// Concurrency sets the number of chunk workers (default 5)
	Concurrency int
}

// ExtractResult summarizes signal extraction for one employee.
type ExtractResult struct {
	EmployeeID   int
	Signals      models.SignalMap
	Chunks       int
	FailedChunks int
	Errors       []string
}

// AllFailed reports whether the employee had chunks and none of them
// produced a usable result.
func (r *ExtractResult) AllFailed() bool {
	return r.Chunks > 0 && r.FailedChunks == r.Chunks
}

// Extractor turns an employee's awards into a SignalMap.
type Extractor struct {
	gen       Generator
	artifacts *store.Artifacts
	counter   parser.TokenCounter
	opts      ExtractorOptions
	metrics   *metrics.Collector
}

// NewExtractor creates an extractor. The collector may be nil.
func NewExtractor(gen Generator, artifacts *store.Artifacts, counter parser.TokenCounter, opts ExtractorOptions, mc *metrics.Collector) *Extractor {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 40000
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	return &Extractor{gen: gen, artifacts: artifacts, counter: counter, opts: opts, metrics: mc}
}

// Chunk splits the employee's awards into token-bounded chunks and persists
// them before returning.
func (e *Extractor) Chunk(ctx context.Context, emp models.Employee) ([]parser.AwardChunk, error) {
	chunks, err := parser.ChunkAwards(emp.Awards, e.opts.MaxTokens, e.counter)
	if err != nil {
		return nil, fmt.Errorf("chunk employee %d: %w", emp.ID, err)
	}

	for _, c := range chunks {
		if c.Oversize {
			slog.Warn("award exceeds chunk budget, sending it alone",
				"employee", emp.ID, "award_index", c.AwardIndices[0], "tokens", c.Tokens, "max_tokens", e.opts.MaxTokens)
		}
	}

	if err := e.artifacts.SaveChunks(ctx, emp.ID, parser.ChunkTexts(chunks)); err != nil {
		return nil, err
	}

	slog.Debug("chunked awards", "employee", emp.ID, "awards", len(emp.Awards), "chunks", len(chunks))
	return chunks, nil
}

type chunkOutcome struct {
	signals models.SignalMap
	err     error
}

// Extract chunks the employee's awards, runs extraction on every chunk with a
// bounded worker pool and merges the results by award index. A chunk whose
// model call or output fails contributes nothing. Only ErrFatalAPI and
// persistence failures abort the employee.
func (e *Extractor) Extract(ctx context.Context, emp models.Employee) (*ExtractResult, error) {
	start := time.Now()

	chunks, err := e.Chunk(ctx, emp)
	if err != nil {
		return nil, err
	}

	outcomes := make([]chunkOutcome, len(chunks))
	if len(chunks) > 0 {
		e.runWorkers(ctx, emp.ID, chunks, outcomes)
	}

	result := &ExtractResult{EmployeeID: emp.ID, Signals: make(models.SignalMap), Chunks: len(chunks)}
	for pos, o := range outcomes {
		if o.err != nil {
			if errors.Is(o.err, llm.ErrFatalAPI) {
				return nil, fmt.Errorf("extract employee %d: %w", emp.ID, o.err)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			result.FailedChunks++
			result.Errors = append(result.Errors, fmt.Sprintf("employee %d chunk %d: %v", emp.ID, pos, o.err))
			continue
		}
		// Later chunks win on a repeated award index
		if replaced := result.Signals.Merge(o.signals); len(replaced) > 0 {
			slog.Warn("award index returned by more than one chunk", "employee", emp.ID, "chunk", pos, "award_indices", replaced)
		}
	}

	if err := e.artifacts.SaveSignals(ctx, emp.ID, result.Signals); err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.RecordTiming(metrics.OpExtraction, time.Since(start))
	}
	slog.Info("extracted signals",
		"employee", emp.ID,
		"chunks", len(chunks),
		"failed_chunks", result.FailedChunks,
		"awards_with_signals", len(result.Signals),
		"phrases", result.Signals.Count())
	return result, nil
}

// runWorkers fills outcomes[i] for every chunk. A fatal API error cancels the
// remaining work.
func (e *Extractor) runWorkers(ctx context.Context, employeeID int, chunks []parser.AwardChunk, outcomes []chunkOutcome) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	concurrency := min(e.opts.Concurrency, len(chunks))
	var processed atomic.Int32

	workChan := make(chan int, len(chunks))
	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for pos := range workChan {
				if err := ctx.Err(); err != nil {
					outcomes[pos] = chunkOutcome{err: err}
					continue
				}

				n := processed.Add(1)
				slog.Debug("extracting chunk", "worker", workerID, "employee", employeeID,
					"chunk", pos, "progress", fmt.Sprintf("%d/%d", n, len(chunks)))

				outcomes[pos] = e.extractChunk(ctx, employeeID, chunks[pos])
				if errors.Is(outcomes[pos].err, llm.ErrFatalAPI) {
					cancel()
				}
			}
		}(i)
	}

	for pos := range chunks {
		workChan <- pos
	}
	close(workChan)

	wg.Wait()
}

func (e *Extractor) extractChunk(ctx context.Context, employeeID int, chunk parser.AwardChunk) chunkOutcome {
	raw, err := e.gen.Generate(ctx, llm.SignalExtractionPrompt(chunk.Text))
	if err != nil {
		if !errors.Is(err, llm.ErrFatalAPI) && ctx.Err() == nil {
			slog.Warn("signal extraction call failed", "employee", employeeID, "chunk", chunk.Position, "error", err)
		}
		return chunkOutcome{err: err}
	}

	log := slog.With("employee", employeeID, "chunk", chunk.Position)
	signals, err := parseChunkSignals(raw, chunk.AwardIndices, log)
	if err != nil {
		log.Warn("discarding malformed extraction output", "error", err)
		return chunkOutcome{err: err}
	}
	return chunkOutcome{signals: signals}
}
