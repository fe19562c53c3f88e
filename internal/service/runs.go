package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the state of a pipeline run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run tracks one pipeline invocation. Its snapshot is persisted as the run
// manifest and drives progress reporting.
type Run struct {
	id        string
	startedAt time.Time

	mu          sync.RWMutex
	status      RunStatus
	stage       string
	progress    int
	total       int
	skipped     int
	warnings    []string
	err         string
	completedAt *time.Time
}

// RunSnapshot is a point-in-time copy of a Run.
type RunSnapshot struct {
	ID          string     `json:"id"`
	Status      RunStatus  `json:"status"`
	Stage       string     `json:"stage,omitempty"`
	Progress    int        `json:"progress"`
	Total       int        `json:"total"`
	Skipped     int        `json:"skipped,omitempty"`
	Warnings    []string   `json:"warnings,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewRun creates a pending run over total employees.
func NewRun(total int) *Run {
	return &Run{
		id:        uuid.New().String()[:8], // Short ID for convenience
		startedAt: time.Now(),
		status:    RunStatusPending,
		total:     total,
	}
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// SetStage marks the run as running the named stage.
func (r *Run) SetStage(stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = RunStatusRunning
	r.stage = stage
}

// Advance records one finished employee and any warnings it produced.
func (r *Run) Advance(skipped bool, warnings ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress++
	if skipped {
		r.skipped++
	}
	r.warnings = append(r.warnings, warnings...)
}

// Complete marks the run as completed.
func (r *Run) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = RunStatusCompleted
	r.stage = ""
	now := time.Now()
	r.completedAt = &now
}

// Fail marks the run as failed with err.
func (r *Run) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = RunStatusFailed
	r.err = err.Error()
	now := time.Now()
	r.completedAt = &now
}

// Snapshot returns a thread-safe copy of run state.
func (r *Run) Snapshot() RunSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RunSnapshot{
		ID:          r.id,
		Status:      r.status,
		Stage:       r.stage,
		Progress:    r.progress,
		Total:       r.total,
		Skipped:     r.skipped,
		Warnings:    append([]string(nil), r.warnings...),
		Error:       r.err,
		StartedAt:   r.startedAt,
		CompletedAt: r.completedAt,
	}
}
