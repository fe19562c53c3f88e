package stage

import (
	"errors"
	"fmt"
	"strings"
)

// Graph construction errors.
var (
	ErrInvalidGraph = errors.New("invalid stage graph")
	ErrCycle        = errors.New("stage dependency cycle")
)

// GraphError wraps a validation failure with detail.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(path []string) error {
	return &GraphError{Kind: ErrCycle, Msg: strings.Join(path, " -> ")}
}

// StepError reports the step that failed during Run.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("stage %s: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }
