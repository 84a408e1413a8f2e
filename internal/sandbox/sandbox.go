package sandbox

import (
	"context"
	"time"
)

// ExecOpts describes a script execution request.
type ExecOpts struct {
	Code string // Script source
}

// Result is the outcome of one run. It is never modified after Execute
// returns it.
type Result struct {
	Output          []string  `json:"output"`
	Errors          []string  `json:"errors"`
	Timestamp       time.Time `json:"timestamp"`
	ExecutionTimeMs int64     `json:"executionTime"`
}

// OK reports whether the run produced no errors.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// Sandbox runs script text in an isolated environment.
type Sandbox interface {
	Exec(ctx context.Context, opts ExecOpts) (*Result, error)
}
