// Package oracle runs one solve of the energy-system model for a given
// parameter set and returns its result record.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/MikeSquared-Agency/Pareto/internal/scenario"
)

// ResultFile is the record an oracle run leaves in its output directory.
const ResultFile = "last_run.json"

// ParamSnapshotFile is the copy of the rendered data file kept in each run
// directory.
const ParamSnapshotFile = "params.dat"

var (
	// ErrInfeasible means the run finished but produced no result: the model
	// had no feasible solution under the given parameters.
	ErrInfeasible = errors.New("oracle: infeasible")
	// ErrMalformedResult means a result record exists but cannot be decoded.
	ErrMalformedResult = errors.New("oracle: malformed result record")
)

// ExecError reports an oracle run that failed outright.
type ExecError struct {
	Dir      string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("oracle run in %s failed (exit %d)", e.Dir, e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }

// Executor runs the oracle once. dir must exist and be unique to this run.
// Implementations return ErrInfeasible when no result is produced,
// *ExecError when the run itself fails, and ErrMalformedResult when the
// result cannot be read.
type Executor interface {
	Execute(ctx context.Context, ps scenario.ParameterSet, dir string) (*Result, error)
}

// Outcome classifies an Execute error for metrics and events.
func Outcome(err error) string {
	var execErr *ExecError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInfeasible):
		return "infeasible"
	case errors.Is(err, ErrMalformedResult):
		return "malformed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.As(err, &execErr):
		return "failed"
	default:
		return "error"
	}
}
