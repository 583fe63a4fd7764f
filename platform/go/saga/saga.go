// Package saga runs multi-step operations that span more than one backend
// (identity provider, database, blob storage) and undoes completed steps when
// a later one fails.
package saga

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/requesttrace"
)

// Step is one unit of a saga. Compensate is optional; a completed step without
// it leaves the saga in OutcomeCleanupRequired when a later step fails.
type Step struct {
	Name       string
	Do         func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Outcome summarises how a saga ended.
type Outcome string

const (
	OutcomeCompleted       Outcome = "completed"
	OutcomeFailed          Outcome = "failed"
	OutcomeCompensated     Outcome = "compensated"
	OutcomeCleanupRequired Outcome = "cleanup_required"
)

// Result reports the saga outcome and the step that failed, if any.
type Result struct {
	Outcome       Outcome
	FailedStep    string
	Cause         error
	Completed     []string
	Uncompensated []string
}

// Err returns nil for a completed saga and a *Error otherwise.
func (r Result) Err() error {
	if r.Outcome == OutcomeCompleted {
		return nil
	}
	return &Error{Result: r}
}

// Error wraps the failing step's error together with the saga outcome.
type Error struct {
	Result Result
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("saga step %q failed (%s)", e.Result.FailedStep, e.Result.Outcome)
	if e.Result.Cause != nil {
		msg += ": " + e.Result.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Result.Cause }

// NeedsCleanup reports whether err is a saga error that left partial state behind.
func NeedsCleanup(err error) bool {
	var sagaErr *Error
	return errors.As(err, &sagaErr) && sagaErr.Result.Outcome == OutcomeCleanupRequired
}

// Run executes steps in order. On the first failure the completed steps are
// compensated in reverse order. Compensation runs on a context detached from
// cancellation so a cancelled request still cleans up.
func Run(ctx context.Context, logger *zap.Logger, steps ...Step) Result {
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit, ok := requesttrace.FromContext(ctx); ok {
		logger = logger.With(audit.Fields()...)
	}

	completed := make([]Step, 0, len(steps))
	for _, step := range steps {
		if err := step.Do(ctx); err != nil {
			result := Result{FailedStep: step.Name, Cause: err, Completed: names(completed)}
			if len(completed) == 0 {
				result.Outcome = OutcomeFailed
				return result
			}

			result.Uncompensated = compensate(context.WithoutCancel(ctx), logger, completed)
			if len(result.Uncompensated) == 0 {
				result.Outcome = OutcomeCompensated
			} else {
				result.Outcome = OutcomeCleanupRequired
				logger.Error("saga left partial state",
					zap.String("failed_step", step.Name),
					zap.Strings("uncompensated", result.Uncompensated),
					zap.Error(err),
				)
			}
			return result
		}
		completed = append(completed, step)
	}

	return Result{Outcome: OutcomeCompleted, Completed: names(completed)}
}

func compensate(ctx context.Context, logger *zap.Logger, completed []Step) []string {
	var failed []string
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			failed = append(failed, step.Name)
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			logger.Warn("saga compensation failed", zap.String("step", step.Name), zap.Error(err))
			failed = append(failed, step.Name)
		}
	}
	return failed
}

func names(steps []Step) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Name)
	}
	return out
}
