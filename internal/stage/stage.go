// Package stage runs the per-item work of one build stage concurrently and
// classifies the result under a named failure policy.
package stage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Outcome is the tri-state result of a stage.
type Outcome int

const (
	// Succeeded means every item succeeded.
	Succeeded Outcome = iota
	// Tolerated means some items failed under the BestEffort policy and the
	// pipeline may continue.
	Tolerated
	// Failed means the stage failed and the pipeline must stop.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Tolerated:
		return "tolerated"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Policy decides how item failures affect the outcome of a stage.
type Policy int

const (
	// FailFast fails the stage if any item fails. The stage still waits for
	// every item to settle.
	FailFast Policy = iota
	// BestEffort absorbs item failures; the stage is Tolerated instead of Failed.
	BestEffort
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case BestEffort:
		return "best-effort"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// Result is the outcome of a stage and, unless it Succeeded, the joined
// item errors.
type Result struct {
	Outcome Outcome
	Err     error
}

// OK is a Succeeded result.
func OK() Result { return Result{Outcome: Succeeded} }

// Fail is a Failed result carrying err.
func Fail(err error) Result { return Result{Outcome: Failed, Err: err} }

// Merge combines the results of sequential sub-steps. The worst outcome
// wins and errors are joined.
func Merge(results ...Result) Result {
	merged := OK()
	var errs []error
	for _, r := range results {
		if r.Outcome > merged.Outcome {
			merged.Outcome = r.Outcome
		}
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	merged.Err = errors.Join(errs...)
	return merged
}

// RunAll calls fn for every item in its own goroutine and waits for all of
// them. Item errors are classified by policy. There is no concurrency limit.
func RunAll[T any](ctx context.Context, policy Policy, items []T, fn func(ctx context.Context, item T) error) Result {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, item := range items {
		item := item
		g.Go(func() error {
			if err := fn(ctx, item); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) == 0 {
		return OK()
	}
	err := errors.Join(errs...)
	if policy == BestEffort {
		return Result{Outcome: Tolerated, Err: err}
	}
	return Fail(err)
}
