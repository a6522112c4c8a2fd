package domain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	m "snare.dev/pkg/snare/internal/model"
)

// Job is one unit to scan, optionally graded against an oracle entry.
type Job struct {
	Unit *m.SourceUnit
	Path m.Path
	// Grade enables oracle comparison. A graded job with a nil Oracle fails
	// with a missing-oracle mismatch.
	Grade  bool
	Oracle *m.ExpectedOracle
	// ParseErr is set when the unit could not be read or parsed. The unit
	// is reported with a single malformed-ast finding and never scanned.
	ParseErr error
}

// RunnerOptions configures the worker pool.
type RunnerOptions struct {
	Threads int
	// ScanTimeout bounds the wall-clock time of one unit scan. Zero disables it.
	ScanTimeout time.Duration
}

// Runner scans units concurrently. Units share nothing but the frozen
// registry, so workers never coordinate beyond the pool limit.
type Runner interface {
	Run(ctx context.Context, jobs []Job) ([]m.UnitResult, error)
	Stream(ctx context.Context, jobs <-chan Job) (<-chan m.UnitResult, <-chan error)
}

type runner struct {
	engine     *Engine
	comparator Comparator
	opts       RunnerOptions
}

// NewRunner creates a Runner over an engine and comparator.
func NewRunner(engine *Engine, comparator Comparator, opts RunnerOptions) Runner {
	if opts.Threads <= 0 {
		opts.Threads = 1
	}

	if comparator == nil {
		comparator = NewComparator(m.ModeAtLeast)
	}

	return &runner{engine: engine, comparator: comparator, opts: opts}
}

// Run processes every job and returns results in input order.
func (r *runner) Run(ctx context.Context, jobs []Job) ([]m.UnitResult, error) {
	results := make([]m.UnitResult, len(jobs))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.opts.Threads)

	for i, job := range jobs {
		i, job := i, job
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			results[i] = r.process(groupCtx, job)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("run scans: %w", err)
	}

	return results, nil
}

// Stream processes jobs as they arrive and emits results in completion order.
func (r *runner) Stream(ctx context.Context, jobs <-chan Job) (<-chan m.UnitResult, <-chan error) {
	resultsChannel := make(chan m.UnitResult, r.opts.Threads)
	errorChannel := make(chan error, 1)

	var group errgroup.Group
	group.SetLimit(r.opts.Threads)

	go func() {
		defer close(errorChannel)

		for {
			select {
			case <-ctx.Done():
				for range jobs {
				}

				_ = group.Wait()

				close(resultsChannel)

				errorChannel <- ctx.Err()

				return
			case job, ok := <-jobs:
				if !ok {
					err := group.Wait()

					close(resultsChannel)

					if err != nil {
						errorChannel <- err
					}

					return
				}

				group.Go(func() error {
					result := r.process(ctx, job)

					select {
					case <-ctx.Done():
						return ctx.Err()
					case resultsChannel <- result:
					}

					return nil
				})
			}
		}
	}()

	return resultsChannel, errorChannel
}

func (r *runner) process(ctx context.Context, job Job) m.UnitResult {
	unit := job.Unit

	result := m.UnitResult{
		Unit:    unit.ID,
		Path:    job.Path,
		Dialect: unit.Dialect,
		Hash:    unit.Hash,
	}

	if job.ParseErr != nil {
		result.Findings = []m.Finding{parseFailure(unit.ID, job.ParseErr)}
	} else {
		result.Findings = r.scan(ctx, unit)
	}

	result.Summary = Aggregate(unit.ID, result.Findings)

	if job.Grade {
		verdict := r.comparator.Compare(result.Summary, job.Oracle)
		result.Verdict = &verdict

		if !verdict.Pass {
			slog.Info("Verdict failed", "unit", unit.ID, "mismatches", len(verdict.Mismatches))
		}
	}

	return result
}

// scan runs the engine under the configured budget. A scan that overruns is
// abandoned: its goroutine finishes in the background and its output is
// discarded.
func (r *runner) scan(ctx context.Context, unit *m.SourceUnit) []m.Finding {
	if r.opts.ScanTimeout <= 0 {
		return r.engine.Scan(unit)
	}

	done := make(chan []m.Finding, 1)

	go func() {
		done <- r.engine.Scan(unit)
	}()

	timer := time.NewTimer(r.opts.ScanTimeout)
	defer timer.Stop()

	var span m.Span
	if unit.Root != nil {
		span = unit.Root.Span
	}

	select {
	case findings := <-done:
		return findings
	case <-timer.C:
		slog.Warn("Scan abandoned", "unit", unit.ID, "timeout", r.opts.ScanTimeout)

		return []m.Finding{abandonedFinding(unit.ID, span, fmt.Sprintf("scan exceeded %s and was abandoned", r.opts.ScanTimeout))}
	case <-ctx.Done():
		return []m.Finding{abandonedFinding(unit.ID, span, fmt.Sprintf("scan cancelled: %v", ctx.Err()))}
	}
}
