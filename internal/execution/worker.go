package execution

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"covnorm/internal/config"
	"covnorm/internal/domain"
)

var (
	_ Executor     = (*WorkerPool)(nil)
	_ TargetRunner = (*Runner)(nil)
)

// WorkerPool runs independent targets in parallel, each in its own working directory
type WorkerPool struct {
	config   *config.Config
	runner   TargetRunner
	progress Progress
	clock    clock.Clock
}

// NewWorkerPool creates a new WorkerPool
func NewWorkerPool(cfg *config.Config, runner TargetRunner) *WorkerPool {
	return &WorkerPool{
		config: cfg,
		runner: runner,
		clock:  clock.New(),
	}
}

// SetProgress sets the progress reporter for the worker pool
func (wp *WorkerPool) SetProgress(progress Progress) {
	wp.progress = progress
}

// SetClock replaces the clock used to time the run
func (wp *WorkerPool) SetClock(c clock.Clock) {
	wp.clock = c
}

// Execute runs all targets (no fail-fast).
func (wp *WorkerPool) Execute(ctx context.Context, targets []domain.Target) ([]domain.TargetResult, time.Duration, error) {
	return wp.ExecuteWithOptions(ctx, targets, false)
}

// ExecuteWithOptions runs targets with optional fail-fast: after the first
// fatal target, targets that have not started yet are reported as canceled
// while running ones finish. Results are returned in the order of targets.
func (wp *WorkerPool) ExecuteWithOptions(ctx context.Context, targets []domain.Target, failFast bool) ([]domain.TargetResult, time.Duration, error) {
	if len(targets) == 0 {
		return nil, 0, nil
	}

	workerCount := wp.config.Processors
	if workerCount <= 0 {
		workerCount = 1
	}

	var (
		mu        sync.Mutex
		completed int
		ok        int
		failed    int
		stopped   atomic.Bool
	)
	results := make([]domain.TargetResult, len(targets))
	startTime := wp.clock.Now()

	var g errgroup.Group
	g.SetLimit(workerCount)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			var result domain.TargetResult
			if stopped.Load() {
				result = wp.canceled(target)
			} else {
				result = wp.runner.Run(ctx, target)
			}
			results[i] = result

			mu.Lock()
			defer mu.Unlock()
			completed++
			if result.Fatal() {
				failed++
				if failFast {
					stopped.Store(true)
				}
			} else {
				ok++
			}
			if wp.progress != nil {
				wp.progress.Update(completed, ok, failed)
			}
			return nil
		})
	}
	// Workers never return errors; failures live in the results
	_ = g.Wait()

	if wp.progress != nil {
		wp.progress.Finish()
	}
	return results, wp.clock.Since(startTime), nil
}

// canceled is the result of a target skipped by fail-fast
func (wp *WorkerPool) canceled(target domain.Target) domain.TargetResult {
	dir := wp.config.GetTargetDir(target)
	return domain.TargetResult{
		Target:     target,
		Dir:        dir,
		ReportPath: target.ReportPath(dir),
		Status:     domain.StatusFailed,
		Err: domain.NewTargetError(target.Name, domain.StageResolve, domain.ErrCanceled,
			errors.New("skipped after an earlier target failed")),
	}
}
