package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"gocompare/domain/analysis"
	"gocompare/domain/core"
	"gocompare/internal"
	"gocompare/ports"
)

// TaskFunc runs one task to a terminal outcome. A panic is recovered and
// recorded as an Internal failure of that task.
type TaskFunc func(ctx context.Context, task analysis.Task) analysis.Outcome

// ConcurrentExecutor runs tasks on a weighted pool. A task's weight is its
// expected cost: mixed-model candidates weigh more than closed-form tests.
type ConcurrentExecutor struct {
	sem         *semaphore.Weighted
	capacity    int64
	mixedWeight int64
	timeout     time.Duration
	logger      *internal.Logger
}

// NewConcurrentExecutor creates an executor with capacity units. Weights
// above capacity are capped so every task can run.
func NewConcurrentExecutor(capacity, mixedWeight int, timeout time.Duration, logger *internal.Logger) *ConcurrentExecutor {
	if capacity < 1 {
		capacity = 1
	}
	if mixedWeight < 1 {
		mixedWeight = 1
	}
	if mixedWeight > capacity {
		mixedWeight = capacity
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &ConcurrentExecutor{
		sem:         semaphore.NewWeighted(int64(capacity)),
		capacity:    int64(capacity),
		mixedWeight: int64(mixedWeight),
		timeout:     timeout,
		logger:      logger.WithComponent("ConcurrentExecutor"),
	}
}

// TaskCost returns the pool weight of a task.
func (ce *ConcurrentExecutor) TaskCost(t analysis.Task) int64 {
	if t.Kind == analysis.KindLongitudinal && t.Group != "" && len(t.Targets) >= 3 {
		return ce.mixedWeight
	}
	return 1
}

// Execute runs every task and returns their outcomes in task order. progress
// is called once per terminated task, never concurrently. When ctx is
// cancelled no further task is dispatched; running tasks finish and
// undispatched ones are recorded as failed.
func (ce *ConcurrentExecutor) Execute(ctx context.Context, tasks []analysis.Task, run TaskFunc, progress ports.ProgressFunc) []analysis.Outcome {
	if progress == nil {
		progress = ports.NoProgress
	}

	var (
		mu        sync.Mutex
		outcomes  = make(map[core.TaskID]analysis.Outcome, len(tasks))
		completed int
	)
	record := func(o analysis.Outcome) {
		mu.Lock()
		defer mu.Unlock()
		outcomes[o.Task.ID] = o
		completed++
		progress(completed, len(tasks), o.Task.Label())
	}

	var wg sync.WaitGroup
	for _, task := range tasks {
		task := task
		cost := ce.TaskCost(task)
		err := ctx.Err()
		if err == nil {
			err = ce.sem.Acquire(ctx, cost)
		}
		if err != nil {
			record(analysis.Failed(task, analysis.Decision{}, nil, fmt.Errorf("task not dispatched: %w", err)))
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer ce.sem.Release(cost)
			start := time.Now()
			o := ce.runOne(ctx, task, run)
			switch {
			case o.OK():
				ce.logger.Debug("%s: %s (cost %d, %v)", task.Label(), o.Decision.Method, cost, time.Since(start))
			case core.IsTaskRecoverable(o.Err):
				ce.logger.Warn("%s failed (%s): %v", task.Label(), core.KindOf(o.Err), o.Err)
			default:
				ce.logger.Error("%s failed (%s): %v", task.Label(), core.KindOf(o.Err), o.Err)
			}
			record(o)
		}()
	}
	wg.Wait()

	out := make([]analysis.Outcome, len(tasks))
	for i, t := range tasks {
		out[i] = outcomes[t.ID]
	}
	return out
}

// runOne applies the per-task timeout. A task that overruns is recorded as
// non-converged; its goroutine observes the cancelled context and exits.
func (ce *ConcurrentExecutor) runOne(parent context.Context, task analysis.Task, run TaskFunc) analysis.Outcome {
	ctx, cancel := parent, context.CancelFunc(func() {})
	if ce.timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, ce.timeout)
	}
	defer cancel()

	done := make(chan analysis.Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- analysis.Failed(task, analysis.Decision{}, nil, fmt.Errorf("task panicked: %v", r))
			}
		}()
		done <- run(ctx, task)
	}()

	select {
	case o := <-done:
		return o
	case <-ctx.Done():
		if parent.Err() != nil {
			return analysis.Failed(task, analysis.Decision{}, nil, fmt.Errorf("task cancelled: %w", parent.Err()))
		}
		return analysis.Failed(task, analysis.Decision{}, nil, core.NewNonConvergenceError("task exceeded %v timeout", ce.timeout))
	}
}
