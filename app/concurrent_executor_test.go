package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gocompare/domain/analysis"
	"gocompare/domain/core"
)

type progressMock struct {
	mock.Mock
	mu        sync.Mutex
	completed []int
}

func (m *progressMock) Report(completed, total int, target string) {
	m.mu.Lock()
	m.completed = append(m.completed, completed)
	m.mu.Unlock()
	m.Called(completed, total, target)
}

func executorTasks(n int) []analysis.Task {
	tasks := make([]analysis.Task, n)
	for i := range tasks {
		tasks[i] = analysis.Task{Kind: analysis.KindOutcome, Target: fmt.Sprintf("y%02d", i), Group: "arm"}.WithID()
	}
	return tasks
}

func succeed(_ context.Context, t analysis.Task) analysis.Outcome {
	return analysis.Succeeded(t, analysis.Decision{Method: analysis.MethodStudentT}, nil, &analysis.TestResult{PValue: 0.5})
}

func TestConcurrentExecutorOrderAndProgress(t *testing.T) {
	tasks := executorTasks(12)
	progress := &progressMock{}
	progress.On("Report", mock.Anything, len(tasks), mock.Anything).Return()

	exec := NewConcurrentExecutor(3, 2, time.Second, quietLogger())
	outcomes := exec.Execute(context.Background(), tasks, succeed, progress.Report)

	require.Len(t, outcomes, len(tasks))
	for i, o := range outcomes {
		assert.Equal(t, tasks[i].ID, o.Task.ID)
		assert.True(t, o.OK())
	}
	progress.AssertNumberOfCalls(t, "Report", len(tasks))
	want := make([]int, len(tasks))
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, progress.completed)
}

func TestConcurrentExecutorRespectsCapacity(t *testing.T) {
	tasks := executorTasks(10)
	// Every third task is a mixed-model candidate.
	for i := 0; i < len(tasks); i += 3 {
		tasks[i].Kind = analysis.KindLongitudinal
		tasks[i].Targets = []string{"a", "b", "c"}
		tasks[i] = tasks[i].WithID()
	}

	exec := NewConcurrentExecutor(3, 2, time.Second, quietLogger())
	var inUse, peak int64
	run := func(ctx context.Context, task analysis.Task) analysis.Outcome {
		w := exec.TaskCost(task)
		now := atomic.AddInt64(&inUse, w)
		for {
			p := atomic.LoadInt64(&peak)
			if now <= p || atomic.CompareAndSwapInt64(&peak, p, now) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&inUse, -w)
		return succeed(ctx, task)
	}
	outcomes := exec.Execute(context.Background(), tasks, run, nil)

	assert.Len(t, outcomes, len(tasks))
	assert.LessOrEqual(t, peak, int64(3))
	assert.Equal(t, int64(2), exec.TaskCost(tasks[0]))
	assert.Equal(t, int64(1), exec.TaskCost(tasks[1]))
}

func TestConcurrentExecutorTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	tasks := executorTasks(2)
	exec := NewConcurrentExecutor(2, 1, 20*time.Millisecond, quietLogger())
	outcomes := exec.Execute(context.Background(), tasks, func(ctx context.Context, task analysis.Task) analysis.Outcome {
		if task.ID == tasks[0].ID {
			<-release
		}
		return succeed(ctx, task)
	}, nil)

	require.Len(t, outcomes, 2)
	assert.False(t, outcomes[0].OK())
	assert.True(t, errors.Is(outcomes[0].Err, core.ErrModelNonConvergence))
	assert.True(t, outcomes[1].OK())
}

func TestConcurrentExecutorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := executorTasks(4)
	var ran int64
	outcomes := NewConcurrentExecutor(2, 1, time.Second, quietLogger()).Execute(ctx, tasks, func(ctx context.Context, task analysis.Task) analysis.Outcome {
		atomic.AddInt64(&ran, 1)
		return succeed(ctx, task)
	}, nil)

	assert.Zero(t, atomic.LoadInt64(&ran))
	require.Len(t, outcomes, 4)
	for i, o := range outcomes {
		assert.Equal(t, tasks[i].ID, o.Task.ID)
		assert.True(t, errors.Is(o.Err, context.Canceled))
		assert.Equal(t, analysis.MethodUndetermined, o.Decision.Method)
	}
}

func TestConcurrentExecutorRecoversPanic(t *testing.T) {
	tasks := executorTasks(3)
	outcomes := NewConcurrentExecutor(2, 1, time.Second, quietLogger()).Execute(context.Background(), tasks, func(ctx context.Context, task analysis.Task) analysis.Outcome {
		if task.Target == "y01" {
			panic("index out of range")
		}
		return succeed(ctx, task)
	}, nil)

	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].OK())
	assert.True(t, outcomes[2].OK())
	require.Error(t, outcomes[1].Err)
	assert.Contains(t, outcomes[1].Err.Error(), "index out of range")
	assert.Equal(t, core.KindInternal, core.KindOf(outcomes[1].Err))
	assert.Equal(t, tasks[1].ID, outcomes[1].Task.ID)
}
