// Package workflow runs a DAG of dependent tasks with retries, trigger rules
// and a cap on concurrently active runs.
//
// Tasks are plain functions. They exchange small values through TaskContext.Pull
// and large values through artifacts, so the pipeline stages stay independent of
// the runner.
package workflow

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/YuminosukeSato/adpipe/pkg/log"
)

// TriggerRule decides when a task may run given the states of its upstreams.
type TriggerRule string

const (
	// AllSuccess runs the task only when every upstream succeeded.
	AllSuccess TriggerRule = "all_success"
	// AllDone runs the task once every upstream reached a terminal state.
	AllDone TriggerRule = "all_done"
)

// State is the lifecycle state of a task instance or run.
type State string

const (
	StatePending        State = "pending"
	StateRunning        State = "running"
	StateSuccess        State = "success"
	StateFailed         State = "failed"
	StateUpstreamFailed State = "upstream_failed"
)

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed || s == StateUpstreamFailed
}

// TaskFunc is the body of a task. The returned value is made available to
// downstream tasks via TaskContext.Pull.
type TaskFunc func(ctx context.Context, tc *TaskContext) (any, error)

// Task is one node of a DAG.
type Task struct {
	ID          string
	Upstream    []string
	TriggerRule TriggerRule
	Retries     int
	RetryDelay  time.Duration
	Run         TaskFunc
}

// TaskOption configures a Task added through DAG.AddTask.
type TaskOption func(*Task)

// WithUpstream declares the tasks that must reach a terminal state first.
// Repeated ids are kept once.
func WithUpstream(ids ...string) TaskOption {
	return func(t *Task) {
		for _, id := range ids {
			if !slices.Contains(t.Upstream, id) {
				t.Upstream = append(t.Upstream, id)
			}
		}
	}
}

// WithTriggerRule overrides the default AllSuccess rule.
func WithTriggerRule(rule TriggerRule) TaskOption {
	return func(t *Task) {
		t.TriggerRule = rule
	}
}

// WithRetries overrides the DAG's default retry count.
func WithRetries(n int) TaskOption {
	return func(t *Task) {
		t.Retries = n
	}
}

// WithRetryDelay overrides the DAG's default delay between attempts.
func WithRetryDelay(d time.Duration) TaskOption {
	return func(t *Task) {
		t.RetryDelay = d
	}
}

// TaskContext is passed to every attempt of a task.
type TaskContext struct {
	RunID   string
	DAGID   string
	TaskID  string
	Attempt int
	Logger  log.Logger
	// States は起動時点での全タスクの状態
	States map[string]State

	outputs *outputs
}

// Pull returns the value produced by an upstream task.
func (tc *TaskContext) Pull(taskID string) (any, bool) {
	if tc.outputs == nil {
		return nil, false
	}
	return tc.outputs.get(taskID)
}

type outputs struct {
	mu     sync.RWMutex
	values map[string]any
}

func newOutputs() *outputs {
	return &outputs{values: make(map[string]any)}
}

func (o *outputs) get(id string) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.values[id]
	return v, ok
}

func (o *outputs) set(id string, v any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.values[id] = v
}
