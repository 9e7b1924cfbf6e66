package workflow

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"github.com/YuminosukeSato/adpipe/pkg/log"
	"github.com/YuminosukeSato/adpipe/workflow/runstore"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrMaxActiveRuns is returned when the DAG already has MaxActiveRuns runs in progress.
	ErrMaxActiveRuns = errors.New("max active runs reached")
	// ErrRunFailed is returned when at least one task did not succeed.
	ErrRunFailed = errors.New("dag run failed")
)

// TaskInstance is the outcome of one task within a run.
type TaskInstance struct {
	TaskID    string
	State     State
	Attempts  int
	StartedAt time.Time
	EndedAt   time.Time
	Err       error
	Output    any
}

// Run is the outcome of one DAG run.
type Run struct {
	ID        string
	DAGID     string
	State     State
	StartedAt time.Time
	EndedAt   time.Time
	// Order はタスクのトポロジカル順
	Order []string
	Tasks map[string]*TaskInstance
}

// Failed returns the ids of tasks that ended failed or upstream_failed.
func (r *Run) Failed() []string {
	var out []string
	for _, id := range r.Order {
		if s := r.Tasks[id].State; s == StateFailed || s == StateUpstreamFailed {
			out = append(out, id)
		}
	}
	return out
}

// Runner executes DAG runs.
type Runner struct {
	store  runstore.Store
	logger log.Logger

	mu    sync.Mutex
	slots map[string]*semaphore.Weighted
}

// NewRunner creates a runner that records history in store.
// A nil store keeps history in memory.
func NewRunner(store runstore.Store, logger log.Logger) *Runner {
	if store == nil {
		store = runstore.NewMemory()
	}
	if logger == nil {
		logger = log.NewSlogLogger(nil)
	}
	return &Runner{
		store:  store,
		logger: logger,
		slots:  make(map[string]*semaphore.Weighted),
	}
}

func (r *Runner) slot(d *DAG) *semaphore.Weighted {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[d.ID]
	if !ok {
		s = semaphore.NewWeighted(int64(d.MaxActiveRuns))
		r.slots[d.ID] = s
	}
	return s
}

// Run executes every task of d once, honoring dependencies, trigger rules and
// retries. The returned Run is non-nil whenever the run started; its error is
// ErrRunFailed when any task did not succeed.
func (r *Runner) Run(ctx context.Context, d *DAG) (*Run, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	order, err := d.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	slot := r.slot(d)
	if !slot.TryAcquire(1) {
		RejectedRuns.WithLabelValues(d.ID).Inc()
		return nil, errors.Wrapf(ErrMaxActiveRuns, "dag %s allows %d active run(s)", d.ID, d.MaxActiveRuns)
	}
	defer slot.Release(1)
	ActiveRuns.WithLabelValues(d.ID).Inc()
	defer ActiveRuns.WithLabelValues(d.ID).Dec()

	run := &Run{
		ID:        uuid.NewString(),
		DAGID:     d.ID,
		State:     StateRunning,
		StartedAt: time.Now().UTC(),
		Order:     order,
		Tasks:     make(map[string]*TaskInstance, len(order)),
	}
	for _, id := range order {
		run.Tasks[id] = &TaskInstance{TaskID: id, State: StatePending}
	}

	logger := r.logger.With(log.DAGKey, d.ID, log.RunIDKey, run.ID)
	if err := r.store.StartRun(ctx, runstore.RunRecord{
		ID:        run.ID,
		DAGID:     run.DAGID,
		State:     string(run.State),
		StartedAt: run.StartedAt,
	}); err != nil {
		return nil, errors.Wrap(err, "record run start")
	}
	logger.Info("DAG run started", "tasks", len(order))

	outs := newOutputs()
	for {
		wave := r.nextWave(d, run)
		if len(wave) == 0 {
			break
		}

		states := make(map[string]State, len(run.Tasks))
		for id, ti := range run.Tasks {
			states[id] = ti.State
		}

		var mu sync.Mutex
		var g errgroup.Group
		for _, t := range wave {
			t := t
			g.Go(func() error {
				ti := r.execute(ctx, d, run.ID, t, states, outs, logger)
				mu.Lock()
				run.Tasks[t.ID] = ti
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	run.EndedAt = time.Now().UTC()
	run.State = StateSuccess
	if len(run.Failed()) > 0 {
		run.State = StateFailed
	}
	RunsTotal.WithLabelValues(d.ID, string(run.State)).Inc()

	if err := r.store.FinishRun(context.WithoutCancel(ctx), toRecord(run)); err != nil {
		logger.Error("Failed to record run", err)
	}

	if run.State == StateFailed {
		failed := run.Failed()
		logger.Error("DAG run failed", ErrRunFailed, "failed_tasks", failed)
		return run, errors.Wrapf(ErrRunFailed, "dag %s run %s: %s", d.ID, run.ID, strings.Join(failed, ", "))
	}
	logger.Info("DAG run succeeded", log.DurationMsKey, run.EndedAt.Sub(run.StartedAt).Milliseconds())
	return run, nil
}

// nextWave returns the pending tasks whose upstreams are all terminal. Tasks
// that cannot run under AllSuccess are marked upstream_failed in place and
// the scan repeats so the state cascades within the same call.
func (r *Runner) nextWave(d *DAG, run *Run) []*Task {
	for {
		var wave []*Task
		changed := false
		for _, id := range run.Order {
			ti := run.Tasks[id]
			if ti.State != StatePending {
				continue
			}
			t, _ := d.Task(id)
			ready, ok := true, true
			for _, up := range t.Upstream {
				s := run.Tasks[up].State
				if !s.Terminal() {
					ready = false
					break
				}
				if s != StateSuccess {
					ok = false
				}
			}
			if !ready {
				continue
			}
			if !ok && t.TriggerRule == AllSuccess {
				now := time.Now().UTC()
				ti.State = StateUpstreamFailed
				ti.StartedAt, ti.EndedAt = now, now
				changed = true
				continue
			}
			wave = append(wave, t)
		}
		if len(wave) > 0 || !changed {
			return wave
		}
	}
}

func (r *Runner) execute(ctx context.Context, d *DAG, runID string, t *Task, states map[string]State, outs *outputs, parent log.Logger) *TaskInstance {
	ti := &TaskInstance{TaskID: t.ID, State: StateRunning, StartedAt: time.Now().UTC()}
	logger := parent.With(log.TaskKey, t.ID)

	delay := t.RetryDelay
	if delay <= 0 {
		delay = time.Nanosecond
	}
	backoff := retry.WithMaxRetries(uint64(t.Retries), retry.NewConstant(delay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		ti.Attempts++
		tc := &TaskContext{
			RunID:   runID,
			DAGID:   d.ID,
			TaskID:  t.ID,
			Attempt: ti.Attempts,
			Logger:  logger.With(log.AttemptKey, ti.Attempts),
			States:  states,
			outputs: outs,
		}

		var out any
		err := errors.SafeExecute(t.ID, func() error {
			var err error
			out, err = t.Run(ctx, tc)
			return err
		})
		if err == nil {
			TaskAttempts.WithLabelValues(d.ID, t.ID, "success").Inc()
			ti.Output = out
			return nil
		}

		TaskAttempts.WithLabelValues(d.ID, t.ID, "failure").Inc()
		if ctx.Err() != nil {
			return err
		}
		if ti.Attempts <= t.Retries {
			logger.Warn("Task attempt failed, will retry",
				err,
				log.AttemptKey, ti.Attempts,
				"retry_delay", t.RetryDelay.String(),
			)
		}
		return retry.RetryableError(err)
	})

	ti.EndedAt = time.Now().UTC()
	TaskDuration.WithLabelValues(d.ID, t.ID).Observe(ti.EndedAt.Sub(ti.StartedAt).Seconds())
	if err != nil {
		ti.State = StateFailed
		ti.Err = err
		logger.Error("Task failed", err, log.AttemptKey, ti.Attempts)
		return ti
	}
	ti.State = StateSuccess
	outs.set(t.ID, ti.Output)
	logger.Info("Task succeeded", log.AttemptKey, ti.Attempts, log.TaskStateKey, string(ti.State))
	return ti
}

func toRecord(run *Run) runstore.RunRecord {
	ended := run.EndedAt
	rec := runstore.RunRecord{
		ID:        run.ID,
		DAGID:     run.DAGID,
		State:     string(run.State),
		StartedAt: run.StartedAt,
		EndedAt:   &ended,
	}
	for _, id := range run.Order {
		ti := run.Tasks[id]
		tr := runstore.TaskRecord{
			RunID:    run.ID,
			TaskID:   id,
			State:    string(ti.State),
			Attempts: ti.Attempts,
		}
		if !ti.StartedAt.IsZero() {
			s, e := ti.StartedAt, ti.EndedAt
			tr.StartedAt, tr.EndedAt = &s, &e
		}
		if ti.Err != nil {
			tr.Error = ti.Err.Error()
		}
		rec.Tasks = append(rec.Tasks, tr)
	}
	return rec
}
