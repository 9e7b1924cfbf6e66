package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/YuminosukeSato/adpipe/notify"
	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"github.com/YuminosukeSato/adpipe/trigger"
	"github.com/YuminosukeSato/adpipe/workflow"
	"github.com/YuminosukeSato/adpipe/workflow/runstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recordingNotifier) Notify(ctx context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

type recordingTrigger struct {
	mu   sync.Mutex
	reqs []trigger.Request
}

func (r *recordingTrigger) Trigger(ctx context.Context, req trigger.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return nil
}

func TestNewDAGShape(t *testing.T) {
	fx := newFixture(t, 10, csvOptions{})
	d, err := NewDAG(fx.cfg, Deps{Store: fx.store})
	require.NoError(t, err)

	order, err := d.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{
		TaskOwner, TaskLoad, TaskPreprocess, TaskSeparate, TaskTrain, TaskEvaluate, TaskEmail, TaskTrigger,
	}, order)

	assert.Equal(t, "ad_click_training", d.ID)
	assert.Equal(t, "@daily", d.Schedule)
	assert.Equal(t, 1, d.MaxActiveRuns)
	assert.False(t, d.Catchup)

	for _, id := range []string{TaskEmail, TaskTrigger} {
		task, ok := d.Task(id)
		require.True(t, ok)
		assert.Equal(t, workflow.AllDone, task.TriggerRule)
		assert.Equal(t, []string{TaskEvaluate}, task.Upstream)
	}
	train, _ := d.Task(TaskTrain)
	assert.Equal(t, workflow.AllSuccess, train.TriggerRule)
}

func TestDAGRunSucceeds(t *testing.T) {
	fx := newFixture(t, 200, csvOptions{})
	notifier := &recordingNotifier{}
	trig := &recordingTrigger{}

	d, err := NewDAG(fx.cfg, Deps{Store: fx.store, Notifier: notifier, Trigger: trig, Logger: fx.logger})
	require.NoError(t, err)

	store := runstore.NewMemory()
	run, err := workflow.NewRunner(store, fx.logger).Run(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateSuccess, run.State)

	ev, ok := run.Tasks[TaskEvaluate].Output.(*Evaluation)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(fx.cfg.Data.ModelDir, "model.sav"), ev.ModelPath)
	assert.Equal(t, "1", run.Tasks[TaskOwner].Output)

	require.Len(t, notifier.msgs, 1)
	assert.Equal(t, []string{"ml-team@example.com"}, notifier.msgs[0].To)
	assert.Contains(t, notifier.msgs[0].HTML, "Test accuracy")

	require.Len(t, trig.reqs, 1)
	assert.Equal(t, "ad_click_serving", trig.reqs[0].DAGID)
	assert.Equal(t, run.ID, trig.reqs[0].RunID)
	assert.Equal(t, "Data from upstream DAG", trig.reqs[0].Conf["message"])

	history, err := store.ListRuns(context.Background(), d.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "success", history[0].State)
}

func TestDAGRunFailureStillNotifies(t *testing.T) {
	fx := newFixture(t, 10, csvOptions{})
	fx.cfg.Data.Source = filepath.Join(t.TempDir(), "missing.csv")
	notifier := &recordingNotifier{}
	trig := &recordingTrigger{}

	d, err := NewDAG(fx.cfg, Deps{Store: fx.store, Notifier: notifier, Trigger: trig, Logger: fx.logger})
	require.NoError(t, err)

	run, err := workflow.NewRunner(nil, fx.logger).Run(context.Background(), d)
	require.Error(t, err)
	assert.True(t, errors.Is(err, workflow.ErrRunFailed))

	assert.Equal(t, workflow.StateFailed, run.Tasks[TaskLoad].State)
	var dnf *errors.DataNotFoundError
	assert.True(t, errors.As(run.Tasks[TaskLoad].Err, &dnf))
	for _, id := range []string{TaskPreprocess, TaskSeparate, TaskTrain, TaskEvaluate} {
		assert.Equal(t, workflow.StateUpstreamFailed, run.Tasks[id].State, id)
	}
	assert.Equal(t, workflow.StateSuccess, run.Tasks[TaskEmail].State)
	assert.Equal(t, workflow.StateSuccess, run.Tasks[TaskTrigger].State)

	require.Len(t, notifier.msgs, 1)
	assert.Contains(t, notifier.msgs[0].HTML, TaskLoad)
	assert.NotContains(t, notifier.msgs[0].HTML, "Test accuracy")
	assert.Len(t, trig.reqs, 1)
}

func TestNewDAGRequiresStore(t *testing.T) {
	fx := newFixture(t, 10, csvOptions{})
	_, err := NewDAG(fx.cfg, Deps{})
	assert.Error(t, err)
}
