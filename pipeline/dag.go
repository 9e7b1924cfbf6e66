package pipeline

import (
	"context"
	"sort"

	"github.com/YuminosukeSato/adpipe/artifact"
	"github.com/YuminosukeSato/adpipe/config"
	"github.com/YuminosukeSato/adpipe/notify"
	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"github.com/YuminosukeSato/adpipe/pkg/log"
	"github.com/YuminosukeSato/adpipe/trigger"
	"github.com/YuminosukeSato/adpipe/workflow"
)

// Task ids of the training DAG.
const (
	TaskOwner      = "owner_task"
	TaskLoad       = "load_data_task"
	TaskPreprocess = "data_preprocessing_task"
	TaskSeparate   = "separate_data_outputs_task"
	TaskTrain      = "build_save_model_task"
	TaskEvaluate   = "load_model_task"
	TaskEmail      = "send_email"
	TaskTrigger    = "trigger_downstream"
)

// Stages bundles the five pipeline stages.
type Stages struct {
	Loader       *Loader
	Preprocessor *Preprocessor
	Splitter     *Splitter
	Trainer      *Trainer
	Evaluator    *Evaluator
}

// NewStages builds every stage from cfg on top of store.
func NewStages(cfg *config.Config, store *artifact.Store, logger log.Logger) (*Stages, error) {
	opts, err := ModelOptions(cfg.Model)
	if err != nil {
		return nil, err
	}
	return &Stages{
		Loader:       NewLoader(store, logger),
		Preprocessor: NewPreprocessor(store, SchemaFromConfig(cfg.Preprocess), cfg.Preprocess.TestSize, cfg.Preprocess.RandomState, logger),
		Splitter:     NewSplitter(logger),
		Trainer:      NewTrainer(store, opts, logger),
		Evaluator:    NewEvaluator(store, cfg.Data.ReportPath, logger),
	}, nil
}

// Deps are the collaborators of the training DAG.
type Deps struct {
	Store    *artifact.Store
	Notifier notify.Notifier
	Trigger  trigger.Trigger
	Logger   log.Logger
}

// NewDAG declares the training DAG:
//
//	owner_task -> load_data_task -> data_preprocessing_task -> separate_data_outputs_task
//	  -> build_save_model_task -> load_model_task -> {send_email, trigger_downstream}
//
// send_email and trigger_downstream run once load_model_task is done, whether
// or not it succeeded.
func NewDAG(cfg *config.Config, deps Deps) (*workflow.DAG, error) {
	if deps.Store == nil {
		return nil, errors.NewValidationError("deps.store", "artifact store is required", nil)
	}
	if deps.Logger == nil {
		deps.Logger = log.NewSlogLogger(nil)
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLog(deps.Logger)
	}
	if deps.Trigger == nil {
		deps.Trigger = trigger.NewLog(deps.Logger)
	}
	stages, err := NewStages(cfg, deps.Store, deps.Logger)
	if err != nil {
		return nil, err
	}

	d := workflow.NewDAG(cfg.DAG.ID)
	d.Description = cfg.DAG.Description
	d.Owner = cfg.DAG.Owner
	d.Tags = append([]string(nil), cfg.DAG.Tags...)
	d.Schedule = cfg.DAG.Schedule
	d.Catchup = cfg.DAG.Catchup
	d.MaxActiveRuns = cfg.DAG.MaxActiveRuns
	d.Retries = cfg.DAG.Retries
	d.RetryDelay = cfg.DAG.RetryDelay

	modelID := cfg.Data.ModelID

	d.AddTask(TaskOwner, workflow.CommandTask("echo", "1"))

	d.AddTask(TaskLoad, func(ctx context.Context, tc *workflow.TaskContext) (any, error) {
		return stages.Loader.Load(ctx, cfg.Data.Source)
	}, workflow.WithUpstream(TaskOwner))

	d.AddTask(TaskPreprocess, func(ctx context.Context, tc *workflow.TaskContext) (any, error) {
		raw, err := pullHandle(tc, TaskLoad)
		if err != nil {
			return nil, err
		}
		return stages.Preprocessor.Process(ctx, raw)
	}, workflow.WithUpstream(TaskLoad))

	d.AddTask(TaskSeparate, func(ctx context.Context, tc *workflow.TaskContext) (any, error) {
		h, err := pullHandle(tc, TaskPreprocess)
		if err != nil {
			return nil, err
		}
		return stages.Splitter.Separate(ctx, h)
	}, workflow.WithUpstream(TaskPreprocess))

	d.AddTask(TaskTrain, func(ctx context.Context, tc *workflow.TaskContext) (any, error) {
		split, err := pullHandle(tc, TaskSeparate)
		if err != nil {
			return nil, err
		}
		return stages.Trainer.Train(ctx, split, modelID)
	}, workflow.WithUpstream(TaskSeparate))

	d.AddTask(TaskEvaluate, func(ctx context.Context, tc *workflow.TaskContext) (any, error) {
		split, err := pullHandle(tc, TaskSeparate)
		if err != nil {
			return nil, err
		}
		return stages.Evaluator.Evaluate(ctx, split, modelID)
	}, workflow.WithUpstream(TaskTrain))

	d.AddTask(TaskEmail, func(ctx context.Context, tc *workflow.TaskContext) (any, error) {
		summary := notify.Summary{
			DAGID:       tc.DAGID,
			RunID:       tc.RunID,
			FailedTasks: failedTasks(tc.States),
		}
		if v, ok := tc.Pull(TaskEvaluate); ok {
			if ev, ok := v.(*Evaluation); ok && ev != nil {
				summary.Accuracy = ev.Accuracy
				summary.FirstPrediction = ev.FirstPrediction
				summary.HasEvaluation = true
			}
		}
		msg, err := notify.CompletionMessage(cfg.Notify.To, cfg.Notify.Subject, summary)
		if err != nil {
			return nil, err
		}
		return nil, deps.Notifier.Notify(ctx, msg)
	}, workflow.WithUpstream(TaskEvaluate), workflow.WithTriggerRule(workflow.AllDone))

	d.AddTask(TaskTrigger, func(ctx context.Context, tc *workflow.TaskContext) (any, error) {
		conf := make(map[string]string, len(cfg.Trigger.Conf))
		for k, v := range cfg.Trigger.Conf {
			conf[k] = v
		}
		return nil, deps.Trigger.Trigger(ctx, trigger.Request{
			DAGID: cfg.Trigger.DAGID,
			Conf:  conf,
			RunID: tc.RunID,
		})
	}, workflow.WithUpstream(TaskEvaluate), workflow.WithTriggerRule(workflow.AllDone))

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func pullHandle(tc *workflow.TaskContext, taskID string) (artifact.Handle, error) {
	v, ok := tc.Pull(taskID)
	if !ok {
		return "", errors.NewValueError("pipeline.pullHandle", "no output from "+taskID)
	}
	h, ok := v.(artifact.Handle)
	if !ok || h == "" {
		return "", errors.NewValueError("pipeline.pullHandle", "output of "+taskID+" is not an artifact handle")
	}
	return h, nil
}

func failedTasks(states map[string]workflow.State) []string {
	var out []string
	for id, s := range states {
		if s == workflow.StateFailed || s == workflow.StateUpstreamFailed {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
