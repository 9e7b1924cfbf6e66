package cli

import (
	"context"
	"log/slog"

	"github.com/YuminosukeSato/adpipe/artifact"
	"github.com/YuminosukeSato/adpipe/config"
	"github.com/YuminosukeSato/adpipe/notify"
	"github.com/YuminosukeSato/adpipe/pipeline"
	"github.com/YuminosukeSato/adpipe/pkg/log"
	"github.com/YuminosukeSato/adpipe/trigger"
	"github.com/YuminosukeSato/adpipe/workflow"
	"github.com/YuminosukeSato/adpipe/workflow/runstore"
)

// app holds everything a command needs, built from one Config.
type app struct {
	cfg      *config.Config
	logger   log.Logger
	store    *artifact.Store
	runs     runstore.Store
	notifier notify.Notifier
	trigger  *trigger.Async
	redis    *trigger.Redis
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := log.NewSlogLogger(slog.Default())

	store, err := artifact.NewStore(cfg.Data.WorkingDir, cfg.Data.ModelDir)
	if err != nil {
		return nil, err
	}
	runs, err := runstore.Open(ctx, cfg.RunStore.Driver, cfg.RunStore.URL, cfg.RunStore.MaxOpenConns)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		runs:   runs,
		notifier: notify.New(notify.SMTPConfig{
			Host:     cfg.Notify.SMTP.Host,
			Port:     cfg.Notify.SMTP.Port,
			Username: cfg.Notify.SMTP.Username,
			Password: cfg.Notify.SMTP.Password,
			From:     cfg.Notify.SMTP.From,
			Timeout:  cfg.Notify.SMTP.Timeout,
		}, logger),
	}

	var next trigger.Trigger = trigger.NewLog(logger)
	if cfg.Trigger.RedisURL != "" {
		r, err := trigger.NewRedis(ctx, trigger.RedisConfig{URL: cfg.Trigger.RedisURL, Password: cfg.Trigger.Password})
		if err != nil {
			_ = runs.Close()
			return nil, err
		}
		a.redis = r
		next = r
	}
	a.trigger = trigger.NewAsync(next, cfg.Trigger.QueueSize, logger)
	return a, nil
}

func (a *app) dag() (*workflow.DAG, error) {
	return pipeline.NewDAG(a.cfg, pipeline.Deps{
		Store:    a.store,
		Notifier: a.notifier,
		Trigger:  a.trigger,
		Logger:   a.logger,
	})
}

func (a *app) runner() *workflow.Runner {
	return workflow.NewRunner(a.runs, a.logger)
}

// Close drains pending trigger requests and releases connections.
func (a *app) Close(ctx context.Context) {
	if err := a.trigger.Close(ctx); err != nil {
		a.logger.Warn("Trigger queue not drained", err)
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	_ = a.runs.Close()
}
