package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"github.com/YuminosukeSato/adpipe/pkg/log"
)

// ParseSchedule converts a schedule expression into an interval. It accepts
// the presets @hourly, @daily and @weekly, or any Go duration such as "15m".
func ParseSchedule(expr string) (time.Duration, error) {
	switch strings.TrimSpace(expr) {
	case "@hourly":
		return time.Hour, nil
	case "@daily":
		return 24 * time.Hour, nil
	case "@weekly":
		return 7 * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(expr)
	if err != nil {
		return 0, errors.NewValidationError("schedule", "must be @hourly, @daily, @weekly or a duration", expr)
	}
	if d <= 0 {
		return 0, errors.NewValidationError("schedule", "interval must be positive", expr)
	}
	return d, nil
}

// NextTick returns the first interval boundary strictly after now. Boundaries
// are aligned to the UTC epoch, so @daily fires at midnight UTC.
func NextTick(now time.Time, interval time.Duration) time.Time {
	return now.UTC().Truncate(interval).Add(interval)
}

// Scheduler triggers runs of one DAG on its schedule. Missed intervals are
// never backfilled.
type Scheduler struct {
	runner   *Runner
	dag      *DAG
	interval time.Duration
	logger   log.Logger

	// RunOnStart triggers one run immediately before waiting for the first tick.
	RunOnStart bool

	now func() time.Time
}

// NewScheduler parses dag.Schedule and binds it to runner.
func NewScheduler(runner *Runner, dag *DAG, logger log.Logger) (*Scheduler, error) {
	if dag.Catchup {
		return nil, errors.NewValidationError("catchup", "catch-up runs are not supported", dag.Catchup)
	}
	interval, err := ParseSchedule(dag.Schedule)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewSlogLogger(nil)
	}
	return &Scheduler{
		runner:   runner,
		dag:      dag,
		interval: interval,
		logger:   logger.With(log.DAGKey, dag.ID),
		now:      time.Now,
	}, nil
}

// Start blocks until ctx is cancelled, running the DAG at every tick. A run
// that outlasts its interval causes the ticks it covered to be skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.RunOnStart {
		s.trigger(ctx)
	}
	for {
		next := NextTick(s.now(), s.interval)
		s.logger.Info("Next run scheduled", "next_run", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("Scheduler stopped")
			return nil
		case <-timer.C:
		}
		s.trigger(ctx)
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	run, err := s.runner.Run(ctx, s.dag)
	switch {
	case errors.Is(err, ErrMaxActiveRuns):
		s.logger.Warn("Skipping scheduled run", err)
	case err != nil:
		fields := []any{err}
		if run != nil {
			fields = append(fields, log.RunIDKey, run.ID)
		}
		s.logger.Error("Scheduled run failed", fields...)
	}
}
