// Package runstore keeps the history of workflow runs and their task
// instances, either in memory or in PostgreSQL.
package runstore

import (
	"context"
	"time"

	"github.com/YuminosukeSato/adpipe/pkg/errors"
)

// ErrRunNotFound is returned by GetRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one DAG run.
type RunRecord struct {
	ID        string       `db:"id"`
	DAGID     string       `db:"dag_id"`
	State     string       `db:"state"`
	StartedAt time.Time    `db:"started_at"`
	EndedAt   *time.Time   `db:"ended_at"`
	Tasks     []TaskRecord `db:"-"`
}

// TaskRecord is one task instance inside a run.
type TaskRecord struct {
	RunID     string     `db:"run_id"`
	TaskID    string     `db:"task_id"`
	State     string     `db:"state"`
	Attempts  int        `db:"attempts"`
	StartedAt *time.Time `db:"started_at"`
	EndedAt   *time.Time `db:"ended_at"`
	Error     string     `db:"error"`
}

// Store persists run history.
type Store interface {
	// StartRun records a run that has just begun.
	StartRun(ctx context.Context, run RunRecord) error
	// FinishRun stores the terminal state of the run and all of its task instances.
	FinishRun(ctx context.Context, run RunRecord) error
	// ListRuns returns the most recent runs of dagID, newest first. An empty
	// dagID lists every DAG.
	ListRuns(ctx context.Context, dagID string, limit int) ([]RunRecord, error)
	// GetRun returns one run with its task instances.
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	Close() error
}
