package runstore

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(sqlx.NewDb(db, "pgx")), mock
}

var (
	runColumns  = []string{"id", "dag_id", "state", "started_at", "ended_at"}
	taskColumns = []string{"run_id", "task_id", "state", "attempts", "started_at", "ended_at", "error"}
)

func TestPostgresStartRun(t *testing.T) {
	p, mock := newMockPostgres(t)
	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pipeline_runs (id, dag_id, state, started_at, ended_at)")).
		WithArgs("run-1", "ad_click_training", "running", started, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, p.StartRun(context.Background(), RunRecord{
		ID: "run-1", DAGID: "ad_click_training", State: "running", StartedAt: started,
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFinishRunCommitsTasks(t *testing.T) {
	p, mock := newMockPostgres(t)
	ended := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE pipeline_runs SET state = $1, ended_at = $2 WHERE id = $3")).
		WithArgs("failed", ended, "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pipeline_task_instances")).
		WithArgs("run-1", "load_data_task", "success", 1, nil, nil, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pipeline_task_instances")).
		WithArgs("run-1", "build_save_model_task", "failed", 3, nil, nil, "boom").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := p.FinishRun(context.Background(), RunRecord{
		ID:      "run-1",
		State:   "failed",
		EndedAt: &ended,
		Tasks: []TaskRecord{
			{TaskID: "load_data_task", State: "success", Attempts: 1},
			{TaskID: "build_save_model_task", State: "failed", Attempts: 3, Error: "boom"},
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFinishRunUnknownRollsBack(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE pipeline_runs")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := p.FinishRun(context.Background(), RunRecord{
		ID:    "ghost",
		State: "success",
		Tasks: []TaskRecord{{TaskID: "load_data_task", State: "success", Attempts: 1}},
	})
	assert.True(t, errors.Is(err, ErrRunNotFound), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFinishRunTaskErrorRollsBack(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE pipeline_runs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pipeline_task_instances")).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := p.FinishRun(context.Background(), RunRecord{
		ID:    "run-1",
		State: "success",
		Tasks: []TaskRecord{{TaskID: "load_data_task", State: "success", Attempts: 1}},
	})
	assert.ErrorContains(t, err, "deadlock detected")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRuns(t *testing.T) {
	p, mock := newMockPostgres(t)
	started := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, dag_id, state, started_at, ended_at FROM pipeline_runs")).
		WithArgs("", 20).
		WillReturnRows(sqlmock.NewRows(runColumns).
			AddRow("run-2", "ad_click_training", "success", started, started.Add(time.Minute)).
			AddRow("run-1", "ad_click_training", "running", started.Add(-time.Hour), nil))

	runs, err := p.ListRuns(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	require.NotNil(t, runs[0].EndedAt)
	assert.Nil(t, runs[1].EndedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRun(t *testing.T) {
	p, mock := newMockPostgres(t)
	started := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM pipeline_runs WHERE id = $1")).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(runColumns).
			AddRow("run-1", "ad_click_training", "success", started, started.Add(time.Minute)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM pipeline_task_instances WHERE run_id = $1")).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(taskColumns).
			AddRow("run-1", "load_data_task", "success", 1, started, started.Add(time.Second), ""))

	run, err := p.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "success", run.State)
	require.Len(t, run.Tasks, 1)
	assert.Equal(t, "load_data_task", run.Tasks[0].TaskID)
	assert.Equal(t, 1, run.Tasks[0].Attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRunNotFound(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM pipeline_runs WHERE id = $1")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(runColumns))

	_, err := p.GetRun(context.Background(), "ghost")
	assert.True(t, errors.Is(err, ErrRunNotFound), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
