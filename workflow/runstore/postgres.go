package runstore

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/YuminosukeSato/adpipe/pkg/errors"
	_ "github.com/jackc/pgx/v5/stdlib" // Use pgx via database/sql
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	insertRunSQL = `INSERT INTO pipeline_runs (id, dag_id, state, started_at, ended_at)
VALUES (:id, :dag_id, :state, :started_at, :ended_at)`

	updateRunSQL = `UPDATE pipeline_runs SET state = :state, ended_at = :ended_at WHERE id = :id`

	upsertTaskSQL = `INSERT INTO pipeline_task_instances (run_id, task_id, state, attempts, started_at, ended_at, error)
VALUES (:run_id, :task_id, :state, :attempts, :started_at, :ended_at, :error)
ON CONFLICT (run_id, task_id) DO UPDATE SET
	state = EXCLUDED.state,
	attempts = EXCLUDED.attempts,
	started_at = EXCLUDED.started_at,
	ended_at = EXCLUDED.ended_at,
	error = EXCLUDED.error`

	listRunsSQL = `SELECT id, dag_id, state, started_at, ended_at FROM pipeline_runs
WHERE ($1 = '' OR dag_id = $1)
ORDER BY started_at DESC, id DESC
LIMIT $2`

	getRunSQL = `SELECT id, dag_id, state, started_at, ended_at FROM pipeline_runs WHERE id = $1`

	getTasksSQL = `SELECT run_id, task_id, state, attempts, started_at, ended_at, error
FROM pipeline_task_instances WHERE run_id = $1 ORDER BY started_at NULLS LAST, task_id`
)

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	URL          string
	MaxOpenConns int
}

// Postgres is a Store backed by PostgreSQL through sqlx and the pgx driver.
type Postgres struct {
	db *sqlx.DB
}

// OpenPostgres connects, pings and applies the embedded goose migrations.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// Configure pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(5)
	}
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	if err := migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// NewPostgres wraps an already migrated connection.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func migrate(db *sql.DB) error {
	// goose needs the plain *sql.DB that sqlx.DB wraps
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "failed to set goose dialect")
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return errors.Wrap(err, "failed to migrate db")
	}
	return nil
}

// StartRun inserts the run row. Task instances are written by FinishRun.
func (p *Postgres) StartRun(ctx context.Context, run RunRecord) error {
	if _, err := p.db.NamedExecContext(ctx, insertRunSQL, run); err != nil {
		return errors.Wrapf(err, "failed to insert run %s", run.ID)
	}
	return nil
}

// FinishRun updates the run and upserts its task instances in one transaction.
// An id that StartRun never saw returns ErrRunNotFound and nothing is written.
func (p *Postgres) FinishRun(ctx context.Context, run RunRecord) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.NamedExecContext(ctx, updateRunSQL, run)
	if err != nil {
		return errors.Wrapf(err, "failed to update run %s", run.ID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(ErrRunNotFound, "finish run %s", run.ID)
	}
	for _, task := range run.Tasks {
		task.RunID = run.ID
		if _, err := tx.NamedExecContext(ctx, upsertTaskSQL, task); err != nil {
			return errors.Wrapf(err, "failed to save task %s", task.TaskID)
		}
	}
	return errors.Wrap(tx.Commit(), "failed to commit run")
}

// ListRuns returns up to limit runs (20 when limit <= 0), newest first,
// without their task instances.
func (p *Postgres) ListRuns(ctx context.Context, dagID string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []RunRecord
	if err := p.db.SelectContext(ctx, &runs, listRunsSQL, dagID, limit); err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	return runs, nil
}

// GetRun loads a run and its task instances.
func (p *Postgres) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	var run RunRecord
	err := p.db.GetContext(ctx, &run, getRunSQL, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrRunNotFound, "%s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get run %s", id)
	}
	if err := p.db.SelectContext(ctx, &run.Tasks, getTasksSQL, id); err != nil {
		return nil, errors.Wrapf(err, "failed to get tasks of run %s", id)
	}
	return &run, nil
}

// Close closes the database connection.
func (p *Postgres) Close() error {
	return p.db.Close()
}
