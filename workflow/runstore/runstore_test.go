package runstore

import (
	"context"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	defer store.Close()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, store.StartRun(ctx, RunRecord{
			ID:        id,
			DAGID:     "ad_click_training",
			State:     "running",
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, store.StartRun(ctx, RunRecord{ID: "other", DAGID: "serving", StartedAt: base}))

	ended := base.Add(90 * time.Minute)
	require.NoError(t, store.FinishRun(ctx, RunRecord{
		ID:        "run-b",
		DAGID:     "ad_click_training",
		State:     "success",
		StartedAt: base.Add(time.Hour),
		EndedAt:   &ended,
		Tasks: []TaskRecord{
			{TaskID: "load_data_task", State: "success", Attempts: 1},
			{TaskID: "build_save_model_task", State: "success", Attempts: 2},
		},
	}))

	runs, err := store.ListRuns(ctx, "ad_click_training", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
	assert.Nil(t, runs[1].Tasks, "list omits task instances")

	all, err := store.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	run, err := store.GetRun(ctx, "run-b")
	require.NoError(t, err)
	assert.Equal(t, "success", run.State)
	require.Len(t, run.Tasks, 2)
	assert.Equal(t, 2, run.Tasks[1].Attempts)

	// returned records are copies
	run.Tasks[0].State = "failed"
	again, err := store.GetRun(ctx, "run-b")
	require.NoError(t, err)
	assert.Equal(t, "success", again.Tasks[0].State)
}

func TestMemoryStoreUnknownRun(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	_, err := store.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	err = store.FinishRun(ctx, RunRecord{ID: "missing"})
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestOpenDriverSelection(t *testing.T) {
	store, err := Open(context.Background(), "memory", "", 0)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, store)

	_, err = Open(context.Background(), "sqlite", "", 0)
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	body, err := fs.ReadFile(migrations, names[0])
	require.NoError(t, err)
	sql := string(body)
	assert.True(t, strings.HasPrefix(sql, "-- +goose Up"))
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS pipeline_runs")
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS pipeline_task_instances")
}
