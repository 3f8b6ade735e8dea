package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/girona-rent/internal/lookup"
	"github.com/sells-group/girona-rent/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

var _ Store = (*SQLiteStore)(nil)

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []string{"assign", "services"})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"assign", "services"}, got.Stages)
	assert.Nil(t, got.Result)

	result := &model.RunResult{
		Stages:   []model.StageResult{{Name: "assign", Status: model.StageStatusComplete, RowsOut: 8}},
		RowsOut:  8,
		Warnings: 2,
	}
	require.NoError(t, st.UpdateRunResult(ctx, run.ID, result))

	got, err = st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 8, got.Result.RowsOut)
	assert.Equal(t, "assign", got.Result.Stages[0].Name)
}

func TestSQLite_UpdateRunResult_Failed(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []string{"view"})
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunResult(ctx, run.ID, &model.RunResult{Error: "boom"}))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Result.Error)
}

func TestSQLite_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetRun(ctx, "missing")
	assert.ErrorContains(t, err, "run not found")

	assert.ErrorContains(t, st.UpdateRunStatus(ctx, "missing", model.RunStatusFailed), "run not found")
	assert.ErrorContains(t, st.UpdateRunResult(ctx, "missing", &model.RunResult{}), "run not found")
	assert.ErrorContains(t, st.CompleteStage(ctx, "missing", &model.StageResult{Status: model.StageStatusComplete}), "stage not found")
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := st.CreateRun(ctx, []string{"sections"})
	require.NoError(t, err)
	second, err := st.CreateRun(ctx, []string{"assign"})
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, first.ID, model.RunStatusFailed))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	failed, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, first.ID, failed[0].ID)

	page, err := st.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)
}

func TestSQLite_Stages(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []string{"assign", "certificates"})
	require.NoError(t, err)

	assign, err := st.CreateStage(ctx, run.ID, "assign")
	require.NoError(t, err)
	assert.Equal(t, model.StageStatusRunning, assign.Status)

	certs, err := st.CreateStage(ctx, run.ID, "certificates")
	require.NoError(t, err)

	require.NoError(t, st.CompleteStage(ctx, assign.ID, &model.StageResult{
		Name:     "assign",
		Status:   model.StageStatusComplete,
		RowsIn:   10,
		RowsOut:  9,
		Missed:   1,
		Warnings: map[string]int{"bad_coordinates": 1},
	}))

	stages, err := st.ListStages(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, "assign", stages[0].Name)
	assert.Equal(t, model.StageStatusComplete, stages[0].Status)
	require.NotNil(t, stages[0].Result)
	assert.Equal(t, 1, stages[0].Result.Warnings["bad_coordinates"])
	assert.Equal(t, certs.ID, stages[1].ID)
	assert.Nil(t, stages[1].Result)

	none, err := st.ListStages(ctx, "other-run")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_Warnings(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []string{"assign"})
	require.NoError(t, err)
	stage, err := st.CreateStage(ctx, run.ID, "assign")
	require.NoError(t, err)

	n, err := st.RecordWarnings(ctx, stage.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	warnings := []lookup.Warning{
		{Kind: lookup.WarnBadCoordinates, Row: 3, Detail: `lat "x"`},
		{Kind: lookup.WarnDuplicateCoverage, Row: 7},
	}
	n, err = st.RecordWarnings(ctx, stage.ID, warnings)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := st.ListWarnings(ctx, stage.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, warnings, got)

	got, err = st.ListWarnings(ctx, stage.ID, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
