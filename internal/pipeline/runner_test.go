package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/girona-rent/internal/lookup"
	"github.com/sells-group/girona-rent/internal/model"
	"github.com/sells-group/girona-rent/internal/monitoring"
	"github.com/sells-group/girona-rent/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func fakeStage(name string, stats *Stats, err error) Stage {
	return Stage{
		Name:   name,
		Output: name + ".csv",
		Run:    func(context.Context) (*Stats, error) { return stats, err },
	}
}

func TestRunner_Complete(t *testing.T) {
	st := newTestStore(t)
	rec := monitoring.NewRecorder()
	textfile := filepath.Join(t.TempDir(), "girona.prom")
	r := NewRunner(st, rec, textfile)

	assignStats := &Stats{RowsIn: 10, RowsOut: 8, Matched: 8, Missed: 2}
	assignStats.Warn(lookup.WarnBadCoordinates, 3, "lat=%q", "x")
	viewStats := &Stats{RowsIn: 8, RowsOut: 7, Matched: 7, Missed: 1}

	run, err := r.Run(context.Background(), []Stage{
		fakeStage("assign", assignStats, nil),
		fakeStage("view", viewStats, nil),
	})
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, []string{"assign", "view"}, run.Stages)
	require.NotNil(t, run.Result)
	assert.Empty(t, run.Result.Error)
	assert.Equal(t, 7, run.Result.RowsOut)
	assert.Equal(t, 1, run.Result.Warnings)
	require.Len(t, run.Result.Stages, 2)
	assert.Equal(t, "assign.csv", run.Result.Stages[0].Output)

	stages, err := st.ListStages(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, model.StageStatusComplete, stages[0].Status)
	warnings, err := st.ListWarnings(context.Background(), stages[0].ID, 0)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, lookup.WarnBadCoordinates, warnings[0].Kind)
	assert.Equal(t, 3, warnings[0].Row)

	n, err := testutil.GatherAndCount(rec.Registry(), "girona_rent_stage_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per stage")
	_, err = os.Stat(textfile)
	assert.NoError(t, err)
}

func TestRunner_StopsAtFirstFailure(t *testing.T) {
	st := newTestStore(t)
	r := NewRunner(st, nil, "")

	called := false
	run, err := r.Run(context.Background(), []Stage{
		fakeStage("sections", &Stats{RowsIn: 4, RowsOut: 4}, nil),
		fakeStage("assign", nil, eris.New("pipeline: read listings: no such file")),
		{Name: "view", Run: func(context.Context) (*Stats, error) { called = true; return &Stats{}, nil }},
	})
	require.NoError(t, err)

	assert.False(t, called, "stages after a failure do not run")
	assert.Equal(t, model.RunStatusFailed, run.Status)
	require.NotNil(t, run.Result)
	assert.Contains(t, run.Result.Error, "stage assign: ")
	assert.Contains(t, run.Result.Error, "no such file")
	require.Len(t, run.Result.Stages, 2)
	assert.Equal(t, model.StageStatusFailed, run.Result.Stages[1].Status)
	assert.Empty(t, run.Result.Stages[1].Output)

	stages, err := st.ListStages(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, stages, 2)
}

func TestRunner_NoStages(t *testing.T) {
	r := NewRunner(newTestStore(t), nil, "")
	run, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
}
