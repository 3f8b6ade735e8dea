package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/girona-rent/internal/model"
	"github.com/sells-group/girona-rent/internal/store"
)

type mockLister struct {
	runs  []model.Run
	err   error
	limit int
}

func (m *mockLister) ListRuns(_ context.Context, filter store.RunFilter) ([]model.Run, error) {
	m.limit = filter.Limit
	return m.runs, m.err
}

func TestCollector_Collect(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lister := &mockLister{runs: []model.Run{
		{Stages: []string{"run"}, Status: model.RunStatusComplete, CreatedAt: now.Add(-time.Hour),
			Result: &model.RunResult{RowsOut: 100, Warnings: 3}},
		{Stages: []string{"assign"}, Status: model.RunStatusFailed, CreatedAt: now.Add(-2 * time.Hour),
			Result: &model.RunResult{RowsOut: 0, Error: "boom"}},
		{Stages: []string{"assign"}, Status: model.RunStatusRunning, CreatedAt: now.Add(-3 * time.Hour)},
		{Stages: []string{"view"}, Status: model.RunStatusComplete, CreatedAt: now.Add(-48 * time.Hour),
			Result: &model.RunResult{RowsOut: 999}},
	}}

	c := NewCollector(lister, 0)
	c.now = func() time.Time { return now }

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, 1000, lister.limit)
	assert.Equal(t, 3, snap.Total)
	assert.Equal(t, 1, snap.Complete)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, snap.Running)
	assert.InDelta(t, 0.5, snap.FailRate, 1e-9)
	assert.Equal(t, 50, snap.AvgRowsOut)
	assert.Equal(t, 3, snap.Warnings)
	assert.Equal(t, map[string]int{"run": 1, "assign": 2}, snap.StageCounts)

	all, err := c.Collect(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 4, all.Total)
}

func TestCollector_Empty(t *testing.T) {
	snap, err := NewCollector(&mockLister{}, 10).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Zero(t, snap.Total)
	assert.Zero(t, snap.FailRate)
}

func TestCollector_ListError(t *testing.T) {
	_, err := NewCollector(&mockLister{err: errors.New("db down")}, 10).Collect(context.Background(), 24)
	assert.ErrorContains(t, err, "monitoring: list runs")
}
