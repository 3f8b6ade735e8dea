package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/girona-rent/internal/model"
	"github.com/sells-group/girona-rent/internal/store"
)

// RunSnapshot summarises the run ledger over a lookback window.
type RunSnapshot struct {
	Total       int            `json:"total"`
	Complete    int            `json:"complete"`
	Failed      int            `json:"failed"`
	Running     int            `json:"running"`
	FailRate    float64        `json:"fail_rate"`
	AvgRowsOut  int            `json:"avg_rows_out"`
	Warnings    int            `json:"warnings"`
	StageCounts map[string]int `json:"stage_counts"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the slice of store.Store the collector needs.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers run statistics from the ledger.
type Collector struct {
	runs  RunLister
	limit int
	now   func() time.Time
}

// NewCollector creates a collector reading at most limit recent runs.
func NewCollector(runs RunLister, limit int) *Collector {
	if limit <= 0 {
		limit = 1000
	}
	return &Collector{runs: runs, limit: limit, now: time.Now}
}

// Collect builds a snapshot of runs created within the last lookbackHours.
// A non-positive lookback includes every listed run.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*RunSnapshot, error) {
	now := c.now().UTC()
	snap := &RunSnapshot{
		StageCounts:   make(map[string]int),
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{Limit: c.limit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	var rowsOut, withResult int
	for _, r := range runs {
		if lookbackHours > 0 && r.CreatedAt.Before(cutoff) {
			continue
		}
		snap.Total++
		switch r.Status {
		case model.RunStatusComplete:
			snap.Complete++
		case model.RunStatusFailed:
			snap.Failed++
		case model.RunStatusRunning:
			snap.Running++
		}
		for _, s := range r.Stages {
			snap.StageCounts[s]++
		}
		if r.Result != nil {
			withResult++
			rowsOut += r.Result.RowsOut
			snap.Warnings += r.Result.Warnings
		}
	}

	if finished := snap.Complete + snap.Failed; finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}
	if withResult > 0 {
		snap.AvgRowsOut = rowsOut / withResult
	}
	return snap, nil
}
