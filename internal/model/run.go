package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one invocation of one or more pipeline stages.
type Run struct {
	ID        string     `json:"id"`
	Stages    []string   `json:"stages"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Stages   []StageResult `json:"stages"`
	RowsOut  int           `json:"rows_out"`
	Warnings int           `json:"warnings"`
	Error    string        `json:"error,omitempty"`
}

// RunStage is one stage execution within a run.
type RunStage struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    StageStatus  `json:"status"`
	Result    *StageResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// StageStatus represents the current state of a pipeline stage.
type StageStatus string

const (
	StageStatusRunning  StageStatus = "running"
	StageStatusComplete StageStatus = "complete"
	StageStatusFailed   StageStatus = "failed"
)

// StageResult holds the outcome of a pipeline stage.
type StageResult struct {
	Name     string         `json:"name"`
	Status   StageStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	RowsIn   int            `json:"rows_in"`
	RowsOut  int            `json:"rows_out"`
	Matched  int            `json:"matched"`
	Missed   int            `json:"missed"`
	Warnings map[string]int `json:"warnings,omitempty"`
	Output   string         `json:"output,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// WarningTotal sums the per-kind warning counts.
func (r StageResult) WarningTotal() int {
	n := 0
	for _, c := range r.Warnings {
		n += c
	}
	return n
}
