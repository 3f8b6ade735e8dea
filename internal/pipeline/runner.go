package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/girona-rent/internal/model"
	"github.com/sells-group/girona-rent/internal/monitoring"
	"github.com/sells-group/girona-rent/internal/store"
)

// Runner executes stages in order and records each one in the run ledger.
type Runner struct {
	store    store.Store
	metrics  *monitoring.Recorder
	textfile string
}

// NewRunner creates a Runner. metrics may be nil; textfile is where the
// metrics are written after the run, empty to skip.
func NewRunner(st store.Store, metrics *monitoring.Recorder, textfile string) *Runner {
	return &Runner{store: st, metrics: metrics, textfile: textfile}
}

// Run executes stages sequentially and stops at the first failure. A failed
// stage is not an error of Run itself: it is reported in the returned run's
// result and status. Run only errors when the ledger cannot be written.
func (r *Runner) Run(ctx context.Context, stages []Stage) (*model.Run, error) {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
	}
	run, err := r.store.CreateRun(ctx, names)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log := zap.L().With(zap.String("run_id", run.ID))
	log.Info("pipeline: run started", zap.Strings("stages", names))

	result := &model.RunResult{}
	for _, s := range stages {
		res, err := r.runStage(ctx, run.ID, s, log)
		if err != nil {
			return nil, err
		}
		result.Stages = append(result.Stages, *res)
		result.Warnings += res.WarningTotal()
		result.RowsOut = res.RowsOut
		if res.Status == model.StageStatusFailed {
			result.Error = "stage " + s.Name + ": " + res.Error
			break
		}
	}

	if err := r.store.UpdateRunResult(ctx, run.ID, result); err != nil {
		return nil, eris.Wrap(err, "pipeline: update run result")
	}
	if r.metrics != nil {
		if err := r.metrics.WriteTextfile(r.textfile); err != nil {
			log.Warn("pipeline: metrics textfile not written", zap.Error(err))
		}
	}

	final, err := r.store.GetRun(ctx, run.ID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: reload run")
	}
	if result.Error != "" {
		log.Error("pipeline: run failed", zap.String("error", result.Error))
	} else {
		log.Info("pipeline: run complete",
			zap.Int("rows_out", result.RowsOut),
			zap.Int("warnings", result.Warnings),
		)
	}
	return final, nil
}

func (r *Runner) runStage(ctx context.Context, runID string, s Stage, log *zap.Logger) (*model.StageResult, error) {
	rs, err := r.store.CreateStage(ctx, runID, s.Name)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: create stage %s", s.Name)
	}
	log = log.With(zap.String("stage", s.Name))
	log.Info("pipeline: stage started")

	start := time.Now()
	stats, runErr := s.Run(ctx)
	if stats == nil {
		stats = &Stats{}
	}
	res := stats.Result(s.Name)
	res.Duration = time.Since(start).Milliseconds()
	if runErr != nil {
		res.Status = model.StageStatusFailed
		res.Error = runErr.Error()
	} else {
		res.Status = model.StageStatusComplete
		res.Output = s.Output
	}

	if err := r.store.CompleteStage(ctx, rs.ID, &res); err != nil {
		return nil, eris.Wrapf(err, "pipeline: complete stage %s", s.Name)
	}
	if _, err := r.store.RecordWarnings(ctx, rs.ID, stats.Warnings); err != nil {
		return nil, eris.Wrapf(err, "pipeline: record warnings for %s", s.Name)
	}
	if r.metrics != nil {
		r.metrics.ObserveStage(res)
	}
	logWarnings(log, stats)

	if runErr != nil {
		log.Error("pipeline: stage failed", zap.Error(runErr), zap.Int64("duration_ms", res.Duration))
	} else {
		log.Info("pipeline: stage complete",
			zap.Int("rows_in", res.RowsIn),
			zap.Int("rows_out", res.RowsOut),
			zap.Int("matched", res.Matched),
			zap.Int("missed", res.Missed),
			zap.Int64("duration_ms", res.Duration),
			zap.String("output", res.Output),
		)
	}
	return &res, nil
}
