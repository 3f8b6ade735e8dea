// Package monitoring exports pipeline stage metrics in the Prometheus text
// format and summarises recent runs from the ledger.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/sells-group/girona-rent/internal/model"
)

// Recorder accumulates per-stage metrics on a private registry so batch
// invocations can flush them to a node_exporter textfile.
type Recorder struct {
	registry *prometheus.Registry

	rows        *prometheus.CounterVec
	lookups     *prometheus.CounterVec
	warnings    *prometheus.CounterVec
	stages      *prometheus.CounterVec
	duration    *prometheus.GaugeVec
	lastSuccess *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "girona_rent",
			Name:      "stage_rows_total",
			Help:      "Rows read and written by pipeline stages.",
		}, []string{"stage", "direction"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "girona_rent",
			Name:      "stage_lookups_total",
			Help:      "Per-row lookups by outcome.",
		}, []string{"stage", "outcome"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "girona_rent",
			Name:      "stage_warnings_total",
			Help:      "Data quality warnings by stage and kind.",
		}, []string{"stage", "kind"}),
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "girona_rent",
			Name:      "stage_runs_total",
			Help:      "Stage executions by final status.",
		}, []string{"stage", "status"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "girona_rent",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of the most recent execution of each stage.",
		}, []string{"stage"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "girona_rent",
			Name:      "stage_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful execution of each stage.",
		}, []string{"stage"}),
	}
	r.registry.MustRegister(r.rows, r.lookups, r.warnings, r.stages, r.duration, r.lastSuccess)
	return r
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveStage records one finished stage. Failed stages count toward
// stage_runs_total but leave the last-success gauge untouched.
func (r *Recorder) ObserveStage(res model.StageResult) {
	stage := res.Name
	r.stages.WithLabelValues(stage, string(res.Status)).Inc()
	r.duration.WithLabelValues(stage).Set(float64(res.Duration) / 1000)
	r.rows.WithLabelValues(stage, "in").Add(float64(res.RowsIn))
	r.rows.WithLabelValues(stage, "out").Add(float64(res.RowsOut))
	if res.Matched > 0 || res.Missed > 0 {
		r.lookups.WithLabelValues(stage, "matched").Add(float64(res.Matched))
		r.lookups.WithLabelValues(stage, "missed").Add(float64(res.Missed))
	}
	for kind, n := range res.Warnings {
		r.warnings.WithLabelValues(stage, kind).Add(float64(n))
	}
	if res.Status == model.StageStatusComplete {
		r.lastSuccess.WithLabelValues(stage).SetToCurrentTime()
	}
}

// WriteTextfile atomically writes the registry to path. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return eris.Wrapf(prometheus.WriteToTextfile(path, r.registry), "monitoring: write textfile %s", path)
}
