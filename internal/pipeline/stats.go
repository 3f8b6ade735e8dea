package pipeline

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/girona-rent/internal/lookup"
	"github.com/sells-group/girona-rent/internal/model"
)

// Stats counts what a stage read, wrote and matched.
type Stats struct {
	RowsIn   int
	RowsOut  int
	Matched  int
	Missed   int
	Warnings []lookup.Warning
}

// Warn records a data quality warning for row.
func (s *Stats) Warn(kind lookup.WarningKind, row int, format string, args ...any) {
	s.Warnings = append(s.Warnings, lookup.Warning{Kind: kind, Row: row, Detail: fmt.Sprintf(format, args...)})
}

// WarningCounts returns the number of warnings per kind.
func (s *Stats) WarningCounts() map[string]int {
	if len(s.Warnings) == 0 {
		return nil
	}
	out := make(map[string]int)
	for _, w := range s.Warnings {
		out[string(w.Kind)]++
	}
	return out
}

// Count returns how many warnings of kind were recorded.
func (s *Stats) Count(kind lookup.WarningKind) int {
	n := 0
	for _, w := range s.Warnings {
		if w.Kind == kind {
			n++
		}
	}
	return n
}

// Result converts the stats to a ledger stage result.
func (s *Stats) Result(name string) model.StageResult {
	return model.StageResult{
		Name:     name,
		RowsIn:   s.RowsIn,
		RowsOut:  s.RowsOut,
		Matched:  s.Matched,
		Missed:   s.Missed,
		Warnings: s.WarningCounts(),
	}
}

// logWarnings writes each warning at debug and one summary line per kind at warn.
func logWarnings(log *zap.Logger, s *Stats) {
	for _, w := range s.Warnings {
		log.Debug("pipeline: data quality warning",
			zap.String("kind", string(w.Kind)),
			zap.Int("row", w.Row),
			zap.String("detail", w.Detail),
		)
	}
	counts := s.WarningCounts()
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		log.Warn("pipeline: rows with data quality warnings",
			zap.String("kind", k),
			zap.Int("count", counts[k]),
		)
	}
}
