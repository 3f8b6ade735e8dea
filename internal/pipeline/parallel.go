package pipeline

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/girona-rent/internal/lookup"
)

// mapRows calls fn for every row in [0, n) on at most workers goroutines and
// returns the results in row order. The first error cancels the remaining rows.
func mapRows[T any](ctx context.Context, n, workers int, fn func(row int) (T, error)) ([]T, error) {
	if workers < 1 {
		workers = 1
	}
	out := make([]T, n)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			v, err := fn(i)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: map rows")
	}
	return out, nil
}

// rowResult is what a per-row lookup returns: the appended cells, whether the
// lookup matched, and any warnings raised for the row.
type rowResult struct {
	values   []string
	matched  bool
	warnings []lookup.Warning
}

func (r *rowResult) warn(kind lookup.WarningKind, row int, format string, args ...any) {
	r.warnings = append(r.warnings, lookup.Warning{Kind: kind, Row: row, Detail: fmt.Sprintf(format, args...)})
}

// collect folds per-row results into stats, in row order, and returns the
// cell values ready for table.AddColumns.
func collect(results []rowResult, stats *Stats) [][]string {
	values := make([][]string, len(results))
	for i, r := range results {
		values[i] = r.values
		if r.matched {
			stats.Matched++
		} else {
			stats.Missed++
		}
		stats.Warnings = append(stats.Warnings, r.warnings...)
	}
	return values
}
