package pipeline

import (
	"context"

	"github.com/sells-group/girona-rent/internal/geo"
	"github.com/sells-group/girona-rent/internal/lookup"
	"github.com/sells-group/girona-rent/internal/table"
)

// ServiceOptions configures FlagServices.
type ServiceOptions struct {
	Lat        string
	Lon        string
	RadiusM    float64
	Categories []string
	// CRS is the metric system distances are measured in. The haversine
	// metric ignores it and works on WGS84.
	CRS     geo.CRS
	Metric  lookup.Metric
	Workers int
}

func (o ServiceOptions) indexCRS() geo.CRS {
	if o.Metric == lookup.MetricHaversine {
		return geo.WGS84
	}
	return o.CRS
}

// LoadServices reads service points from t and projects them into crs. Rows
// with unparseable coordinates are skipped with a warning.
func LoadServices(t *table.Table, ss ServicesSchema, crs geo.CRS, stats *Stats) ([]lookup.Service, error) {
	if err := t.RequireColumns(ss.Lat, ss.Lon, ss.Category); err != nil {
		return nil, lookup.AsConfiguration(err)
	}
	project, err := geo.Transform(geo.WGS84, crs)
	if err != nil {
		return nil, lookup.AsConfiguration(err)
	}

	out := make([]lookup.Service, 0, t.Len())
	for row := 0; row < t.Len(); row++ {
		p, ok := parseLatLon(t.Value(row, ss.Lat), t.Value(row, ss.Lon))
		if !ok {
			stats.Warn(lookup.WarnBadCoordinates, row, "service lat=%q lon=%q", t.Value(row, ss.Lat), t.Value(row, ss.Lon))
			continue
		}
		x, y := project(p.X, p.Y)
		out = append(out, lookup.Service{
			Point:    geo.Point{X: x, Y: y, CRS: crs},
			Category: t.Value(row, ss.Category),
		})
	}
	return out, nil
}

// FlagServices appends one 1/0 column per category, has_{cat}_within_{r}m,
// telling whether a service of that category lies within the radius of the
// listing. Listings with unparseable coordinates get empty flags.
func FlagServices(ctx context.Context, rent, services *table.Table, ss ServicesSchema, opts ServiceOptions) (*table.Table, *Stats, error) {
	if err := rent.RequireColumns(opts.Lat, opts.Lon); err != nil {
		return nil, nil, lookup.AsConfiguration(err)
	}
	crs := opts.indexCRS()

	stats := &Stats{RowsIn: rent.Len(), RowsOut: rent.Len()}
	svcStats := &Stats{}
	points, err := LoadServices(services, ss, crs, svcStats)
	if err != nil {
		return nil, nil, err
	}
	ix, err := lookup.NewRadiusIndex(points, lookup.RadiusOptions{
		RadiusM:    opts.RadiusM,
		Categories: opts.Categories,
		CRS:        crs,
		Metric:     opts.Metric,
	})
	if err != nil {
		return nil, nil, err
	}
	if n := ix.Skipped(); n > 0 {
		svcStats.Warn(lookup.WarnUnknownCategory, -1, "%d services outside configured categories", n)
	}

	columns := make([]string, len(opts.Categories))
	for i, c := range opts.Categories {
		columns[i] = lookup.ColumnName(c, opts.RadiusM)
	}
	project, err := geo.Transform(geo.WGS84, crs)
	if err != nil {
		return nil, nil, lookup.AsConfiguration(err)
	}

	results, err := mapRows(ctx, rent.Len(), opts.Workers, func(row int) (rowResult, error) {
		res := rowResult{values: make([]string, len(columns))}
		p, ok := parseLatLon(rent.Value(row, opts.Lat), rent.Value(row, opts.Lon))
		if !ok {
			res.warn(lookup.WarnBadCoordinates, row, "lat=%q lon=%q", rent.Value(row, opts.Lat), rent.Value(row, opts.Lon))
			return res, nil
		}
		x, y := project(p.X, p.Y)
		flags, err := ix.Flags(geo.Point{X: x, Y: y, CRS: crs})
		if err != nil {
			return res, err
		}
		for i, c := range opts.Categories {
			if flags[c] {
				res.values[i] = "1"
				res.matched = true
			} else {
				res.values[i] = "0"
			}
		}
		return res, nil
	})
	if err != nil {
		return nil, nil, err
	}

	out := rent.Clone()
	if err := out.AddColumns(columns, collect(results, stats)); err != nil {
		return nil, nil, lookup.AsConfiguration(err)
	}
	stats.Warnings = append(svcStats.Warnings, stats.Warnings...)
	return out, stats, nil
}
