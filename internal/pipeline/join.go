package pipeline

import (
	"context"

	"github.com/sells-group/girona-rent/internal/lookup"
	"github.com/sells-group/girona-rent/internal/table"
)

// JoinOptions configures an as-of join.
type JoinOptions struct {
	// ReferenceYear is the rental column holding each row's reference year.
	ReferenceYear string
	KeyPadWidth   int
	Workers       int
}

// LoadRecords turns a reference table into time-stamped records. The year
// comes from js.Year, or js.YearFallback when the table lacks js.Year. Rows
// whose year is missing or does not parse are kept without a year, which
// excludes them from the index; unparseable years are warned about.
func LoadRecords(ref *table.Table, js JoinSchema, stats *Stats) ([]lookup.Record, error) {
	if err := ref.RequireColumns(js.Key); err != nil {
		return nil, lookup.AsConfiguration(err)
	}
	yearCol := js.Year
	if yearCol == "" || !ref.HasColumn(yearCol) {
		yearCol = js.YearFallback
	}
	if yearCol == "" || !ref.HasColumn(yearCol) {
		return nil, lookup.Configurationf("pipeline: reference table has no year column (tried %q, %q)", js.Year, js.YearFallback)
	}
	for _, f := range js.Fields {
		if err := ref.RequireColumns(f.Source); err != nil {
			return nil, lookup.AsConfiguration(err)
		}
	}

	records := make([]lookup.Record, ref.Len())
	for row := range records {
		raw := ref.Value(row, yearCol)
		year, ok := lookup.ParseYear(raw)
		if !ok && raw != "" {
			stats.Warn(lookup.WarnBadYear, row, "%s=%q", yearCol, raw)
		}
		fields := make(map[string]string, len(js.Fields))
		for _, f := range js.Fields {
			fields[f.Column()] = ref.Value(row, f.Source)
		}
		records[row] = lookup.Record{
			Key:     ref.Value(row, js.Key),
			Year:    year,
			HasYear: ok,
			Fields:  fields,
			Row:     row,
		}
	}
	return records, nil
}

// JoinAsOf appends, for each rental row, the fields of the latest record for
// its key whose year is not after the row's reference year. Rows with no such
// record, or with an unparseable reference year, get empty fields.
func JoinAsOf(ctx context.Context, rent *table.Table, ix *lookup.AsOfIndex, rentKey string, columns []string, opts JoinOptions) (*table.Table, *Stats, error) {
	if err := rent.RequireColumns(rentKey, opts.ReferenceYear); err != nil {
		return nil, nil, lookup.AsConfiguration(err)
	}

	results, err := mapRows(ctx, rent.Len(), opts.Workers, func(row int) (rowResult, error) {
		res := rowResult{values: make([]string, len(columns))}
		raw := rent.Value(row, opts.ReferenceYear)
		ref, ok := lookup.ParseYear(raw)
		if !ok {
			res.warn(lookup.WarnBadReferenceYear, row, "%s=%q", opts.ReferenceYear, raw)
			return res, nil
		}
		rec, ok := ix.LatestAsOf(rent.Value(row, rentKey), ref)
		if !ok {
			return res, nil
		}
		res.matched = true
		for i, c := range columns {
			res.values[i] = rec.Fields[c]
		}
		return res, nil
	})
	if err != nil {
		return nil, nil, err
	}

	stats := &Stats{RowsIn: rent.Len(), RowsOut: rent.Len()}
	out := rent.Clone()
	if err := out.AddColumns(columns, collect(results, stats)); err != nil {
		return nil, nil, lookup.AsConfiguration(err)
	}
	return out, stats, nil
}

// joinReference loads ref, indexes it and joins it onto rent. Warnings about
// the reference table are reported with the join's.
func joinReference(ctx context.Context, rent, ref *table.Table, js JoinSchema, opts JoinOptions) (*table.Table, *Stats, error) {
	refStats := &Stats{}
	records, err := LoadRecords(ref, js, refStats)
	if err != nil {
		return nil, nil, err
	}
	ix := lookup.NewAsOfIndex(records, lookup.KeyNormalizer{PadWidth: opts.KeyPadWidth})

	out, stats, err := JoinAsOf(ctx, rent, ix, js.RentKey, js.Columns(), opts)
	if err != nil {
		return nil, nil, err
	}
	stats.Warnings = append(refStats.Warnings, stats.Warnings...)
	return out, stats, nil
}

// JoinCertificates attaches the latest energy certificate of each rental's
// census tract issued no later than the rental year.
func JoinCertificates(ctx context.Context, rent, certs *table.Table, js JoinSchema, opts JoinOptions) (*table.Table, *Stats, error) {
	return joinReference(ctx, rent, certs, js, opts)
}

// JoinSociodemographic attaches the latest sociodemographic indicators of
// each rental's census tract published no later than the rental year.
func JoinSociodemographic(ctx context.Context, rent, socio *table.Table, js JoinSchema, opts JoinOptions) (*table.Table, *Stats, error) {
	return joinReference(ctx, rent, socio, js, opts)
}
