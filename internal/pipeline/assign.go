package pipeline

import (
	"context"
	"strconv"

	"github.com/sells-group/girona-rent/internal/geo"
	"github.com/sells-group/girona-rent/internal/lookup"
	"github.com/sells-group/girona-rent/internal/table"
)

// Columns appended by AssignSections.
const (
	ColDistrict      = "districte"
	ColSection       = "section"
	ColNeighbourhood = "barri_oficial"
)

// AssignColumns lists, in order, the columns AssignSections appends.
var AssignColumns = []string{
	ColDistrict, ColSection, ColDistrictID, ColSectionID,
	ColCensusTractINE, ColCensusTractIDESCAT, ColNeighbourhood,
}

// CombineListings stacks observed and synthetic listings. Observed listings
// without a yearColumn get one filled with defaultYear first.
func CombineListings(observed, synthetic *table.Table, yearColumn string, defaultYear int) *table.Table {
	observed = observed.Clone()
	observed.AddColumnIfMissing(yearColumn, strconv.Itoa(defaultYear))
	return table.Concat(observed, synthetic)
}

// AssignOptions configures AssignSections.
type AssignOptions struct {
	Lat string
	Lon string
	// KeepUnassigned retains rows that fall in no section, with empty codes.
	KeepUnassigned bool
	Workers        int
}

// AssignSections appends the census section attributes of each listing's
// (lat, lon). Listings with unparseable coordinates count as unassigned.
func AssignSections(ctx context.Context, rent *table.Table, a *lookup.Assignor, opts AssignOptions) (*table.Table, *Stats, error) {
	if err := rent.RequireColumns(opts.Lat, opts.Lon); err != nil {
		return nil, nil, lookup.AsConfiguration(err)
	}
	project, err := geo.Transform(geo.WGS84, a.CRS())
	if err != nil {
		return nil, nil, lookup.AsConfiguration(err)
	}

	results, err := mapRows(ctx, rent.Len(), opts.Workers, func(row int) (rowResult, error) {
		res := rowResult{values: make([]string, len(AssignColumns))}
		p, ok := parseLatLon(rent.Value(row, opts.Lat), rent.Value(row, opts.Lon))
		if !ok {
			res.warn(lookup.WarnBadCoordinates, row, "lat=%q lon=%q", rent.Value(row, opts.Lat), rent.Value(row, opts.Lon))
			return res, nil
		}
		x, y := project(p.X, p.Y)
		as, err := a.Assign(geo.Point{X: x, Y: y, CRS: a.CRS()})
		if err != nil {
			return res, err
		}
		if !as.Assigned {
			return res, nil
		}
		if as.Duplicates > 0 {
			res.warn(lookup.WarnDuplicateCoverage, row, "point inside %d overlapping sections, kept %s", as.Duplicates+1, as.CensusTractINE)
		}
		res.matched = true
		res.values = []string{
			as.District, as.Section, as.DistrictID, as.SectionID,
			as.CensusTractINE, as.CensusTractIDESCAT, as.Neighbourhood,
		}
		return res, nil
	})
	if err != nil {
		return nil, nil, err
	}

	stats := &Stats{RowsIn: rent.Len()}
	out := rent.Clone()
	if err := out.AddColumns(AssignColumns, collect(results, stats)); err != nil {
		return nil, nil, lookup.AsConfiguration(err)
	}
	if !opts.KeepUnassigned {
		out = out.Filter(func(row int) bool { return results[row].matched })
	}
	stats.RowsOut = out.Len()
	return out, stats, nil
}

// parseLatLon parses decimal degrees into a WGS84 point.
func parseLatLon(lat, lon string) (geo.Point, bool) {
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return geo.Point{}, false
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return geo.Point{}, false
	}
	p, err := geo.LatLon(la, lo)
	if err != nil {
		return geo.Point{}, false
	}
	return p, true
}
