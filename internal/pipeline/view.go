package pipeline

import (
	"github.com/shopspring/decimal"

	"github.com/sells-group/girona-rent/internal/lookup"
	"github.com/sells-group/girona-rent/internal/table"
)

// ColPricePerM2 is the derived column of the map view.
const ColPricePerM2 = "price_per_m2"

// BuildView derives price_per_m2 and keeps the columns the web map needs.
// Rows missing any of them, or with a non-numeric price or a non-positive
// area, are dropped.
func BuildView(rent *table.Table, ls ListingsSchema) (*table.Table, *Stats, error) {
	need := []string{ls.Lat, ls.Lon, ColNeighbourhood, ls.Price, ls.Area, ls.Year}
	if err := rent.RequireColumns(need...); err != nil {
		return nil, nil, lookup.AsConfiguration(err)
	}

	header := []string{ls.Lat, ls.Lon, ColNeighbourhood, ls.Price, ls.Area, ColPricePerM2, ls.Year}
	stats := &Stats{RowsIn: rent.Len()}
	var rows [][]string
	for row := 0; row < rent.Len(); row++ {
		complete := true
		for _, c := range need {
			if rent.Value(row, c) == "" {
				complete = false
				break
			}
		}
		if !complete {
			stats.Missed++
			continue
		}
		price, err := decimal.NewFromString(rent.Value(row, ls.Price))
		if err != nil {
			stats.Missed++
			continue
		}
		area, err := decimal.NewFromString(rent.Value(row, ls.Area))
		if err != nil || !area.IsPositive() {
			stats.Missed++
			continue
		}
		stats.Matched++
		rows = append(rows, []string{
			rent.Value(row, ls.Lat),
			rent.Value(row, ls.Lon),
			rent.Value(row, ColNeighbourhood),
			rent.Value(row, ls.Price),
			rent.Value(row, ls.Area),
			price.Div(area).StringFixed(2),
			rent.Value(row, ls.Year),
		})
	}
	out := table.New(header, rows)
	stats.RowsOut = out.Len()
	return out, stats, nil
}
