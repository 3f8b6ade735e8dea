package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tidwall/rtree"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/girona-rent/internal/geo"
	"github.com/sells-group/girona-rent/internal/layer"
	"github.com/sells-group/girona-rent/internal/lookup"
	"github.com/sells-group/girona-rent/internal/table"
)

// Columns of the resolved sections table besides the raw layer labels.
const (
	ColDistrictID         = "district_id"
	ColSectionID          = "section_id"
	ColCensusTractINE     = "census_tract_INE"
	ColCensusTractIDESCAT = "census_tract_IDESCAT"
)

// SectionOptions configures ResolveSections.
type SectionOptions struct {
	Schema        SectionsSchema
	INEPrefix     string
	IDESCATPrefix string
}

type sectionKey struct {
	district int
	section  int
}

type dissolved struct {
	key      sectionKey
	district string
	section  string
	geometry *geom.MultiPolygon
}

// ResolveSections dissolves the section layer by (district, section), picks
// for each section the neighbourhood with the largest overlap, and returns the
// sections in WGS84 sorted by district then section. Overlap is measured in
// the neighbourhood layer's CRS. Ties go to the earlier neighbourhood.
func ResolveSections(sections, neighbourhoods *layer.Layer, opts SectionOptions) ([]lookup.Section, *Stats, error) {
	sch := opts.Schema
	if err := sections.RequireFields(sch.District, sch.Section); err != nil {
		return nil, nil, lookup.AsConfiguration(err)
	}
	if err := neighbourhoods.RequireFields(sch.Neighbourhood); err != nil {
		return nil, nil, lookup.AsConfiguration(err)
	}
	if len(neighbourhoods.Features) == 0 {
		return nil, nil, lookup.Configurationf("pipeline: neighbourhood layer %s is empty", neighbourhoods.Name)
	}

	work, err := sections.Reproject(neighbourhoods.CRS)
	if err != nil {
		return nil, nil, lookup.AsConfiguration(eris.Wrap(err, "pipeline: reproject sections"))
	}

	stats := &Stats{RowsIn: len(work.Features)}
	groups, err := dissolve(work, sch, stats)
	if err != nil {
		return nil, nil, err
	}

	var tree rtree.RTreeG[int]
	for i, f := range neighbourhoods.Features {
		b := f.Geometry.Bounds()
		tree.Insert([2]float64{b.Min(0), b.Min(1)}, [2]float64{b.Max(0), b.Max(1)}, i)
	}

	toWGS84, err := geo.Transform(neighbourhoods.CRS, geo.WGS84)
	if err != nil {
		return nil, nil, lookup.AsConfiguration(err)
	}

	out := make([]lookup.Section, 0, len(groups))
	for _, g := range groups {
		best, bestArea := -1, 0.0
		b := g.geometry.Bounds()
		var cands []int
		tree.Search([2]float64{b.Min(0), b.Min(1)}, [2]float64{b.Max(0), b.Max(1)},
			func(_, _ [2]float64, i int) bool {
				cands = append(cands, i)
				return true
			})
		sort.Ints(cands)
		for _, i := range cands {
			if a := geo.IntersectionArea(g.geometry, neighbourhoods.Features[i].Geometry); a > bestArea {
				best, bestArea = i, a
			}
		}
		if best < 0 {
			stats.Missed++
			stats.Warn(lookup.WarnNoNeighbourhood, -1, "section %s/%s overlaps no neighbourhood", g.district, g.section)
			continue
		}

		stats.Matched++
		districtID := fmt.Sprintf("%02d", g.key.district)
		sectionID := fmt.Sprintf("%03d", g.key.section)
		out = append(out, lookup.Section{
			District:           g.district,
			Section:            g.section,
			DistrictID:         districtID,
			SectionID:          sectionID,
			CensusTractINE:     opts.INEPrefix + districtID + sectionID,
			CensusTractIDESCAT: opts.IDESCATPrefix + districtID + sectionID,
			Neighbourhood:      neighbourhoods.Features[best].Attr(sch.Neighbourhood),
			Geometry:           geo.TransformMultiPolygon(g.geometry, toWGS84),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DistrictID != b.DistrictID {
			return numericLess(a.DistrictID, b.DistrictID)
		}
		return numericLess(a.SectionID, b.SectionID)
	})
	stats.RowsOut = len(out)
	return out, stats, nil
}

// dissolve merges features sharing a (district, section) code into one
// MultiPolygon, in order of first appearance.
func dissolve(l *layer.Layer, sch SectionsSchema, stats *Stats) ([]*dissolved, error) {
	byKey := make(map[sectionKey]*dissolved)
	var order []*dissolved
	for i, f := range l.Features {
		d, dok := parseCode(f.Attr(sch.District))
		s, sok := parseCode(f.Attr(sch.Section))
		if !dok || !sok {
			stats.Warn(lookup.WarnBadSectionCode, i, "%s=%q %s=%q", sch.District, f.Attr(sch.District), sch.Section, f.Attr(sch.Section))
			continue
		}
		if f.Geometry == nil || f.Geometry.Empty() {
			stats.Warn(lookup.WarnUnprojectableShape, i, "section %d/%d has no geometry", d, s)
			continue
		}
		k := sectionKey{district: d, section: s}
		g, ok := byKey[k]
		if !ok {
			g = &dissolved{
				key:      k,
				district: f.Attr(sch.District),
				section:  f.Attr(sch.Section),
				geometry: geom.NewMultiPolygon(f.Geometry.Layout()),
			}
			byKey[k] = g
			order = append(order, g)
		}
		for p := 0; p < f.Geometry.NumPolygons(); p++ {
			if err := g.geometry.Push(f.Geometry.Polygon(p)); err != nil {
				return nil, eris.Wrapf(err, "pipeline: dissolve section %d/%d", d, s)
			}
		}
	}
	return order, nil
}

// parseCode parses a non-negative integral code such as "3", "03" or "3.0".
func parseCode(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// numericLess compares zero-padded codes, falling back to length for codes
// wider than their padding.
func numericLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// SectionsTable renders resolved sections as the handoff CSV.
func SectionsTable(sections []lookup.Section, sch SectionsSchema) *table.Table {
	header := []string{sch.District, sch.Section, ColDistrictID, ColSectionID, ColCensusTractINE, ColCensusTractIDESCAT, sch.Neighbourhood}
	rows := make([][]string, len(sections))
	for i, s := range sections {
		rows[i] = []string{s.District, s.Section, s.DistrictID, s.SectionID, s.CensusTractINE, s.CensusTractIDESCAT, s.Neighbourhood}
	}
	return table.New(header, rows)
}

// SectionsLayer renders resolved sections, with geometry, as a WGS84 layer.
func SectionsLayer(sections []lookup.Section, sch SectionsSchema) *layer.Layer {
	t := SectionsTable(sections, sch)
	l := &layer.Layer{Name: "section_to_neighbourhood", Fields: t.Header, CRS: geo.WGS84}
	for i, s := range sections {
		attrs := make(map[string]string, len(t.Header))
		for j, h := range t.Header {
			attrs[h] = t.Rows[i][j]
		}
		l.Features = append(l.Features, layer.Feature{Attrs: attrs, Geometry: s.Geometry})
	}
	return l
}

// SectionsFromLayer reads sections back from a layer written by SectionsLayer.
// The result is in the layer's CRS.
func SectionsFromLayer(l *layer.Layer, sch SectionsSchema) ([]lookup.Section, error) {
	if err := l.RequireFields(sch.District, sch.Section, ColDistrictID, ColSectionID, ColCensusTractINE, ColCensusTractIDESCAT, sch.Neighbourhood); err != nil {
		return nil, lookup.AsConfiguration(err)
	}
	out := make([]lookup.Section, 0, len(l.Features))
	for _, f := range l.Features {
		out = append(out, lookup.Section{
			District:           f.Attr(sch.District),
			Section:            f.Attr(sch.Section),
			DistrictID:         f.Attr(ColDistrictID),
			SectionID:          f.Attr(ColSectionID),
			CensusTractINE:     f.Attr(ColCensusTractINE),
			CensusTractIDESCAT: f.Attr(ColCensusTractIDESCAT),
			Neighbourhood:      f.Attr(sch.Neighbourhood),
			Geometry:           f.Geometry,
		})
	}
	return out, nil
}
