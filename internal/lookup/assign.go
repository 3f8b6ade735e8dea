package lookup

import (
	"sort"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/girona-rent/internal/geo"
)

// Section is one retained census section polygon with its administrative codes.
type Section struct {
	District           string // raw district label (DISTRICTE)
	Section            string // raw section label (SECCIÓ)
	DistrictID         string
	SectionID          string
	CensusTractINE     string
	CensusTractIDESCAT string
	Neighbourhood      string
	Geometry           *geom.MultiPolygon
}

// Assignment is the attribute bundle of the section containing a point. The
// zero value is the "unassigned" sentinel.
type Assignment struct {
	Assigned           bool
	District           string
	Section            string
	DistrictID         string
	SectionID          string
	CensusTractINE     string
	CensusTractIDESCAT string
	Neighbourhood      string

	// Ordinal is the index of the chosen section in the assignor input.
	Ordinal int
	// Duplicates counts additional sections that also hold the point in
	// their interior. Points on an edge shared by adjacent sections are not
	// duplicates.
	Duplicates int
}

// Assignor finds the census section containing a point.
type Assignor struct {
	sections []Section
	crs      geo.CRS
	index    spatialIndex
}

// NewAssignor indexes sections, all of which must be in crs.
func NewAssignor(sections []Section, crs geo.CRS) (*Assignor, error) {
	if len(sections) == 0 {
		return nil, Configurationf("lookup: no sections to assign against")
	}
	if !crs.Supported() {
		return nil, Configurationf("lookup: unsupported section crs %s", crs)
	}
	a := &Assignor{sections: sections, crs: crs}
	for i, s := range sections {
		if s.Geometry == nil || s.Geometry.Empty() {
			return nil, Configurationf("lookup: section %s/%s has no geometry", s.DistrictID, s.SectionID)
		}
		a.index.insertBounds(s.Geometry.Bounds(), i)
	}
	return a, nil
}

// CRS returns the reference system points must be supplied in.
func (a *Assignor) CRS() geo.CRS { return a.crs }

// Len returns the number of indexed sections.
func (a *Assignor) Len() int { return a.index.len() }

// Assign returns the section containing p. Points on a boundary count as
// inside. When several sections contain p the lowest ordinal wins; only
// sections overlapping at p are reported in Duplicates.
func (a *Assignor) Assign(p geo.Point) (Assignment, error) {
	if !geo.Equivalent(p.CRS, a.crs) {
		return Assignment{}, Configurationf("lookup: point crs %s does not match sections crs %s", p.CRS, a.crs)
	}

	cands := a.index.candidates(p.X, p.Y, p.X, p.Y)
	sort.Ints(cands)

	var hits []int
	inner := 0
	for _, ord := range cands {
		g := a.sections[ord].Geometry
		if !geo.Contains(g, p.X, p.Y) {
			continue
		}
		hits = append(hits, ord)
		if geo.ContainsInterior(g, p.X, p.Y) {
			inner++
		}
	}
	if len(hits) == 0 {
		return Assignment{}, nil
	}

	s := a.sections[hits[0]]
	return Assignment{
		Assigned:           true,
		District:           s.District,
		Section:            s.Section,
		DistrictID:         s.DistrictID,
		SectionID:          s.SectionID,
		CensusTractINE:     s.CensusTractINE,
		CensusTractIDESCAT: s.CensusTractIDESCAT,
		Neighbourhood:      s.Neighbourhood,
		Ordinal:            hits[0],
		Duplicates:         max(inner-1, 0),
	}, nil
}
