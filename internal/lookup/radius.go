package lookup

import (
	"math"
	"strconv"
	"strings"

	"github.com/umahmood/haversine"

	"github.com/sells-group/girona-rent/internal/geo"
)

// Metric selects how service distances are measured.
type Metric string

const (
	// MetricPlanar is Euclidean distance in a projected CRS.
	MetricPlanar Metric = "planar"
	// MetricHaversine is great-circle distance on WGS84 coordinates.
	MetricHaversine Metric = "haversine"
)

// earthRadiusM matches the mean radius used by the haversine package.
const earthRadiusM = 6371000.0

// Service is a point of interest with a category label.
type Service struct {
	Point    geo.Point
	Category string
}

// RadiusOptions configures a RadiusIndex.
type RadiusOptions struct {
	RadiusM    float64
	Categories []string
	CRS        geo.CRS
	Metric     Metric
}

// RadiusIndex answers "is there a service of category C within RadiusM" for
// any point. It is built once and shared read-only across rows.
type RadiusIndex struct {
	opts     RadiusOptions
	services []Service
	catIdx   map[string]int
	index    spatialIndex
	skipped  int
}

// NewRadiusIndex validates opts and indexes the services whose category is in
// opts.Categories. Services must already be in opts.CRS.
func NewRadiusIndex(services []Service, opts RadiusOptions) (*RadiusIndex, error) {
	if opts.Metric == "" {
		opts.Metric = MetricPlanar
	}
	if len(services) == 0 {
		return nil, Configurationf("lookup: no services to index")
	}
	if opts.RadiusM <= 0 || math.IsNaN(opts.RadiusM) || math.IsInf(opts.RadiusM, 0) {
		return nil, Configurationf("lookup: radius must be positive, got %v", opts.RadiusM)
	}
	if len(opts.Categories) == 0 {
		return nil, Configurationf("lookup: no service categories configured")
	}
	switch opts.Metric {
	case MetricPlanar:
		if !opts.CRS.Projected() {
			return nil, Configurationf("lookup: planar distances need a projected crs, got %s", opts.CRS)
		}
	case MetricHaversine:
		if !opts.CRS.Geographic() {
			return nil, Configurationf("lookup: haversine distances need a geographic crs, got %s", opts.CRS)
		}
	default:
		return nil, Configurationf("lookup: unknown distance metric %q", opts.Metric)
	}

	ix := &RadiusIndex{opts: opts, catIdx: make(map[string]int, len(opts.Categories))}
	for i, c := range opts.Categories {
		c = strings.TrimSpace(c)
		if c == "" {
			return nil, Configurationf("lookup: empty service category")
		}
		if _, dup := ix.catIdx[c]; dup {
			return nil, Configurationf("lookup: duplicate service category %q", c)
		}
		ix.catIdx[c] = i
	}

	for _, s := range services {
		if !geo.Equivalent(s.Point.CRS, opts.CRS) {
			return nil, Configurationf("lookup: service crs %s does not match %s", s.Point.CRS, opts.CRS)
		}
		cat := strings.TrimSpace(s.Category)
		if _, ok := ix.catIdx[cat]; !ok {
			ix.skipped++
			continue
		}
		s.Category = cat
		ix.index.insertPoint(s.Point.X, s.Point.Y, len(ix.services))
		ix.services = append(ix.services, s)
	}
	return ix, nil
}

// Skipped returns how many services were ignored for an unknown category.
func (ix *RadiusIndex) Skipped() int { return ix.skipped }

// Len returns the number of indexed services.
func (ix *RadiusIndex) Len() int { return ix.index.len() }

// Flags reports, per configured category, whether at least one service of that
// category lies within the radius of p. Distance equal to the radius counts.
func (ix *RadiusIndex) Flags(p geo.Point) (map[string]bool, error) {
	if !geo.Equivalent(p.CRS, ix.opts.CRS) {
		return nil, Configurationf("lookup: point crs %s does not match services crs %s", p.CRS, ix.opts.CRS)
	}

	flags := make(map[string]bool, len(ix.catIdx))
	for c := range ix.catIdx {
		flags[c] = false
	}

	minX, minY, maxX, maxY := ix.window(p)
	found := 0
	for _, ord := range ix.index.candidates(minX, minY, maxX, maxY) {
		s := ix.services[ord]
		if flags[s.Category] {
			continue
		}
		if ix.distance(p, s.Point) <= ix.opts.RadiusM {
			flags[s.Category] = true
			found++
			if found == len(flags) {
				break
			}
		}
	}
	return flags, nil
}

func (ix *RadiusIndex) window(p geo.Point) (float64, float64, float64, float64) {
	r := ix.opts.RadiusM
	if ix.opts.Metric == MetricPlanar {
		return p.X - r, p.Y - r, p.X + r, p.Y + r
	}
	dLat := (r / earthRadiusM) * 180 / math.Pi * 1.01
	cosLat := math.Max(math.Cos(p.Y*math.Pi/180), 1e-6)
	dLon := math.Min(dLat/cosLat, 180)
	return p.X - dLon, p.Y - dLat, p.X + dLon, p.Y + dLat
}

func (ix *RadiusIndex) distance(a, b geo.Point) float64 {
	if ix.opts.Metric == MetricPlanar {
		return math.Hypot(a.X-b.X, a.Y-b.Y)
	}
	_, km := haversine.Distance(
		haversine.Coord{Lat: a.Y, Lon: a.X},
		haversine.Coord{Lat: b.Y, Lon: b.X},
	)
	return km * 1000
}

// ColumnName returns the output column for a category flag, e.g.
// "has_food_within_500m".
func ColumnName(category string, radiusM float64) string {
	return "has_" + category + "_within_" + strconv.FormatFloat(radiusM, 'f', -1, 64) + "m"
}
