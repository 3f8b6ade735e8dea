// Package layer reads and writes polygon feature layers (shapefiles and
// GeoJSON) as go-geom MultiPolygons with string attributes.
package layer

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/girona-rent/internal/geo"
)

// Feature is one polygon record with its attribute values.
type Feature struct {
	Attrs    map[string]string
	Geometry *geom.MultiPolygon
}

// Attr returns the trimmed attribute value for name.
func (f Feature) Attr(name string) string {
	return strings.TrimSpace(f.Attrs[name])
}

// Layer is an ordered collection of polygon features in one CRS.
type Layer struct {
	Name     string
	Fields   []string
	Features []Feature
	CRS      geo.CRS
	// Skipped counts records dropped because their shape was not a polygon
	// or could not be converted.
	Skipped int
}

// HasField reports whether the layer carries attribute name.
func (l *Layer) HasField(name string) bool {
	for _, f := range l.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// RequireFields returns an error naming the first missing attribute.
func (l *Layer) RequireFields(names ...string) error {
	for _, n := range names {
		if !l.HasField(n) {
			return eris.Errorf("layer: %s has no field %q (fields: %s)", l.Name, n, strings.Join(l.Fields, ", "))
		}
	}
	return nil
}

// Reproject returns a copy of the layer in CRS to. Attributes are shared.
func (l *Layer) Reproject(to geo.CRS) (*Layer, error) {
	if geo.Equivalent(l.CRS, to) {
		out := *l
		out.CRS = to
		return &out, nil
	}
	tr, err := geo.Transform(l.CRS, to)
	if err != nil {
		return nil, eris.Wrapf(err, "layer: reproject %s", l.Name)
	}
	out := &Layer{Name: l.Name, Fields: l.Fields, CRS: to, Skipped: l.Skipped}
	out.Features = make([]Feature, len(l.Features))
	for i, f := range l.Features {
		out.Features[i] = Feature{Attrs: f.Attrs, Geometry: geo.TransformMultiPolygon(f.Geometry, tr)}
	}
	return out, nil
}

// Options controls how a layer is read.
type Options struct {
	// Encoding names the DBF text encoding. Empty means use the .cpg sidecar,
	// falling back to UTF-8.
	Encoding string
	// CRS overrides the reference system; Unknown means use the .prj sidecar
	// for shapefiles and EPSG:4326 for GeoJSON.
	CRS geo.CRS
}

// Read opens path by extension: .shp, .zip (containing a shapefile) or
// .geojson/.json.
func Read(path string, opts Options) (*Layer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return ReadShapefile(path, opts)
	case ".zip":
		return readZippedShapefile(path, opts)
	case ".geojson", ".json":
		return ReadGeoJSON(path, opts)
	default:
		return nil, eris.Errorf("layer: unsupported layer format %q", filepath.Ext(path))
	}
}
