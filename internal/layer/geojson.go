package layer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/girona-rent/internal/geo"
)

// ReadGeoJSON reads a FeatureCollection of Polygon/MultiPolygon features.
// GeoJSON coordinates are always EPSG:4326 unless opts.CRS says otherwise.
func ReadGeoJSON(path string, opts Options) (*Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "layer: read %s", path)
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "layer: decode geojson %s", path)
	}

	crs := opts.CRS
	if crs == geo.Unknown {
		crs = geo.WGS84
	}
	l := &Layer{Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), CRS: crs}

	seen := make(map[string]bool)
	for _, f := range fc.Features {
		var mp *geom.MultiPolygon
		switch g := f.Geometry.(type) {
		case *geom.MultiPolygon:
			mp = g
		case *geom.Polygon:
			mp = geom.NewMultiPolygon(g.Layout())
			if err := mp.Push(g); err != nil {
				l.Skipped++
				continue
			}
		default:
			l.Skipped++
			continue
		}
		mp = geo.Orient(mp)

		attrs := make(map[string]string, len(f.Properties))
		keys := make([]string, 0, len(f.Properties))
		for k := range f.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			attrs[k] = propertyString(f.Properties[k])
			if !seen[k] {
				seen[k] = true
				l.Fields = append(l.Fields, k)
			}
		}
		l.Features = append(l.Features, Feature{Attrs: attrs, Geometry: mp})
	}
	return l, nil
}

// WriteGeoJSON writes l as a FeatureCollection in EPSG:4326, reprojecting
// when needed.
func WriteGeoJSON(path string, l *Layer) error {
	out := l
	if !geo.Equivalent(l.CRS, geo.WGS84) {
		var err error
		if out, err = l.Reproject(geo.WGS84); err != nil {
			return err
		}
	}

	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(out.Features))}
	for _, f := range out.Features {
		props := make(map[string]interface{}, len(out.Fields))
		for _, name := range out.Fields {
			props[name] = f.Attrs[name]
		}
		fc.Features = append(fc.Features, &geojson.Feature{Geometry: f.Geometry, Properties: props})
	}

	data, err := json.Marshal(&fc)
	if err != nil {
		return eris.Wrap(err, "layer: encode geojson")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "layer: create dir for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "layer: write %s", path)
	}
	return nil
}

func propertyString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
