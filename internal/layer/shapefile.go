package layer

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/girona-rent/internal/geo"
)

const utf8BOM = "\ufeff"

// ReadShapefile reads a polygon shapefile. The CRS comes from opts.CRS or the
// .prj sidecar; DBF text is decoded with opts.Encoding or the .cpg sidecar.
func ReadShapefile(path string, opts Options) (*Layer, error) {
	crs := opts.CRS
	if crs == geo.Unknown {
		prj, err := os.ReadFile(sidecar(path, ".prj"))
		if err != nil {
			return nil, eris.Wrapf(err, "layer: %s has no .prj and no crs override", filepath.Base(path))
		}
		crs, err = geo.ParsePRJ(string(prj))
		if err != nil {
			return nil, eris.Wrapf(err, "layer: detect crs of %s", filepath.Base(path))
		}
	}

	name := opts.Encoding
	if name == "" {
		if cpg, err := os.ReadFile(sidecar(path, ".cpg")); err == nil {
			name = strings.TrimSpace(string(cpg))
		}
	}
	dec, err := decoderFor(name)
	if err != nil {
		return nil, err
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "layer: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	l := &Layer{Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), CRS: crs}
	for _, f := range reader.Fields() {
		l.Fields = append(l.Fields, dec(strings.TrimRight(f.String(), "\x00")))
	}

	for reader.Next() {
		n, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			l.Skipped++
			zap.L().Debug("layer: skipping non-polygon record", zap.String("layer", l.Name), zap.Int("record", n))
			continue
		}
		mp, err := polygonToMultiPolygon(poly)
		if err != nil {
			l.Skipped++
			zap.L().Debug("layer: skipping malformed polygon", zap.String("layer", l.Name), zap.Int("record", n), zap.Error(err))
			continue
		}
		attrs := make(map[string]string, len(l.Fields))
		for i, field := range l.Fields {
			attrs[field] = strings.TrimSpace(dec(strings.TrimRight(reader.Attribute(i), "\x00")))
		}
		l.Features = append(l.Features, Feature{Attrs: attrs, Geometry: mp})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "layer: read shapefile %s", path)
	}

	if l.Skipped > 0 {
		zap.L().Warn("layer: skipped shapefile records",
			zap.String("layer", l.Name),
			zap.Int("skipped", l.Skipped),
		)
	}
	return l, nil
}

// polygonToMultiPolygon groups shapefile rings into polygons. Shapefile
// shells are clockwise and holes counter-clockwise; each hole is attached
// to the first shell that contains its first vertex. The result is rewound
// to the GeoJSON convention.
func polygonToMultiPolygon(p *shp.Polygon) (*geom.MultiPolygon, error) {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil, eris.New("empty polygon")
	}

	var shells, holes [][]float64
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			continue
		}
		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		if geo.SignedRingArea(flat, 2) <= 0 {
			shells = append(shells, flat)
		} else {
			holes = append(holes, flat)
		}
	}
	// Writers that ignore the orientation rule emit only counter-clockwise rings.
	if len(shells) == 0 {
		shells, holes = holes, nil
	}
	if len(shells) == 0 {
		return nil, eris.New("polygon has no usable rings")
	}

	rings := make([][][]float64, len(shells))
	for i, s := range shells {
		rings[i] = [][]float64{s}
	}
	for _, h := range holes {
		for i, s := range shells {
			if xy.IsPointInRing(geom.XY, geom.Coord{h[0], h[1]}, s) {
				rings[i] = append(rings[i], h)
				break
			}
		}
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for _, poly := range rings {
		g := geom.NewPolygon(geom.XY)
		for _, r := range poly {
			if err := g.Push(geom.NewLinearRingFlat(geom.XY, r)); err != nil {
				return nil, eris.Wrap(err, "push ring")
			}
		}
		if err := mp.Push(g); err != nil {
			return nil, eris.Wrap(err, "push polygon")
		}
	}
	return geo.Orient(mp), nil
}

// decoderFor returns a function converting raw DBF bytes to UTF-8.
func decoderFor(name string) (func(string) string, error) {
	var enc encoding.Encoding
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "", "utf-8", "utf8":
		return func(s string) string { return strings.TrimPrefix(s, utf8BOM) }, nil
	case "iso-8859-1", "iso8859-1", "8859_1", "88591", "latin1", "latin-1":
		enc = charmap.ISO8859_1
	default:
		if strings.Trim(n, "0123456789") == "" {
			n = "windows-" + n
		}
		e, err := htmlindex.Get(n)
		if err != nil {
			return nil, eris.Wrapf(err, "layer: unknown dbf encoding %q", name)
		}
		enc = e
	}
	d := enc.NewDecoder()
	return func(s string) string {
		out, err := d.String(s)
		if err != nil {
			return s
		}
		return strings.TrimPrefix(out, utf8BOM)
	}, nil
}

func sidecar(path, ext string) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, e := range []string{ext, strings.ToUpper(ext)} {
		if _, err := os.Stat(base + e); err == nil {
			return base + e
		}
	}
	return base + ext
}

// readZippedShapefile extracts a zip archive and reads the first .shp in it.
func readZippedShapefile(zipPath string, opts Options) (*Layer, error) {
	dir, err := os.MkdirTemp("", "girona-layer-*")
	if err != nil {
		return nil, eris.Wrap(err, "layer: create temp dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	if err := extractZIP(zipPath, dir); err != nil {
		return nil, err
	}
	shpPath, err := findFileByExt(dir, ".shp")
	if err != nil {
		return nil, err
	}
	return ReadShapefile(shpPath, opts)
}

func extractZIP(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "layer: open zip")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		destPath := filepath.Join(destDir, filepath.Base(f.Name))
		if err := extractEntry(f, destPath); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(f *zip.File, destPath string) error {
	rc, err := f.Open()
	if err != nil {
		return eris.Wrapf(err, "layer: open zip entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return eris.Wrapf(err, "layer: create %s", destPath)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return eris.Wrapf(err, "layer: extract %s", f.Name)
	}
	return out.Close()
}

func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "layer: read directory")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("layer: no %s file found in %s", ext, dir)
}
