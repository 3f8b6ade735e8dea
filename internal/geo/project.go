package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Transformer maps a coordinate pair from one CRS into another.
type Transformer func(x, y float64) (float64, float64)

func identity(x, y float64) (float64, float64) { return x, y }

// toWGS84 returns the transformer from c into WGS84 lon/lat.
func toWGS84(c CRS) (Transformer, error) {
	if c.Geographic() {
		return identity, nil
	}
	if c == WebMercator {
		return func(x, y float64) (float64, float64) {
			p := project.Mercator.ToWGS84(orb.Point{x, y})
			return p[0], p[1]
		}, nil
	}
	if zone, e, ok := c.utm(); ok {
		return func(x, y float64) (float64, float64) {
			return utmInverse(e, zone, x, y)
		}, nil
	}
	return nil, eris.Wrapf(ErrUnsupportedCRS, "geo: from %s", c)
}

// fromWGS84 returns the transformer from WGS84 lon/lat into c.
func fromWGS84(c CRS) (Transformer, error) {
	if c.Geographic() {
		return identity, nil
	}
	if c == WebMercator {
		return func(lon, lat float64) (float64, float64) {
			p := project.WGS84.ToMercator(orb.Point{lon, lat})
			return p[0], p[1]
		}, nil
	}
	if zone, e, ok := c.utm(); ok {
		return func(lon, lat float64) (float64, float64) {
			return utmForward(e, zone, lon, lat)
		}, nil
	}
	return nil, eris.Wrapf(ErrUnsupportedCRS, "geo: to %s", c)
}

// Transform returns a Transformer from one CRS to another, pivoting through WGS84.
func Transform(from, to CRS) (Transformer, error) {
	if Equivalent(from, to) {
		return identity, nil
	}
	inv, err := toWGS84(from)
	if err != nil {
		return nil, err
	}
	fwd, err := fromWGS84(to)
	if err != nil {
		return nil, err
	}
	return func(x, y float64) (float64, float64) {
		return fwd(inv(x, y))
	}, nil
}

// TransformPoint reprojects p into the target CRS.
func TransformPoint(p Point, to CRS) (Point, error) {
	tr, err := Transform(p.CRS, to)
	if err != nil {
		return Point{}, err
	}
	x, y := tr(p.X, p.Y)
	return Point{X: x, Y: y, CRS: to}, nil
}

// TransformMultiPolygon returns a reprojected copy of mp.
func TransformMultiPolygon(mp *geom.MultiPolygon, tr Transformer) *geom.MultiPolygon {
	flat := mp.FlatCoords()
	stride := mp.Stride()
	out := make([]float64, len(flat))
	copy(out, flat)
	for i := 0; i+1 < len(out); i += stride {
		out[i], out[i+1] = tr(out[i], out[i+1])
	}
	return geom.NewMultiPolygonFlat(mp.Layout(), out, mp.Endss())
}
