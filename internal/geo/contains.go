package geo

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// boundaryTolerance is the distance, in CRS units, within which a point is
// considered to lie on a ring edge.
const boundaryTolerance = 1e-9

// Contains reports whether (x, y) lies inside mp or on its boundary. A point
// strictly inside a hole is outside; a point on a hole's edge is on the
// boundary and therefore inside.
func Contains(mp *geom.MultiPolygon, x, y float64) bool {
	return locate(mp, x, y, boundaryTolerance) != exterior
}

// ContainsInterior reports whether (x, y) lies strictly inside mp, off its
// boundary.
func ContainsInterior(mp *geom.MultiPolygon, x, y float64) bool {
	return locate(mp, x, y, boundaryTolerance) == interior
}

// ContainsPolygon is Contains for a single polygon.
func ContainsPolygon(p *geom.Polygon, x, y float64) bool {
	return locatePolygon(p, x, y, boundaryTolerance) != exterior
}

type location int

const (
	exterior location = iota
	boundary
	interior
)

func locate(mp *geom.MultiPolygon, x, y, tol float64) location {
	best := exterior
	for i := 0; i < mp.NumPolygons(); i++ {
		switch locatePolygon(mp.Polygon(i), x, y, tol) {
		case interior:
			return interior
		case boundary:
			best = boundary
		}
	}
	return best
}

func locatePolygon(p *geom.Polygon, x, y, tol float64) location {
	if p.NumLinearRings() == 0 {
		return exterior
	}
	shell := p.LinearRing(0).FlatCoords()
	stride := p.Stride()
	if onRing(shell, stride, x, y, tol) {
		return boundary
	}
	if !xy.IsPointInRing(p.Layout(), geom.Coord{x, y}, shell) {
		return exterior
	}
	for j := 1; j < p.NumLinearRings(); j++ {
		hole := p.LinearRing(j).FlatCoords()
		if onRing(hole, stride, x, y, tol) {
			return boundary
		}
		if xy.IsPointInRing(p.Layout(), geom.Coord{x, y}, hole) {
			return exterior
		}
	}
	return interior
}

func onRing(flat []float64, stride int, x, y, tol float64) bool {
	for i := 0; i+stride+1 < len(flat); i += stride {
		if onSegment(flat[i], flat[i+1], flat[i+stride], flat[i+stride+1], x, y, tol) {
			return true
		}
	}
	return false
}

// onSegment reports whether (x, y) lies within tol of the segment a-b.
func onSegment(ax, ay, bx, by, x, y, tol float64) bool {
	if x < math.Min(ax, bx)-tol || x > math.Max(ax, bx)+tol ||
		y < math.Min(ay, by)-tol || y > math.Max(ay, by)+tol {
		return false
	}
	dx, dy := bx-ax, by-ay
	length := math.Hypot(dx, dy)
	if length == 0 {
		return math.Hypot(x-ax, y-ay) <= tol
	}
	cross := dx*(y-ay) - dy*(x-ax)
	return math.Abs(cross)/length <= tol
}
