package geo

import (
	"math"
	"sort"

	"github.com/twpayne/go-geom"
)

type segment struct {
	ax, ay, bx, by float64
}

func (s segment) minX() float64 { return math.Min(s.ax, s.bx) }
func (s segment) maxX() float64 { return math.Max(s.ax, s.bx) }
func (s segment) minY() float64 { return math.Min(s.ay, s.by) }
func (s segment) maxY() float64 { return math.Max(s.ay, s.by) }

// IntersectionArea returns the planar area of a ∩ b. Both operands must be
// valid polygons (no self-intersections); holes are honoured.
//
// The area is integrated with Green's theorem over the boundary of the
// intersection: the parts of each operand's edges that lie inside the other,
// plus edges the two share with their interiors on the same side, counted once.
func IntersectionArea(a, b *geom.MultiPolygon) float64 {
	if a == nil || b == nil || a.Empty() || b.Empty() {
		return 0
	}
	ab, bb := a.Bounds(), b.Bounds()
	if !ab.Overlaps(geom.XY, bb) {
		return 0
	}

	extent := math.Max(
		math.Max(ab.Max(0), bb.Max(0))-math.Min(ab.Min(0), bb.Min(0)),
		math.Max(ab.Max(1), bb.Max(1))-math.Min(ab.Min(1), bb.Min(1)),
	)
	tol := boundaryTolerance * math.Max(extent, 1)

	edgesA := orientedEdges(a)
	edgesB := orientedEdges(b)

	var sum float64
	for _, e := range edgesA {
		for _, sub := range split(e, edgesB, tol) {
			mx, my := (sub.ax+sub.bx)/2, (sub.ay+sub.by)/2
			switch locate(b, mx, my, tol) {
			case interior:
				sum += cross2(sub)
			case boundary:
				if sharesDirection(sub, edgesB, tol) {
					sum += cross2(sub)
				}
			}
		}
	}
	for _, e := range edgesB {
		for _, sub := range split(e, edgesA, tol) {
			mx, my := (sub.ax+sub.bx)/2, (sub.ay+sub.by)/2
			if locate(a, mx, my, tol) == interior {
				sum += cross2(sub)
			}
		}
	}

	return math.Max(sum/2, 0)
}

// Area returns the planar area of mp, holes excluded, whatever the winding
// of its rings.
func Area(mp *geom.MultiPolygon) float64 {
	if mp == nil {
		return 0
	}
	return Orient(mp).Area()
}

// Orient returns a copy of mp with shells counter-clockwise and holes
// clockwise, as RFC 7946 requires and go-geom's signed area assumes.
func Orient(mp *geom.MultiPolygon) *geom.MultiPolygon {
	stride := mp.Stride()
	flat := append([]float64(nil), mp.FlatCoords()...)
	endss := make([][]int, len(mp.Endss()))
	offset := 0
	for i, ends := range mp.Endss() {
		endss[i] = append([]int(nil), ends...)
		for j, end := range ends {
			ring := flat[offset:end]
			if ccw := signedArea(ring, stride) > 0; (j == 0) != ccw {
				reverseRing(ring, stride)
			}
			offset = end
		}
	}
	return geom.NewMultiPolygonFlat(mp.Layout(), flat, endss)
}

func reverseRing(flat []float64, stride int) {
	n := len(flat) / stride
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		for k := 0; k < stride; k++ {
			flat[i*stride+k], flat[j*stride+k] = flat[j*stride+k], flat[i*stride+k]
		}
	}
}

func cross2(s segment) float64 {
	return s.ax*s.by - s.bx*s.ay
}

// orientedEdges returns the directed edges of mp with shells counter-clockwise
// and holes clockwise, so the interior is always on the left.
func orientedEdges(mp *geom.MultiPolygon) []segment {
	var edges []segment
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		for j := 0; j < p.NumLinearRings(); j++ {
			flat := p.LinearRing(j).FlatCoords()
			stride := p.Stride()
			ccw := signedArea(flat, stride) > 0
			reverse := (j == 0) != ccw
			edges = append(edges, ringEdges(flat, stride, reverse)...)
		}
	}
	return edges
}

func ringEdges(flat []float64, stride int, reverse bool) []segment {
	n := len(flat) / stride
	if n < 2 {
		return nil
	}
	edges := make([]segment, 0, n)
	for k := 0; k+1 < n; k++ {
		ax, ay := flat[k*stride], flat[k*stride+1]
		bx, by := flat[(k+1)*stride], flat[(k+1)*stride+1]
		if ax == bx && ay == by {
			continue
		}
		if reverse {
			edges = append(edges, segment{ax: bx, ay: by, bx: ax, by: ay})
		} else {
			edges = append(edges, segment{ax: ax, ay: ay, bx: bx, by: by})
		}
	}
	// Close the ring if the source did not repeat its first vertex.
	fx, fy := flat[0], flat[1]
	lx, ly := flat[(n-1)*stride], flat[(n-1)*stride+1]
	if fx != lx || fy != ly {
		if reverse {
			edges = append(edges, segment{ax: fx, ay: fy, bx: lx, by: ly})
		} else {
			edges = append(edges, segment{ax: lx, ay: ly, bx: fx, by: fy})
		}
	}
	return edges
}

// SignedRingArea is the shoelace area of a ring: positive when
// counter-clockwise.
func SignedRingArea(flat []float64, stride int) float64 { return signedArea(flat, stride) }

func signedArea(flat []float64, stride int) float64 {
	n := len(flat) / stride
	if n < 3 {
		return 0
	}
	var sum float64
	for k := 0; k < n; k++ {
		x1, y1 := flat[k*stride], flat[k*stride+1]
		m := (k + 1) % n
		x2, y2 := flat[m*stride], flat[m*stride+1]
		sum += x1*y2 - x2*y1
	}
	return sum / 2
}

// split cuts e at every point where it meets one of others.
func split(e segment, others []segment, tol float64) []segment {
	rx, ry := e.bx-e.ax, e.by-e.ay
	rr := rx*rx + ry*ry
	if rr == 0 {
		return nil
	}
	rlen := math.Sqrt(rr)

	params := []float64{0, 1}
	for _, f := range others {
		if f.maxX() < e.minX()-tol || f.minX() > e.maxX()+tol ||
			f.maxY() < e.minY()-tol || f.minY() > e.maxY()+tol {
			continue
		}
		sx, sy := f.bx-f.ax, f.by-f.ay
		qx, qy := f.ax-e.ax, f.ay-e.ay
		denom := rx*sy - ry*sx
		slen := math.Hypot(sx, sy)

		if math.Abs(denom) > 1e-12*rlen*slen {
			t := (qx*sy - qy*sx) / denom
			u := (qx*ry - qy*rx) / denom
			du := tol / slen
			dt := tol / rlen
			if t > -dt && t < 1+dt && u > -du && u < 1+du {
				params = append(params, t)
			}
			continue
		}

		// Parallel: only collinear overlaps contribute split points.
		if math.Abs(qx*ry-qy*rx)/rlen > tol {
			continue
		}
		t0 := (qx*rx + qy*ry) / rr
		t1 := ((f.bx-e.ax)*rx + (f.by-e.ay)*ry) / rr
		params = append(params, t0, t1)
	}

	sort.Float64s(params)
	minStep := tol / rlen
	var subs []segment
	prev := 0.0
	for _, t := range params {
		if t <= prev+minStep {
			continue
		}
		if t > 1 {
			t = 1
		}
		if t <= prev+minStep {
			continue
		}
		subs = append(subs, segment{
			ax: e.ax + prev*rx, ay: e.ay + prev*ry,
			bx: e.ax + t*rx, by: e.ay + t*ry,
		})
		prev = t
		if prev >= 1 {
			break
		}
	}
	return subs
}

// sharesDirection reports whether sub lies along one of edges running the same way.
func sharesDirection(sub segment, edges []segment, tol float64) bool {
	mx, my := (sub.ax+sub.bx)/2, (sub.ay+sub.by)/2
	dx, dy := sub.bx-sub.ax, sub.by-sub.ay
	for _, f := range edges {
		if !onSegment(f.ax, f.ay, f.bx, f.by, mx, my, tol) {
			continue
		}
		fx, fy := f.bx-f.ax, f.by-f.ay
		if dx*fx+dy*fy > 0 {
			return true
		}
	}
	return false
}
