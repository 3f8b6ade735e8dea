package lookup

import (
	"github.com/tidwall/rtree"
	"github.com/twpayne/go-geom"
)

// spatialIndex is an R-tree of ordinals keyed by bounding box.
type spatialIndex struct {
	tree rtree.RTreeG[int]
}

func (ix *spatialIndex) insertBounds(b *geom.Bounds, ordinal int) {
	ix.tree.Insert(
		[2]float64{b.Min(0), b.Min(1)},
		[2]float64{b.Max(0), b.Max(1)},
		ordinal,
	)
}

func (ix *spatialIndex) insertPoint(x, y float64, ordinal int) {
	pt := [2]float64{x, y}
	ix.tree.Insert(pt, pt, ordinal)
}

// candidates returns the ordinals whose boxes intersect the window.
func (ix *spatialIndex) candidates(minX, minY, maxX, maxY float64) []int {
	var out []int
	ix.tree.Search(
		[2]float64{minX, minY},
		[2]float64{maxX, maxY},
		func(_, _ [2]float64, ordinal int) bool {
			out = append(out, ordinal)
			return true
		},
	)
	return out
}

func (ix *spatialIndex) len() int {
	return ix.tree.Len()
}
