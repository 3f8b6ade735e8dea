package lookup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/girona-rent/internal/geo"
)

func square(minX, minY, maxX, maxY float64) *geom.MultiPolygon {
	return geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}})
}

func pt(x, y float64) geo.Point { return geo.Point{X: x, Y: y, CRS: geo.WGS84} }

func twoSquares() []Section {
	return []Section{
		{DistrictID: "01", SectionID: "001", CensusTractINE: "001", Neighbourhood: "A", Geometry: square(0, 0, 1, 1)},
		{DistrictID: "01", SectionID: "002", CensusTractINE: "002", Neighbourhood: "B", Geometry: square(1, 0, 2, 1)},
	}
}

func TestAssign(t *testing.T) {
	a, err := NewAssignor(twoSquares(), geo.WGS84)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Len())

	tests := []struct {
		name     string
		p        geo.Point
		assigned bool
		tract    string
		dups     int
	}{
		{"inside A", pt(0.5, 0.5), true, "001", 0},
		{"inside B", pt(1.5, 0.5), true, "002", 0},
		{"outside both", pt(3, 3), false, "", 0},
		{"shared edge goes to first", pt(1, 0.5), true, "001", 0},
		{"shared corner goes to first", pt(1, 1), true, "001", 0},
		{"outer corner", pt(0, 0), true, "001", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Assign(tt.p)
			require.NoError(t, err)
			assert.Equal(t, tt.assigned, got.Assigned)
			assert.Equal(t, tt.tract, got.CensusTractINE)
			assert.Equal(t, tt.dups, got.Duplicates)
		})
	}
}

func TestAssign_MissIsZeroValue(t *testing.T) {
	a, err := NewAssignor(twoSquares(), geo.WGS84)
	require.NoError(t, err)
	got, err := a.Assign(pt(3, 3))
	require.NoError(t, err)
	assert.Equal(t, Assignment{}, got)
}

func TestAssign_Overlap(t *testing.T) {
	sections := []Section{
		{CensusTractINE: "big", Geometry: square(0, 0, 10, 10)},
		{CensusTractINE: "small", Geometry: square(2, 2, 4, 4)},
	}
	a, err := NewAssignor(sections, geo.WGS84)
	require.NoError(t, err)

	got, err := a.Assign(pt(3, 3))
	require.NoError(t, err)
	assert.Equal(t, "big", got.CensusTractINE)
	assert.Equal(t, 0, got.Ordinal)
	assert.Equal(t, 1, got.Duplicates)

	// On the small section's edge the point is interior to one section only.
	got, err = a.Assign(pt(2, 3))
	require.NoError(t, err)
	assert.Equal(t, "big", got.CensusTractINE)
	assert.Equal(t, 0, got.Duplicates)
}

func TestAssign_CRSMismatch(t *testing.T) {
	a, err := NewAssignor(twoSquares(), geo.ETRS89UTM(31))
	require.NoError(t, err)
	_, err = a.Assign(pt(0.5, 0.5))
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
}

func TestAssign_GeographicEquivalence(t *testing.T) {
	a, err := NewAssignor(twoSquares(), geo.ETRS89)
	require.NoError(t, err)
	got, err := a.Assign(pt(0.5, 0.5))
	require.NoError(t, err)
	assert.True(t, got.Assigned)
}

func TestNewAssignor_Errors(t *testing.T) {
	_, err := NewAssignor(nil, geo.WGS84)
	assert.True(t, IsConfiguration(err))

	_, err = NewAssignor(twoSquares(), geo.CRS(2154))
	assert.True(t, IsConfiguration(err))

	_, err = NewAssignor([]Section{{DistrictID: "01"}}, geo.WGS84)
	assert.True(t, IsConfiguration(err))
}
