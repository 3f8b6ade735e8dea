package lookup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/girona-rent/internal/geo"
)

func merc(x, y float64) geo.Point { return geo.Point{X: x, Y: y, CRS: geo.WebMercator} }

func TestFlags(t *testing.T) {
	services := []Service{
		{Point: merc(400, 0), Category: "food"},
		{Point: merc(300, 400), Category: "health"},
		{Point: merc(5000, 5000), Category: "education"},
	}

	tests := []struct {
		name   string
		radius float64
		want   map[string]bool
	}{
		{"radius 500", 500, map[string]bool{"food": true, "health": true, "education": false}},
		{"radius 300", 300, map[string]bool{"food": false, "health": false, "education": false}},
		{"radius 400", 400, map[string]bool{"food": true, "health": false, "education": false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix, err := NewRadiusIndex(services, RadiusOptions{
				RadiusM:    tt.radius,
				Categories: []string{"food", "health", "education"},
				CRS:        geo.WebMercator,
			})
			require.NoError(t, err)
			got, err := ix.Flags(merc(0, 0))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlags_BoundaryInclusive(t *testing.T) {
	ix, err := NewRadiusIndex([]Service{{Point: merc(300, 400), Category: "health"}}, RadiusOptions{
		RadiusM:    500,
		Categories: []string{"health"},
		CRS:        geo.WebMercator,
	})
	require.NoError(t, err)
	got, err := ix.Flags(merc(0, 0))
	require.NoError(t, err)
	assert.True(t, got["health"])
}

func TestFlags_UnknownCategorySkipped(t *testing.T) {
	ix, err := NewRadiusIndex([]Service{
		{Point: merc(10, 0), Category: "leisure"},
		{Point: merc(10, 0), Category: " food "},
	}, RadiusOptions{RadiusM: 500, Categories: []string{"food"}, CRS: geo.WebMercator})
	require.NoError(t, err)
	assert.Equal(t, 1, ix.Skipped())
	assert.Equal(t, 1, ix.Len())

	got, err := ix.Flags(merc(0, 0))
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"food": true}, got)
}

func TestFlags_CRSMismatch(t *testing.T) {
	ix, err := NewRadiusIndex([]Service{{Point: merc(0, 0), Category: "food"}}, RadiusOptions{
		RadiusM: 500, Categories: []string{"food"}, CRS: geo.WebMercator,
	})
	require.NoError(t, err)
	_, err = ix.Flags(geo.Point{X: 2.8, Y: 41.9, CRS: geo.WGS84})
	assert.True(t, IsConfiguration(err))
}

func TestFlags_Haversine(t *testing.T) {
	// 0.004 degrees of latitude is roughly 445 m.
	ix, err := NewRadiusIndex([]Service{
		{Point: geo.Point{X: 2.82, Y: 41.984, CRS: geo.WGS84}, Category: "food"},
	}, RadiusOptions{RadiusM: 500, Categories: []string{"food"}, CRS: geo.WGS84, Metric: MetricHaversine})
	require.NoError(t, err)

	near, err := ix.Flags(geo.Point{X: 2.82, Y: 41.98, CRS: geo.WGS84})
	require.NoError(t, err)
	assert.True(t, near["food"])

	far, err := ix.Flags(geo.Point{X: 2.82, Y: 41.975, CRS: geo.WGS84})
	require.NoError(t, err)
	assert.False(t, far["food"])
}

func TestNewRadiusIndex_Errors(t *testing.T) {
	svc := []Service{{Point: merc(0, 0), Category: "food"}}
	tests := []struct {
		name     string
		services []Service
		opts     RadiusOptions
	}{
		{"no services", nil, RadiusOptions{RadiusM: 500, Categories: []string{"food"}, CRS: geo.WebMercator}},
		{"zero radius", svc, RadiusOptions{RadiusM: 0, Categories: []string{"food"}, CRS: geo.WebMercator}},
		{"negative radius", svc, RadiusOptions{RadiusM: -1, Categories: []string{"food"}, CRS: geo.WebMercator}},
		{"no categories", svc, RadiusOptions{RadiusM: 500, CRS: geo.WebMercator}},
		{"duplicate category", svc, RadiusOptions{RadiusM: 500, Categories: []string{"food", "food"}, CRS: geo.WebMercator}},
		{"planar on degrees", svc, RadiusOptions{RadiusM: 500, Categories: []string{"food"}, CRS: geo.WGS84}},
		{"haversine on metres", svc, RadiusOptions{RadiusM: 500, Categories: []string{"food"}, CRS: geo.WebMercator, Metric: MetricHaversine}},
		{"unknown metric", svc, RadiusOptions{RadiusM: 500, Categories: []string{"food"}, CRS: geo.WebMercator, Metric: "manhattan"}},
		{"service crs mismatch", []Service{{Point: merc(0, 0), Category: "food"}}, RadiusOptions{RadiusM: 500, Categories: []string{"food"}, CRS: geo.ETRS89UTM(31)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRadiusIndex(tt.services, tt.opts)
			require.Error(t, err)
			assert.True(t, IsConfiguration(err))
		})
	}
}

func TestColumnName(t *testing.T) {
	assert.Equal(t, "has_food_within_500m", ColumnName("food", 500))
	assert.Equal(t, "has_public_service_within_250.5m", ColumnName("public_service", 250.5))
}
