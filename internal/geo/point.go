package geo

import (
	"math"

	"github.com/rotisserie/eris"
)

// Point is an immutable coordinate pair tagged with its CRS. X is longitude or
// easting, Y is latitude or northing.
type Point struct {
	X   float64
	Y   float64
	CRS CRS
}

// LatLon builds a WGS84 point, validating the coordinate ranges.
func LatLon(lat, lon float64) (Point, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return Point{}, eris.New("geo: coordinate is NaN")
	}
	if lat < -90 || lat > 90 {
		return Point{}, eris.Errorf("geo: latitude %v out of range", lat)
	}
	if lon < -180 || lon > 180 {
		return Point{}, eris.Errorf("geo: longitude %v out of range", lon)
	}
	return Point{X: lon, Y: lat, CRS: WGS84}, nil
}

// Lat returns the latitude of a geographic point.
func (p Point) Lat() float64 { return p.Y }

// Lon returns the longitude of a geographic point.
func (p Point) Lon() float64 { return p.X }
