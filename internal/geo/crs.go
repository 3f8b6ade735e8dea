// Package geo provides coordinate reference systems, reprojection, and the planar
// geometry predicates used to join rental points against census sections.
package geo

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// CRS identifies a coordinate reference system by EPSG code.
type CRS int

// Supported reference systems.
const (
	Unknown     CRS = 0
	WGS84       CRS = 4326
	ETRS89      CRS = 4258
	WebMercator CRS = 3857
)

// ErrUnsupportedCRS is returned for reference systems this package cannot reproject.
var ErrUnsupportedCRS = eris.New("geo: unsupported crs")

// ETRS89UTM returns the ETRS89 / UTM zone N code (EPSG:258zz).
func ETRS89UTM(zone int) CRS { return CRS(25800 + zone) }

// WGS84UTM returns the WGS84 / UTM zone N code (EPSG:326zz).
func WGS84UTM(zone int) CRS { return CRS(32600 + zone) }

// utm returns the UTM zone and ellipsoid for UTM codes.
func (c CRS) utm() (int, ellipsoid, bool) {
	switch {
	case c >= 25828 && c <= 25838:
		return int(c - 25800), grs80, true
	case c >= 32601 && c <= 32660:
		return int(c - 32600), wgs84Ellipsoid, true
	}
	return 0, ellipsoid{}, false
}

// Supported reports whether c can be reprojected to and from WGS84.
func (c CRS) Supported() bool {
	if c == WGS84 || c == ETRS89 || c == WebMercator {
		return true
	}
	_, _, ok := c.utm()
	return ok
}

// Geographic reports whether coordinates are longitude/latitude degrees.
func (c CRS) Geographic() bool {
	return c == WGS84 || c == ETRS89
}

// Projected reports whether coordinates are planar metres.
func (c CRS) Projected() bool {
	return c.Supported() && !c.Geographic()
}

// Equivalent reports whether a and b describe the same coordinates. ETRS89 and
// WGS84 geographic coordinates differ by well under a metre and are treated as
// equal.
func Equivalent(a, b CRS) bool {
	if a == b {
		return true
	}
	return a.Geographic() && b.Geographic()
}

func (c CRS) String() string {
	if c == Unknown {
		return "unknown"
	}
	return fmt.Sprintf("EPSG:%d", int(c))
}

// ParseCRS parses "EPSG:25831", "epsg:4326" or a bare code.
func ParseCRS(s string) (CRS, error) {
	var code int
	if _, err := fmt.Sscanf(s, "EPSG:%d", &code); err != nil {
		if _, err := fmt.Sscanf(s, "epsg:%d", &code); err != nil {
			if _, err := fmt.Sscanf(s, "%d", &code); err != nil {
				return Unknown, eris.Errorf("geo: parse crs %q", s)
			}
		}
	}
	c := CRS(code)
	if !c.Supported() {
		return Unknown, eris.Wrapf(ErrUnsupportedCRS, "geo: %s", c)
	}
	return c, nil
}
