package geo

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	authorityRe = regexp.MustCompile(`AUTHORITY\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]\s*\]\s*$`)
	utmZoneRe   = regexp.MustCompile(`UTM[_ ]ZONE[_ ](\d{1,2})N`)
)

// ParsePRJ detects the reference system described by the WKT in a shapefile
// .prj sidecar. A trailing EPSG authority wins; otherwise ESRI-style names
// for UTM, Web Mercator and the WGS84/ETRS89 geographic systems are matched.
func ParsePRJ(wkt string) (CRS, error) {
	s := strings.TrimSpace(wkt)
	if s == "" {
		return Unknown, eris.New("geo: empty prj")
	}

	if m := authorityRe.FindStringSubmatch(s); m != nil {
		code, _ := strconv.Atoi(m[1])
		c := CRS(code)
		if !c.Supported() {
			return Unknown, eris.Wrapf(ErrUnsupportedCRS, "geo: prj authority EPSG:%d", code)
		}
		return c, nil
	}

	upper := strings.ToUpper(s)
	projected := strings.HasPrefix(upper, "PROJCS") || strings.HasPrefix(upper, "PROJCRS")
	etrs := strings.Contains(upper, "ETRS") || strings.Contains(upper, "EUROPEAN_TERRESTRIAL")

	if projected {
		if m := utmZoneRe.FindStringSubmatch(upper); m != nil {
			zone, _ := strconv.Atoi(m[1])
			c := WGS84UTM(zone)
			if etrs {
				c = ETRS89UTM(zone)
			}
			if !c.Supported() {
				return Unknown, eris.Wrapf(ErrUnsupportedCRS, "geo: prj utm zone %d", zone)
			}
			return c, nil
		}
		if strings.Contains(upper, "PSEUDO") || strings.Contains(upper, "AUXILIARY_SPHERE") ||
			strings.Contains(upper, "WEB_MERCATOR") || strings.Contains(upper, "POPULAR VISUALISATION") {
			return WebMercator, nil
		}
		return Unknown, eris.Wrap(ErrUnsupportedCRS, "geo: unrecognized projected prj")
	}

	if strings.HasPrefix(upper, "GEOGCS") || strings.HasPrefix(upper, "GEOGCRS") {
		if etrs {
			return ETRS89, nil
		}
		if strings.Contains(upper, "WGS") {
			return WGS84, nil
		}
	}
	return Unknown, eris.Wrap(ErrUnsupportedCRS, "geo: unrecognized prj")
}
