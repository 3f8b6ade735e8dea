package geo

import "math"

type ellipsoid struct {
	a float64 // semi-major axis (m)
	f float64 // flattening
}

var (
	wgs84Ellipsoid = ellipsoid{a: 6378137, f: 1 / 298.257223563}
	grs80          = ellipsoid{a: 6378137, f: 1 / 298.257222101}
)

const (
	utmScale         = 0.9996
	utmFalseEasting  = 500000.0
	degToRad         = math.Pi / 180
	radToDeg         = 180 / math.Pi
	utmZoneWidthDegs = 6
)

func utmCentralMeridian(zone int) float64 {
	return float64(zone*utmZoneWidthDegs-183) * degToRad
}

// utmForward projects lon/lat degrees to UTM northern-hemisphere easting/northing
// using the Snyder series for the transverse Mercator.
func utmForward(e ellipsoid, zone int, lon, lat float64) (float64, float64) {
	phi := lat * degToRad
	lam := lon * degToRad
	lam0 := utmCentralMeridian(zone)

	e2 := e.f * (2 - e.f)
	e4 := e2 * e2
	e6 := e4 * e2
	ep2 := e2 / (1 - e2)

	sinPhi, cosPhi := math.Sincos(phi)
	tanPhi := math.Tan(phi)

	n := e.a / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	a := (lam - lam0) * cosPhi

	m := e.a * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))

	a2 := a * a
	a3 := a2 * a
	a4 := a3 * a
	a5 := a4 * a
	a6 := a5 * a

	x := utmScale * n * (a + (1-t+c)*a3/6 + (5-18*t+t*t+72*c-58*ep2)*a5/120)
	y := utmScale * (m + n*tanPhi*(a2/2+(5-t+9*c+4*c*c)*a4/24+(61-58*t+t*t+600*c-330*ep2)*a6/720))

	return x + utmFalseEasting, y
}

// utmInverse converts UTM northern-hemisphere easting/northing back to lon/lat degrees.
func utmInverse(e ellipsoid, zone int, easting, northing float64) (float64, float64) {
	x := easting - utmFalseEasting
	y := northing

	e2 := e.f * (2 - e.f)
	e4 := e2 * e2
	e6 := e4 * e2
	ep2 := e2 / (1 - e2)
	sq := math.Sqrt(1 - e2)
	e1 := (1 - sq) / (1 + sq)

	m := y / utmScale
	mu := m / (e.a * (1 - e2/4 - 3*e4/64 - 5*e6/256))

	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sinPhi1, cosPhi1 := math.Sincos(phi1)
	tanPhi1 := math.Tan(phi1)

	c1 := ep2 * cosPhi1 * cosPhi1
	t1 := tanPhi1 * tanPhi1
	n1 := e.a / math.Sqrt(1-e2*sinPhi1*sinPhi1)
	r1 := e.a * (1 - e2) / math.Pow(1-e2*sinPhi1*sinPhi1, 1.5)
	d := x / (n1 * utmScale)

	d2 := d * d
	d3 := d2 * d
	d4 := d3 * d
	d5 := d4 * d
	d6 := d5 * d

	phi := phi1 - (n1*tanPhi1/r1)*(d2/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*d4/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*d6/720)
	lam := utmCentralMeridian(zone) +
		(d-(1+2*t1+c1)*d3/6+(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*d5/120)/cosPhi1

	return lam * radToDeg, phi * radToDeg
}
