package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

// earthRadius matches the sphere used by orb/geo for areas and distances.
const earthRadius = 6378137.0

// azimuthalEquidistant is a spherical azimuthal equidistant projection.
// Distances and bearings measured from its centre are exact on the sphere,
// which makes it a good local frame for geodesic buffering.
type azimuthalEquidistant struct {
	lon0, sinLat0, cosLat0 float64
}

func newAzimuthalEquidistant(center orb.Point) *azimuthalEquidistant {
	lat0 := center.Lat() * math.Pi / 180
	return &azimuthalEquidistant{
		lon0:    center.Lon() * math.Pi / 180,
		sinLat0: math.Sin(lat0),
		cosLat0: math.Cos(lat0),
	}
}

// forward maps lon/lat degrees to metres from the centre.
func (a *azimuthalEquidistant) forward(p orb.Point) orb.Point {
	lat := p.Lat() * math.Pi / 180
	dLon := p.Lon()*math.Pi/180 - a.lon0
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	cosDLon := math.Cos(dLon)

	cosC := a.sinLat0*sinLat + a.cosLat0*cosLat*cosDLon
	c := math.Acos(math.Max(-1, math.Min(1, cosC)))
	k := 1.0
	if c > 1e-12 {
		k = c / math.Sin(c)
	}

	x := earthRadius * k * cosLat * math.Sin(dLon)
	y := earthRadius * k * (a.cosLat0*sinLat - a.sinLat0*cosLat*cosDLon)
	return orb.Point{x, y}
}

// inverse maps metres from the centre back to lon/lat degrees.
func (a *azimuthalEquidistant) inverse(p orb.Point) orb.Point {
	x, y := p[0], p[1]
	rho := math.Hypot(x, y)
	if rho < 1e-9 {
		return orb.Point{a.lon0 * 180 / math.Pi, math.Asin(a.sinLat0) * 180 / math.Pi}
	}
	c := rho / earthRadius
	sinC, cosC := math.Sin(c), math.Cos(c)

	lat := math.Asin(cosC*a.sinLat0 + y*sinC*a.cosLat0/rho)
	lon := a.lon0 + math.Atan2(x*sinC, rho*a.cosLat0*cosC-y*a.sinLat0*sinC)
	return orb.Point{lon * 180 / math.Pi, lat * 180 / math.Pi}
}
