package geometry

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// arcStep is the angular resolution of round joins and caps (64 per circle).
const arcStep = math.Pi / 32

// PlanarBuffer buffers g by distance using flat Euclidean offsets. It is only
// valid for projected references; the distance is converted into the
// reference's linear unit.
func PlanarBuffer(g Geometry, distance float64, unit LengthUnit) (Geometry, error) {
	meters, err := checkBufferInput(g, distance, unit)
	if err != nil {
		return Geometry{}, err
	}
	if g.SR.IsGeographic() {
		return Geometry{}, fmt.Errorf("%w: planar buffer requires a projected reference, got geographic %s", ErrGeometry, g.SR)
	}

	d := meters / g.SR.LinearUnitMeters()
	out, err := bufferOrb(orb.Clone(g.Geom), d)
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{Geom: out, SR: g.SR}, nil
}

// GeodesicBuffer buffers g by distance on the sphere. Only WGS84 and Web
// Mercator inputs are accepted. The geometry is moved into an azimuthal
// equidistant frame centred on its envelope, offset in metres there, and
// moved back into its original reference.
func GeodesicBuffer(g Geometry, distance float64, unit LengthUnit) (Geometry, error) {
	meters, err := checkBufferInput(g, distance, unit)
	if err != nil {
		return Geometry{}, err
	}
	mercator := g.SR.IsWebMercator()
	if !mercator && !g.SR.IsWGS84() {
		return Geometry{}, fmt.Errorf("%w: local geodesic buffer supports WGS84 and Web Mercator only, got %s", ErrGeometry, g.SR)
	}

	lonLat := orb.Clone(g.Geom)
	if mercator {
		lonLat = project.Geometry(lonLat, project.Mercator.ToWGS84)
	}

	frame := newAzimuthalEquidistant(lonLat.Bound().Center())
	local := project.Geometry(lonLat, frame.forward)

	buffered, err := bufferOrb(local, meters)
	if err != nil {
		return Geometry{}, err
	}

	out := project.Geometry(buffered, frame.inverse)
	if mercator {
		out = project.Geometry(out, project.WGS84.ToMercator)
	}
	return Geometry{Geom: out, SR: g.SR}, nil
}

func checkBufferInput(g Geometry, distance float64, unit LengthUnit) (float64, error) {
	if math.IsNaN(distance) || math.IsInf(distance, 0) || distance <= 0 {
		return 0, fmt.Errorf("%w: buffer distance must be positive, got %v", ErrGeometry, distance)
	}
	if g.IsEmpty() {
		return 0, fmt.Errorf("%w: cannot buffer an empty geometry", ErrGeometry)
	}
	return ToMeters(distance, unit)
}

// bufferOrb offsets g outward by d coordinate units.
func bufferOrb(g orb.Geometry, d float64) (orb.Geometry, error) {
	switch v := g.(type) {
	case orb.Point:
		return orb.Polygon{circle(v, d)}, nil
	case orb.MultiPoint:
		mp := make(orb.MultiPolygon, 0, len(v))
		for _, p := range v {
			mp = append(mp, orb.Polygon{circle(p, d)})
		}
		return mp, nil
	case orb.LineString:
		return collect(untangle(orb.Polygon{bufferLine(v, d)})), nil
	case orb.MultiLineString:
		mp := make(orb.MultiPolygon, 0, len(v))
		for _, ls := range v {
			mp = append(mp, untangle(orb.Polygon{bufferLine(ls, d)})...)
		}
		return mp, nil
	case orb.Ring:
		return collect(untangle(bufferPolygon(orb.Polygon{v}, d))), nil
	case orb.Polygon:
		return collect(untangle(bufferPolygon(v, d))), nil
	case orb.MultiPolygon:
		mp := make(orb.MultiPolygon, 0, len(v))
		for _, p := range v {
			mp = append(mp, untangle(bufferPolygon(p, d))...)
		}
		return mp, nil
	case orb.Bound:
		return collect(untangle(bufferPolygon(v.ToPolygon(), d))), nil
	}
	return nil, fmt.Errorf("%w: unsupported geometry type %T", ErrGeometry, g)
}

func collect(ps []orb.Polygon) orb.Geometry {
	if len(ps) == 1 {
		return ps[0]
	}
	return orb.MultiPolygon(ps)
}

func circle(c orb.Point, d float64) orb.Ring {
	n := int(math.Ceil(2 * math.Pi / arcStep))
	ring := make(orb.Ring, 0, n+1)
	for k := 0; k < n; k++ {
		a := 2 * math.Pi * float64(k) / float64(n)
		ring = append(ring, orb.Point{c[0] + d*math.Cos(a), c[1] + d*math.Sin(a)})
	}
	return append(ring, ring[0])
}

// bufferLine walks the line out and back so a single ring offset yields both
// sides plus round caps.
func bufferLine(ls orb.LineString, d float64) orb.Ring {
	pts := dedupe([]orb.Point(ls))
	if len(pts) == 0 {
		return orb.Ring{}
	}
	if len(pts) == 1 {
		return circle(pts[0], d)
	}
	path := append([]orb.Point{}, pts...)
	for i := len(pts) - 2; i >= 1; i-- {
		path = append(path, pts[i])
	}
	return offsetCycle(path, d)
}

func bufferPolygon(poly orb.Polygon, d float64) orb.Polygon {
	if len(poly) == 0 {
		return orb.Polygon{}
	}
	outer := openRing(poly[0])
	if len(outer) == 0 {
		return orb.Polygon{}
	}
	if len(outer) < 3 {
		return orb.Polygon{bufferLine(orb.LineString(outer), d)}
	}
	if signedArea(outer) < 0 {
		reverse(outer)
	}
	out := orb.Polygon{offsetCycle(outer, d)}

	for _, h := range poly[1:] {
		hole := openRing(h)
		if len(hole) < 3 {
			continue
		}
		b := orb.MultiPoint(hole).Bound()
		if math.Min(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]) <= 2*d {
			continue
		}
		// clockwise so the right-hand offset moves into the hole
		if signedArea(hole) > 0 {
			reverse(hole)
		}
		shrunk := offsetCycle(hole, d)
		if signedArea([]orb.Point(shrunk)) >= 0 {
			continue
		}
		out = append(out, shrunk)
	}
	return out
}

// offsetCycle offsets the closed vertex cycle v to its right-hand side by d.
// Left turns get round joins, right turns get a mitre point, U-turns a
// half circle.
func offsetCycle(v []orb.Point, d float64) orb.Ring {
	m := len(v)
	ring := make(orb.Ring, 0, m*4)
	for i := 0; i < m; i++ {
		prev, cur, next := v[(i-1+m)%m], v[i], v[(i+1)%m]
		e1 := direction(cur[0]-prev[0], cur[1]-prev[1])
		e2 := direction(next[0]-cur[0], next[1]-cur[1])
		n1 := orb.Point{e1[1], -e1[0]}
		n2 := orb.Point{e2[1], -e2[0]}

		cross := e1[0]*e2[1] - e1[1]*e2[0]
		dot := e1[0]*e2[0] + e1[1]*e2[1]

		switch {
		case math.Abs(cross) <= 1e-12 && dot < 0:
			ring = appendArc(ring, cur, n1, math.Pi, d)
		case cross > 1e-12:
			ring = appendArc(ring, cur, n1, math.Atan2(cross, dot), d)
		case cross < -1e-12:
			den := 1 + n1[0]*n2[0] + n1[1]*n2[1]
			if den < 0.1 {
				ring = append(ring,
					orb.Point{cur[0] + d*n1[0], cur[1] + d*n1[1]},
					orb.Point{cur[0] + d*n2[0], cur[1] + d*n2[1]})
				continue
			}
			ring = append(ring, orb.Point{
				cur[0] + d*(n1[0]+n2[0])/den,
				cur[1] + d*(n1[1]+n2[1])/den,
			})
		default:
			ring = append(ring, orb.Point{cur[0] + d*n1[0], cur[1] + d*n1[1]})
		}
	}
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	return ring
}

// appendArc adds points around c from direction from, sweeping sweep radians
// counter-clockwise.
func appendArc(ring orb.Ring, c, from orb.Point, sweep, d float64) orb.Ring {
	start := math.Atan2(from[1], from[0])
	steps := int(math.Ceil(sweep / arcStep))
	if steps < 1 {
		steps = 1
	}
	for k := 0; k <= steps; k++ {
		a := start + sweep*float64(k)/float64(steps)
		ring = append(ring, orb.Point{c[0] + d*math.Cos(a), c[1] + d*math.Sin(a)})
	}
	return ring
}

func direction(x, y float64) orb.Point {
	l := math.Hypot(x, y)
	if l == 0 {
		return orb.Point{}
	}
	return orb.Point{x / l, y / l}
}

// openRing drops repeated vertices and the closing point.
func openRing(r orb.Ring) []orb.Point {
	pts := dedupe([]orb.Point(r))
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	return pts
}

func dedupe(pts []orb.Point) []orb.Point {
	out := make([]orb.Point, 0, len(pts))
	for i, p := range pts {
		if i > 0 && p == pts[i-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}

// signedArea is positive for counter-clockwise vertex order.
func signedArea(pts []orb.Point) float64 {
	var sum float64
	n := len(pts)
	for i := 0; i < n; i++ {
		a, b := pts[i], pts[(i+1)%n]
		sum += a[0]*b[1] - b[0]*a[1]
	}
	return sum / 2
}

func reverse(pts []orb.Point) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}
