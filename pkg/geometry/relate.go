package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// parts is a geometry flattened into the pieces the relationship tests need.
type parts struct {
	points   []orb.Point
	segments [][2]orb.Point
	polygons []orb.Polygon
}

func flatten(g orb.Geometry) parts {
	var p parts
	var walk func(orb.Geometry)
	addLine := func(pts []orb.Point) {
		p.points = append(p.points, pts...)
		for i := 1; i < len(pts); i++ {
			p.segments = append(p.segments, [2]orb.Point{pts[i-1], pts[i]})
		}
	}
	walk = func(g orb.Geometry) {
		switch v := g.(type) {
		case orb.Point:
			p.points = append(p.points, v)
		case orb.MultiPoint:
			p.points = append(p.points, v...)
		case orb.LineString:
			addLine(v)
		case orb.MultiLineString:
			for _, ls := range v {
				addLine(ls)
			}
		case orb.Ring:
			walk(orb.Polygon{v})
		case orb.Polygon:
			for _, r := range v {
				addLine(r)
			}
			if len(v) > 0 {
				p.polygons = append(p.polygons, v)
			}
		case orb.MultiPolygon:
			for _, poly := range v {
				walk(poly)
			}
		case orb.Bound:
			walk(v.ToPolygon())
		case orb.Collection:
			for _, c := range v {
				walk(c)
			}
		}
	}
	walk(g)
	return p
}

// Intersects reports whether a and b share at least one point. Both must be
// in the same coordinate system.
func Intersects(a, b orb.Geometry) bool {
	if a == nil || b == nil {
		return false
	}
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	pa, pb := flatten(a), flatten(b)

	for _, pt := range pa.points {
		if inAny(pb.polygons, pt) {
			return true
		}
	}
	for _, pt := range pb.points {
		if inAny(pa.polygons, pt) {
			return true
		}
	}
	for _, sa := range pa.segments {
		for _, sb := range pb.segments {
			if segmentsIntersect(sa[0], sa[1], sb[0], sb[1]) {
				return true
			}
		}
	}
	for _, pt := range pa.points {
		if touchesAny(pt, pb) {
			return true
		}
	}
	for _, pt := range pb.points {
		if touchesAny(pt, pa) {
			return true
		}
	}
	return false
}

// Contains reports whether every point of b lies inside the areal parts of a
// and no edge of b crosses out of a.
func Contains(a, b orb.Geometry) bool {
	if a == nil || b == nil {
		return false
	}
	pa, pb := flatten(a), flatten(b)
	if len(pa.polygons) == 0 || len(pb.points) == 0 {
		return false
	}
	for _, pt := range pb.points {
		if !inAny(pa.polygons, pt) {
			return false
		}
	}
	for _, sb := range pb.segments {
		for _, sa := range pa.segments {
			if segmentsCross(sb[0], sb[1], sa[0], sa[1]) {
				return false
			}
		}
	}
	return true
}

// Within reports whether a lies inside b.
func Within(a, b orb.Geometry) bool {
	return Contains(b, a)
}

func inAny(polys []orb.Polygon, pt orb.Point) bool {
	for _, poly := range polys {
		if planar.PolygonContains(poly, pt) {
			return true
		}
	}
	return false
}

func touchesAny(pt orb.Point, p parts) bool {
	for _, q := range p.points {
		if q == pt {
			return true
		}
	}
	for _, s := range p.segments {
		if orientation(s[0], s[1], pt) == 0 && onSegment(s[0], s[1], pt) {
			return true
		}
	}
	return false
}

func orientation(a, b, c orb.Point) int {
	v := (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
	switch {
	case math.Abs(v) < 1e-12:
		return 0
	case v > 0:
		return 1
	default:
		return -1
	}
}

func onSegment(a, b, p orb.Point) bool {
	return p[0] >= math.Min(a[0], b[0]) && p[0] <= math.Max(a[0], b[0]) &&
		p[1] >= math.Min(a[1], b[1]) && p[1] <= math.Max(a[1], b[1])
}

// segmentsIntersect includes touching and collinear overlap.
func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	o1, o2 := orientation(p1, p2, q1), orientation(p1, p2, q2)
	o3, o4 := orientation(q1, q2, p1), orientation(q1, q2, p2)
	if o1 != o2 && o3 != o4 {
		return true
	}
	return (o1 == 0 && onSegment(p1, p2, q1)) ||
		(o2 == 0 && onSegment(p1, p2, q2)) ||
		(o3 == 0 && onSegment(q1, q2, p1)) ||
		(o4 == 0 && onSegment(q1, q2, p2))
}

// segmentsCross is a proper crossing, excluding shared endpoints and touches.
func segmentsCross(p1, p2, q1, q2 orb.Point) bool {
	o1, o2 := orientation(p1, p2, q1), orientation(p1, p2, q2)
	o3, o4 := orientation(q1, q2, p1), orientation(q1, q2, p2)
	return o1*o2 < 0 && o3*o4 < 0
}
