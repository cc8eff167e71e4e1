// Package geometry pairs orb geometries with their spatial reference and
// implements the local geometry engine: geodesic and planar buffers, spatial
// relationships and area.
package geometry

import (
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
)

// ErrGeometry is returned when the local engine rejects its input.
var ErrGeometry = errors.New("geometry: invalid input")

// Geometry is an orb geometry tagged with the coordinate system of its
// coordinates. Values produced by this package are never modified afterwards.
type Geometry struct {
	Geom orb.Geometry
	SR   spatialref.SpatialReference
}

// New tags g with sr.
func New(g orb.Geometry, sr spatialref.SpatialReference) Geometry {
	return Geometry{Geom: g, SR: sr}
}

// Clone returns a deep copy.
func (g Geometry) Clone() Geometry {
	if g.Geom == nil {
		return g
	}
	return Geometry{Geom: orb.Clone(g.Geom), SR: g.SR}
}

// IsEmpty reports whether the geometry has no coordinates.
func (g Geometry) IsEmpty() bool {
	if g.Geom == nil {
		return true
	}
	return countPoints(g.Geom) == 0
}

// Bound returns the envelope in the geometry's own coordinates.
func (g Geometry) Bound() orb.Bound {
	if g.Geom == nil {
		return orb.Bound{}
	}
	return g.Geom.Bound()
}

// Area returns the planar area in squared coordinate units.
func (g Geometry) Area() float64 {
	if g.Geom == nil {
		return 0
	}
	return planar.Area(g.Geom)
}

// AreaMeters returns the area in square metres. Geographic and Web Mercator
// geometries are measured on the sphere.
func (g Geometry) AreaMeters() float64 {
	if g.Geom == nil {
		return 0
	}
	switch {
	case g.SR.IsWebMercator():
		return geo.Area(project.Geometry(orb.Clone(g.Geom), project.Mercator.ToWGS84))
	case g.SR.IsGeographic():
		return geo.Area(g.Geom)
	default:
		u := g.SR.LinearUnitMeters()
		return planar.Area(g.Geom) * u * u
	}
}

func countPoints(g orb.Geometry) int {
	switch v := g.(type) {
	case orb.Point:
		return 1
	case orb.MultiPoint:
		return len(v)
	case orb.LineString:
		return len(v)
	case orb.MultiLineString:
		n := 0
		for _, ls := range v {
			n += len(ls)
		}
		return n
	case orb.Ring:
		return len(v)
	case orb.Polygon:
		n := 0
		for _, r := range v {
			n += len(r)
		}
		return n
	case orb.MultiPolygon:
		n := 0
		for _, p := range v {
			n += countPoints(p)
		}
		return n
	case orb.Collection:
		n := 0
		for _, c := range v {
			n += countPoints(c)
		}
		return n
	case orb.Bound:
		return 4
	}
	return 0
}
