package arcgis

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/geometry"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
)

// Esri geometry type names.
const (
	GeometryPoint      = "esriGeometryPoint"
	GeometryMultipoint = "esriGeometryMultipoint"
	GeometryPolyline   = "esriGeometryPolyline"
	GeometryPolygon    = "esriGeometryPolygon"
	GeometryEnvelope   = "esriGeometryEnvelope"
)

// Geometry is the Esri JSON geometry object. Exactly one of the shapes is set.
type Geometry struct {
	X      *float64      `json:"x,omitempty"`
	Y      *float64      `json:"y,omitempty"`
	Points [][]float64   `json:"points,omitempty"`
	Paths  [][][]float64 `json:"paths,omitempty"`
	Rings  [][][]float64 `json:"rings,omitempty"`

	XMin *float64 `json:"xmin,omitempty"`
	YMin *float64 `json:"ymin,omitempty"`
	XMax *float64 `json:"xmax,omitempty"`
	YMax *float64 `json:"ymax,omitempty"`

	SpatialReference *spatialref.SpatialReference `json:"spatialReference,omitempty"`
}

// Type returns the Esri geometry type name of g.
func (g *Geometry) Type() string {
	switch {
	case g.X != nil && g.Y != nil:
		return GeometryPoint
	case g.Points != nil:
		return GeometryMultipoint
	case g.Paths != nil:
		return GeometryPolyline
	case g.Rings != nil:
		return GeometryPolygon
	case g.XMin != nil && g.YMin != nil && g.XMax != nil && g.YMax != nil:
		return GeometryEnvelope
	}
	return ""
}

// ToGeometry decodes g. When g carries no spatial reference, def is used.
func (g *Geometry) ToGeometry(def spatialref.SpatialReference) (geometry.Geometry, error) {
	sr := def
	if g.SpatialReference != nil && !g.SpatialReference.IsZero() {
		sr = *g.SpatialReference
	}
	o, err := g.ToOrb()
	if err != nil {
		return geometry.Geometry{}, err
	}
	return geometry.New(o, sr), nil
}

// ToOrb converts g into an orb geometry. Polygon rings are grouped by
// orientation: clockwise rings start a new polygon and counter-clockwise rings
// are holes of the preceding one.
func (g *Geometry) ToOrb() (orb.Geometry, error) {
	switch g.Type() {
	case GeometryPoint:
		return orb.Point{*g.X, *g.Y}, nil
	case GeometryMultipoint:
		return orb.MultiPoint(toPoints(g.Points)), nil
	case GeometryPolyline:
		if len(g.Paths) == 1 {
			return orb.LineString(toPoints(g.Paths[0])), nil
		}
		mls := make(orb.MultiLineString, 0, len(g.Paths))
		for _, p := range g.Paths {
			mls = append(mls, orb.LineString(toPoints(p)))
		}
		return mls, nil
	case GeometryPolygon:
		return ringsToOrb(g.Rings), nil
	case GeometryEnvelope:
		return orb.Bound{Min: orb.Point{*g.XMin, *g.YMin}, Max: orb.Point{*g.XMax, *g.YMax}}, nil
	}
	return nil, fmt.Errorf("%w: empty or unrecognised Esri geometry", geometry.ErrGeometry)
}

func ringsToOrb(rings [][][]float64) orb.Geometry {
	var mp orb.MultiPolygon
	for _, raw := range rings {
		r := closeRing(orb.Ring(toPoints(raw)))
		if len(r) < 4 {
			continue
		}
		if r.Orientation() == orb.CCW && len(mp) > 0 {
			r.Reverse()
			mp[len(mp)-1] = append(mp[len(mp)-1], r)
			continue
		}
		if r.Orientation() == orb.CW {
			r.Reverse()
		}
		mp = append(mp, orb.Polygon{r})
	}
	if len(mp) == 1 {
		return mp[0]
	}
	return mp
}

// FromGeometry encodes g as Esri JSON and returns its geometry type name.
func FromGeometry(g geometry.Geometry) (*Geometry, string, error) {
	out := &Geometry{}
	if !g.SR.IsZero() {
		sr := g.SR
		out.SpatialReference = &sr
	}

	switch v := g.Geom.(type) {
	case orb.Point:
		x, y := v[0], v[1]
		out.X, out.Y = &x, &y
	case orb.MultiPoint:
		out.Points = fromPoints(v)
	case orb.LineString:
		out.Paths = [][][]float64{fromPoints(v)}
	case orb.MultiLineString:
		for _, ls := range v {
			out.Paths = append(out.Paths, fromPoints(ls))
		}
	case orb.Ring:
		out.Rings = polygonRings(orb.Polygon{v})
	case orb.Polygon:
		out.Rings = polygonRings(v)
	case orb.MultiPolygon:
		for _, p := range v {
			out.Rings = append(out.Rings, polygonRings(p)...)
		}
	case orb.Bound:
		out.XMin, out.YMin = &v.Min[0], &v.Min[1]
		out.XMax, out.YMax = &v.Max[0], &v.Max[1]
	default:
		return nil, "", fmt.Errorf("%w: cannot encode %T as Esri JSON", geometry.ErrGeometry, g.Geom)
	}
	return out, out.Type(), nil
}

// polygonRings orders rings the Esri way: outer clockwise, holes counter-clockwise.
func polygonRings(p orb.Polygon) [][][]float64 {
	rings := make([][][]float64, 0, len(p))
	for i, r := range p {
		r = closeRing(orb.Ring(append([]orb.Point(nil), r...)))
		want := orb.CW
		if i > 0 {
			want = orb.CCW
		}
		if r.Orientation() != want {
			r.Reverse()
		}
		rings = append(rings, fromPoints(r))
	}
	return rings
}

func closeRing(r orb.Ring) orb.Ring {
	if len(r) > 0 && !r.Closed() {
		r = append(r, r[0])
	}
	return r
}

func toPoints(coords [][]float64) []orb.Point {
	pts := make([]orb.Point, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		pts = append(pts, orb.Point{c[0], c[1]})
	}
	return pts
}

func fromPoints[P ~[]orb.Point](pts P) [][]float64 {
	out := make([][]float64, len(pts))
	for i, p := range pts {
		out[i] = []float64{p[0], p[1]}
	}
	return out
}
