package flatgeobuf

import (
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
)

// fgbTypes maps GeoJSON type names onto FlatGeobuf geometry types. Rings and
// bounds report "Polygon" and are written as such.
var fgbTypes = map[string]flattypes.GeometryType{
	orb.Point{}.GeoJSONType():           flattypes.GeometryTypePoint,
	orb.MultiPoint{}.GeoJSONType():      flattypes.GeometryTypeMultiPoint,
	orb.LineString{}.GeoJSONType():      flattypes.GeometryTypeLineString,
	orb.MultiLineString{}.GeoJSONType(): flattypes.GeometryTypeMultiLineString,
	orb.Polygon{}.GeoJSONType():         flattypes.GeometryTypePolygon,
	orb.MultiPolygon{}.GeoJSONType():    flattypes.GeometryTypeMultiPolygon,
}

func geometryType(g orb.Geometry) flattypes.GeometryType {
	if t, ok := fgbTypes[g.GeoJSONType()]; ok {
		return t
	}
	return flattypes.GeometryTypeUnknown
}

// encodeGeometry returns nil for geometry types FlatGeobuf layers here do not use.
func encodeGeometry(g orb.Geometry, b *flatbuffers.Builder) *writer.Geometry {
	gtype := geometryType(g)
	if gtype == flattypes.GeometryTypeUnknown {
		return nil
	}
	out := writer.NewGeometry(b)
	out.SetType(gtype)

	if mp, ok := g.(orb.MultiPolygon); ok {
		polys := make([]writer.Geometry, len(mp))
		for i := range mp {
			polys[i] = *encodeGeometry(mp[i], b)
		}
		out.SetParts(polys)
		return out
	}

	lines := asLines(g)
	xy, ends := flatParts(lines)
	out.SetXY(xy)
	if gtype == flattypes.GeometryTypeMultiLineString || gtype == flattypes.GeometryTypePolygon {
		out.SetEnds(ends)
	}
	return out
}

// asLines views every non-multipolygon geometry as a list of coordinate runs.
func asLines(g orb.Geometry) [][]orb.Point {
	switch v := g.(type) {
	case orb.Point:
		return [][]orb.Point{{v}}
	case orb.MultiPoint:
		return [][]orb.Point{v}
	case orb.LineString:
		return [][]orb.Point{v}
	case orb.Ring:
		return [][]orb.Point{v}
	case orb.Bound:
		return asLines(v.ToPolygon())
	case orb.MultiLineString:
		runs := make([][]orb.Point, len(v))
		for i := range v {
			runs[i] = v[i]
		}
		return runs
	case orb.Polygon:
		runs := make([][]orb.Point, len(v))
		for i := range v {
			runs[i] = v[i]
		}
		return runs
	}
	return nil
}

// flatParts interleaves the runs into one xy vector and records the running
// end index of each.
func flatParts(runs [][]orb.Point) ([]float64, []uint32) {
	var xy []float64
	ends := make([]uint32, 0, len(runs))
	for _, run := range runs {
		for _, p := range run {
			xy = append(xy, p.X(), p.Y())
		}
		ends = append(ends, uint32(len(xy)/2))
	}
	return xy, ends
}

func decodeGeometry(g *flattypes.Geometry) orb.Geometry {
	if g.Type() == flattypes.GeometryTypeMultiPolygon {
		mp := make(orb.MultiPolygon, 0, g.PartsLength())
		part := new(flattypes.Geometry)
		for i := 0; i < g.PartsLength(); i++ {
			if g.Parts(part, i) {
				mp = append(mp, decodePolygon(part))
			}
		}
		return mp
	}

	all := readXY(g, 0, g.XyLength()/2)
	switch g.Type() {
	case flattypes.GeometryTypePoint:
		if len(all) > 0 {
			return all[0]
		}
	case flattypes.GeometryTypeMultiPoint:
		return orb.MultiPoint(all)
	case flattypes.GeometryTypeLineString:
		return orb.LineString(all)
	case flattypes.GeometryTypeMultiLineString:
		runs := spans(g)
		mls := make(orb.MultiLineString, len(runs))
		for i, s := range runs {
			mls[i] = all[s[0]:s[1]:s[1]]
		}
		return mls
	case flattypes.GeometryTypePolygon:
		return decodePolygon(g)
	}
	return nil
}

func decodePolygon(g *flattypes.Geometry) orb.Polygon {
	all := readXY(g, 0, g.XyLength()/2)
	runs := spans(g)
	poly := make(orb.Polygon, len(runs))
	for i, s := range runs {
		poly[i] = all[s[0]:s[1]:s[1]]
	}
	return poly
}

// spans returns [start, end) point ranges from the ends vector. A geometry
// without ends is one span.
func spans(g *flattypes.Geometry) [][2]int {
	n := g.XyLength() / 2
	if g.EndsLength() == 0 {
		return [][2]int{{0, n}}
	}
	out := make([][2]int, 0, g.EndsLength())
	from := 0
	for i := 0; i < g.EndsLength(); i++ {
		to := min(int(g.Ends(i)), n)
		if to < from {
			to = from
		}
		out = append(out, [2]int{from, to})
		from = to
	}
	return out
}

func readXY(g *flattypes.Geometry, start, end int) []orb.Point {
	pts := make([]orb.Point, 0, end-start)
	for i := start; i < end; i++ {
		pts = append(pts, orb.Point{g.Xy(2 * i), g.Xy(2*i + 1)})
	}
	return pts
}
