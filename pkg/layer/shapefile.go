package layer

import (
	"fmt"
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/geometry"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
)

// LoadShapefile reads a .shp file and its .dbf attributes into a memory
// layer. A zero sr is taken from the .prj file when it names WGS84 or Web
// Mercator; otherwise fallback is used.
func LoadShapefile(id, path string, sr, fallback spatialref.SpatialReference, opts ...Option) (*Memory, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile layer %s: %w", id, err)
	}
	defer reader.Close()

	if sr.IsZero() {
		sr = prjReference(strings.TrimSuffix(path, ".shp")+".prj", fallback)
	}

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.String()
	}

	var features []Feature
	for reader.Next() {
		n, s := reader.Shape()
		g := shapeGeometry(s)
		if g == nil {
			continue
		}
		attrs := make(map[string]interface{}, len(names))
		for i, name := range names {
			attrs[name] = strings.TrimSpace(reader.ReadAttribute(n, i))
		}
		features = append(features, Feature{
			ID:         featureID(nil, attrs, n),
			Attributes: attrs,
			Geometry:   geometry.New(g, sr),
		})
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read shapefile layer %s: %w", id, err)
	}
	return NewMemory(id, sr, features, opts...), nil
}

func shapeGeometry(s shp.Shape) orb.Geometry {
	switch s := s.(type) {
	case *shp.Point:
		return orb.Point{s.X, s.Y}
	case *shp.MultiPoint:
		mp := make(orb.MultiPoint, len(s.Points))
		for i, p := range s.Points {
			mp[i] = orb.Point{p.X, p.Y}
		}
		return mp
	case *shp.PolyLine:
		mls := orb.MultiLineString{}
		for _, part := range parts(s.Parts, s.Points) {
			mls = append(mls, orb.LineString(part))
		}
		if len(mls) == 1 {
			return mls[0]
		}
		return mls
	case *shp.Polygon:
		return shapePolygon(parts(s.Parts, s.Points))
	}
	return nil
}

// shapePolygon groups rings: clockwise rings are shells and the
// counter-clockwise rings after a shell are its holes.
func shapePolygon(rings [][]orb.Point) orb.Geometry {
	var mp orb.MultiPolygon
	for _, pts := range rings {
		r := orb.Ring(pts)
		if len(mp) == 0 || r.Orientation() == orb.CW {
			mp = append(mp, orb.Polygon{r})
			continue
		}
		last := len(mp) - 1
		mp[last] = append(mp[last], r)
	}
	switch len(mp) {
	case 0:
		return nil
	case 1:
		return mp[0]
	}
	return mp
}

func parts(starts []int32, points []shp.Point) [][]orb.Point {
	out := make([][]orb.Point, 0, len(starts))
	for i, start := range starts {
		end := int32(len(points))
		if i < len(starts)-1 {
			end = starts[i+1]
		}
		part := make([]orb.Point, 0, end-start)
		for _, p := range points[start:end] {
			part = append(part, orb.Point{p.X, p.Y})
		}
		out = append(out, part)
	}
	return out
}

// prjReference recognizes the two references the local engine handles.
func prjReference(path string, fallback spatialref.SpatialReference) spatialref.SpatialReference {
	data, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	wkt := strings.ToUpper(string(data))
	switch {
	case strings.Contains(wkt, "WEB_MERCATOR"), strings.Contains(wkt, "PSEUDO-MERCATOR"), strings.Contains(wkt, "PSEUDO_MERCATOR"):
		return spatialref.WebMercator()
	case strings.HasPrefix(strings.TrimSpace(wkt), "GEOGCS") && strings.Contains(wkt, "WGS_1984"):
		return spatialref.WGS84()
	}
	return fallback
}
