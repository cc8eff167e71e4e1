package geometry

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
)

var utm50N = spatialref.FromWKID(32650)

func square(minX, minY, size float64) orb.Polygon {
	return orb.Polygon{{
		{minX, minY}, {minX + size, minY}, {minX + size, minY + size}, {minX, minY + size}, {minX, minY},
	}}
}

func TestPlanarBuffer_Square(t *testing.T) {
	g := New(square(0, 0, 100), utm50N)

	out, err := PlanarBuffer(g, 10, Meters)
	require.NoError(t, err)

	poly, ok := out.Geom.(orb.Polygon)
	require.True(t, ok, "expected polygon, got %T", out.Geom)
	assert.Len(t, poly, 1)
	// 100² + 4·100·10 + π·10², slightly less for the polygonal arcs
	assert.InDelta(t, 14314.16, out.Area(), 5)
	assert.True(t, out.SR.Equal(utm50N))
	assert.True(t, Contains(out.Geom, g.Geom))

	// input untouched
	assert.Equal(t, square(0, 0, 100), g.Geom)
}

func TestPlanarBuffer_UnitConversion(t *testing.T) {
	g := New(orb.Point{0, 0}, utm50N)
	out, err := PlanarBuffer(g, 100, Feet)
	require.NoError(t, err)

	ring := out.Geom.(orb.Polygon)[0]
	assert.InDelta(t, 30.48, planar.Distance(orb.Point{0, 0}, ring[0]), 1e-9)

	feetSR := spatialref.SpatialReference{WKID: 2229, MetersPerUnit: 0.3048}
	out, err = PlanarBuffer(New(orb.Point{0, 0}, feetSR), 10, Meters)
	require.NoError(t, err)
	ring = out.Geom.(orb.Polygon)[0]
	assert.InDelta(t, 10/0.3048, planar.Distance(orb.Point{0, 0}, ring[0]), 1e-9)
}

func TestPlanarBuffer_Errors(t *testing.T) {
	tests := []struct {
		name     string
		g        Geometry
		distance float64
		unit     LengthUnit
	}{
		{"zero distance", New(square(0, 0, 1), utm50N), 0, Meters},
		{"negative distance", New(square(0, 0, 1), utm50N), -5, Meters},
		{"NaN distance", New(square(0, 0, 1), utm50N), math.NaN(), Meters},
		{"unknown unit", New(square(0, 0, 1), utm50N), 5, UnitUnknown},
		{"geographic reference", New(square(0, 0, 1), spatialref.WGS84()), 5, Meters},
		{"empty geometry", New(orb.Polygon{}, utm50N), 5, Meters},
		{"nil geometry", New(nil, utm50N), 5, Meters},
		{"collection", New(orb.Collection{orb.Point{1, 1}}, utm50N), 5, Meters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PlanarBuffer(tt.g, tt.distance, tt.unit)
			assert.ErrorIs(t, err, ErrGeometry)
		})
	}
}

func TestPlanarBuffer_Line(t *testing.T) {
	out, err := PlanarBuffer(New(orb.LineString{{0, 0}, {100, 0}}, utm50N), 10, Meters)
	require.NoError(t, err)
	// rectangle plus two half discs
	assert.InDelta(t, 2000+math.Pi*100, out.Area(), 2)
	assert.True(t, planar.PolygonContains(out.Geom.(orb.Polygon), orb.Point{50, 9}))
	assert.True(t, planar.PolygonContains(out.Geom.(orb.Polygon), orb.Point{50, -9}))
	assert.True(t, planar.PolygonContains(out.Geom.(orb.Polygon), orb.Point{108, 0}))
}

func TestPlanarBuffer_Holes(t *testing.T) {
	poly := orb.Polygon{
		square(0, 0, 100)[0],
		{{40, 40}, {40, 60}, {60, 60}, {60, 40}, {40, 40}},
	}

	out, err := PlanarBuffer(New(poly, utm50N), 5, Meters)
	require.NoError(t, err)
	got := out.Geom.(orb.Polygon)
	require.Len(t, got, 2)
	assert.InDelta(t, 100, math.Abs(signedArea(got[1])), 1e-6)

	out, err = PlanarBuffer(New(poly, utm50N), 15, Meters)
	require.NoError(t, err)
	assert.Len(t, out.Geom.(orb.Polygon), 1, "hole narrower than the buffer should close")
}

func TestPlanarBuffer_Concave(t *testing.T) {
	lShape := orb.Polygon{{{0, 0}, {100, 0}, {100, 30}, {30, 30}, {30, 100}, {0, 100}, {0, 0}}}
	src := New(lShape, utm50N)

	out, err := PlanarBuffer(src, 5, Meters)
	require.NoError(t, err)
	assert.Greater(t, out.Area(), src.Area())
	assert.True(t, Contains(out.Geom, src.Geom))
	// reflex corner gets a mitre, not a round join
	assert.True(t, planar.PolygonContains(out.Geom.(orb.Polygon), orb.Point{34.9, 34.9}))
	assert.False(t, planar.PolygonContains(out.Geom.(orb.Polygon), orb.Point{35.1, 35.1}))
}

func TestPlanarBuffer_NarrowNotch(t *testing.T) {
	// notch 10 wide, buffered by 8 so the offsets of its walls overlap
	uShape := orb.Polygon{{
		{0, 0}, {30, 0}, {30, 30}, {20, 30}, {20, 10}, {10, 10}, {10, 30}, {0, 30}, {0, 0},
	}}
	src := New(uShape, utm50N)

	out, err := PlanarBuffer(src, 8, Meters)
	require.NoError(t, err)
	poly, ok := out.Geom.(orb.Polygon)
	require.True(t, ok, "expected polygon, got %T", out.Geom)
	require.Len(t, poly, 1)

	assert.True(t, Intersects(out.Geom, orb.Point{15, 20}), "notch floor")
	assert.True(t, Intersects(out.Geom, orb.Point{15, 35}), "above the notch mouth")
	assert.False(t, Intersects(out.Geom, orb.Point{15, 37}), "beyond 8 from both mouth corners")
	assert.True(t, Intersects(out.Geom, square(14, 14, 2)))
	assert.True(t, Contains(out.Geom, src.Geom))

	// no vertex is left inside the buffer; every one sits on the offset
	outer := uShape[0]
	for _, p := range poly[0] {
		nearest := math.Inf(1)
		for i := 1; i < len(outer); i++ {
			nearest = math.Min(nearest, planar.DistanceFromSegment(outer[i-1], outer[i], p))
		}
		assert.InDelta(t, 8, nearest, 0.02, "vertex %v", p)
	}
}

func TestPlanarBuffer_ZigzagLine(t *testing.T) {
	// legs 4 apart at the turn, buffered by 5 so both inner offsets cross
	line := orb.LineString{{0, 0}, {40, 2}, {0, 4}}
	out, err := PlanarBuffer(New(line, utm50N), 5, Meters)
	require.NoError(t, err)

	assert.True(t, Intersects(out.Geom, orb.Point{20, 2}))
	assert.True(t, Intersects(out.Geom, orb.Point{2, 2}))
	assert.False(t, Intersects(out.Geom, orb.Point{20, 10}))
}

func TestGeodesicBuffer_NarrowNotch(t *testing.T) {
	// about 8.5 m of longitude per step at this latitude
	const lon, lat, step = 116.39, 39.9, 1e-4
	at := func(x, y float64) orb.Point { return orb.Point{lon + x*step, lat + y*step} }
	uShape := orb.Polygon{{
		at(0, 0), at(3, 0), at(3, 3), at(2, 3), at(2, 1), at(1, 1), at(1, 3), at(0, 3), at(0, 0),
	}}

	out, err := GeodesicBuffer(New(uShape, spatialref.WGS84()), 8, Meters)
	require.NoError(t, err)
	assert.True(t, Intersects(out.Geom, at(1.5, 2)))
	assert.True(t, Intersects(out.Geom, at(1.5, 3.3)))
	assert.True(t, Contains(out.Geom, uShape))
}

func TestUntangle_BowTie(t *testing.T) {
	bowTie := orb.Polygon{{{0, 0}, {10, 10}, {10, 0}, {0, 10}, {0, 0}}}

	got := untangle(bowTie)
	require.Len(t, got, 2)
	for _, p := range got {
		require.Len(t, p, 1)
		assert.InDelta(t, 25, signedArea(p[0]), 1e-9)
	}

	simple := square(0, 0, 10)
	assert.Equal(t, []orb.Polygon{simple}, untangle(simple))
}

func TestGeodesicBuffer_WGS84Point(t *testing.T) {
	center := orb.Point{116.397, 39.909}
	out, err := GeodesicBuffer(New(center, spatialref.WGS84()), 1, Kilometers)
	require.NoError(t, err)

	ring := out.Geom.(orb.Polygon)[0]
	for _, p := range ring {
		assert.InDelta(t, 1000, geo.Distance(center, p), 0.5)
	}
	assert.InDelta(t, math.Pi*1e6, out.AreaMeters(), math.Pi*1e6*0.01)
}

func TestGeodesicBuffer_WebMercator400Feet(t *testing.T) {
	lonLat := orb.Polygon{{
		{116.390, 39.905}, {116.395, 39.905}, {116.395, 39.909}, {116.390, 39.909}, {116.390, 39.905},
	}}
	merc := project.Geometry(orb.Clone(lonLat), project.WGS84.ToMercator)
	src := New(merc, spatialref.WebMercator())

	out, err := GeodesicBuffer(src, 400, Feet)
	require.NoError(t, err)
	assert.True(t, out.SR.IsWebMercator())
	assert.Greater(t, out.Area(), src.Area())
	assert.Greater(t, out.AreaMeters(), src.AreaMeters())
	assert.True(t, Contains(out.Geom, src.Geom))

	// a corner vertex of the source sits ~121.92 m inside the buffer edge
	outLonLat := project.Geometry(orb.Clone(out.Geom), project.Mercator.ToWGS84).(orb.Polygon)
	corner := lonLat[0][1]
	nearest := math.Inf(1)
	for _, p := range outLonLat[0] {
		nearest = math.Min(nearest, geo.Distance(corner, p))
	}
	assert.InDelta(t, 121.92, nearest, 1)
}

func TestGeodesicBuffer_RejectsOtherReferences(t *testing.T) {
	_, err := GeodesicBuffer(New(orb.Point{1, 1}, spatialref.FromWKID(4490)), 10, Meters)
	assert.ErrorIs(t, err, ErrGeometry)

	_, err = GeodesicBuffer(New(orb.Point{1, 1}, utm50N), 10, Meters)
	assert.ErrorIs(t, err, ErrGeometry)
}

func TestAzimuthalEquidistantRoundTrip(t *testing.T) {
	frame := newAzimuthalEquidistant(orb.Point{-122.4, 37.8})
	for _, p := range []orb.Point{{-122.4, 37.8}, {-122.3, 37.9}, {-121, 36}, {-100, 20}} {
		back := frame.inverse(frame.forward(p))
		assert.InDelta(t, p[0], back[0], 1e-9)
		assert.InDelta(t, p[1], back[1], 1e-9)
	}

	// distance from the centre is preserved
	p := orb.Point{-122.3, 37.9}
	xy := frame.forward(p)
	assert.InDelta(t, geo.Distance(orb.Point{-122.4, 37.8}, p), math.Hypot(xy[0], xy[1]), 0.2)
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, New(nil, utm50N).IsEmpty())
	assert.True(t, New(orb.Polygon{}, utm50N).IsEmpty())
	assert.True(t, New(orb.MultiPolygon{orb.Polygon{}}, utm50N).IsEmpty())
	assert.False(t, New(orb.Point{}, utm50N).IsEmpty())
	assert.False(t, New(square(0, 0, 1), utm50N).IsEmpty())
}

func TestClone(t *testing.T) {
	g := New(square(0, 0, 1), utm50N)
	c := g.Clone()
	c.Geom.(orb.Polygon)[0][0] = orb.Point{9, 9}
	assert.Equal(t, orb.Point{0, 0}, g.Geom.(orb.Polygon)[0][0])
}
