package flatgeobuf

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parcel(minX, minY float64, props geojson.Properties) *geojson.Feature {
	f := geojson.NewFeature(orb.Polygon{{
		{minX, minY}, {minX + 1, minY}, {minX + 1, minY + 1}, {minX, minY + 1}, {minX, minY},
	}})
	f.Properties = props
	return f
}

func writeRead(t *testing.T, fc *geojson.FeatureCollection, opts Options) *Reader {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteFeatures(&buf, fc, opts))
	r, err := OpenData(buf.Bytes())
	require.NoError(t, err)
	return r
}

func TestRoundTrip(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(parcel(0, 0, geojson.Properties{"OBJECTID": json.Number("1"), "name": "north", "area": 12.5, "active": true}))
	fc.Append(parcel(5, 5, geojson.Properties{"OBJECTID": json.Number("2"), "name": "south", "area": json.Number("3")}))

	r := writeRead(t, fc, Options{Name: "parcels", EPSG: 4326})

	h := r.Header()
	assert.Equal(t, "parcels", h.Name)
	assert.Equal(t, "Polygon", h.GeometryType)
	assert.Equal(t, uint64(2), h.FeaturesCount)
	assert.Equal(t, 4326, h.EPSG)
	assert.True(t, h.HasIndex)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{6, 6}}, h.Envelope)
	assert.Equal(t, []Column{
		{Name: "OBJECTID", Type: "Long"},
		{Name: "active", Type: "Bool"},
		{Name: "area", Type: "Double"},
		{Name: "name", Type: "String"},
	}, h.Columns)

	all, err := r.All()
	require.NoError(t, err)
	require.Len(t, all, 2)

	byID := map[int64]*geojson.Feature{}
	for _, f := range all {
		byID[f.Properties["OBJECTID"].(int64)] = f
	}
	require.Contains(t, byID, int64(1))
	require.Contains(t, byID, int64(2))

	north := byID[1]
	assert.Equal(t, fc.Features[0].Geometry, north.Geometry)
	assert.Equal(t, "north", north.Properties["name"])
	assert.Equal(t, 12.5, north.Properties["area"])
	assert.Equal(t, true, north.Properties["active"])

	south := byID[2]
	assert.Equal(t, 3.0, south.Properties["area"], "integer value in a Double column")
	assert.NotContains(t, south.Properties, "active")
}

func TestSearch(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	for i := 0; i < 10; i++ {
		fc.Append(parcel(float64(i*10), 0, geojson.Properties{"i": i}))
	}
	r := writeRead(t, fc, Options{})

	got, err := r.Search(orb.Bound{Min: orb.Point{19.5, 0.2}, Max: orb.Point{30.5, 0.4}})
	require.NoError(t, err)
	var ids []int64
	for _, f := range got {
		ids = append(ids, f.Properties["i"].(int64))
	}
	assert.ElementsMatch(t, []int64{2, 3}, ids)

	none, err := r.Search(orb.Bound{Min: orb.Point{500, 500}, Max: orb.Point{501, 501}})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWriteFeatures_Geometries(t *testing.T) {
	tests := []struct {
		name string
		geom orb.Geometry
	}{
		{"point", orb.Point{1, 2}},
		{"line", orb.LineString{{0, 0}, {1, 1}, {2, 0}}},
		{"multiline", orb.MultiLineString{{{0, 0}, {1, 1}}, {{2, 2}, {3, 3}}}},
		{"polygon with hole", orb.Polygon{
			{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
			{{2, 2}, {2, 4}, {4, 4}, {4, 2}, {2, 2}},
		}},
		{"multipolygon", orb.MultiPolygon{
			{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
			{{{5, 5}, {6, 5}, {6, 6}, {5, 5}}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := geojson.NewFeatureCollection()
			fc.Append(geojson.NewFeature(tt.geom))
			r := writeRead(t, fc, Options{})

			all, err := r.All()
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, tt.geom, all[0].Geometry)
		})
	}
}

func TestWriteFeatures_BoundAndMixed(t *testing.T) {
	extent := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{4, 2}}
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(extent))
	fc.Append(geojson.NewFeature(orb.Point{1, 1}))
	fc.Append(&geojson.Feature{Type: "Feature", Properties: geojson.Properties{}})

	r := writeRead(t, fc, Options{})
	assert.NotEqual(t, "Polygon", r.Header().GeometryType, "mixed collection has no single type")

	all, err := r.All()
	require.NoError(t, err)
	require.Len(t, all, 2, "feature without geometry is skipped")
	got := []orb.Geometry{all[0].Geometry, all[1].Geometry}
	assert.ElementsMatch(t, []orb.Geometry{extent.ToPolygon(), orb.Point{1, 1}}, got)
}

func TestWriteFeatures_Errors(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, WriteFeatures(&buf, nil, Options{}), ErrEmpty)
	assert.ErrorIs(t, WriteFeatures(&buf, geojson.NewFeatureCollection(), Options{}), ErrEmpty)

	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Collection{orb.Point{1, 1}}))
	assert.ErrorIs(t, WriteFeatures(&buf, fc, Options{}), ErrUnsupportedType)
}

func TestOpenData_Invalid(t *testing.T) {
	_, err := OpenData([]byte("not a flatgeobuf"))
	assert.Error(t, err)
}
