package layer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/geometry"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
)

func writeShapefile(t *testing.T, path string) {
	t.Helper()
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.NumberField("OBJECTID", 10),
		shp.StringField("NAME", 20),
	}))

	shells := [][][]shp.Point{
		{
			{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0}},
			{{X: 2, Y: 2}, {X: 4, Y: 2}, {X: 4, Y: 4}, {X: 2, Y: 4}, {X: 2, Y: 2}},
		},
		{
			{{X: 20, Y: 0}, {X: 20, Y: 5}, {X: 25, Y: 5}, {X: 25, Y: 0}, {X: 20, Y: 0}},
			{{X: 30, Y: 0}, {X: 30, Y: 5}, {X: 35, Y: 5}, {X: 35, Y: 0}, {X: 30, Y: 0}},
		},
	}
	for i, rings := range shells {
		poly := shp.Polygon(*shp.NewPolyLine(rings))
		n := int(w.Write(&poly))
		require.NoError(t, w.WriteAttribute(n, 0, i+101))
		require.NoError(t, w.WriteAttribute(n, 1, []string{"with hole", "two parts"}[i]))
	}
	w.Close()
}

func TestLoadShapefile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parcels.shp")
	writeShapefile(t, path)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "parcels.prj"),
		[]byte(`GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`), 0o644))

	m, err := LoadShapefile("parcels", path, spatialref.SpatialReference{}, utm)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
	assert.True(t, m.SpatialReference().IsWGS84(), "reference read from .prj")

	ctx := context.Background()
	got, err := m.QueryFeatures(ctx, Query{Geometry: geometry.New(orb.Point{6, 6}, spatialref.WGS84())})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "101", got[0].ID)
	assert.Equal(t, "with hole", got[0].Attributes["NAME"])
	poly, ok := got[0].Geometry.Geom.(orb.Polygon)
	require.True(t, ok)
	assert.Len(t, poly, 2, "counter-clockwise ring is a hole")

	got, err = m.QueryFeatures(ctx, Query{Geometry: geometry.New(orb.Point{3, 3}, spatialref.WGS84())})
	require.NoError(t, err)
	assert.Empty(t, got, "point in the hole")

	got, err = m.QueryFeatures(ctx, Query{Geometry: geometry.New(orb.Point{32, 2}, spatialref.WGS84())})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "102", got[0].ID)
	assert.IsType(t, orb.MultiPolygon{}, got[0].Geometry.Geom)
}

func TestLoadShapefile_Reference(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parcels.shp")
	writeShapefile(t, path)

	m, err := LoadShapefile("parcels", path, spatialref.SpatialReference{}, utm)
	require.NoError(t, err)
	assert.Equal(t, utm, m.SpatialReference(), "no .prj uses the fallback")

	m, err = LoadShapefile("parcels", path, spatialref.WebMercator(), utm)
	require.NoError(t, err)
	assert.True(t, m.SpatialReference().IsWebMercator())

	_, err = LoadShapefile("missing", filepath.Join(dir, "missing.shp"), spatialref.WGS84(), utm)
	assert.Error(t, err)
}
