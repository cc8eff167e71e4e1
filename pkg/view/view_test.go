package view

import (
	"context"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/geometry"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/layer"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/projection"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
)

var utm = spatialref.FromWKID(32650)

func box(minX, minY, size float64) orb.Polygon {
	return orb.Polygon{{
		{minX, minY}, {minX + size, minY}, {minX + size, minY + size}, {minX, minY + size}, {minX, minY},
	}}
}

func bound(minX, minY, maxX, maxY float64) orb.Bound {
	return orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}
}

func TestExtentWatchers(t *testing.T) {
	v := New("main", utm, WithExtent(bound(0, 0, 10, 10)))

	var first, second []orb.Bound
	var order []string
	sub1 := v.WatchExtent(func(b orb.Bound) {
		first = append(first, b)
		order = append(order, "first")
		// the view lock is not held while watchers run
		_ = v.Extent()
	})
	v.WatchExtent(func(b orb.Bound) {
		second = append(second, b)
		order = append(order, "second")
	})

	assert.False(t, v.SetExtent(bound(0, 0, 10, 10)), "same extent is not a change")
	assert.Empty(t, first)

	assert.True(t, v.SetExtent(bound(5, 5, 15, 15)))
	assert.Equal(t, []orb.Bound{bound(5, 5, 15, 15)}, first)
	assert.Equal(t, []orb.Bound{bound(5, 5, 15, 15)}, second)
	assert.Equal(t, []string{"first", "second"}, order)

	sub1.Unsubscribe()
	sub1.Unsubscribe()
	v.SetExtent(bound(1, 1, 2, 2))
	assert.Len(t, first, 1)
	assert.Len(t, second, 2)
	assert.Equal(t, bound(1, 1, 2, 2), v.Extent())
}

func TestGraphicsLayer(t *testing.T) {
	gl := NewGraphicsLayer("g", DefaultResultSymbol())
	buf := DefaultBufferSymbol()

	gl.Add(NewGraphic(KindResult, geometry.New(box(0, 0, 1), utm), nil, nil))
	gl.AddMany([]Graphic{
		NewGraphic(KindResult, geometry.New(box(2, 0, 1), utm), nil, nil),
		NewGraphic(KindBuffer, geometry.New(box(0, 0, 5), utm), nil, &buf),
	})
	gl.AddMany(nil)
	assert.Equal(t, uint64(2), gl.Version())

	got := gl.Graphics()
	require.Len(t, got, 3)
	assert.Equal(t, KindBuffer, got[2].Kind)
	assert.Equal(t, DefaultResultSymbol(), *got[0].Symbol, "default symbol fills in")
	assert.Equal(t, Color{255, 255, 0, 0.5}, got[2].Symbol.Color)
	assert.NotEqual(t, got[0].ID, got[1].ID)

	got[0] = Graphic{}
	assert.NotEmpty(t, gl.Graphics()[0].ID, "snapshot is a copy")

	gl.RemoveAll()
	assert.Equal(t, 0, gl.Len())
}

func TestGraphicsLayer_Concurrent(t *testing.T) {
	gl := NewGraphicsLayer("g", DefaultResultSymbol())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gl.Add(NewGraphic(KindResult, geometry.New(orb.Point{1, 1}, utm), nil, nil))
			_ = gl.Graphics()
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, gl.Len())
}

func TestColor(t *testing.T) {
	c := Color{0, 51, 204, 0.6}
	assert.Equal(t, "#0033cc", c.Hex())
	assert.Equal(t, 0.6, c.Opacity())
	assert.Equal(t, "#ff00ff", HighlightColor.Hex())
	assert.Equal(t, 1.0, Color{0, 0, 0, 3}.Opacity())
}

func TestHitTest(t *testing.T) {
	parcels := layer.NewMemory("parcels", utm, []layer.Feature{
		{ID: "p1", Geometry: geometry.New(box(0, 0, 10), utm)},
	})
	wells := layer.NewMemory("wells", utm, []layer.Feature{
		{ID: "w1", Geometry: geometry.New(orb.Point{5, 5}, utm)},
	})
	v := New("main", utm, WithLayers(parcels, wells), WithHitTolerance(0.5))

	l, ok := v.FindLayerByID("wells")
	require.True(t, ok)
	assert.Equal(t, "wells", l.ID())
	_, ok = v.FindLayerByID("roads")
	assert.False(t, ok)

	hits, err := v.HitTest(context.Background(), geometry.New(orb.Point{5.2, 5.2}, spatialref.SpatialReference{}))
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "w1", hits[0].Feature.ID, "topmost layer first")
	assert.Equal(t, "p1", hits[1].Feature.ID)

	hits, err = v.HitTest(context.Background(), geometry.New(orb.Point{50, 50}, utm))
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = v.HitTest(context.Background(), geometry.New(box(0, 0, 1), utm))
	assert.ErrorIs(t, err, geometry.ErrGeometry)
}

func TestHitTest_PartialFailure(t *testing.T) {
	parcels := layer.NewMemory("parcels", utm, []layer.Feature{
		{ID: "p1", Geometry: geometry.New(box(0, 0, 10), utm)},
	})
	other := layer.NewMemory("wgs", spatialref.WGS84(), nil)
	v := New("main", utm)
	v.AddLayer(parcels)
	v.AddLayer(other)

	hits, err := v.HitTest(context.Background(), geometry.New(orb.Point{1, 1}, utm))
	assert.ErrorIs(t, err, geometry.ErrGeometry)
	require.Len(t, hits, 1)
	assert.Equal(t, "p1", hits[0].Feature.ID)
}

func TestHitTest_ProjectsIntoLayerReference(t *testing.T) {
	wgs := spatialref.WGS84()
	mercator := spatialref.WebMercator()
	parcels := layer.NewMemory("parcels", wgs, []layer.Feature{
		{ID: "p1", Geometry: geometry.New(box(116.39, 39.90, 0.01), wgs)},
	})
	engine := projection.NewEngine(nil)
	require.NoError(t, engine.Load(context.Background()))
	v := New("main", mercator, WithLayers(parcels), WithProjector(engine), WithHitTolerance(1))

	click, err := engine.Project(context.Background(), geometry.New(orb.Point{116.395, 39.905}, wgs), mercator)
	require.NoError(t, err)
	hits, err := v.HitTest(context.Background(), click)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "p1", hits[0].Feature.ID)

	outside, err := engine.Project(context.Background(), geometry.New(orb.Point{116.5, 39.905}, wgs), mercator)
	require.NoError(t, err)
	hits, err = v.HitTest(context.Background(), outside)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
