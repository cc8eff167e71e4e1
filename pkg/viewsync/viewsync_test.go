package viewsync

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/projection"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/view"
)

func bound(minX, minY, maxX, maxY float64) orb.Bound {
	return orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}
}

func setup(t *testing.T) (*view.View, *view.View, *[]orb.Bound, *Synchronizer) {
	t.Helper()
	engine := projection.NewEngine(nil)
	require.NoError(t, engine.Load(context.Background()))

	primary := view.New("primary", spatialref.WGS84())
	secondary := view.New("secondary", spatialref.WebMercator())
	var updates []orb.Bound
	secondary.WatchExtent(func(b orb.Bound) { updates = append(updates, b) })
	return primary, secondary, &updates, New(primary, secondary, engine, nil)
}

func TestSync_OncePerChange(t *testing.T) {
	primary, secondary, updates, s := setup(t)
	require.NoError(t, s.Start(context.Background()))
	assert.Empty(t, *updates, "zero extent is not pushed on start")

	primary.SetExtent(bound(-10, -10, 10, 10))
	require.Len(t, *updates, 1)
	got := secondary.Extent()
	assert.InDelta(t, -1113194.9, got.Min[0], 0.1)
	assert.InDelta(t, 1118889.97, got.Max[1], 0.1)

	primary.SetExtent(bound(-10, -10, 10, 10))
	assert.Len(t, *updates, 1, "unchanged extent does not fire")

	primary.SetExtent(bound(0, 0, 1, 1))
	assert.Len(t, *updates, 2)

	// the secondary's own changes never reach the primary
	secondary.SetExtent(bound(0, 0, 5, 5))
	assert.Equal(t, bound(0, 0, 1, 1), primary.Extent())
	assert.Len(t, *updates, 3)

	s.Stop()
	primary.SetExtent(bound(2, 2, 3, 3))
	assert.Len(t, *updates, 3)
	s.Stop()
}

func TestSync_StartAppliesCurrent(t *testing.T) {
	primary, secondary, updates, s := setup(t)
	primary.SetExtent(bound(-1, -1, 1, 1))
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	assert.Len(t, *updates, 1)
	assert.Greater(t, secondary.Extent().Max[0], 100000.0)
	s.Stop()
}

func TestSync_ErrorsAreLogged(t *testing.T) {
	primary := view.New("primary", spatialref.WGS84())
	secondary := view.New("secondary", spatialref.FromWKID(32650))
	s := New(primary, secondary, projection.NewEngine(nil), nil)
	require.NoError(t, s.Start(context.Background()))

	assert.NotPanics(t, func() { primary.SetExtent(bound(0, 0, 1, 1)) })
	assert.True(t, secondary.Extent().IsZero())

	primary.SetExtent(bound(0, 0, 2, 2))
	err := s.sync(context.Background(), primary.Extent())
	assert.ErrorIs(t, err, projection.ErrNotLoaded)
}
