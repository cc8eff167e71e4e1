// Package view is a headless map view: a spatial reference, an extent that can
// be watched, a stack of feature layers that can be hit-tested and a graphics
// layer for drawn results.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/paulmach/orb"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/geometry"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/layer"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/projection"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
)

// Hit is one feature under a hit-tested point.
type Hit struct {
	Layer   layer.FeatureLayer
	Feature layer.Feature
}

// ExtentFunc receives the new extent after every change.
type ExtentFunc func(extent orb.Bound)

type watcher struct {
	id uint64
	fn ExtentFunc
}

// View hosts layers and graphics in one spatial reference.
type View struct {
	id        string
	sr        spatialref.SpatialReference
	graphics  *GraphicsLayer
	projector projection.Projector
	log       *slog.Logger

	mu        sync.Mutex
	extent    orb.Bound
	layers    []layer.FeatureLayer
	watchers  []watcher
	nextWatch uint64
	tolerance float64
}

// Option configures a View.
type Option func(*View)

// WithExtent sets the initial extent without notifying anyone.
func WithExtent(b orb.Bound) Option {
	return func(v *View) { v.extent = b }
}

// WithHitTolerance widens hit tests to a square of half-width d map units, so
// clicks can land on points and lines.
func WithHitTolerance(d float64) Option {
	return func(v *View) { v.tolerance = d }
}

// WithLayers adds layers bottom to top.
func WithLayers(ls ...layer.FeatureLayer) Option {
	return func(v *View) { v.layers = append(v.layers, ls...) }
}

// WithGraphics replaces the default display layer.
func WithGraphics(g *GraphicsLayer) Option {
	return func(v *View) { v.graphics = g }
}

// WithProjector lets hit tests reach layers stored in another reference.
// Without one such layers reject the query.
func WithProjector(p projection.Projector) Option {
	return func(v *View) { v.projector = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(v *View) { v.log = l }
}

// New returns a view in sr.
func New(id string, sr spatialref.SpatialReference, opts ...Option) *View {
	v := &View{id: id, sr: sr, log: slog.Default()}
	for _, o := range opts {
		o(v)
	}
	if v.graphics == nil {
		v.graphics = NewGraphicsLayer(id+"-graphics", DefaultResultSymbol())
	}
	return v
}

func (v *View) ID() string { return v.id }

func (v *View) SpatialReference() spatialref.SpatialReference { return v.sr }

func (v *View) GraphicsLayer() *GraphicsLayer { return v.graphics }

func (v *View) Extent() orb.Bound {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.extent
}

// SetExtent changes the extent and reports whether it changed. Watchers run
// synchronously in registration order after the view lock is released, once
// per actual change.
func (v *View) SetExtent(b orb.Bound) bool {
	v.mu.Lock()
	if v.extent.Equal(b) {
		v.mu.Unlock()
		return false
	}
	v.extent = b
	ws := make([]watcher, len(v.watchers))
	copy(ws, v.watchers)
	v.mu.Unlock()

	for _, w := range ws {
		w.fn(b)
	}
	return true
}

// WatchExtent registers fn for extent changes.
func (v *View) WatchExtent(fn ExtentFunc) *Subscription {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nextWatch++
	v.watchers = append(v.watchers, watcher{id: v.nextWatch, fn: fn})
	return &Subscription{view: v, id: v.nextWatch}
}

func (v *View) unwatch(id uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, w := range v.watchers {
		if w.id == id {
			v.watchers = append(v.watchers[:i], v.watchers[i+1:]...)
			return
		}
	}
}

// Subscription is the handle WatchExtent returns.
type Subscription struct {
	view *View
	id   uint64
	once sync.Once
}

// Unsubscribe stops further notifications. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() { s.view.unwatch(s.id) })
}

// AddLayer puts l on top of the stack.
func (v *View) AddLayer(l layer.FeatureLayer) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.layers = append(v.layers, l)
}

// Layers returns the stack bottom to top.
func (v *View) Layers() []layer.FeatureLayer {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]layer.FeatureLayer, len(v.layers))
	copy(out, v.layers)
	return out
}

func (v *View) FindLayerByID(id string) (layer.FeatureLayer, bool) {
	for _, l := range v.Layers() {
		if l.ID() == id {
			return l, true
		}
	}
	return nil, false
}

// HitTest returns the features under mapPoint, topmost layer first. A point
// without a spatial reference is taken to be in the view's. With a projector
// the point is moved into each layer's reference before querying. Layer
// failures are joined into the error; hits from the other layers are still
// returned.
func (v *View) HitTest(ctx context.Context, mapPoint geometry.Geometry) ([]Hit, error) {
	pt, ok := mapPoint.Geom.(orb.Point)
	if !ok {
		return nil, fmt.Errorf("%w: hit test needs a point, got %T", geometry.ErrGeometry, mapPoint.Geom)
	}
	sr := mapPoint.SR
	if sr.IsZero() {
		sr = v.sr
	}

	v.mu.Lock()
	tol := v.tolerance
	v.mu.Unlock()

	probe := geometry.New(pt, sr)
	if tol > 0 {
		probe = geometry.New(orb.Bound{
			Min: orb.Point{pt[0] - tol, pt[1] - tol},
			Max: orb.Point{pt[0] + tol, pt[1] + tol},
		}.ToPolygon(), sr)
	}

	layers := v.Layers()
	var hits []Hit
	var errs []error
	for i := len(layers) - 1; i >= 0; i-- {
		l := layers[i]
		q := probe
		if lsr := l.SpatialReference(); v.projector != nil && !lsr.IsZero() && !lsr.Equal(sr) {
			projected, err := v.projector.Project(ctx, probe, lsr)
			if err != nil {
				errs = append(errs, fmt.Errorf("hit test %s: %w", l.ID(), err))
				continue
			}
			q = projected
		}
		features, err := l.QueryFeatures(ctx, layer.Query{Geometry: q, Relationship: layer.Intersects})
		if err != nil {
			errs = append(errs, fmt.Errorf("hit test %s: %w", l.ID(), err))
			continue
		}
		for _, f := range features {
			hits = append(hits, Hit{Layer: l, Feature: f})
		}
	}
	v.log.Debug("hit test", "view", v.id, "point", pt, "hits", len(hits))
	return hits, errors.Join(errs...)
}
