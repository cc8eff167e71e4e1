// Package projection moves geometries between spatial references.
//
// The local Engine handles WGS84 and Web Mercator in process. Remote delegates
// to an ArcGIS GeometryServer and Chain tries the local engine first, falling
// back to the remote one for references it cannot transform.
package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/geometry"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
)

var (
	// ErrNotLoaded is returned by Project before Load has completed.
	ErrNotLoaded = errors.New("projection: engine not loaded")
	// ErrUnsupported is returned when no transformation exists between two references.
	ErrUnsupported = errors.New("projection: unsupported transformation")
)

// Projector is the Projection Provider used by the selection and extent code.
type Projector interface {
	Load(ctx context.Context) error
	Project(ctx context.Context, g geometry.Geometry, to spatialref.SpatialReference) (geometry.Geometry, error)
}

// Engine is the in-process projection engine.
type Engine struct {
	loaded atomic.Bool
	log    *slog.Logger
}

// NewEngine returns an engine that still needs Load.
func NewEngine(log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{log: log}
}

// Load marks the engine ready. It is safe to call more than once.
func (e *Engine) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.loaded.CompareAndSwap(false, true) {
		e.log.Debug("projection engine loaded")
	}
	return nil
}

// Loaded reports whether Load has completed.
func (e *Engine) Loaded() bool {
	return e.loaded.Load()
}

// Supports reports whether the engine can transform between the references.
func (e *Engine) Supports(from, to spatialref.SpatialReference) bool {
	_, ok := transform(from, to)
	return ok
}

// Project returns a copy of g in the target reference.
func (e *Engine) Project(ctx context.Context, g geometry.Geometry, to spatialref.SpatialReference) (geometry.Geometry, error) {
	if !e.loaded.Load() {
		return geometry.Geometry{}, ErrNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return geometry.Geometry{}, err
	}
	if g.IsEmpty() {
		return geometry.Geometry{}, fmt.Errorf("%w: cannot project an empty geometry", geometry.ErrGeometry)
	}
	fn, ok := transform(g.SR, to)
	if !ok {
		return geometry.Geometry{}, fmt.Errorf("%w: %s to %s", ErrUnsupported, g.SR, to)
	}
	out := orb.Clone(g.Geom)
	if fn != nil {
		out = project.Geometry(out, fn)
	}
	return geometry.New(out, to), nil
}

// transform returns the point function between two references. A nil
// function with ok set means the references are equal.
func transform(from, to spatialref.SpatialReference) (orb.Projection, bool) {
	switch {
	case from.IsZero() || to.IsZero():
		return nil, false
	case from.Equal(to):
		return nil, true
	case from.IsWGS84() && to.IsWebMercator():
		return project.WGS84.ToMercator, true
	case from.IsWebMercator() && to.IsWGS84():
		return project.Mercator.ToWGS84, true
	}
	return nil, false
}

// ProjectExtent projects a rectangle and returns the envelope of the result.
// The edges are densified so curved edges in the target are covered.
func ProjectExtent(ctx context.Context, p Projector, b orb.Bound, from, to spatialref.SpatialReference) (orb.Bound, error) {
	ring := densify(b, 8)
	out, err := p.Project(ctx, geometry.New(orb.Polygon{ring}, from), to)
	if err != nil {
		return orb.Bound{}, err
	}
	return out.Bound(), nil
}

func densify(b orb.Bound, n int) orb.Ring {
	corners := []orb.Point{
		b.Min, {b.Max[0], b.Min[1]}, b.Max, {b.Min[0], b.Max[1]},
	}
	ring := make(orb.Ring, 0, 4*n+1)
	for i, c := range corners {
		next := corners[(i+1)%4]
		for k := 0; k < n; k++ {
			f := float64(k) / float64(n)
			ring = append(ring, orb.Point{c[0] + f*(next[0]-c[0]), c[1] + f*(next[1]-c[1])})
		}
	}
	return append(ring, ring[0])
}
