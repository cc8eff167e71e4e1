// Package buffer chooses and runs the buffering algorithm that is valid for a
// geometry's spatial reference.
package buffer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/arcgis"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/geometry"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
)

// Strategy is the buffering algorithm picked for a spatial reference.
type Strategy int

const (
	// GeodesicRemote asks a GeometryServer for a geodesic buffer.
	GeodesicRemote Strategy = iota + 1
	// GeodesicLocal runs the local geodesic buffer.
	GeodesicLocal
	// PlanarLocal runs the local Euclidean buffer.
	PlanarLocal
)

func (s Strategy) String() string {
	switch s {
	case GeodesicRemote:
		return "geodesic-remote"
	case GeodesicLocal:
		return "geodesic-local"
	case PlanarLocal:
		return "planar-local"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// Select is the decision table:
//
//	geographic, not WGS84   -> GeodesicRemote
//	WGS84 or Web Mercator   -> GeodesicLocal
//	anything else           -> PlanarLocal
//
// Local geodesic math is only trusted for WGS84 and Web Mercator, so other
// angular references go to the service.
func Select(sr spatialref.SpatialReference) Strategy {
	switch {
	case sr.IsGeographic() && !sr.IsWGS84():
		return GeodesicRemote
	case sr.IsWGS84() || sr.IsWebMercator():
		return GeodesicLocal
	default:
		return PlanarLocal
	}
}

// Remote is the GeometryServer buffer operation.
type Remote interface {
	Buffer(ctx context.Context, p arcgis.BufferParams) ([]geometry.Geometry, error)
}

// Tracer observes every strategy decision.
type Tracer func(s Strategy, sr spatialref.SpatialReference)

// Computer computes buffers with the strategy Select picks.
type Computer struct {
	remote Remote
	trace  Tracer
	log    *slog.Logger
}

// Option configures a Computer.
type Option func(*Computer)

// WithTracer installs a hook called before each buffer is computed.
func WithTracer(t Tracer) Option {
	return func(c *Computer) { c.trace = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Computer) { c.log = l }
}

// NewComputer returns a Computer. remote may be nil when no GeometryServer is
// configured; geographic non-WGS84 inputs then fail with arcgis.ErrService.
func NewComputer(remote Remote, opts ...Option) *Computer {
	c := &Computer{remote: remote, log: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compute buffers g by distance and returns exactly one polygon geometry.
func (c *Computer) Compute(ctx context.Context, g geometry.Geometry, distance float64, unit geometry.LengthUnit) (geometry.Geometry, error) {
	s := Select(g.SR)
	c.log.Debug("computing buffer", "strategy", s, "sr", g.SR, "distance", distance, "unit", unit)
	if c.trace != nil {
		c.trace(s, g.SR)
	}

	switch s {
	case GeodesicRemote:
		return c.remoteBuffer(ctx, g, distance, unit)
	case GeodesicLocal:
		return geometry.GeodesicBuffer(g, distance, unit)
	default:
		return geometry.PlanarBuffer(g, distance, unit)
	}
}

func (c *Computer) remoteBuffer(ctx context.Context, g geometry.Geometry, distance float64, unit geometry.LengthUnit) (geometry.Geometry, error) {
	if c.remote == nil {
		return geometry.Geometry{}, &arcgis.ServiceError{Op: "buffer", Message: "no geometry service for " + g.SR.String()}
	}
	// same preconditions as the local engine
	if !(distance > 0) || !unit.Valid() || g.IsEmpty() {
		return geometry.Geometry{}, fmt.Errorf("%w: invalid buffer request (distance %v, unit %s)", geometry.ErrGeometry, distance, unit)
	}
	out, err := c.remote.Buffer(ctx, arcgis.BufferParams{
		Geometries: []geometry.Geometry{g},
		Distances:  []float64{distance},
		Unit:       unit,
		Geodesic:   true,
		BufferSR:   g.SR,
		OutSR:      g.SR,
	})
	if err != nil {
		return geometry.Geometry{}, err
	}
	if len(out) != 1 {
		return geometry.Geometry{}, &arcgis.ServiceError{Op: "buffer", Message: fmt.Sprintf("expected one polygon, got %d", len(out))}
	}
	return out[0], nil
}
