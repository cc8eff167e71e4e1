package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/geometry"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
)

// GeometryService is the part of the ArcGIS client the remote projector needs.
type GeometryService interface {
	Project(ctx context.Context, geoms []geometry.Geometry, outSR spatialref.SpatialReference) ([]geometry.Geometry, error)
}

// Remote projects through a GeometryServer.
type Remote struct {
	svc GeometryService
}

// NewRemote wraps svc.
func NewRemote(svc GeometryService) *Remote {
	return &Remote{svc: svc}
}

// Load is a no-op; the service is contacted lazily.
func (r *Remote) Load(ctx context.Context) error {
	return ctx.Err()
}

func (r *Remote) Project(ctx context.Context, g geometry.Geometry, to spatialref.SpatialReference) (geometry.Geometry, error) {
	if g.SR.Equal(to) {
		return geometry.New(g.Clone().Geom, to), nil
	}
	out, err := r.svc.Project(ctx, []geometry.Geometry{g}, to)
	if err != nil {
		return geometry.Geometry{}, fmt.Errorf("remote project %s to %s: %w", g.SR, to, err)
	}
	if len(out) != 1 {
		return geometry.Geometry{}, fmt.Errorf("%w: service returned %d geometries for %s to %s", ErrUnsupported, len(out), g.SR, to)
	}
	return geometry.New(out[0].Geom, to), nil
}

// Chain uses the local engine when it supports the transformation and the
// remote projector otherwise.
type Chain struct {
	Local  *Engine
	Remote Projector
	log    *slog.Logger
}

// NewChain combines a local engine with a remote fallback.
func NewChain(local *Engine, remote Projector, log *slog.Logger) *Chain {
	if log == nil {
		log = slog.Default()
	}
	return &Chain{Local: local, Remote: remote, log: log}
}

// Load loads both projectors. Only the local engine is required to succeed.
func (c *Chain) Load(ctx context.Context) error {
	if err := c.Local.Load(ctx); err != nil {
		return err
	}
	if c.Remote != nil {
		if err := c.Remote.Load(ctx); err != nil {
			c.log.Warn("remote projection unavailable", "error", err)
		}
	}
	return nil
}

func (c *Chain) Project(ctx context.Context, g geometry.Geometry, to spatialref.SpatialReference) (geometry.Geometry, error) {
	out, err := c.Local.Project(ctx, g, to)
	if err == nil || !errors.Is(err, ErrUnsupported) || c.Remote == nil {
		return out, err
	}
	c.log.Debug("falling back to remote projection", "from", g.SR, "to", to)
	return c.Remote.Project(ctx, g, to)
}
