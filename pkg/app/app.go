// Package app builds the selection stack described by a config.Config: the
// ArcGIS client, cache, projection, buffer computer, feature layers, views,
// orchestrator and extent synchronizer.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/arcgis"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/buffer"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/cache"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/config"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/layer"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/projection"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/selection"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/view"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/viewsync"
)

// App is a wired selection stack. Secondary and Sync are nil when the
// secondary view is disabled.
type App struct {
	Config       *config.Config
	Client       *arcgis.Client
	Cache        cache.Cacher
	Projector    projection.Projector
	Buffer       *buffer.Computer
	Primary      *view.View
	Secondary    *view.View
	Orchestrator *selection.Orchestrator
	Sync         *viewsync.Synchronizer

	log     *slog.Logger
	pool    *pgxpool.Pool
	closers []func() error
}

// Build creates every component and loads the projection engine. Remote
// layers are opened here, so ctx bounds the metadata requests.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{Config: cfg, log: log}

	a.Cache = a.newCache()

	a.Client = arcgis.NewClient(cfg.Request.Timeout.Std())
	a.Client.PortalURL = cfg.Portal.URL
	a.Client.GeometryServiceURL = cfg.GeometryService.URL
	a.Client.Token = cfg.Portal.Token
	a.Client.Cache = a.Cache
	a.Client.Logger = log

	a.Projector = newProjector(cfg.Projection.Engine, a.Client, log)
	if err := a.Projector.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load projection engine: %w", err)
	}

	a.Buffer = buffer.NewComputer(a.Client, buffer.WithLogger(log))

	settings, order, err := selectionSettings(cfg.Selection)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Primary, err = a.newView(ctx, "primary", cfg.Views.Primary)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []selection.Option{
		selection.WithSettings(settings),
		selection.WithOrder(order),
		selection.WithLogger(log),
	}
	if cfg.Views.Secondary.Enabled {
		a.Secondary, err = a.newView(ctx, "secondary", cfg.Views.Secondary)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, selection.WithSecondary(a.Secondary, cfg.Views.Secondary.QueryLayer, a.Projector))
		a.Sync = viewsync.New(a.Primary, a.Secondary, a.Projector, log)
	}

	a.Orchestrator = selection.New(a.Primary, cfg.Views.Primary.QueryLayer, a.Buffer, opts...)
	return a, nil
}

// Start begins extent synchronization, if there is a secondary view.
func (a *App) Start(ctx context.Context) error {
	if a.Sync == nil {
		return nil
	}
	return a.Sync.Start(ctx)
}

// Views returns the primary view followed by the secondary, if any.
func (a *App) Views() []*view.View {
	if a.Secondary == nil {
		return []*view.View{a.Primary}
	}
	return []*view.View{a.Primary, a.Secondary}
}

// Close stops synchronization and releases the cache connection.
func (a *App) Close() error {
	if a.Sync != nil {
		a.Sync.Stop()
	}
	var errs []error
	for _, fn := range a.closers {
		errs = append(errs, fn())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) newCache() cache.Cacher {
	c := a.Config.Cache
	switch c.Backend {
	case "none":
		return cache.Nop{}
	case "redis":
		r := cache.NewRedis(cache.OpenRedis(c.Redis.Addr, c.Redis.Password, c.Redis.DB), c.Redis.Prefix, c.TTL.Std())
		a.closers = append(a.closers, r.Close)
		a.log.Info("using redis cache", "addr", c.Redis.Addr, "db", c.Redis.DB)
		return r
	default:
		return cache.NewMemory(c.TTL.Std())
	}
}

func newProjector(engine string, svc projection.GeometryService, log *slog.Logger) projection.Projector {
	local := projection.NewEngine(log)
	switch engine {
	case "local":
		return local
	case "remote":
		return projection.NewRemote(svc)
	default:
		return projection.NewChain(local, projection.NewRemote(svc), log)
	}
}

func selectionSettings(c config.SelectionConfig) (selection.Settings, selection.Order, error) {
	rel, err := layer.ParseRelationship(c.Relationship)
	if err != nil {
		return selection.Settings{}, 0, fmt.Errorf("selection.relationship: %w", err)
	}
	order, err := selection.ParseOrder(c.Order)
	if err != nil {
		return selection.Settings{}, 0, fmt.Errorf("selection.order: %w", err)
	}
	return selection.Settings{
		Distance:     c.Distance,
		Unit:         c.Unit,
		Relationship: rel,
		ResultSymbol: c.ResultSymbol,
		BufferSymbol: c.BufferSymbol,
	}, order, nil
}

func (a *App) newView(ctx context.Context, id string, vc config.ViewConfig) (*view.View, error) {
	sr := spatialref.FromWKID(vc.WKID)
	opts := []view.Option{
		view.WithHitTolerance(vc.HitTolerance),
		view.WithProjector(a.Projector),
		view.WithLogger(a.log),
	}
	if b, ok := vc.Bound(); ok {
		opts = append(opts, view.WithExtent(b))
	}
	v := view.New(id, sr, opts...)

	for _, lc := range vc.Layers {
		l, err := a.openLayer(ctx, lc, sr)
		if err != nil {
			return nil, fmt.Errorf("view %s: %w", id, err)
		}
		v.AddLayer(l)
		a.log.Info("layer added", "view", id, "layer", l.ID(), "type", lc.Type, "sr", l.SpatialReference())
	}
	return v, nil
}
