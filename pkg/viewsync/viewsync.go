// Package viewsync keeps a secondary view's extent on the primary's, projected
// into the secondary reference.
package viewsync

import (
	"context"
	"log/slog"
	"sync"

	"github.com/paulmach/orb"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/projection"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/view"
)

// Synchronizer follows primary extent changes. Only the primary is watched,
// so setting the secondary extent cannot loop back.
type Synchronizer struct {
	primary   *view.View
	secondary *view.View
	projector projection.Projector
	log       *slog.Logger

	mu  sync.Mutex
	sub *view.Subscription
	ctx context.Context
}

// New returns a stopped synchronizer.
func New(primary, secondary *view.View, p projection.Projector, log *slog.Logger) *Synchronizer {
	if log == nil {
		log = slog.Default()
	}
	return &Synchronizer{primary: primary, secondary: secondary, projector: p, log: log}
}

// Start subscribes to the primary view and applies its current extent once.
// ctx bounds every projection made while running. Calling Start twice is a
// no-op.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.sub != nil {
		s.mu.Unlock()
		return nil
	}
	s.ctx = ctx
	s.sub = s.primary.WatchExtent(s.apply)
	s.mu.Unlock()

	if ext := s.primary.Extent(); !ext.IsZero() {
		return s.sync(ctx, ext)
	}
	return nil
}

// Stop unsubscribes.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sub.Unsubscribe()
	s.sub = nil
}

func (s *Synchronizer) apply(ext orb.Bound) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.sync(ctx, ext); err != nil {
		s.log.Error("extent sync failed", "primary", s.primary.ID(), "secondary", s.secondary.ID(), "error", err)
	}
}

func (s *Synchronizer) sync(ctx context.Context, ext orb.Bound) error {
	out, err := projection.ProjectExtent(ctx, s.projector, ext, s.primary.SpatialReference(), s.secondary.SpatialReference())
	if err != nil {
		return err
	}
	s.secondary.SetExtent(out)
	s.log.Debug("extent synced", "from", ext, "to", out)
	return nil
}
