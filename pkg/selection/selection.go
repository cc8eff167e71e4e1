// Package selection turns a click on the primary view into a buffer-and-query
// cycle and mirrors it onto an optional secondary view.
package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/geometry"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/layer"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/projection"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/view"
)

var (
	// ErrSelectionInProgress is returned for a click that arrives while an
	// earlier cycle is still running. The click is dropped.
	ErrSelectionInProgress = errors.New("selection: a selection is already in progress")
	ErrLayerNotFound       = errors.New("selection: layer not found")
)

// Settings are the query and drawing parameters of a cycle.
type Settings struct {
	Distance     float64
	Unit         geometry.LengthUnit
	Relationship layer.Relationship
	ResultSymbol view.FillSymbol
	BufferSymbol view.FillSymbol
}

// DefaultSettings buffers by 400 feet and selects intersecting features.
func DefaultSettings() Settings {
	return Settings{
		Distance:     400,
		Unit:         geometry.Feet,
		Relationship: layer.Intersects,
		ResultSymbol: view.DefaultResultSymbol(),
		BufferSymbol: view.DefaultBufferSymbol(),
	}
}

// Cycle summarizes one handled click.
type Cycle struct {
	ID               string
	Feature          *layer.Feature
	Results          int
	SecondaryResults int
}

type secondary struct {
	view      *view.View
	layerID   string
	projector projection.Projector
}

// Orchestrator owns the re-entrancy guard and the selection settings.
type Orchestrator struct {
	primary      *view.View
	queryLayerID string
	buffer       layer.Buffer
	second       *secondary
	settings     Settings
	log          *slog.Logger

	busy  atomic.Bool
	order atomic.Int32
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSecondary mirrors every selection onto v, querying its layer layerID.
func WithSecondary(v *view.View, layerID string, p projection.Projector) Option {
	return func(o *Orchestrator) {
		o.second = &secondary{view: v, layerID: layerID, projector: p}
	}
}

func WithSettings(s Settings) Option {
	return func(o *Orchestrator) { o.settings = s }
}

func WithOrder(ord Order) Option {
	return func(o *Orchestrator) { o.order.Store(int32(ord)) }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// New returns an orchestrator for clicks on primary. Only hits on the layer
// queryLayerID start a selection.
func New(primary *view.View, queryLayerID string, buf layer.Buffer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		primary:      primary,
		queryLayerID: queryLayerID,
		buffer:       buf,
		settings:     DefaultSettings(),
		log:          slog.Default(),
	}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// SetOrder switches the secondary view's order for following cycles.
func (o *Orchestrator) SetOrder(ord Order) {
	o.order.Store(int32(ord))
	o.log.Info("selection order changed", "order", ord)
}

func (o *Orchestrator) Order() Order { return Order(o.order.Load()) }

// Busy reports whether a cycle is running.
func (o *Orchestrator) Busy() bool { return o.busy.Load() }

func (o *Orchestrator) Settings() Settings { return o.settings }

// HandleClick runs one selection cycle for a click at mapPoint: clear the
// display layers, hit-test, and select around the first hit on the query
// layer. A click without such a hit only clears.
func (o *Orchestrator) HandleClick(ctx context.Context, mapPoint geometry.Geometry) (Cycle, error) {
	if !o.busy.CompareAndSwap(false, true) {
		o.log.Debug("click dropped, selection in progress")
		return Cycle{}, ErrSelectionInProgress
	}
	defer o.busy.Store(false)

	c := Cycle{ID: uuid.NewString()}
	log := o.log.With("cycle", c.ID)

	o.primary.GraphicsLayer().RemoveAll()
	if o.second != nil {
		o.second.view.GraphicsLayer().RemoveAll()
	}

	hits, hitErr := o.primary.HitTest(ctx, mapPoint)
	var hit *view.Hit
	for i := range hits {
		if hits[i].Layer.ID() == o.queryLayerID {
			hit = &hits[i]
			break
		}
	}
	if hit == nil {
		if hitErr != nil {
			log.Error("hit test failed", "error", hitErr)
			return c, hitErr
		}
		log.Info("no feature under click", "layer", o.queryLayerID)
		return c, nil
	}
	if hitErr != nil {
		log.Warn("hit test failed on some layers", "error", hitErr)
	}

	f := hit.Feature
	c.Feature = &f
	log.Info("feature selected", "layer", hit.Layer.ID(), "feature", f.ID)

	var errs []error
	n, err := o.HandleSelection(ctx, hit.Layer, f)
	c.Results = n
	if err != nil {
		errs = append(errs, err)
	}
	if o.second != nil {
		n, err := o.ApplyToSecondaryView(ctx, f, o.Order())
		c.SecondaryResults = n
		if err != nil {
			errs = append(errs, fmt.Errorf("secondary view: %w", err))
		}
	}

	err = errors.Join(errs...)
	if err != nil {
		log.Error("selection failed", "error", err)
	} else {
		log.Info("selection complete", "results", c.Results, "secondary_results", c.SecondaryResults)
	}
	return c, err
}

// HandleSelection queries l around f and buffers f at the same time, then
// draws the results followed by the buffer into the primary display layer. It
// returns the number of features found. Whatever succeeded is drawn even when
// the other step fails. Outside HandleClick the caller must serialize calls.
func (o *Orchestrator) HandleSelection(ctx context.Context, l layer.FeatureLayer, f layer.Feature) (int, error) {
	s := o.settings
	var (
		wg       sync.WaitGroup
		features []layer.Feature
		buf      geometry.Geometry
		qErr     error
		bErr     error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		features, qErr = l.QueryFeatures(ctx, layer.Query{
			Geometry:     f.Geometry,
			Distance:     s.Distance,
			Units:        s.Unit,
			Relationship: s.Relationship,
		})
	}()
	go func() {
		defer wg.Done()
		buf, bErr = o.buffer.Compute(ctx, f.Geometry, s.Distance, s.Unit)
	}()
	wg.Wait()

	o.draw(o.primary.GraphicsLayer(), f, features, qErr, buf, bErr)
	return len(features), joinStep("query", qErr, "buffer", bErr)
}

// ApplyToSecondaryView repeats the selection of f on the secondary view in
// the reference of its query layer, buffering and projecting in the given
// order, then queries with the resulting polygon.
func (o *Orchestrator) ApplyToSecondaryView(ctx context.Context, f layer.Feature, ord Order) (int, error) {
	if o.second == nil {
		return 0, errors.New("selection: no secondary view configured")
	}
	sec := o.second
	l2, ok := sec.view.FindLayerByID(sec.layerID)
	if !ok {
		return 0, fmt.Errorf("%w: %s in view %s", ErrLayerNotFound, sec.layerID, sec.view.ID())
	}
	target := l2.SpatialReference()
	if target.IsZero() {
		target = sec.view.SpatialReference()
	}

	s := o.settings
	var poly geometry.Geometry
	switch ord {
	case BufferThenProject:
		b, err := o.buffer.Compute(ctx, f.Geometry, s.Distance, s.Unit)
		if err != nil {
			return 0, fmt.Errorf("buffer: %w", err)
		}
		if poly, err = sec.projector.Project(ctx, b, target); err != nil {
			return 0, fmt.Errorf("project buffer: %w", err)
		}
	default:
		g, err := sec.projector.Project(ctx, f.Geometry, target)
		if err != nil {
			return 0, fmt.Errorf("project feature: %w", err)
		}
		if poly, err = o.buffer.Compute(ctx, g, s.Distance, s.Unit); err != nil {
			return 0, fmt.Errorf("buffer: %w", err)
		}
	}
	o.log.Debug("secondary buffer ready", "order", ord, "sr", poly.SR)

	features, qErr := l2.QueryFeatures(ctx, layer.Query{Geometry: poly, Relationship: s.Relationship})
	o.draw(sec.view.GraphicsLayer(), f, features, qErr, poly, nil)
	return len(features), joinStep("query", qErr, "", nil)
}

func (o *Orchestrator) draw(gl *view.GraphicsLayer, src layer.Feature, features []layer.Feature, qErr error, buf geometry.Geometry, bErr error) {
	s := o.settings
	if qErr == nil && len(features) > 0 {
		rs := s.ResultSymbol
		graphics := make([]view.Graphic, 0, len(features))
		for _, f := range features {
			attrs := make(map[string]interface{}, len(f.Attributes)+1)
			for k, v := range f.Attributes {
				attrs[k] = v
			}
			attrs["layer"] = f.LayerID
			graphics = append(graphics, view.NewGraphic(view.KindResult, f.Geometry, attrs, &rs))
		}
		gl.AddMany(graphics)
	}
	if bErr == nil && !buf.IsEmpty() {
		bs := s.BufferSymbol
		gl.Add(view.NewGraphic(view.KindBuffer, buf, map[string]interface{}{
			"source":   src.ID,
			"distance": s.Distance,
			"unit":     s.Unit.String(),
		}, &bs))
	}
}

func joinStep(a string, aErr error, b string, bErr error) error {
	var errs []error
	if aErr != nil {
		errs = append(errs, fmt.Errorf("%s: %w", a, aErr))
	}
	if bErr != nil {
		errs = append(errs, fmt.Errorf("%s: %w", b, bErr))
	}
	return errors.Join(errs...)
}
