package layer

import (
	"context"
	"fmt"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/flatgeobuf"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/geometry"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
)

// FlatGeobuf answers queries from an indexed FlatGeobuf file. The R-tree
// narrows candidates by envelope; the relationship is then tested exactly.
type FlatGeobuf struct {
	id     string
	sr     spatialref.SpatialReference
	reader *flatgeobuf.Reader
	opts   options
}

// OpenFlatGeobuf opens path. When sr is zero the header's EPSG code is used.
func OpenFlatGeobuf(id, path string, sr spatialref.SpatialReference, opts ...Option) (*FlatGeobuf, error) {
	r, err := flatgeobuf.Open(path)
	if err != nil {
		return nil, err
	}
	return newFlatGeobuf(id, r, sr, opts)
}

// NewFlatGeobuf reads a FlatGeobuf file already in memory.
func NewFlatGeobuf(id string, data []byte, sr spatialref.SpatialReference, opts ...Option) (*FlatGeobuf, error) {
	r, err := flatgeobuf.OpenData(data)
	if err != nil {
		return nil, err
	}
	return newFlatGeobuf(id, r, sr, opts)
}

func newFlatGeobuf(id string, r *flatgeobuf.Reader, sr spatialref.SpatialReference, opts []Option) (*FlatGeobuf, error) {
	h := r.Header()
	if !h.HasIndex {
		return nil, fmt.Errorf("layer %s: %w", id, flatgeobuf.ErrNoIndex)
	}
	if sr.IsZero() && h.EPSG > 0 {
		sr = spatialref.FromWKID(h.EPSG)
	}
	l := &FlatGeobuf{id: id, sr: sr, reader: r, opts: newOptions(opts)}
	l.opts.log.Info("FlatGeobuf layer opened", "layer", id, "features", h.FeaturesCount, "geometry", h.GeometryType, "sr", sr)
	return l, nil
}

func (l *FlatGeobuf) ID() string { return l.id }

func (l *FlatGeobuf) SpatialReference() spatialref.SpatialReference { return l.sr }

func (l *FlatGeobuf) QueryFeatures(ctx context.Context, q Query) ([]Feature, error) {
	g, err := l.opts.prepare(ctx, l.sr, q)
	if err != nil {
		return nil, err
	}
	candidates, err := l.reader.Search(g.Bound())
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", l.id, err)
	}

	var out []Feature
	for i, c := range candidates {
		fg := geometry.New(c.Geometry, l.sr)
		if !matches(q.Relationship, g, fg) {
			continue
		}
		attrs := map[string]interface{}(c.Properties)
		out = append(out, Feature{
			ID:         featureID(nil, attrs, i),
			LayerID:    l.id,
			Attributes: attrs,
			Geometry:   fg,
		})
	}
	l.opts.log.Debug("FlatGeobuf layer query", "layer", l.id, "candidates", len(candidates), "matched", len(out))
	return out, nil
}

var _ FeatureLayer = (*FlatGeobuf)(nil)
