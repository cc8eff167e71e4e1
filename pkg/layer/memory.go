package layer

import (
	"context"
	"sync"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
)

// Memory holds its features in a slice and scans them on every query.
type Memory struct {
	id   string
	sr   spatialref.SpatialReference
	opts options

	mu       sync.RWMutex
	features []Feature
}

// NewMemory returns a layer over features. Feature LayerIDs are overwritten
// with id.
func NewMemory(id string, sr spatialref.SpatialReference, features []Feature, opts ...Option) *Memory {
	m := &Memory{id: id, sr: sr, opts: newOptions(opts)}
	m.Add(features...)
	return m
}

func (m *Memory) ID() string { return m.id }

func (m *Memory) SpatialReference() spatialref.SpatialReference { return m.sr }

// Add appends features.
func (m *Memory) Add(features ...Feature) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range features {
		f.LayerID = m.id
		m.features = append(m.features, f)
	}
}

// Len returns the feature count.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.features)
}

// QueryFeatures returns matching features in insertion order.
func (m *Memory) QueryFeatures(ctx context.Context, q Query) ([]Feature, error) {
	g, err := m.opts.prepare(ctx, m.sr, q)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	bound := g.Bound()
	var out []Feature
	for _, f := range m.features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !bound.Intersects(f.Geometry.Bound()) {
			continue
		}
		if matches(q.Relationship, g, f.Geometry) {
			out = append(out, cloneFeature(f))
		}
	}
	m.opts.log.Debug("memory layer query", "layer", m.id, "matched", len(out))
	return out, nil
}

func cloneFeature(f Feature) Feature {
	attrs := make(map[string]interface{}, len(f.Attributes))
	for k, v := range f.Attributes {
		attrs[k] = v
	}
	f.Attributes = attrs
	f.Geometry = f.Geometry.Clone()
	return f
}

var _ FeatureLayer = (*Memory)(nil)

