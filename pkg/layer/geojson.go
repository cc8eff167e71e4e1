package layer

import (
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/geometry"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
)

// LoadGeoJSON reads a FeatureCollection file into a memory layer. GeoJSON
// carries no reference of its own so the caller names it, normally WGS84.
func LoadGeoJSON(id, path string, sr spatialref.SpatialReference, opts ...Option) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read GeoJSON layer %s: %w", id, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GeoJSON layer %s: %w", id, err)
	}
	return FromFeatureCollection(id, fc, sr, opts...), nil
}

// FromFeatureCollection builds a memory layer from orb features. Features
// without geometry are dropped.
func FromFeatureCollection(id string, fc *geojson.FeatureCollection, sr spatialref.SpatialReference, opts ...Option) *Memory {
	features := make([]Feature, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		attrs := map[string]interface{}(f.Properties.Clone())
		if attrs == nil {
			attrs = map[string]interface{}{}
		}
		features = append(features, Feature{
			ID:         featureID(f.ID, attrs, i),
			Attributes: attrs,
			Geometry:   geometry.New(f.Geometry, sr),
		})
	}
	return NewMemory(id, sr, features, opts...)
}
