// Package layer provides the feature layers a view can hit-test and the
// selection orchestrator can query: in-memory, GeoJSON, FlatGeobuf and
// shapefile sources, PostGIS tables, and remote ArcGIS feature services.
package layer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/geometry"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
)

// Relationship is the spatial test between the query geometry and a feature.
type Relationship string

const (
	Intersects Relationship = "intersects"
	// Contains matches features that lie wholly inside the query geometry.
	Contains Relationship = "contains"
	// Within matches features that wholly enclose the query geometry.
	Within Relationship = "within"
)

// ParseRelationship accepts the names above; empty means Intersects.
func ParseRelationship(s string) (Relationship, error) {
	switch r := Relationship(s); r {
	case "":
		return Intersects, nil
	case Intersects, Contains, Within:
		return r, nil
	}
	return "", fmt.Errorf("unknown spatial relationship %q", s)
}

// Query selects features related to Geometry. A positive Distance widens the
// geometry by that many Units first.
type Query struct {
	Geometry     geometry.Geometry
	Distance     float64
	Units        geometry.LengthUnit
	Relationship Relationship
}

// Feature is one row returned by a layer.
type Feature struct {
	ID         string
	LayerID    string
	Attributes map[string]interface{}
	Geometry   geometry.Geometry
}

// FeatureLayer is anything that can answer spatial queries.
type FeatureLayer interface {
	ID() string
	SpatialReference() spatialref.SpatialReference
	QueryFeatures(ctx context.Context, q Query) ([]Feature, error)
}

// Buffer widens a geometry. *buffer.Computer satisfies it.
type Buffer interface {
	Compute(ctx context.Context, g geometry.Geometry, distance float64, unit geometry.LengthUnit) (geometry.Geometry, error)
}

type options struct {
	buffer Buffer
	log    *slog.Logger
}

// Option configures a local layer.
type Option func(*options)

// WithBuffer sets the buffer used for queries with a distance. Without one such
// queries fail.
func WithBuffer(b Buffer) Option {
	return func(o *options) { o.buffer = b }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

func newOptions(opts []Option) options {
	o := options{log: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// prepare validates q against a local layer in sr and returns the geometry to
// test features against.
func (o options) prepare(ctx context.Context, sr spatialref.SpatialReference, q Query) (geometry.Geometry, error) {
	if q.Geometry.IsEmpty() {
		return geometry.Geometry{}, fmt.Errorf("%w: empty query geometry", geometry.ErrGeometry)
	}
	if !q.Geometry.SR.Equal(sr) {
		return geometry.Geometry{}, fmt.Errorf("%w: query in %s, layer in %s", geometry.ErrGeometry, q.Geometry.SR, sr)
	}
	if _, err := ParseRelationship(string(q.Relationship)); err != nil {
		return geometry.Geometry{}, fmt.Errorf("%w: %v", geometry.ErrGeometry, err)
	}
	if q.Distance <= 0 {
		return q.Geometry, nil
	}
	if o.buffer == nil {
		return geometry.Geometry{}, fmt.Errorf("%w: distance query without a buffer engine", geometry.ErrGeometry)
	}
	return o.buffer.Compute(ctx, q.Geometry, q.Distance, q.Units)
}

func matches(rel Relationship, query, feature geometry.Geometry) bool {
	switch rel {
	case Contains:
		return geometry.Contains(query.Geom, feature.Geom)
	case Within:
		return geometry.Within(query.Geom, feature.Geom)
	default:
		return geometry.Intersects(query.Geom, feature.Geom)
	}
}

// idFields are tried in order when a source has no explicit feature id.
var idFields = []string{"OBJECTID", "objectid", "FID", "fid", "id", "ID"}

func featureID(explicit interface{}, attrs map[string]interface{}, index int) string {
	if s := idString(explicit); s != "" {
		return s
	}
	for _, f := range idFields {
		if s := idString(attrs[f]); s != "" {
			return s
		}
	}
	return strconv.Itoa(index)
}

func idString(v interface{}) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(id, 10)
	case int:
		return strconv.Itoa(id)
	case fmt.Stringer:
		return id.String()
	}
	return fmt.Sprint(v)
}
