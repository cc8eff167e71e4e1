package layer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/arcgis"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/geometry"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
)

// FeatureService is the part of *arcgis.Client a remote layer uses.
type FeatureService interface {
	QueryFeatures(ctx context.Context, layerURL string, q arcgis.FeatureQuery) (*arcgis.FeatureResponse, error)
	LayerInfo(ctx context.Context, layerURL string) (*arcgis.Layer, error)
}

// ArcGIS is a FeatureServer or MapServer layer. Distance and the spatial
// relationship are evaluated by the service.
type ArcGIS struct {
	id     string
	url    string
	sr     spatialref.SpatialReference
	svc    FeatureService
	fields []string
	log    *slog.Logger
}

// NewArcGIS describes a layer whose reference is already known.
func NewArcGIS(id, layerURL string, sr spatialref.SpatialReference, svc FeatureService) *ArcGIS {
	return &ArcGIS{id: id, url: layerURL, sr: sr, svc: svc, log: slog.Default()}
}

// OpenArcGIS reads the layer metadata to learn its spatial reference.
func OpenArcGIS(ctx context.Context, id, layerURL string, svc FeatureService) (*ArcGIS, error) {
	info, err := svc.LayerInfo(ctx, layerURL)
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", id, err)
	}
	l := NewArcGIS(id, layerURL, info.SpatialReference(), svc)
	l.log.Info("ArcGIS layer opened", "layer", id, "name", info.Name, "geometry", info.GeometryType, "sr", l.sr)
	return l, nil
}

// WithOutFields limits the attributes returned. The default is all fields.
func (l *ArcGIS) WithOutFields(fields ...string) *ArcGIS {
	l.fields = fields
	return l
}

func (l *ArcGIS) ID() string { return l.id }

func (l *ArcGIS) SpatialReference() spatialref.SpatialReference { return l.sr }

// QueryFeatures sends the query in the geometry's own reference and asks for
// results in the layer's.
func (l *ArcGIS) QueryFeatures(ctx context.Context, q Query) ([]Feature, error) {
	rel, err := spatialRel(q.Relationship)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", geometry.ErrGeometry, err)
	}
	outSR := l.sr
	if outSR.IsZero() {
		outSR = q.Geometry.SR
	}
	resp, err := l.svc.QueryFeatures(ctx, l.url, arcgis.FeatureQuery{
		OutFields:  l.fields,
		Geometry:   q.Geometry,
		SpatialRel: rel,
		Distance:   q.Distance,
		Units:      q.Units,
		OutSR:      outSR,
	})
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", l.id, err)
	}

	sr := outSR
	if resp.SpatialReference != nil {
		sr = *resp.SpatialReference
	}
	return FromEsriFeatures(l.id, resp.ObjectIDFieldName, resp.Features, sr)
}

// FromEsriFeatures converts service or web map feature sets. Features without
// geometry are skipped.
func FromEsriFeatures(layerID, oidField string, features []arcgis.Feature, sr spatialref.SpatialReference) ([]Feature, error) {
	out := make([]Feature, 0, len(features))
	for i, f := range features {
		if f.Geometry == nil {
			continue
		}
		g, err := f.Geometry.ToGeometry(sr)
		if err != nil {
			return nil, fmt.Errorf("layer %s feature %d: %w", layerID, i, err)
		}
		attrs := f.Attributes
		if attrs == nil {
			attrs = map[string]interface{}{}
		}
		var explicit interface{}
		if oidField != "" {
			explicit = attrs[oidField]
		}
		out = append(out, Feature{
			ID:         featureID(explicit, attrs, i),
			LayerID:    layerID,
			Attributes: attrs,
			Geometry:   g,
		})
	}
	return out, nil
}

func spatialRel(r Relationship) (string, error) {
	switch r {
	case "", Intersects:
		return arcgis.SpatialRelIntersects, nil
	case Contains:
		return arcgis.SpatialRelContains, nil
	case Within:
		return arcgis.SpatialRelWithin, nil
	}
	return "", fmt.Errorf("unknown spatial relationship %q", r)
}

var _ FeatureLayer = (*ArcGIS)(nil)
