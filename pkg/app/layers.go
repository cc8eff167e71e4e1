package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/arcgis"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/config"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/layer"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
)

// openLayer builds the feature layer for lc. viewSR is the fallback
// reference for sources that carry none.
func (a *App) openLayer(ctx context.Context, lc config.LayerConfig, viewSR spatialref.SpatialReference) (layer.FeatureLayer, error) {
	opts := []layer.Option{layer.WithBuffer(a.Buffer), layer.WithLogger(a.log)}

	var declared spatialref.SpatialReference
	if lc.WKID > 0 {
		declared = spatialref.FromWKID(lc.WKID)
	}

	switch lc.Type {
	case config.LayerGeoJSON:
		sr := declared
		if sr.IsZero() {
			sr = spatialref.WGS84()
		}
		return layer.LoadGeoJSON(lc.ID, lc.Path, sr, opts...)
	case config.LayerFlatGeobuf:
		return layer.OpenFlatGeobuf(lc.ID, lc.Path, declared, opts...)
	case config.LayerShapefile:
		return layer.LoadShapefile(lc.ID, lc.Path, declared, viewSR, opts...)
	case config.LayerPostGIS:
		pool, err := a.postgis(ctx)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", lc.ID, err)
		}
		sr := declared
		if sr.IsZero() {
			sr = viewSR
		}
		t := layer.PostGISTable{Table: lc.Table, GeometryColumn: lc.GeometryColumn, IDColumn: lc.IDColumn}
		return layer.NewPostGIS(lc.ID, pool, t, sr, opts...), nil
	case config.LayerArcGIS:
		if !declared.IsZero() {
			return layer.NewArcGIS(lc.ID, lc.URL, declared, a.Client), nil
		}
		return layer.OpenArcGIS(ctx, lc.ID, lc.URL, a.Client)
	case config.LayerWebMap:
		return a.openWebMapLayer(ctx, lc, viewSR, opts)
	}
	return nil, fmt.Errorf("layer %s: unknown type %q", lc.ID, lc.Type)
}

// openWebMapLayer resolves an operational layer of a portal web map. Service
// layers are queried remotely; feature collections stored in the web map are
// loaded into memory.
func (a *App) openWebMapLayer(ctx context.Context, lc config.LayerConfig, viewSR spatialref.SpatialReference, opts []layer.Option) (layer.FeatureLayer, error) {
	op, err := a.Client.FindLayerByID(ctx, lc.ItemID, lc.ID)
	if err != nil {
		return nil, err
	}
	if op.URL != "" {
		return layer.OpenArcGIS(ctx, lc.ID, arcgis.NormalizeArcGISURL(op.URL), a.Client)
	}
	if op.FeatureCollection == nil {
		return nil, fmt.Errorf("layer %s: web map layer %q has neither a url nor features", lc.ID, op.Title)
	}

	sr := viewSR
	var features []layer.Feature
	for _, fcl := range op.FeatureCollection.Layers {
		if fcl.FeatureSet == nil {
			continue
		}
		if fcl.FeatureSet.SpatialReference != nil && !fcl.FeatureSet.SpatialReference.IsZero() {
			sr = *fcl.FeatureSet.SpatialReference
		}
		oid, _ := fcl.LayerDefinition["objectIdField"].(string)
		fs, err := layer.FromEsriFeatures(lc.ID, oid, fcl.FeatureSet.Features, sr)
		if err != nil {
			return nil, err
		}
		features = append(features, fs...)
	}
	a.log.Info("web map feature collection loaded", "layer", lc.ID, "title", op.Title, "features", len(features))
	return layer.NewMemory(lc.ID, sr, features, opts...), nil
}

// postgis returns the shared pool, connecting on first use.
func (a *App) postgis(ctx context.Context) (*pgxpool.Pool, error) {
	if a.pool != nil {
		return a.pool, nil
	}
	pool, err := layer.ConnectPostGIS(ctx, a.Config.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.pool = pool
	a.closers = append(a.closers, func() error { pool.Close(); return nil })
	return pool, nil
}
