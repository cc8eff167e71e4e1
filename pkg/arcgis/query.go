package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/geometry"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
)

// Spatial relationships understood by feature layer queries.
const (
	SpatialRelIntersects = "esriSpatialRelIntersects"
	SpatialRelContains   = "esriSpatialRelContains"
	SpatialRelWithin     = "esriSpatialRelWithin"
)

// maxQueryPages bounds paging through exceededTransferLimit responses.
const maxQueryPages = 50

// FeatureQuery holds the parameters of a FeatureServer/MapServer layer query.
type FeatureQuery struct {
	Where      string
	OutFields  []string
	Geometry   geometry.Geometry
	SpatialRel string
	// Distance and Units widen Geometry before the relationship is tested.
	Distance float64
	Units    geometry.LengthUnit
	// OutSR defaults to the reference of Geometry.
	OutSR spatialref.SpatialReference
}

func (q FeatureQuery) form() (url.Values, error) {
	form := url.Values{}
	where := q.Where
	if where == "" {
		where = "1=1"
	}
	form.Set("where", where)
	outFields := "*"
	if len(q.OutFields) > 0 {
		outFields = strings.Join(q.OutFields, ",")
	}
	form.Set("outFields", outFields)
	form.Set("returnGeometry", "true")

	outSR := q.OutSR
	if !q.Geometry.IsEmpty() {
		esri, geomType, err := FromGeometry(q.Geometry)
		if err != nil {
			return nil, err
		}
		esri.SpatialReference = nil
		raw, err := json.Marshal(esri)
		if err != nil {
			return nil, fmt.Errorf("failed to encode query geometry: %w", err)
		}
		form.Set("geometry", string(raw))
		form.Set("geometryType", geomType)
		rel := q.SpatialRel
		if rel == "" {
			rel = SpatialRelIntersects
		}
		form.Set("spatialRel", rel)
		if !q.Geometry.SR.IsZero() {
			form.Set("inSR", srParam(q.Geometry.SR))
		}
		if outSR.IsZero() {
			outSR = q.Geometry.SR
		}
	}
	if q.Distance > 0 {
		if !q.Units.Valid() {
			return nil, fmt.Errorf("%w: query distance needs a unit", geometry.ErrGeometry)
		}
		form.Set("distance", strconv.FormatFloat(q.Distance, 'f', -1, 64))
		form.Set("units", q.Units.EsriName())
	}
	if !outSR.IsZero() {
		form.Set("outSR", srParam(outSR))
	}
	return form, nil
}

// QueryFeatures queries a layer endpoint and pages through results until the
// service reports no more records. A page that adds no unseen features ends
// paging, since services that ignore resultOffset repeat the first page. An
// empty result is not an error.
func (c *Client) QueryFeatures(ctx context.Context, layerURL string, q FeatureQuery) (*FeatureResponse, error) {
	form, err := q.form()
	if err != nil {
		return nil, err
	}
	endpoint := trimSlash(layerURL) + "/query"

	var out *FeatureResponse
	seen := make(map[string]struct{})
	received := 0
	for page := 0; page < maxQueryPages; page++ {
		if out != nil {
			form.Set("resultOffset", strconv.Itoa(received))
		}
		var resp FeatureResponse
		if err := c.post(ctx, "query", endpoint, form, &resp, false); err != nil {
			return nil, err
		}
		received += len(resp.Features)

		if out == nil {
			out = &FeatureResponse{
				ObjectIDFieldName: resp.ObjectIDFieldName,
				GeometryType:      resp.GeometryType,
				SpatialReference:  resp.SpatialReference,
			}
		}
		added := 0
		for _, f := range resp.Features {
			key := featureKey(f, out.ObjectIDFieldName)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out.Features = append(out.Features, f)
			added++
		}
		out.ExceededTransferLimit = resp.ExceededTransferLimit
		if !resp.ExceededTransferLimit || added == 0 {
			break
		}
	}
	if out.ExceededTransferLimit {
		c.log().Warn("Feature transfer limit exceeded, results may be incomplete", "url", layerURL, "features", len(out.Features))
	}
	c.log().Debug("query complete", "url", layerURL, "features", len(out.Features))
	return out, nil
}

// featureKey identifies a feature by its object ID, or by its encoding when
// the service returned none.
func featureKey(f Feature, oidField string) string {
	for _, name := range []string{oidField, "OBJECTID", "ObjectID", "FID"} {
		if name == "" {
			continue
		}
		if v, ok := f.Attributes[name]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	raw, _ := json.Marshal(f)
	return string(raw)
}
