package arcgis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/geometry"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
)

var errNoGeometryService = errors.New("no geometry service URL configured")

// BufferParams are the inputs of the GeometryServer buffer operation.
type BufferParams struct {
	Geometries   []geometry.Geometry
	Distances    []float64
	Unit         geometry.LengthUnit
	Geodesic     bool
	UnionResults bool
	// BufferSR and OutSR default to the reference of the first geometry.
	BufferSR spatialref.SpatialReference
	OutSR    spatialref.SpatialReference
}

// Buffer calls GeometryServer/buffer and returns one polygon per input
// geometry and distance (or one in total when UnionResults is set).
func (c *Client) Buffer(ctx context.Context, p BufferParams) ([]geometry.Geometry, error) {
	if c.GeometryServiceURL == "" {
		return nil, &ServiceError{Op: "buffer", Err: errNoGeometryService}
	}
	if len(p.Distances) == 0 {
		return nil, fmt.Errorf("%w: buffer needs at least one distance", geometry.ErrGeometry)
	}
	if !p.Unit.Valid() {
		return nil, fmt.Errorf("%w: unknown buffer unit", geometry.ErrGeometry)
	}
	geoms, inSR, err := encodeGeometries(p.Geometries)
	if err != nil {
		return nil, err
	}

	bufferSR, outSR := p.BufferSR, p.OutSR
	if bufferSR.IsZero() {
		bufferSR = inSR
	}
	if outSR.IsZero() {
		outSR = inSR
	}

	distances := make([]string, len(p.Distances))
	for i, d := range p.Distances {
		distances[i] = strconv.FormatFloat(d, 'f', -1, 64)
	}

	form := url.Values{}
	form.Set("geometries", geoms)
	form.Set("inSR", srParam(inSR))
	form.Set("outSR", srParam(outSR))
	form.Set("bufferSR", srParam(bufferSR))
	form.Set("distances", strings.Join(distances, ","))
	form.Set("unit", strconv.Itoa(p.Unit.EsriCode()))
	form.Set("unionResults", strconv.FormatBool(p.UnionResults))
	form.Set("geodesic", strconv.FormatBool(p.Geodesic))

	var resp geometryResponse
	endpoint := trimSlash(c.GeometryServiceURL) + "/buffer"
	if err := c.post(ctx, "buffer", endpoint, form, &resp, true); err != nil {
		return nil, err
	}
	return decodeGeometries(resp.Geometries, outSR)
}

// Project calls GeometryServer/project.
func (c *Client) Project(ctx context.Context, geoms []geometry.Geometry, outSR spatialref.SpatialReference) ([]geometry.Geometry, error) {
	if c.GeometryServiceURL == "" {
		return nil, &ServiceError{Op: "project", Err: errNoGeometryService}
	}
	encoded, inSR, err := encodeGeometries(geoms)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("geometries", encoded)
	form.Set("inSR", srParam(inSR))
	form.Set("outSR", srParam(outSR))

	var resp geometryResponse
	endpoint := trimSlash(c.GeometryServiceURL) + "/project"
	if err := c.post(ctx, "project", endpoint, form, &resp, true); err != nil {
		return nil, err
	}
	return decodeGeometries(resp.Geometries, outSR)
}

// encodeGeometries builds the {"geometryType", "geometries"} parameter. All
// inputs must share one type and one spatial reference.
func encodeGeometries(geoms []geometry.Geometry) (string, spatialref.SpatialReference, error) {
	if len(geoms) == 0 {
		return "", spatialref.SpatialReference{}, fmt.Errorf("%w: no geometries", geometry.ErrGeometry)
	}
	inSR := geoms[0].SR
	var geomType string
	list := make([]*Geometry, 0, len(geoms))
	for _, g := range geoms {
		if !g.SR.Equal(inSR) {
			return "", inSR, fmt.Errorf("%w: mixed spatial references %s and %s", geometry.ErrGeometry, inSR, g.SR)
		}
		esri, t, err := FromGeometry(g)
		if err != nil {
			return "", inSR, err
		}
		if geomType == "" {
			geomType = t
		} else if t != geomType {
			return "", inSR, fmt.Errorf("%w: mixed geometry types %s and %s", geometry.ErrGeometry, geomType, t)
		}
		esri.SpatialReference = nil
		list = append(list, esri)
	}
	raw, err := json.Marshal(struct {
		GeometryType string      `json:"geometryType"`
		Geometries   []*Geometry `json:"geometries"`
	}{geomType, list})
	if err != nil {
		return "", inSR, fmt.Errorf("failed to encode geometries: %w", err)
	}
	return string(raw), inSR, nil
}

func decodeGeometries(list []*Geometry, sr spatialref.SpatialReference) ([]geometry.Geometry, error) {
	out := make([]geometry.Geometry, 0, len(list))
	for _, esri := range list {
		if esri == nil {
			continue
		}
		g, err := esri.ToGeometry(sr)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}
