// Copyright (c) 2025 Sudo-Ivan
// Licensed under the MIT License

// Package convert turns drawn selection graphics into GeoJSON, CSV and text.
package convert

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/projection"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/view"
)

// ToWGS84 returns copies of graphics with geometries projected to WGS 84,
// as GeoJSON, KML and GPX require. Graphics already in WGS 84 are copied
// as is.
func ToWGS84(ctx context.Context, p projection.Projector, graphics []view.Graphic) ([]view.Graphic, error) {
	out := make([]view.Graphic, 0, len(graphics))
	var errs []error
	for _, g := range graphics {
		if g.Geometry.Geom == nil || g.Geometry.SR.IsWGS84() {
			out = append(out, g)
			continue
		}
		projected, err := p.Project(ctx, g.Geometry, spatialref.WGS84())
		if err != nil {
			errs = append(errs, fmt.Errorf("graphic %s: %w", g.ID, err))
			continue
		}
		g.Geometry = projected
		out = append(out, g)
	}
	return out, errors.Join(errs...)
}

// ToGeoJSON converts graphics to a GeoJSON FeatureCollection.
// Each feature carries:
//   - the graphic's attributes
//   - its kind (result or buffer) and graphic id
//   - the fill and outline of its symbol as simplestyle properties
//
// Graphics without geometry are skipped. Coordinates are written as they are,
// so callers wanting RFC 7946 output project with ToWGS84 first.
func ToGeoJSON(graphics []view.Graphic) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, g := range graphics {
		if g.Geometry.Geom == nil {
			continue
		}
		f := geojson.NewFeature(g.Geometry.Geom)
		f.ID = g.ID
		for k, v := range g.Attributes {
			f.Properties[k] = v
		}
		f.Properties[KeyID] = g.ID
		f.Properties[KeyKind] = string(g.Kind)
		if g.Symbol != nil {
			f.Properties[KeyFill] = g.Symbol.Color.Hex()
			f.Properties[KeyFillOpacity] = g.Symbol.Color.Opacity()
			f.Properties[KeyStroke] = g.Symbol.OutlineColor.Hex()
			f.Properties[KeyStrokeWidth] = g.Symbol.OutlineWidth
		}
		fc.Append(f)
	}
	return fc
}

// GraphicsToCSV converts graphics to a CSV string.
// The CSV includes:
//   - All unique attribute fields as columns, sorted
//   - The graphic kind
//   - WKT geometry representation in the last column
func GraphicsToCSV(graphics []view.Graphic) (string, error) {
	if len(graphics) == 0 {
		return "", nil
	}

	headers := attributeKeys(graphics)
	headers = append(headers, KeyKind, ColumnWKT)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(headers); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, g := range graphics {
		row := make([]string, len(headers))
		for i, header := range headers {
			switch header {
			case ColumnWKT:
				row[i] = geometryToWKT(g)
			case KeyKind:
				row[i] = string(g.Kind)
			default:
				if val, ok := g.Attributes[header]; ok && val != nil {
					row[i] = fmt.Sprintf("%v", val)
				}
			}
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("failed to write row to CSV: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("error during CSV writing: %w", err)
	}
	return buf.String(), nil
}

// GraphicsToText converts graphics to a readable report headed by title.
func GraphicsToText(graphics []view.Graphic, title string) (string, error) {
	if len(graphics) == 0 {
		return "", fmt.Errorf("no graphics to convert to text")
	}

	var output strings.Builder

	output.WriteString(fmt.Sprintf("Selection: %s\n", title))
	output.WriteString(fmt.Sprintf("Total Graphics: %d\n", len(graphics)))
	output.WriteString("========================================\n\n")

	for i, g := range graphics {
		output.WriteString(fmt.Sprintf("--- Graphic %d (%s) ---\n", i+1, g.Kind))

		keys := make([]string, 0, len(g.Attributes))
		for k := range g.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		output.WriteString("Attributes:\n")
		for _, k := range keys {
			output.WriteString(fmt.Sprintf("  %s: %v\n", k, g.Attributes[k]))
		}

		output.WriteString(fmt.Sprintf("Geometry (WKT, %s):\n", g.Geometry.SR))
		if s := geometryToWKT(g); s == "" {
			output.WriteString("  " + NoGeometry + "\n")
		} else {
			output.WriteString(fmt.Sprintf("  %s\n", s))
		}
		output.WriteString("\n")
	}

	return output.String(), nil
}

func attributeKeys(graphics []view.Graphic) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, g := range graphics {
		for k := range g.Attributes {
			if k == KeyKind || k == ColumnWKT || seen[k] {
				continue
			}
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// geometryToWKT returns "" for graphics without geometry.
func geometryToWKT(g view.Graphic) string {
	if g.Geometry.IsEmpty() {
		return ""
	}
	return wkt.MarshalString(g.Geometry.Geom)
}
