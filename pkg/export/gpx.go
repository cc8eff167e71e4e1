// Copyright (c) 2024 Sudo-Ivan
// Licensed under the MIT License

// Package export writes selection output in KML, GPX and FlatGeobuf.
package export

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ConvertGeoJSONToGPX converts a FeatureCollection in WGS 84 to a GPX string.
// The function handles:
//   - Point geometries as waypoints
//   - LineString geometries as tracks
//   - Polygon geometries as one track per outer boundary
//
// Multi geometries are written part by part.
func ConvertGeoJSONToGPX(fc *geojson.FeatureCollection, layerName string) (string, error) {
	if fc == nil {
		return "", fmt.Errorf("no feature collection")
	}

	var waypoints strings.Builder
	var tracks strings.Builder

	for _, feature := range fc.Features {
		if feature == nil || feature.Geometry == nil {
			continue
		}
		g := gpxWriter{
			name:      escapeXML(getFeatureName(feature)),
			desc:      escapeXML(formatProperties(feature.Properties, ", ")),
			waypoints: &waypoints,
			tracks:    &tracks,
		}
		g.write(feature.Geometry)
	}

	gpx := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="arcgis-buffer"
    xmlns="http://www.topografix.com/GPX/1/1"
    xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
    xsi:schemaLocation="http://www.topografix.com/GPX/1/1 http://www.topografix.com/GPX/1/1/gpx.xsd">
    <metadata>
        <name>%s</name>
    </metadata>%s
</gpx>`, escapeXML(layerName), waypoints.String()+tracks.String())

	return gpx, nil
}

type gpxWriter struct {
	name, desc string
	waypoints  *strings.Builder
	tracks     *strings.Builder
}

func (w gpxWriter) write(g orb.Geometry) {
	switch g := g.(type) {
	case orb.Point:
		w.waypoints.WriteString(fmt.Sprintf(`
    <wpt lat="%.10f" lon="%.10f">
        <name>%s</name>
        <desc>%s</desc>
    </wpt>`, g[1], g[0], w.name, w.desc))
	case orb.MultiPoint:
		for _, p := range g {
			w.write(p)
		}
	case orb.LineString:
		w.track(w.name, g)
	case orb.MultiLineString:
		for _, ls := range g {
			w.track(w.name, ls)
		}
	case orb.Ring:
		w.write(orb.Polygon{g})
	case orb.Bound:
		w.write(g.ToPolygon())
	case orb.Polygon:
		if len(g) > 0 {
			w.track(w.name+" (Boundary)", closed(g[0]))
		}
	case orb.MultiPolygon:
		for _, p := range g {
			w.write(p)
		}
	case orb.Collection:
		for _, c := range g {
			w.write(c)
		}
	}
}

func (w gpxWriter) track(name string, pts []orb.Point) {
	if len(pts) == 0 {
		return
	}
	w.tracks.WriteString(fmt.Sprintf(`
    <trk>
        <name>%s</name>
        <desc>%s</desc>
        <trkseg>`, name, w.desc))
	for _, p := range pts {
		w.tracks.WriteString(fmt.Sprintf(GPXPointFormat, p[1], p[0]))
	}
	w.tracks.WriteString(`
        </trkseg>
    </trk>`)
}
