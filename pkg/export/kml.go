package export

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/convert"
)

// ConvertGeoJSONToKML converts a FeatureCollection in WGS 84 to a KML
// document. Features styled by convert.ToGeoJSON get an inline Style so
// buffers and results keep their colours.
func ConvertGeoJSONToKML(fc *geojson.FeatureCollection, layerName string) (string, error) {
	if fc == nil {
		return "", fmt.Errorf("no feature collection")
	}

	var placemarks strings.Builder
	for _, feature := range fc.Features {
		if feature == nil || feature.Geometry == nil {
			continue
		}

		geometryString := kmlGeometry(feature.Geometry)
		if geometryString == "" {
			continue
		}

		placemarks.WriteString(fmt.Sprintf(`
        <Placemark>
            <name>%s</name>
            <description><![CDATA[%s]]></description>%s
            %s
        </Placemark>`, escapeXML(getFeatureName(feature)), formatProperties(feature.Properties), kmlStyle(convert.StyleOf(feature.Properties)), geometryString))
	}

	kml := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
    <Document>
        <name>%s</name>%s
    </Document>
</kml>`, escapeXML(layerName), placemarks.String())

	return kml, nil
}

func kmlGeometry(g orb.Geometry) string {
	switch g := g.(type) {
	case orb.Point:
		return fmt.Sprintf("<Point><coordinates>"+KMLCoordFormat+"</coordinates></Point>", g[0], g[1])
	case orb.MultiPoint:
		parts := make([]string, len(g))
		for i, p := range g {
			parts[i] = kmlGeometry(p)
		}
		return multiGeometry(parts)
	case orb.LineString:
		if len(g) == 0 {
			return ""
		}
		return fmt.Sprintf("<LineString><coordinates>%s</coordinates></LineString>", kmlCoords(g))
	case orb.MultiLineString:
		parts := make([]string, 0, len(g))
		for _, ls := range g {
			parts = append(parts, kmlGeometry(ls))
		}
		return multiGeometry(parts)
	case orb.Ring:
		return kmlGeometry(orb.Polygon{g})
	case orb.Bound:
		return kmlGeometry(g.ToPolygon())
	case orb.Polygon:
		if len(g) == 0 || len(g[0]) == 0 {
			return ""
		}
		var b strings.Builder
		b.WriteString("<Polygon>")
		b.WriteString(fmt.Sprintf("<outerBoundaryIs><LinearRing><coordinates>%s</coordinates></LinearRing></outerBoundaryIs>", kmlCoords(closed(g[0]))))
		for _, inner := range g[1:] {
			b.WriteString(fmt.Sprintf("<innerBoundaryIs><LinearRing><coordinates>%s</coordinates></LinearRing></innerBoundaryIs>", kmlCoords(closed(inner))))
		}
		b.WriteString("</Polygon>")
		return b.String()
	case orb.MultiPolygon:
		parts := make([]string, 0, len(g))
		for _, p := range g {
			parts = append(parts, kmlGeometry(p))
		}
		return multiGeometry(parts)
	case orb.Collection:
		parts := make([]string, 0, len(g))
		for _, c := range g {
			parts = append(parts, kmlGeometry(c))
		}
		return multiGeometry(parts)
	}
	return ""
}

func multiGeometry(parts []string) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p)
	}
	if b.Len() == 0 {
		return ""
	}
	return "<MultiGeometry>" + b.String() + "</MultiGeometry>"
}

func kmlCoords(pts []orb.Point) string {
	out := make([]string, len(pts))
	for i, p := range pts {
		out[i] = fmt.Sprintf(KMLCoordFormat, p[0], p[1])
	}
	return strings.Join(out, KMLSpace)
}

func closed(r orb.Ring) orb.Ring {
	if len(r) > 0 && !r.Closed() {
		return append(r[:len(r):len(r)], r[0])
	}
	return r
}

// kmlStyle returns an inline Style, or "" when the feature carries none.
func kmlStyle(s convert.Style) string {
	if s.IsZero() {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n            <Style>")
	if s.Stroke != "" {
		b.WriteString(fmt.Sprintf("<LineStyle><color>%s</color><width>%s</width></LineStyle>",
			kmlColor(s.Stroke, 1), strconv.FormatFloat(s.StrokeWidth, 'f', -1, 64)))
	}
	if s.Fill != "" {
		b.WriteString(fmt.Sprintf("<PolyStyle><color>%s</color></PolyStyle>", kmlColor(s.Fill, s.FillOpacity)))
	}
	b.WriteString("</Style>")
	return b.String()
}

// kmlColor turns #rrggbb and an opacity into KML's aabbggrr.
func kmlColor(hex string, opacity float64) string {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		hex = "ffffff"
	}
	if opacity < 0 {
		opacity = 0
	} else if opacity > 1 {
		opacity = 1
	}
	return fmt.Sprintf("%02x%s%s%s", uint8(opacity*255+0.5), hex[4:6], hex[2:4], hex[0:2])
}

// getFeatureName extracts a suitable name from a GeoJSON feature's properties.
func getFeatureName(feature *geojson.Feature) string {
	for _, key := range nameKeys {
		if val, ok := feature.Properties[key]; ok && val != nil {
			return fmt.Sprintf("%v", val)
		}
	}
	if feature.ID != nil {
		return fmt.Sprintf("%v", feature.ID)
	}
	return DefaultName
}

// formatProperties formats a map of properties into a string, sorted by key.
// Style keys are left out.
func formatProperties(props map[string]interface{}, separator ...string) string {
	sep := "<br>"
	if len(separator) > 0 {
		sep = separator[0]
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		switch k {
		case "geometry", convert.KeyFill, convert.KeyFillOpacity, convert.KeyStroke, convert.KeyStrokeWidth:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("<strong>%s</strong>: %v", escapeXML(k), escapeXML(fmt.Sprintf("%v", props[k])))
	}
	return strings.Join(parts, sep)
}

// escapeXML escapes XML special characters in a string.
func escapeXML(s string) string {
	return strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&apos;",
		"/", "&#x2F;",
	).Replace(s)
}
