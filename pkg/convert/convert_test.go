package convert

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/geometry"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/projection"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/view"
)

func square(x, y, size float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}}
}

// Sample graphics for testing conversions
func testGraphics() []view.Graphic {
	result := view.DefaultResultSymbol()
	buf := view.DefaultBufferSymbol()
	return []view.Graphic{
		{
			ID:         "g1",
			Kind:       view.KindResult,
			Geometry:   geometry.New(square(0, 0, 1), spatialref.WGS84()),
			Attributes: map[string]interface{}{"OBJECTID": 1, "Name": "Parcel A", "layer": "parcels"},
			Symbol:     &result,
		},
		{
			ID:         "g2",
			Kind:       view.KindResult,
			Geometry:   geometry.New(orb.Point{2, 3}, spatialref.WGS84()),
			Attributes: map[string]interface{}{"OBJECTID": 2, "Status": "Active", "layer": "parcels"},
			Symbol:     &result,
		},
		{
			ID:         "g3",
			Kind:       view.KindBuffer,
			Geometry:   geometry.New(square(-1, -1, 3), spatialref.WGS84()),
			Attributes: map[string]interface{}{"source": "1", "distance": 400.0, "unit": "feet"},
			Symbol:     &buf,
		},
		{
			ID:         "g4",
			Kind:       view.KindResult,
			Attributes: map[string]interface{}{"OBJECTID": 4, "Name": "Attribute Only"},
		},
	}
}

func TestConvertToGeoJSON(t *testing.T) {
	fc := ToGeoJSON(testGraphics())
	if fc == nil {
		t.Fatal("ToGeoJSON returned nil FeatureCollection")
	}
	if fc.Type != "FeatureCollection" {
		t.Errorf("Expected type 'FeatureCollection', got %q", fc.Type)
	}

	expectedFeatureCount := 3 // g4 has no geometry, should be skipped
	if len(fc.Features) != expectedFeatureCount {
		t.Fatalf("Expected %d features, got %d", expectedFeatureCount, len(fc.Features))
	}

	f1 := fc.Features[0]
	if f1.ID != "g1" {
		t.Errorf("Feature 1: Expected ID 'g1', got %v", f1.ID)
	}
	if f1.Properties["Name"] != "Parcel A" {
		t.Errorf("Feature 1: Expected Name 'Parcel A', got %v", f1.Properties["Name"])
	}
	if f1.Properties[KeyKind] != "result" {
		t.Errorf("Feature 1: Expected kind 'result', got %v", f1.Properties[KeyKind])
	}
	if f1.Geometry.GeoJSONType() != "Polygon" {
		t.Errorf("Feature 1: Expected Polygon geometry, got %s", f1.Geometry.GeoJSONType())
	}

	style := StyleOf(f1.Properties)
	if style.Fill != "#0033cc" {
		t.Errorf("Feature 1: Expected fill '#0033cc', got %q", style.Fill)
	}
	if style.FillOpacity != 0.6 {
		t.Errorf("Feature 1: Expected fill-opacity 0.6, got %v", style.FillOpacity)
	}
	if style.Stroke != "#ffffff" || style.StrokeWidth != 1 {
		t.Errorf("Feature 1: Unexpected outline %q %v", style.Stroke, style.StrokeWidth)
	}

	bufStyle := StyleOf(fc.Features[2].Properties)
	if bufStyle.Fill != "#ffff00" || bufStyle.FillOpacity != 0.5 {
		t.Errorf("Buffer: Unexpected style %+v", bufStyle)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}
	if !strings.Contains(string(data), `"fill-opacity":0.5`) {
		t.Errorf("Marshaled GeoJSON missing buffer opacity: %s", data)
	}
}

func TestConvertToGeoJSON_NoSymbol(t *testing.T) {
	gs := testGraphics()[:1]
	gs[0].Symbol = nil
	fc := ToGeoJSON(gs)
	if _, ok := fc.Features[0].Properties[KeyFill]; ok {
		t.Errorf("Expected no fill property for a graphic without symbol")
	}
	if !StyleOf(fc.Features[0].Properties).IsZero() {
		t.Errorf("Expected zero style")
	}
}

func TestConvertGraphicsToCSV(t *testing.T) {
	csvString, err := GraphicsToCSV(testGraphics())
	if err != nil {
		t.Fatalf("GraphicsToCSV failed: %v", err)
	}

	expectedHeader := "Name,OBJECTID,Status,distance,layer,source,unit,kind,WKT_Geometry"
	if !strings.HasPrefix(csvString, expectedHeader+"\n") {
		t.Errorf("CSV Header mismatch. Got: %q", strings.SplitN(csvString, "\n", 2)[0])
	}

	lines := strings.Split(strings.TrimSpace(csvString), "\n")
	if len(lines) != 5 {
		t.Fatalf("Expected 5 CSV lines, got %d", len(lines))
	}
	if !strings.Contains(lines[1], "POLYGON") {
		t.Errorf("Row 1 missing polygon WKT: %q", lines[1])
	}
	if !strings.Contains(lines[3], ",buffer,") {
		t.Errorf("Row 3 missing buffer kind: %q", lines[3])
	}
	if !strings.HasSuffix(lines[4], ",result,") {
		t.Errorf("Row 4 should have empty WKT: %q", lines[4])
	}

	empty, err := GraphicsToCSV(nil)
	if err != nil || empty != "" {
		t.Errorf("Expected empty CSV for no graphics, got %q, %v", empty, err)
	}
}

func TestConvertGraphicsToText(t *testing.T) {
	title := "Parcels within 400 feet"
	textString, err := GraphicsToText(testGraphics(), title)
	if err != nil {
		t.Fatalf("GraphicsToText failed: %v", err)
	}

	if !strings.Contains(textString, fmt.Sprintf("Selection: %s\n", title)) {
		t.Errorf("Text output missing title header.")
	}
	if !strings.Contains(textString, "Total Graphics: 4\n") {
		t.Errorf("Text output missing Total Graphics header.")
	}
	if !strings.Contains(textString, "--- Graphic 3 (buffer) ---") {
		t.Errorf("Text output missing marker for the buffer graphic.")
	}
	if !strings.Contains(textString, "Name: Parcel A") {
		t.Errorf("Text output missing attribute 'Name: Parcel A'.")
	}
	if !strings.Contains(textString, "Geometry (WKT, wkid:4326):\n  POINT") {
		t.Errorf("Text output missing WKT for the point graphic.")
	}
	if !strings.Contains(textString, "  <No Geometry>") {
		t.Errorf("Text output missing '<No Geometry>' marker.")
	}

	if _, err := GraphicsToText(nil, title); err == nil {
		t.Errorf("Expected error for no graphics")
	}
}

func TestToWGS84(t *testing.T) {
	engine := projection.NewEngine(nil)
	if err := engine.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	gs := []view.Graphic{
		{ID: "merc", Geometry: geometry.New(orb.Point{1113194.9, 0}, spatialref.WebMercator())},
		{ID: "geo", Geometry: geometry.New(orb.Point{1, 2}, spatialref.WGS84())},
		{ID: "none"},
	}
	out, err := ToWGS84(context.Background(), engine, gs)
	if err != nil {
		t.Fatalf("ToWGS84 failed: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("Expected 3 graphics, got %d", len(out))
	}
	p, ok := out[0].Geometry.Geom.(orb.Point)
	if !ok || math.Abs(p[0]-10) > 1e-6 || math.Abs(p[1]) > 1e-6 {
		t.Errorf("Expected (10, 0), got %v", out[0].Geometry.Geom)
	}
	if !out[0].Geometry.SR.IsWGS84() {
		t.Errorf("Expected WGS84 reference, got %s", out[0].Geometry.SR)
	}
	if gs[0].Geometry.SR.IsWGS84() {
		t.Errorf("Input graphic was modified")
	}

	utm := []view.Graphic{{ID: "utm", Geometry: geometry.New(orb.Point{500000, 0}, spatialref.FromWKID(32650))}}
	out, err = ToWGS84(context.Background(), engine, utm)
	if err == nil {
		t.Errorf("Expected error for unsupported reference")
	}
	if len(out) != 0 {
		t.Errorf("Expected failed graphic to be dropped, got %d", len(out))
	}
}
