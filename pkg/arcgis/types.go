package arcgis

import (
	"encoding/json"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
)

// FeatureServerMetadata represents the metadata for an ArcGIS Feature Server.
type FeatureServerMetadata struct {
	CurrentVersion json.Number `json:"currentVersion"`
	Layers         []Layer     `json:"layers"`
	Tables         []Layer     `json:"tables"`
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	ServiceItemId  string      `json:"serviceItemId"`
	Error          *APIError   `json:"error"`
}

// Layer represents a layer in an ArcGIS Feature Server or Map Server. The
// extent and field list are only filled by a layer's own metadata endpoint.
type Layer struct {
	ID               interface{}                  `json:"id"`
	Name             string                       `json:"name"`
	Type             string                       `json:"type"`
	GeometryType     string                       `json:"geometryType"`
	Description      string                       `json:"description"`
	ObjectIDField    string                       `json:"objectIdField"`
	MaxRecordCount   int                          `json:"maxRecordCount"`
	Extent           *Geometry                    `json:"extent"`
	SourceSpatialRef *spatialref.SpatialReference `json:"sourceSpatialReference"`
	Fields           []Field                      `json:"fields"`
	DrawingInfo      *DrawingInfo                 `json:"drawingInfo"`
	Error            *APIError                    `json:"error"`
}

// SpatialReference returns the reference the layer stores its features in.
func (l *Layer) SpatialReference() spatialref.SpatialReference {
	if l.SourceSpatialRef != nil && !l.SourceSpatialRef.IsZero() {
		return *l.SourceSpatialRef
	}
	if l.Extent != nil && l.Extent.SpatialReference != nil {
		return *l.Extent.SpatialReference
	}
	return spatialref.SpatialReference{}
}

// Field describes one attribute column.
type Field struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Alias string `json:"alias"`
}

// DrawingInfo represents drawing information for a layer.
type DrawingInfo struct {
	Renderer *Renderer `json:"renderer"`
}

// Renderer represents the renderer for a layer.
type Renderer struct {
	Type          string  `json:"type"`
	Field1        string  `json:"field1"`
	DefaultSymbol *Symbol `json:"defaultSymbol"`
	Symbol        *Symbol `json:"symbol"`
}

// Symbol is an Esri simple fill symbol. Colors are [r, g, b, a] with a in 0..255.
type Symbol struct {
	Type    string      `json:"type"`
	Style   string      `json:"style,omitempty"`
	Color   []int       `json:"color,omitempty"`
	Outline *LineSymbol `json:"outline,omitempty"`
}

// LineSymbol is the outline of a fill symbol.
type LineSymbol struct {
	Type  string  `json:"type"`
	Style string  `json:"style,omitempty"`
	Color []int   `json:"color,omitempty"`
	Width float64 `json:"width"`
}

// FeatureResponse represents the response from a feature query.
type FeatureResponse struct {
	ObjectIDFieldName     string                       `json:"objectIdFieldName"`
	GeometryType          string                       `json:"geometryType"`
	SpatialReference      *spatialref.SpatialReference `json:"spatialReference"`
	Features              []Feature                    `json:"features"`
	ExceededTransferLimit bool                         `json:"exceededTransferLimit"`
	Error                 *APIError                    `json:"error"`
}

// Feature represents a geographic feature with attributes and geometry.
type Feature struct {
	Attributes map[string]interface{} `json:"attributes"`
	Geometry   *Geometry              `json:"geometry"`
}

// ItemData represents metadata for an ArcGIS Online item.
type ItemData struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Title string    `json:"title"`
	Type  string    `json:"type"`
	URL   string    `json:"url"`
	Error *APIError `json:"error"`
}

// WebMapData represents data for an ArcGIS Online Web Map.
type WebMapData struct {
	OperationalLayers []OperationalLayer           `json:"operationalLayers"`
	SpatialReference  *spatialref.SpatialReference `json:"spatialReference"`
	Error             *APIError                    `json:"error"`
}

// OperationalLayer represents an operational layer in a Web Map.
type OperationalLayer struct {
	ID                string             `json:"id"`
	Title             string             `json:"title"`
	URL               string             `json:"url"`
	ItemID            string             `json:"itemId"`
	LayerType         string             `json:"layerType"`
	Layers            []OperationalLayer `json:"layers"`
	FeatureCollection *struct {
		Layers []FeatureCollectionLayer `json:"layers"`
	} `json:"featureCollection"`
}

// FeatureCollectionLayer represents a layer within a FeatureCollection.
type FeatureCollectionLayer struct {
	ID              int                    `json:"id"`
	LayerDefinition map[string]interface{} `json:"layerDefinition"`
	FeatureSet      *struct {
		GeometryType     string                       `json:"geometryType"`
		SpatialReference *spatialref.SpatialReference `json:"spatialReference"`
		Features         []Feature                    `json:"features"`
	} `json:"featureSet"`
}

// MapServiceMetadata represents the metadata for an ArcGIS Map Service.
type MapServiceMetadata struct {
	Name        string            `json:"name"`
	Layers      []MapServiceLayer `json:"layers"`
	Description string            `json:"description"`
	Error       *APIError         `json:"error"`
}

// MapServiceLayer represents a layer in an ArcGIS Map Service.
type MapServiceLayer struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	GeometryType  string `json:"geometryType"`
	ParentLayerId int    `json:"parentLayerId"`
	SubLayerIds   []int  `json:"subLayerIds"`
}

// AvailableLayerInfo stores information about a layer available for querying.
type AvailableLayerInfo struct {
	ID           string
	Name         string
	Type         string
	GeometryType string
	ServiceURL   string
	ParentPath   []string
}

// URL returns the layer endpoint.
func (l AvailableLayerInfo) URL() string {
	return trimSlash(l.ServiceURL) + "/" + l.ID
}

// geometryResponse is returned by GeometryServer operations.
type geometryResponse struct {
	GeometryType string      `json:"geometryType"`
	Geometries   []*Geometry `json:"geometries"`
	Error        *APIError   `json:"error"`
}
