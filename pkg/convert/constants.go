package convert

// Property keys written alongside feature attributes. The style keys follow
// the simplestyle convention understood by most GeoJSON viewers.
const (
	KeyID          = "graphic_id"
	KeyKind        = "kind"
	KeyFill        = "fill"
	KeyFillOpacity = "fill-opacity"
	KeyStroke      = "stroke"
	KeyStrokeWidth = "stroke-width"
	ColumnWKT      = "WKT_Geometry"
	NoGeometry     = "<No Geometry>"
)
