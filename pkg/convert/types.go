package convert

import (
	"github.com/paulmach/orb/geojson"
)

// Style is the drawing style carried in a GeoJSON feature's properties.
type Style struct {
	Fill        string
	FillOpacity float64
	Stroke      string
	StrokeWidth float64
}

// StyleOf reads the simplestyle keys back out of props. Missing keys keep
// their zero value.
func StyleOf(props geojson.Properties) Style {
	return Style{
		Fill:        props.MustString(KeyFill, ""),
		FillOpacity: props.MustFloat64(KeyFillOpacity, 0),
		Stroke:      props.MustString(KeyStroke, ""),
		StrokeWidth: props.MustFloat64(KeyStrokeWidth, 0),
	}
}

// IsZero reports whether no style was found.
func (s Style) IsZero() bool {
	return s == Style{}
}
