package export

import (
	"io"

	"github.com/paulmach/orb/geojson"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/flatgeobuf"
)

// WriteFlatGeobuf writes fc as an indexed FlatGeobuf file. epsg is stored in
// the header; pass EPSGWGS84 for collections from convert.ToWGS84.
func WriteFlatGeobuf(w io.Writer, fc *geojson.FeatureCollection, layerName string, epsg int) error {
	return flatgeobuf.WriteFeatures(w, fc, flatgeobuf.Options{
		Name:        layerName,
		Description: "selection graphics",
		EPSG:        epsg,
	})
}
