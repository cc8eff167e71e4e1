package flatgeobuf

import (
	"fmt"

	flatgeobuf "github.com/flatgeobuf/flatgeobuf/src/go"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Reader gives indexed access to one FlatGeobuf file.
type Reader struct {
	fgb *flatgeobuf.FlatGeoBuf
}

// Open memory-maps the file at path.
func Open(path string) (*Reader, error) {
	fgb, err := flatgeobuf.New(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Reader{fgb: fgb}, nil
}

// OpenData reads a FlatGeobuf file held in memory.
func OpenData(data []byte) (*Reader, error) {
	fgb, err := flatgeobuf.NewWithData(data)
	if err != nil {
		return nil, err
	}
	return &Reader{fgb: fgb}, nil
}

func (r *Reader) Header() Header {
	h := r.fgb.Header()
	out := Header{
		Name:          string(h.Name()),
		Description:   string(h.Description()),
		GeometryType:  flattypes.EnumNamesGeometryType[h.GeometryType()],
		FeaturesCount: h.FeaturesCount(),
		HasIndex:      h.IndexNodeSize() > 0,
	}
	if env, ok := envelope(h); ok {
		out.Envelope = env
	}
	var crs flattypes.Crs
	if h.Crs(&crs) != nil {
		out.EPSG = int(crs.Code())
	}
	for i := 0; i < h.ColumnsLength(); i++ {
		var col flattypes.Column
		if h.Columns(&col, i) {
			out.Columns = append(out.Columns, Column{
				Name: string(col.Name()),
				Type: flattypes.EnumNamesColumnType[col.Type()],
			})
		}
	}
	return out
}

// Search returns features whose bounding box intersects b. Callers that need
// an exact relation must test the returned geometries themselves.
func (r *Reader) Search(b orb.Bound) ([]*geojson.Feature, error) {
	h := r.fgb.Header()
	if h.IndexNodeSize() == 0 {
		return nil, ErrNoIndex
	}
	if h.FeaturesCount() == 0 {
		return nil, nil
	}
	found, err := r.fgb.Search(b.Min[0], b.Min[1], b.Max[0], b.Max[1])
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	out := make([]*geojson.Feature, 0, len(found))
	for _, f := range found {
		feat, err := toFeature(f, h)
		if err != nil {
			return nil, err
		}
		if feat != nil {
			out = append(out, feat)
		}
	}
	return out, nil
}

// All returns every feature by searching the header envelope.
func (r *Reader) All() ([]*geojson.Feature, error) {
	env, ok := envelope(r.fgb.Header())
	if !ok {
		return nil, ErrNoIndex
	}
	return r.Search(env)
}

func envelope(h *flattypes.Header) (orb.Bound, bool) {
	if h.EnvelopeLength() < 4 {
		return orb.Bound{}, false
	}
	return orb.Bound{
		Min: orb.Point{h.Envelope(0), h.Envelope(1)},
		Max: orb.Point{h.Envelope(2), h.Envelope(3)},
	}, true
}

func toFeature(f *flattypes.Feature, h *flattypes.Header) (*geojson.Feature, error) {
	if f == nil {
		return nil, nil
	}
	var gb flattypes.Geometry
	g := f.Geometry(&gb)
	if g == nil {
		return nil, nil
	}
	geom := decodeGeometry(g)
	if geom == nil {
		return nil, nil
	}

	feat := geojson.NewFeature(geom)
	if n := f.PropertiesLength(); n > 0 {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(f.Properties(i))
		}
		props, err := decodeProperties(data, h)
		if err != nil {
			return nil, fmt.Errorf("decode properties: %w", err)
		}
		feat.Properties = props
	}
	return feat, nil
}
