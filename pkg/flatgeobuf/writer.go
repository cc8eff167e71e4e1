package flatgeobuf

import (
	"fmt"
	"io"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb/geojson"
)

// WriteFeatures writes fc with a spatial index. Features without a geometry
// are skipped; a collection with none left is ErrEmpty.
func WriteFeatures(w io.Writer, fc *geojson.FeatureCollection, opts Options) error {
	feats, gtype, err := writable(fc)
	if err != nil {
		return err
	}

	s := inferSchema(feats)
	gen := &featureGenerator{features: feats, props: make([][]byte, len(feats))}
	for i, f := range feats {
		if gen.props[i], err = s.encode(f.Properties); err != nil {
			return err
		}
	}

	b := flatbuffers.NewBuilder(4096)
	if _, err := writer.NewWriter(newHeader(b, gtype, s, opts), true, gen, nil).Write(w); err != nil {
		return fmt.Errorf("write flatgeobuf: %w", err)
	}
	return nil
}

// writable drops features without geometry and returns the shared geometry
// type, or Unknown when the collection mixes types.
func writable(fc *geojson.FeatureCollection) ([]*geojson.Feature, flattypes.GeometryType, error) {
	if fc == nil {
		return nil, 0, ErrEmpty
	}
	feats := make([]*geojson.Feature, 0, len(fc.Features))
	var gtype flattypes.GeometryType
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		t := geometryType(f.Geometry)
		switch {
		case t == flattypes.GeometryTypeUnknown:
			return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedType, f.Geometry.GeoJSONType())
		case len(feats) == 0:
			gtype = t
		case t != gtype:
			gtype = flattypes.GeometryTypeUnknown
		}
		feats = append(feats, f)
	}
	if len(feats) == 0 {
		return nil, 0, ErrEmpty
	}
	return feats, gtype, nil
}

func newHeader(b *flatbuffers.Builder, gtype flattypes.GeometryType, s schema, opts Options) *writer.Header {
	h := writer.NewHeader(b)
	h.SetGeometryType(gtype)
	if name := opts.Name; name != "" {
		h.SetName(name)
	}
	if desc := opts.Description; desc != "" {
		h.SetDescription(desc)
	}
	if len(s.names) > 0 {
		h.SetColumns(s.columns(b))
	}
	if opts.EPSG > 0 {
		crs := writer.NewCrs(b)
		crs.SetOrg("EPSG")
		crs.SetCode(int32(opts.EPSG))
		h.SetCrs(crs)
	}
	return h
}

type featureGenerator struct {
	features []*geojson.Feature
	props    [][]byte
	next     int
}

func (g *featureGenerator) Generate() *writer.Feature {
	if g.next == len(g.features) {
		return nil
	}
	f, props := g.features[g.next], g.props[g.next]
	g.next++

	b := flatbuffers.NewBuilder(1024)
	out := writer.NewFeature(b)
	out.SetGeometry(encodeGeometry(f.Geometry, b))
	if len(props) > 0 {
		out.SetProperties(props)
	}
	return out
}
