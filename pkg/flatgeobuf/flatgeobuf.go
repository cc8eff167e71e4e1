// Package flatgeobuf reads and writes FlatGeobuf files as orb geojson
// features. Files are always written with a packed Hilbert R-tree so readers
// can answer bounding-box searches without a full scan.
package flatgeobuf

import (
	"errors"

	"github.com/paulmach/orb"
)

var (
	ErrEmpty           = errors.New("flatgeobuf: no features to write")
	ErrUnsupportedType = errors.New("flatgeobuf: unsupported geometry type")
	ErrNoIndex         = errors.New("flatgeobuf: file has no spatial index")
)

// Options configures writing.
type Options struct {
	Name        string
	Description string
	// EPSG is the coordinate system code stored in the header. Zero omits it.
	EPSG int
}

// Column describes one property column.
type Column struct {
	Name string
	Type string
}

// Header is the file metadata.
type Header struct {
	Name          string
	Description   string
	GeometryType  string
	FeaturesCount uint64
	Envelope      orb.Bound
	EPSG          int
	HasIndex      bool
	Columns       []Column
}
