package view

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/geometry"
)

// Kind says why a graphic is on the display layer.
type Kind string

const (
	KindResult Kind = "result"
	KindBuffer Kind = "buffer"
)

// Color is red, green, blue in 0..255 and alpha in 0..1.
type Color [4]float64

// Hex returns the #rrggbb form, dropping alpha.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", channel(c[0]), channel(c[1]), channel(c[2]))
}

// Opacity returns alpha clamped to 0..1.
func (c Color) Opacity() float64 {
	switch {
	case c[3] < 0:
		return 0
	case c[3] > 1:
		return 1
	}
	return c[3]
}

func channel(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v + 0.5)
}

// FillSymbol styles polygons and, by its outline, lines and points.
type FillSymbol struct {
	Color        Color   `json:"color" yaml:"color"`
	OutlineColor Color   `json:"outline_color" yaml:"outline_color"`
	OutlineWidth float64 `json:"outline_width" yaml:"outline_width"`
}

var (
	white = Color{255, 255, 255, 1}

	// HighlightColor marks the selected source feature.
	HighlightColor = Color{255, 0, 255, 1}
)

// DefaultResultSymbol is blue with a thin white outline.
func DefaultResultSymbol() FillSymbol {
	return FillSymbol{Color: Color{0, 51, 204, 0.6}, OutlineColor: white, OutlineWidth: 1}
}

// DefaultBufferSymbol is translucent yellow.
func DefaultBufferSymbol() FillSymbol {
	return FillSymbol{Color: Color{255, 255, 0, 0.5}, OutlineColor: white, OutlineWidth: 1}
}

// Graphic is one drawn geometry.
type Graphic struct {
	ID         string
	Kind       Kind
	Geometry   geometry.Geometry
	Attributes map[string]interface{}
	Symbol     *FillSymbol
}

// NewGraphic assigns a random ID.
func NewGraphic(kind Kind, g geometry.Geometry, attrs map[string]interface{}, sym *FillSymbol) Graphic {
	return Graphic{ID: uuid.NewString(), Kind: kind, Geometry: g, Attributes: attrs, Symbol: sym}
}

// GraphicsLayer is the display layer results and buffers are drawn into.
// Graphics without a symbol use the layer's default.
type GraphicsLayer struct {
	id  string
	def FillSymbol

	mu       sync.RWMutex
	graphics []Graphic
	version  uint64
}

// NewGraphicsLayer returns an empty layer.
func NewGraphicsLayer(id string, def FillSymbol) *GraphicsLayer {
	return &GraphicsLayer{id: id, def: def}
}

func (l *GraphicsLayer) ID() string { return l.id }

func (l *GraphicsLayer) Add(g Graphic) {
	l.AddMany([]Graphic{g})
}

// AddMany appends graphics in order.
func (l *GraphicsLayer) AddMany(gs []Graphic) {
	if len(gs) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, g := range gs {
		if g.Symbol == nil {
			sym := l.def
			g.Symbol = &sym
		}
		l.graphics = append(l.graphics, g)
	}
	l.version++
}

// RemoveAll clears the layer.
func (l *GraphicsLayer) RemoveAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.graphics = nil
	l.version++
}

// Graphics returns a snapshot in drawing order.
func (l *GraphicsLayer) Graphics() []Graphic {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Graphic, len(l.graphics))
	copy(out, l.graphics)
	return out
}

func (l *GraphicsLayer) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.graphics)
}

// Version increases on every mutation.
func (l *GraphicsLayer) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}
