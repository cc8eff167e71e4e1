package server

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Message types exchanged over the websocket.
const (
	TypeSession = "session"
	TypeClick   = "click"
	TypeExtent  = "extent"
	TypeOrder   = "order"
	TypeCycle   = "cycle"
	TypeError   = "error"
)

// Request is a client message. Which fields apply depends on Type:
// click uses X and Y in the primary view's reference, extent uses Extent as
// xmin, ymin, xmax, ymax, and order uses Value.
type Request struct {
	Type   string    `json:"type"`
	X      float64   `json:"x,omitempty"`
	Y      float64   `json:"y,omitempty"`
	Extent []float64 `json:"extent,omitempty"`
	Value  string    `json:"value,omitempty"`
}

// CycleMessage reports a finished selection cycle with the graphics of every
// view, keyed by view id.
type CycleMessage struct {
	Type             string                                `json:"type"`
	ID               string                                `json:"id,omitempty"`
	Feature          string                                `json:"feature,omitempty"`
	Results          int                                   `json:"results"`
	SecondaryResults int                                   `json:"secondary_results"`
	Error            string                                `json:"error,omitempty"`
	Graphics         map[string]*geojson.FeatureCollection `json:"graphics"`
}

type ExtentMessage struct {
	Type   string     `json:"type"`
	View   string     `json:"view"`
	Extent [4]float64 `json:"extent"`
}

type SessionMessage struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Order string `json:"order"`
}

type OrderMessage struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func extentMessage(viewID string, b orb.Bound) ExtentMessage {
	return ExtentMessage{
		Type:   TypeExtent,
		View:   viewID,
		Extent: [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]},
	}
}
