// Package server exposes the selection orchestrator over HTTP and a
// websocket, pushing the drawn graphics to every connected client after each
// cycle.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/convert"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/geometry"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/selection"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/view"
)

// Server serves one orchestrator and the views it draws into.
type Server struct {
	orch     *selection.Orchestrator
	primary  *view.View
	views    []*view.View
	log      *slog.Logger
	timeout  time.Duration
	upgrader websocket.Upgrader
	hub      *hub
	subs     []*view.Subscription
}

type Option func(*Server)

// WithView adds a view whose graphics and extent are published, usually the
// secondary view.
func WithView(v *view.View) Option {
	return func(s *Server) { s.views = append(s.views, v) }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithCycleTimeout bounds each selection cycle started by a client.
func WithCycleTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New returns a server for clicks on primary. Extent changes of every view
// are pushed to clients until Close.
func New(orch *selection.Orchestrator, primary *view.View, opts ...Option) *Server {
	s := &Server{
		orch:    orch,
		primary: primary,
		views:   []*view.View{primary},
		log:     slog.Default(),
		timeout: 30 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, fn := range opts {
		fn(s)
	}
	s.hub = newHub(s.log)
	for _, v := range s.views {
		id := v.ID()
		s.subs = append(s.subs, v.WatchExtent(func(b orb.Bound) {
			s.hub.broadcast(extentMessage(id, b))
		}))
	}
	return s
}

// Close stops publishing extent changes.
func (s *Server) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
}

// Handler returns the routes:
//
//	GET  /health
//	GET  /api/graphics/{view}   GeoJSON in the view's reference
//	GET  /api/extent/{view}
//	POST /api/click             {"x":..,"y":..}
//	POST /api/order             {"value":"buffer-then-project"}
//	GET  /ws
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/graphics/{view}", s.handleGraphics)
	mux.HandleFunc("GET /api/extent/{view}", s.handleExtent)
	mux.HandleFunc("POST /api/click", s.handleClick)
	mux.HandleFunc("POST /api/order", s.handleOrder)
	mux.HandleFunc("GET /ws", s.handleWebsocket)
	return mux
}

// NewHTTPServer wraps h with the timeouts used for the daemon.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func (s *Server) findView(id string) (*view.View, bool) {
	for _, v := range s.views {
		if v.ID() == id {
			return v, true
		}
	}
	return nil, false
}

// click runs a cycle and publishes its result. A click dropped by the
// re-entrancy guard is returned as an error and not published.
func (s *Server) click(ctx context.Context, x, y float64) (CycleMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	c, err := s.orch.HandleClick(ctx, geometry.New(orb.Point{x, y}, s.primary.SpatialReference()))
	if errors.Is(err, selection.ErrSelectionInProgress) {
		return CycleMessage{}, err
	}

	msg := CycleMessage{
		Type:             TypeCycle,
		ID:               c.ID,
		Results:          c.Results,
		SecondaryResults: c.SecondaryResults,
		Graphics:         make(map[string]*geojson.FeatureCollection, len(s.views)),
	}
	if c.Feature != nil {
		msg.Feature = c.Feature.ID
	}
	if err != nil {
		msg.Error = err.Error()
	}
	for _, v := range s.views {
		msg.Graphics[v.ID()] = convert.ToGeoJSON(v.GraphicsLayer().Graphics())
	}
	s.hub.broadcast(msg)
	return msg, nil
}

func (s *Server) setOrder(value string) (selection.Order, error) {
	ord, err := selection.ParseOrder(value)
	if err != nil {
		return 0, err
	}
	s.orch.SetOrder(ord)
	s.hub.broadcast(OrderMessage{Type: TypeOrder, Value: ord.String()})
	return ord, nil
}

func (s *Server) setExtent(ext []float64) error {
	if len(ext) != 4 {
		return errors.New("extent needs xmin, ymin, xmax, ymax")
	}
	if ext[0] > ext[2] || ext[1] > ext[3] {
		return fmt.Errorf("extent %v: min exceeds max", ext)
	}
	s.primary.SetExtent(orb.Bound{
		Min: orb.Point{ext[0], ext[1]},
		Max: orb.Point{ext[2], ext[3]},
	})
	return nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func (s *Server) handleGraphics(w http.ResponseWriter, r *http.Request) {
	v, ok := s.findView(r.PathValue("view"))
	if !ok {
		http.Error(w, "unknown view", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, convert.ToGeoJSON(v.GraphicsLayer().Graphics()))
}

func (s *Server) handleExtent(w http.ResponseWriter, r *http.Request) {
	v, ok := s.findView(r.PathValue("view"))
	if !ok {
		http.Error(w, "unknown view", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, extentMessage(v.ID(), v.Extent()))
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid click: "+err.Error(), http.StatusBadRequest)
		return
	}
	msg, err := s.click(r.Context(), req.X, req.Y)
	if err != nil {
		s.writeJSON(w, http.StatusConflict, ErrorMessage{Type: TypeError, Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid order: "+err.Error(), http.StatusBadRequest)
		return
	}
	ord, err := s.setOrder(req.Value)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, http.StatusOK, OrderMessage{Type: TypeOrder, Value: ord.String()})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	sess := s.hub.add(conn)
	defer s.hub.remove(sess)

	if err := sess.send(SessionMessage{Type: TypeSession, ID: sess.id, Order: s.orch.Order().String()}); err != nil {
		return
	}

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("websocket read failed", "session", sess.id, "error", err)
			}
			return
		}
		if err := s.dispatch(r.Context(), req); err != nil {
			if err := sess.send(ErrorMessage{Type: TypeError, Error: err.Error()}); err != nil {
				return
			}
		}
	}
}

// dispatch handles one websocket request. Results are broadcast; the
// returned error goes back to the sender only.
func (s *Server) dispatch(ctx context.Context, req Request) error {
	switch req.Type {
	case TypeClick:
		_, err := s.click(ctx, req.X, req.Y)
		return err
	case TypeExtent:
		return s.setExtent(req.Extent)
	case TypeOrder:
		_, err := s.setOrder(req.Value)
		return err
	default:
		return errors.New("unknown message type " + req.Type)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("Failed to encode response", "error", err)
	}
}
