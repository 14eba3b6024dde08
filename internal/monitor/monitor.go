// Package monitor exposes a small HTTP surface for watching a running
// client from the outside: Prometheus scraping, a JSON snapshot of the ECU
// registry, and a websocket feed of diagnostic events as they happen.
package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"

	"github.com/anodyne74/doip-client/internal/registry"
	"github.com/anodyne74/doip-client/internal/transport"
)

// Event is one line of activity broadcast to every connected websocket
// client. doipclient broadcasts one per completed diagnostic request;
// discovery results are not broadcast.
type Event struct {
	Timestamp        time.Time `json:"timestamp"`
	ConversationName string    `json:"conversation_name"`
	Kind             string    `json:"kind"`
	Detail           string    `json:"detail"`
}

type client struct {
	id   xid.ID
	conn *websocket.Conn
	send chan Event
}

// Server is the monitor's HTTP handler: a mux.Router wired with /metrics,
// /ecus, and /ws, plus the broadcast fan-out to connected websocket clients.
type Server struct {
	router   *mux.Router
	upgrader websocket.Upgrader
	registry *registry.Manager
	logger   transport.Logger

	mu      sync.Mutex
	clients map[xid.ID]*client
}

// NewServer builds a Server backed by reg for the /ecus snapshot endpoint.
// reg may be nil, in which case /ecus always reports an empty list.
func NewServer(reg *registry.Manager, logger transport.Logger) *Server {
	if logger == nil {
		logger = transport.Discard
	}
	s := &Server{
		router:   mux.NewRouter(),
		registry: reg,
		logger:   logger,
		clients:  make(map[xid.ID]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.HandleFunc("/ecus", s.handleECUs).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebsocket)
	return s
}

// ServeHTTP lets a Server be used directly as an http.Handler, e.g. passed
// to http.ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleECUs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.registry == nil {
		json.NewEncoder(w).Encode([]registry.ECURecord{})
		return
	}
	json.NewEncoder(w).Encode(s.registry.Snapshot())
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("monitor: websocket upgrade: %v", err)
		return
	}

	c := &client{id: xid.New(), conn: conn, send: make(chan Event, 32)}
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	s.logger.Printf("monitor: client %s connected", c.id)

	go s.writeLoop(c)
	go s.readLoop(c)
}

// readLoop exists only to notice the client going away; this feed is
// write-only from the server's perspective.
func (s *Server) readLoop(c *client) {
	defer s.disconnect(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()
	for event := range c.send {
		if err := c.conn.WriteJSON(event); err != nil {
			return
		}
	}
}

func (s *Server) disconnect(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.id]; !ok {
		return
	}
	delete(s.clients, c.id)
	close(c.send)
	s.logger.Printf("monitor: client %s disconnected", c.id)
}

// Broadcast fans event out to every connected websocket client, dropping it
// for any client whose send buffer is full rather than blocking the caller.
func (s *Server) Broadcast(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		select {
		case c.send <- event:
		default:
			s.logger.Printf("monitor: client %s send buffer full, dropping event", c.id)
		}
	}
}
