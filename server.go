package main

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"github.com/sdrview/pkg/backend"
	"github.com/sdrview/pkg/renderer"
	"github.com/sdrview/pkg/settings"
	"github.com/sdrview/pkg/stream"
)

const (
	writeWait      = 10 * time.Second
	clientSendSize = 256
	frameQueueSize = 8
)

// textMessage is a pre-encoded JSON message sent as a websocket text frame.
type textMessage []byte

type Client struct {
	id   string
	conn *websocket.Conn
	send chan interface{}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
	}()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		var err error
		switch v := msg.(type) {
		case textMessage:
			err = c.conn.WriteMessage(websocket.TextMessage, v)
		case []byte:
			err = c.conn.WriteMessage(websocket.BinaryMessage, v)
		default:
			err = c.conn.WriteJSON(v)
		}
		if err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Hub fans messages out to the connected websocket clients. A client whose
// queue is full misses the message; the broadcaster never waits.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	logger  *zap.Logger
}

func newHub(logger *zap.Logger) *Hub {
	return &Hub{clients: make(map[*Client]bool), logger: logger}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("client connected", zap.String("client", c.id), zap.Int("clients", n))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send) // stops writePump
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("client disconnected", zap.String("client", c.id), zap.Int("clients", n))
}

func (h *Hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcastJSON(msg interface{}) {
	b, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode broadcast", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- textMessage(b):
		default:
		}
	}
}

// Server is the dashboard: it renders the backend's spectrum stream, keeps
// the derived displays and serves them to browsers.
type Server struct {
	cfg    *Config
	logger *zap.Logger

	be     *backend.Client
	store  *settings.Store
	rend   *renderer.Renderer
	hub    *Hub
	state  *ServerState
	frames chan frameEvent

	router   *mux.Router
	upgrader websocket.Upgrader
}

func newServer(cfg *Config, be *backend.Client, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		be:     be,
		store:  settings.New(be, cfg.DisplaySettings(), logger.With(zap.String("component", "settings"))),
		hub:    newHub(logger.With(zap.String("component", "hub"))),
		state:  newServerState(cfg),
		frames: make(chan frameEvent, frameQueueSize),
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 65536,
		},
	}

	rlog := logger.With(zap.String("component", "renderer"))
	s.rend = renderer.New(renderer.Config{
		Dialer: renderer.EventSourceDialer{
			URL:    be.StreamURL(),
			Client: be.StreamClient(),
			Logger: rlog,
		},
		Analytics: be,
		Settings:  s.store.Snapshot(),
		Logger:    rlog,
	})
	s.rend.AddSink(s)
	s.rend.OnState(s.onStreamState)
	s.rend.OnAnalytics(s.onAnalytics)
	s.store.Subscribe(s.rend.UpdateSettings)
	s.store.OnStatus(s.broadcastStatus)

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/index.html", s.handleIndex).Methods("GET")
	r.HandleFunc("/ws", s.handleWS)

	// Rendered views
	r.HandleFunc("/chart/spectrum.png", s.handleSpectrumChart).Methods("GET")
	r.HandleFunc("/chart/spectrum.svg", s.handleSpectrumChart).Methods("GET")
	r.HandleFunc("/chart/waterfall.png", s.handleWaterfall).Methods("GET")
	r.HandleFunc("/chart/sweep.png", s.handleSweepChart).Methods("GET")
	r.HandleFunc("/chart/sweep.svg", s.handleSweepChart).Methods("GET")

	// Local dashboard state
	d := r.PathPrefix("/dashboard").Subrouter()
	d.HandleFunc("/display", s.handleDisplayGet).Methods("GET")
	d.HandleFunc("/display", s.handleDisplayUpdate).Methods("POST")
	d.HandleFunc("/status", s.handleStatus).Methods("GET")
	d.HandleFunc("/peaks", s.handlePeaks).Methods("GET")
	d.HandleFunc("/record/start", s.handleRecordStart).Methods("POST")
	d.HandleFunc("/record/stop", s.handleRecordStop).Methods("POST")
	d.HandleFunc("/record/status", s.handleRecordStatus).Methods("GET")

	// Backend endpoints, same paths as the backend itself
	r.HandleFunc("/api/get_settings", s.handleGetSettings).Methods("GET")
	r.HandleFunc("/api/update_settings", s.handleUpdateSettings).Methods("POST")
	r.HandleFunc("/api/select_sdr", s.handleSelectSDR).Methods("POST")
	r.HandleFunc("/api/start_sweep", s.handleStartSweep).Methods("POST")
	r.HandleFunc("/api/analytics", s.handleAnalytics).Methods("GET")
	r.HandleFunc("/api/get_classifiers", s.handleClassifiers).Methods("GET")
	r.HandleFunc("/api/upload_classifier", s.handleUploadClassifier).Methods("POST")
	r.HandleFunc("/api/download_all_bands", s.handleDownloadAllBands).Methods("GET")
	r.HandleFunc("/api/sweep", s.handleSweep).Methods("GET")
	r.HandleFunc("/sigid/data", s.handleSigID).Methods("GET")

	r.HandleFunc("/actions/tasks", s.handleTasks).Methods("GET")
	r.HandleFunc("/actions/tasks", s.handleAddTask).Methods("POST")
	r.HandleFunc("/actions/tasks/execute", s.handleExecuteTasks).Methods("POST")

	fm := r.PathPrefix("/file_manager/files").Subrouter()
	fm.HandleFunc("", s.handleListFiles).Methods("GET")
	fm.HandleFunc("/metadata", s.handleFileMetadata).Methods("GET")
	fm.HandleFunc("/create_directory", s.handleCreateDirectory).Methods("POST")
	fm.HandleFunc("/move", s.handleMoveFile).Methods("POST")
	fm.HandleFunc("/rename", s.handleRenameFile).Methods("POST")
	fm.HandleFunc("/delete", s.handleDeleteFile).Methods("POST")
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	templatesContent, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		http.Error(w, "Template error: "+err.Error(), 500)
		return
	}
	tmpl, err := template.ParseFS(templatesContent, "*.html")
	if err != nil {
		http.Error(w, "Template error: "+err.Error(), 500)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	tmpl.ExecuteTemplate(w, "index.html", map[string]interface{}{
		"Backend": s.cfg.Backend,
	})
}

// WebSocket endpoint. Clients receive frames, status and analytics; they
// may send display updates.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{id: uuid.NewString(), conn: conn, send: make(chan interface{}, clientSendSize)}
	client.send <- s.statusMessage()
	if f := s.state.latestFrame(); f != nil {
		client.send <- s.frameMessage(*f, nil)
	}
	s.hub.register(client)
	go client.writePump()
	defer s.hub.unregister(client)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req struct {
			Type string `json:"type"`
			displayRequest
		}
		if err := json.Unmarshal(msg, &req); err != nil {
			s.logger.Debug("ignoring malformed client message", zap.String("client", client.id), zap.Error(err))
			continue
		}
		if req.Type != "display" {
			continue
		}
		if err := req.displayRequest.validate(s.store.Snapshot()); err != nil {
			s.logger.Debug("rejected display update", zap.String("client", client.id), zap.Error(err))
			continue
		}
		s.store.Update(r.Context(), req.displayRequest.patch())
	}
}

func (s *Server) statusMessage() map[string]interface{} {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return map[string]interface{}{
		"type":    "status",
		"status":  s.state.Status,
		"state":   s.state.StreamState,
		"frames":  s.state.FrameCount,
		"clients": s.hub.count(),
	}
}

func (s *Server) broadcastStatus(status string) {
	s.state.setStatus(status)
	s.hub.broadcastJSON(s.statusMessage())
}

func (s *Server) onStreamState(st stream.State) {
	s.state.mu.Lock()
	s.state.StreamState = st
	s.state.mu.Unlock()
	s.logger.Info("spectrum stream state", zap.Stringer("state", st))
	s.hub.broadcastJSON(s.statusMessage())
}

func (s *Server) onAnalytics(a backend.Analytics) {
	s.state.mu.Lock()
	s.state.Analytics = a
	s.state.mu.Unlock()
	if s.hub.count() == 0 {
		return
	}
	s.hub.broadcastJSON(map[string]interface{}{
		"type":  "analytics",
		"peaks": peakRows(a.Peaks),
	})
}

// Run serves until ctx is canceled, then shuts the listener, the renderer
// and any active recording down.
func (s *Server) Run(ctx context.Context) error {
	go s.runFrameLoop(ctx)
	go func() {
		if err := s.store.Load(ctx); err != nil {
			s.broadcastStatus("Error loading settings")
		}
	}()
	go func() {
		if err := s.rend.Run(ctx); err != nil {
			s.logger.Error("renderer stopped", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("dashboard listening",
		zap.String("url", fmt.Sprintf("http://localhost:%d", s.cfg.Port)),
		zap.String("backend", s.cfg.Backend))

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = srv.Shutdown(shutdownCtx)
	}
	s.rend.Close()
	s.cleanupRecording("")
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
