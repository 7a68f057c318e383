package gateway

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/muurk/climanode/internal/actuator"
	"github.com/muurk/climanode/internal/device"
	"github.com/muurk/climanode/internal/logging"
	"github.com/muurk/climanode/internal/sensor"
	"github.com/muurk/climanode/internal/version"
)

//go:embed static
var staticFiles embed.FS

// ServerConfig holds the UI server configuration
type ServerConfig struct {
	Host           string
	Port           int
	CertPath       string // Serve HTTPS when both paths are set
	KeyPath        string
	AllowedOrigins []string
	CommandWait    time.Duration // How long POST /api/command waits for the result
	Classification sensor.Classification
}

// Server is the local HTTP/WebSocket server.
type Server struct {
	config  ServerConfig
	adapter AdapterConfig
	ui      *UI
	board   *actuator.Board
	handler http.Handler
	log     *zap.Logger

	mu       sync.Mutex
	httpSrv  *http.Server
	listener net.Listener
	done     chan struct{}
}

// NewServer builds the router. The server does not listen until Start.
func NewServer(config ServerConfig, adapter AdapterConfig, ui *UI, board *actuator.Board) *Server {
	if config.CommandWait <= 0 {
		config.CommandWait = 2 * time.Second
	}
	if config.Classification == (sensor.Classification{}) {
		config.Classification = sensor.DefaultClassification()
	}
	s := &Server{
		config:  config,
		adapter: adapter,
		ui:      ui,
		board:   board,
		log:     logging.Named("gateway.http"),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	m := s.adapter.Metrics
	r := mux.NewRouter()

	r.Handle("/ws", s.ui).Methods(http.MethodGet)
	r.Handle("/api/state", m.WrapHandler("/api/state", http.HandlerFunc(s.handleState))).Methods(http.MethodGet)
	r.Handle("/api/command", m.WrapHandler("/api/command", http.HandlerFunc(s.handleCommand))).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(fmt.Sprintf("embedded static files: %v", err))
	}
	r.PathPrefix("/").Handler(http.FileServer(http.FS(static))).Methods(http.MethodGet)

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	var h http.Handler = c.Handler(r)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(s.log)),
		handlers.PrintRecoveryStack(true),
	)(h)
	h = handlers.CustomLoggingHandler(nil, h, func(_ io.Writer, p handlers.LogFormatterParams) {
		s.log.Debug("HTTP request",
			zap.String("method", p.Request.Method),
			zap.String("path", p.URL.Path),
			zap.Int("status", p.StatusCode),
			zap.Int("size", p.Size),
			zap.String("remote_addr", p.Request.RemoteAddr),
		)
	})
	return h
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Addr returns the bound address while running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start binds the listener and serves in the background. The store's
// webserver flag is raised once listening and lowered when serving stops.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpSrv != nil {
		return errors.New("server already running")
	}

	addr := net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	tlsEnabled := s.config.CertPath != "" && s.config.KeyPath != ""
	if tlsEnabled {
		tlsConfig, err := NewTLSConfig(s.config.CertPath, s.config.KeyPath)
		if err != nil {
			_ = ln.Close()
			return err
		}
		srv.TLSConfig = tlsConfig
	}

	s.httpSrv = srv
	s.listener = ln
	done := make(chan struct{})
	s.done = done

	if err := s.adapter.Store.SetWebserverRunning(true); err != nil {
		s.log.Warn("Could not record webserver state", zap.Error(err))
	}

	s.log.Info("UI server listening",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("tls", tlsEnabled),
	)

	go func() {
		defer close(done)
		var err error
		if tlsEnabled {
			err = srv.ServeTLS(ln, "", "")
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("UI server stopped", zap.Error(err))
		}

		s.mu.Lock()
		if s.httpSrv == srv {
			s.httpSrv = nil
			s.listener = nil
		}
		s.mu.Unlock()

		if err := s.adapter.Store.SetWebserverRunning(false); err != nil {
			s.log.Warn("Could not record webserver state", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown gracefully stops the server and disconnects WebSocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.httpSrv, s.done
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	s.log.Info("Shutting down UI server...")
	s.ui.CloseAll()
	err := srv.Shutdown(ctx)

	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("Shutdown timeout, forcing close")
		_ = srv.Close()
	}
	return err
}

// GetActiveConnections returns the number of WebSocket clients
func (s *Server) GetActiveConnections() int {
	return s.ui.Clients()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	store := s.adapter.Store
	reading, err := store.Sensor()
	if err != nil {
		s.busy(w, err)
		return
	}
	snap, err := store.Snapshot()
	if err != nil {
		s.busy(w, err)
		return
	}

	pins := s.adapter.Pins
	resp := StateResponse{
		Sensor: SensorValue{
			Temperature: reading.Temperature,
			Humidity:    reading.Humidity,
			State:       s.config.Classification.Classify(reading).String(),
		},
		Outputs: []OutputState{
			{Name: device.Led.String(), GPIO: pins.LED, On: s.board.Level(device.Led), Override: snap.Override[device.Led]},
			{Name: device.NeoPixel.String(), GPIO: pins.Neo, On: s.board.Level(device.NeoPixel), Override: snap.Override[device.NeoPixel]},
		},
		WebserverRunning: snap.WebserverRunning,
		ReleaseEnabled:   s.adapter.AllowRelease,
		Cloud: CloudConnection{
			Server:   snap.CloudServer,
			Port:     snap.CloudPort,
			HasToken: snap.CloudToken != "",
		},
		Version: version.Short(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) busy(w http.ResponseWriter, err error) {
	s.adapter.Metrics.LockTimeout("gateway")
	s.log.Warn("State not available", zap.Error(err))
	writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: device.WireMessage(err)})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageSize))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "malformed message"})
		return
	}

	cmd, err := commandFor(s.adapter.Pins, req.GPIO, req.Status, s.adapter.AllowRelease)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: device.WireMessage(err)})
		return
	}
	cmd.Origin = device.ChannelLocal
	cmd.CorrelationID = "api-" + uuid.NewString()

	results, cancel := s.adapter.Hub.Await(cmd.CorrelationID)
	defer cancel()

	if err := s.adapter.Queue.Enqueue(r.Context(), cmd, s.adapter.EnqueueTimeout); err != nil {
		s.adapter.Metrics.Backpressure(device.ChannelLocal)
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: device.WireMessage(err)})
		return
	}

	resp := CommandResponse{
		GPIO:          req.GPIO,
		Status:        strings.ToUpper(req.Status),
		CorrelationID: cmd.CorrelationID,
	}

	timer := time.NewTimer(s.config.CommandWait)
	defer timer.Stop()

	select {
	case res := <-results:
		resp.Accepted = res.Accepted
		if cmd.Action == device.ActionSet {
			resp.Status = device.StatusString(res.NewState)
		}
		writeJSON(w, http.StatusOK, resp)
	case <-timer.C:
		resp.Pending = true
		writeJSON(w, http.StatusAccepted, resp)
	case <-r.Context().Done():
	}
}
