// Package api serves the UPS state and commands over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/control"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/eventlog"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/poller"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/status"
)

// Device is the poller surface used by the API.
type Device interface {
	Device() (status.Identity, status.Rating, bool)
	ReadRegisters(ctx context.Context, address, count uint16) ([]uint16, error)
}

// Controller is the command surface used by the API.
type Controller interface {
	StartBatteryTest(ctx context.Context) error
	CancelBatteryTest(ctx context.Context) error
	SetDelay(ctx context.Context, d control.Delay, seconds int) error
	ReadDelay(ctx context.Context, d control.Delay) (uint32, error)
	Delay(d control.Delay) (uint32, bool)
}

// EventSource lists logged events.
type EventSource interface {
	Recent(ctx context.Context, limit int) ([]eventlog.Event, error)
}

// Options holds the optional parts of the server.
type Options struct {
	Listen string
	Token  string

	// Mounted at /metrics and /mcp when non-nil.
	Metrics http.Handler
	MCP     http.Handler

	// Nil disables /api/v1/events.
	Events EventSource
}

// Server is the HTTP API.
type Server struct {
	opts      Options
	store     *status.Store
	dev       Device
	ctl       Controller
	router    *mux.Router
	server    *http.Server
	logger    zerolog.Logger
	startTime time.Time
}

// NewServer creates the server and its routes. No IO.
func NewServer(opts Options, store *status.Store, dev Device, ctl Controller, logger zerolog.Logger) *Server {
	s := &Server{
		opts:      opts,
		store:     store,
		dev:       dev,
		ctl:       ctl,
		router:    mux.NewRouter(),
		logger:    logger,
		startTime: time.Now(),
	}
	s.setupRoutes()
	return s
}

// Handler returns the root handler, authentication included.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(mux.MiddlewareFunc(NewAuthMiddleware(s.opts.Token)))

	// Routes sit on the root router: a subrouter answers a method mismatch
	// with 404 instead of 405.
	const api = "/api/v1"

	s.router.HandleFunc(api+"/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc(api+"/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	s.router.HandleFunc(api+"/device", s.handleDevice).Methods(http.MethodGet)
	s.router.HandleFunc(api+"/registers/{address}", s.handleReadRegisters).Methods(http.MethodGet)
	s.router.HandleFunc(api+"/battery-test", s.handleBatteryTest).Methods(http.MethodPost)
	s.router.HandleFunc(api+"/delays/{name}", s.handleGetDelay).Methods(http.MethodGet)
	s.router.HandleFunc(api+"/delays/{name}", s.handleSetDelay).Methods(http.MethodPut)
	s.router.HandleFunc(api+"/events", s.handleEvents).Methods(http.MethodGet)

	if s.opts.Metrics != nil {
		s.router.Handle("/metrics", s.opts.Metrics)
	}
	if s.opts.MCP != nil {
		s.router.PathPrefix("/mcp").Handler(s.opts.MCP)
	}
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		s.logger.Info().Str("listen", s.opts.Listen).Msg("starting HTTP API server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("stopping HTTP API server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
	}
	return nil
}

// ---- handlers ----

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	link := s.store.Link()
	_, _, fetched := s.dev.Device()

	resp := map[string]any{
		"health":           status.HealthName(link.Health),
		"link":             link,
		"uptime":           time.Since(s.startTime).String(),
		"device_info_read": fetched,
	}
	if snap := s.store.Snapshot(); snap != nil {
		resp["last_success"] = snap.At
	}
	s.writeJSON(w, resp, http.StatusOK)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()
	if snap == nil {
		s.writeError(w, "no successful poll yet", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, map[string]any{
		"at":     snap.At,
		"fields": snap.Fields(),
	}, http.StatusOK)
}

func (s *Server) handleDevice(w http.ResponseWriter, _ *http.Request) {
	id, rating, fetched := s.dev.Device()
	s.writeJSON(w, map[string]any{
		"identity": id,
		"rating":   rating,
		"fetched":  fetched,
	}, http.StatusOK)
}

func (s *Server) handleReadRegisters(w http.ResponseWriter, r *http.Request) {
	address, err := strconv.ParseUint(mux.Vars(r)["address"], 0, 16)
	if err != nil {
		s.writeError(w, "invalid address", http.StatusBadRequest)
		return
	}
	count := uint64(1)
	if q := r.URL.Query().Get("count"); q != "" {
		count, err = strconv.ParseUint(q, 10, 16)
		if err != nil {
			s.writeError(w, "invalid count", http.StatusBadRequest)
			return
		}
	}

	regs, err := s.dev.ReadRegisters(r.Context(), uint16(address), uint16(count))
	if err != nil {
		s.writeDeviceError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{
		"address":   address,
		"count":     len(regs),
		"registers": regs,
	}, http.StatusOK)
}

type batteryTestRequest struct {
	Action string `json:"action"`
}

func (s *Server) handleBatteryTest(w http.ResponseWriter, r *http.Request) {
	var req batteryTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	var err error
	switch req.Action {
	case "start":
		err = s.ctl.StartBatteryTest(r.Context())
	case "cancel":
		err = s.ctl.CancelBatteryTest(r.Context())
	default:
		s.writeError(w, `action must be "start" or "cancel"`, http.StatusBadRequest)
		return
	}
	if err != nil {
		s.writeDeviceError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"action": req.Action, "ok": true}, http.StatusOK)
}

func (s *Server) handleGetDelay(w http.ResponseWriter, r *http.Request) {
	d, ok := control.DelayByKey(mux.Vars(r)["name"])
	if !ok {
		s.writeError(w, "unknown delay", http.StatusNotFound)
		return
	}

	v, cached := s.ctl.Delay(d)
	if !cached || r.URL.Query().Get("refresh") == "true" {
		var err error
		if v, err = s.ctl.ReadDelay(r.Context(), d); err != nil {
			s.writeDeviceError(w, err)
			return
		}
	}
	s.writeJSON(w, map[string]any{"name": d.Key, "seconds": v}, http.StatusOK)
}

type setDelayRequest struct {
	Seconds *int `json:"seconds"`
}

func (s *Server) handleSetDelay(w http.ResponseWriter, r *http.Request) {
	d, ok := control.DelayByKey(mux.Vars(r)["name"])
	if !ok {
		s.writeError(w, "unknown delay", http.StatusNotFound)
		return
	}

	var req setDelayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Seconds == nil {
		s.writeError(w, `body must be {"seconds": N}`, http.StatusBadRequest)
		return
	}

	if err := s.ctl.SetDelay(r.Context(), d, *req.Seconds); err != nil {
		s.writeDeviceError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"name": d.Key, "seconds": *req.Seconds}, http.StatusOK)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.opts.Events == nil {
		s.writeError(w, "event log disabled", http.StatusNotFound)
		return
	}
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 || n > 1000 {
			s.writeError(w, "limit must be 1..1000", http.StatusBadRequest)
			return
		}
		limit = n
	}

	events, err := s.opts.Events.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("event query failed")
		s.writeError(w, "event query failed", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []eventlog.Event{}
	}
	s.writeJSON(w, map[string]any{"events": events, "count": len(events)}, http.StatusOK)
}

// ---- helpers ----

// writeDeviceError maps command and register errors onto HTTP statuses.
func (s *Server) writeDeviceError(w http.ResponseWriter, err error) {
	var (
		pe *poller.ProtocolError
		ce *poller.ConnectionError
	)
	switch {
	case errors.Is(err, poller.ErrRange), errors.Is(err, control.ErrDelayRange):
		s.writeError(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &pe):
		s.writeError(w, err.Error(), http.StatusBadGateway)
	case errors.As(err, &ce), errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, err.Error(), http.StatusGatewayTimeout)
	default:
		s.writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, code int) {
	s.writeJSON(w, map[string]string{"error": message}, code)
}
