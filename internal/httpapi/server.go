// Package httpapi exposes an orchestrator Service over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/R3E-Network/mode_orchestrator/internal/middleware"
	"github.com/R3E-Network/mode_orchestrator/internal/mode"
	"github.com/R3E-Network/mode_orchestrator/orchestrator"
	"github.com/R3E-Network/mode_orchestrator/pkg/logger"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 1000
)

// Config configures the HTTP layer.
type Config struct {
	RateLimitRPS   float64
	RateLimitBurst int
	// JWTSecret enables bearer authentication when set.
	JWTSecret string
}

// Server routes API requests to a Service.
type Server struct {
	svc      *orchestrator.Service
	log      *logger.Logger
	router   *mux.Router
	upgrader websocket.Upgrader
	limiter  *middleware.RateLimiter
}

// NewServer builds the router and its middleware chain.
func NewServer(svc *orchestrator.Service, cfg Config, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	s := &Server{
		svc: svc,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware(log))
	if cfg.JWTSecret != "" {
		r.Use(middleware.NewAuthMiddleware(cfg.JWTSecret, log.Named("auth"), []string{"/healthz", "/metrics"}).Handler)
	}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, burst, log.Named("ratelimit"))
		r.Use(s.limiter.Handler)
	}

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", svc.Metrics().Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/mode", s.getMode).Methods(http.MethodGet)
	v1.HandleFunc("/mode", s.switchMode).Methods(http.MethodPost)
	v1.HandleFunc("/mode/toggle", s.toggleMode).Methods(http.MethodPost)
	v1.HandleFunc("/transition", s.getTransition).Methods(http.MethodGet)
	v1.HandleFunc("/events", s.listEvents).Methods(http.MethodGet)
	v1.HandleFunc("/ws", s.watch).Methods(http.MethodGet)

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Limiter returns the rate limiter, or nil when rate limiting is off.
func (s *Server) Limiter() *middleware.RateLimiter {
	return s.limiter
}

// SwitchRequest is the body of POST /v1/mode and POST /v1/mode/toggle.
type SwitchRequest struct {
	Mode        string `json:"mode,omitempty"`
	AnimationMS *int64 `json:"animation_ms,omitempty"`
	RunCleanup  *bool  `json:"run_cleanup,omitempty"`
}

func (req SwitchRequest) options() orchestrator.Options {
	opts := orchestrator.Options{RunCleanup: req.RunCleanup}
	if req.AnimationMS != nil {
		opts = opts.WithAnimation(time.Duration(*req.AnimationMS) * time.Millisecond)
	}
	return opts
}

// TransitionResponse is the body of GET /v1/transition.
type TransitionResponse struct {
	State mode.TransitionState `json:"state"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getMode(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Facade().View())
}

func (s *Server) getTransition(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, TransitionResponse{State: s.svc.GetTransitionState()})
}

func (s *Server) switchMode(w http.ResponseWriter, r *http.Request) {
	var req SwitchRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	target, err := mode.ParseAppMode(req.Mode)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid_mode", err.Error())
		return
	}

	s.respondSwitch(w, s.svc.SwitchMode(r.Context(), target, req.options()))
}

func (s *Server) toggleMode(w http.ResponseWriter, r *http.Request) {
	var req SwitchRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	s.respondSwitch(w, s.svc.ToggleMode(r.Context(), req.options()))
}

func (s *Server) respondSwitch(w http.ResponseWriter, err error) {
	var terr *orchestrator.TransitionError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.svc.Facade().View())
	case errors.Is(err, orchestrator.ErrInvalidMode):
		middleware.WriteError(w, http.StatusBadRequest, "invalid_mode", err.Error())
	case errors.Is(err, orchestrator.ErrTransitionInProgress):
		middleware.WriteError(w, http.StatusConflict, "transition_in_progress", err.Error())
	case errors.Is(err, orchestrator.ErrClosed):
		middleware.WriteError(w, http.StatusServiceUnavailable, "closed", err.Error())
	case errors.As(err, &terr):
		middleware.WriteError(w, http.StatusInternalServerError, "transition_failed", terr.Error())
	default:
		middleware.WriteError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}
	writeJSON(w, http.StatusOK, s.svc.Journal().Recent(limit))
}

// decodeJSON decodes an optional JSON body; an empty body leaves dst as is.
func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
