package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"postpilot/internal/push"
	"postpilot/internal/sched"
	"postpilot/pkg/logx"
)

// Config controls the API/stream server.
type Config struct {
	Addr        string
	ReadTimeout time.Duration
	// WriteTimeout should stay 0 (disabled) unless notification streams are
	// off; a non-zero value kills long-lived stream responses.
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:8090"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	return c
}

// Server is the thin transport over the scheduler and the push registry.
type Server struct {
	cfg   Config
	log   logx.Logger
	sched *sched.Service
	reg   *push.Registry

	srv *http.Server
	ln  net.Listener
}

func NewServer(cfg Config, schedSvc *sched.Service, reg *push.Registry, log logx.Logger) *Server {
	s := &Server{cfg: cfg.withDefaults(), log: log, sched: schedSvc, reg: reg}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/publications/schedule", s.handleSchedule)
	mux.HandleFunc("POST /v1/publications/cancel", s.handleCancel)
	mux.HandleFunc("GET /v1/notifications/stream", s.handleStream)
	mux.HandleFunc("POST /v1/notifications/disconnect", s.handleDisconnect)
	mux.HandleFunc("GET /v1/notifications/status", s.handleStatus)

	s.srv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      mux,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	return s
}

func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", logx.String("addr", s.cfg.Addr), logx.Err(err))
		}
	}()
	s.log.Info("http server listening", logx.String("addr", ln.Addr().String()))
	return nil
}

func (s *Server) Stop(ctx context.Context) {
	if s.srv == nil {
		return
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		_ = s.srv.Close()
	}
}

// Addr reports the bound address (useful with ":0" in tests).
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.cfg.Addr
	}
	return s.ln.Addr().String()
}

// ---- helpers ----

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func userIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	return id, err == nil && id > 0
}
