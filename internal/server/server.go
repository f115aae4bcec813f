// Package server exposes the diagnosis, chat, health and export API over HTTP
// and serves the browser front-end.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"

	"braingemma/internal/agent"
	"braingemma/internal/config"
	"braingemma/internal/diagnosis"
	"braingemma/internal/logging"
	"braingemma/internal/perception"
	"braingemma/internal/upload"
)

//go:embed static/index.html
var staticFS embed.FS

// runtimeState is everything derived from one config generation. It is swapped
// atomically on reload so in-flight requests keep a consistent view.
type runtimeState struct {
	cfg       *config.Config
	diagnoser diagnosis.Diagnoser
	chat      *agent.Agent
	chatErr   error
	store     *upload.Store
}

// Server is the BrainGemma HTTP API.
type Server struct {
	deps    diagnosis.Deps
	traces  *perception.MemoryTraceStore
	current atomic.Pointer[runtimeState]
	handler http.Handler
}

// New builds a server for cfg. deps overrides collaborators in tests.
func New(cfg *config.Config, deps diagnosis.Deps) (*Server, error) {
	traces := perception.NewMemoryTraceStore(100)
	if deps.Traces == nil {
		deps.Traces = traces
	}
	s := &Server{deps: deps, traces: traces}
	if err := s.Reload(cfg); err != nil {
		return nil, err
	}
	s.handler = s.routes()
	return s, nil
}

// Reload rebuilds the diagnoser and chat agent from cfg and swaps them in.
// The listener address and timeouts are not affected.
func (s *Server) Reload(cfg *config.Config) error {
	d, err := diagnosis.New(cfg, s.deps)
	if err != nil {
		return fmt.Errorf("failed to build diagnoser: %w", err)
	}
	rt := &runtimeState{
		cfg:       cfg,
		diagnoser: d,
		store:     upload.NewStore(cfg.Upload.Dir, diagnosis.PolicyFor(cfg)),
	}
	if p, ok := d.(*diagnosis.Pipeline); ok {
		rt.chat = p.Agent()
	} else {
		rt.chat, rt.chatErr = diagnosis.NewAgent(cfg, s.deps)
	}
	if rt.chatErr != nil {
		logging.BootWarn("chat disabled: %v", rt.chatErr)
	}
	s.current.Store(rt)
	logging.Boot("diagnosis mode: %s", d.Mode())
	return nil
}

func (s *Server) rt() *runtimeState {
	return s.current.Load()
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/diagnose", s.handleDiagnose)
	mux.HandleFunc("POST /api/v1/chat", s.handleChat)
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/report/export", s.handleExport)
	mux.HandleFunc("GET /api/v1/traces", s.handleTraces)
	mux.HandleFunc("GET /{$}", s.handleIndex)

	return s.recoverer(s.requestID(s.accessLog(s.cors(mux))))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	cfg := s.rt().cfg
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	cfg := s.rt().cfg
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Boot("%s listening on http://%s (env=%s)", cfg.Name, ln.Addr(), cfg.Env)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
	defer cancel()
	logging.Boot("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
		<-errCh
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh
	return nil
}
