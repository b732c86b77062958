// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/contacthub/contacthub/internal/api/auth"
	"github.com/contacthub/contacthub/internal/api/user"
	"github.com/contacthub/contacthub/internal/config"
	"github.com/contacthub/contacthub/internal/graph"
	"github.com/contacthub/contacthub/internal/identity"
	"github.com/contacthub/contacthub/internal/notify"
	"github.com/contacthub/contacthub/internal/relay"
)

var ErrMissingDep = errors.New("missing required dependency")

// Deps holds all server dependencies.
type Deps struct {
	Provider   *identity.LocalProvider
	Graph      *graph.ConnectionGraph
	Relay      *relay.MessageRelay
	Dispatcher *notify.Dispatcher

	// Transport is the active notification transport. Transports that
	// serve their own socket endpoint are mounted under /ws.
	Transport notify.Transport
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	logger     *slog.Logger
	deps       *Deps

	authHandler *auth.Handler
	userHandler *user.Handler
}

// New creates a new Server. Returns an error if required dependencies are
// missing.
func New(cfg *config.Config, logger *slog.Logger, deps *Deps) (*Server, error) {
	if err := validateDeps(deps); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:         cfg,
		logger:      logger,
		deps:        deps,
		authHandler: auth.NewHandler(deps.Provider, logger),
		userHandler: user.NewHandler(deps.Graph, deps.Relay, deps.Dispatcher, logger),
	}

	router := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start starts the HTTP server. It blocks until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.cfg.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the configured router. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func validateDeps(deps *Deps) error {
	if deps == nil {
		return errors.New("deps is nil")
	}
	if deps.Provider == nil {
		return fmt.Errorf("%w: Provider", ErrMissingDep)
	}
	if deps.Graph == nil {
		return fmt.Errorf("%w: Graph", ErrMissingDep)
	}
	if deps.Relay == nil {
		return fmt.Errorf("%w: Relay", ErrMissingDep)
	}
	if deps.Dispatcher == nil {
		return fmt.Errorf("%w: Dispatcher", ErrMissingDep)
	}
	return nil
}
