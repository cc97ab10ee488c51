package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/graylogic-ha/internal/device"
	"github.com/nerrad567/graylogic-ha/internal/infrastructure/config"
	"github.com/nerrad567/graylogic-ha/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// EntitySource is the view of the device the server reports on.
type EntitySource interface {
	Snapshot() []device.EntitySnapshot
	State() device.RunState
	Config() device.Config
}

// HistorySource serves stored entity states.
type HistorySource interface {
	History(ctx context.Context, entityID string, limit int) ([]device.HistoryEntry, error)
}

// HealthChecker is a dependency probed by GET /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the status server.
type Deps struct {
	Config   config.StatusConfig
	Logger   *logging.Logger
	Device   EntitySource
	Gatherer prometheus.Gatherer
	History  HistorySource            // optional
	Checks   map[string]HealthChecker // optional, keyed by name
	Version  string
}

// Server is the HTTP status server.
//
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.StatusConfig
	logger   *logging.Logger
	device   EntitySource
	gatherer prometheus.Gatherer
	history  HistorySource
	checks   map[string]HealthChecker
	version  string
	server   *http.Server
	listener net.Listener
}

// New creates a new status server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, device)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Device == nil {
		return nil, fmt.Errorf("device is required")
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		device:   deps.Device,
		gatherer: gatherer,
		history:  deps.History,
		checks:   deps.Checks,
		version:  deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// The listener is bound before Start returns so a port conflict is
// reported to the caller; requests are served in a background goroutine.
//
// Returns:
//   - error: If the listener cannot be bound
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding status server on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("status server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the status server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("status server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status server: %w", err)
	}
	return nil
}
