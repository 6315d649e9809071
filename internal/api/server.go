package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/automation"
	"github.com/nerrad567/gray-logic-occupancy/internal/history"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/logging"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight requests.
const gracefulShutdownTimeout = 10 * time.Second

// ConnectionStatus reports whether an optional backend is reachable.
// *mqtt.Client satisfies it.
type ConnectionStatus interface {
	IsConnected() bool
}

// DBStatser exposes connection pool stats. *database.DB satisfies it.
type DBStatser interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Engine  *automation.Engine
	History history.Store    // optional
	MQTT    ConnectionStatus // optional
	DB      DBStatser        // optional
	Panel   http.Handler     // optional, serves the dashboard at /
	Version string
}

// Server is the HTTP API server.
//
// It is created with New, exposes its WebSocket hub through Hub (so the hub
// can be wired as an engine event sink before Start), and is started with
// Start.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	engine    *automation.Engine
	history   history.Store
	mqtt      ConnectionStatus
	db        DBStatser
	panel     http.Handler
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc
}

// New creates a server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		engine:    deps.Engine,
		history:   deps.History,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		panel:     deps.Panel,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.Engine, deps.WS, deps.Logger),
	}, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start launches the HTTP listener in a background goroutine. The hub is
// shut down when ctx is cancelled or Close is called.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close stops the hub and shuts the listener down, waiting up to 10
// seconds for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports an error until Start has been called.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
