package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hearth-home/hearth-core/internal/events"
	"github.com/hearth-home/hearth-core/internal/infrastructure/logging"
	"github.com/hearth-home/hearth-core/internal/items"
	"github.com/hearth-home/hearth-core/internal/rules"
	"github.com/hearth-home/hearth-core/internal/things"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Config holds the HTTP listener settings.
type Config struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
	TLS      TLSConfig     `yaml:"tls"`
}

// TimeoutConfig holds HTTP server timeouts in seconds.
type TimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// TLSConfig holds TLS listener settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// WebSocketConfig holds WebSocket connection settings.
type WebSocketConfig struct {
	PingInterval   int `yaml:"ping_interval"`    // seconds between protocol pings
	PongTimeout    int `yaml:"pong_timeout"`     // seconds to wait for a pong
	MaxMessageSize int `yaml:"max_message_size"` // bytes
}

// Check is a named health probe for a subsystem. Probes run with a short
// timeout on every /health request; a failing probe marks the response
// degraded but never makes it fail.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    Config
	WS        WebSocketConfig
	JWTSecret string // empty disables event stream authentication
	Logger    *logging.Logger
	Bus       *events.Bus
	Items     *items.Registry
	Things    *things.Registry
	Rules     *rules.Registry
	Checks    []Check
	Version   string
}

// Server is the operational HTTP server for Hearth Core.
//
// It manages the HTTP listener, routes, middleware, and the WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       Config
	wsCfg     WebSocketConfig
	jwtSecret string
	logger    *logging.Logger
	bus       *events.Bus
	items     *items.Registry
	things    *things.Registry
	rules     *rules.Registry
	checks    []Check
	version   string
	started   time.Time
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, event bus)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		jwtSecret: deps.JWTSecret,
		logger:    deps.Logger,
		bus:       deps.Bus,
		items:     deps.Items,
		things:    deps.Things,
		rules:     deps.Rules,
		checks:    deps.Checks,
		version:   deps.Version,
		started:   time.Now(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It creates the WebSocket hub, attaches it to the event bus, builds the
// router, and launches the HTTP listener in a background goroutine. The
// server is stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop the hub independently of the
	// parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	s.bus.Subscribe(s.hub)
	go s.hub.Run(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It detaches the hub from the event bus, then waits up to 10 seconds for
// in-flight requests to complete before forcefully closing remaining
// connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.hub != nil {
		s.bus.Unsubscribe(s.hub)
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

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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
