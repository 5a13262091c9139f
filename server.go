package aurora

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	defaultRequestTimeout = 30 * time.Second
	defaultIdleTimeout    = 5 * time.Minute
	defaultReapInterval   = 60 * time.Second
)

// ServerOption represents the options for the server.
type ServerOption func(*Server)

// Server ties the tool registry, dispatcher, and session manager together and
// owns the background session reaper. Transport adapters are constructed
// around a Server and feed it canonical requests.
//
// Instances should be created with NewServer, started with Start once all
// tools are registered, and stopped with Shutdown.
type Server struct {
	info     Info
	registry *ToolRegistry

	dispatcher *Dispatcher
	sessions   *SessionManager
	logger     *slog.Logger

	requestTimeout time.Duration
	idleTimeout    time.Duration
	reapInterval   time.Duration

	started  atomic.Bool
	draining atomic.Bool

	inflight *sync.WaitGroup

	done         chan struct{}
	reaperClosed chan struct{}
}

// NewServer creates a server over the given registry. Options not supplied
// fall back to defaults: 30s request timeout, 5m idle-session timeout, 60s
// reap cadence, and the process-default logger.
func NewServer(info Info, registry *ToolRegistry, options ...ServerOption) *Server {
	s := &Server{
		info:         info,
		registry:     registry,
		logger:       slog.Default(),
		inflight:     &sync.WaitGroup{},
		done:         make(chan struct{}),
		reaperClosed: make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.requestTimeout <= 0 {
		s.requestTimeout = defaultRequestTimeout
	}
	if s.idleTimeout <= 0 {
		s.idleTimeout = defaultIdleTimeout
	}
	if s.reapInterval <= 0 {
		s.reapInterval = defaultReapInterval
	}

	s.sessions = NewSessionManager(s.logger)
	s.dispatcher = NewDispatcher(s.registry, s.requestTimeout, s.logger)

	return s
}

// WithLogger sets the logger for the server and everything it constructs.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger.With(slog.String("package", "aurora"))
	}
}

// WithRequestTimeout sets the hard wall-clock deadline applied to every tool
// call.
func WithRequestTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.requestTimeout = timeout
	}
}

// WithIdleTimeout sets how long a session may stay untouched before the
// reaper destroys it.
func WithIdleTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.idleTimeout = timeout
	}
}

// WithReapInterval sets the cadence of the background reap sweep.
func WithReapInterval(interval time.Duration) ServerOption {
	return func(s *Server) {
		s.reapInterval = interval
	}
}

// Start freezes the registry and launches the session reaper. Registration
// attempts after Start fail. Calling Start more than once is harmless.
func (s *Server) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}

	s.registry.Freeze()
	go s.reapLoop()

	s.logger.Info("server started",
		slog.String("name", s.info.Name),
		slog.String("version", s.info.Version),
		slog.Int("tools", s.registry.Len()))
}

// Dispatch runs one canonical request through the dispatcher, tracking it so
// graceful shutdown can wait for in-flight work.
func (s *Server) Dispatch(ctx context.Context, req Request) Response {
	s.inflight.Add(1)
	defer s.inflight.Done()
	return s.dispatcher.Dispatch(ctx, req)
}

// Sessions returns the server's session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Registry returns the server's tool registry.
func (s *Server) Registry() *ToolRegistry {
	return s.registry
}

// Info returns the server's identity.
func (s *Server) Info() Info {
	return s.info
}

// Shutdown gracefully stops the server: new sessions are refused, in-flight
// requests get until ctx's deadline to finish, then every remaining session
// is force-closed. It returns once the reaper has stopped. Repeated calls
// are no-ops.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.draining.CompareAndSwap(false, true) {
		return nil
	}
	close(s.done)

	s.logger.Info("server shutting down")

	waited := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		s.logger.Warn("shutdown grace period expired with requests in flight")
	}

	if n := s.sessions.DestroyAll(); n > 0 {
		s.logger.Info("closed remaining sessions", slog.Int("count", n))
	}

	if s.started.Load() {
		// The reaper exits almost immediately once done is closed, so check
		// it before racing against an already-expired grace context.
		select {
		case <-s.reaperClosed:
			return nil
		default:
		}
		select {
		case <-s.reaperClosed:
		case <-ctx.Done():
			return fmt.Errorf("failed to stop session reaper: %w", ctx.Err())
		}
	}
	return nil
}

func (s *Server) reapLoop() {
	defer close(s.reaperClosed)

	ticker := time.NewTicker(s.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if n := s.sessions.Reap(s.idleTimeout); n > 0 {
				s.logger.Info("reap sweep finished", slog.Int("reaped", n))
			}
		}
	}
}
