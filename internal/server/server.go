package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/calendai/calendai/internal/assistant"
	"github.com/calendai/calendai/internal/calendar"
	"github.com/calendai/calendai/internal/google"
	"github.com/calendai/calendai/internal/instrumentation"
	"github.com/calendai/calendai/internal/user"
)

const (
	// DefaultAddr is the default bind address for the API server.
	DefaultAddr = ":8080"

	defaultReadHeaderTimeout = 10 * time.Second
	defaultWriteTimeout      = 90 * time.Second
	defaultIdleTimeout       = 60 * time.Second
)

// Config holds the API server configuration.
type Config struct {
	// Addr is the address to bind to, e.g. ":8080".
	Addr string

	// OAuth carries the Google OAuth application credentials, used to
	// build reauthorization URLs.
	OAuth google.Config

	// OpenAIAPIKey is the fallback LLM credential for users who have not
	// configured their own key.
	OpenAIAPIKey string
}

// Server is the calendar assistant HTTP API.
type Server struct {
	config   Config
	auth     Authenticator
	store    user.Store
	calendar *calendar.Service
	health   *HealthChecker
	logger   *slog.Logger
	metrics  *instrumentation.Metrics

	// llmForUser builds the LLM client for one request, honoring the
	// user's own API key and model. Swappable in tests.
	llmForUser func(u *user.User) assistant.ChatCompleter

	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLLMFactory overrides how per-user LLM clients are built.
func WithLLMFactory(factory func(u *user.User) assistant.ChatCompleter) Option {
	return func(s *Server) {
		s.llmForUser = factory
	}
}

// New creates the API server.
func New(config Config, auth Authenticator, store user.Store, svc *calendar.Service, logger *slog.Logger, metrics *instrumentation.Metrics, opts ...Option) *Server {
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}

	s := &Server{
		config:   config,
		auth:     auth,
		store:    store,
		calendar: svc,
		health:   NewHealthChecker(),
		logger:   logger,
		metrics:  metrics,
	}
	s.llmForUser = func(u *user.User) assistant.ChatCompleter {
		key := u.OpenAIAPIKey
		if key == "" {
			key = config.OpenAIAPIKey
		}
		return assistant.NewClient(key, logger)
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.health.RegisterHealthEndpoints(mux)

	api := http.NewServeMux()
	api.HandleFunc("GET /calendar/connect-status", s.handleConnectStatus)
	api.HandleFunc("GET /calendar/events", s.handleEventsForDate)
	api.HandleFunc("GET /calendar/events/range", s.handleEventsRange)
	api.HandleFunc("GET /calendar/slots", s.handleSlots)
	api.HandleFunc("POST /calendar/events", s.handleCreateEvent)
	api.HandleFunc("POST /calendar/chat", s.handleChat)
	api.HandleFunc("POST /calendar/intent", s.handleIntent)

	mux.Handle("/calendar/", s.withAuth(api))

	return s.withObservability(mux)
}

// Start runs the server until the context is canceled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting API server", slog.String("addr", s.config.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.health.SetShuttingDown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(shutdownCtx)
}
