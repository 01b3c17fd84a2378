package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/calendai/calendai/internal/calendar"
	"github.com/calendai/calendai/internal/google"
	"github.com/calendai/calendai/internal/instrumentation"
	"github.com/calendai/calendai/internal/logging"
	"github.com/calendai/calendai/internal/server"
	"github.com/calendai/calendai/internal/user"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func newServeCmd() *cobra.Command {
	var (
		debugMode          bool
		addr               string
		storeDir           string
		googleClientID     string
		googleClientSecret string
		googleRedirectURL  string
		openAIAPIKey       string
		apiTokens          []string
		metricsEnabled     bool
		metricsAddr        string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the calendar assistant HTTP API server",
		Long: `Start the HTTP API server that exposes calendar endpoints and the
LLM-backed chat assistant.

Google OAuth Configuration (required for token refresh):
  --google-client-id and --google-client-secret flags
  OR GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars

LLM Configuration:
  --openai-api-key flag OR OPENAI_API_KEY env var
  Used as the fallback key for users without their own.

User Storage:
  --store-dir persists users as JSON files on disk.
  Without it an in-memory store is used (development only).

API Authentication:
  --api-token token=userID maps a bearer token to a stored user.
  Repeat the flag for multiple tokens. Can also use CALENDAI_API_TOKENS
  env var (comma-separated token=userID pairs).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			metricsConfig := MetricsConfig{
				Enabled: metricsEnabled,
				Addr:    metricsAddr,
			}
			return runServe(debugMode, addr, storeDir, googleClientID, googleClientSecret,
				googleRedirectURL, openAIAPIKey, apiTokens, metricsConfig)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&addr, "addr", server.DefaultAddr, "HTTP server address")
	cmd.Flags().StringVar(&storeDir, "store-dir", "", "Directory for the on-disk user store. Empty means in-memory. Can also use CALENDAI_STORE_DIR env var.")
	cmd.Flags().StringVar(&googleClientID, "google-client-id", "", "Google OAuth Client ID for automatic token refresh. Can also use GOOGLE_CLIENT_ID env var.")
	cmd.Flags().StringVar(&googleClientSecret, "google-client-secret", "", "Google OAuth Client Secret for automatic token refresh. Can also use GOOGLE_CLIENT_SECRET env var.")
	cmd.Flags().StringVar(&googleRedirectURL, "google-redirect-url", "", "OAuth redirect URL used in reauthorization links. Can also use GOOGLE_REDIRECT_URL env var.")
	cmd.Flags().StringVar(&openAIAPIKey, "openai-api-key", "", "Fallback OpenAI API key for the chat assistant. Can also use OPENAI_API_KEY env var.")
	cmd.Flags().StringSliceVar(&apiTokens, "api-token", nil, "Bearer token to user ID mapping (token=userID). Repeatable.")

	// Metrics server flags
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(debugMode bool, addr, storeDir, googleClientID, googleClientSecret, googleRedirectURL, openAIAPIKey string, apiTokens []string, metricsConfig MetricsConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := logging.Setup(debugMode)

	// Load settings from environment if not set via flags
	if storeDir == "" {
		storeDir = os.Getenv("CALENDAI_STORE_DIR")
	}
	if openAIAPIKey == "" {
		openAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if len(apiTokens) == 0 {
		if raw := os.Getenv("CALENDAI_API_TOKENS"); raw != "" {
			apiTokens = strings.Split(raw, ",")
		}
	}
	if os.Getenv("METRICS_ENABLED") == "false" {
		metricsConfig.Enabled = false
	}
	if metricsConfig.Addr == "" || metricsConfig.Addr == server.DefaultMetricsAddr {
		if envAddr := os.Getenv("METRICS_ADDR"); envAddr != "" {
			metricsConfig.Addr = envAddr
		}
	}

	oauthConfig, err := googleConfigFromFlags(googleClientID, googleClientSecret, googleRedirectURL)
	if err != nil {
		return err
	}

	tokenMap, err := parseAPITokens(apiTokens)
	if err != nil {
		return err
	}

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("Error during instrumentation shutdown", logging.Err(err))
		}
	}()

	var metrics *instrumentation.Metrics
	if provider.Enabled() {
		metrics = provider.Metrics()
	}

	// Start metrics server if enabled
	var metricsServer *server.MetricsServer
	if metricsConfig.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsConfig.Addr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", logging.Err(err))
			}
		}()
	}
	defer func() {
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error during metrics server shutdown", logging.Err(err))
			}
		}
	}()

	store, err := buildUserStore(storeDir)
	if err != nil {
		return err
	}

	var tokenManagerOpts []google.TokenManagerOption
	if metrics != nil {
		tokenManagerOpts = append(tokenManagerOpts, google.WithMetrics(metrics))
	}
	tokenManager := google.NewTokenManager(oauthConfig, store, logger, tokenManagerOpts...)
	calendarClient := calendar.NewClient(tokenManager, logger)
	calendarService := calendar.NewService(calendarClient, logger, metrics)

	auth := server.NewTokenAuthenticator(store)
	for token, userID := range tokenMap {
		auth.Register(token, userID)
	}

	srv := server.New(server.Config{
		Addr:         addr,
		OAuth:        oauthConfig,
		OpenAIAPIKey: openAIAPIKey,
	}, auth, store, calendarService, logger, metrics)

	return srv.Start(shutdownCtx)
}

// googleConfigFromFlags builds the OAuth config, falling back to
// environment variables for anything not set via flags.
func googleConfigFromFlags(clientID, clientSecret, redirectURL string) (google.Config, error) {
	if clientID == "" {
		clientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}
	if redirectURL == "" {
		redirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	}
	if clientID == "" || clientSecret == "" {
		return google.Config{}, fmt.Errorf("Google OAuth credentials are required: set --google-client-id and --google-client-secret or the GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars")
	}

	return google.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
	}, nil
}

// buildUserStore returns the on-disk store when a directory is configured,
// otherwise an in-memory store.
func buildUserStore(storeDir string) (user.Store, error) {
	if storeDir == "" {
		return user.NewMemoryStore(), nil
	}
	store, err := user.NewFileStore(storeDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create user store in %s: %w", storeDir, err)
	}
	return store, nil
}

// parseAPITokens parses token=userID pairs, trimming whitespace and
// skipping empty entries.
func parseAPITokens(pairs []string) (map[string]string, error) {
	tokens := make(map[string]string)
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, userID, ok := strings.Cut(pair, "=")
		token = strings.TrimSpace(token)
		userID = strings.TrimSpace(userID)
		if !ok || token == "" || userID == "" {
			return nil, fmt.Errorf("invalid api token mapping %q, expected token=userID", pair)
		}
		tokens[token] = userID
	}
	return tokens, nil
}
