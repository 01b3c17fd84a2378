package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/calendai/calendai/internal/calendar"
	"github.com/calendai/calendai/internal/google"
	"github.com/calendai/calendai/internal/logging"
	"github.com/calendai/calendai/internal/tools/calendar_tools"
)

func newMCPCmd() *cobra.Command {
	var (
		debugMode          bool
		storeDir           string
		googleClientID     string
		googleClientSecret string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server over stdio, exposing
calendar tools for AI assistants: listing events, creating events, and
finding free slots.

Tools operate on users from the store configured with --store-dir; each
tool call names its user via the "user" argument (default: "default").

Token Refresh:
  GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars (or flags).
  Without these, token refresh will fail when tokens expire (~1 hour).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(debugMode, storeDir, googleClientID, googleClientSecret)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&storeDir, "store-dir", "", "Directory for the on-disk user store. Empty means in-memory. Can also use CALENDAI_STORE_DIR env var.")
	cmd.Flags().StringVar(&googleClientID, "google-client-id", "", "Google OAuth Client ID for automatic token refresh. Can also use GOOGLE_CLIENT_ID env var.")
	cmd.Flags().StringVar(&googleClientSecret, "google-client-secret", "", "Google OAuth Client Secret for automatic token refresh. Can also use GOOGLE_CLIENT_SECRET env var.")

	return cmd
}

func runMCP(debugMode bool, storeDir, googleClientID, googleClientSecret string) error {
	// Logging goes to stderr; stdout carries the MCP protocol.
	logger := logging.Setup(debugMode)

	if storeDir == "" {
		storeDir = os.Getenv("CALENDAI_STORE_DIR")
	}

	oauthConfig, err := googleConfigFromFlags(googleClientID, googleClientSecret, "")
	if err != nil {
		return err
	}

	store, err := buildUserStore(storeDir)
	if err != nil {
		return err
	}

	tokenManager := google.NewTokenManager(oauthConfig, store, logger)
	calendarClient := calendar.NewClient(tokenManager, logger)
	calendarService := calendar.NewService(calendarClient, logger, nil)

	mcpSrv := mcpserver.NewMCPServer("calendai", version,
		mcpserver.WithToolCapabilities(true),
	)

	deps := calendar_tools.Deps{
		Store:   store,
		Service: calendarService,
	}
	if err := calendar_tools.RegisterCalendarTools(mcpSrv, deps); err != nil {
		return fmt.Errorf("failed to register calendar tools: %w", err)
	}

	if err := mcpserver.ServeStdio(mcpSrv); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}
