package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/calendai/calendai/internal/instrumentation"
	"github.com/calendai/calendai/internal/logging"
	"github.com/calendai/calendai/internal/user"
)

const (
	// expiryBuffer is how long before the recorded expiry a token is
	// already treated as expired. Refreshing early avoids racing a token
	// that dies mid-request.
	expiryBuffer = 5 * time.Minute

	refreshTimeout = 10 * time.Second
)

// TokenManager keeps per-user Google access tokens fresh. It is safe for
// concurrent use; each call operates on the user record it is given and
// persists the result through the store.
type TokenManager struct {
	config  Config
	store   user.Store
	client  *http.Client
	metrics *instrumentation.Metrics
	logger  *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// TokenManagerOption configures a TokenManager.
type TokenManagerOption func(*TokenManager)

// WithHTTPClient overrides the HTTP client used for token refresh requests.
func WithHTTPClient(c *http.Client) TokenManagerOption {
	return func(tm *TokenManager) {
		tm.client = c
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) TokenManagerOption {
	return func(tm *TokenManager) {
		tm.now = now
	}
}

// WithMetrics attaches refresh metrics.
func WithMetrics(m *instrumentation.Metrics) TokenManagerOption {
	return func(tm *TokenManager) {
		tm.metrics = m
	}
}

// NewTokenManager creates a token manager backed by the given store.
func NewTokenManager(config Config, store user.Store, logger *slog.Logger, opts ...TokenManagerOption) *TokenManager {
	tm := &TokenManager{
		config:  config,
		store:   store,
		client:  &http.Client{Timeout: refreshTimeout},
		metrics: &instrumentation.Metrics{},
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(tm)
	}
	if tm.logger == nil {
		tm.logger = slog.Default()
	}
	return tm
}

// NeedsRefresh reports whether the user's access token is missing, expired,
// or inside the expiry buffer.
func (tm *TokenManager) NeedsRefresh(u *user.User) bool {
	if u.AccessToken == "" || u.TokenExpiresAt == nil {
		return true
	}
	return !tm.now().Add(expiryBuffer).Before(*u.TokenExpiresAt)
}

// EnsureValidToken returns an access token that is valid for at least the
// expiry buffer, refreshing it against Google if needed. A successful
// refresh is persisted to the store before the token is returned, so a
// crash after this call never loses the rotated credential.
func (tm *TokenManager) EnsureValidToken(ctx context.Context, u *user.User) (string, error) {
	if !tm.NeedsRefresh(u) {
		tm.metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultCached)
		return u.AccessToken, nil
	}

	log := tm.logger.With(
		logging.Operation("token_refresh"),
		logging.UserHash(u.ID),
	)

	if u.RefreshToken == "" {
		log.Warn("Cannot refresh token: no refresh token on record")
		tm.metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultFailure)
		return "", &TokenRefreshError{Reason: "no refresh token available, user must reconnect calendar"}
	}

	refreshed, err := tm.refresh(ctx, u.RefreshToken)
	if err != nil {
		log.Error("Token refresh failed", logging.Err(err))
		tm.metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultFailure)
		return "", err
	}

	expiry := tm.now().Add(time.Duration(refreshed.ExpiresIn) * time.Second)
	u.AccessToken = refreshed.AccessToken
	u.TokenExpiresAt = &expiry
	// Google only returns a refresh token when it rotates one; keep the
	// existing credential otherwise.
	if refreshed.RefreshToken != "" {
		u.RefreshToken = refreshed.RefreshToken
	}

	if err := tm.store.Save(ctx, u); err != nil {
		log.Error("Failed to persist refreshed token", logging.Err(err))
		tm.metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultFailure)
		return "", fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	log.Info("Access token refreshed",
		slog.Time("expires_at", expiry),
		slog.Bool("refresh_token_rotated", refreshed.RefreshToken != ""),
	)
	tm.metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultSuccess)

	return u.AccessToken, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

func (tm *TokenManager) refresh(ctx context.Context, refreshToken string) (*tokenResponse, error) {
	form := url.Values{
		"client_id":     {tm.config.ClientID},
		"client_secret": {tm.config.ClientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.config.tokenURL(),
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &TokenRefreshError{Reason: "failed to build refresh request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tm.client.Do(req)
	if err != nil {
		return nil, &TokenRefreshError{Reason: "token endpoint unreachable", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &TokenRefreshError{Reason: "failed to read token response", StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &TokenRefreshError{
			Reason:     fmt.Sprintf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
			StatusCode: resp.StatusCode,
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &TokenRefreshError{Reason: "failed to decode token response", StatusCode: resp.StatusCode, Err: err}
	}
	if tr.AccessToken == "" {
		return nil, &TokenRefreshError{Reason: "token response missing access_token", StatusCode: resp.StatusCode}
	}

	return &tr, nil
}
