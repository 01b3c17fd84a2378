package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/calendai/calendai/internal/user"
)

// ErrUnauthenticated is returned when a request carries no usable
// credentials.
var ErrUnauthenticated = fmt.Errorf("authentication required")

// Authenticator resolves the user behind an incoming request. Session and
// login management live outside this service; the server only needs a way
// to map request credentials to a user record.
type Authenticator interface {
	Authenticate(r *http.Request) (*user.User, error)
}

// TokenAuthenticator authenticates requests by bearer token against a
// static token-to-user mapping backed by the user store.
type TokenAuthenticator struct {
	store user.Store

	mu     sync.RWMutex
	tokens map[string]string // token -> user ID
}

// NewTokenAuthenticator creates an authenticator over the given store.
func NewTokenAuthenticator(store user.Store) *TokenAuthenticator {
	return &TokenAuthenticator{
		store:  store,
		tokens: make(map[string]string),
	}
}

// Register associates an API token with a user ID.
func (a *TokenAuthenticator) Register(token, userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens[token] = userID
}

// Authenticate resolves the request's bearer token to a user record.
func (a *TokenAuthenticator) Authenticate(r *http.Request) (*user.User, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, ErrUnauthenticated
	}

	a.mu.RLock()
	userID, ok := a.tokens[token]
	a.mu.RUnlock()
	if !ok {
		return nil, ErrUnauthenticated
	}

	u, err := a.store.Get(r.Context(), userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return u, nil
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return after
	}
	return r.Header.Get("X-API-Key")
}

type contextKey string

const userContextKey contextKey = "calendai.user"

// userFromContext retrieves the authenticated user placed there by the
// auth middleware.
func userFromContext(ctx context.Context) *user.User {
	u, _ := ctx.Value(userContextKey).(*user.User)
	return u
}
