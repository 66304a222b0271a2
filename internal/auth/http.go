// ABOUTME: Dual-mode bearer token resolution from HTTP requests
// ABOUTME: Authorization header takes precedence over the auth_token cookie; failures degrade to unauthenticated

package auth

import (
	"log/slog"
	"net/http"
	"strings"
)

// TokenCookieName is the cookie carrying the same signed token format as the
// Authorization header.
const TokenCookieName = "auth_token"

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// Resolver resolves an optional identity from incoming HTTP requests.
// It never fails a request: any validation problem yields nil (unauthenticated)
// and authorization is enforced downstream per endpoint.
type Resolver struct {
	verifier TokenVerifier
	logger   *slog.Logger
}

// NewResolver creates a resolver backed by the given verifier.
func NewResolver(verifier TokenVerifier, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		verifier: verifier,
		logger:   logger.With("component", "auth"),
	}
}

// Resolve extracts and validates a token from the request.
// The Authorization header is tried first; the cookie is the fallback. A
// header token that fails verification (bad signature, expired, malformed)
// counts the same as a missing one, so a valid cookie still authenticates.
// Only when neither source yields a valid token does Resolve return nil.
func (r *Resolver) Resolve(req *http.Request) *Identity {
	if token, errMsg := extractBearerToken(req.Header.Get("Authorization")); errMsg == "" {
		id, err := r.verifier.Verify(token)
		if err == nil {
			return id
		}
		r.logger.Warn("header token verification failed", "error", err)
	}

	cookie, err := req.Cookie(TokenCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	id, err := r.verifier.Verify(cookie.Value)
	if err != nil {
		r.logger.Warn("cookie token verification failed", "error", err)
		return nil
	}
	return id
}

// OptionalAuthMiddleware attaches the resolved identity to the request context
// when a valid token is present, and passes the request through unchanged
// otherwise. Endpoints that require auth check the context themselves.
func OptionalAuthMiddleware(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			id := resolver.Resolve(req)
			if id == nil {
				next.ServeHTTP(w, req) // Continue as anonymous
				return
			}
			next.ServeHTTP(w, req.WithContext(WithIdentity(req.Context(), id)))
		})
	}
}
