// Package middleware provides HTTP middleware for the ServiceHub API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/jkdigital/servicehub/internal/app/auth"
	"github.com/jkdigital/servicehub/internal/errors"
	"github.com/jkdigital/servicehub/internal/httputil"
	"github.com/jkdigital/servicehub/internal/logging"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AuthMiddleware provides JWT authentication.
type AuthMiddleware struct {
	verifier  TokenVerifier
	logger    *logging.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(verifier TokenVerifier, logger *logging.Logger, skipPaths []string) *AuthMiddleware {
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}

	return &AuthMiddleware{
		verifier:  verifier,
		logger:    logger,
		skipPaths: skip,
	}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, err := bearerToken(r)
		if err != nil {
			m.respondError(w, r, err)
			return
		}

		claims, err := m.verifier.Verify(tokenString)
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("Token validation failed")
			m.respondError(w, r, errors.InvalidToken(err))
			return
		}

		ctx := logging.WithUserID(r.Context(), claims.UserID)
		ctx = logging.WithRole(ctx, claims.Role)

		m.logger.WithContext(ctx).Debug("Authentication successful")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// websocket upgrades, so those requests may pass access_token instead.
func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token := r.URL.Query().Get("access_token"); token != "" && isUpgrade(r) {
			return token, nil
		}
		return "", errors.Unauthorized("Missing Authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.Unauthorized("Invalid Authorization header format")
	}
	return strings.TrimSpace(parts[1]), nil
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteServiceError(w, err)

	m.logger.LogSecurityEvent(r.Context(), "authentication_failed", map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"error":  err.Error(),
	})
}

// RequireRole rejects callers whose token role differs from role.
func RequireRole(role string, logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetUserID(r.Context()) == "" {
				httputil.Unauthorized(w, "")
				return
			}
			if GetUserRole(r.Context()) != role {
				logger.LogSecurityEvent(r.Context(), "role_denied", map[string]interface{}{
					"path":     r.URL.Path,
					"required": role,
				})
				httputil.WriteServiceError(w, errors.Forbidden("Access denied"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserID extracts user ID from context.
func GetUserID(ctx context.Context) string {
	return logging.GetUserID(ctx)
}

// GetUserRole extracts user role from context.
func GetUserRole(ctx context.Context) string {
	return logging.GetRole(ctx)
}

// CanAccessUser reports whether the caller may act on userID: admins may act
// on anyone, users only on themselves.
func CanAccessUser(r *http.Request, userID string) bool {
	if GetUserRole(r.Context()) == auth.RoleAdmin {
		return true
	}
	caller := GetUserID(r.Context())
	return caller != "" && caller == userID
}
