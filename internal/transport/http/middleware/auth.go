package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"pollpick/internal/httputil"
	"pollpick/internal/model"
	"pollpick/internal/service"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// UserIDKey is the context key for the authenticated user's ID
	UserIDKey contextKey = "user_id"
)

// AuthMiddleware rejects requests without a valid access token.
// Checks Authorization header first (for mobile), then falls back to cookie (for web)
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractToken(r)
			if tokenString == "" {
				httputil.WriteUnauthorized(w, "Missing authentication token")
				return
			}

			userID, err := service.ParseAccessToken(tokenString, jwtSecret)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					httputil.WriteUnauthorizedWithCode(w, model.CodeTokenExpired, "Access token has expired")
					return
				}
				httputil.WriteUnauthorizedWithCode(w, model.CodeTokenInvalid, "Invalid authentication token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// OptionalAuthMiddleware sets the user ID when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenString := extractToken(r); tokenString != "" {
				if userID, err := service.ParseAccessToken(tokenString, jwtSecret); err == nil {
					r = r.WithContext(WithUserID(r.Context(), userID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// WithUserID stores the authenticated user ID in ctx.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserIDFromContext extracts the user ID from the request context
// Returns the user ID and true if found, or 0 and false if not found
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}
