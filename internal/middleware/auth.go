package middleware

import (
	"context"
	"net/http"
	"strings"

	"lumina-backend/internal/models"
	"lumina-backend/internal/services"
)

type contextKey string

const userKey contextKey = "user"

// AuthMiddleware validates the bearer token and resolves it to a full
// user before the handler runs. Every protected endpoint therefore sees
// a caller-resolved identity, never a raw token.
func AuthMiddleware(auth *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, "authentication required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondError(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			user, err := auth.ResolveUser(r.Context(), parts[1])
			if err != nil {
				respondError(w, "internal error", http.StatusInternalServerError)
				return
			}
			if user == nil {
				respondError(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser extracts the authenticated user from context
func GetUser(ctx context.Context) *models.User {
	user, ok := ctx.Value(userKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// WithUser returns a context carrying the authenticated user. Exposed
// for handler tests.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
