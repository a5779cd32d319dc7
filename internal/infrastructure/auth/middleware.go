package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/honeynil/dreamnity-payments/internal/infrastructure/observability"
	"github.com/honeynil/dreamnity-payments/internal/models"
)

// SessionChecker resolves a bearer token to the logged-in user.
type SessionChecker interface {
	CheckToken(ctx context.Context, token string) (*models.User, error)
}

type contextKey string

const userIDKey contextKey = "user_id"

// UserIDFromContext returns the id stored by AuthMiddleware.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// AuthMiddleware admits requests carrying the bearer token of the live session.
func AuthMiddleware(sessions SessionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "authorization header missing", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}

			user, err := sessions.CheckToken(r.Context(), parts[1])
			if err != nil {
				observability.Logger(r.Context()).Warn("invalid or revoked token", "error", err)
				http.Error(w, "invalid or revoked token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, user.ID)
			ctx = observability.WithLogger(ctx, observability.Logger(ctx, "user_id", user.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
