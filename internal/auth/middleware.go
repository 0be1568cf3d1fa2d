package auth

import (
	"context"
	"net/http"

	"github.com/hapnesbitt/FroogleOne/internal/apperror"
	"github.com/hapnesbitt/FroogleOne/internal/logger"
)

// Context key type to avoid collisions
type contextKey string

// UserContextKey is the context key for the authenticated user.
const UserContextKey contextKey = "user"

// RequireAuth is middleware that requires a valid session.
func RequireAuth(sm *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := sm.GetSession(r)
			if err != nil || user == nil {
				apperror.WriteJSON(w, r, apperror.ErrUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			ctx = logger.WithUsername(ctx, user.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin is middleware that requires admin role.
// Must be used after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		if user == nil {
			apperror.WriteJSON(w, r, apperror.ErrUnauthorized)
			return
		}
		if !user.IsAdmin {
			apperror.WriteJSON(w, r, apperror.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserFromContext retrieves the user from the request context.
// Returns nil if no user is set.
func GetUserFromContext(ctx context.Context) *SessionClaims {
	user, _ := ctx.Value(UserContextKey).(*SessionClaims)
	return user
}
