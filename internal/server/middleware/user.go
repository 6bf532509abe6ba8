package middleware

import (
	"context"
	"net/http"
	"strings"
)

// UserIDHeader names the caller whose quota a request is charged to.
const UserIDHeader = "X-User-ID"

type userIDContextKey string

const UserIDContextKey userIDContextKey = "user_id"

// UserID stores the X-User-ID header in the request context, falling back
// to fallback when the header is absent.
func UserID(fallback string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if userID == "" {
				userID = fallback
			}
			ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID returns the user ID stored by UserID, or "".
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDContextKey).(string); ok {
		return userID
	}
	return ""
}
