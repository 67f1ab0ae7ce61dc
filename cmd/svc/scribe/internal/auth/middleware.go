package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/voicescribe/backend/libs/httputil"
)

type contextKey int

const ownerIDKey contextKey = 0

// OwnerID returns the authenticated owner ID attached to the context, or the
// empty string if the request was not authenticated.
func OwnerID(ctx context.Context) string {
	id, _ := ctx.Value(ownerIDKey).(string)
	return id
}

// WithOwnerID returns a context carrying an authenticated owner ID.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// Middleware rejects requests without a valid bearer token and attaches the
// owner ID to the request context for handlers downstream.
func Middleware(a Authenticator, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			httputil.JSONError(w, http.StatusUnauthorized, "A bearer token is required")
			return
		}
		ownerID, err := a.Authenticate(r.Context(), token)
		if err != nil {
			httputil.JSONError(w, http.StatusUnauthorized, "The provided token is not valid")
			return
		}
		h.ServeHTTP(w, r.WithContext(WithOwnerID(r.Context(), ownerID)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}
