package httputil

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey int

const requestIDKey contextKey = 0

// RequestID returns the ID attached to the request context by
// RequestIDHandler, or "" when absent.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// CtxWithRequestID attaches a request ID to the context.
func CtxWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

type requestIDHandler struct {
	h http.Handler
}

// RequestIDHandler attaches a unique ID to every request's context and echoes
// it in the S-Request-ID response header.
func RequestIDHandler(h http.Handler) http.Handler {
	return &requestIDHandler{h: h}
}

func (h *requestIDHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := uuid.New().String()
	w.Header().Set("S-Request-ID", id)
	h.h.ServeHTTP(w, r.WithContext(CtxWithRequestID(r.Context(), id)))
}
