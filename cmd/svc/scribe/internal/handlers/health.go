package handlers

import (
	"net/http"

	"github.com/voicescribe/backend/libs/httputil"
)

type healthHandler struct{}

// NewHealth returns the health check handler used by load balancers.
func NewHealth() http.Handler {
	return httputil.SupportedMethods(healthHandler{}, httputil.Get, httputil.Head)
}

func (healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if r.Method == httputil.Get {
		_, _ = w.Write([]byte("OK"))
	}
}
