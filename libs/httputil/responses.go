package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/voicescribe/backend/libs/golog"
)

// JSONContentType is the value used for the Content-Type header on JSON
// responses.
var JSONContentType = "application/json"

// JSONResponse writes a response with the provided object encoded as JSON
// setting an appropriate Content-Type header.
func JSONResponse(w http.ResponseWriter, statusCode int, res interface{}) {
	w.Header().Set("Content-Type", JSONContentType)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		golog.LogDepthf(1, golog.ERR, "Failed to encode JSON response: %s", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// JSONError writes a JSON error body with the provided status code.
func JSONError(w http.ResponseWriter, statusCode int, msg string) {
	JSONResponse(w, statusCode, &errorResponse{Error: msg})
}
