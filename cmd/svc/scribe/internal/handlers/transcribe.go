// Package handlers exposes the transcription cache over HTTP.
package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/voicescribe/backend/cmd/svc/scribe/internal/auth"
	"github.com/voicescribe/backend/cmd/svc/scribe/internal/dal"
	"github.com/voicescribe/backend/cmd/svc/scribe/internal/jobcache"
	"github.com/voicescribe/backend/libs/errors"
	"github.com/voicescribe/backend/libs/golog"
	"github.com/voicescribe/backend/libs/httputil"
)

// maxMultipartMemory bounds how much of the upload is buffered in memory
// before spilling to disk.
const maxMultipartMemory = 32 << 20

// service is the subset of the job cache used by the HTTP layer.
type service interface {
	Submit(ctx context.Context, ownerID string, artifact []byte, opts jobcache.SubmitOptions) (*jobcache.Result, error)
	List(ctx context.Context, ownerID string) ([]*dal.Record, error)
	Delete(ctx context.Context, ownerID, fingerprint string) error
}

type transcribeHandler struct {
	svc service
}

// NewTranscribe returns the handler for the /transcribe resource.
func NewTranscribe(svc service) http.Handler {
	return httputil.SupportedMethods(&transcribeHandler{svc: svc},
		httputil.Post, httputil.Get, httputil.Delete)
}

func (h *transcribeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	if ownerID == "" {
		httputil.JSONError(w, http.StatusUnauthorized, "A bearer token is required")
		return
	}
	switch r.Method {
	case httputil.Post:
		h.submit(w, r, ownerID)
	case httputil.Get:
		h.list(w, r, ownerID)
	case httputil.Delete:
		h.delete(w, r, ownerID)
	}
}

func (h *transcribeHandler) submit(w http.ResponseWriter, r *http.Request, ownerID string) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "Expected a multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "A file part is required")
		return
	}
	defer file.Close()
	artifact, err := io.ReadAll(file)
	if err != nil {
		golog.Errorf("Failed to read uploaded file: %s", err)
		httputil.JSONError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	res, err := h.svc.Submit(r.Context(), ownerID, artifact, jobcache.SubmitOptions{
		SourceName:  header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Hint:        r.FormValue("context"),
	})
	if err != nil {
		switch errors.Cause(err) {
		case jobcache.ErrNoArtifact:
			httputil.JSONError(w, http.StatusBadRequest, "The uploaded file is empty")
		case jobcache.ErrPayloadTooLarge:
			httputil.JSONError(w, http.StatusRequestEntityTooLarge, "The uploaded file is too large")
		case jobcache.ErrTranscriptionFailed:
			golog.Errorf("Transcription failed: %s", err)
			httputil.JSONError(w, http.StatusBadGateway, "Transcription failed")
		case jobcache.ErrTranscriptionTimedOut:
			httputil.JSONError(w, http.StatusGatewayTimeout, "Transcription did not finish in time. Retry to resume waiting.")
		default:
			golog.Errorf("Failed to submit transcription: %s", err)
			httputil.JSONError(w, http.StatusInternalServerError, "Internal error")
		}
		return
	}
	httputil.JSONResponse(w, http.StatusOK, &submitResponse{
		transcriptionResponse: *transcriptionFromRecord(res.Record),
		IsExisting:            res.IsExisting,
		SummaryAvailable:      !res.SummaryUnavailable,
	})
}

func (h *transcribeHandler) list(w http.ResponseWriter, r *http.Request, ownerID string) {
	records, err := h.svc.List(r.Context(), ownerID)
	if err != nil {
		golog.Errorf("Failed to list transcriptions: %s", err)
		httputil.JSONError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	res := &listResponse{Transcriptions: make([]*transcriptionResponse, 0, len(records))}
	for _, r := range records {
		res.Transcriptions = append(res.Transcriptions, transcriptionFromRecord(r))
	}
	httputil.JSONResponse(w, http.StatusOK, res)
}

func (h *transcribeHandler) delete(w http.ResponseWriter, r *http.Request, ownerID string) {
	key := r.FormValue("key")
	if key == "" {
		httputil.JSONError(w, http.StatusBadRequest, "A key is required")
		return
	}
	if err := h.svc.Delete(r.Context(), ownerID, key); err != nil {
		if errors.Cause(err) == jobcache.ErrNotAuthorized {
			httputil.JSONError(w, http.StatusUnauthorized, "No such transcription")
			return
		}
		golog.Errorf("Failed to delete transcription: %s", err)
		httputil.JSONError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	httputil.JSONResponse(w, http.StatusOK, &deleteResponse{Success: true})
}
