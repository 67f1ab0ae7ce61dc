package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/voicescribe/backend/cmd/svc/scribe/internal/auth"
	"github.com/voicescribe/backend/cmd/svc/scribe/internal/dal"
	"github.com/voicescribe/backend/cmd/svc/scribe/internal/jobcache"
	"github.com/voicescribe/backend/test"
)

type fakeService struct {
	submitRes *jobcache.Result
	submitErr error
	submits   []jobcache.SubmitOptions
	records   []*dal.Record
	deleteErr error
	deleted   []string
}

func (s *fakeService) Submit(ctx context.Context, ownerID string, artifact []byte, opts jobcache.SubmitOptions) (*jobcache.Result, error) {
	s.submits = append(s.submits, opts)
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return s.submitRes, nil
}

func (s *fakeService) List(ctx context.Context, ownerID string) ([]*dal.Record, error) {
	return s.records, nil
}

func (s *fakeService) Delete(ctx context.Context, ownerID, fingerprint string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, fingerprint)
	return nil
}

// ownedRequest attaches an authenticated owner the way the auth middleware
// does.
func ownedRequest(r *http.Request) *http.Request {
	return r.WithContext(auth.WithOwnerID(r.Context(), "owner-1"))
}

func multipartBody(t *testing.T, filename string, data []byte, hint string) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", filename)
	test.OK(t, err)
	_, err = fw.Write(data)
	test.OK(t, err)
	if hint != "" {
		test.OK(t, mw.WriteField("context", hint))
	}
	test.OK(t, mw.Close())
	return body, mw.FormDataContentType()
}

func testRecord() *dal.Record {
	return &dal.Record{
		OwnerID:            "owner-1",
		ContentFingerprint: "fp1",
		SourceName:         "standup.wav",
		Transcript:         "we should ship on tuesday",
		Summary:            "Summary: ship tuesday",
		CreatedAt:          time.Unix(1700000000, 0).UTC(),
	}
}

func TestTranscribeSubmit(t *testing.T) {
	svc := &fakeService{submitRes: &jobcache.Result{Record: testRecord()}}
	h := NewTranscribe(svc)

	body, contentType := multipartBody(t, "standup.wav", []byte("audio"), "weekly standup")
	r := ownedRequest(httptest.NewRequest("POST", "/transcribe", body))
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	test.HTTPResponseCode(t, http.StatusOK, w)

	var res submitResponse
	test.OK(t, json.Unmarshal(w.Body.Bytes(), &res))
	test.Equals(t, "fp1", res.Key)
	test.Equals(t, "we should ship on tuesday", res.Transcription)
	test.Equals(t, "Summary: ship tuesday", res.Summary)
	test.Equals(t, false, res.IsExisting)
	test.Equals(t, true, res.SummaryAvailable)
	test.Equals(t, 1, len(svc.submits))
	test.Equals(t, "standup.wav", svc.submits[0].SourceName)
	test.Equals(t, "weekly standup", svc.submits[0].Hint)
}

func TestTranscribeSubmitMissingFile(t *testing.T) {
	svc := &fakeService{}
	h := NewTranscribe(svc)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	test.OK(t, mw.WriteField("context", "no file here"))
	test.OK(t, mw.Close())
	r := ownedRequest(httptest.NewRequest("POST", "/transcribe", body))
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	test.HTTPResponseCode(t, http.StatusBadRequest, w)
	test.Equals(t, 0, len(svc.submits))
}

func TestTranscribeSubmitErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{jobcache.ErrNoArtifact, http.StatusBadRequest},
		{jobcache.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{jobcache.ErrTranscriptionFailed, http.StatusBadGateway},
		{jobcache.ErrTranscriptionTimedOut, http.StatusGatewayTimeout},
	}
	for _, c := range cases {
		h := NewTranscribe(&fakeService{submitErr: c.err})
		body, contentType := multipartBody(t, "a.wav", []byte("audio"), "")
		r := ownedRequest(httptest.NewRequest("POST", "/transcribe", body))
		r.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		test.HTTPResponseCode(t, c.code, w)
	}
}

func TestTranscribeUnauthenticated(t *testing.T) {
	h := NewTranscribe(&fakeService{})
	r := httptest.NewRequest("GET", "/transcribe", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	test.HTTPResponseCode(t, http.StatusUnauthorized, w)
}

func TestTranscribeList(t *testing.T) {
	svc := &fakeService{records: []*dal.Record{testRecord()}}
	h := NewTranscribe(svc)

	r := ownedRequest(httptest.NewRequest("GET", "/transcribe", nil))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	test.HTTPResponseCode(t, http.StatusOK, w)

	var res listResponse
	test.OK(t, json.Unmarshal(w.Body.Bytes(), &res))
	test.Equals(t, 1, len(res.Transcriptions))
	test.Equals(t, "fp1", res.Transcriptions[0].Key)
	test.Equals(t, "standup.wav", res.Transcriptions[0].SourceName)
}

func TestTranscribeDelete(t *testing.T) {
	svc := &fakeService{}
	h := NewTranscribe(svc)

	r := ownedRequest(httptest.NewRequest("DELETE", "/transcribe?key=fp1", nil))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	test.HTTPResponseCode(t, http.StatusOK, w)
	test.Equals(t, []string{"fp1"}, svc.deleted)

	var res deleteResponse
	test.OK(t, json.Unmarshal(w.Body.Bytes(), &res))
	test.Equals(t, true, res.Success)

	// Missing key
	r = ownedRequest(httptest.NewRequest("DELETE", "/transcribe", nil))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	test.HTTPResponseCode(t, http.StatusBadRequest, w)

	// Not the caller's record
	h = NewTranscribe(&fakeService{deleteErr: jobcache.ErrNotAuthorized})
	r = ownedRequest(httptest.NewRequest("DELETE", "/transcribe?key=fp1", nil))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	test.HTTPResponseCode(t, http.StatusUnauthorized, w)
}

func TestHealth(t *testing.T) {
	h := NewHealth()
	r := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	test.HTTPResponseCode(t, http.StatusOK, w)
	test.Equals(t, "OK", w.Body.String())
}
