package handlers

import (
	"time"

	"github.com/voicescribe/backend/cmd/svc/scribe/internal/dal"
)

type transcriptionResponse struct {
	// Key is the content fingerprint identifying the record for the owner.
	Key           string    `json:"key"`
	SourceName    string    `json:"sourceName,omitempty"`
	Context       string    `json:"context,omitempty"`
	Transcription string    `json:"transcription"`
	Summary       string    `json:"summary"`
	CreatedAt     time.Time `json:"createdAt"`
}

type submitResponse struct {
	transcriptionResponse
	IsExisting bool `json:"isExisting"`
	// SummaryAvailable is false when transcription succeeded but the summary
	// could not be generated. The response then carries a placeholder summary
	// and the result was not stored.
	SummaryAvailable bool `json:"summaryAvailable"`
}

type listResponse struct {
	Transcriptions []*transcriptionResponse `json:"transcriptions"`
}

type deleteResponse struct {
	Success bool `json:"success"`
}

func transcriptionFromRecord(r *dal.Record) *transcriptionResponse {
	return &transcriptionResponse{
		Key:           r.ContentFingerprint,
		SourceName:    r.SourceName,
		Context:       r.Context,
		Transcription: r.Transcript,
		Summary:       r.Summary,
		CreatedAt:     r.CreatedAt,
	}
}
