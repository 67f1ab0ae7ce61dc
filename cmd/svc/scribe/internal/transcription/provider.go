// Package transcription wraps the external speech-to-text job service.
package transcription

import (
	"context"

	"github.com/voicescribe/backend/libs/errors"
)

// Status of an external transcription job.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

var (
	// ErrJobNotFound is returned by Get when no job exists under the name.
	ErrJobNotFound = errors.New("transcription: job not found")
	// ErrJobAlreadyExists is returned by Start when a job with the same
	// name already exists. The registry enforces name uniqueness, so a
	// conflicting start means a concurrent caller won the race and the
	// existing job should be attached to instead.
	ErrJobAlreadyExists = errors.New("transcription: job already exists")
)

// Job is a snapshot of an external transcription job.
type Job struct {
	Name          string
	Status        Status
	FailureReason string
	// TranscriptURI locates the transcript document once the job has
	// completed.
	TranscriptURI string
}

// Provider starts, inspects and deletes named transcription jobs. Job names
// are the caller's concurrency-control handle: starting a taken name fails
// with ErrJobAlreadyExists rather than creating a second job.
type Provider interface {
	Start(ctx context.Context, name, mediaURI, outputName string) error
	Get(ctx context.Context, name string) (*Job, error)
	Transcript(ctx context.Context, job *Job) (string, error)
	Delete(ctx context.Context, name string) error
}
