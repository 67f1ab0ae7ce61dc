package jobcache

import "github.com/voicescribe/backend/libs/errors"

var (
	// ErrNoArtifact is returned by Submit when the request carries no audio.
	ErrNoArtifact = errors.New("jobcache: no artifact provided")
	// ErrPayloadTooLarge is returned by Submit before any storage or job
	// service call is made for an oversized artifact.
	ErrPayloadTooLarge = errors.New("jobcache: artifact exceeds maximum size")
	// ErrTranscriptionFailed is returned when the external job finished in a
	// failed state.
	ErrTranscriptionFailed = errors.New("jobcache: transcription failed")
	// ErrTranscriptionTimedOut is returned when the external job did not
	// finish within the polling window. The job itself is left running.
	ErrTranscriptionTimedOut = errors.New("jobcache: transcription timed out")
	// ErrNotAuthorized is returned by Delete when the caller does not own a
	// record with the given fingerprint.
	ErrNotAuthorized = errors.New("jobcache: not authorized")
)
