// Package dal persists completed transcription records keyed by owner and
// content fingerprint.
package dal

import (
	"context"
	"time"

	"github.com/voicescribe/backend/libs/errors"
)

var (
	// ErrNotFound is returned when no record exists for the key.
	ErrNotFound = errors.New("dal: record not found")
	// ErrAlreadyExists is returned by Put when a record already exists for
	// the key. Records are write-once.
	ErrAlreadyExists = errors.New("dal: record already exists")
)

// Record is the durably persisted, completed result of one transcription job
// plus its derived summary. Records are immutable once written.
type Record struct {
	OwnerID            string    `json:"ownerId"`
	ContentFingerprint string    `json:"contentFingerprint"`
	SourceName         string    `json:"sourceName"`
	Context            string    `json:"context,omitempty"`
	Transcript         string    `json:"transcript"`
	Summary            string    `json:"summary"`
	CreatedAt          time.Time `json:"createdAt"`
}

// DAL is the data access layer for records. Put never overwrites: the
// (owner, fingerprint) pair is unique. List returns the owner's records
// newest first and never consults anything but the store's secondary index.
type DAL interface {
	Get(ctx context.Context, ownerID, fingerprint string) (*Record, error)
	Put(ctx context.Context, r *Record) error
	List(ctx context.Context, ownerID string) ([]*Record, error)
	Delete(ctx context.Context, ownerID, fingerprint string) error
}
