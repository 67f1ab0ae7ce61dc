package dal

import (
	"context"
	"testing"
	"time"

	"github.com/voicescribe/backend/test"
)

func testRecord(owner, fp string, createdAt time.Time) *Record {
	return &Record{
		OwnerID:            owner,
		ContentFingerprint: fp,
		SourceName:         "interview.wav",
		Transcript:         "hello",
		Summary:            "Summary: hi",
		CreatedAt:          createdAt,
	}
}

func TestMemoryDAL(t *testing.T) {
	ctx := context.Background()
	d := NewMemory()

	if _, err := d.Get(ctx, "o1", "fp1"); err != ErrNotFound {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	now := time.Now()
	test.OK(t, d.Put(ctx, testRecord("o1", "fp1", now)))
	if err := d.Put(ctx, testRecord("o1", "fp1", now)); err != ErrAlreadyExists {
		t.Fatalf("Expected ErrAlreadyExists, got %v", err)
	}
	// Same fingerprint under a different owner is an independent record
	test.OK(t, d.Put(ctx, testRecord("o2", "fp1", now)))

	r, err := d.Get(ctx, "o1", "fp1")
	test.OK(t, err)
	test.Equals(t, "fp1", r.ContentFingerprint)

	test.OK(t, d.Put(ctx, testRecord("o1", "fp2", now.Add(time.Minute))))
	test.OK(t, d.Put(ctx, testRecord("o1", "fp3", now.Add(time.Second))))

	records, err := d.List(ctx, "o1")
	test.OK(t, err)
	test.Equals(t, 3, len(records))
	test.Equals(t, "fp2", records[0].ContentFingerprint)
	test.Equals(t, "fp3", records[1].ContentFingerprint)
	test.Equals(t, "fp1", records[2].ContentFingerprint)

	test.OK(t, d.Delete(ctx, "o1", "fp1"))
	if _, err := d.Get(ctx, "o1", "fp1"); err != ErrNotFound {
		t.Fatalf("Expected ErrNotFound after delete, got %v", err)
	}
	// Other owner's record is untouched
	_, err = d.Get(ctx, "o2", "fp1")
	test.OK(t, err)
}
