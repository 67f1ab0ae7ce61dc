package jobcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/voicescribe/backend/cmd/svc/scribe/internal/dal"
	"github.com/voicescribe/backend/cmd/svc/scribe/internal/summary"
	"github.com/voicescribe/backend/cmd/svc/scribe/internal/transcription"
	"github.com/voicescribe/backend/libs/clock"
	"github.com/voicescribe/backend/libs/conc"
	"github.com/voicescribe/backend/libs/errors"
	"github.com/voicescribe/backend/libs/storage"
	"github.com/voicescribe/backend/test"
)

func init() {
	conc.Testing = true
}

type fakeJob struct {
	pendingGets int
}

// fakeProvider is an in-memory job registry. Jobs stay in progress for
// pendingGets status probes and then finish.
type fakeProvider struct {
	mu          sync.Mutex
	starts      int
	deletes     int
	jobs        map[string]*fakeJob
	transcript  string
	failReason  string
	neverFinish bool
	conflict    bool
	onGet       func()
}

func newFakeProvider(transcript string) *fakeProvider {
	return &fakeProvider{
		jobs:       make(map[string]*fakeJob),
		transcript: transcript,
	}
}

func (p *fakeProvider) seed(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs[name] = &fakeJob{pendingGets: 1}
}

func (p *fakeProvider) Start(ctx context.Context, name, mediaURI, outputName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts++
	if p.conflict {
		p.jobs[name] = &fakeJob{pendingGets: 1}
		return transcription.ErrJobAlreadyExists
	}
	if _, ok := p.jobs[name]; ok {
		return transcription.ErrJobAlreadyExists
	}
	p.jobs[name] = &fakeJob{pendingGets: 1}
	return nil
}

func (p *fakeProvider) Get(ctx context.Context, name string) (*transcription.Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.onGet != nil {
		p.onGet()
	}
	j := p.jobs[name]
	if j == nil {
		return nil, transcription.ErrJobNotFound
	}
	job := &transcription.Job{Name: name}
	switch {
	case p.neverFinish:
		job.Status = transcription.StatusInProgress
	case j.pendingGets > 0:
		j.pendingGets--
		job.Status = transcription.StatusInProgress
	case p.failReason != "":
		job.Status = transcription.StatusFailed
		job.FailureReason = p.failReason
	default:
		job.Status = transcription.StatusCompleted
		job.TranscriptURI = "s3://test/" + name + ".json"
	}
	return job, nil
}

func (p *fakeProvider) Transcript(ctx context.Context, job *transcription.Job) (string, error) {
	return p.transcript, nil
}

func (p *fakeProvider) Delete(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletes++
	delete(p.jobs, name)
	return nil
}

type fakeSummarizer struct {
	calls int
	err   error
	text  string
}

func (s *fakeSummarizer) Summarize(ctx context.Context, transcript, hint string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

type testEnv struct {
	cache      *Cache
	provider   *fakeProvider
	summarizer *fakeSummarizer
	dal        *dal.MemoryDAL
	store      storage.TestStore
	clk        *clock.Managed
}

func newTestEnv(t *testing.T) *testEnv {
	e := &testEnv{
		provider:   newFakeProvider("we should ship on tuesday"),
		summarizer: &fakeSummarizer{text: "Summary: ship tuesday"},
		dal:        dal.NewMemory(),
		store:      storage.NewTestStore(nil),
		clk:        clock.NewManaged(time.Unix(1700000000, 0)),
	}
	e.cache = New(&Config{
		DAL:          e.dal,
		Store:        e.store,
		Provider:     e.provider,
		Summarizer:   e.summarizer,
		Clock:        e.clk,
		PollInterval: time.Millisecond,
		PollTimeout:  time.Minute,
	})
	return e
}

func TestSubmitIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	artifact := []byte("audio-bytes")

	res, err := e.cache.Submit(ctx, "o1", artifact, SubmitOptions{
		SourceName:  "standup.wav",
		ContentType: "audio/wav",
		Hint:        "weekly standup",
	})
	test.OK(t, err)
	test.Equals(t, false, res.IsExisting)
	test.Equals(t, false, res.SummaryUnavailable)
	test.Equals(t, "o1", res.Record.OwnerID)
	test.Equals(t, Fingerprint(artifact), res.Record.ContentFingerprint)
	test.Equals(t, "standup.wav", res.Record.SourceName)
	test.Equals(t, "weekly standup", res.Record.Context)
	test.Equals(t, "we should ship on tuesday", res.Record.Transcript)
	test.Equals(t, "Summary: ship tuesday", res.Record.Summary)
	test.Equals(t, 1, e.provider.starts)
	test.Equals(t, 1, e.summarizer.calls)
	obj := e.store.Object(e.store.IDFromName(artifactName("o1", res.Record.ContentFingerprint)))
	test.Assert(t, obj != nil, "expected uploaded artifact in storage")
	test.Equals(t, "audio/wav", obj.Headers.Get("Content-Type"))

	// Resubmitting the same bytes is served from the record store without
	// touching the job service or the summarizer.
	res2, err := e.cache.Submit(ctx, "o1", artifact, SubmitOptions{SourceName: "renamed.wav"})
	test.OK(t, err)
	test.Equals(t, true, res2.IsExisting)
	test.Equals(t, res.Record.ContentFingerprint, res2.Record.ContentFingerprint)
	test.Equals(t, "standup.wav", res2.Record.SourceName)
	test.Equals(t, 1, e.provider.starts)
	test.Equals(t, 1, e.summarizer.calls)
	test.Equals(t, 1, e.store.PutCount())
}

func TestSubmitIndependentPerOwner(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	artifact := []byte("shared-audio")

	_, err := e.cache.Submit(ctx, "o1", artifact, SubmitOptions{})
	test.OK(t, err)
	res, err := e.cache.Submit(ctx, "o2", artifact, SubmitOptions{})
	test.OK(t, err)
	test.Equals(t, false, res.IsExisting)
	test.Equals(t, 2, e.provider.starts)
}

func TestSubmitAttachesToRunningJob(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	artifact := []byte("audio-bytes")
	e.provider.seed(jobName("o1", Fingerprint(artifact)))

	res, err := e.cache.Submit(ctx, "o1", artifact, SubmitOptions{})
	test.OK(t, err)
	test.Equals(t, false, res.IsExisting)
	test.Equals(t, "we should ship on tuesday", res.Record.Transcript)
	// Attached to the in-flight job: nothing started, nothing uploaded.
	test.Equals(t, 0, e.provider.starts)
	test.Equals(t, 0, e.store.PutCount())
}

func TestSubmitStartConflictAttaches(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.provider.conflict = true

	res, err := e.cache.Submit(ctx, "o1", []byte("audio-bytes"), SubmitOptions{})
	test.OK(t, err)
	test.Equals(t, false, res.IsExisting)
	test.Equals(t, "we should ship on tuesday", res.Record.Transcript)
}

func TestSubmitRejectsBadArtifacts(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.cache.maxArtifactSize = 8

	_, err := e.cache.Submit(ctx, "o1", nil, SubmitOptions{})
	test.Equals(t, ErrNoArtifact, errors.Cause(err))
	_, err = e.cache.Submit(ctx, "o1", []byte("way too much audio"), SubmitOptions{})
	test.Equals(t, ErrPayloadTooLarge, errors.Cause(err))
	// Rejected input never reaches storage or the job service.
	test.Equals(t, 0, e.store.PutCount())
	test.Equals(t, 0, e.provider.starts)
}

func TestSubmitTranscriptionFailed(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.provider.failReason = "unsupported codec"
	artifact := []byte("audio-bytes")

	_, err := e.cache.Submit(ctx, "o1", artifact, SubmitOptions{})
	test.Equals(t, ErrTranscriptionFailed, errors.Cause(err))
	test.Equals(t, 0, e.summarizer.calls)
	if _, err := e.dal.Get(ctx, "o1", Fingerprint(artifact)); errors.Cause(err) != dal.ErrNotFound {
		t.Fatalf("Expected no record after failed job, got err %v", err)
	}
}

func TestSubmitTimesOut(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.provider.neverFinish = true
	e.provider.onGet = func() { e.clk.Advance(2 * time.Minute) }
	artifact := []byte("audio-bytes")

	_, err := e.cache.Submit(ctx, "o1", artifact, SubmitOptions{})
	test.Equals(t, ErrTranscriptionTimedOut, errors.Cause(err))
	if _, err := e.dal.Get(ctx, "o1", Fingerprint(artifact)); errors.Cause(err) != dal.ErrNotFound {
		t.Fatalf("Expected no record after timed out job, got err %v", err)
	}
}

func TestSubmitSummaryUnavailable(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.summarizer.err = errors.New("model overloaded")
	artifact := []byte("audio-bytes")

	res, err := e.cache.Submit(ctx, "o1", artifact, SubmitOptions{})
	test.OK(t, err)
	test.Equals(t, true, res.SummaryUnavailable)
	test.Equals(t, summary.Unavailable, res.Record.Summary)
	test.Equals(t, "we should ship on tuesday", res.Record.Transcript)
	// Not persisted so a retry can re-attempt summarization.
	if _, err := e.dal.Get(ctx, "o1", Fingerprint(artifact)); errors.Cause(err) != dal.ErrNotFound {
		t.Fatalf("Expected no record when summary unavailable, got err %v", err)
	}

	// The retry attaches to the finished job rather than starting another
	// and persists once the summarizer recovers.
	e.summarizer.err = nil
	res, err = e.cache.Submit(ctx, "o1", artifact, SubmitOptions{})
	test.OK(t, err)
	test.Equals(t, false, res.SummaryUnavailable)
	test.Equals(t, "Summary: ship tuesday", res.Record.Summary)
	test.Equals(t, 1, e.provider.starts)
	r, err := e.dal.Get(ctx, "o1", Fingerprint(artifact))
	test.OK(t, err)
	test.Equals(t, "Summary: ship tuesday", r.Summary)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	artifact := []byte("audio-bytes")

	res, err := e.cache.Submit(ctx, "o1", artifact, SubmitOptions{})
	test.OK(t, err)
	fingerprint := res.Record.ContentFingerprint

	// Another owner cannot delete the record.
	err = e.cache.Delete(ctx, "o2", fingerprint)
	test.Equals(t, ErrNotAuthorized, errors.Cause(err))

	test.OK(t, e.cache.Delete(ctx, "o1", fingerprint))
	records, err := e.cache.List(ctx, "o1")
	test.OK(t, err)
	test.Equals(t, 0, len(records))
	test.Equals(t, 1, e.provider.deletes)
	obj := e.store.Object(e.store.IDFromName(artifactName("o1", fingerprint)))
	test.Assert(t, obj == nil, "expected artifact removed from storage")

	// Deleting again reads as not owned.
	err = e.cache.Delete(ctx, "o1", fingerprint)
	test.Equals(t, ErrNotAuthorized, errors.Cause(err))
}

func TestList(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	_, err := e.cache.Submit(ctx, "o1", []byte("first"), SubmitOptions{SourceName: "a.wav"})
	test.OK(t, err)
	e.clk.Advance(time.Minute)
	_, err = e.cache.Submit(ctx, "o1", []byte("second"), SubmitOptions{SourceName: "b.wav"})
	test.OK(t, err)

	records, err := e.cache.List(ctx, "o1")
	test.OK(t, err)
	test.Equals(t, 2, len(records))
	test.Equals(t, "b.wav", records[0].SourceName)
	test.Equals(t, "a.wav", records[1].SourceName)

	records, err = e.cache.List(ctx, "o2")
	test.OK(t, err)
	test.Equals(t, 0, len(records))
}
