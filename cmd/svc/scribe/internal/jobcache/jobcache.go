// Package jobcache implements a content-addressed cache over an external
// transcription job service. Submitting the same audio twice for the same
// owner never starts a second job: completed work is served from the record
// store, and in-flight work is attached to by job name.
package jobcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/samuel/go-metrics/metrics"

	"github.com/voicescribe/backend/cmd/svc/scribe/internal/dal"
	"github.com/voicescribe/backend/cmd/svc/scribe/internal/summary"
	"github.com/voicescribe/backend/cmd/svc/scribe/internal/transcription"
	"github.com/voicescribe/backend/libs/clock"
	"github.com/voicescribe/backend/libs/conc"
	"github.com/voicescribe/backend/libs/errors"
	"github.com/voicescribe/backend/libs/golog"
	"github.com/voicescribe/backend/libs/storage"
)

const (
	defaultMaxArtifactSize = 512 << 20
	defaultPollInterval    = 5 * time.Second
	defaultPollTimeout     = 30 * time.Minute
)

// Fingerprint returns the content fingerprint of an artifact: the lowercase
// hex SHA-256 of its bytes.
func Fingerprint(artifact []byte) string {
	sum := sha256.Sum256(artifact)
	return hex.EncodeToString(sum[:])
}

// jobName derives the deterministic external job name for an owner and
// fingerprint. The owner ID is hashed rather than embedded because the job
// registry restricts the name charset, and names must not leak owner IDs to
// operators of the job service.
func jobName(ownerID, fingerprint string) string {
	sum := sha256.Sum256([]byte(ownerID))
	return fmt.Sprintf("scribe-%s-%s", hex.EncodeToString(sum[:4]), fingerprint)
}

func artifactName(ownerID, fingerprint string) string {
	return fmt.Sprintf("uploads/%s/%s", ownerID, fingerprint)
}

func transcriptName(ownerID, fingerprint string) string {
	return fmt.Sprintf("transcripts/%s/%s.json", ownerID, fingerprint)
}

// SubmitOptions carries the optional request attributes recorded alongside a
// submission.
type SubmitOptions struct {
	// SourceName is the caller's name for the artifact, e.g. the uploaded
	// filename.
	SourceName string
	// ContentType of the artifact.
	ContentType string
	// Hint is free-text context passed to the summarizer.
	Hint string
}

// Result of a submission.
type Result struct {
	Record *dal.Record
	// IsExisting is true when the record was served from the cache rather
	// than produced by this submission.
	IsExisting bool
	// SummaryUnavailable is true when transcription succeeded but the
	// summarizer did not. The record then carries a placeholder summary and
	// is not persisted, so a later submission re-attempts summarization.
	SummaryUnavailable bool
}

// Config for a Cache. DAL, Store, Provider and Summarizer are required.
type Config struct {
	DAL        dal.DAL
	Store      storage.DeterministicStore
	Provider   transcription.Provider
	Summarizer summary.Summarizer
	Clock      clock.Clock
	// MaxArtifactSize in bytes. Zero selects the default.
	MaxArtifactSize int
	// PollInterval between job status probes. Zero selects the default.
	PollInterval time.Duration
	// PollTimeout bounds how long a submission waits for the external job.
	// Zero selects the default.
	PollTimeout     time.Duration
	MetricsRegistry metrics.Registry
}

// Cache submits artifacts for transcription and summarization at most once
// per (owner, content) pair.
type Cache struct {
	dal        dal.DAL
	store      storage.DeterministicStore
	provider   transcription.Provider
	summarizer summary.Summarizer
	clk        clock.Clock

	maxArtifactSize int
	pollInterval    time.Duration
	pollTimeout     time.Duration

	statCacheHit           *metrics.Counter
	statCacheMiss          *metrics.Counter
	statJobsStarted        *metrics.Counter
	statJobsAttached       *metrics.Counter
	statJobsFailed         *metrics.Counter
	statSummaryUnavailable *metrics.Counter
}

// New returns a Cache wired per the config.
func New(cfg *Config) *Cache {
	c := &Cache{
		dal:                    cfg.DAL,
		store:                  cfg.Store,
		provider:               cfg.Provider,
		summarizer:             cfg.Summarizer,
		clk:                    cfg.Clock,
		maxArtifactSize:        cfg.MaxArtifactSize,
		pollInterval:           cfg.PollInterval,
		pollTimeout:            cfg.PollTimeout,
		statCacheHit:           metrics.NewCounter(),
		statCacheMiss:          metrics.NewCounter(),
		statJobsStarted:        metrics.NewCounter(),
		statJobsAttached:       metrics.NewCounter(),
		statJobsFailed:         metrics.NewCounter(),
		statSummaryUnavailable: metrics.NewCounter(),
	}
	if c.clk == nil {
		c.clk = clock.New()
	}
	if c.maxArtifactSize == 0 {
		c.maxArtifactSize = defaultMaxArtifactSize
	}
	if c.pollInterval == 0 {
		c.pollInterval = defaultPollInterval
	}
	if c.pollTimeout == 0 {
		c.pollTimeout = defaultPollTimeout
	}
	if cfg.MetricsRegistry != nil {
		cfg.MetricsRegistry.Add("cache/hit", c.statCacheHit)
		cfg.MetricsRegistry.Add("cache/miss", c.statCacheMiss)
		cfg.MetricsRegistry.Add("jobs/started", c.statJobsStarted)
		cfg.MetricsRegistry.Add("jobs/attached", c.statJobsAttached)
		cfg.MetricsRegistry.Add("jobs/failed", c.statJobsFailed)
		cfg.MetricsRegistry.Add("summary/unavailable", c.statSummaryUnavailable)
	}
	return c
}

// Submit transcribes and summarizes an artifact for an owner. If the same
// artifact was already processed for this owner the stored record is returned
// without contacting the job service. If a job for it is currently running,
// the call attaches to that job instead of starting another.
func (c *Cache) Submit(ctx context.Context, ownerID string, artifact []byte, opts SubmitOptions) (*Result, error) {
	if len(artifact) == 0 {
		return nil, errors.Trace(ErrNoArtifact)
	}
	if len(artifact) > c.maxArtifactSize {
		return nil, errors.Trace(ErrPayloadTooLarge)
	}
	fingerprint := Fingerprint(artifact)

	r, err := c.dal.Get(ctx, ownerID, fingerprint)
	if err == nil {
		c.statCacheHit.Inc(1)
		return &Result{Record: r, IsExisting: true}, nil
	}
	if errors.Cause(err) != dal.ErrNotFound {
		return nil, errors.Trace(err)
	}
	c.statCacheMiss.Inc(1)

	name := jobName(ownerID, fingerprint)
	if _, err := c.provider.Get(ctx, name); err == nil {
		c.statJobsAttached.Inc(1)
		golog.Infof("Attaching to in-flight transcription job %s", name)
	} else if errors.Cause(err) != transcription.ErrJobNotFound {
		return nil, errors.Trace(err)
	} else if err := c.startJob(ctx, ownerID, fingerprint, artifact, opts.ContentType); err != nil {
		return nil, errors.Trace(err)
	}

	job, err := c.awaitJob(ctx, name)
	if err != nil {
		return nil, errors.Trace(err)
	}

	transcript, err := c.provider.Transcript(ctx, job)
	if err != nil {
		return nil, errors.Trace(err)
	}

	record := &dal.Record{
		OwnerID:            ownerID,
		ContentFingerprint: fingerprint,
		SourceName:         opts.SourceName,
		Context:            opts.Hint,
		Transcript:         transcript,
		CreatedAt:          c.clk.Now(),
	}

	record.Summary, err = c.summarizer.Summarize(ctx, transcript, opts.Hint)
	if err != nil {
		// Transcription succeeded, so hand the transcript back with a
		// placeholder summary. The record stays unpersisted: a later
		// submission of the same artifact re-attempts summarization.
		c.statSummaryUnavailable.Inc(1)
		golog.Warningf("Summarization failed for job %s: %s", name, err)
		record.Summary = summary.Unavailable
		return &Result{Record: record, SummaryUnavailable: true}, nil
	}

	if err := c.dal.Put(ctx, record); err != nil {
		if errors.Cause(err) != dal.ErrAlreadyExists {
			return nil, errors.Trace(err)
		}
		// A concurrent submission persisted first. Its record wins.
		r, err := c.dal.Get(ctx, ownerID, fingerprint)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return &Result{Record: r, IsExisting: true}, nil
	}
	return &Result{Record: record}, nil
}

// startJob uploads the artifact and starts the external job. A name conflict
// means a concurrent caller started it between our probe and our start, which
// is as good as starting it ourselves.
func (c *Cache) startJob(ctx context.Context, ownerID, fingerprint string, artifact []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	mediaURI, err := c.store.Put(artifactName(ownerID, fingerprint), artifact, contentType, nil)
	if err != nil {
		return errors.Trace(err)
	}
	name := jobName(ownerID, fingerprint)
	err = c.provider.Start(ctx, name, mediaURI, transcriptName(ownerID, fingerprint))
	if errors.Cause(err) == transcription.ErrJobAlreadyExists {
		c.statJobsAttached.Inc(1)
		golog.Infof("Lost start race for transcription job %s, attaching", name)
		return nil
	}
	if err != nil {
		return errors.Trace(err)
	}
	c.statJobsStarted.Inc(1)
	return nil
}

// awaitJob polls the external job until it reaches a terminal status or the
// polling window closes. On timeout the job is left running so a later
// submission can attach to it.
func (c *Cache) awaitJob(ctx context.Context, name string) (*transcription.Job, error) {
	deadline := c.clk.Now().Add(c.pollTimeout)
	for {
		job, err := c.provider.Get(ctx, name)
		if err != nil {
			return nil, errors.Trace(err)
		}
		switch job.Status {
		case transcription.StatusCompleted:
			return job, nil
		case transcription.StatusFailed:
			c.statJobsFailed.Inc(1)
			if job.FailureReason != "" {
				return nil, errors.Annotatef(ErrTranscriptionFailed, "job %s: %s", name, job.FailureReason)
			}
			return nil, errors.Annotatef(ErrTranscriptionFailed, "job %s", name)
		}
		if !c.clk.Now().Before(deadline) {
			return nil, errors.Annotatef(ErrTranscriptionTimedOut, "job %s", name)
		}
		select {
		case <-ctx.Done():
			return nil, errors.Trace(ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}
}

// List returns the owner's records, newest first.
func (c *Cache) List(ctx context.Context, ownerID string) ([]*dal.Record, error) {
	records, err := c.dal.List(ctx, ownerID)
	return records, errors.Trace(err)
}

// Delete removes the owner's record for a fingerprint along with its stored
// artifact, transcript and external job. Records are keyed per owner, so a
// fingerprint the caller never submitted reads as not theirs to delete.
func (c *Cache) Delete(ctx context.Context, ownerID, fingerprint string) error {
	if _, err := c.dal.Get(ctx, ownerID, fingerprint); err != nil {
		if errors.Cause(err) == dal.ErrNotFound {
			return errors.Trace(ErrNotAuthorized)
		}
		return errors.Trace(err)
	}
	if err := c.dal.Delete(ctx, ownerID, fingerprint); err != nil {
		return errors.Trace(err)
	}
	// Artifact cleanup is best effort. The record is gone, so a failed
	// cleanup only leaves unreferenced objects behind.
	c.cleanup(ownerID, fingerprint)
	return nil
}

func (c *Cache) cleanup(ownerID, fingerprint string) {
	name := jobName(ownerID, fingerprint)
	artifactID := c.store.IDFromName(artifactName(ownerID, fingerprint))
	transcriptID := c.store.IDFromName(transcriptName(ownerID, fingerprint))
	conc.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := c.provider.Delete(ctx, name); err != nil && errors.Cause(err) != transcription.ErrJobNotFound {
			golog.Warningf("Failed to delete transcription job %s: %s", name, err)
		}
		if err := c.store.Delete(artifactID); err != nil && errors.Cause(err) != storage.ErrNoObject {
			golog.Warningf("Failed to delete artifact %s: %s", artifactID, err)
		}
		if err := c.store.Delete(transcriptID); err != nil && errors.Cause(err) != storage.ErrNoObject {
			golog.Warningf("Failed to delete transcript %s: %s", transcriptID, err)
		}
	})
}
