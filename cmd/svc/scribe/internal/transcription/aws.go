package transcription

import (
	"context"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/transcribeservice"

	"github.com/voicescribe/backend/libs/errors"
	"github.com/voicescribe/backend/libs/storage"
)

// transcribeAPI is the subset of the Transcribe API used by the provider.
type transcribeAPI interface {
	StartTranscriptionJobWithContext(aws.Context, *transcribeservice.StartTranscriptionJobInput, ...request.Option) (*transcribeservice.StartTranscriptionJobOutput, error)
	GetTranscriptionJobWithContext(aws.Context, *transcribeservice.GetTranscriptionJobInput, ...request.Option) (*transcribeservice.GetTranscriptionJobOutput, error)
	DeleteTranscriptionJobWithContext(aws.Context, *transcribeservice.DeleteTranscriptionJobInput, ...request.Option) (*transcribeservice.DeleteTranscriptionJobOutput, error)
}

// AWSProvider runs transcription jobs on Amazon Transcribe, routing output
// documents into the provided bucket so they can be read back (and cleaned
// up) through the object store.
type AWSProvider struct {
	api          transcribeAPI
	store        storage.Store
	outputBucket string
	outputPrefix string
	languageCode string
}

// NewAWS returns a Provider backed by Amazon Transcribe. The store must be
// able to read objects in outputBucket.
func NewAWS(api transcribeAPI, store storage.Store, outputBucket, outputPrefix, languageCode string) *AWSProvider {
	outputPrefix = strings.Trim(outputPrefix, "/")
	if outputPrefix != "" {
		outputPrefix += "/"
	}
	return &AWSProvider{
		api:          api,
		store:        store,
		outputBucket: outputBucket,
		outputPrefix: outputPrefix,
		languageCode: languageCode,
	}
}

func (p *AWSProvider) Start(ctx context.Context, name, mediaURI, outputName string) error {
	_, err := p.api.StartTranscriptionJobWithContext(ctx, &transcribeservice.StartTranscriptionJobInput{
		TranscriptionJobName: &name,
		LanguageCode:         &p.languageCode,
		Media: &transcribeservice.Media{
			MediaFileUri: &mediaURI,
		},
		OutputBucketName: &p.outputBucket,
		OutputKey:        aws.String(p.outputPrefix + outputName),
	})
	if err != nil {
		if e, ok := err.(awserr.Error); ok && e.Code() == transcribeservice.ErrCodeConflictException {
			return ErrJobAlreadyExists
		}
		return errors.Trace(err)
	}
	return nil
}

func (p *AWSProvider) Get(ctx context.Context, name string) (*Job, error) {
	res, err := p.api.GetTranscriptionJobWithContext(ctx, &transcribeservice.GetTranscriptionJobInput{
		TranscriptionJobName: &name,
	})
	if err != nil {
		if e, ok := err.(awserr.Error); ok {
			// Transcribe reports unknown job names as a bad request
			switch e.Code() {
			case transcribeservice.ErrCodeNotFoundException, transcribeservice.ErrCodeBadRequestException:
				return nil, ErrJobNotFound
			}
		}
		return nil, errors.Trace(err)
	}
	tj := res.TranscriptionJob
	if tj == nil {
		return nil, ErrJobNotFound
	}
	j := &Job{Name: name}
	switch status := stringValue(tj.TranscriptionJobStatus); status {
	case transcribeservice.TranscriptionJobStatusCompleted:
		j.Status = StatusCompleted
		if tj.Transcript != nil {
			j.TranscriptURI = stringValue(tj.Transcript.TranscriptFileUri)
		}
	case transcribeservice.TranscriptionJobStatusFailed:
		j.Status = StatusFailed
		j.FailureReason = stringValue(tj.FailureReason)
	default:
		// QUEUED and IN_PROGRESS both mean keep waiting
		j.Status = StatusInProgress
	}
	return j, nil
}

func (p *AWSProvider) Transcript(ctx context.Context, job *Job) (string, error) {
	if job.Status != StatusCompleted || job.TranscriptURI == "" {
		return "", errors.Errorf("transcription: job %s has no transcript", job.Name)
	}
	id, err := objectIDFromURI(job.TranscriptURI)
	if err != nil {
		return "", errors.Trace(err)
	}
	data, _, err := p.store.Get(id)
	if err != nil {
		return "", errors.Trace(err)
	}
	text, err := parseTranscriptDocument(data)
	if err != nil {
		return "", errors.Trace(err)
	}
	return text, nil
}

func (p *AWSProvider) Delete(ctx context.Context, name string) error {
	_, err := p.api.DeleteTranscriptionJobWithContext(ctx, &transcribeservice.DeleteTranscriptionJobInput{
		TranscriptionJobName: &name,
	})
	if err != nil {
		if e, ok := err.(awserr.Error); ok {
			switch e.Code() {
			case transcribeservice.ErrCodeNotFoundException, transcribeservice.ErrCodeBadRequestException:
				return ErrJobNotFound
			}
		}
		return errors.Trace(err)
	}
	return nil
}

// objectIDFromURI converts the transcript location reported by Transcribe to
// a canonical s3://bucket/key object ID. When an output bucket is configured
// Transcribe reports an HTTPS S3 URL in either path or virtual-host style.
func objectIDFromURI(uri string) (string, error) {
	if strings.HasPrefix(uri, "s3://") {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", errors.Annotatef(err, "transcript uri %q", uri)
	}
	path := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	if strings.HasPrefix(host, "s3.") || strings.HasPrefix(host, "s3-") {
		// Path style: https://s3.region.amazonaws.com/bucket/key
		ix := strings.IndexByte(path, '/')
		if ix <= 0 || ix == len(path)-1 {
			return "", errors.Errorf("transcription: malformed transcript uri %q", uri)
		}
		return "s3://" + path[:ix] + "/" + path[ix+1:], nil
	}
	// Virtual-host style: https://bucket.s3.region.amazonaws.com/key
	ix := strings.Index(host, ".s3")
	if ix <= 0 || path == "" {
		return "", errors.Errorf("transcription: malformed transcript uri %q", uri)
	}
	return "s3://" + host[:ix] + "/" + path, nil
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
