package storage

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

var sseAlgorithm = "AES256"

// S3 is a Store backed by an S3 bucket. Object IDs are canonical
// s3://bucket/key URIs so they can be handed directly to other AWS services.
type S3 struct {
	s3     s3iface.S3API
	bucket string
	prefix string
}

// NewS3 returns a Store that reads and writes objects under the given bucket
// and key prefix.
func NewS3(awsSession *session.Session, bucket, prefix string) *S3 {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3{
		s3:     s3.New(awsSession),
		bucket: bucket,
		prefix: prefix,
	}
}

// IDFromName returns the deterministic ID for a name.
func (s *S3) IDFromName(name string) string {
	return fmt.Sprintf("s3://%s/%s%s", s.bucket, s.prefix, name)
}

func (s *S3) Put(name string, data []byte, contentType string, meta map[string]string) (string, error) {
	return s.PutReader(name, bytes.NewReader(data), int64(len(data)), contentType, meta)
}

func (s *S3) PutReader(name string, r io.ReadSeeker, size int64, contentType string, meta map[string]string) (string, error) {
	var m map[string]*string
	if len(meta) != 0 {
		m = make(map[string]*string, len(meta))
		for k, v := range meta {
			v := v
			m[k] = &v
		}
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := s.prefix + name
	_, err := s.s3.PutObject(&s3.PutObjectInput{
		Bucket:               &s.bucket,
		Key:                  &key,
		Body:                 r,
		ContentLength:        &size,
		ContentType:          &contentType,
		ServerSideEncryption: &sseAlgorithm,
		Metadata:             m,
	})
	if err != nil {
		return "", err
	}
	return s.IDFromName(name), nil
}

func (s *S3) Get(id string) ([]byte, http.Header, error) {
	rc, headers, err := s.GetReader(id)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()
	data, err := ioutil.ReadAll(rc)
	if err != nil {
		return nil, nil, err
	}
	return data, headers, nil
}

func (s *S3) GetReader(id string) (io.ReadCloser, http.Header, error) {
	bkt, key, err := ParseURI(id)
	if err != nil {
		return nil, nil, err
	}
	obj, err := s.s3.GetObject(&s3.GetObjectInput{
		Bucket: &bkt,
		Key:    &key,
	})
	if err != nil {
		if e, ok := err.(awserr.Error); ok && (e.Code() == s3.ErrCodeNoSuchKey || e.Code() == "NotFound") {
			return nil, nil, ErrNoObject
		}
		return nil, nil, err
	}
	headers := http.Header{}
	if obj.ContentType != nil {
		headers.Set("Content-Type", *obj.ContentType)
	}
	if obj.ContentLength != nil {
		headers.Set("Content-Length", strconv.FormatInt(*obj.ContentLength, 10))
	}
	for k, v := range obj.Metadata {
		if v != nil {
			headers.Set(k, *v)
		}
	}
	return obj.Body, headers, nil
}

func (s *S3) Delete(id string) error {
	bkt, key, err := ParseURI(id)
	if err != nil {
		return err
	}
	_, err = s.s3.DeleteObject(&s3.DeleteObjectInput{
		Bucket: &bkt,
		Key:    &key,
	})
	return err
}

// ParseURI splits an s3://bucket/key URI into bucket and key.
func ParseURI(id string) (bucket, key string, err error) {
	if !strings.HasPrefix(id, "s3://") {
		return "", "", fmt.Errorf("storage: not an s3 URI: %q", id)
	}
	rest := strings.TrimPrefix(id, "s3://")
	ix := strings.IndexByte(rest, '/')
	if ix <= 0 || ix == len(rest)-1 {
		return "", "", fmt.Errorf("storage: malformed s3 URI: %q", id)
	}
	return rest[:ix], rest[ix+1:], nil
}
