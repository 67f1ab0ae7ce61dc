// Package storage abstracts durable object storage by opaque ID.
package storage

import (
	"errors"
	"io"
	"net/http"
)

// ErrNoObject is returned when the requested object does not exist.
var ErrNoObject = errors.New("storage: no object")

// Store is a durable object store. IDs returned by Put are opaque and should
// be passed back to Get/Delete unchanged.
type Store interface {
	Put(name string, data []byte, contentType string, meta map[string]string) (string, error)
	PutReader(name string, r io.ReadSeeker, size int64, contentType string, meta map[string]string) (string, error)
	Get(id string) ([]byte, http.Header, error)
	GetReader(id string) (io.ReadCloser, http.Header, error)
	Delete(id string) error
}

// DeterministicStore is a Store whose IDs can be derived from the name given
// to Put without performing the Put.
type DeterministicStore interface {
	Store
	IDFromName(name string) string
}
