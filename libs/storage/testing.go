package storage

import (
	"bytes"
	"io"
	"io/ioutil"
	"net/http"
	"strconv"
	"sync"
)

type readCloser struct {
	io.Reader
}

func (readCloser) Close() error { return nil }

// TestObject is an object held by the in-memory test store.
type TestObject struct {
	Data    []byte
	Headers http.Header
}

type testStore struct {
	mu      sync.Mutex
	objects map[string]*TestObject
	puts    int
	deletes int
}

// TestStore is an in-memory DeterministicStore for tests. It counts writes so
// tests can assert that no storage writes happened on rejected input.
type TestStore interface {
	DeterministicStore
	Object(id string) *TestObject
	PutCount() int
	DeleteCount() int
}

// NewTestStore returns an in-memory store seeded with the provided objects.
func NewTestStore(objects map[string]*TestObject) TestStore {
	if objects == nil {
		objects = make(map[string]*TestObject)
	}
	return &testStore{objects: objects}
}

func (s *testStore) IDFromName(name string) string {
	return "s3://test/" + name
}

func (s *testStore) Put(name string, data []byte, contentType string, meta map[string]string) (string, error) {
	headers := http.Header{}
	headers.Set("Content-Length", strconv.Itoa(len(data)))
	if contentType != "" {
		headers.Set("Content-Type", contentType)
	}
	for k, v := range meta {
		headers.Set(k, v)
	}
	s.mu.Lock()
	s.objects[s.IDFromName(name)] = &TestObject{Data: data, Headers: headers}
	s.puts++
	s.mu.Unlock()
	return s.IDFromName(name), nil
}

func (s *testStore) PutReader(name string, r io.ReadSeeker, size int64, contentType string, meta map[string]string) (string, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return "", err
	}
	return s.Put(name, data, contentType, meta)
}

func (s *testStore) Get(id string) ([]byte, http.Header, error) {
	s.mu.Lock()
	o := s.objects[id]
	s.mu.Unlock()
	if o == nil {
		return nil, nil, ErrNoObject
	}
	return o.Data, o.Headers, nil
}

func (s *testStore) GetReader(id string) (io.ReadCloser, http.Header, error) {
	data, headers, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	return readCloser{bytes.NewReader(data)}, headers, nil
}

func (s *testStore) Delete(id string) error {
	s.mu.Lock()
	delete(s.objects, id)
	s.deletes++
	s.mu.Unlock()
	return nil
}

func (s *testStore) Object(id string) *TestObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[id]
}

func (s *testStore) PutCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

func (s *testStore) DeleteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes
}
