package dal

import (
	"context"
	"sort"
	"sync"
)

// MemoryDAL is an in-memory DAL for tests and local development.
type MemoryDAL struct {
	mu      sync.Mutex
	records map[string]map[string]*Record
}

// NewMemory returns an empty in-memory DAL.
func NewMemory() *MemoryDAL {
	return &MemoryDAL{records: make(map[string]map[string]*Record)}
}

func (d *MemoryDAL) Get(ctx context.Context, ownerID, fingerprint string) (*Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.records[ownerID][fingerprint]
	if r == nil {
		return nil, ErrNotFound
	}
	rc := *r
	return &rc, nil
}

func (d *MemoryDAL) Put(ctx context.Context, r *Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	byFP := d.records[r.OwnerID]
	if byFP == nil {
		byFP = make(map[string]*Record)
		d.records[r.OwnerID] = byFP
	}
	if byFP[r.ContentFingerprint] != nil {
		return ErrAlreadyExists
	}
	rc := *r
	byFP[r.ContentFingerprint] = &rc
	return nil
}

func (d *MemoryDAL) List(ctx context.Context, ownerID string) ([]*Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	records := make([]*Record, 0, len(d.records[ownerID]))
	for _, r := range d.records[ownerID] {
		rc := *r
		records = append(records, &rc)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (d *MemoryDAL) Delete(ctx context.Context, ownerID, fingerprint string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.records[ownerID], fingerprint)
	return nil
}
