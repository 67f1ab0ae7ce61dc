package dal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rainycape/memcache"
	"github.com/samuel/go-metrics/metrics"

	"github.com/voicescribe/backend/libs/errors"
	"github.com/voicescribe/backend/libs/golog"
)

const cacheKeyFormatString = "scribe:rec:%s:%s"

// mc is the subset of the memcache client used by the cache DAL.
type mc interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Delete(key string) error
}

// CacheDAL is a read-through cache in front of another DAL. Cache failures
// are never surfaced; the underlying DAL remains the source of truth.
type CacheDAL struct {
	mc         mc
	dal        DAL
	expiration time.Duration
	statHit    *metrics.Counter
	statMiss   *metrics.Counter
}

// NewCache returns a DAL that caches point reads in memcache.
func NewCache(mc mc, dal DAL, expiration time.Duration, metricsRegistry metrics.Registry) *CacheDAL {
	c := &CacheDAL{
		mc:         mc,
		dal:        dal,
		expiration: expiration,
		statHit:    metrics.NewCounter(),
		statMiss:   metrics.NewCounter(),
	}
	metricsRegistry.Add("hit", c.statHit)
	metricsRegistry.Add("miss", c.statMiss)
	return c
}

func (c *CacheDAL) Get(ctx context.Context, ownerID, fingerprint string) (*Record, error) {
	key := cacheKey(ownerID, fingerprint)
	if item, err := c.mc.Get(key); err == nil {
		r := &Record{}
		if err := json.Unmarshal(item.Value, r); err == nil {
			c.statHit.Inc(1)
			return r, nil
		}
		golog.Warningf("Failed to decode cached record %s: %s", key, err)
	} else if err != memcache.ErrCacheMiss {
		golog.Warningf("Record cache get failed: %s", err)
	}
	c.statMiss.Inc(1)

	r, err := c.dal.Get(ctx, ownerID, fingerprint)
	if err != nil {
		return nil, errors.Trace(err)
	}
	c.set(key, r)
	return r, nil
}

func (c *CacheDAL) Put(ctx context.Context, r *Record) error {
	if err := c.dal.Put(ctx, r); err != nil {
		return errors.Trace(err)
	}
	c.set(cacheKey(r.OwnerID, r.ContentFingerprint), r)
	return nil
}

// List always reads through to the underlying DAL since the ordering index
// is not worth mirroring in the cache.
func (c *CacheDAL) List(ctx context.Context, ownerID string) ([]*Record, error) {
	return c.dal.List(ctx, ownerID)
}

func (c *CacheDAL) Delete(ctx context.Context, ownerID, fingerprint string) error {
	if err := c.dal.Delete(ctx, ownerID, fingerprint); err != nil {
		return errors.Trace(err)
	}
	if err := c.mc.Delete(cacheKey(ownerID, fingerprint)); err != nil && err != memcache.ErrCacheMiss {
		golog.Warningf("Record cache delete failed: %s", err)
	}
	return nil
}

func (c *CacheDAL) set(key string, r *Record) {
	data, err := json.Marshal(r)
	if err != nil {
		golog.Warningf("Failed to encode record for cache: %s", err)
		return
	}
	if err := c.mc.Set(&memcache.Item{
		Key:        key,
		Value:      data,
		Expiration: int32(c.expiration / time.Second),
	}); err != nil {
		golog.Warningf("Record cache set failed: %s", err)
	}
}

func cacheKey(ownerID, fingerprint string) string {
	return fmt.Sprintf(cacheKeyFormatString, ownerID, fingerprint)
}
