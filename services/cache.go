package services

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/basit/mediashare-backend/models"
)

// RecordCache is a per-instance share id -> record cache with a TTL.
// A nil *RecordCache is valid and caches nothing.
type RecordCache struct {
	lru *expirable.LRU[string, *models.File]
}

// NewRecordCache returns nil when size is not positive.
func NewRecordCache(size int, ttl time.Duration) *RecordCache {
	if size <= 0 {
		return nil
	}
	return &RecordCache{lru: expirable.NewLRU[string, *models.File](size, nil, ttl)}
}

func (c *RecordCache) Get(shareID string) (*models.File, bool) {
	if c == nil {
		return nil, false
	}
	f, ok := c.lru.Get(shareID)
	if !ok {
		cacheMissesTotal.Inc()
		return nil, false
	}
	cacheHitsTotal.Inc()
	return f.Clone(), true
}

func (c *RecordCache) Set(f *models.File) {
	if c == nil {
		return
	}
	c.lru.Add(f.ShareID, f.Clone())
}

func (c *RecordCache) Remove(shareID string) {
	if c == nil {
		return
	}
	c.lru.Remove(shareID)
}

func (c *RecordCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
