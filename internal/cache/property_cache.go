// Package cache keeps recently read listings in process memory.
package cache

import (
	"strconv"
	"time"

	"github.com/karlseguin/ccache/v3"

	"propertyhub/internal/models"
)

// PropertyCache holds approved listings by id. Cached values are copies;
// callers may mutate what they get back.
type PropertyCache struct {
	local *ccache.Cache[*models.Property]
	ttl   time.Duration
}

// NewPropertyCache creates a cache bounded to maxSize entries
func NewPropertyCache(maxSize int64, ttl time.Duration) *PropertyCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PropertyCache{
		local: ccache.New(ccache.Configure[*models.Property]().MaxSize(maxSize)),
		ttl:   ttl,
	}
}

// Get returns a cached listing
func (c *PropertyCache) Get(id uint) (*models.Property, bool) {
	item := c.local.Get(key(id))
	if item == nil || item.Expired() {
		return nil, false
	}
	return item.Value().Clone(), true
}

// Set stores a listing
func (c *PropertyCache) Set(p *models.Property) {
	c.local.Set(key(p.ID), p.Clone(), c.ttl)
}

// Invalidate drops a listing after it changed
func (c *PropertyCache) Invalidate(id uint) {
	c.local.Delete(key(id))
}

// Stop releases the cache worker
func (c *PropertyCache) Stop() {
	c.local.Stop()
}

func key(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
