package services

import (
	"strings"
	"sync"
	"time"

	"github.com/bobby-s-dev/species-archive/internal/models"
	"go.uber.org/zap"
)

const (
	stubsPrefix = "stubs:"
	featuredKey = "featured"

	// The featured list is replaced by the scheduler, not aged out with
	// query results.
	featuredDuration = 6 * time.Hour
)

type CacheItem struct {
	Data      interface{}
	ExpiresAt time.Time
}

// ListCache holds related, by-letter and featured list results. Full species
// records are never cached. Values are copied on the way in and out so a
// caller never shares state with another request.
type ListCache struct {
	mu              sync.RWMutex
	items           map[string]CacheItem
	logger          *zap.Logger
	defaultDuration time.Duration
	maxSize         int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	hits            int
	misses          int
}

func NewListCache(defaultDuration time.Duration, maxSize int, logger *zap.Logger) *ListCache {
	cache := &ListCache{
		items:           make(map[string]CacheItem),
		logger:          logger,
		defaultDuration: defaultDuration,
		maxSize:         maxSize,
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go cache.startCleanup()

	return cache
}

func (c *ListCache) SetStubs(key string, stubs []models.RelatedSpeciesStub) {
	c.set(stubsPrefix+key, append([]models.RelatedSpeciesStub(nil), stubs...), c.defaultDuration)
}

func (c *ListCache) GetStubs(key string) ([]models.RelatedSpeciesStub, bool) {
	data, ok := c.get(stubsPrefix + key)
	if !ok {
		return nil, false
	}
	stubs, ok := data.([]models.RelatedSpeciesStub)
	return append([]models.RelatedSpeciesStub(nil), stubs...), ok
}

func (c *ListCache) SetFeatured(records []models.SpeciesRecord) {
	c.set(featuredKey, cloneRecords(records), featuredDuration)
}

func (c *ListCache) GetFeatured() ([]models.SpeciesRecord, bool) {
	data, ok := c.get(featuredKey)
	if !ok {
		return nil, false
	}
	records, ok := data.([]models.SpeciesRecord)
	return cloneRecords(records), ok
}

func (c *ListCache) set(key string, data interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict if cache is too large
	if _, exists := c.items[key]; !exists && c.maxSize > 0 && len(c.items) >= c.maxSize {
		c.evictOldest()
	}

	expiresAt := time.Now().Add(ttl)
	c.items[key] = CacheItem{
		Data:      data,
		ExpiresAt: expiresAt,
	}

	c.logger.Debug("Cache item stored",
		zap.String("key", key),
		zap.Time("expires_at", expiresAt))
}

func (c *ListCache) get(key string) (interface{}, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		c.countLookup(false)
		return nil, false
	}

	if time.Now().After(item.ExpiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	c.countLookup(true)
	return item.Data, true
}

func (c *ListCache) countLookup(hit bool) {
	c.mu.Lock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
}

func (c *ListCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, item := range c.items {
		if oldestKey == "" || item.ExpiresAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.ExpiresAt
		}
	}

	if oldestKey != "" {
		delete(c.items, oldestKey)
		c.logger.Debug("Evicted oldest item from cache",
			zap.String("key", oldestKey))
	}
}

func (c *ListCache) startCleanup() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *ListCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	expiredCount := 0

	for key, item := range c.items {
		if now.After(item.ExpiresAt) {
			delete(c.items, key)
			expiredCount++
		}
	}

	if expiredCount > 0 {
		c.logger.Debug("Cleaned expired cache items",
			zap.Int("count", expiredCount))
	}
}

func (c *ListCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCleanup)
	})
}

func (c *ListCache) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stubs := 0
	for key := range c.items {
		if strings.HasPrefix(key, stubsPrefix) {
			stubs++
		}
	}

	return map[string]interface{}{
		"items":            len(c.items),
		"stub_items":       stubs,
		"hits":             c.hits,
		"misses":           c.misses,
		"max_size":         c.maxSize,
		"default_duration": c.defaultDuration.String(),
	}
}

func cloneRecords(records []models.SpeciesRecord) []models.SpeciesRecord {
	if records == nil {
		return nil
	}
	out := make([]models.SpeciesRecord, len(records))
	for i := range records {
		out[i] = *records[i].Clone()
	}
	return out
}
