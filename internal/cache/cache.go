package cache

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/monitoring"
)

// CacheItem represents a cached item with expiration
type CacheItem struct {
	Data      []byte      `json:"data"`
	Header    http.Header `json:"-"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// replayedHeaders are restored on a hit. Transport headers such as
// Content-Encoding belong to the outer writer and are not kept.
var replayedHeaders = []string{"Content-Type", "Last-Modified"}

// IsExpired checks if the cache item has expired
func (c *CacheItem) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Cache holds rendered report documents for a short TTL
type Cache struct {
	mu     sync.RWMutex
	items  map[string]*CacheItem
	gen    uint64
	ttl    time.Duration
	logger *monitoring.Logger
	now    func() time.Time
}

// NewCache creates a new cache with the specified TTL. A zero TTL disables caching.
func NewCache(ttl time.Duration, logger *monitoring.Logger) *Cache {
	return &Cache{
		items:  make(map[string]*CacheItem),
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Run removes expired items periodically until ctx is done
func (c *Cache) Run(ctx context.Context) {
	interval := c.ttl
	if interval <= 0 || interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, item := range c.items {
		if item.IsExpired(now) {
			delete(c.items, key)
		}
	}
}

// Enabled reports whether entries are retained at all
func (c *Cache) Enabled() bool {
	return c.ttl > 0
}

// Get retrieves an item from the cache
func (c *Cache) Get(key string) ([]byte, bool) {
	item, ok := c.lookup(key)
	if !ok {
		return nil, false
	}
	return item.Data, true
}

func (c *Cache) lookup(key string) (*CacheItem, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if item.IsExpired(c.now()) {
		c.Delete(key)
		return nil, false
	}
	return item, true
}

// Set stores an item in the cache
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(key, &CacheItem{Data: data})
}

// generation changes whenever entries are invalidated
func (c *Cache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// setIfCurrent stores item unless an invalidation happened since gen was read,
// in which case the response may predate the new report
func (c *Cache) setIfCurrent(key string, item *CacheItem, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	return c.put(key, item)
}

// put requires c.mu held for writing
func (c *Cache) put(key string, item *CacheItem) bool {
	if !c.Enabled() {
		return false
	}
	item.ExpiresAt = c.now().Add(c.ttl)
	c.items[key] = item
	return true
}

// Delete removes an item from the cache
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// InvalidateCollection drops every cached document of a report collection
func (c *Cache) InvalidateCollection(collection string) int {
	segment := "/" + collection + "/"

	c.mu.Lock()
	c.gen++
	removed := 0
	for key := range c.items {
		if strings.Contains(key, segment) {
			delete(c.items, key)
			removed++
		}
	}
	remaining := len(c.items)
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.CacheLogger("invalidate", collection, false, remaining)
	}
	return removed
}

// Clear removes all items from the cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.items = make(map[string]*CacheItem)
}

// Size returns the number of items in the cache
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Stats returns cache statistics
func (c *Cache) Stats() map[string]interface{} {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	totalItems := len(c.items)
	expiredItems := 0

	for _, item := range c.items {
		if item.IsExpired(now) {
			expiredItems++
		}
	}

	return map[string]interface{}{
		"total_items":   totalItems,
		"expired_items": expiredItems,
		"active_items":  totalItems - expiredItems,
		"ttl_seconds":   c.ttl.Seconds(),
	}
}

// Middleware serves GET responses from the cache, keyed by request path,
// and stores successful responses on a miss
func (c *Cache) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodGet || !c.Enabled() {
			ctx.Next()
			return
		}

		cacheKey := ctx.Request.URL.Path

		if item, found := c.lookup(cacheKey); found {
			monitoring.CacheRequestsTotal.WithLabelValues("hit").Inc()
			if c.logger != nil {
				c.logger.CacheLogger("get", cacheKey, true, c.Size())
			}
			contentType := "application/json"
			for name, values := range item.Header {
				if name == "Content-Type" {
					contentType = values[0]
					continue
				}
				ctx.Header(name, values[0])
			}
			ctx.Header("X-Cache", "HIT")
			ctx.Data(http.StatusOK, contentType, item.Data)
			ctx.Abort()
			return
		}

		monitoring.CacheRequestsTotal.WithLabelValues("miss").Inc()
		if c.logger != nil {
			c.logger.CacheLogger("get", cacheKey, false, c.Size())
		}

		gen := c.generation()
		wrapper := &responseWriter{ResponseWriter: ctx.Writer, body: &bytes.Buffer{}}
		ctx.Writer = wrapper
		ctx.Header("X-Cache", "MISS")
		ctx.Next()

		if wrapper.Status() != http.StatusOK {
			return
		}
		header := make(http.Header, len(replayedHeaders))
		for _, name := range replayedHeaders {
			if value := wrapper.Header().Get(name); value != "" {
				header.Set(name, value)
			}
		}
		if !c.setIfCurrent(cacheKey, &CacheItem{Data: wrapper.body.Bytes(), Header: header}, gen) && c.logger != nil {
			c.logger.CacheLogger("discard", cacheKey, false, c.Size())
		}
	}
}

// responseWriter wraps gin.ResponseWriter to capture response body
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
