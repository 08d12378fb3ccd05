package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"ttlcache-api/internal/cache"
	"ttlcache-api/internal/store"

	"github.com/gin-gonic/gin"
)

// CacheHandler serves the cache namespaces of a store.
type CacheHandler struct {
	Store *store.Store
}

// NewCacheHandler returns a handler backed by s.
func NewCacheHandler(s *store.Store) *CacheHandler {
	return &CacheHandler{Store: s}
}

// SetEntryRequest is the payload of PUT /api/caches/:name/entries/:key.
// Unset flags fall back to the namespace defaults.
type SetEntryRequest struct {
	Value          json.RawMessage `json:"value" binding:"required"`
	TTLMs          *int64          `json:"ttl_ms"`
	NoExpiry       bool            `json:"no_expiry"`
	NoUpdateTTL    *bool           `json:"no_update_ttl"`
	NoDisposeOnSet *bool           `json:"no_dispose_on_set"`
}

// EntryResponse is a cached value. RemainingTTLMs is null for entries
// that never expire.
type EntryResponse struct {
	Key            string          `json:"key"`
	Value          json.RawMessage `json:"value"`
	RemainingTTLMs *int64          `json:"remaining_ttl_ms"`
}

// NamespaceResponse describes a namespace in GET /api/caches.
type NamespaceResponse struct {
	Name      string     `json:"name"`
	Size      int        `json:"size"`
	TTLMs     *int64     `json:"ttl_ms"`
	Max       int        `json:"max"`
	NextPurge *time.Time `json:"next_purge,omitempty"`
}

// durationMs renders a TTL in milliseconds, with nil for NoExpiration.
func durationMs(d time.Duration) *int64 {
	if d == cache.NoExpiration {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

func toEntryResponse(e store.Entry) EntryResponse {
	return EntryResponse{
		Key:            e.Key,
		Value:          e.Value,
		RemainingTTLMs: durationMs(e.RemainingTTL),
	}
}

func (h *CacheHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cache.ErrInvalidTTL), errors.Is(err, store.ErrInvalidNamespace):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Cache store is shutting down"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cache operation failed"})
	}
}

// ListCaches handles GET /api/caches
func (h *CacheHandler) ListCaches(c *gin.Context) {
	infos := h.Store.Namespaces()
	resp := make([]NamespaceResponse, 0, len(infos))
	for _, info := range infos {
		ns := NamespaceResponse{
			Name:      info.Name,
			Size:      info.Len,
			Max:       info.Max,
			NextPurge: info.NextPurge,
		}
		if info.TTL != 0 {
			ns.TTLMs = durationMs(info.TTL)
		}
		resp = append(resp, ns)
	}
	c.JSON(http.StatusOK, gin.H{
		"caches": resp,
		"count":  len(resp),
	})
}

// ListEntries handles GET /api/caches/:name/entries
// Entries come in expiration order, entries without expiry last.
func (h *CacheHandler) ListEntries(c *gin.Context) {
	entries, err := h.Store.Entries(c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toEntryResponse(e))
	}
	c.JSON(http.StatusOK, gin.H{
		"entries": resp,
		"count":   len(resp),
	})
}

// SetEntry handles PUT /api/caches/:name/entries/:key
func (h *CacheHandler) SetEntry(c *gin.Context) {
	var req SetEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request. A JSON value is required.",
		})
		return
	}

	var opts []cache.SetOption
	switch {
	case req.NoExpiry && req.TTLMs != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": "ttl_ms and no_expiry are mutually exclusive"})
		return
	case req.NoExpiry:
		opts = append(opts, cache.WithTTL(cache.NoExpiration))
	case req.TTLMs != nil:
		ttl, err := cache.MillisToTTL(*req.TTLMs)
		if err != nil {
			h.fail(c, err)
			return
		}
		opts = append(opts, cache.WithTTL(ttl))
	}
	if req.NoUpdateTTL != nil {
		opts = append(opts, cache.WithNoUpdateTTL(*req.NoUpdateTTL))
	}
	if req.NoDisposeOnSet != nil {
		opts = append(opts, cache.WithNoDisposeOnSet(*req.NoDisposeOnSet))
	}

	name, key := c.Param("name"), c.Param("key")
	if err := h.Store.Set(name, key, req.Value, opts...); err != nil {
		h.fail(c, err)
		return
	}

	entry, ok, err := h.Store.Get(name, key)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		// evicted right away by a concurrent writer
		c.JSON(http.StatusOK, EntryResponse{Key: key, Value: req.Value})
		return
	}
	c.JSON(http.StatusOK, toEntryResponse(entry))
}

// GetEntry handles GET /api/caches/:name/entries/:key
// Optional query params: check_age, update_age (bool) and ttl_ms.
func (h *CacheHandler) GetEntry(c *gin.Context) {
	var opts []cache.GetOption
	if v := c.Query("check_age"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "check_age must be a boolean"})
			return
		}
		opts = append(opts, cache.WithCheckAgeOnGet(b))
	}
	if v := c.Query("update_age"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "update_age must be a boolean"})
			return
		}
		opts = append(opts, cache.WithUpdateAgeOnGet(b))
	}
	if v := c.Query("ttl_ms"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ttl_ms must be an integer"})
			return
		}
		ttl, err := cache.MillisToTTL(ms)
		if err != nil {
			h.fail(c, err)
			return
		}
		opts = append(opts, cache.WithTTL(ttl))
	}

	entry, ok, err := h.Store.Get(c.Param("name"), c.Param("key"), opts...)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
		return
	}
	c.JSON(http.StatusOK, toEntryResponse(entry))
}

// HasEntry handles HEAD /api/caches/:name/entries/:key
func (h *CacheHandler) HasEntry(c *gin.Context) {
	ok, err := h.Store.Has(c.Param("name"), c.Param("key"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.Status(http.StatusOK)
}

// DeleteEntry handles DELETE /api/caches/:name/entries/:key
func (h *CacheHandler) DeleteEntry(c *gin.Context) {
	deleted, err := h.Store.Delete(c.Param("name"), c.Param("key"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deleted": deleted,
		"key":     c.Param("key"),
	})
}

// ClearCache handles DELETE /api/caches/:name
func (h *CacheHandler) ClearCache(c *gin.Context) {
	cleared, err := h.Store.Clear(c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cleared": cleared,
		"name":    c.Param("name"),
	})
}
