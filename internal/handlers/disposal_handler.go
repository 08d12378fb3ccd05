package handlers

import (
	"net/http"
	"slices"
	"strconv"

	"ttlcache-api/internal/cache"
	"ttlcache-api/internal/database"
	"ttlcache-api/internal/models"

	"github.com/gin-gonic/gin"
)

var disposeReasons = []string{
	cache.ReasonSet.String(),
	cache.ReasonEvict.String(),
	cache.ReasonStale.String(),
	cache.ReasonDelete.String(),
}

// GetDisposals handles GET /api/disposals
// Returns journaled removals, newest first.
// Optional query params: namespace, reason, limit (default 50, max 500).
func GetDisposals(c *gin.Context) {
	namespace := c.Query("namespace")
	reason := c.Query("reason")
	if reason != "" && !slices.Contains(disposeReasons, reason) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "reason must be one of set, evict, stale, delete",
		})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	query := database.GetDB().Model(&models.DisposalEvent{})
	if namespace != "" {
		query = query.Where("namespace = ?", namespace)
	}
	if reason != "" {
		query = query.Where("reason = ?", reason)
	}

	var events []models.DisposalEvent
	if err := query.Order("disposed_at desc").Limit(limit).Find(&events).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch disposals",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"disposals": events,
		"count":     len(events),
	})
}
