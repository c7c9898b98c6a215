package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health pings the database and cache so load balancers see dependency
// failures, not just a live process.
func (h HandlerSet) Health(c *gin.Context) {
	ctx := c.Request.Context()

	status := http.StatusOK
	overall := "ok"
	dbStatus := "ok"
	cacheStatus := "ok"

	if err := h.db.Ping(ctx); err != nil {
		dbStatus = "unavailable"
		overall = "degraded"
		status = http.StatusServiceUnavailable
	}
	if err := h.cache.Ping(ctx).Err(); err != nil {
		cacheStatus = "unavailable"
		overall = "degraded"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":   overall,
		"database": dbStatus,
		"cache":    cacheStatus,
		"time":     time.Now().UTC(),
	})
}
