package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"notification-service/internal/archive"
	"notification-service/internal/lock"
	"notification-service/internal/models"
	"notification-service/internal/service"
)

// respondError maps domain errors onto HTTP statuses. fallback is the message
// shown for unexpected failures.
func respondError(c *gin.Context, err error, fallback string) {
	if conflict, ok := archive.IsConflict(err); ok {
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Error(), "references": conflict.References})
		return
	}
	switch {
	case errors.Is(err, archive.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, lock.ErrLockUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "resource busy, retry later", "retryable": true})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func parseIDParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// parsePage reads limit/offset query parameters.
func parsePage(c *gin.Context) (models.Page, bool) {
	var page models.Page
	for name, dst := range map[string]*int{"limit": &page.Limit, "offset": &page.Offset} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
			return models.Page{}, false
		}
		*dst = v
	}
	return page.Normalize(), true
}

// parseFilter reads status, archived, created_after and created_before.
func parseFilter(c *gin.Context) (models.MessageFilter, bool) {
	var filter models.MessageFilter
	if raw := c.Query("status"); raw != "" {
		status := models.MessageStatus(raw)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return filter, false
		}
		filter.Status = status
	}
	if raw := c.Query("archived"); raw != "" {
		archived, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid archived"})
			return filter, false
		}
		filter.Archived = archived
	}
	for name, dst := range map[string]**time.Time{"created_after": &filter.CreatedAfter, "created_before": &filter.CreatedBefore} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
			return filter, false
		}
		*dst = &ts
	}
	return filter, true
}

// respondToggle answers a read-state change: 200 with the new status when a
// row changed, 204 when it was already in that state.
func respondToggle(c *gin.Context, id int, changed bool, status models.MessageStatus) {
	if !changed {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
}
