package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"downtime-report-backend/internal/store"
)

// GetSummary handles GET /api/stats/summary.
func (h *Handler) GetSummary(c *gin.Context) {
	f, ok := bindFilter(c)
	if !ok {
		return
	}
	totals, err := h.store.Totals(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate downtimes"})
		return
	}
	c.JSON(http.StatusOK, totals)
}

// GetMachineStats handles GET /api/stats/machines.
func (h *Handler) GetMachineStats(c *gin.Context) {
	h.groupStats(c, h.store.StatsByMachine)
}

// GetErrorTypeStats handles GET /api/stats/error-types.
func (h *Handler) GetErrorTypeStats(c *gin.Context) {
	h.groupStats(c, h.store.StatsByErrorType)
}

func (h *Handler) groupStats(c *gin.Context, query func(ctx context.Context, f store.Filter) ([]store.GroupStat, error)) {
	f, ok := bindFilter(c)
	if !ok {
		return
	}
	stats, err := query(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate downtimes"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetTimeline handles GET /api/stats/timeline?period=day|week|month|year.
func (h *Handler) GetTimeline(c *gin.Context) {
	g, err := store.ParseGranularity(c.Query("period"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f, ok := bindFilter(c)
	if !ok {
		return
	}
	buckets, err := h.store.Timeline(c.Request.Context(), f, g)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build timeline"})
		return
	}
	c.JSON(http.StatusOK, buckets)
}

// GetCriticalIssues handles GET /api/stats/critical?threshold=&limit=.
func (h *Handler) GetCriticalIssues(c *gin.Context) {
	threshold, ok := intQuery(c, "threshold", h.cfg.Stats.CriticalThresholdMinutes)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit", h.cfg.Stats.CriticalPageSize)
	if !ok {
		return
	}
	f, ok := bindFilter(c)
	if !ok {
		return
	}
	issues, err := h.store.CriticalIssues(c.Request.Context(), f, threshold, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list critical issues"})
		return
	}
	c.JSON(http.StatusOK, issues)
}

// GetComparison handles GET /api/stats/comparison?period=week|month|quarter|year.
func (h *Handler) GetComparison(c *gin.Context) {
	kind, err := store.ParsePeriodKind(c.Query("period"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmp, err := h.store.ComparePeriods(c.Request.Context(), kind, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compare periods"})
		return
	}
	c.JSON(http.StatusOK, cmp)
}
