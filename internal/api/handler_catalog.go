package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"downtime-report-backend/internal/parse"
	"downtime-report-backend/internal/store"
)

const maxDowntimePage = 1000

// ListMachines handles GET /api/machines.
func (h *Handler) ListMachines(c *gin.Context) {
	machines, err := h.store.ListMachines(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve machines"})
		return
	}
	c.JSON(http.StatusOK, machines)
}

// ListErrorCodes handles GET /api/error-codes.
func (h *Handler) ListErrorCodes(c *gin.Context) {
	codes, err := h.store.ListErrorCodes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve error codes"})
		return
	}
	c.JSON(http.StatusOK, codes)
}

// ListDowntimes handles GET /api/downtimes.
func (h *Handler) ListDowntimes(c *gin.Context) {
	f, ok := bindFilter(c)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit", maxDowntimePage)
	if !ok {
		return
	}
	if limit == 0 || limit > maxDowntimePage {
		limit = maxDowntimePage
	}

	downtimes, err := h.store.ListDowntimes(c.Request.Context(), f, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve downtimes"})
		return
	}
	c.JSON(http.StatusOK, downtimes)
}

// bindFilter reads from, to (inclusive YYYY-MM-DD dates), machine, error_type and error_code.
func bindFilter(c *gin.Context) (store.Filter, bool) {
	from, err := queryDate(c.Query("from"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid 'from': %v", err)})
		return store.Filter{}, false
	}
	to, err := queryDate(c.Query("to"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid 'to': %v", err)})
		return store.Filter{}, false
	}

	f := store.DateRange(from, to)
	f.MachineCode = c.Query("machine")
	f.ErrorType = c.Query("error_type")
	f.ErrorCode = c.Query("error_code")
	return f, true
}

func queryDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return parse.ParseDate(s)
}

func intQuery(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid '%s'", key)})
		return 0, false
	}
	return n, true
}
