package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"downtime-report-backend/internal/ingest"
	"downtime-report-backend/internal/store"
)

// UploadReport handles POST /api/reports with a multipart "file" field.
func (h *Handler) UploadReport(c *gin.Context) {
	if c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.Server.MaxUploadMB<<20)
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a report file is required in field 'file'"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	path, err := h.ingest.SaveUpload(header.Filename, file)
	if err != nil {
		log.Errorf("failed to store upload %s: %v", header.Filename, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return
	}

	resp, err := h.ingest.IngestFile(c.Request.Context(), path, ingest.Meta{FileName: header.Filename})
	if err != nil {
		if errors.Is(err, ingest.ErrUnreadableSource) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListReports handles GET /api/reports.
func (h *Handler) ListReports(c *gin.Context) {
	reports, err := h.store.ListReports(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve reports"})
		return
	}
	c.JSON(http.StatusOK, reports)
}

// GetReport handles GET /api/reports/:id.
func (h *Handler) GetReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	report, err := h.store.GetReport(c.Request.Context(), id)
	if err != nil {
		reportError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// DeleteReport handles DELETE /api/reports/:id. Downtimes imported from the report stay.
func (h *Handler) DeleteReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	if _, err := h.ingest.DeleteReport(c.Request.Context(), id); err != nil {
		reportError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func reportID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid report ID"})
		return 0, false
	}
	return id, true
}

func reportError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrReportNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
