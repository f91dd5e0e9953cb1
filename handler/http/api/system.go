package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docresearch/src/core/research"
)

// Root godoc
// @Summary Service banner
// @Tags system
// @Produce json
// @Router / [get]
func (h *Handler) Root(c *gin.Context) {
	sendJSON(c, http.StatusOK, gin.H{
		"status":  "online",
		"message": "Document Research & Theme Identification API is running",
		"health":  "/api/health",
	})
}

// CheckHealth godoc
// @Summary Check system health status
// @Tags system
// @Produce json
// @Success 200 {object} research.HealthStatus
// @Failure 503 {object} research.HealthStatus
// @Failure 500 {object} ErrorResponse
// @Router /health [get]
func (h *Handler) CheckHealth(c *gin.Context) {
	status, err := h.sysService.CheckHealth(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	sendJSON(c, code, status)
}

// ListDocuments godoc
// @Summary List ingested documents, newest first
// @Tags documents
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /documents [get]
func (h *Handler) ListDocuments(c *gin.Context) {
	limit, err := queryInt(c, "limit", research.DefaultDocumentLimit)
	if err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	docs, err := h.docService.List(c.Request.Context(), limit, offset)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	sendJSON(c, http.StatusOK, gin.H{
		"documents": docs,
		"pagination": gin.H{
			"limit":  limit,
			"offset": offset,
		},
	})
}

// GetDocument godoc
// @Summary Get a document with its stored chunks
// @Tags documents
// @Param id path int true "Document ID"
// @Produce json
// @Success 200 {object} research.DocumentDetail
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /documents/{id} [get]
func (h *Handler) GetDocument(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		sendError(c, http.StatusBadRequest, fmt.Errorf("invalid document id %q", c.Param("id")))
		return
	}

	doc, err := h.docService.Get(c.Request.Context(), id)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusOK, doc)
}

// GetJob godoc
// @Summary Get the status of an ingestion job
// @Tags jobs
// @Param id path int true "Job ID"
// @Produce json
// @Success 200 {object} research.JobInfo
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(c *gin.Context) {
	if h.jobs == nil {
		sendError(c, http.StatusServiceUnavailable, research.ErrNotConfigured)
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		sendError(c, http.StatusBadRequest, fmt.Errorf("invalid job id %q", c.Param("id")))
		return
	}

	job, err := h.jobs.GetJob(c.Request.Context(), id)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusOK, job)
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter %q", name, v)
	}
	return n, nil
}
