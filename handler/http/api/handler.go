package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docresearch/src/core/research"
)

type Handler struct {
	ingestService research.IngestService
	queryService  research.QueryService
	themeService  research.ThemeService
	docService    research.DocumentService
	sysService    research.SystemService
	jobs          research.JobTracker
}

// NewHandler wires the API handlers. jobs may be nil when asynchronous ingestion is disabled.
func NewHandler(ingestService research.IngestService, queryService research.QueryService, themeService research.ThemeService, docService research.DocumentService, sysService research.SystemService, jobs research.JobTracker) *Handler {
	return &Handler{
		ingestService: ingestService,
		queryService:  queryService,
		themeService:  themeService,
		docService:    docService,
		sysService:    sysService,
		jobs:          jobs,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.Root)

	api := r.Group("/api")

	// Ingestion routes
	api.POST("/upload/", h.Upload)
	api.POST("/analyze", h.Analyze)

	// Research routes
	api.POST("/query", h.Query)
	api.POST("/themes/", h.Themes)
	api.POST("/identify-themes", h.IdentifyThemes)

	// Metadata routes
	api.GET("/documents", h.ListDocuments)
	api.GET("/documents/:id", h.GetDocument)
	api.GET("/jobs/:id", h.GetJob)

	// System routes
	api.GET("/health", h.CheckHealth)
}

// Common error response structure
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// sendError maps domain errors to a status and a stable code. status is used for errors that are
// not known to the domain.
func sendError(c *gin.Context, status int, err error) {
	var code string
	var llmErr *research.LLMError
	switch {
	case errors.Is(err, research.ErrNoFiles):
		code = "NO_FILES"
		status = http.StatusBadRequest
	case errors.Is(err, research.ErrNoExtractableText):
		code = "NO_EXTRACTABLE_TEXT"
		status = http.StatusBadRequest
	case errors.Is(err, research.ErrNoChunks):
		code = "NO_CHUNKS"
		status = http.StatusBadRequest
	case errors.Is(err, research.ErrInvalidRequest):
		code = "INVALID_REQUEST"
		status = http.StatusBadRequest
	case errors.Is(err, research.ErrUnsupportedFileType):
		code = "UNSUPPORTED_FILE_TYPE"
		status = http.StatusBadRequest
	case errors.Is(err, research.ErrAsyncUnavailable):
		code = "ASYNC_UNAVAILABLE"
		status = http.StatusServiceUnavailable
	case errors.Is(err, research.ErrNotConfigured):
		code = "NOT_CONFIGURED"
		status = http.StatusServiceUnavailable
	case errors.Is(err, research.ErrDocumentNotFound), errors.Is(err, research.ErrJobNotFound):
		code = "NOT_FOUND"
		status = http.StatusNotFound
	case errors.As(err, &llmErr):
		code = "LLM_FAILED"
	case status == http.StatusBadRequest:
		code = "BAD_REQUEST"
	default:
		code = "INTERNAL_ERROR"
	}

	c.JSON(status, ErrorResponse{
		Code:    code,
		Message: err.Error(),
	})
}

func sendJSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}
