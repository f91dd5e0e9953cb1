package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"docresearch/src/core/research"
)

// Query godoc
// @Summary Answer a question from the uploaded documents
// @Tags research
// @Accept json
// @Produce json
// @Param body body research.QueryRequest true "Question"
// @Success 200 {object} research.QueryResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /query [post]
func (h *Handler) Query(c *gin.Context) {
	var req research.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	resp, err := h.queryService.Query(c.Request.Context(), req)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusOK, resp)
}

// Themes godoc
// @Summary Identify themes across the stored chunks
// @Tags research
// @Accept json
// @Produce json
// @Param body body research.ThemesRequest false "Optional query and sample size"
// @Success 200 {object} research.Themes
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /themes/ [post]
func (h *Handler) Themes(c *gin.Context) {
	var req research.ThemesRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	themes, err := h.themeService.Themes(c.Request.Context(), req)
	var parseErr *research.ThemeParseError
	switch {
	case err == nil:
		sendJSON(c, http.StatusOK, themes)
	case errors.Is(err, research.ErrNoExcerpts):
		sendJSON(c, http.StatusOK, gin.H{"error": err.Error()})
	case errors.As(err, &parseErr):
		sendJSON(c, http.StatusOK, research.ThemeErrorObject(err, "Failed to parse AI output"))
	default:
		sendError(c, http.StatusInternalServerError, err)
	}
}

// IdentifyThemes godoc
// @Summary Identify themes across caller-provided chunks
// @Tags research
// @Accept json
// @Produce json
// @Param body body research.IdentifyThemesRequest true "Chunks and their document ids"
// @Success 200 {object} research.Themes
// @Failure 400 {object} ErrorResponse
// @Router /identify-themes [post]
func (h *Handler) IdentifyThemes(c *gin.Context) {
	var req research.IdentifyThemesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	themes, err := h.themeService.IdentifyThemes(c.Request.Context(), req)
	if err != nil {
		var parseErr *research.ThemeParseError
		if errors.As(err, &parseErr) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Code:    "THEME_PARSE_FAILED",
				Message: "Failed to parse LLM output",
				Details: gin.H{"raw_output": parseErr.Raw},
			})
			return
		}
		sendError(c, http.StatusBadRequest, err)
		return
	}
	sendJSON(c, http.StatusOK, themes)
}
