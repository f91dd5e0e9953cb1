package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docresearch/src/core/research"
)

// Upload godoc
// @Summary Upload documents and index their chunks
// @Tags ingest
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Documents to ingest"
// @Param chunk_size formData int false "Maximum chunk length"
// @Param async formData bool false "Queue the files for a background worker"
// @Success 200 {object} research.UploadResult
// @Success 202 {object} research.AsyncUploadResult
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /upload/ [post]
func (h *Handler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		sendError(c, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		sendError(c, http.StatusBadRequest, research.ErrNoFiles)
		return
	}

	opts := research.UploadOptions{}
	if v := c.PostForm("chunk_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			sendError(c, http.StatusBadRequest, fmt.Errorf("invalid chunk_size %q", v))
			return
		}
		opts.ChunkSize = size
	}

	async := false
	if v := c.PostForm("async"); v != "" {
		async, err = strconv.ParseBool(v)
		if err != nil {
			sendError(c, http.StatusBadRequest, fmt.Errorf("invalid async %q", v))
			return
		}
	}

	files := make([]research.UploadFile, 0, len(headers))
	for _, header := range headers {
		file, err := readUploadFile(header)
		if err != nil {
			sendError(c, http.StatusBadRequest, err)
			return
		}
		files = append(files, file)
	}

	if async {
		result, err := h.ingestService.UploadAsync(c.Request.Context(), files, opts)
		if err != nil {
			sendError(c, http.StatusInternalServerError, err)
			return
		}
		sendJSON(c, http.StatusAccepted, result)
		return
	}

	result, err := h.ingestService.Upload(c.Request.Context(), files, opts)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusOK, result)
}

// Analyze godoc
// @Summary Index a single document and identify its themes
// @Tags ingest
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document to analyze"
// @Success 200 {object} research.AnalyzeResult
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analyze [post]
func (h *Handler) Analyze(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		sendError(c, http.StatusBadRequest, fmt.Errorf("%w: %v", research.ErrNoFiles, err))
		return
	}

	file, err := readUploadFile(header)
	if err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	result, err := h.ingestService.Analyze(c.Request.Context(), file)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusOK, result)
}

func readUploadFile(header *multipart.FileHeader) (research.UploadFile, error) {
	f, err := header.Open()
	if err != nil {
		return research.UploadFile{}, fmt.Errorf("failed to open %s: %w", header.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return research.UploadFile{}, fmt.Errorf("failed to read %s: %w", header.Filename, err)
	}

	return research.UploadFile{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
