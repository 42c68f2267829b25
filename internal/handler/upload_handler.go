package handler

import (
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rawsence/procheck/internal/pkg/errcode"
	"github.com/rawsence/procheck/internal/pkg/response"
	"github.com/rawsence/procheck/internal/service"
)

type UploadHandler struct {
	uploads       *service.UploadService
	maxUploadSize int64
}

func NewUploadHandler(uploads *service.UploadService, maxUploadSize int64) *UploadHandler {
	return &UploadHandler{uploads: uploads, maxUploadSize: maxUploadSize}
}

var acceptedExtensions = map[string]bool{
	".zip": true,
	".pdf": true,
	".md":  true,
}

// Create accepts a multipart upload (a zip bundle or a single document)
// plus optional generation instructions and starts the pipeline. The
// response carries the upload id to poll.
func (h *UploadHandler) Create(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxUploadSize > 0 && file.Size > h.maxUploadSize {
		response.Error(c, errcode.ErrInvalidFile, "file too large")
		return
	}
	if !acceptedExtensions[strings.ToLower(filepath.Ext(file.Filename))] {
		response.Error(c, errcode.ErrInvalidFile, "zip, pdf or md file required")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()
	raw, err := io.ReadAll(opened)
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "failed to read file")
		return
	}

	uploadID, err := h.uploads.Begin(c.Request.Context(), getUserID(c), file.Filename, raw, c.PostForm("custom_prompt"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"upload_id": uploadID, "status": "processing"})
}

func (h *UploadHandler) Status(c *gin.Context) {
	rec, err := h.uploads.Status(c.Request.Context(), getUserID(c), c.Param("upload_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	payload := gin.H{
		"upload_id":      rec.UploadID,
		"status":         rec.Status,
		"protocol_count": len(rec.Protocols),
	}
	if job, err := h.uploads.Progress(c.Request.Context(), getUserID(c), c.Param("upload_id")); err == nil && job != nil {
		payload["progress"] = gin.H{
			"documents": job.Documents,
			"chunks":    job.Chunks,
			"protocols": job.Protocols,
		}
	}
	response.Success(c, payload)
}

func (h *UploadHandler) Preview(c *gin.Context) {
	rec, err := h.uploads.Preview(c.Request.Context(), getUserID(c), c.Param("upload_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"upload_id": rec.UploadID,
		"status":    rec.Status,
		"protocols": rec.Protocols,
		"total":     len(rec.Protocols),
	})
}

func (h *UploadHandler) Approve(c *gin.Context) {
	result, err := h.uploads.Approve(c.Request.Context(), getUserID(c), c.Param("upload_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"protocols_indexed": result.Indexed,
		"errors":            result.Errors,
	})
}

type regenerateRequest struct {
	CustomPrompt string `json:"custom_prompt"`
}

func (h *UploadHandler) Regenerate(c *gin.Context) {
	// An empty body means "same instructions, fresh pass".
	var req regenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		response.Error(c, errcode.ErrInvalid, "invalid request body")
		return
	}
	rec, err := h.uploads.Regenerate(c.Request.Context(), getUserID(c), c.Param("upload_id"), req.CustomPrompt)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"protocols_regenerated": len(rec.Protocols),
		"protocols":             rec.Protocols,
	})
}

func (h *UploadHandler) Cancel(c *gin.Context) {
	wasRunning, err := h.uploads.Cancel(c.Request.Context(), getUserID(c), c.Param("upload_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"status": "cancelled", "was_running": wasRunning})
}

// Clear drops the user's staged previews: all of them, or just one when
// an upload_id query is given.
func (h *UploadHandler) Clear(c *gin.Context) {
	if uploadID := c.Query("upload_id"); uploadID != "" {
		if err := h.uploads.ClearOne(c.Request.Context(), getUserID(c), uploadID); err != nil {
			handleError(c, err)
			return
		}
		response.Success(c, gin.H{"cleared": 1})
		return
	}
	cleared, err := h.uploads.Clear(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"cleared": cleared})
}

func (h *UploadHandler) History(c *gin.Context) {
	limit := 0
	if value := c.Query("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	jobs, err := h.uploads.History(c.Request.Context(), getUserID(c), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, jobs)
}
