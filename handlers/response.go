package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/basit/mediashare-backend/access"
	"github.com/basit/mediashare-backend/auth/middleware"
	"github.com/basit/mediashare-backend/blob"
	"github.com/basit/mediashare-backend/models"
	"github.com/basit/mediashare-backend/services"
)

type fileStatus struct {
	IsExpired bool   `json:"is_expired"`
	IsImage   bool   `json:"is_image"`
	IsVideo   bool   `json:"is_video"`
	Extension string `json:"extension"`
}

// resource renders a file for API consumers. The storage key and preview URL
// are only included for the owner.
func (h *FileHandler) resource(c *gin.Context, f *models.File) gin.H {
	out := gin.H{
		"id":             f.ID,
		"share_id":       f.ShareID,
		"original_name":  f.OriginalName,
		"mime_type":      f.MimeType,
		"size":           f.Size,
		"formatted_size": f.FormattedSize(),
		"type":           f.Type,
		"metadata":       f.Metadata,
		"is_public":      f.IsPublic,
		"expires_at":     f.ExpiresAt,
		"download_count": f.DownloadCount,
		"share_url":      h.files.ShareURL(f),
		"download_url":   h.files.DownloadURL(f),
		"created_at":     f.CreatedAt,
		"updated_at":     f.UpdatedAt,
		"status": fileStatus{
			IsExpired: f.IsExpired(h.now()),
			IsImage:   f.IsImage(),
			IsVideo:   f.IsVideo(),
			Extension: f.Extension(),
		},
	}
	if v, ok := f.Metadata["dimensions"]; ok && f.IsImage() {
		out["dimensions"] = v
	}
	if v, ok := f.Metadata["duration"]; ok && f.IsVideo() {
		out["duration"] = v
	}

	r := middleware.Requester(c)
	if access.CanMutate(f, r) {
		out["storage_key"] = f.StorageKey
		if loc, err := h.files.PreviewURL(c.Request.Context(), f, r); err == nil {
			out["preview_url"] = loc
		} else {
			h.log.Debug("preview url unavailable", zap.String("id", f.ID.String()), zap.Error(err))
		}
	}
	return out
}

func (h *FileHandler) resources(c *gin.Context, files []models.File) []gin.H {
	out := make([]gin.H, 0, len(files))
	for i := range files {
		out = append(out, h.resource(c, &files[i]))
	}
	return out
}

func validationFailed(c *gin.Context, field, message string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"success": false,
		"message": "Validation failed",
		"errors":  gin.H{field: []string{message}},
	})
}

// writeError maps service errors onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	var verr *services.ValidationError
	status, message := http.StatusInternalServerError, "Internal server error"

	switch {
	case errors.As(err, &verr):
		validationFailed(c, verr.Field, verr.Message)
		return
	case errors.Is(err, services.ErrNotFound):
		status, message = http.StatusNotFound, "File not found or access denied"
	case errors.Is(err, services.ErrUnauthenticated):
		status, message = http.StatusUnauthorized, "Authentication required"
	case errors.Is(err, services.ErrAccessDenied):
		status, message = http.StatusForbidden, "Access denied"
	case errors.Is(err, services.ErrExpired):
		status, message = http.StatusGone, "File has expired"
	case errors.Is(err, blob.ErrNotFound):
		status, message = http.StatusNotFound, "Physical file not found"
	case errors.Is(err, services.ErrStorage):
		status, message = http.StatusBadGateway, "Storage unavailable"
	case errors.Is(err, services.ErrConsistency):
		message = "File deletion partially failed"
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"success": false, "message": message})
}
