package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/basit/mediashare-backend/auth/middleware"
	"github.com/basit/mediashare-backend/models"
	"github.com/basit/mediashare-backend/services"
	"github.com/basit/mediashare-backend/store"
)

const (
	qrSize = 256
	// multipart overhead allowed on top of the file itself
	formOverhead = 1 << 20
)

type FileHandler struct {
	files *services.FileService
	log   *zap.Logger
	now   func() time.Time
}

func NewFileHandler(files *services.FileService, log *zap.Logger) *FileHandler {
	return &FileHandler{files: files, log: log, now: time.Now}
}

func (h *FileHandler) UploadFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, models.MaxUploadSize+formOverhead)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			validationFailed(c, "file", "File exceeds the "+models.FormatBytes(models.MaxUploadSize)+" limit")
			return
		}
		validationFailed(c, "file", "No file uploaded")
		return
	}

	isPublic, err := strconv.ParseBool(c.DefaultPostForm("is_public", "true"))
	if err != nil {
		validationFailed(c, "is_public", "must be a boolean")
		return
	}
	var expiresAt *time.Time
	if raw := strings.TrimSpace(c.PostForm("expires_at")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			validationFailed(c, "expires_at", "must be an RFC 3339 timestamp")
			return
		}
		expiresAt = &t
	}

	src, err := file.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer src.Close()

	f, err := h.files.Create(c.Request.Context(), services.Upload{
		Name:      file.Filename,
		MimeType:  file.Header.Get("Content-Type"),
		Size:      file.Size,
		Body:      src,
		IsPublic:  isPublic,
		ExpiresAt: expiresAt,
		Owner:     middleware.Requester(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "File uploaded successfully",
		"data":    h.resource(c, f),
	})
}

func (h *FileHandler) ListFiles(c *gin.Context) {
	opts := services.ListOptions{
		Mine:           queryBool(c, "mine"),
		IncludeExpired: queryBool(c, "include_expired"),
		Query:          c.Query("q"),
		Sort:           store.ParseSort(c.Query("sort_by"), c.Query("sort_order")),
		Page: store.Page{
			Number: queryInt(c, "page"),
			Size:   queryInt(c, "per_page"),
		},
	}
	if raw := c.Query("type"); raw != "" {
		typ := models.TypeCategory(strings.ToLower(raw))
		if typ != models.TypeImage && typ != models.TypeVideo {
			validationFailed(c, "type", "must be image or video")
			return
		}
		opts.Type = &typ
	}

	page, err := h.files.List(c.Request.Context(), middleware.Requester(c), opts)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    h.resources(c, page.Files),
		"meta": gin.H{
			"current_page": page.Page,
			"total":        page.Total,
			"per_page":     page.PerPage,
			"last_page":    page.LastPage,
		},
	})
}

// GetFile accepts either the record id or the share id.
func (h *FileHandler) GetFile(c *gin.Context) {
	f, err := h.files.Get(c.Request.Context(), c.Param("id"), middleware.Requester(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": h.resource(c, f)})
}

// GetSharedFile resolves share ids only, so record ids stay private.
func (h *FileHandler) GetSharedFile(c *gin.Context) {
	f, err := h.files.GetShared(c.Request.Context(), c.Param("shareId"), middleware.Requester(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": h.resource(c, f)})
}

type updateRequest struct {
	OriginalName *string `json:"original_name"`
	IsPublic     *bool   `json:"is_public"`
	// absent leaves the expiry alone, null clears it
	ExpiresAt json.RawMessage `json:"expires_at"`
}

func (h *FileHandler) UpdateFile(c *gin.Context) {
	id, ok := fileID(c)
	if !ok {
		return
	}
	var body updateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		validationFailed(c, "body", "invalid JSON body")
		return
	}

	u := store.FileUpdate{OriginalName: body.OriginalName, IsPublic: body.IsPublic}
	switch raw := bytes.TrimSpace(body.ExpiresAt); {
	case len(raw) == 0:
	case bytes.Equal(raw, []byte("null")):
		u.ClearExpiresAt = true
	default:
		var t time.Time
		if err := json.Unmarshal(raw, &t); err != nil {
			validationFailed(c, "expires_at", "must be an RFC 3339 timestamp or null")
			return
		}
		u.ExpiresAt = &t
	}

	f, err := h.files.Update(c.Request.Context(), id, middleware.Requester(c), u)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "File updated successfully",
		"data":    h.resource(c, f),
	})
}

func (h *FileHandler) ToggleVisibility(c *gin.Context) {
	id, ok := fileID(c)
	if !ok {
		return
	}
	f, err := h.files.ToggleVisibility(c.Request.Context(), id, middleware.Requester(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "File visibility updated successfully",
		"data":    h.resource(c, f),
	})
}

func (h *FileHandler) DeleteFile(c *gin.Context) {
	id, ok := fileID(c)
	if !ok {
		return
	}
	if err := h.files.Delete(c.Request.Context(), id, middleware.Requester(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "File deleted successfully"})
}

func (h *FileHandler) DownloadFile(c *gin.Context) {
	d, err := h.files.Download(c.Request.Context(), c.Param("shareId"), middleware.Requester(c), services.Client{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	defer d.Body.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": d.Name})
	c.DataFromReader(http.StatusOK, d.Size, d.MimeType, d.Body, map[string]string{
		"Content-Disposition":    disposition,
		"X-Content-Type-Options": "nosniff",
	})
}

func (h *FileHandler) ShareLink(c *gin.Context) {
	shareID := c.Param("shareId")
	link, err := h.files.ShareLink(c.Request.Context(), shareID, middleware.Requester(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"share_url": link,
			"qr_url":    "/api/files/share/" + shareID + "/qr",
		},
	})
}

// ShareQRCode renders the share link as a PNG.
func (h *FileHandler) ShareQRCode(c *gin.Context) {
	link, err := h.files.ShareLink(c.Request.Context(), c.Param("shareId"), middleware.Requester(c))
	if err != nil {
		writeError(c, err)
		return
	}
	png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "image/png", png)
}

func fileID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "File not found or access denied"})
		return uuid.Nil, false
	}
	return id, true
}

func queryBool(c *gin.Context, key string) bool {
	v, _ := strconv.ParseBool(c.Query(key))
	return v
}

func queryInt(c *gin.Context, key string) int {
	v, _ := strconv.Atoi(c.Query(key))
	return v
}
