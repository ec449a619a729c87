package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/basit/mediashare-backend/auth/middleware"
	"github.com/basit/mediashare-backend/handlers"
)

func RegisterFileRoutes(r gin.IRouter, h *handlers.FileHandler, jwtSecret string) {
	fileGroup := r.Group("/api/files")
	fileGroup.Use(middleware.AuthOptional(jwtSecret)) // anonymous access unless a route says otherwise

	fileGroup.POST("", h.UploadFile)
	fileGroup.GET("", h.ListFiles)
	fileGroup.GET("/public/:shareId", h.GetSharedFile)
	fileGroup.GET("/download/:shareId", h.DownloadFile)
	fileGroup.GET("/share/:shareId/link", h.ShareLink)
	fileGroup.GET("/share/:shareId/qr", h.ShareQRCode)
	fileGroup.GET("/:id", h.GetFile)

	owner := fileGroup.Group("", middleware.AuthRequired(jwtSecret))
	owner.PUT("/:id", h.UpdateFile)
	owner.POST("/:id/toggle-visibility", h.ToggleVisibility)
	owner.DELETE("/:id", h.DeleteFile)
}
