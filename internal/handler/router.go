package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/rawsence/procheck/internal/middleware"
)

type RouterDeps struct {
	Uploads   *UploadHandler
	JWTSecret []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	authGroup.POST("/uploads", deps.Uploads.Create)
	authGroup.GET("/uploads", deps.Uploads.History)
	authGroup.DELETE("/uploads/previews", deps.Uploads.Clear)
	authGroup.GET("/uploads/:upload_id/status", deps.Uploads.Status)
	authGroup.GET("/uploads/:upload_id/preview", deps.Uploads.Preview)
	authGroup.POST("/uploads/:upload_id/approve", deps.Uploads.Approve)
	authGroup.POST("/uploads/:upload_id/regenerate", deps.Uploads.Regenerate)
	authGroup.POST("/uploads/:upload_id/cancel", deps.Uploads.Cancel)
}
