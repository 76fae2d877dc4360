package app

import (
	"github.com/gin-gonic/gin"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/middleware"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/modules/transform"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/pkg/response"
)

func (a *App) registerRoutes(svc *transform.Service) {
	r := a.router

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	api := r.Group("/api/v2")

	api.GET("/health", func(c *gin.Context) {
		status := "ok"
		if sqlDB, err := a.db.DB(); err != nil || sqlDB.Ping() != nil {
			status = "degraded"
		}
		response.OK(c, gin.H{"status": status})
	})

	transform.NewHandler(svc).RegisterRoutes(api, middleware.Auth())
}
