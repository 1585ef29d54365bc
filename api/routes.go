package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailnotify/api/middleware"
	"github.com/customeros/mailnotify/api/rest/handlers"
	"github.com/customeros/mailnotify/interfaces"
	"github.com/customeros/mailnotify/internal/tracing"
)

// RegisterRoutes sets up the health and status endpoints
func RegisterRoutes(r *gin.Engine, notifier interfaces.NotifierService) {
	if notifier == nil {
		panic("Notifier cannot be nil")
	}

	// Add recovery middlewares
	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	r.GET("/health", handlers.HealthCheck)
	r.GET("/status", middleware.TracingMiddleware(), handlers.Status(notifier))
}
