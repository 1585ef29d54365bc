package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/customeros/mailnotify/interfaces"
	"github.com/customeros/mailnotify/internal/enum"
)

// HealthCheck provides a simple health check endpoint
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Status returns the poll loop state. A stopped loop answers 503.
func Status(notifier interfaces.NotifierService) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := notifier.Status()
		code := http.StatusOK
		if status.LoopState == enum.LoopStopped {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	}
}
