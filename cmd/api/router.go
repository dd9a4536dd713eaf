package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	accountdelivery "jobtrail-backend/internal/account/delivery"
	trackerdelivery "jobtrail-backend/internal/tracker/delivery"
)

func SetupRoutes(r *gin.Engine, authHandler *accountdelivery.AuthHandler, trackerHandler *trackerdelivery.TrackerHandler) {
	// Health check (no auth required)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// OAuth flow
	r.GET("/auth", authHandler.Auth)
	r.GET("/oauth2callback", authHandler.Callback)

	// Sync trigger
	r.GET("/emails", trackerHandler.TriggerSync)
}
