package api

import (
	"github.com/gin-gonic/gin"

	accountdelivery "jobtrail-backend/internal/account/delivery"
	accountrepo "jobtrail-backend/internal/account/repository"
	accountusecase "jobtrail-backend/internal/account/usecase"
	trackerdelivery "jobtrail-backend/internal/tracker/delivery"
	trackerusecase "jobtrail-backend/internal/tracker/usecase"
)

type Handler struct {
	authHandler    *accountdelivery.AuthHandler
	trackerHandler *trackerdelivery.TrackerHandler
}

func NewHandler(authUc accountusecase.AuthUsecase, syncUc trackerusecase.SyncUsecase, accountRepo accountrepo.AccountRepository) *Handler {
	return &Handler{
		authHandler:    accountdelivery.NewAuthHandler(authUc),
		trackerHandler: trackerdelivery.NewTrackerHandler(syncUc, accountRepo),
	}
}

func (h *Handler) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.authHandler, h.trackerHandler)

	return r.Run(addr)
}
