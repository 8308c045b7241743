package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/atendezap/atendezap/internal/api/handler"
	"github.com/atendezap/atendezap/internal/api/middleware"
)

type Options struct {
	Env            string
	HealthHandler  *handler.HealthHandler
	WebhookHandler *handler.WebhookHandler
	RateLimit      middleware.RateLimitOption
}

func NewRouter(opts Options) *gin.Engine {
	if opts.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "apikey", "x-api-key", "x-webhook-signature", middleware.HeaderRequestID},
		MaxAge:       12 * time.Hour,
	}))

	root := router.Group("/")
	opts.HealthHandler.Register(root)

	ingest := router.Group("/")
	if opts.RateLimit.Enabled {
		ingest.Use(middleware.RateLimit(opts.RateLimit))
	}
	opts.WebhookHandler.Register(ingest)

	return router
}
