package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/fire-team/ticket-router/internal/config"
	"github.com/fire-team/ticket-router/internal/http/handlers"
	"github.com/fire-team/ticket-router/internal/http/middleware"

	_ "github.com/fire-team/ticket-router/docs"
)

func Router(cfg config.Config, h *handlers.Handler, logger zerolog.Logger) *gin.Engine {
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			middleware.AdminKeyHeader, middleware.RequestIDHeader, handlers.IdempotencyKeyHeader,
		},
		ExposeHeaders:    []string{middleware.RequestIDHeader, handlers.ReplayedHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	adminOnly := middleware.AdminKey(cfg.AdminKey)
	bounded := middleware.Timeout(cfg.RequestTimeout)

	r.GET("/healthz", bounded, h.Healthz)

	api := r.Group("/api/v1")
	// Intake batches run to completion; tickets already started are never
	// cut off by the request deadline.
	api.POST("/intake/tickets", adminOnly, h.IntakeTickets)

	timed := api.Group("", bounded)
	{
		timed.POST("/intake/events", h.IntakeEvent)
		timed.GET("/intake/results", h.IntakeResults)
		timed.GET("/tickets/:id", h.TicketDetails)
		timed.POST("/tickets/:id/assign", h.AssignTicket)
		timed.GET("/managers", h.ManagersList)
		timed.GET("/offices", h.OfficesList)
		timed.GET("/debug/routing", adminOnly, h.DebugRouting)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
