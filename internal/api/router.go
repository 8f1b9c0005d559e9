package api

import (
	"github.com/gin-gonic/gin"
	v1 "github.com/smsbatch/smsbatch/internal/api/v1"
	"github.com/smsbatch/smsbatch/internal/config"
	"github.com/smsbatch/smsbatch/internal/logger"
	"github.com/smsbatch/smsbatch/internal/metrics"
	"github.com/smsbatch/smsbatch/internal/rest/middleware"
	"github.com/smsbatch/smsbatch/internal/sentry"
	"github.com/smsbatch/smsbatch/internal/types"
)

type Handlers struct {
	Health          *v1.HealthHandler
	Contact         *v1.ContactHandler
	Group           *v1.GroupHandler
	SubscriberGroup *v1.SubscriberGroupHandler
}

func NewRouter(
	handlers Handlers,
	cfg *config.Configuration,
	logger *logger.Logger,
	sentryService *sentry.Service,
	m *metrics.Metrics,
) *gin.Engine {
	if cfg.Deployment.Mode != types.ModeLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.SentryMiddleware(cfg),
		middleware.LoggingMiddleware(logger),
		middleware.ErrorHandler(logger, sentryService),
	)

	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// v1 routes
	v1Group := router.Group("/api/v1")
	registerV1Routes(v1Group, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	contacts := router.Group("/contacts")
	{
		contacts.GET("", handlers.Contact.ListContacts)
		contacts.GET("/:id", handlers.Contact.GetContact)
	}

	groups := router.Group("/groups")
	{
		groups.GET("", handlers.Group.GetGroupByName)
		groups.GET("/:id", handlers.Group.GetGroup)
		groups.DELETE("/:id", handlers.Group.DeleteGroup)
	}

	router.POST("/subscriber-groups", handlers.SubscriberGroup.CreateSubscriberGroups)
}
