package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smsbatch/smsbatch/internal/api"
	v1 "github.com/smsbatch/smsbatch/internal/api/v1"
	"github.com/smsbatch/smsbatch/internal/config"
	"github.com/smsbatch/smsbatch/internal/httpclient"
	"github.com/smsbatch/smsbatch/internal/integration/textit"
	"github.com/smsbatch/smsbatch/internal/logger"
	"github.com/smsbatch/smsbatch/internal/metrics"
	"github.com/smsbatch/smsbatch/internal/sentry"
	"github.com/smsbatch/smsbatch/internal/service"
	"go.uber.org/fx"
)

// @title SMS Batch API
// @version 1.0
// @description Splits TextIt subscribers into batch groups
// @BasePath /api/v1
// @schemes http https

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	fx.New(appOptions()).Run()
}

// appOptions is the full dependency graph of the server
func appOptions() fx.Option {
	return fx.Options(
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Monitoring
			metrics.NewMetrics,

			// Remote messaging API
			httpclient.NewDefaultClient,
			textit.NewClient,

			// Services
			service.NewServiceParams,
			service.NewGroupProvisioner,
			service.NewSubscriberService,
			service.NewContactService,
			service.NewGroupService,

			// API
			provideHandlers,
			api.NewRouter,
		),
		sentry.Module(),
		fx.Invoke(startAPIServer),
	)
}

func provideHandlers(
	logger *logger.Logger,
	contactService service.ContactService,
	groupService service.GroupService,
	subscriberService service.SubscriberService,
) api.Handlers {
	return api.Handlers{
		Health:          v1.NewHealthHandler(logger),
		Contact:         v1.NewContactHandler(contactService, logger),
		Group:           v1.NewGroupHandler(groupService, logger),
		SubscriberGroup: v1.NewSubscriberGroupHandler(subscriberService, logger),
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server...", "address", cfg.Server.Address, "mode", cfg.Deployment.Mode)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			if cfg.Server.ShutdownTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
				defer cancel()
			}
			return srv.Shutdown(ctx)
		},
	})
}
