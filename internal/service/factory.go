package service

import (
	"github.com/smsbatch/smsbatch/internal/config"
	"github.com/smsbatch/smsbatch/internal/integration/textit"
	"github.com/smsbatch/smsbatch/internal/logger"
	"github.com/smsbatch/smsbatch/internal/metrics"
	"github.com/smsbatch/smsbatch/internal/sentry"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger  *logger.Logger
	Config  *config.Configuration
	TextIt  textit.Client
	Metrics *metrics.Metrics
	Sentry  *sentry.Service
}

// NewServiceParams creates a new ServiceParams instance
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	textIt textit.Client,
	metrics *metrics.Metrics,
	sentryService *sentry.Service,
) ServiceParams {
	return ServiceParams{
		Logger:  logger,
		Config:  config,
		TextIt:  textIt,
		Metrics: metrics,
		Sentry:  sentryService,
	}
}
