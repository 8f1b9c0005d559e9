package testutil

import (
	"context"
	"time"

	"github.com/smsbatch/smsbatch/internal/config"
	"github.com/smsbatch/smsbatch/internal/logger"
	"github.com/smsbatch/smsbatch/internal/metrics"
	"github.com/smsbatch/smsbatch/internal/sentry"
	"github.com/smsbatch/smsbatch/internal/types"
	"github.com/smsbatch/smsbatch/internal/validator"
	"github.com/stretchr/testify/suite"
)

const (
	TestAPIToken            = "test-token"
	TestAllSubscribersGroup = "all-subscribers"
)

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	textit  *InMemoryTextIt
	logger  *logger.Logger
	config  *config.Configuration
	metrics *metrics.Metrics
	sentry  *sentry.Service
	now     time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()
	s.logger = logger.NewNopLogger()
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.config = NewTestConfig()
	s.textit = NewInMemoryTextIt(TestAPIToken)
	s.metrics = metrics.NewMetrics()
	s.sentry = sentry.NewSentryService(s.config, s.logger)
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.textit = nil
}

func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

func (s *BaseServiceTestSuite) GetTextIt() *InMemoryTextIt {
	return s.textit
}

func (s *BaseServiceTestSuite) GetMetrics() *metrics.Metrics {
	return s.metrics
}

func (s *BaseServiceTestSuite) GetSentry() *sentry.Service {
	return s.sentry
}

func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}

// NewTestConfig returns the default configuration with test credentials,
// no client cache and no provisioning retries.
func NewTestConfig() *config.Configuration {
	cfg := config.GetDefaultConfig()
	cfg.TextIt.BaseURL = FakeTextItBaseURL
	cfg.TextIt.APIToken = TestAPIToken
	cfg.TextIt.AllSubscribersGroup = TestAllSubscribersGroup
	cfg.TextIt.CacheTTL = 0
	cfg.Ingestion.RetryMax = 0
	cfg.Logging.Level = types.LogLevelInfo
	return cfg
}
