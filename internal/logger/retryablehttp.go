package logger

import "github.com/hashicorp/go-retryablehttp"

// retryableHTTPLogger adapts our Logger to retryablehttp's leveled logging interface
type retryableHTTPLogger struct {
	logger *Logger
}

// GetRetryableHTTPLogger returns a retryablehttp-compatible logger
func (l *Logger) GetRetryableHTTPLogger() retryablehttp.LeveledLogger {
	return &retryableHTTPLogger{logger: l}
}

func (r *retryableHTTPLogger) Debug(msg string, keyvals ...interface{}) {
	r.logger.Debugw(msg, keyvals...)
}

func (r *retryableHTTPLogger) Info(msg string, keyvals ...interface{}) {
	r.logger.Infow(msg, keyvals...)
}

func (r *retryableHTTPLogger) Warn(msg string, keyvals ...interface{}) {
	r.logger.Warnw(msg, keyvals...)
}

func (r *retryableHTTPLogger) Error(msg string, keyvals ...interface{}) {
	r.logger.Errorw(msg, keyvals...)
}
