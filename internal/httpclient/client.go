package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/smsbatch/smsbatch/internal/config"
	ierr "github.com/smsbatch/smsbatch/internal/errors"
	"github.com/smsbatch/smsbatch/internal/logger"
	"github.com/smsbatch/smsbatch/internal/metrics"
	"golang.org/x/time/rate"
)

// Request represents an HTTP request
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    map[string]string
}

// Client interface for making HTTP requests
type Client interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// ClientConfig holds configuration for the HTTP client
type ClientConfig struct {
	Timeout time.Duration
	// RetryMax bounds retries of transport failures and 429 responses
	RetryMax int
	// RatePerSec caps outgoing requests per second, 0 disables the limiter
	RatePerSec int
}

// DefaultClient implements the Client interface on top of retryablehttp
type DefaultClient struct {
	client  *retryablehttp.Client
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

// NewDefaultClient creates the process wide client used for the messaging API
func NewDefaultClient(cfg *config.Configuration, log *logger.Logger, m *metrics.Metrics) Client {
	return NewClient(ClientConfig{
		Timeout:    cfg.TextIt.Timeout,
		RetryMax:   cfg.TextIt.RetryMax,
		RatePerSec: cfg.TextIt.RatePerSec,
	}, log, m)
}

// NewClient creates a DefaultClient from an explicit configuration
func NewClient(cfg ClientConfig, log *logger.Logger, m *metrics.Metrics) *DefaultClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.CheckRetry = retryPolicy
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = cfg.Timeout
	}
	rc.Logger = nil
	if log != nil {
		rc.Logger = log.GetRetryableHTTPLogger()
	}

	c := &DefaultClient{client: rc, metrics: m}
	if cfg.RatePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	return c
}

// retryPolicy retries transport failures and rate limited responses only.
// Server errors are returned to the caller, which knows whether the request
// is safe to repeat.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return resp.StatusCode == http.StatusTooManyRequests, nil
}

// Send makes an HTTP request and returns the response
func (c *DefaultClient) Send(ctx context.Context, req *Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Request cancelled while waiting for the rate limiter").
				Mark(ierr.ErrHTTPClient)
		}
	}

	var body interface{}
	if req.Body != nil {
		body = req.Body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Please check the request payload").
			Mark(ierr.ErrHTTPClient)
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.metrics.ObserveUpstream(req.Method, pathOf(req.URL), 0, time.Since(start))
		return nil, ierr.WithError(err).
			WithHint("Messaging API is unreachable").
			Mark(ierr.ErrHTTPClient)
	}
	defer resp.Body.Close()
	c.metrics.ObserveUpstream(req.Method, pathOf(req.URL), resp.StatusCode, time.Since(start))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to read the messaging API response").
			Mark(ierr.ErrHTTPClient)
	}

	headers := make(map[string]string)
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	// Return HTTP error for non-2xx responses
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewError(resp.StatusCode, respBody)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Headers:    headers,
	}, nil
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}
	return u.Path
}
