package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/odds-watch/internal/config"
)

// HTTPClientConfig holds configuration for the translation HTTP client
type HTTPClientConfig struct {
	URL               string
	APIKey            string
	SourceLang        string
	TargetLang        string
	Timeout           time.Duration
	MaxRetries        int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	RateLimit         float64 // requests per second
	CircuitBreakerMax int     // consecutive failures before the client stops calling out
}

// HTTPClientConfigFrom maps the translate config section onto client settings.
func HTTPClientConfigFrom(cfg config.TranslateConfig) HTTPClientConfig {
	c := DefaultHTTPClientConfig()
	c.URL = cfg.URL
	c.APIKey = cfg.APIKey
	if cfg.SourceLang != "" {
		c.SourceLang = cfg.SourceLang
	}
	if cfg.TargetLang != "" {
		c.TargetLang = cfg.TargetLang
	}
	if cfg.TimeoutSeconds > 0 {
		c.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if cfg.RetryAttempts > 0 {
		c.MaxRetries = cfg.RetryAttempts
	}
	if cfg.RequestsPerSecond > 0 {
		c.RateLimit = cfg.RequestsPerSecond
	}
	return c
}

// DefaultHTTPClientConfig returns recommended defaults
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		SourceLang:        "zh",
		TargetLang:        "en",
		Timeout:           10 * time.Second,
		MaxRetries:        3,
		RetryWaitMin:      200 * time.Millisecond,
		RetryWaitMax:      5 * time.Second,
		RateLimit:         2.0,
		CircuitBreakerMax: 5,
	}
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

// HTTPClient translates text through a LibreTranslate-compatible endpoint
// with retries, rate limiting and a consecutive-failure breaker.
type HTTPClient struct {
	cfg     HTTPClientConfig
	client  *retryablehttp.Client
	limiter *rate.Limiter
	logger  *logrus.Logger

	mu                sync.Mutex
	consecutiveErrors int
	isOpen            bool
	lastError         error
}

// NewHTTPClient creates a new rate-limited translation client
func NewHTTPClient(cfg HTTPClientConfig, logger *logrus.Logger) *HTTPClient {
	if logger == nil {
		logger = logrus.New()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.CheckRetry = customRetryPolicy()
	retryClient.Logger = nil

	return &HTTPClient{
		cfg:     cfg,
		client:  retryClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		logger:  logger,
	}
}

// Translate sends text to the service and returns the translated string.
func (c *HTTPClient) Translate(ctx context.Context, text string) (string, error) {
	if err := c.checkBreaker(); err != nil {
		return "", err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	body, err := json.Marshal(translateRequest{
		Q:      text,
		Source: c.cfg.SourceLang,
		Target: c.cfg.TargetLang,
		Format: "text",
		APIKey: c.cfg.APIKey,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.recordFailure(err)
		return "", fmt.Errorf("translate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("translate service returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
		if resp.StatusCode >= 500 {
			c.recordFailure(err)
		}
		return "", err
	}

	var out translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	c.recordSuccess()
	return out.TranslatedText, nil
}

// Close closes any resources held by the client
func (c *HTTPClient) Close() error {
	c.client.HTTPClient.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) checkBreaker() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isOpen {
		return fmt.Errorf("circuit breaker open: %v", c.lastError)
	}
	return nil
}

func (c *HTTPClient) recordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveErrors++
	c.lastError = err
	if c.cfg.CircuitBreakerMax > 0 && c.consecutiveErrors >= c.cfg.CircuitBreakerMax && !c.isOpen {
		c.isOpen = true
		c.logger.WithFields(logrus.Fields{
			"failures": c.consecutiveErrors,
			"error":    err.Error(),
		}).Warn("Translation circuit breaker opened")
	}
}

func (c *HTTPClient) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveErrors = 0
	c.isOpen = false
}

// customRetryPolicy defines which HTTP responses should trigger a retry
func customRetryPolicy() retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, err
		}

		// Retry on rate limit (429) and server errors
		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true, nil
		}

		return false, nil
	}
}
