// Package browser drives the headless Chrome session a source is scraped through.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/odds-watch/internal/config"
)

// ErrSessionClosed is returned when the session has not been started or was closed.
var ErrSessionClosed = errors.New("browser session closed")

// Session owns one Chrome process and the tab the source page is loaded in.
type Session struct {
	cfg    config.BrowserConfig
	logger *logrus.Logger

	mu          sync.Mutex
	ctx         context.Context
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	url         string
}

// NewSession creates a session; Chrome is not launched until Start.
func NewSession(cfg config.BrowserConfig, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	return &Session{cfg: cfg, logger: logger}
}

// AllocatorOptions builds the Chrome flags for the configured session.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	return opts
}

// Start launches Chrome and loads url in a fresh tab.
func (s *Session) Start(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), AllocatorOptions(s.cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, v ...interface{}) {
		s.logger.WithField("component", "chromedp").Debugf(format, v...)
	}))

	s.ctx = tabCtx
	s.allocCancel = allocCancel
	s.tabCancel = tabCancel
	s.url = url

	if err := s.runLocked(ctx, chromedp.Navigate(url)); err != nil {
		s.closeLocked()
		return fmt.Errorf("failed to open %s: %w", url, err)
	}

	s.logger.WithField("url", url).Info("Browser session started")
	return nil
}

// Restart closes the current Chrome process and starts a new one on the same page.
func (s *Session) Restart(ctx context.Context) error {
	s.mu.Lock()
	url := s.url
	s.mu.Unlock()

	if url == "" {
		return ErrSessionClosed
	}
	return s.Start(ctx, url)
}

// OuterHTML waits for selector to be ready and returns the element's markup.
func (s *Session) OuterHTML(ctx context.Context, selector string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var html string
	err := s.runLocked(ctx,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.OuterHTML(selector, &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("failed to read %q: %w", selector, err)
	}
	return html, nil
}

// Close shuts the tab and the Chrome process.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()
	return nil
}

func (s *Session) runLocked(ctx context.Context, actions ...chromedp.Action) error {
	if s.ctx == nil {
		return ErrSessionClosed
	}

	runCtx, cancel := context.WithTimeout(s.ctx, s.waitTimeout())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (s *Session) waitTimeout() time.Duration {
	if s.cfg.WaitTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.cfg.WaitTimeoutSeconds) * time.Second
}

func (s *Session) closeLocked() {
	if s.tabCancel != nil {
		s.tabCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.ctx = nil
	s.tabCancel = nil
	s.allocCancel = nil
}

// IsConnectionError reports whether err means the browser or page endpoint is unreachable.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, ErrSessionClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "max retries exceeded") ||
		strings.Contains(msg, "net::err_connection")
}
