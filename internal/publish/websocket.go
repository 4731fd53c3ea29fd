package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/odds-watch/internal/models"
)

// Envelope is the frame written for every batch. Data carries the encoded
// batch as a string, the way consumers of the live feed expect it.
type Envelope struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

// ReconnectConfig controls reconnection behavior
type ReconnectConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultReconnectConfig returns default reconnection configuration
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:        3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2,
	}
}

// WebSocketPublisher pushes batches over a websocket connection and
// reconnects when the connection drops.
type WebSocketPublisher struct {
	url             string
	conn            *websocket.Conn
	mu              sync.Mutex
	isConnected     bool
	writeTimeout    time.Duration
	reconnectConfig ReconnectConfig
	lastSendTime    time.Time
	logger          *logrus.Logger
}

// NewWebSocketPublisher creates a publisher for the given ws:// or wss:// URL
func NewWebSocketPublisher(url string, writeTimeout time.Duration, reconnect ReconnectConfig, logger *logrus.Logger) *WebSocketPublisher {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &WebSocketPublisher{
		url:             url,
		writeTimeout:    writeTimeout,
		reconnectConfig: reconnect,
		logger:          logger,
	}
}

// Connect establishes the websocket connection
func (p *WebSocketPublisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectLocked(ctx)
}

func (p *WebSocketPublisher) connectLocked(ctx context.Context) error {
	if p.isConnected {
		return nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", p.url, err)
	}

	p.conn = conn
	p.isConnected = true
	p.logger.WithField("url", p.url).Info("Connected to downstream feed")

	go p.readMessages(conn)
	return nil
}

// readMessages drains incoming frames so control frames are processed and
// a closed connection is noticed.
func (p *WebSocketPublisher) readMessages(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			p.mu.Lock()
			if p.conn == conn {
				p.isConnected = false
				p.conn = nil
			}
			p.mu.Unlock()
			_ = conn.Close()
			p.logger.WithField("error", err.Error()).Debug("Downstream feed connection closed")
			return
		}
	}
}

// Publish writes the batch, reconnecting with back-off when needed.
func (p *WebSocketPublisher) Publish(ctx context.Context, batch *models.Batch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}
	frame := Envelope{Event: "message", Data: string(data)}

	backoff := p.reconnectConfig.InitialBackoff
	var lastErr error
	for attempt := 0; attempt <= p.reconnectConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff, p.reconnectConfig)
		}

		if lastErr = p.send(ctx, frame); lastErr == nil {
			return nil
		}
		p.logger.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"error":   lastErr.Error(),
		}).Warn("Downstream publish failed")
	}
	return lastErr
}

func (p *WebSocketPublisher) send(ctx context.Context, frame Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connectLocked(ctx); err != nil {
		return err
	}

	_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
	if err := p.conn.WriteJSON(frame); err != nil {
		_ = p.conn.Close()
		p.conn = nil
		p.isConnected = false
		return fmt.Errorf("write failed: %w", err)
	}
	p.lastSendTime = time.Now()
	return nil
}

func nextBackoff(current time.Duration, cfg ReconnectConfig) time.Duration {
	next := time.Duration(float64(current) * cfg.BackoffMultiplier)
	if next > cfg.MaxBackoff {
		return cfg.MaxBackoff
	}
	return next
}

// IsConnected returns whether the feed is connected
func (p *WebSocketPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isConnected
}

// LastSendTime returns the time of the last successful write
func (p *WebSocketPublisher) LastSendTime() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSendTime
}

// Close closes the connection
func (p *WebSocketPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	p.isConnected = false
	err := p.conn.Close()
	p.conn = nil
	return err
}
