// Package stream implements a WebSocket client for live quote feeds.
// Backtests never use it; it exists so the same universe can be watched
// in real time with the instruments a strategy selected.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Quote is one live price tick for an instrument.
type Quote struct {
	Code      string    `json:"code"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientConfig configures feed client behavior.
type ClientConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential backoff between attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultClientConfig returns the default feed configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Client maintains a WebSocket connection to a quote feed. It
// reconnects with exponential backoff and resubscribes to the watched
// codes after each reconnect.
type Client struct {
	endpoint string
	config   ClientConfig
	log      *logrus.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	// watched codes, kept for resubscription after reconnect
	codes   map[string]struct{}
	codesMu sync.Mutex

	quotes chan Quote
	done   chan struct{}
	wg     sync.WaitGroup

	reconnecting atomic.Bool
}

// Dial connects to the feed endpoint and starts the read and ping
// loops. Quotes arrive on Quotes() once codes are subscribed.
func Dial(ctx context.Context, endpoint string, config *ClientConfig, log *logrus.Logger) (*Client, error) {
	cfg := DefaultClientConfig()
	if config != nil {
		cfg = *config
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	c := &Client{
		endpoint: endpoint,
		config:   cfg,
		log:      log,
		codes:    make(map[string]struct{}),
		quotes:   make(chan Quote, 1024),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// Quotes returns the channel delivering live ticks. It is closed when
// the client shuts down.
func (c *Client) Quotes() <-chan Quote {
	return c.quotes
}

// Subscribe starts streaming quotes for the given instrument codes.
// Codes accumulate across calls; subscribing twice is harmless.
func (c *Client) Subscribe(codes ...string) error {
	if c.closed.Load() {
		return fmt.Errorf("client closed")
	}

	c.codesMu.Lock()
	for _, code := range codes {
		c.codes[code] = struct{}{}
	}
	c.codesMu.Unlock()

	return c.send(feedRequest{Op: "subscribe", Codes: codes})
}

// Unsubscribe stops streaming quotes for the given codes.
func (c *Client) Unsubscribe(codes ...string) error {
	if c.closed.Load() {
		return fmt.Errorf("client closed")
	}

	c.codesMu.Lock()
	for _, code := range codes {
		delete(c.codes, code)
	}
	c.codesMu.Unlock()

	return c.send(feedRequest{Op: "unsubscribe", Codes: codes})
}

// Close shuts down the connection and closes the quote channel.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.quotes)
	return nil
}

func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

func (c *Client) send(req feedRequest) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

// readLoop reads feed messages and delivers quotes, triggering
// reconnects on connection errors.
func (c *Client) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

func (c *Client) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.log.WithError(err).Warn("feed reconnect failed, will retry")
		return
	}

	// Restore the watch list on the fresh connection.
	c.codesMu.Lock()
	codes := make([]string, 0, len(c.codes))
	for code := range c.codes {
		codes = append(codes, code)
	}
	c.codesMu.Unlock()

	if len(codes) > 0 {
		if err := c.send(feedRequest{Op: "subscribe", Codes: codes}); err != nil {
			c.log.WithError(err).Warn("feed resubscribe failed")
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var msg feedMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.log.WithError(err).Debug("unparseable feed message")
		return
	}

	switch msg.Type {
	case "quote":
		if msg.Quote == nil {
			return
		}
		// Block rather than drop; the buffer absorbs bursts.
		select {
		case c.quotes <- *msg.Quote:
		case <-c.done:
		}
	case "error":
		c.log.WithField("message", msg.Message).Warn("feed error")
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Reader notices the dead connection and reconnects.
					c.log.WithError(err).Debug("ping write failed")
				}
			}
			c.connMu.Unlock()
		}
	}
}

// Feed wire types.

type feedRequest struct {
	Op    string   `json:"op"`
	Codes []string `json:"codes"`
}

type feedMessage struct {
	Type    string `json:"type"`
	Quote   *Quote `json:"quote,omitempty"`
	Message string `json:"message,omitempty"`
}
