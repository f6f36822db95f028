// Package realtime receives conversation changes over a websocket.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zfogg/nearby/cli/pkg/client"
	"github.com/zfogg/nearby/cli/pkg/logger"
)

// Config holds WebSocket client configuration
type Config struct {
	URL                  string
	ConnectTimeout       time.Duration
	HeartbeatInterval    time.Duration
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	MaxReconnectAttempts int // negative means unlimited
	Buffer               int
}

// DefaultConfig returns the configuration used against url.
func DefaultConfig(url string) Config {
	return Config{
		URL:                  url,
		ConnectTimeout:       15 * time.Second,
		HeartbeatInterval:    30 * time.Second,
		ReconnectBaseDelay:   2 * time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		MaxReconnectAttempts: -1,
		Buffer:               64,
	}
}

// ConnectionState represents the state of the WebSocket connection
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ConnectionStats holds connection statistics
type ConnectionStats struct {
	MessagesReceived int64
	MessagesSent     int64
	ReconnectCount   int
	LastError        string
	ConnectedAt      time.Time
	DisconnectedAt   time.Time
}

// ErrClosed is returned when using a closed client.
var ErrClosed = errors.New("realtime: client closed")

// Client manages one websocket connection and its reconnects. Events are
// delivered on Events until Close.
type Client struct {
	config Config
	tokens client.TokenSource

	state atomic.Int32

	mu      sync.Mutex // guards conn
	conn    *websocket.Conn
	writeMu sync.Mutex

	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	statsMu sync.Mutex
	stats   ConnectionStats
}

// NewClient creates a client. tokens authenticates the socket.
func NewClient(config Config, tokens client.TokenSource) *Client {
	if config.Buffer <= 0 {
		config.Buffer = 64
	}
	if config.ReconnectBaseDelay <= 0 {
		config.ReconnectBaseDelay = 2 * time.Second
	}
	if config.ReconnectMaxDelay < config.ReconnectBaseDelay {
		config.ReconnectMaxDelay = config.ReconnectBaseDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		config: config,
		tokens: tokens,
		events: make(chan Event, config.Buffer),
		ctx:    ctx,
		cancel: cancel,
	}
	c.setState(StateDisconnected)
	return c
}

// Events returns the event stream. It is closed after Close.
func (c *Client) Events() <-chan Event {
	return c.events
}

// State returns the connection state.
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Stats returns connection statistics
func (c *Client) Stats() ConnectionStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// Connect dials the server and starts the read and heartbeat loops.
func (c *Client) Connect(ctx context.Context) error {
	if c.State() == StateClosed {
		return ErrClosed
	}
	c.setState(StateConnecting)

	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(StateDisconnected)
		c.recordError(err)
		return err
	}
	if !c.attach(conn) {
		return ErrClosed
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.heartbeatLoop()

	logger.Debug("WebSocket connected", "url", c.config.URL)
	return nil
}

// Close stops the loops, closes the socket and the event channel.
func (c *Client) Close() error {
	if ConnectionState(c.state.Swap(int32(StateClosed))) == StateClosed {
		return nil
	}
	c.cancel()

	c.mu.Lock()
	if c.conn != nil {
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
	close(c.events)
	c.recordDisconnected()
	logger.Debug("WebSocket closed")
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket url: %w", err)
	}

	// Add authentication token
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return nil, err
		}
		if token != "" {
			q := u.Query()
			q.Set("token", token)
			u.RawQuery = q.Encode()
		}
	}

	if c.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	return conn, err
}

// attach installs conn unless the client is closing.
func (c *Client) attach(conn *websocket.Conn) bool {
	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		conn.Close()
		return false
	}
	c.conn = conn
	c.mu.Unlock()
	c.setState(StateConnected)
	c.recordConnected()
	return true
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) send(v interface{}) error {
	conn := c.current()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	c.statsMu.Lock()
	c.stats.MessagesSent++
	c.statsMu.Unlock()
	return nil
}

func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		conn := c.current()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.recordError(err)
			logger.Warn("WebSocket read error", "error", err)
			if !c.reconnect() {
				return
			}
			continue
		}

		c.statsMu.Lock()
		c.stats.MessagesReceived++
		c.statsMu.Unlock()

		ev, err := Decode(data)
		if err != nil {
			if !errors.Is(err, errIgnored) {
				logger.Debug("Dropping frame", "error", err)
			}
			continue
		}

		select {
		case c.events <- ev:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) heartbeatLoop() {
	defer c.wg.Done()
	if c.config.HeartbeatInterval <= 0 {
		return
	}

	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if c.State() == StateConnected {
				if err := c.send(frame{Type: TypeHeartbeat}); err != nil {
					logger.Debug("Failed to send heartbeat", "error", err)
				}
			}
		}
	}
}

// reconnect replaces a dead connection with exponential backoff. It
// returns false when the client is closing or attempts are exhausted.
func (c *Client) reconnect() bool {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.setState(StateReconnecting)
	c.recordDisconnected()

	delay := c.config.ReconnectBaseDelay
	for attempt := 0; c.config.MaxReconnectAttempts < 0 || attempt < c.config.MaxReconnectAttempts; attempt++ {
		// Calculate backoff delay with jitter
		wait := delay + time.Duration(rand.Int63n(int64(delay)/4+1))
		logger.Debug("Reconnecting WebSocket", "attempt", attempt+1, "wait_ms", wait.Milliseconds())

		select {
		case <-c.ctx.Done():
			return false
		case <-time.After(wait):
		}

		conn, err := c.dial(c.ctx)
		if err != nil {
			c.recordError(err)
			delay *= 2
			if delay > c.config.ReconnectMaxDelay {
				delay = c.config.ReconnectMaxDelay
			}
			continue
		}

		if !c.attach(conn) {
			return false
		}
		c.statsMu.Lock()
		c.stats.ReconnectCount++
		c.statsMu.Unlock()
		logger.Debug("WebSocket reconnected")
		return true
	}

	logger.Error("Max reconnection attempts reached")
	c.setState(StateDisconnected)
	return false
}

func (c *Client) setState(state ConnectionState) {
	if c.State() == StateClosed && state != StateClosed {
		return
	}
	c.state.Store(int32(state))
}

func (c *Client) recordError(err error) {
	c.statsMu.Lock()
	c.stats.LastError = err.Error()
	c.statsMu.Unlock()
}

func (c *Client) recordConnected() {
	c.statsMu.Lock()
	c.stats.ConnectedAt = time.Now()
	c.statsMu.Unlock()
}

func (c *Client) recordDisconnected() {
	c.statsMu.Lock()
	c.stats.DisconnectedAt = time.Now()
	c.statsMu.Unlock()
}
