// Package natsclient manages the NATS connection used to receive
// registry change events and publish label delta notifications.
package natsclient

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/arturpragacz/labelgraph/errors"
)

// ConnectionStatus represents the state of the NATS connection.
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusClosed
)

// String returns the string representation of ConnectionStatus.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client wraps a NATS connection with status tracking and drain-aware
// shutdown.
type Client struct {
	url    string
	logger *slog.Logger

	clientName    string
	timeout       time.Duration
	reconnectWait time.Duration
	maxReconnects int
	drainTimeout  time.Duration

	onReconnect  func()
	onDisconnect func(error)

	status atomic.Int32

	mu   sync.RWMutex
	conn *nats.Conn
	subs []*nats.Subscription

	closed atomic.Bool
}

// NewClient creates a client for the given NATS URL. The connection is
// not established until Connect is called.
func NewClient(url string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "natsclient", "NewClient",
			"url must not be empty")
	}

	c := &Client{
		url:           url,
		logger:        slog.Default().With("component", "natsclient"),
		clientName:    "labelgraph",
		timeout:       5 * time.Second,
		reconnectWait: 2 * time.Second,
		maxReconnects: -1,
		drainTimeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.status.Store(int32(StatusDisconnected))
	return c, nil
}

// Connect establishes the NATS connection.
func (c *Client) Connect() error {
	if c.closed.Load() {
		return errors.WrapTransient(errors.ErrShuttingDown, "natsclient", "Connect",
			"client already closed")
	}

	c.status.Store(int32(StatusConnecting))

	conn, err := nats.Connect(c.url,
		nats.Name(c.clientName),
		nats.Timeout(c.timeout),
		nats.ReconnectWait(c.reconnectWait),
		nats.MaxReconnects(c.maxReconnects),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.status.Store(int32(StatusReconnecting))
			c.logger.Warn("nats disconnected", "error", err)
			if c.onDisconnect != nil {
				c.onDisconnect(err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.status.Store(int32(StatusConnected))
			c.logger.Info("nats reconnected", "url", nc.ConnectedUrl())
			if c.onReconnect != nil {
				c.onReconnect()
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.status.Store(int32(StatusClosed))
		}),
	)
	if err != nil {
		c.status.Store(int32(StatusDisconnected))
		return errors.WrapTransient(err, "natsclient", "Connect",
			fmt.Sprintf("connecting to %s", c.url))
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.status.Store(int32(StatusConnected))
	c.logger.Info("nats connected", "url", conn.ConnectedUrl())
	return nil
}

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	return ConnectionStatus(c.status.Load())
}

// IsConnected reports whether the connection is usable.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Publish sends a message on the given subject.
func (c *Client) Publish(subject string, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return errors.WrapTransient(errors.ErrNoConnection, "natsclient", "Publish",
			fmt.Sprintf("publishing to %s", subject))
	}
	if err := conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "natsclient", "Publish",
			fmt.Sprintf("publishing to %s", subject))
	}
	return nil
}

// Subscribe registers a handler for a subject. Subscriptions are
// drained on Close.
func (c *Client) Subscribe(subject string, handler nats.MsgHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errors.WrapTransient(errors.ErrNoConnection, "natsclient", "Subscribe",
			fmt.Sprintf("subscribing to %s", subject))
	}
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return errors.WrapTransient(errors.ErrSubscriptionFailed, "natsclient", "Subscribe",
			fmt.Sprintf("subscribing to %s: %v", subject, err))
	}
	c.subs = append(c.subs, sub)
	return nil
}

// Close drains in-flight messages and closes the connection. It is
// safe to call more than once.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.subs = nil
	c.mu.Unlock()

	if conn == nil {
		c.status.Store(int32(StatusClosed))
		return nil
	}

	if err := conn.Drain(); err != nil {
		conn.Close()
		c.status.Store(int32(StatusClosed))
		return errors.WrapTransient(err, "natsclient", "Close", "draining connection")
	}
	c.status.Store(int32(StatusClosed))
	return nil
}
