package natsclient

import (
	"log/slog"
	"time"
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger.With("component", "natsclient")
		}
	}
}

// WithName sets the client connection name visible to the server.
func WithName(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.clientName = name
		}
	}
}

// WithTimeout sets the connect timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithReconnectWait sets the delay between reconnect attempts.
func WithReconnectWait(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.reconnectWait = d
		}
	}
}

// WithMaxReconnects limits reconnect attempts; negative means retry
// forever.
func WithMaxReconnects(n int) Option {
	return func(c *Client) { c.maxReconnects = n }
}

// WithDrainTimeout bounds how long Close waits for in-flight messages.
func WithDrainTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.drainTimeout = d
		}
	}
}

// WithReconnectCallback registers a callback invoked after the
// connection is reestablished.
func WithReconnectCallback(fn func()) Option {
	return func(c *Client) { c.onReconnect = fn }
}

// WithDisconnectCallback registers a callback invoked when the
// connection drops.
func WithDisconnectCallback(fn func(error)) Option {
	return func(c *Client) { c.onDisconnect = fn }
}
