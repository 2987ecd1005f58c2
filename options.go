package ftp

import (
	"errors"
	"log/slog"
	"net"
	"time"
)

// Option configures a Client.
type Option func(*Client) error

// WithTimeout sets the timeout for control commands and data connection
// setup. The default is 30 seconds.
//
// Example:
//
//	client, err := ftp.Dial("localhost:2121", ftp.WithTimeout(5*time.Second))
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout < 0 {
			return errors.New("timeout must not be negative")
		}
		c.timeout = timeout
		return nil
	}
}

// WithLogger enables debug logging of commands and replies. Passwords are
// masked.
//
// Example:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	client, err := ftp.Dial("localhost:2121", ftp.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			return errors.New("logger is nil")
		}
		c.logger = logger
		return nil
	}
}

// WithDialer sets the dialer used for the control and passive data
// connections.
func WithDialer(dialer *net.Dialer) Option {
	return func(c *Client) error {
		if dialer == nil {
			return errors.New("dialer is nil")
		}
		c.dialer = dialer
		return nil
	}
}

// WithActiveMode makes transfers use PORT: the client listens and the server
// connects back. The default is passive mode.
func WithActiveMode() Option {
	return func(c *Client) error {
		c.activeMode = true
		return nil
	}
}
