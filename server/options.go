package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/gonzalop/ftpjail/internal/ratelimit"
)

// Option is a functional option for configuring an FTP server.
type Option func(*Server) error

// WithUsers sets the account table. This option is required.
func WithUsers(users *UserDirectory) Option {
	return func(s *Server) error {
		if users == nil {
			return errors.New("user directory is nil")
		}
		if s.users != nil {
			return errors.New("user directory already set")
		}
		s.users = users
		return nil
	}
}

// WithLogger sets a custom logger. If not specified, slog.Default() is used.
//
// Example with debug logging:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	s, _ := server.NewServer(":2121",
//	    server.WithUsers(users),
//	    server.WithLogger(logger),
//	)
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			return errors.New("logger is nil")
		}
		s.logger = logger
		return nil
	}
}

// WithWelcomeMessage sets the text of the 220 greeting.
func WithWelcomeMessage(msg string) Option {
	return func(s *Server) error {
		msg = strings.TrimPrefix(strings.TrimPrefix(msg, "220"), " ")
		if msg == "" {
			return errors.New("welcome message is empty")
		}
		s.welcomeMessage = msg
		return nil
	}
}

// WithDataPort makes every passive listener bind this fixed port. Only one
// passive transfer can be pending at a time with a fixed port.
func WithDataPort(port int) Option {
	return func(s *Server) error {
		if port < 0 || port > 65535 {
			return fmt.Errorf("invalid data port %d", port)
		}
		s.dataPort = port
		return nil
	}
}

// WithPassivePortRange restricts passive listeners to [min, max]. Ports are
// handed out round-robin. It takes precedence over WithDataPort.
//
// Example:
//
//	s, _ := server.NewServer(":2121",
//	    server.WithUsers(users),
//	    server.WithPassivePortRange(50000, 50100),
//	)
func WithPassivePortRange(min, max int) Option {
	return func(s *Server) error {
		if min <= 0 || max > 65535 || min > max {
			return fmt.Errorf("invalid passive port range [%d, %d]", min, max)
		}
		s.pasvMinPort = min
		s.pasvMaxPort = max
		return nil
	}
}

// WithPublicHost sets the address announced in PASV replies, for servers
// behind NAT. Host names are resolved to IPv4 on first use.
func WithPublicHost(host string) Option {
	return func(s *Server) error {
		if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
			return fmt.Errorf("public host %q is not an IPv4 address", host)
		}
		s.publicHost = host
		return nil
	}
}

// WithDataConnTimeout bounds how long PASV waits for the client to connect
// and how long PORT waits to dial. Defaults to 30 seconds.
func WithDataConnTimeout(d time.Duration) Option {
	return func(s *Server) error {
		if d <= 0 {
			return fmt.Errorf("invalid data connection timeout %s", d)
		}
		s.dataConnTimeout = d
		return nil
	}
}

// WithMaxIdleTime sets how long a control connection may wait for the next
// command. Defaults to 5 minutes. Ignored when WithReadTimeout is set.
func WithMaxIdleTime(d time.Duration) Option {
	return func(s *Server) error {
		s.maxIdleTime = d
		return nil
	}
}

// WithReadTimeout sets the deadline for each read on control and data
// connections. If 0, no timeout is applied.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) error {
		s.readTimeout = d
		return nil
	}
}

// WithWriteTimeout sets the deadline for each write on control and data
// connections. If 0, no timeout is applied.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) error {
		s.writeTimeout = d
		return nil
	}
}

// WithMaxConnections limits simultaneous control connections in total and per
// client IP. Zero means no limit. Rejected clients get a 421 reply.
func WithMaxConnections(max, perIP int) Option {
	return func(s *Server) error {
		if max < 0 || perIP < 0 {
			return fmt.Errorf("invalid connection limits %d/%d", max, perIP)
		}
		s.maxConnections = max
		s.maxConnectionsPerIP = perIP
		return nil
	}
}

// WithDisableCommands rejects the given commands with 502 after login.
// See the predefined groups such as WriteCommands.
func WithDisableCommands(cmds ...string) Option {
	return func(s *Server) error {
		for _, cmd := range cmds {
			cmd = strings.ToUpper(strings.TrimSpace(cmd))
			if cmd == "QUIT" || cmd == "USER" || cmd == "PASS" {
				return fmt.Errorf("command %s cannot be disabled", cmd)
			}
			s.disabledCommands[cmd] = true
		}
		return nil
	}
}

// WithBandwidthLimit throttles data transfers in bytes per second. global is
// shared by all sessions, perUser applies to each transfer. Zero disables a
// limit.
func WithBandwidthLimit(global, perUser int64) Option {
	return func(s *Server) error {
		if global < 0 || perUser < 0 {
			return fmt.Errorf("invalid bandwidth limits %d/%d", global, perUser)
		}
		s.globalLimiter = ratelimit.New(global)
		s.bandwidthLimitPerUser = perUser
		return nil
	}
}

// WithMetrics installs a metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(s *Server) error {
		s.metrics = m
		return nil
	}
}

// WithTransferLog writes one xferlog-format line per completed transfer to w.
func WithTransferLog(w io.Writer) Option {
	return func(s *Server) error {
		s.transferLog = w
		return nil
	}
}
