package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gonzalop/ftpjail/internal/ratelimit"
)

// Server is a jailed FTP server.
//
// Every accepted control connection runs in its own goroutine. The only
// state shared between sessions is the immutable UserDirectory.
//
// Lifecycle:
//  1. Create the server with NewServer()
//  2. Start it with ListenAndServe() or Serve(), or hand it single
//     connections with ServeConn()
//  3. Stop it with Shutdown()
//
// Example:
//
//	users, _ := server.NewUserDirectory(server.Account{
//	    Name:     "alice",
//	    Password: "secret",
//	    RootPath: "/srv/ftp/alice",
//	})
//	s, err := server.NewServer(":2121", server.WithUsers(users))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(s.ListenAndServe())
type Server struct {
	addr   string
	users  *UserDirectory
	logger *slog.Logger

	welcomeMessage string
	serverName     string

	// Data channel settings.
	dataPort        int
	pasvMinPort     int
	pasvMaxPort     int
	publicHost      string
	dataConnTimeout time.Duration
	nextPassivePort int32

	publicIPOnce sync.Once
	publicIPAddr net.IP

	maxIdleTime  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	maxConnections      int
	maxConnectionsPerIP int
	activeConns         atomic.Int32
	connsByIP           map[string]int32
	connsByIPMu         sync.Mutex

	disabledCommands map[string]bool

	bandwidthLimitPerUser int64
	globalLimiter         *ratelimit.Limiter

	metrics MetricsCollector

	transferLog   io.Writer
	transferLogMu sync.Mutex

	mu         sync.Mutex
	listener   net.Listener
	conns      map[net.Conn]struct{}
	pasvLns    map[net.Listener]struct{}
	sessions   sync.WaitGroup
	inShutdown atomic.Bool
}

// NewServer creates a server listening on addr. WithUsers is required.
//
// Defaults:
//   - Logger: slog.Default()
//   - MaxIdleTime: 5 minutes
//   - Data connection timeout: 30 seconds
//   - Passive port: chosen by the kernel
func NewServer(addr string, options ...Option) (*Server, error) {
	s := &Server{
		addr:             addr,
		logger:           slog.Default(),
		welcomeMessage:   "Service ready for new user",
		serverName:       "UNIX Type: L8",
		maxIdleTime:      5 * time.Minute,
		dataConnTimeout:  30 * time.Second,
		connsByIP:        make(map[string]int32),
		conns:            make(map[net.Conn]struct{}),
		pasvLns:          make(map[net.Listener]struct{}),
		disabledCommands: make(map[string]bool),
	}

	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.users == nil {
		return nil, fmt.Errorf("user directory is required (use WithUsers option)")
	}
	return s, nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.logger.Info("FTP server listening", "addr", ln.Addr().String())
	return s.Serve(ln)
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.inShutdown.Load() {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.listener == l {
			s.listener = nil
		}
		s.mu.Unlock()
		l.Close()
	}()

	var tempDelay time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else if tempDelay *= 2; tempDelay > time.Second {
				tempDelay = time.Second
			}
			s.logger.Error("accept error", "error", err, "retry_in", tempDelay)
			time.Sleep(tempDelay)
			continue
		}
		tempDelay = 0

		go s.ServeConn(conn)
	}
}

// ServeConn handles one accepted control connection to completion. It
// enforces connection limits and closes conn before returning.
func (s *Server) ServeConn(conn net.Conn) {
	if !s.beginSession(conn) {
		return
	}
	defer s.sessions.Done()
	defer s.trackConnection(conn, false)

	ip := remoteIP(conn)

	if s.maxConnections > 0 && s.activeConns.Load() >= int32(s.maxConnections) {
		s.reject(conn, ip, "global_limit_reached", s.maxConnections, "421 Too many users, sorry.")
		return
	}

	if s.maxConnectionsPerIP > 0 {
		s.connsByIPMu.Lock()
		if s.connsByIP[ip] >= int32(s.maxConnectionsPerIP) {
			s.connsByIPMu.Unlock()
			s.reject(conn, ip, "per_ip_limit_reached", s.maxConnectionsPerIP, "421 Too many connections from your IP address.")
			return
		}
		s.connsByIP[ip]++
		s.connsByIPMu.Unlock()

		defer func() {
			s.connsByIPMu.Lock()
			if s.connsByIP[ip]--; s.connsByIP[ip] <= 0 {
				delete(s.connsByIP, ip)
			}
			s.connsByIPMu.Unlock()
		}()
	}

	if s.metrics != nil {
		s.metrics.RecordConnection(true, "accepted")
	}

	s.activeConns.Add(1)
	defer s.activeConns.Add(-1)

	newSession(s, conn).serve()
}

func (s *Server) reject(conn net.Conn, ip, reason string, limit int, msg string) {
	s.logger.Warn("connection_rejected",
		"remote_ip", ip,
		"reason", reason,
		"limit", limit,
	)
	if s.metrics != nil {
		s.metrics.RecordConnection(false, reason)
	}
	_, _ = io.WriteString(conn, msg+"\r\n")
	conn.Close()
}

// Shutdown stops accepting connections, closes every active control and
// data connection and every pending passive listener, and waits for the
// sessions to exit or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)

	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	conns := s.conns
	s.conns = make(map[net.Conn]struct{})
	pasvLns := s.pasvLns
	s.pasvLns = make(map[net.Listener]struct{})
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	for conn := range conns {
		conn.Close()
	}
	for pl := range pasvLns {
		pl.Close()
	}

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trackConnection registers or unregisters conn. It returns false when the
// server is shutting down.
func (s *Server) trackConnection(conn net.Conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !add {
		delete(s.conns, conn)
		return true
	}
	if s.inShutdown.Load() {
		conn.Close()
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

// trackListener registers or unregisters a passive data listener. It
// returns false, closing ln, when the server is shutting down.
func (s *Server) trackListener(ln net.Listener, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !add {
		delete(s.pasvLns, ln)
		return true
	}
	if s.inShutdown.Load() {
		ln.Close()
		return false
	}
	s.pasvLns[ln] = struct{}{}
	return true
}

// beginSession registers a control connection and counts it as a running
// session, unless the server is shutting down.
func (s *Server) beginSession(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inShutdown.Load() {
		conn.Close()
		return false
	}
	s.conns[conn] = struct{}{}
	s.sessions.Add(1)
	return true
}

// trackingConn unregisters a data connection when it is closed.
type trackingConn struct {
	net.Conn
	server *Server
}

func (c *trackingConn) Close() error {
	c.server.trackConnection(c.Conn, false)
	return c.Conn.Close()
}

// publicIP resolves the configured public host to IPv4 once.
func (s *Server) publicIP() net.IP {
	if s.publicHost == "" {
		return nil
	}
	s.publicIPOnce.Do(func() {
		if ip := net.ParseIP(s.publicHost); ip != nil {
			s.publicIPAddr = ip.To4()
			return
		}
		ips, err := net.LookupIP(s.publicHost)
		if err != nil {
			s.logger.Warn("public host lookup failed", "host", s.publicHost, "error", err)
			return
		}
		for _, ip := range ips {
			if ip4 := ip.To4(); ip4 != nil {
				s.publicIPAddr = ip4
				return
			}
		}
	})
	return s.publicIPAddr
}

func remoteIP(conn net.Conn) string {
	addr := conn.RemoteAddr().String()
	ip, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return ip
}
