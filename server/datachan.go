package server

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// transferMode is how the next data connection is established. The set of
// variants is closed: *passiveMode and *activeMode.
type transferMode interface {
	// open establishes the data connection. The mode is spent afterwards.
	open(s *session) (net.Conn, error)
	// release frees resources held by an unused mode.
	release()
}

// passiveMode waits for the client to connect to a listener we opened. The
// listener is registered with the server so Shutdown can interrupt Accept.
type passiveMode struct {
	ln     net.Listener
	server *Server
}

func (m *passiveMode) open(s *session) (net.Conn, error) {
	defer m.release()

	if t, ok := m.ln.(*net.TCPListener); ok {
		_ = t.SetDeadline(time.Now().Add(s.server.dataConnTimeout))
	}
	s.logger.Debug("waiting for passive connection", "addr", m.ln.Addr().String())

	conn, err := m.ln.Accept()
	if err != nil {
		return nil, &TransportError{Op: "accept", Err: err}
	}

	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	if !s.isControlPeer(net.ParseIP(host)) {
		s.logger.Warn("passive_peer_rejected", "peer", conn.RemoteAddr().String())
		conn.Close()
		return nil, &TransportError{Op: "accept", Err: errForeignPeer}
	}
	return conn, nil
}

func (m *passiveMode) release() {
	m.server.trackListener(m.ln, false)
	m.ln.Close()
}

// activeMode dials the address the client announced with PORT.
type activeMode struct {
	addr *net.TCPAddr
}

func (m *activeMode) open(s *session) (net.Conn, error) {
	s.logger.Debug("dialing active connection", "addr", m.addr.String())

	conn, err := net.DialTimeout("tcp", m.addr.String(), s.server.dataConnTimeout)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	return conn, nil
}

func (m *activeMode) release() {}

// setMode replaces the session's transfer mode, releasing the previous one.
func (s *session) setMode(m transferMode) {
	if s.mode != nil {
		s.mode.release()
	}
	s.mode = m
}

// dropMode releases the current mode without using it.
func (s *session) dropMode() {
	s.setMode(nil)
}

// establish consumes the session's transfer mode and opens the data connection.
func (s *session) establish() (net.Conn, error) {
	m := s.mode
	s.mode = nil
	if m == nil {
		return nil, ErrNoDataMode
	}

	conn, err := m.open(s)
	if err != nil {
		return nil, err
	}
	return s.wrapDataConn(conn), nil
}

func (s *session) wrapDataConn(conn net.Conn) net.Conn {
	if s.server.readTimeout > 0 || s.server.writeTimeout > 0 {
		conn = &deadlineConn{
			Conn:         conn,
			readTimeout:  s.server.readTimeout,
			writeTimeout: s.server.writeTimeout,
		}
	}
	s.server.trackConnection(conn, true)
	return &trackingConn{Conn: conn, server: s.server}
}

// deadlineConn refreshes the deadline before every read and write.
type deadlineConn struct {
	net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if c.readTimeout > 0 {
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if c.writeTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.Conn.Write(p)
}

// listenPassive binds a passive listener on the control connection's local
// address. A configured port range is scanned round-robin; a fixed data port
// is used as is; otherwise the kernel picks a port.
func (s *session) listenPassive() (net.Listener, error) {
	host, _, err := net.SplitHostPort(s.conn.LocalAddr().String())
	if err != nil {
		host = ""
	}

	srv := s.server
	switch {
	case srv.pasvMinPort > 0 && srv.pasvMaxPort >= srv.pasvMinPort:
		rangeLen := int32(srv.pasvMaxPort - srv.pasvMinPort + 1)
		start := atomic.AddInt32(&srv.nextPassivePort, 1)
		for i := int32(0); i < rangeLen; i++ {
			offset := (start + i) % rangeLen
			if offset < 0 {
				offset += rangeLen
			}
			port := srv.pasvMinPort + int(offset)
			ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
			if err == nil {
				return ln, nil
			}
		}
		return nil, fmt.Errorf("no available ports in range [%d, %d]", srv.pasvMinPort, srv.pasvMaxPort)
	case srv.dataPort > 0:
		return net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(srv.dataPort)))
	default:
		return net.Listen("tcp", net.JoinHostPort(host, "0"))
	}
}

// passiveIP is the IPv4 address announced in the 227 reply.
func (s *session) passiveIP() net.IP {
	if ip := s.server.publicIP(); ip != nil {
		return ip
	}
	host, _, err := net.SplitHostPort(s.conn.LocalAddr().String())
	if err != nil {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.To4()
	}
	return nil
}

// handlePASV opens a fresh listener and announces it as (b1,b2,b3,b4,p1,p2).
func (s *session) handlePASV(_ string) {
	s.dropMode()

	ln, err := s.listenPassive()
	if err != nil {
		s.replyError("PASV", &TransportError{Op: "listen", Err: err})
		return
	}

	if !s.server.trackListener(ln, true) {
		s.replyError("PASV", &TransportError{Op: "listen", Err: ErrServerClosed})
		return
	}

	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	s.setMode(&passiveMode{ln: ln, server: s.server})
	s.reply(StatusPassiveMode, fmt.Sprintf("Entering Passive Mode (%s).", formatHostPort(s.passiveIP(), port)))
}

// formatHostPort renders ip and port in the PASV/PORT comma notation.
// A missing or non-IPv4 address is sent as 0,0,0,0.
func formatHostPort(ip net.IP, port int) string {
	ip4 := ip.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", ip4[0], ip4[1], ip4[2], ip4[3], port/256, port%256)
}

// parseHostPort parses h1,h2,h3,h4,p1,p2 into an address.
func parseHostPort(arg string) (*net.TCPAddr, error) {
	parts := strings.Split(strings.TrimSpace(arg), ",")
	if len(parts) != 6 {
		return nil, fmt.Errorf("expected 6 fields, got %d", len(parts))
	}

	var b [6]byte
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 || n > 255 {
			return nil, fmt.Errorf("invalid field %q", part)
		}
		b[i] = byte(n)
	}

	port := int(b[4])*256 + int(b[5])
	if port == 0 {
		return nil, fmt.Errorf("invalid port 0")
	}
	return &net.TCPAddr{IP: net.IPv4(b[0], b[1], b[2], b[3]), Port: port}, nil
}

// handlePORT records an active-mode target.
func (s *session) handlePORT(arg string) {
	addr, err := parseHostPort(arg)
	if err != nil {
		s.reply(StatusBadArguments, "Invalid PORT argument")
		return
	}

	if !s.isControlPeer(addr.IP) {
		s.logger.Warn("port_rejected", "target", addr.String())
		s.reply(StatusSyntaxError, "Illegal PORT command")
		return
	}

	s.setMode(&activeMode{addr: addr})
	s.reply(StatusOK, "Port command successful")
}

// isControlPeer reports whether ip is the control connection's peer. Data
// connections in both directions must involve that host.
func (s *session) isControlPeer(ip net.IP) bool {
	host, _, err := net.SplitHostPort(s.conn.RemoteAddr().String())
	if err != nil {
		return false
	}
	remote := net.ParseIP(host)
	if remote == nil {
		return false
	}
	return ip.Equal(remote)
}
