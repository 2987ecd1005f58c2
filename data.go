package ftp

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"
)

// pasvRegex matches the address in "227 Entering Passive Mode (h1,h2,h3,h4,p1,p2)".
var pasvRegex = regexp.MustCompile(`(\d+),(\d+),(\d+),(\d+),(\d+),(\d+)`)

// parsePASV extracts "host:port" from a 227 reply; port = p1*256 + p2.
func parsePASV(response string) (string, error) {
	m := pasvRegex.FindStringSubmatch(response)
	if len(m) != 7 {
		return "", fmt.Errorf("invalid PASV response: %s", response)
	}

	var v [6]int
	for i := range v {
		n, err := strconv.Atoi(m[i+1])
		if err != nil || n < 0 || n > 255 {
			return "", fmt.Errorf("invalid PASV field: %s", m[i+1])
		}
		v[i] = n
	}

	host := fmt.Sprintf("%d.%d.%d.%d", v[0], v[1], v[2], v[3])
	port := v[4]*256 + v[5]
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// formatPORT converts "192.168.1.100:50000" to "192,168,1,100,195,80".
func formatPORT(addr string) (string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	ip := net.ParseIP(host).To4()
	if ip == nil {
		return "", fmt.Errorf("PORT requires an IPv4 address, got %q", host)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", fmt.Errorf("invalid port: %s", portStr)
	}
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", ip[0], ip[1], ip[2], ip[3], port/256, port%256), nil
}

// resolveDataAddr replaces an unspecified 0.0.0.0 PASV address with the
// control connection host.
func resolveDataAddr(pasvAddr, controlHost string) string {
	host, port, err := net.SplitHostPort(pasvAddr)
	if err != nil {
		return pasvAddr
	}
	if host == "0.0.0.0" {
		return net.JoinHostPort(controlHost, port)
	}
	return pasvAddr
}

func (c *Client) openDataConn() (net.Conn, error) {
	if c.activeMode {
		return c.openActiveDataConn()
	}
	return c.openPassiveDataConn()
}

// openPassiveDataConn sends PASV and dials the announced address.
func (c *Client) openPassiveDataConn() (net.Conn, error) {
	resp, err := c.sendCommand("PASV")
	if err != nil {
		return nil, fmt.Errorf("PASV failed: %w", err)
	}
	if resp.Code != 227 {
		return nil, newProtocolError("PASV", resp)
	}

	addr, err := parsePASV(resp.Message)
	if err != nil {
		return nil, err
	}
	addr = resolveDataAddr(addr, c.host)

	conn, err := c.dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to data port: %w", err)
	}
	if c.timeout > 0 {
		return &deadlineConn{Conn: conn, timeout: c.timeout}, nil
	}
	return conn, nil
}

// openActiveDataConn listens on the control connection's local address and
// announces it with PORT. The server connects once the transfer command is sent.
func (c *Client) openActiveDataConn() (net.Conn, error) {
	host, _, err := net.SplitHostPort(c.conn.LocalAddr().String())
	if err != nil {
		return nil, fmt.Errorf("failed to determine local address: %w", err)
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	arg, err := formatPORT(ln.Addr().String())
	if err != nil {
		ln.Close()
		return nil, err
	}

	resp, err := c.sendCommand("PORT", arg)
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("PORT failed: %w", err)
	}
	if !resp.Is2xx() {
		ln.Close()
		return nil, newProtocolError("PORT", resp)
	}

	return &activeDataConn{listener: ln, timeout: c.timeout}, nil
}

// activeDataConn accepts the server's connection lazily on first use.
type activeDataConn struct {
	listener net.Listener
	conn     net.Conn
	timeout  time.Duration
}

func (a *activeDataConn) accept() error {
	if a.conn != nil {
		return nil
	}
	if a.timeout > 0 {
		if l, ok := a.listener.(*net.TCPListener); ok {
			_ = l.SetDeadline(time.Now().Add(a.timeout))
		}
	}
	conn, err := a.listener.Accept()
	if err != nil {
		return fmt.Errorf("failed to accept data connection: %w", err)
	}
	a.listener.Close()
	a.conn = conn
	return nil
}

func (a *activeDataConn) Read(p []byte) (int, error) {
	if err := a.accept(); err != nil {
		return 0, err
	}
	if a.timeout > 0 {
		_ = a.conn.SetReadDeadline(time.Now().Add(a.timeout))
	}
	return a.conn.Read(p)
}

func (a *activeDataConn) Write(p []byte) (int, error) {
	if err := a.accept(); err != nil {
		return 0, err
	}
	if a.timeout > 0 {
		_ = a.conn.SetWriteDeadline(time.Now().Add(a.timeout))
	}
	return a.conn.Write(p)
}

func (a *activeDataConn) Close() error {
	lerr := a.listener.Close()
	if a.conn != nil {
		return a.conn.Close()
	}
	if lerr == nil || isClosedErr(lerr) {
		return nil
	}
	return lerr
}

func (a *activeDataConn) LocalAddr() net.Addr {
	if a.conn != nil {
		return a.conn.LocalAddr()
	}
	return a.listener.Addr()
}

func (a *activeDataConn) RemoteAddr() net.Addr {
	if a.conn != nil {
		return a.conn.RemoteAddr()
	}
	return nil
}

func (a *activeDataConn) SetDeadline(t time.Time) error {
	if a.conn != nil {
		return a.conn.SetDeadline(t)
	}
	return nil
}

func (a *activeDataConn) SetReadDeadline(t time.Time) error {
	if a.conn != nil {
		return a.conn.SetReadDeadline(t)
	}
	return nil
}

func (a *activeDataConn) SetWriteDeadline(t time.Time) error {
	if a.conn != nil {
		return a.conn.SetWriteDeadline(t)
	}
	return nil
}

// deadlineConn refreshes the deadline before every read and write.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.timeout))
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	_ = c.Conn.SetWriteDeadline(time.Now().Add(c.timeout))
	return c.Conn.Write(b)
}

// cmdDataConn opens a data connection, sends cmd and expects a 1xx reply.
// The caller transfers the data and then calls finishDataConn.
func (c *Client) cmdDataConn(cmd string, args ...string) (*Response, net.Conn, error) {
	dataConn, err := c.openDataConn()
	if err != nil {
		return nil, nil, err
	}

	resp, err := c.sendCommand(cmd, args...)
	if err != nil {
		dataConn.Close()
		return nil, nil, err
	}
	if !resp.Is1xx() {
		dataConn.Close()
		return resp, nil, newProtocolError(cmd, resp)
	}
	return resp, dataConn, nil
}

// finishDataConn closes the data connection and reads the completion reply.
func (c *Client) finishDataConn(cmd string, dataConn net.Conn) error {
	closeErr := dataConn.Close()

	c.mu.Lock()
	resp, err := c.readReply()
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to read completion response: %w", err)
	}
	if !resp.Is2xx() {
		return newProtocolError(cmd, resp)
	}
	if closeErr != nil && !isClosedErr(closeErr) {
		return fmt.Errorf("failed to close data connection: %w", closeErr)
	}
	return nil
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
