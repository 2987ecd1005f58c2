package ftp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Response is one (possibly multi-line) server reply.
type Response struct {
	// Code is the three-digit reply code.
	Code int

	// Message is the reply text. Multi-line replies are joined with "\n".
	Message string

	// Lines holds the raw lines as received.
	Lines []string
}

// Is1xx reports a preliminary reply.
func (r *Response) Is1xx() bool { return r.Code >= 100 && r.Code < 200 }

// Is2xx reports a completion reply.
func (r *Response) Is2xx() bool { return r.Code >= 200 && r.Code < 300 }

// Is3xx reports an intermediate reply.
func (r *Response) Is3xx() bool { return r.Code >= 300 && r.Code < 400 }

// Is4xx reports a transient negative reply.
func (r *Response) Is4xx() bool { return r.Code >= 400 && r.Code < 500 }

// Is5xx reports a permanent negative reply.
func (r *Response) Is5xx() bool { return r.Code >= 500 && r.Code < 600 }

func (r *Response) String() string {
	return strings.Join(r.Lines, "\n")
}

// readResponse reads a single-line or multi-line reply.
//
//	220 Welcome
//
//	214-The following commands are recognized:
//	 USER PASS
//	214 Help OK
func readResponse(r *bufio.Reader) (*Response, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	if len(line) < 4 {
		return nil, fmt.Errorf("invalid response line: %q", line)
	}

	code, err := strconv.Atoi(line[:3])
	if err != nil || code < 100 || code > 599 {
		return nil, fmt.Errorf("invalid response code: %q", line[:3])
	}

	switch line[3] {
	case ' ':
		return &Response{Code: code, Message: line[4:], Lines: []string{line}}, nil
	case '-':
	default:
		return nil, fmt.Errorf("invalid response format: %q", line)
	}

	lines := []string{line}
	message := []string{line[4:]}
	terminator := line[:3] + " "
	for {
		next, err := readLine(r)
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("unexpected EOF in multi-line response")
			}
			return nil, err
		}
		lines = append(lines, next)

		if strings.HasPrefix(next, terminator) {
			message = append(message, next[4:])
			break
		}
		if strings.HasPrefix(next, line[:3]+"-") {
			next = next[4:]
		}
		message = append(message, next)
	}

	return &Response{Code: code, Message: strings.Join(message, "\n"), Lines: lines}, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// sendCommand writes one command line and reads the reply.
func (c *Client) sendCommand(command string, args ...string) (*Response, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}

	line := command
	if len(args) > 0 {
		line = command + " " + strings.Join(args, " ")
	}
	if strings.ContainsAny(line, "\r\n") {
		return nil, fmt.Errorf("ftp: command contains a line break: %q", command)
	}

	logged := line
	if command == "PASS" {
		logged = "PASS ***"
	}
	c.logger.Debug("ftp command", "cmd", logged)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("failed to set write deadline: %w", err)
		}
	}
	if _, err := io.WriteString(c.conn, line+"\r\n"); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	resp, err := c.readReply()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, nil
}

// readReply reads the next reply under the client timeout. c.mu must be held.
func (c *Client) readReply() (*Response, error) {
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
	}
	resp, err := readResponse(c.reader)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("ftp response", "code", resp.Code, "message", resp.Message)
	return resp, nil
}

// expectCode sends a command and requires the given reply code.
func (c *Client) expectCode(expectedCode int, command string, args ...string) (*Response, error) {
	resp, err := c.sendCommand(command, args...)
	if err != nil {
		return nil, err
	}
	if resp.Code != expectedCode {
		return resp, newProtocolError(command, resp)
	}
	return resp, nil
}

// expect2xx sends a command and requires a completion reply.
func (c *Client) expect2xx(command string, args ...string) (*Response, error) {
	resp, err := c.sendCommand(command, args...)
	if err != nil {
		return nil, err
	}
	if !resp.Is2xx() {
		return resp, newProtocolError(command, resp)
	}
	return resp, nil
}
