package ftp

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when a command is issued on a closed client.
var ErrNotConnected = errors.New("ftp: not connected")

// ProtocolError is an unexpected reply from the server, with the command
// that caused it.
type ProtocolError struct {
	// Command is the FTP verb that was sent (e.g. "STOR").
	Command string

	// Response is the reply text without the code.
	Response string

	// Code is the numeric reply code (e.g. 550).
	Code int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ftp: %s failed: %s (code %d)", e.Command, e.Response, e.Code)
}

// IsTemporary reports a 4xx reply; the command may succeed if retried.
func (e *ProtocolError) IsTemporary() bool {
	return e.Code >= 400 && e.Code < 500
}

// IsPermanent reports a 5xx reply.
func (e *ProtocolError) IsPermanent() bool {
	return e.Code >= 500 && e.Code < 600
}

// IsCode reports whether err is a *ProtocolError with the given code.
func IsCode(err error, code int) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) && pe.Code == code
}

func newProtocolError(cmd string, resp *Response) *ProtocolError {
	return &ProtocolError{Command: cmd, Response: resp.Message, Code: resp.Code}
}
