package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

var (
	// ErrServerClosed is returned by Serve and ListenAndServe after Shutdown.
	ErrServerClosed = errors.New("ftp: Server closed")

	// ErrOutsideRoot is returned when a path resolves above the account root.
	ErrOutsideRoot = errors.New("path outside of root")

	// ErrNoDataMode is returned when a data command runs before PASV or PORT.
	ErrNoDataMode = errors.New("no data connection mode set")

	errCommandTooLong = errors.New("command too long")
	errForeignPeer    = errors.New("data connection from a host other than the control peer")
)

// TransportError is a data channel failure. Op is "accept", "dial", "listen"
// or "transfer".
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("data connection %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// isFilesystemError reports errors that map to 550.
func isFilesystemError(err error) bool {
	var pathErr *fs.PathError
	var linkErr *os.LinkError
	return errors.Is(err, ErrOutsideRoot) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, fs.ErrExist) ||
		errors.As(err, &pathErr) ||
		errors.As(err, &linkErr)
}

// replyError sends the reply for err and logs it.
func (s *session) replyError(cmd string, err error) {
	var te *TransportError
	switch {
	case errors.Is(err, ErrNoDataMode):
		s.reply(StatusCannotOpenData, "Use PORT or PASV first")
	case errors.As(err, &te) && te.Op == "transfer":
		s.reply(StatusTransferAborted, "Connection closed; transfer aborted")
	case errors.As(err, &te):
		s.reply(StatusCannotOpenData, "Can't open data connection")
	case isFilesystemError(err):
		s.reply(StatusFileUnavailable, "No Such File or Directory")
	default:
		s.reply(StatusFileUnavailable, "Requested action not taken")
	}

	s.logger.Warn("command_failed",
		"cmd", cmd,
		"error", err,
	)
}
