package server

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// withDataConn establishes the data connection, sends the 150 preliminary
// reply, runs fn and closes the connection before the 226 completion reply.
func (s *session) withDataConn(preliminary string, fn func(conn net.Conn) error) error {
	conn, err := s.establish()
	if err != nil {
		return err
	}

	s.reply(StatusFileStatusOK, preliminary)
	err = fn(conn)
	if closeErr := conn.Close(); err == nil && closeErr != nil {
		err = &TransportError{Op: "transfer", Err: closeErr}
	}
	if err != nil {
		return err
	}

	s.reply(StatusTransferComplete, "Transfer Complete")
	return nil
}

// failBeforeData rejects a data command before the channel is engaged. The
// pending transfer mode is released.
func (s *session) failBeforeData(cmd string, err error) {
	s.dropMode()
	s.replyError(cmd, err)
}

// handleLIST sends the listing of the current directory, a directory
// argument, or a single file.
func (s *session) handleLIST(arg string) {
	target, err := s.jail.Resolve(s.cwd, listTarget(arg))
	if err != nil {
		s.failBeforeData("LIST", err)
		return
	}
	info, err := s.jail.Stat(target)
	if err != nil {
		s.failBeforeData("LIST", err)
		return
	}

	err = s.withDataConn("Opening ASCII mode data for file list", func(conn net.Conn) error {
		w := bufio.NewWriter(conn)
		if err := s.writeListing(w, target, info); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return &TransportError{Op: "transfer", Err: err}
		}
		return nil
	})
	if err != nil {
		s.replyError("LIST", err)
	}
}

var listFlags = regexp.MustCompile(`^(-[A-Za-z]+(\s+|$))+`)

// listTarget drops leading ls-style flags such as "-la" that some clients
// send. The rest of the argument is kept verbatim.
func listTarget(arg string) string {
	return listFlags.ReplaceAllString(arg, "")
}

// typeName is the representation named in 150 replies.
func (s *session) typeName() string {
	if s.transferType == "I" {
		return "BINARY"
	}
	return "ASCII"
}

func (s *session) handleRETR(arg string) {
	target, err := s.jail.Resolve(s.cwd, arg)
	if err != nil {
		s.failBeforeData("RETR", err)
		return
	}
	info, err := s.jail.Stat(target)
	if err == nil && info.IsDir() {
		err = &fs.PathError{Op: "retr", Path: arg, Err: fs.ErrInvalid}
	}
	if err != nil {
		s.failBeforeData("RETR", err)
		return
	}

	file, err := s.jail.Open(target)
	if err != nil {
		s.failBeforeData("RETR", err)
		return
	}
	defer file.Close()

	start := time.Now()
	var n int64
	err = s.withDataConn(fmt.Sprintf("Opening %s mode to transfer %s (%d bytes)", s.typeName(), arg, info.Size()), func(conn net.Conn) error {
		var err error
		n, err = s.sendFile(conn, file)
		return err
	})
	if err != nil {
		s.replyError("RETR", err)
		return
	}
	s.transferComplete("RETR", target, n, time.Since(start))
}

func (s *session) handleSTOR(arg string) {
	target, err := s.uploadTarget(arg)
	if err != nil {
		s.failBeforeData("STOR", err)
		return
	}
	s.upload("STOR", target, "Opening "+s.typeName()+" mode to receive "+filepath.Base(target), func() (*os.File, error) {
		return s.jail.Create(target)
	}, nil)
}

func (s *session) handleAPPE(arg string) {
	target, err := s.uploadTarget(arg)
	if err != nil {
		s.failBeforeData("APPE", err)
		return
	}
	s.upload("APPE", target, "Opening "+s.typeName()+" mode to append to "+filepath.Base(target), func() (*os.File, error) {
		return s.jail.Append(target)
	}, nil)
}

// handleSTOU stores under the requested name, or under a random name in the
// same directory when that name is taken or missing.
func (s *session) handleSTOU(arg string) {
	var target string
	if arg != "" {
		var err error
		target, err = s.jail.Resolve(s.cwd, arg)
		if err != nil {
			s.failBeforeData("STOU", err)
			return
		}
		if target == s.jail.Root() {
			s.failBeforeData("STOU", &fs.PathError{Op: "stou", Path: arg, Err: fs.ErrInvalid})
			return
		}
	}

	file, target, err := s.createUnique(target)
	if err != nil {
		s.failBeforeData("STOU", err)
		return
	}
	s.upload("STOU", target, "FILE: "+filepath.Base(target), func() (*os.File, error) {
		return file, nil
	}, func() {
		file.Close()
		if err := s.jail.Remove(target); err != nil {
			s.logger.Warn("unique_file_cleanup_failed", "path", s.jail.Virtual(target), "error", err)
		}
	})
}

// createUnique creates target exclusively. If target is empty or exists, a
// random name is generated in its directory (or cwd).
func (s *session) createUnique(target string) (*os.File, string, error) {
	dir := s.cwd
	if target != "" {
		file, err := s.jail.CreateNew(target)
		if err == nil {
			return file, target, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", err
		}
		dir = filepath.Dir(target)
	}

	const attempts = 5
	for range attempts {
		name, err := randomName()
		if err != nil {
			return nil, "", err
		}
		candidate := filepath.Join(dir, name)
		file, err := s.jail.CreateNew(candidate)
		if err == nil {
			return file, candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("could not generate a unique name in %s: %w", s.jail.Virtual(dir), fs.ErrExist)
}

// uploadTarget resolves an upload path. It rejects existing directories and
// targets whose parent is not a directory.
func (s *session) uploadTarget(arg string) (string, error) {
	if arg == "" {
		return "", &fs.PathError{Op: "stor", Path: arg, Err: fs.ErrInvalid}
	}
	target, err := s.jail.Resolve(s.cwd, arg)
	if err != nil {
		return "", err
	}
	if info, err := s.jail.Stat(target); err == nil && info.IsDir() {
		return "", &fs.PathError{Op: "stor", Path: arg, Err: fs.ErrExist}
	}
	if info, err := s.jail.Stat(filepath.Dir(target)); err != nil || !info.IsDir() {
		return "", &fs.PathError{Op: "stor", Path: arg, Err: fs.ErrNotExist}
	}
	return target, nil
}

// upload receives the data connection into the file returned by open. open
// runs only once the connection is up, so a transfer that never starts
// leaves the target untouched. discard, if set, runs in that case before
// the error reply.
func (s *session) upload(cmd, target, preliminary string, open func() (*os.File, error), discard func()) {
	start := time.Now()
	var n int64
	err := s.withDataConn(preliminary, func(conn net.Conn) error {
		file, err := open()
		if err != nil {
			return err
		}
		n, err = s.receiveFile(file, conn)
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
		return err
	})
	if err != nil {
		if discard != nil && dataNotOpened(err) {
			discard()
		}
		s.replyError(cmd, err)
		return
	}
	s.transferComplete(cmd, target, n, time.Since(start))
}

// dataNotOpened reports whether err means the data connection was never
// established.
func dataNotOpened(err error) bool {
	var te *TransportError
	return errors.Is(err, ErrNoDataMode) || (errors.As(err, &te) && te.Op != "transfer")
}

func (s *session) transferComplete(cmd, target string, n int64, duration time.Duration) {
	throughputMBps := float64(0)
	if duration.Seconds() > 0 {
		throughputMBps = float64(n) / duration.Seconds() / 1024 / 1024
	}

	s.logger.Info("transfer_complete",
		"user", s.account.Name,
		"operation", cmd,
		"path", s.jail.Virtual(target),
		"bytes", n,
		"duration_ms", duration.Milliseconds(),
		"throughput_mbps", fmt.Sprintf("%.2f", throughputMBps),
	)
	if s.server.metrics != nil {
		s.server.metrics.RecordTransfer(cmd, n, duration)
	}
	s.logTransfer(cmd, s.jail.Virtual(target), n, duration)
}

// handleTYPE records the representation type. Data is always sent as is.
func (s *session) handleTYPE(arg string) {
	switch t := strings.ToUpper(strings.TrimSpace(arg)); t {
	case "A", "A N", "I", "L 8":
		if t == "L 8" {
			t = "I"
		}
		s.transferType = t[:1]
		s.reply(StatusOK, "Type set to "+s.transferType)
	default:
		s.reply(StatusBadArguments, "Unknown type "+arg)
	}
}
