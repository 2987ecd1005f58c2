package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxCommandLength is the maximum length of a command line.
const MaxCommandLength = 4096

// sessionState is the authentication and command-sequencing state.
type sessionState int

const (
	stateUnauthenticated sessionState = iota
	stateAwaitingPassword
	stateAuthenticated
	stateAwaitingRenameTarget
)

func (st sessionState) String() string {
	switch st {
	case stateAwaitingPassword:
		return "awaiting_password"
	case stateAuthenticated:
		return "authenticated"
	case stateAwaitingRenameTarget:
		return "awaiting_rename_target"
	default:
		return "unauthenticated"
	}
}

// session is one control connection. It is owned by a single goroutine.
type session struct {
	server *Server
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	tnet   *telnetReader
	logger *slog.Logger

	sessionID string
	remoteIP  string

	state   sessionState
	pending Account // set while awaiting PASS
	account Account
	jail    *Jail

	// cwd is an absolute host path inside jail.
	cwd          string
	renameFrom   string
	mode         transferMode
	transferType string

	lastCode int
	writeErr error
	quit     bool
}

var (
	telnetReaderPool = sync.Pool{
		New: func() any { return newTelnetReader(nil) },
	}
	controlReaderPool = sync.Pool{
		New: func() any { return bufio.NewReaderSize(nil, 4096) },
	}
	controlWriterPool = sync.Pool{
		New: func() any { return bufio.NewWriterSize(nil, 4096) },
	}
)

// preAuthHandlers are the only commands accepted before login.
var preAuthHandlers = map[string]func(*session, string){
	"USER": (*session).handleUSER,
	"PASS": (*session).handlePASSWithoutUSER,
	"HELP": (*session).handleHELP,
	"SYST": (*session).handleSYST,
	"NOOP": (*session).handleNOOP,
}

// commandHandlers maps commands to handlers once the session is logged in.
// QUIT is handled before dispatch in every state.
var commandHandlers = map[string]func(*session, string){
	// Access
	"USER": (*session).handleUSERLoggedIn,
	"PASS": (*session).handleUSERLoggedIn,

	// File management
	"CWD":  (*session).handleCWD,
	"XCWD": (*session).handleCWD,
	"CDUP": (*session).handleCDUP,
	"XCUP": (*session).handleCDUP,
	"PWD":  (*session).handlePWD,
	"XPWD": (*session).handlePWD,
	"MKD":  (*session).handleMKD,
	"XMKD": (*session).handleMKD,
	"RMD":  (*session).handleRMD,
	"XRMD": (*session).handleRMD,
	"DELE": (*session).handleDELE,
	"RNFR": (*session).handleRNFR,
	"RNTO": (*session).handleRNTOWithoutRNFR,

	// Transfer
	"LIST": (*session).handleLIST,
	"RETR": (*session).handleRETR,
	"STOR": (*session).handleSTOR,
	"APPE": (*session).handleAPPE,
	"STOU": (*session).handleSTOU,

	// Transfer parameters
	"TYPE": (*session).handleTYPE,
	"PORT": (*session).handlePORT,
	"PASV": (*session).handlePASV,

	// Information
	"SYST": (*session).handleSYST,
	"NOOP": (*session).handleNOOP,
	"HELP": (*session).handleHELP,
}

func newSession(server *Server, conn net.Conn) *session {
	remoteIP, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		remoteIP = conn.RemoteAddr().String()
	}

	tr := telnetReaderPool.Get().(*telnetReader)
	tr.Reset(conn)

	reader := controlReaderPool.Get().(*bufio.Reader)
	reader.Reset(tr)

	writer := controlWriterPool.Get().(*bufio.Writer)
	writer.Reset(conn)

	sessionID := uuid.NewString()

	return &session{
		server:       server,
		conn:         conn,
		reader:       reader,
		writer:       writer,
		tnet:         tr,
		sessionID:    sessionID,
		remoteIP:     remoteIP,
		logger:       server.logger.With("session_id", sessionID, "remote_ip", remoteIP),
		transferType: "A",
	}
}

// serve runs the command loop until QUIT, EOF or a control channel error.
func (s *session) serve() {
	defer s.close()

	s.logger.Info("session_started")
	s.reply(StatusReady, s.server.welcomeMessage)

	for !s.quit && s.writeErr == nil {
		if s.server.readTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.server.readTimeout))
		} else if s.server.maxIdleTime > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.server.maxIdleTime))
		}

		line, err := s.readCommand()
		if err != nil {
			switch {
			case errors.Is(err, errCommandTooLong):
				s.reply(StatusSyntaxError, "Command line too long")
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			default:
				s.logger.Warn("read error", "user", s.account.Name, "error", err)
			}
			return
		}

		_ = s.conn.SetReadDeadline(time.Time{})
		s.handleCommand(line)
	}

	if s.writeErr != nil {
		s.logger.Warn("write error", "user", s.account.Name, "error", s.writeErr)
	}
}

// readCommand reads one line, without the line terminator.
func (s *session) readCommand() (string, error) {
	var line []byte
	for {
		b, err := s.reader.ReadByte()
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				return strings.TrimRight(string(line), "\r"), nil
			}
			return "", err
		}
		if b == '\n' {
			return strings.TrimRight(string(line), "\r"), nil
		}
		if len(line) >= MaxCommandLength {
			return "", errCommandTooLong
		}
		line = append(line, b)
	}
}

// close releases every resource held by the session.
func (s *session) close() {
	s.dropMode()
	if s.jail != nil {
		s.jail.Close()
	}
	s.conn.Close()

	s.reader.Reset(nil)
	controlReaderPool.Put(s.reader)
	s.writer.Reset(nil)
	controlWriterPool.Put(s.writer)
	s.tnet.Reset(nil)
	telnetReaderPool.Put(s.tnet)

	s.logger.Debug("session closed", "user", s.account.Name)
}

// parseCommand splits a line at the first space and upper-cases the verb.
func parseCommand(line string) (cmd, arg string) {
	cmd, arg, _ = strings.Cut(line, " ")
	return strings.ToUpper(strings.TrimSpace(cmd)), strings.TrimSpace(arg)
}

func (s *session) handleCommand(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	cmd, arg := parseCommand(line)

	logArg := arg
	if cmd == "PASS" {
		logArg = "***"
	}
	s.logger.Debug("command received",
		"user", s.account.Name,
		"state", s.state.String(),
		"cmd", cmd,
		"arg", logArg,
	)

	start := time.Now()
	s.lastCode = 0
	s.dispatch(cmd, arg)

	if s.server.metrics != nil {
		s.server.metrics.RecordCommand(cmd, s.lastCode > 0 && s.lastCode < 400, time.Since(start))
	}
}

// dispatch routes cmd according to the session state.
func (s *session) dispatch(cmd, arg string) {
	if cmd == "QUIT" {
		s.handleQUIT(arg)
		return
	}

	switch s.state {
	case stateAwaitingPassword:
		s.handlePASS(cmd, arg)
	case stateAwaitingRenameTarget:
		s.handleRNTO(cmd, arg)
	case stateUnauthenticated:
		if handler, ok := preAuthHandlers[cmd]; ok {
			handler(s, arg)
			return
		}
		s.reply(StatusNotLoggedIn, "Please login with USER and PASS")
	case stateAuthenticated:
		if s.server.disabledCommands[cmd] {
			s.reply(StatusNotImplemented, cmd+" not implemented")
			return
		}
		if handler, ok := commandHandlers[cmd]; ok {
			handler(s, arg)
			return
		}
		s.reply(StatusSyntaxError, cmd+" not understood")
	}
}

func (s *session) handleQUIT(_ string) {
	s.reply(StatusClosing, "Goodbye")
	s.quit = true
}

// reply writes a single-line reply. A write failure ends the session.
func (s *session) reply(code int, message string) {
	s.lastCode = code
	if s.writeErr != nil {
		return
	}
	if s.server.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.server.writeTimeout))
	}
	if err := writeReply(s.writer, code, message); err != nil {
		s.writeErr = err
		return
	}
	if err := s.writer.Flush(); err != nil {
		s.writeErr = err
	}
}

// replyLines writes a multi-line reply.
func (s *session) replyLines(code int, lines []string) {
	s.lastCode = code
	if s.writeErr != nil {
		return
	}
	if s.server.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.server.writeTimeout))
	}
	if err := writeMultiline(s.writer, code, lines); err != nil {
		s.writeErr = err
		return
	}
	if err := s.writer.Flush(); err != nil {
		s.writeErr = err
	}
}

// logTransfer writes one xferlog line for a completed transfer.
func (s *session) logTransfer(cmd, filename string, bytes int64, duration time.Duration) {
	if s.server.transferLog == nil {
		return
	}

	transferTime := int64(duration.Seconds())
	if transferTime == 0 {
		transferTime = 1
	}

	tType := "b"
	if s.transferType == "A" {
		tType = "a"
	}

	direction := "o"
	if cmd == "STOR" || cmd == "APPE" || cmd == "STOU" {
		direction = "i"
	}

	// current-time transfer-time remote-host file-size filename transfer-type
	// special-action direction access-mode username service auth-method auth-user status
	line := fmt.Sprintf("%s %d %s %d %s %s _ %s r %s ftp 0 * c\n",
		time.Now().Format("Mon Jan 02 15:04:05 2006"),
		transferTime,
		s.remoteIP,
		bytes,
		filename,
		tType,
		direction,
		s.account.Name,
	)

	s.server.transferLogMu.Lock()
	_, _ = io.WriteString(s.server.transferLog, line)
	s.server.transferLogMu.Unlock()
}
