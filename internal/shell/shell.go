// Package shell implements the interactive ftp command loop.
//
// A Shell is driven one line at a time through Execute, which makes it usable
// both as a go-prompt executor and from tests. Only open, quit, close and
// help work before a connection is open; everything else also needs a
// successful login.
package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	"github.com/fatih/color"
	"golang.org/x/term"

	ftp "github.com/gonzalop/ftpjail"
)

// readPassword reads a password without echo. Tests replace it.
var readPassword = func() (string, error) {
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	return string(b), err
}

// Config holds the settings of a Shell.
type Config struct {
	// Out receives all output. Defaults to os.Stdout.
	Out io.Writer

	// In is read for the login user name. Defaults to os.Stdin.
	In io.Reader

	// User and Password skip the login prompts when set.
	User     string
	Password string

	// Active selects PORT transfers instead of PASV.
	Active bool

	// Timeout bounds every control and data operation.
	Timeout time.Duration
}

// Shell is one interactive client session.
type Shell struct {
	out io.Writer
	in  *bufio.Reader

	user     string
	password string
	active   bool
	timeout  time.Duration

	client   *ftp.Client
	host     string
	loggedIn bool
	exit     bool

	okColor   *color.Color
	errColor  *color.Color
	infoColor *color.Color
}

// New returns a disconnected shell.
func New(cfg Config) *Shell {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Shell{
		out:       cfg.Out,
		in:        bufio.NewReader(cfg.In),
		user:      cfg.User,
		password:  cfg.Password,
		active:    cfg.Active,
		timeout:   cfg.Timeout,
		okColor:   color.New(color.FgGreen),
		errColor:  color.New(color.FgRed),
		infoColor: color.New(color.FgCyan),
	}
}

// Run reads commands from the terminal until quit.
func (s *Shell) Run() {
	p := prompt.New(
		s.Execute,
		s.Complete,
		prompt.OptionTitle("ftp"),
		prompt.OptionLivePrefix(s.Prefix),
		prompt.OptionPrefixTextColor(prompt.Green),
		prompt.OptionPreviewSuggestionTextColor(prompt.Blue),
		prompt.OptionSelectedSuggestionBGColor(prompt.LightGray),
		prompt.OptionSuggestionBGColor(prompt.DarkGray),
		prompt.OptionCompletionWordSeparator(" "),
		prompt.OptionSetExitCheckerOnInput(s.shouldExit),
	)
	p.Run()
}

// Exited reports whether quit was executed.
func (s *Shell) Exited() bool {
	return s.exit
}

func (s *Shell) shouldExit(_ string, breakline bool) bool {
	return breakline && s.exit
}

// Prefix returns the prompt, which shows the connected host.
func (s *Shell) Prefix() (string, bool) {
	if s.client == nil {
		return "ftp> ", true
	}
	return fmt.Sprintf("ftp %s> ", s.host), true
}

// Complete suggests command names for the first word.
func (s *Shell) Complete(d prompt.Document) []prompt.Suggest {
	before := d.TextBeforeCursor()
	if strings.Contains(before, " ") {
		return nil
	}
	return prompt.FilterHasPrefix(suggestions, d.GetWordBeforeCursor(), true)
}

// Execute runs one command line.
func (s *Shell) Execute(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	cmd, ok := commandIndex[name]
	if !ok {
		if s.client == nil {
			s.errorf("Not Connected")
		} else {
			s.errorf("Invalid Command")
		}
		return
	}

	switch {
	case cmd.needs == needsConnection && s.client == nil,
		cmd.needs == needsLogin && s.client == nil:
		s.errorf("Not Connected")
		return
	case cmd.needs == needsLogin && !s.loggedIn:
		s.errorf("You need to be logged in for this command")
		return
	}

	if len(args) < cmd.minArgs || (cmd.maxArgs >= 0 && len(args) > cmd.maxArgs) {
		s.errorf("Usage: %s", cmd.usage)
		return
	}

	if err := cmd.run(s, args); err != nil {
		s.reportError(err)
	}
}

// Close ends the connection, if any, with QUIT.
func (s *Shell) Close() {
	if s.client != nil {
		_ = s.client.Quit()
		s.client = nil
	}
	s.loggedIn = false
	s.host = ""
}

func (s *Shell) open(host, port string) error {
	opts := []ftp.Option{ftp.WithTimeout(s.timeout)}
	if s.active {
		opts = append(opts, ftp.WithActiveMode())
	}

	c, err := ftp.Dial(net.JoinHostPort(host, port), opts...)
	if err != nil {
		s.errorf("Could not connect to host: %v", err)
		return nil
	}
	s.client = c
	s.host = host
	s.okf("Success Connecting to server")
	if w := c.Welcome(); w != "" {
		s.infof("%s", w)
	}

	return s.login("")
}

func (s *Shell) login(name string) error {
	if name == "" {
		name = s.user
	}
	if name == "" {
		def := os.Getenv("USER")
		fmt.Fprintf(s.out, "User (%s): ", def)
		line, err := s.in.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read user: %w", err)
		}
		name = strings.TrimSpace(line)
		if name == "" {
			name = def
		}
	}

	pass := s.password
	if pass == "" {
		fmt.Fprint(s.out, "Password: ")
		p, err := readPassword()
		fmt.Fprintln(s.out)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		pass = p
	}

	if err := s.client.Login(name, pass); err != nil {
		s.loggedIn = false
		var pe *ftp.ProtocolError
		if errors.As(err, &pe) {
			s.errorf("Login Failed")
			return nil
		}
		return err
	}
	s.loggedIn = true
	s.okf("Success Logging In")
	return nil
}

func (s *Shell) reportError(err error) {
	var pe *ftp.ProtocolError
	if errors.As(err, &pe) {
		s.errorf("%d %s", pe.Code, pe.Response)
		return
	}
	s.errorf("Error: %v", err)
	if errors.Is(err, ftp.ErrNotConnected) || isConnError(err) {
		s.errorf("Connection lost")
		s.Close()
	}
}

func isConnError(err error) bool {
	var ne net.Error
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.As(err, &ne)
}

func (s *Shell) okf(format string, args ...any) {
	s.okColor.Fprintf(s.out, format+"\n", args...)
}

func (s *Shell) errorf(format string, args ...any) {
	s.errColor.Fprintf(s.out, format+"\n", args...)
}

func (s *Shell) infof(format string, args ...any) {
	s.infoColor.Fprintf(s.out, format+"\n", args...)
}
