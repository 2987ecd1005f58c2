package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/textproto"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// testEnv is a running server with a fixed set of accounts.
//
//	alice  secret   normal
//	dave   hashed   normal, bcrypt password
//	bob    secret   blocked
//	carol  secret   not allowed
//	eve    secret   root directory missing
type testEnv struct {
	srv    *Server
	addr   string
	root   string
	served chan error
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServer(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "alice")
	require.NoError(t, os.Mkdir(root, 0o755))
	root, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("hashed"), bcrypt.MinCost)
	require.NoError(t, err)

	users, err := NewUserDirectory(
		Account{Name: "alice", Password: "secret", RootPath: root},
		Account{Name: "dave", Password: string(hash), RootPath: root},
		Account{Name: "bob", Password: "secret", Role: RoleBlocked, RootPath: root},
		Account{Name: "carol", Password: "secret", Role: RoleNotAllowed, RootPath: root},
		Account{Name: "eve", Password: "secret", RootPath: filepath.Join(base, "missing")},
	)
	require.NoError(t, err)

	opts = append([]Option{WithUsers(users), WithLogger(discardLogger())}, opts...)
	srv, err := NewServer("127.0.0.1:0", opts...)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	env := &testEnv{srv: srv, addr: ln.Addr().String(), root: root, served: make(chan error, 1)}
	go func() { env.served <- srv.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return env
}

func (e *testEnv) writeFile(t *testing.T, name, content string) {
	t.Helper()
	p := filepath.Join(e.root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func (e *testEnv) readFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.root, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}

// ctrl is a raw control connection.
type ctrl struct {
	t    *testing.T
	conn net.Conn
	tp   *textproto.Conn
}

func dialCtrl(t *testing.T, addr string) *ctrl {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	fatalIfErr(t, err, "dial %s", addr)
	_ = conn.SetDeadline(time.Now().Add(30 * time.Second))

	c := &ctrl{t: t, conn: conn, tp: textproto.NewConn(conn)}
	t.Cleanup(func() { c.tp.Close() })
	return c
}

// connect dials and consumes the 220 greeting.
func connect(t *testing.T, env *testEnv) *ctrl {
	t.Helper()
	c := dialCtrl(t, env.addr)
	c.expect(StatusReady)
	return c
}

// connectAs connects and logs in.
func connectAs(t *testing.T, env *testEnv, user, pass string) *ctrl {
	t.Helper()
	c := connect(t, env)
	c.send(StatusNeedPassword, "USER %s", user)
	c.send(StatusLoggedIn, "PASS %s", pass)
	return c
}

func (c *ctrl) read() (int, string) {
	c.t.Helper()
	code, msg, err := c.tp.ReadResponse(0)
	fatalIfErr(c.t, err, "read reply")
	return code, msg
}

func (c *ctrl) expect(code int) string {
	c.t.Helper()
	got, msg := c.read()
	require.Equal(c.t, code, got, "reply %q", msg)
	return msg
}

// send writes a command line and requires the given reply code.
func (c *ctrl) send(code int, format string, args ...any) string {
	c.t.Helper()
	_, err := c.tp.Cmd(format, args...)
	fatalIfErr(c.t, err, "send %q", format)
	return c.expect(code)
}

func (c *ctrl) expectClosed() {
	c.t.Helper()
	_, err := c.tp.ReadLine()
	assert.ErrorIs(c.t, err, io.EOF)
}

var pasvAddrRegex = regexp.MustCompile(`\((\d+),(\d+),(\d+),(\d+),(\d+),(\d+)\)`)

// pasv sends PASV and dials the announced address.
func (c *ctrl) pasv() net.Conn {
	c.t.Helper()
	msg := c.send(StatusPassiveMode, "PASV")
	m := pasvAddrRegex.FindStringSubmatch(msg)
	require.Len(c.t, m, 7, "PASV reply %q", msg)

	p1, _ := strconv.Atoi(m[5])
	p2, _ := strconv.Atoi(m[6])
	addr := net.JoinHostPort(strings.Join(m[1:5], "."), strconv.Itoa(p1*256+p2))

	data, err := net.DialTimeout("tcp", addr, 5*time.Second)
	fatalIfErr(c.t, err, "dial data %s", addr)
	_ = data.SetDeadline(time.Now().Add(30 * time.Second))
	return data
}

// download runs a passive transfer command that sends data to the client.
func (c *ctrl) download(format string, args ...any) (string, string) {
	c.t.Helper()
	data := c.pasv()
	defer data.Close()

	preliminary := c.send(StatusFileStatusOK, format, args...)
	body, err := io.ReadAll(data)
	fatalIfErr(c.t, err, "read data")
	c.expect(StatusTransferComplete)
	return preliminary, string(body)
}

// upload runs a passive transfer command that receives body.
func (c *ctrl) upload(body string, format string, args ...any) string {
	c.t.Helper()
	data := c.pasv()

	preliminary := c.send(StatusFileStatusOK, format, args...)
	_, err := io.WriteString(data, body)
	fatalIfErr(c.t, err, "write data")
	require.NoError(c.t, data.Close())
	c.expect(StatusTransferComplete)
	return preliminary
}

func TestGreeting(t *testing.T) {
	env := startServer(t, WithWelcomeMessage("220 Jailed FTP ready"))
	c := dialCtrl(t, env.addr)
	assert.Equal(t, "Jailed FTP ready", c.expect(StatusReady))
}

func TestLogin(t *testing.T) {
	env := startServer(t)

	c := connect(t, env)
	assert.Equal(t, "Username okay, need password for alice", c.send(StatusNeedPassword, "USER alice"))
	assert.Equal(t, "Success Login for alice", c.send(StatusLoggedIn, "PASS secret"))
	assert.Equal(t, `"/" is current directory`, c.send(StatusPathCreated, "PWD"))
	c.send(StatusSyntaxError, "USER alice")

	// bcrypt passwords
	connectAs(t, env, "dave", "hashed")
}

func TestLoginFailures(t *testing.T) {
	env := startServer(t)

	tests := []struct {
		name    string
		user    string
		pass    string
		userRep int
		passRep int
		msg     string
	}{
		{"unknown user", "mallory", "", StatusInvalidCredentials, 0, "Invalid Username mallory"},
		{"blocked", "bob", "", StatusNotLoggedIn, 0, "bob This user is blocked"},
		{"not allowed", "carol", "", StatusNotLoggedIn, 0, "carol This user is not allowed"},
		{"wrong password", "alice", "nope", StatusNeedPassword, StatusInvalidCredentials, "Invalid Password alice"},
		{"hash is not the password", "dave", "$2a$04$abc", StatusNeedPassword, StatusInvalidCredentials, "Invalid Password dave"},
		{"missing root", "eve", "secret", StatusNeedPassword, StatusNotLoggedIn, "eve home directory unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := connect(t, env)
			msg := c.send(tt.userRep, "USER %s", tt.user)
			if tt.passRep != 0 {
				msg = c.send(tt.passRep, "PASS %s", tt.pass)
			}
			assert.Equal(t, tt.msg, msg)

			// Still unauthenticated.
			c.send(StatusNotLoggedIn, "PWD")
		})
	}
}

func TestCommandsRequireLogin(t *testing.T) {
	env := startServer(t)
	c := connect(t, env)

	for _, cmd := range []string{"PWD", "CWD /", "LIST", "RETR a", "STOR a", "PASV", "MKD x", "TYPE I", "BOGUS"} {
		assert.Equal(t, "Please login with USER and PASS", c.send(StatusNotLoggedIn, "%s", cmd), cmd)
	}

	assert.Equal(t, "UNIX Type: L8", c.send(StatusSystemType, "SYST"))
	c.send(StatusOK, "NOOP")
	assert.Contains(t, c.send(StatusHelp, "HELP"), "RNFR RNTO")
}

func TestLoginSequence(t *testing.T) {
	env := startServer(t)
	c := connect(t, env)

	c.send(StatusBadArguments, "PASS secret")

	// Anything but PASS after USER aborts the login.
	c.send(StatusNeedPassword, "USER alice")
	assert.Equal(t, "NOOP not understood", c.send(StatusSyntaxError, "NOOP"))
	c.send(StatusBadArguments, "PASS secret")

	// A failed attempt can be retried.
	c.send(StatusNeedPassword, "USER alice")
	c.send(StatusInvalidCredentials, "PASS wrong")
	c.send(StatusNeedPassword, "user alice")
	c.send(StatusLoggedIn, "pass secret")
}

func TestQuitInEveryState(t *testing.T) {
	env := startServer(t)
	env.writeFile(t, "a.txt", "x")

	steps := map[string][]string{
		"unauthenticated":   nil,
		"awaiting password": {"USER alice"},
		"authenticated":     {"USER alice", "PASS secret"},
		"awaiting rename":   {"USER alice", "PASS secret", "RNFR a.txt"},
	}
	for name, lines := range steps {
		t.Run(name, func(t *testing.T) {
			c := connect(t, env)
			for _, line := range lines {
				_, err := c.tp.Cmd("%s", line)
				require.NoError(t, err)
				c.read()
			}
			assert.Equal(t, "Goodbye", c.send(StatusClosing, "QUIT"))
			c.expectClosed()
		})
	}
	assert.Equal(t, "x", env.readFile(t, "a.txt"))
}

func TestUnknownCommand(t *testing.T) {
	env := startServer(t)
	c := connectAs(t, env, "alice", "secret")
	assert.Equal(t, "FOO not understood", c.send(StatusSyntaxError, "FOO bar"))
	assert.Equal(t, "FEAT not understood", c.send(StatusSyntaxError, "FEAT"))
}

func TestCommandTooLong(t *testing.T) {
	env := startServer(t)
	c := connect(t, env)

	// No terminator: the server must give up after MaxCommandLength bytes.
	_, err := io.WriteString(c.conn, strings.Repeat("a", MaxCommandLength+1))
	require.NoError(t, err)
	assert.Equal(t, "Command line too long", c.expect(StatusSyntaxError))
	c.expectClosed()
}

func TestDirectoryNavigation(t *testing.T) {
	env := startServer(t)
	env.writeFile(t, "docs/readme.txt", "hi")
	c := connectAs(t, env, "alice", "secret")

	assert.Equal(t, "CWD Command Success", c.send(StatusFileActionOK, "CWD docs"))
	assert.Equal(t, `"/docs" is current directory`, c.send(StatusPathCreated, "PWD"))

	assert.Equal(t, "CDUP Command Success", c.send(StatusFileActionOK, "CDUP"))
	c.send(StatusPathCreated, "PWD")

	// Neither CDUP nor CWD can leave the root.
	c.send(StatusFileActionOK, "CDUP")
	c.send(StatusFileActionOK, "CWD ..")
	c.send(StatusFileActionOK, "CWD ../../..")
	c.send(StatusFileActionOK, "XCUP")
	assert.Equal(t, `"/" is current directory`, c.send(StatusPathCreated, "XPWD"))

	assert.Equal(t, "missing No Such File or Directory", c.send(StatusFileUnavailable, "CWD missing"))
	c.send(StatusFileUnavailable, "CWD docs/readme.txt")

	c.send(StatusFileActionOK, "CWD /docs")
	c.send(StatusFileActionOK, "XCWD /")
	assert.Equal(t, `"/" is current directory`, c.send(StatusPathCreated, "PWD"))
}

func TestMakeAndRemoveDirectories(t *testing.T) {
	env := startServer(t)
	env.writeFile(t, "file.txt", "x")
	c := connectAs(t, env, "alice", "secret")

	assert.Equal(t, `"a/b/c" creation success`, c.send(StatusPathCreated, "MKD a/b/c"))
	assert.DirExists(t, filepath.Join(env.root, "a", "b", "c"))
	c.send(StatusPathCreated, "MKD a/b/c")
	c.send(StatusPathCreated, `XMKD say "hi"`)
	c.send(StatusBadArguments, "MKD")
	c.send(StatusFileUnavailable, "MKD ../outside")
	assert.NoDirExists(t, filepath.Join(filepath.Dir(env.root), "outside"))

	c.send(StatusFileUnavailable, "RMD a")
	c.send(StatusFileUnavailable, "RMD file.txt")
	c.send(StatusFileUnavailable, "RMD missing")
	assert.Equal(t, "Success Deleting Directory", c.send(StatusFileActionOK, "RMD a/b/c"))
	c.send(StatusFileActionOK, "XRMD a/b")
	c.send(StatusFileActionOK, "RMD /a")
	assert.NoDirExists(t, filepath.Join(env.root, "a"))
	c.send(StatusFileUnavailable, "RMD /")
}

func TestDelete(t *testing.T) {
	env := startServer(t)
	env.writeFile(t, "docs/a.txt", "x")
	c := connectAs(t, env, "alice", "secret")

	c.send(StatusFileUnavailable, "DELE docs")
	c.send(StatusFileUnavailable, "DELE missing.txt")
	c.send(StatusFileUnavailable, "DELE ../../etc/passwd")
	assert.Equal(t, "Success Deleting", c.send(StatusFileActionOK, "DELE docs/a.txt"))
	assert.NoFileExists(t, filepath.Join(env.root, "docs", "a.txt"))
}

func TestRename(t *testing.T) {
	env := startServer(t)
	env.writeFile(t, "a.txt", "content")
	c := connectAs(t, env, "alice", "secret")

	assert.Equal(t, "RNTO Bad Sequence of Commands", c.send(StatusBadArguments, "RNTO b.txt"))
	c.send(StatusFileUnavailable, "RNFR missing.txt")

	// A command other than RNTO cancels the rename and is not executed.
	c.send(StatusPendingFurtherInfo, "RNFR a.txt")
	assert.Equal(t, "DELE Bad Sequence of Commands", c.send(StatusBadArguments, "DELE a.txt"))
	assert.FileExists(t, filepath.Join(env.root, "a.txt"))
	c.send(StatusBadArguments, "RNTO b.txt")

	assert.Equal(t, "File or Directory Exists, Ready for Destination", c.send(StatusPendingFurtherInfo, "RNFR a.txt"))
	assert.Equal(t, "Success Renaming", c.send(StatusFileActionOK, "RNTO sub/../b.txt"))
	assert.Equal(t, "content", env.readFile(t, "b.txt"))

	c.send(StatusPendingFurtherInfo, "RNFR b.txt")
	c.send(StatusFileUnavailable, "RNTO ../escaped.txt")
	assert.FileExists(t, filepath.Join(env.root, "b.txt"))

	// The session is usable again.
	c.send(StatusPathCreated, "PWD")
}

func TestTransferWithoutDataMode(t *testing.T) {
	env := startServer(t)
	env.writeFile(t, "a.txt", "x")
	c := connectAs(t, env, "alice", "secret")

	assert.Equal(t, "Use PORT or PASV first", c.send(StatusCannotOpenData, "RETR a.txt"))
	c.send(StatusCannotOpenData, "LIST")
	c.send(StatusCannotOpenData, "STOR b.txt")
}

func TestPassiveReply(t *testing.T) {
	env := startServer(t)
	c := connectAs(t, env, "alice", "secret")

	msg := c.send(StatusPassiveMode, "PASV")
	assert.Regexp(t, `^Entering Passive Mode \(127,0,0,1,\d+,\d+\)\.$`, msg)

	m := pasvAddrRegex.FindStringSubmatch(msg)
	p1, _ := strconv.Atoi(m[5])
	p2, _ := strconv.Atoi(m[6])
	data, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", p1*256+p2), 5*time.Second)
	require.NoError(t, err, "announced port must be listening")
	data.Close()
}

func TestPassiveReplyPublicHost(t *testing.T) {
	env := startServer(t, WithPublicHost("203.0.113.7"))
	c := connectAs(t, env, "alice", "secret")
	assert.Contains(t, c.send(StatusPassiveMode, "PASV"), "(203,0,113,7,")
}

func TestStoreAndRetrieve(t *testing.T) {
	env := startServer(t)
	c := connectAs(t, env, "alice", "secret")

	payload := strings.Repeat("0123456789abcdef", 10000)
	c.send(StatusOK, "TYPE I")
	assert.Equal(t, "Opening BINARY mode to receive up.bin", c.upload(payload, "STOR up.bin"))
	assert.Equal(t, payload, env.readFile(t, "up.bin"))

	preliminary, body := c.download("RETR up.bin")
	assert.Equal(t, fmt.Sprintf("Opening BINARY mode to transfer up.bin (%d bytes)", len(payload)), preliminary)
	assert.Equal(t, payload, body)

	c.send(StatusOK, "TYPE A")
	preliminary, _ = c.download("RETR up.bin")
	assert.Equal(t, fmt.Sprintf("Opening ASCII mode to transfer up.bin (%d bytes)", len(payload)), preliminary)

	// STOR replaces.
	c.upload("short", "STOR /up.bin")
	assert.Equal(t, "short", env.readFile(t, "up.bin"))

	// Empty files.
	c.upload("", "STOR empty")
	_, body = c.download("RETR empty")
	assert.Empty(t, body)
}

func TestAppend(t *testing.T) {
	env := startServer(t)
	env.writeFile(t, "log.txt", "one\n")
	c := connectAs(t, env, "alice", "secret")

	c.upload("two\n", "APPE log.txt")
	assert.Equal(t, "one\ntwo\n", env.readFile(t, "log.txt"))

	c.upload("new", "APPE fresh.txt")
	assert.Equal(t, "new", env.readFile(t, "fresh.txt"))
}

func TestStoreUnique(t *testing.T) {
	env := startServer(t)
	env.writeFile(t, "docs/taken.txt", "old")
	c := connectAs(t, env, "alice", "secret")
	c.send(StatusFileActionOK, "CWD docs")

	msg := c.upload("generated", "STOU")
	require.Regexp(t, `^FILE: [A-Za-z0-9]{8}$`, msg)
	name := strings.TrimPrefix(msg, "FILE: ")
	assert.Equal(t, "generated", env.readFile(t, "docs/"+name))

	msg = c.upload("wanted", "STOU wanted.txt")
	assert.Equal(t, "FILE: wanted.txt", msg)

	msg = c.upload("new", "STOU taken.txt")
	require.Regexp(t, `^FILE: [A-Za-z0-9]{8}$`, msg)
	assert.Equal(t, "old", env.readFile(t, "docs/taken.txt"))
	assert.Equal(t, "new", env.readFile(t, "docs/"+strings.TrimPrefix(msg, "FILE: ")))
}

func TestUploadErrors(t *testing.T) {
	env := startServer(t)
	env.writeFile(t, "docs/a.txt", "x")
	c := connectAs(t, env, "alice", "secret")

	// Errors found before the data channel is used release the PASV listener.
	c.pasv().Close()
	c.send(StatusFileUnavailable, "STOR docs")
	c.send(StatusCannotOpenData, "STOR b.txt")

	c.pasv().Close()
	c.send(StatusFileUnavailable, "STOR ../../x.txt")
	c.pasv().Close()
	c.send(StatusFileUnavailable, "STOR missing/dir/x.txt")
	c.pasv().Close()
	c.send(StatusFileUnavailable, "RETR docs")
	c.pasv().Close()
	c.send(StatusFileUnavailable, "RETR nope.txt")
	c.pasv().Close()
	c.send(StatusFileUnavailable, "LIST /nope")
	c.pasv().Close()
	c.send(StatusFileUnavailable, "STOU /")
}

func TestFailedUploadKeepsTarget(t *testing.T) {
	env := startServer(t, WithDataConnTimeout(2*time.Second))
	env.writeFile(t, "docs/keep.txt", "precious")
	c := connectAs(t, env, "alice", "secret")
	c.send(StatusFileActionOK, "CWD docs")

	c.send(StatusCannotOpenData, "STOR keep.txt")
	assert.Equal(t, "precious", env.readFile(t, "docs/keep.txt"))
	c.send(StatusCannotOpenData, "STOR new.txt")
	assert.NoFileExists(t, filepath.Join(env.root, "docs", "new.txt"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	c.send(StatusOK, "PORT 127,0,0,1,%d,%d", port/256, port%256)
	c.send(StatusCannotOpenData, "STOR keep.txt")
	assert.Equal(t, "precious", env.readFile(t, "docs/keep.txt"))

	c.send(StatusOK, "PORT 127,0,0,1,%d,%d", port/256, port%256)
	c.send(StatusCannotOpenData, "STOU")
	c.send(StatusCannotOpenData, "STOU wanted.txt")

	entries, err := os.ReadDir(filepath.Join(env.root, "docs"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no stray unique files")
	assert.Equal(t, "keep.txt", entries[0].Name())
}

func TestPassiveRejectsForeignPeer(t *testing.T) {
	env := startServer(t)
	env.writeFile(t, "a.txt", "secret data")
	c := connectAs(t, env, "alice", "secret")

	msg := c.send(StatusPassiveMode, "PASV")
	m := pasvAddrRegex.FindStringSubmatch(msg)
	require.Len(t, m, 7)
	p1, _ := strconv.Atoi(m[5])
	p2, _ := strconv.Atoi(m[6])

	// The control connection comes from 127.0.0.1; take the data port from
	// another loopback address.
	d := net.Dialer{LocalAddr: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 2)}, Timeout: 5 * time.Second}
	data, err := d.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", p1*256+p2))
	if err != nil {
		t.Skipf("cannot bind 127.0.0.2: %v", err)
	}
	defer data.Close()

	c.send(StatusCannotOpenData, "RETR a.txt")
	_ = data.SetReadDeadline(time.Now().Add(5 * time.Second))
	body, _ := io.ReadAll(data)
	assert.Empty(t, body)
}

func TestDataModeIsSingleUse(t *testing.T) {
	env := startServer(t)
	env.writeFile(t, "a.txt", "x")
	c := connectAs(t, env, "alice", "secret")

	c.download("RETR a.txt")
	c.send(StatusCannotOpenData, "RETR a.txt")
}

func TestList(t *testing.T) {
	env := startServer(t)
	env.writeFile(t, "docs/b.txt", "hello")
	env.writeFile(t, "docs/a.txt", "")
	require.NoError(t, os.Chmod(filepath.Join(env.root, "docs", "a.txt"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(env.root, "docs", "sub"), 0o755))
	require.NoError(t, os.Chmod(filepath.Join(env.root, "docs", "sub"), 0o755))
	c := connectAs(t, env, "alice", "secret")

	preliminary, body := c.download("LIST docs")
	assert.Equal(t, "Opening ASCII mode data for file list", preliminary)
	lines := strings.Split(strings.TrimSuffix(body, "\r\n"), "\r\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "33152\t0B\t/docs/a.txt", lines[0])
	assert.Equal(t, "33188\t5B\t/docs/b.txt", lines[1])
	assert.Regexp(t, `^16877\t\d+B\t/docs/sub$`, lines[2])

	// The current directory, with ls flags ignored.
	c.send(StatusFileActionOK, "CWD docs")
	_, body = c.download("LIST -la")
	assert.Equal(t, 3, strings.Count(body, "\r\n"))
	_, body = c.download("LIST -l -a")
	assert.Equal(t, 3, strings.Count(body, "\r\n"))

	// A single file.
	_, body = c.download("LIST b.txt")
	assert.Equal(t, "33188\t5B\t/docs/b.txt\r\n", body)

	// An empty directory.
	_, body = c.download("LIST sub")
	assert.Empty(t, body)
}

func TestActiveMode(t *testing.T) {
	env := startServer(t)
	env.writeFile(t, "a.txt", "active payload")
	c := connectAs(t, env, "alice", "secret")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	assert.Equal(t, "Port command successful", c.send(StatusOK, "PORT 127,0,0,1,%d,%d", port/256, port%256))
	c.send(StatusFileStatusOK, "RETR a.txt")

	data, err := ln.Accept()
	require.NoError(t, err)
	body, err := io.ReadAll(data)
	require.NoError(t, err)
	data.Close()
	c.expect(StatusTransferComplete)
	assert.Equal(t, "active payload", string(body))

	// Upload over an active connection.
	c.send(StatusOK, "PORT 127,0,0,1,%d,%d", port/256, port%256)
	_, err = c.tp.Cmd("STOR b.txt")
	require.NoError(t, err)
	data, err = ln.Accept()
	require.NoError(t, err)
	c.expect(StatusFileStatusOK)
	_, err = io.WriteString(data, "uploaded")
	require.NoError(t, err)
	data.Close()
	c.expect(StatusTransferComplete)
	assert.Equal(t, "uploaded", env.readFile(t, "b.txt"))
}

func TestPortValidation(t *testing.T) {
	env := startServer(t)
	c := connectAs(t, env, "alice", "secret")

	assert.Equal(t, "Invalid PORT argument", c.send(StatusBadArguments, "PORT 127,0,0,1,4"))
	c.send(StatusBadArguments, "PORT 127,0,0,1,300,1")
	c.send(StatusBadArguments, "PORT")
	assert.Equal(t, "Illegal PORT command", c.send(StatusSyntaxError, "PORT 10,0,0,1,4,1"))
	c.send(StatusCannotOpenData, "LIST")
}

func TestActiveModeConnectFailure(t *testing.T) {
	env := startServer(t, WithDataConnTimeout(2*time.Second))
	env.writeFile(t, "a.txt", "x")
	c := connectAs(t, env, "alice", "secret")

	// Nothing listens on the announced port.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	c.send(StatusOK, "PORT 127,0,0,1,%d,%d", port/256, port%256)
	assert.Equal(t, "Can't open data connection", c.send(StatusCannotOpenData, "RETR a.txt"))
	c.send(StatusCannotOpenData, "RETR a.txt")
}

func TestType(t *testing.T) {
	env := startServer(t)
	c := connectAs(t, env, "alice", "secret")

	assert.Equal(t, "Type set to I", c.send(StatusOK, "TYPE I"))
	assert.Equal(t, "Type set to A", c.send(StatusOK, "TYPE a"))
	c.send(StatusOK, "TYPE A N")
	assert.Equal(t, "Type set to I", c.send(StatusOK, "TYPE L 8"))
	c.send(StatusBadArguments, "TYPE E")
	c.send(StatusBadArguments, "TYPE")
}

func TestHelp(t *testing.T) {
	env := startServer(t)
	c := connectAs(t, env, "alice", "secret")

	msg := c.send(StatusHelp, "HELP")
	lines := strings.Split(msg, "\n")
	assert.Equal(t, "The following commands are recognized:", lines[0])
	assert.Equal(t, "Help OK", lines[len(lines)-1])
}

func TestSymlinkEscapeIsRefused(t *testing.T) {
	env := startServer(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("secret"), 0o644))
	require.NoError(t, os.Symlink(outside, filepath.Join(env.root, "link")))
	c := connectAs(t, env, "alice", "secret")

	c.pasv().Close()
	c.send(StatusFileUnavailable, "RETR link/secret.txt")
	c.send(StatusFileUnavailable, "CWD link")
	c.pasv().Close()
	c.send(StatusFileUnavailable, "STOR link/new.txt")
	assert.NoFileExists(t, filepath.Join(outside, "new.txt"))
}

func TestTelnetNegotiationOnControl(t *testing.T) {
	env := startServer(t)
	c := connect(t, env)

	_, err := c.conn.Write([]byte{'N', 'O', telnetIAC, telnetDO, 1, 'O', 'P', '\r', '\n'})
	require.NoError(t, err)
	assert.Equal(t, "OK", c.expect(StatusOK))
}
