package shell

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/c-bata/go-prompt"
)

type requirement int

const (
	needsNothing requirement = iota
	needsConnection
	needsLogin
)

type command struct {
	names   []string
	usage   string
	help    string
	needs   requirement
	minArgs int
	maxArgs int // -1 for no limit
	run     func(s *Shell, args []string) error
}

var (
	commands     []command
	commandIndex map[string]*command
	suggestions  []prompt.Suggest
)

func init() {
	commands = []command{
		{names: []string{"open"}, usage: "open host [port]", help: "Connect to a server", maxArgs: 2, minArgs: 1, run: (*Shell).cmdOpen},
		{names: []string{"close"}, usage: "close", help: "Close the connection", run: (*Shell).cmdClose},
		{names: []string{"quit", "exit"}, usage: "quit", help: "Close the connection and exit", run: (*Shell).cmdQuit},
		{names: []string{"help"}, usage: "help", help: "Show this help", run: (*Shell).cmdHelp},
		{names: []string{"user"}, usage: "user [name]", help: "Log in again", needs: needsConnection, maxArgs: 1, run: (*Shell).cmdUser},
		{names: []string{"ls", "list"}, usage: "ls [path]", help: "List a directory", needs: needsLogin, maxArgs: 1, run: (*Shell).cmdList},
		{names: []string{"cd", "cwd"}, usage: "cd dir", help: "Change the remote directory", needs: needsLogin, minArgs: 1, maxArgs: 1, run: (*Shell).cmdCd},
		{names: []string{"cdup", "cdu"}, usage: "cdup", help: "Go to the parent directory", needs: needsLogin, run: (*Shell).cmdCdup},
		{names: []string{"pwd"}, usage: "pwd", help: "Print the remote directory", needs: needsLogin, run: (*Shell).cmdPwd},
		{names: []string{"mkdir", "mkd"}, usage: "mkdir dir", help: "Create a directory", needs: needsLogin, minArgs: 1, maxArgs: 1, run: (*Shell).cmdMkdir},
		{names: []string{"rm", "rmd"}, usage: "rm dir", help: "Remove an empty directory", needs: needsLogin, minArgs: 1, maxArgs: 1, run: (*Shell).cmdRmdir},
		{names: []string{"dele", "del"}, usage: "dele file", help: "Delete a file", needs: needsLogin, minArgs: 1, maxArgs: 1, run: (*Shell).cmdDelete},
		{names: []string{"rename"}, usage: "rename from to", help: "Rename a file or directory", needs: needsLogin, minArgs: 2, maxArgs: 2, run: (*Shell).cmdRename},
		{names: []string{"put", "stor"}, usage: "put local [remote]", help: "Upload a file", needs: needsLogin, minArgs: 1, maxArgs: 2, run: (*Shell).cmdPut},
		{names: []string{"append"}, usage: "append local [remote]", help: "Append a file to a remote file", needs: needsLogin, minArgs: 1, maxArgs: 2, run: (*Shell).cmdAppend},
		{names: []string{"putu"}, usage: "putu local", help: "Upload a file under a unique name", needs: needsLogin, minArgs: 1, maxArgs: 1, run: (*Shell).cmdPutUnique},
		{names: []string{"get", "retr"}, usage: "get remote [local]", help: "Download a file", needs: needsLogin, minArgs: 1, maxArgs: 2, run: (*Shell).cmdGet},
		{names: []string{"active"}, usage: "active", help: "Use PORT for transfers", needs: needsLogin, run: (*Shell).cmdActive},
		{names: []string{"passive"}, usage: "passive", help: "Use PASV for transfers", needs: needsLogin, run: (*Shell).cmdPassive},
		{names: []string{"quote"}, usage: "quote command [args]", help: "Send a raw command", needs: needsLogin, minArgs: 1, maxArgs: -1, run: (*Shell).cmdQuote},
	}

	commandIndex = make(map[string]*command)
	for i := range commands {
		c := &commands[i]
		for _, name := range c.names {
			commandIndex[name] = c
			suggestions = append(suggestions, prompt.Suggest{Text: name, Description: c.help})
		}
	}
}

func (s *Shell) cmdOpen(args []string) error {
	if s.client != nil {
		s.errorf("Already connected, use close to end connection")
		return nil
	}
	port := "21"
	if len(args) == 2 {
		port = args[1]
	}
	return s.open(args[0], port)
}

func (s *Shell) cmdClose(_ []string) error {
	if s.client == nil {
		s.errorf("Not Connected")
		return nil
	}
	s.Close()
	s.infof("Closing connection")
	return nil
}

func (s *Shell) cmdQuit(_ []string) error {
	s.Close()
	s.infof("Goodbye")
	s.exit = true
	return nil
}

func (s *Shell) cmdHelp(_ []string) error {
	for _, c := range commands {
		fmt.Fprintf(s.out, "  %-24s %s\n", c.usage, c.help)
	}
	return nil
}

func (s *Shell) cmdUser(args []string) error {
	name := ""
	if len(args) == 1 {
		name = args[0]
	}
	return s.login(name)
}

func (s *Shell) cmdList(args []string) error {
	dir := ""
	if len(args) == 1 {
		dir = args[0]
	}
	entries, err := s.client.List(dir)
	if err != nil {
		return err
	}
	return renderEntries(s.out, entries)
}

func (s *Shell) cmdCd(args []string) error {
	if err := s.client.ChangeDir(args[0]); err != nil {
		return err
	}
	return s.cmdPwd(nil)
}

func (s *Shell) cmdCdup(_ []string) error {
	if err := s.client.ChangeDirUp(); err != nil {
		return err
	}
	return s.cmdPwd(nil)
}

func (s *Shell) cmdPwd(_ []string) error {
	dir, err := s.client.CurrentDir()
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, dir)
	return nil
}

func (s *Shell) cmdMkdir(args []string) error {
	if err := s.client.MakeDir(args[0]); err != nil {
		return err
	}
	s.okf("Directory created")
	return nil
}

func (s *Shell) cmdRmdir(args []string) error {
	if err := s.client.RemoveDir(args[0]); err != nil {
		return err
	}
	s.okf("Directory removed")
	return nil
}

func (s *Shell) cmdDelete(args []string) error {
	if err := s.client.Delete(args[0]); err != nil {
		return err
	}
	s.okf("File deleted")
	return nil
}

func (s *Shell) cmdRename(args []string) error {
	if err := s.client.Rename(args[0], args[1]); err != nil {
		return err
	}
	s.okf("Renamed %s to %s", args[0], args[1])
	return nil
}

// remoteName is the second argument, or the base name of the local file.
func remoteName(args []string) string {
	if len(args) == 2 {
		return args[1]
	}
	return filepath.Base(args[0])
}

func (s *Shell) cmdPut(args []string) error {
	if err := s.client.UploadFile(args[0], remoteName(args)); err != nil {
		return err
	}
	s.okf("Transfer complete")
	return nil
}

func (s *Shell) cmdAppend(args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	if err := s.client.Append(remoteName(args), f); err != nil {
		return err
	}
	s.okf("Transfer complete")
	return nil
}

func (s *Shell) cmdPutUnique(args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	name, err := s.client.StoreUnique("", f)
	if err != nil {
		return err
	}
	s.okf("Stored as %s", name)
	return nil
}

func (s *Shell) cmdGet(args []string) error {
	local := path.Base(args[0])
	if len(args) == 2 {
		local = args[1]
	}
	if err := s.client.DownloadFile(args[0], local); err != nil {
		return err
	}
	s.okf("Transfer complete")
	return nil
}

func (s *Shell) cmdActive(_ []string) error {
	s.active = true
	s.client.SetActiveMode(true)
	s.infof("Active mode on")
	return nil
}

func (s *Shell) cmdPassive(_ []string) error {
	s.active = false
	s.client.SetActiveMode(false)
	s.infof("Passive mode on")
	return nil
}

func (s *Shell) cmdQuote(args []string) error {
	resp, err := s.client.Quote(args[0], args[1:]...)
	if err != nil {
		return err
	}
	for _, line := range strings.Split(resp.String(), "\n") {
		fmt.Fprintln(s.out, line)
	}
	return nil
}
