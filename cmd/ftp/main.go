// Command ftp is an interactive FTP client.
//
// Usage:
//
//	ftp [flags] [host [port]]
//
// Type help at the prompt for the list of commands.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/gonzalop/ftpjail/internal/shell"
)

func main() {
	fs := pflag.NewFlagSet("ftp", pflag.ContinueOnError)
	user := fs.StringP("user", "u", "", "User name (prompted when empty)")
	pass := fs.StringP("pass", "w", "", "Password (prompted when empty)")
	active := fs.Bool("active", false, "Use active mode (PORT) for data transfers")
	timeout := fs.Duration("timeout", 30*time.Second, "Timeout for control and data operations")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: ftp [flags] [host [port]]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if fs.NArg() > 2 {
		fs.Usage()
		os.Exit(2)
	}
	if *noColor {
		color.NoColor = true
	}

	sh := shell.New(shell.Config{
		User:     *user,
		Password: *pass,
		Active:   *active,
		Timeout:  *timeout,
	})
	defer sh.Close()

	if host := fs.Arg(0); host != "" {
		line := "open " + host
		if port := fs.Arg(1); port != "" {
			line += " " + port
		}
		sh.Execute(line)
	}

	sh.Run()
}
