package ftp

import (
	"bufio"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"
)

// Entry is one line of a LIST reply.
type Entry struct {
	// Name is the base name.
	Name string

	// Path is the path relative to the account root, starting with "/".
	Path string

	// Type is "file", "dir", "link" or "other".
	Type string

	// Size is the size in bytes.
	Size int64

	// Mode holds the permission bits and the type bits of the entry.
	Mode fs.FileMode

	// Raw is the listing line as received.
	Raw string
}

// IsDir reports whether the entry is a directory.
func (e *Entry) IsDir() bool {
	return e.Type == "dir"
}

// List returns the entries of path, or of the current directory if path is
// empty. A file path yields a single entry.
//
// Example:
//
//	entries, err := client.List("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, e := range entries {
//	    fmt.Printf("%s\t%d\t%s\n", e.Type, e.Size, e.Path)
//	}
func (c *Client) List(dir string) ([]*Entry, error) {
	var args []string
	if dir != "" {
		args = append(args, dir)
	}

	_, dataConn, err := c.cmdDataConn("LIST", args...)
	if err != nil {
		return nil, err
	}

	var entries []*Entry
	scanner := bufio.NewScanner(dataConn)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if entry, err := parseListLine(line); err == nil {
			entries = append(entries, entry)
		} else {
			c.logger.Debug("skipping unparsable listing line", "line", line, "error", err)
		}
	}
	scanErr := scanner.Err()

	if err := c.finishDataConn("LIST", dataConn); err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, fmt.Errorf("failed to read directory listing: %w", scanErr)
	}
	return entries, nil
}

// Unix st_mode type bits.
const (
	sIFMT   = 0o170000
	sIFDIR  = 0o040000
	sIFREG  = 0o100000
	sIFLNK  = 0o120000
	sIFIFO  = 0o010000
	sIFSOCK = 0o140000
	sIFCHR  = 0o020000
	sIFBLK  = 0o060000
)

// parseListLine parses "<st_mode>\t<size>B\t<path>".
func parseListLine(line string) (*Entry, error) {
	fields := strings.SplitN(line, "\t", 3)
	if len(fields) != 3 {
		return nil, fmt.Errorf("expected 3 tab separated fields, got %d", len(fields))
	}

	raw, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid mode %q", fields[0])
	}

	size, err := strconv.ParseInt(strings.TrimSuffix(fields[1], "B"), 10, 64)
	if err != nil || size < 0 {
		return nil, fmt.Errorf("invalid size %q", fields[1])
	}

	p := fields[2]
	if p == "" {
		return nil, fmt.Errorf("empty path")
	}

	mode, typ := fileMode(uint32(raw))
	return &Entry{
		Name: path.Base(p),
		Path: p,
		Type: typ,
		Size: size,
		Mode: mode,
		Raw:  line,
	}, nil
}

// fileMode converts a Unix st_mode value.
func fileMode(raw uint32) (fs.FileMode, string) {
	mode := fs.FileMode(raw & 0o777)
	if raw&0o4000 != 0 {
		mode |= fs.ModeSetuid
	}
	if raw&0o2000 != 0 {
		mode |= fs.ModeSetgid
	}
	if raw&0o1000 != 0 {
		mode |= fs.ModeSticky
	}

	switch raw & sIFMT {
	case sIFDIR:
		return mode | fs.ModeDir, "dir"
	case sIFREG:
		return mode, "file"
	case sIFLNK:
		return mode | fs.ModeSymlink, "link"
	case sIFIFO:
		return mode | fs.ModeNamedPipe, "other"
	case sIFSOCK:
		return mode | fs.ModeSocket, "other"
	case sIFCHR:
		return mode | fs.ModeDevice | fs.ModeCharDevice, "other"
	case sIFBLK:
		return mode | fs.ModeDevice, "other"
	default:
		return mode, "other"
	}
}

// ChangeDir changes the working directory.
func (c *Client) ChangeDir(dir string) error {
	_, err := c.expect2xx("CWD", dir)
	return err
}

// ChangeDirUp moves to the parent directory.
func (c *Client) ChangeDirUp() error {
	_, err := c.expect2xx("CDUP")
	return err
}

// CurrentDir returns the working directory as reported by PWD.
func (c *Client) CurrentDir() (string, error) {
	resp, err := c.expectCode(257, "PWD")
	if err != nil {
		return "", err
	}
	return parseQuotedPath(resp.Message)
}

// parseQuotedPath extracts the path from `"<path>" comment`. Doubled quotes
// inside the path are unescaped.
func parseQuotedPath(msg string) (string, error) {
	start := strings.IndexByte(msg, '"')
	if start == -1 {
		return "", fmt.Errorf("invalid PWD response: %s", msg)
	}

	var b strings.Builder
	for i := start + 1; i < len(msg); i++ {
		if msg[i] != '"' {
			b.WriteByte(msg[i])
			continue
		}
		if i+1 < len(msg) && msg[i+1] == '"' {
			b.WriteByte('"')
			i++
			continue
		}
		return b.String(), nil
	}
	return "", fmt.Errorf("invalid PWD response: %s", msg)
}

// MakeDir creates a directory and any missing parents.
func (c *Client) MakeDir(dir string) error {
	_, err := c.expectCode(257, "MKD", dir)
	return err
}

// RemoveDir removes an empty directory.
func (c *Client) RemoveDir(dir string) error {
	_, err := c.expect2xx("RMD", dir)
	return err
}

// Delete removes a file.
func (c *Client) Delete(file string) error {
	_, err := c.expect2xx("DELE", file)
	return err
}

// Rename renames a file or directory with RNFR/RNTO.
func (c *Client) Rename(from, to string) error {
	if _, err := c.expectCode(350, "RNFR", from); err != nil {
		return err
	}
	_, err := c.expect2xx("RNTO", to)
	return err
}
