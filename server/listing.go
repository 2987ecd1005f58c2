package server

import (
	"fmt"
	"io"
	"io/fs"
	"path"
)

// Unix st_mode file type bits.
const (
	modeTypeFIFO   = 0o010000
	modeTypeChar   = 0o020000
	modeTypeDir    = 0o040000
	modeTypeBlock  = 0o060000
	modeTypeFile   = 0o100000
	modeTypeLink   = 0o120000
	modeTypeSocket = 0o140000

	modeSetuid = 0o4000
	modeSetgid = 0o2000
	modeSticky = 0o1000
)

// unixMode converts a FileMode to the numeric st_mode value.
func unixMode(m fs.FileMode) uint32 {
	mode := uint32(m.Perm())

	switch {
	case m&fs.ModeDir != 0:
		mode |= modeTypeDir
	case m&fs.ModeSymlink != 0:
		mode |= modeTypeLink
	case m&fs.ModeNamedPipe != 0:
		mode |= modeTypeFIFO
	case m&fs.ModeSocket != 0:
		mode |= modeTypeSocket
	case m&fs.ModeDevice != 0 && m&fs.ModeCharDevice != 0:
		mode |= modeTypeChar
	case m&fs.ModeDevice != 0:
		mode |= modeTypeBlock
	default:
		mode |= modeTypeFile
	}

	if m&fs.ModeSetuid != 0 {
		mode |= modeSetuid
	}
	if m&fs.ModeSetgid != 0 {
		mode |= modeSetgid
	}
	if m&fs.ModeSticky != 0 {
		mode |= modeSticky
	}
	return mode
}

// formatListLine renders one LIST entry: "<st_mode>\t<size>B\t<path>".
// virtualPath is relative to the account root and starts with "/".
func formatListLine(info fs.FileInfo, virtualPath string) string {
	return fmt.Sprintf("%d\t%dB\t%s\r\n", unixMode(info.Mode()), info.Size(), virtualPath)
}

// writeListing writes the listing of target (a directory or a single file).
func (s *session) writeListing(w io.Writer, target string, info fs.FileInfo) error {
	if !info.IsDir() {
		if _, err := io.WriteString(w, formatListLine(info, s.jail.Virtual(target))); err != nil {
			return &TransportError{Op: "transfer", Err: err}
		}
		return nil
	}

	entries, err := s.jail.ReadDir(target)
	if err != nil {
		return err
	}

	dir := s.jail.Virtual(target)
	for _, entry := range entries {
		entryInfo, err := entry.Info()
		if err != nil {
			continue
		}
		if _, err := io.WriteString(w, formatListLine(entryInfo, path.Join(dir, entry.Name()))); err != nil {
			return &TransportError{Op: "transfer", Err: err}
		}
	}
	return nil
}
