package ftp

import (
	"io/fs"
	"testing"
)

func TestParseListLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		line     string
		wantPath string
		wantName string
		wantType string
		wantSize int64
		wantPerm fs.FileMode
		wantErr  bool
	}{
		{
			name:     "regular file",
			line:     "33188\t11B\t/docs/hello.txt",
			wantPath: "/docs/hello.txt",
			wantName: "hello.txt",
			wantType: "file",
			wantSize: 11,
			wantPerm: 0o644,
		},
		{
			name:     "directory",
			line:     "16877\t4096B\t/docs",
			wantPath: "/docs",
			wantName: "docs",
			wantType: "dir",
			wantSize: 4096,
			wantPerm: 0o755,
		},
		{
			name:     "symlink",
			line:     "41471\t7B\t/link",
			wantPath: "/link",
			wantName: "link",
			wantType: "link",
			wantSize: 7,
			wantPerm: 0o777,
		},
		{
			name:     "name with spaces",
			line:     "33188\t0B\t/my file.txt",
			wantPath: "/my file.txt",
			wantName: "my file.txt",
			wantType: "file",
			wantPerm: 0o644,
		},
		{name: "two fields", line: "33188\t11B", wantErr: true},
		{name: "bad mode", line: "rwx\t11B\t/a", wantErr: true},
		{name: "bad size", line: "33188\televenB\t/a", wantErr: true},
		{name: "negative size", line: "33188\t-1B\t/a", wantErr: true},
		{name: "empty path", line: "33188\t1B\t", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := parseListLine(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseListLine(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if entry.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", entry.Path, tt.wantPath)
			}
			if entry.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", entry.Name, tt.wantName)
			}
			if entry.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", entry.Type, tt.wantType)
			}
			if entry.Size != tt.wantSize {
				t.Errorf("Size = %d, want %d", entry.Size, tt.wantSize)
			}
			if entry.Mode.Perm() != tt.wantPerm {
				t.Errorf("Perm = %o, want %o", entry.Mode.Perm(), tt.wantPerm)
			}
			if entry.Raw != tt.line {
				t.Errorf("Raw = %q", entry.Raw)
			}
		})
	}
}

func TestFileMode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw      uint32
		wantType string
		check    func(fs.FileMode) bool
	}{
		{0o040755, "dir", fs.FileMode.IsDir},
		{0o100644, "file", fs.FileMode.IsRegular},
		{0o120777, "link", func(m fs.FileMode) bool { return m&fs.ModeSymlink != 0 }},
		{0o010644, "other", func(m fs.FileMode) bool { return m&fs.ModeNamedPipe != 0 }},
		{0o140755, "other", func(m fs.FileMode) bool { return m&fs.ModeSocket != 0 }},
		{0o020600, "other", func(m fs.FileMode) bool { return m&fs.ModeCharDevice != 0 }},
		{0o104755, "file", func(m fs.FileMode) bool { return m&fs.ModeSetuid != 0 }},
		{0o041777, "dir", func(m fs.FileMode) bool { return m&fs.ModeSticky != 0 }},
	}

	for _, tt := range tests {
		mode, typ := fileMode(tt.raw)
		if typ != tt.wantType {
			t.Errorf("fileMode(%o) type = %q, want %q", tt.raw, typ, tt.wantType)
		}
		if !tt.check(mode) {
			t.Errorf("fileMode(%o) = %v, unexpected bits", tt.raw, mode)
		}
	}
}

func TestParseQuotedPath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		msg     string
		want    string
		wantErr bool
	}{
		{`"/" is current directory`, "/", false},
		{`"/docs/sub" is current directory`, "/docs/sub", false},
		{`"/say ""hi""" is current directory`, `/say "hi"`, false},
		{`"new dir" creation success`, "new dir", false},
		{`no quotes here`, "", true},
		{`"unterminated`, "", true},
	}

	for _, tt := range tests {
		got, err := parseQuotedPath(tt.msg)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseQuotedPath(%q) error = %v, wantErr %v", tt.msg, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseQuotedPath(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestParseUniqueName(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"FILE: aB3dE9xZ":          "aB3dE9xZ",
		"FILE:name.txt":           "name.txt",
		"Opening data connection": "",
	}
	for msg, want := range tests {
		if got := parseUniqueName(msg); got != want {
			t.Errorf("parseUniqueName(%q) = %q, want %q", msg, got, want)
		}
	}
}
