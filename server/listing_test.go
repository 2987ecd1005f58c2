package server

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInfo struct {
	name string
	size int64
	mode fs.FileMode
}

func (f fakeInfo) Name() string       { return f.name }
func (f fakeInfo) Size() int64        { return f.size }
func (f fakeInfo) Mode() fs.FileMode  { return f.mode }
func (f fakeInfo) ModTime() time.Time { return time.Time{} }
func (f fakeInfo) IsDir() bool        { return f.mode.IsDir() }
func (f fakeInfo) Sys() any           { return nil }

func TestUnixMode(t *testing.T) {
	tests := []struct {
		mode fs.FileMode
		want uint32
	}{
		{0o644, 0o100644},
		{fs.ModeDir | 0o755, 0o040755},
		{fs.ModeSymlink | 0o777, 0o120777},
		{fs.ModeNamedPipe | 0o600, 0o010600},
		{fs.ModeSocket | 0o755, 0o140755},
		{fs.ModeDevice | fs.ModeCharDevice | 0o620, 0o020620},
		{fs.ModeDevice | 0o660, 0o060660},
		{fs.ModeSetuid | 0o755, 0o104755},
		{fs.ModeDir | fs.ModeSticky | 0o777, 0o041777},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, unixMode(tt.mode), "mode %v", tt.mode)
	}
}

func TestFormatListLine(t *testing.T) {
	line := formatListLine(fakeInfo{name: "a.txt", size: 11, mode: 0o644}, "/docs/a.txt")
	assert.Equal(t, "33188\t11B\t/docs/a.txt\r\n", line)

	line = formatListLine(fakeInfo{name: "docs", size: 4096, mode: fs.ModeDir | 0o755}, "/docs")
	assert.Equal(t, "16877\t4096B\t/docs\r\n", line)
}

func TestWriteListing(t *testing.T) {
	j := newTestJail(t)
	root := j.Root()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "b.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "a.txt"), nil, 0o600))

	s := &session{jail: j}
	var out lineBuffer

	docs := filepath.Join(root, "docs")
	info, err := j.Stat(docs)
	require.NoError(t, err)
	require.NoError(t, s.writeListing(&out, docs, info))

	lines := out.lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "33152\t0B\t/docs/a.txt", lines[0])
	assert.Equal(t, "33188\t5B\t/docs/b.txt", lines[1])
	assert.Regexp(t, `^16877\t\d+B\t/docs/sub$`, lines[2])

	out.Reset()
	file := filepath.Join(docs, "b.txt")
	info, err = j.Stat(file)
	require.NoError(t, err)
	require.NoError(t, s.writeListing(&out, file, info))
	assert.Equal(t, []string{"33188\t5B\t/docs/b.txt"}, out.lines())
}

func TestListTarget(t *testing.T) {
	tests := []struct {
		arg  string
		want string
	}{
		{"", ""},
		{"-la", ""},
		{"-l -a docs", "docs"},
		{"-la  my  docs", "my  docs"},
		{"a  b", "a  b"},
		{"-odd-name", "-odd-name"},
		{"docs -la", "docs -la"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, listTarget(tt.arg), "listTarget(%q)", tt.arg)
	}
}
