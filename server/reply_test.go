package server

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReply(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReply(&buf, StatusReady, "Service ready for new user"))
	assert.Equal(t, "220 Service ready for new user\r\n", buf.String())
}

func TestWriteReplySanitizesLineBreaks(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReply(&buf, StatusFileUnavailable, "bad\r\n230 injected"))
	assert.Equal(t, "550 bad  230 injected\r\n", buf.String())
}

func TestWriteMultiline(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeMultiline(&buf, StatusHelp, []string{"first", " middle", "last"}))
	assert.Equal(t, "214-first\r\n214- middle\r\n214 last\r\n", buf.String())

	buf.Reset()
	require.NoError(t, writeMultiline(&buf, StatusHelp, nil))
	assert.Equal(t, "214 \r\n", buf.String())
}

func TestQuotePath(t *testing.T) {
	assert.Equal(t, `"/"`, quotePath("/"))
	assert.Equal(t, `"/a b"`, quotePath("/a b"))
	assert.Equal(t, `"/say ""hi"""`, quotePath(`/say "hi"`))
}
