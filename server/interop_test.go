package server

import (
	"io"
	"strings"
	"testing"
	"time"

	jftp "github.com/jlaffaye/ftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestThirdPartyClient drives the server with an independent client
// implementation.
func TestThirdPartyClient(t *testing.T) {
	env := startServer(t)
	env.writeFile(t, "docs/readme.txt", "shared")

	c, err := jftp.Dial(env.addr,
		jftp.DialWithTimeout(5*time.Second),
		jftp.DialWithDisabledEPSV(true),
	)
	require.NoError(t, err)
	defer c.Quit()

	require.NoError(t, c.Login("alice", "secret"))

	require.NoError(t, c.ChangeDir("docs"))
	dir, err := c.CurrentDir()
	require.NoError(t, err)
	assert.Equal(t, "/docs", dir)

	r, err := c.Retr("readme.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "shared", string(body))

	require.NoError(t, c.Stor("upload.txt", strings.NewReader("from jlaffaye")))
	assert.Equal(t, "from jlaffaye", env.readFile(t, "docs/upload.txt"))

	require.NoError(t, c.MakeDir("sub"))
	require.NoError(t, c.Rename("upload.txt", "sub/moved.txt"))
	assert.Equal(t, "from jlaffaye", env.readFile(t, "docs/sub/moved.txt"))

	require.NoError(t, c.Delete("sub/moved.txt"))
	require.NoError(t, c.RemoveDir("sub"))

	require.NoError(t, c.ChangeDirToParent())
	require.NoError(t, c.ChangeDirToParent(), "CDUP at the root is a no-op")
	dir, err = c.CurrentDir()
	require.NoError(t, err)
	assert.Equal(t, "/", dir)

	assert.Error(t, c.Delete("missing.txt"))
	require.NoError(t, c.NoOp())
}
