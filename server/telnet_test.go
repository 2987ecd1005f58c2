package server

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelnetReader(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  []byte
	}{
		{"plain", []byte("USER alice\r\n"), []byte("USER alice\r\n")},
		{"option negotiation", []byte{'N', telnetIAC, telnetDO, 1, 'O', telnetIAC, telnetWILL, 3, 'O', 'P'}, []byte("NOOP")},
		{"escaped IAC", []byte{'a', telnetIAC, telnetIAC, 'b'}, []byte{'a', 0xFF, 'b'}},
		{"interrupt dropped", []byte{telnetIAC, 0xF4, 'Q', 'U', 'I', 'T'}, []byte("QUIT")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(newTelnetReader(bytes.NewReader(tt.input)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTelnetReaderReset(t *testing.T) {
	tr := newTelnetReader(bytes.NewReader([]byte("first")))
	buf := make([]byte, 2)
	_, err := tr.Read(buf)
	require.NoError(t, err)

	tr.Reset(bytes.NewReader([]byte("second")))
	got, err := io.ReadAll(tr)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}
