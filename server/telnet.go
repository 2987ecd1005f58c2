package server

import (
	"bufio"
	"io"
)

// Telnet protocol bytes that may appear on the control connection.
const (
	telnetIAC  = 0xFF
	telnetWILL = 0xFB
	telnetWONT = 0xFC
	telnetDO   = 0xFD
	telnetDONT = 0xFE
)

// telnetReader strips Telnet IAC sequences from the control stream.
// An escaped IAC (0xFF 0xFF) is kept as a single 0xFF byte.
type telnetReader struct {
	reader *bufio.Reader
}

func newTelnetReader(r io.Reader) *telnetReader {
	return &telnetReader{reader: bufio.NewReader(r)}
}

// Reset discards buffered data and switches to r.
func (t *telnetReader) Reset(r io.Reader) {
	t.reader.Reset(r)
}

func (t *telnetReader) Read(p []byte) (n int, err error) {
	for n < len(p) {
		// Do not block on the network once something can be returned.
		if n > 0 && t.reader.Buffered() == 0 {
			return n, nil
		}

		b, err := t.reader.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}

		if b != telnetIAC {
			p[n] = b
			n++
			continue
		}

		next, err := t.reader.ReadByte()
		if err != nil {
			return n, err
		}
		switch next {
		case telnetIAC:
			p[n] = telnetIAC
			n++
		case telnetWILL, telnetWONT, telnetDO, telnetDONT:
			// IAC CMD OPT
			if _, err := t.reader.ReadByte(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}
