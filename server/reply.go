package server

import (
	"fmt"
	"io"
	"strings"
)

// Reply codes used by the server.
const (
	StatusFileStatusOK       = 150
	StatusOK                 = 200
	StatusHelp               = 214
	StatusSystemType         = 215
	StatusReady              = 220
	StatusClosing            = 221
	StatusTransferComplete   = 226
	StatusPassiveMode        = 227
	StatusLoggedIn           = 230
	StatusFileActionOK       = 250
	StatusPathCreated        = 257
	StatusNeedPassword       = 331
	StatusPendingFurtherInfo = 350
	StatusNotAvailable       = 421
	StatusCannotOpenData     = 425
	StatusTransferAborted    = 426
	StatusInvalidCredentials = 430
	StatusSyntaxError        = 500
	StatusBadArguments       = 501
	StatusNotImplemented     = 502
	StatusNotLoggedIn        = 530
	StatusFileUnavailable    = 550
)

// writeReply encodes a single-line reply: "<code> <text>\r\n".
func writeReply(w io.Writer, code int, text string) error {
	_, err := fmt.Fprintf(w, "%d %s\r\n", code, sanitizeReply(text))
	return err
}

// writeMultiline encodes a multi-line reply. Every line but the last uses the
// "<code>-" continuation prefix.
func writeMultiline(w io.Writer, code int, lines []string) error {
	if len(lines) == 0 {
		return writeReply(w, code, "")
	}
	for _, line := range lines[:len(lines)-1] {
		if _, err := fmt.Fprintf(w, "%d-%s\r\n", code, sanitizeReply(line)); err != nil {
			return err
		}
	}
	return writeReply(w, code, lines[len(lines)-1])
}

// sanitizeReply keeps client-supplied text from injecting extra reply lines.
func sanitizeReply(text string) string {
	if !strings.ContainsAny(text, "\r\n") {
		return text
	}
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(text)
}

// quotePath quotes a path for 257 replies, doubling embedded quotes.
func quotePath(p string) string {
	return `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
}
