package server

import (
	"strings"
	"testing"
)

func fatalIfErr(t *testing.T, err error, format string, args ...interface{}) {
	t.Helper()
	if err != nil {
		t.Fatalf(format+": %v", append(args, err)...)
	}
}

// lineBuffer collects CRLF terminated lines.
type lineBuffer struct {
	strings.Builder
}

func (b *lineBuffer) lines() []string {
	s := strings.TrimSuffix(b.String(), "\r\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\r\n")
}
