package server

import (
	"crypto/rand"
	"io"
	"math/big"
	"sync"

	"github.com/gonzalop/ftpjail/internal/ratelimit"
)

// transferBufferSize is the fixed copy buffer used for every transfer.
const transferBufferSize = 32 * 1024

var transferBufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, transferBufferSize)
		return &b
	},
}

// copyStream copies src to dst with a pooled fixed-size buffer until EOF.
// Read and write failures are reported separately so callers can tell a
// broken data channel from a local disk error.
func copyStream(dst io.Writer, src io.Reader) (written int64, readErr, writeErr error) {
	bp := transferBufferPool.Get().(*[]byte)
	defer transferBufferPool.Put(bp)
	buf := *bp

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, nil, werr
			}
			if w != n {
				return written, nil, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return written, nil, nil
		}
		if rerr != nil {
			return written, rerr, nil
		}
	}
}

// sendFile streams a local file to the data connection (RETR).
func (s *session) sendFile(data io.Writer, file io.Reader) (int64, error) {
	n, readErr, writeErr := copyStream(s.rateLimitWriter(data), file)
	if writeErr != nil {
		return n, &TransportError{Op: "transfer", Err: writeErr}
	}
	return n, readErr
}

// receiveFile streams the data connection into a local file (STOR, STOU, APPE).
func (s *session) receiveFile(file io.Writer, data io.Reader) (int64, error) {
	n, readErr, writeErr := copyStream(file, s.rateLimitReader(data))
	if readErr != nil {
		return n, &TransportError{Op: "transfer", Err: readErr}
	}
	return n, writeErr
}

// rateLimitReader applies the per-user and global bandwidth limits.
func (s *session) rateLimitReader(r io.Reader) io.Reader {
	if s.server.bandwidthLimitPerUser > 0 {
		r = ratelimit.NewReader(r, ratelimit.New(s.server.bandwidthLimitPerUser))
	}
	if s.server.globalLimiter != nil {
		r = ratelimit.NewReader(r, s.server.globalLimiter)
	}
	return r
}

// rateLimitWriter applies the per-user and global bandwidth limits.
func (s *session) rateLimitWriter(w io.Writer) io.Writer {
	if s.server.bandwidthLimitPerUser > 0 {
		w = ratelimit.NewWriter(w, ratelimit.New(s.server.bandwidthLimitPerUser))
	}
	if s.server.globalLimiter != nil {
		w = ratelimit.NewWriter(w, s.server.globalLimiter)
	}
	return w
}

const uniqueNameAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// uniqueNameLength is the length of names generated by STOU.
const uniqueNameLength = 8

// randomName returns a random alphanumeric file name for STOU.
func randomName() (string, error) {
	max := big.NewInt(int64(len(uniqueNameAlphabet)))
	b := make([]byte, uniqueNameLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = uniqueNameAlphabet[n.Int64()]
	}
	return string(b), nil
}
