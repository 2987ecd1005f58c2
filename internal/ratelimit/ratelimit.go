// Package ratelimit throttles data transfers with a token bucket.
package ratelimit

import (
	"io"
	"sync"
	"time"
)

// maxWait caps a single sleep so a huge request cannot stall a transfer for long.
const maxWait = time.Second

// Limiter is a token bucket measured in bytes. The bucket holds one second
// worth of tokens, so short bursts pass at full speed. A nil *Limiter never
// blocks.
type Limiter struct {
	mu     sync.Mutex
	rate   float64
	tokens float64
	last   time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// New returns a limiter for bytesPerSecond, or nil when the limit is not positive.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	rate := float64(bytesPerSecond)
	return &Limiter{
		rate:   rate,
		tokens: rate,
		last:   time.Now(),
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// Rate returns the configured limit in bytes per second.
func (l *Limiter) Rate() int64 {
	if l == nil {
		return 0
	}
	return int64(l.rate)
}

// refill must be called with mu held.
func (l *Limiter) refill() {
	now := l.now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	if l.tokens > l.rate {
		l.tokens = l.rate
	}
	l.last = now
}

// Wait blocks until n bytes may pass.
func (l *Limiter) Wait(n int) {
	if l == nil || n <= 0 {
		return
	}
	need := float64(n)

	l.mu.Lock()
	l.refill()
	if l.tokens >= need {
		l.tokens -= need
		l.mu.Unlock()
		return
	}
	wait := time.Duration((need - l.tokens) / l.rate * float64(time.Second))
	l.mu.Unlock()

	l.sleep(min(wait, maxWait))

	l.mu.Lock()
	l.refill()
	l.tokens -= need
	if l.tokens < 0 {
		l.tokens = 0
	}
	l.mu.Unlock()
}

// Chunk sizes keep individual waits short.
const (
	readChunk  = 8 * 1024
	writeChunk = 64 * 1024
)

type reader struct {
	r io.Reader
	l *Limiter
}

// NewReader throttles reads from r. A nil limiter returns r unchanged.
func NewReader(r io.Reader, l *Limiter) io.Reader {
	if l == nil {
		return r
	}
	return &reader{r: r, l: l}
}

func (r *reader) Read(p []byte) (int, error) {
	if len(p) > readChunk {
		p = p[:readChunk]
	}
	n, err := r.r.Read(p)
	r.l.Wait(n)
	return n, err
}

type writer struct {
	w io.Writer
	l *Limiter
}

// NewWriter throttles writes to w. A nil limiter returns w unchanged.
func NewWriter(w io.Writer, l *Limiter) io.Writer {
	if l == nil {
		return w
	}
	return &writer{w: w, l: l}
}

func (w *writer) Write(p []byte) (int, error) {
	var written int
	for len(p) > 0 {
		chunk := p[:min(len(p), writeChunk)]
		w.l.Wait(len(chunk))
		n, err := w.w.Write(chunk)
		written += n
		if err != nil {
			return written, err
		}
		p = p[len(chunk):]
	}
	return written, nil
}
