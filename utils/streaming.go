package utils

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// ErrLimitExceeded is returned by LimitedReader once the source yields more
// than Max bytes.
var ErrLimitExceeded = errors.New("read limit exceeded")

// bufPool reuses byte buffers to reduce GC pressure.
var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// AcquireBuffer returns a reset buffer from the pool.
func AcquireBuffer() *bytes.Buffer {
	b := bufPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// ReleaseBuffer returns b to the pool.  Callers must not use b after this call.
func ReleaseBuffer(b *bytes.Buffer) {
	// Cap large buffers to avoid pinning excessive memory.
	if b.Cap() > 8*1024*1024 {
		return
	}
	bufPool.Put(b)
}

// ReadAll drains r in chunkSize pieces, checking ctx between reads, and
// returns an owned copy of the bytes.
func ReadAll(ctx context.Context, r io.Reader, chunkSize int) ([]byte, error) {
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	buf := AcquireBuffer()
	defer ReleaseBuffer(buf)

	chunk := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if errors.Is(err, io.EOF) {
			return CloneBytes(buf.Bytes()), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// LimitedReader wraps R and fails with ErrLimitExceeded when R holds more than
// Max bytes.  Max <= 0 disables the limit.
type LimitedReader struct {
	R   io.Reader
	Max int64
	n   int64
}

func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.Max <= 0 {
		return l.R.Read(p)
	}
	if l.n >= l.Max {
		var probe [1]byte
		n, err := l.R.Read(probe[:])
		if n > 0 {
			return 0, ErrLimitExceeded
		}
		return 0, err
	}
	if remain := l.Max - l.n; int64(len(p)) > remain {
		p = p[:remain]
	}
	n, err := l.R.Read(p)
	l.n += int64(n)
	return n, err
}
