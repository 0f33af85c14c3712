package service

import (
	"bytes"
	"sync"
)

// cappedBuffer keeps at most limit bytes and silently drops the rest so a chatty
// child never blocks on a full pipe. limit <= 0 means unbounded. Safe for one
// writer racing with readers.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func newCappedBuffer(limit int64) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.limit <= 0 {
		return b.buf.Write(p)
	}
	remain := b.limit - int64(b.buf.Len())
	switch {
	case remain <= 0:
		b.truncated = b.truncated || len(p) > 0
	case int64(len(p)) > remain:
		b.buf.Write(p[:remain])
		b.truncated = true
	default:
		b.buf.Write(p)
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *cappedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
