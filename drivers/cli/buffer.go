package cli

import (
	"errors"
	"fmt"

	"github.com/valyala/bytebufferpool"
)

// LineLen is the nominal width of one shell line
const LineLen = 1024

// Buffer sizes for one composed command and one accumulated reply
const (
	CommandBufferSize = 3 * LineLen
	ReplyBufferSize   = 8 * LineLen
)

// ErrBufferFull is returned when text would grow a Buffer past its limit
var ErrBufferFull = errors.New("buffer capacity exceeded")

// Buffer is a bounded, reusable text buffer owned by one session. Commands
// are staged and replies accumulated in pooled storage.
type Buffer struct {
	b     *bytebufferpool.ByteBuffer
	limit int
}

// NewBuffer takes a buffer from the pool, bounded to limit bytes
func NewBuffer(limit int) *Buffer {
	return &Buffer{b: bytebufferpool.Get(), limit: limit}
}

func (b *Buffer) storage() *bytebufferpool.ByteBuffer {
	if b.b == nil {
		b.b = bytebufferpool.Get()
	}
	return b.b
}

// Set replaces the buffer contents with s
func (b *Buffer) Set(s string) error {
	if len(s) > b.limit {
		return fmt.Errorf("%w: %d bytes, capacity %d", ErrBufferFull, len(s), b.limit)
	}
	buf := b.storage()
	buf.Reset()
	_, _ = buf.WriteString(s)
	return nil
}

// Append adds s to the contents. Nothing is added when s does not fit.
func (b *Buffer) Append(s string) error {
	if !b.Fits(b.Len() + len(s)) {
		return fmt.Errorf("%w: %d bytes, capacity %d", ErrBufferFull, b.Len()+len(s), b.limit)
	}
	_, _ = b.storage().WriteString(s)
	return nil
}

// Write implements io.Writer within the buffer limit
func (b *Buffer) Write(p []byte) (int, error) {
	if !b.Fits(b.Len() + len(p)) {
		return 0, fmt.Errorf("%w: %d bytes, capacity %d", ErrBufferFull, b.Len()+len(p), b.limit)
	}
	return b.storage().Write(p)
}

// Fits reports whether n bytes can be held
func (b *Buffer) Fits(n int) bool {
	return n <= b.limit
}

// Bytes returns the contents. The slice is valid until the next change.
func (b *Buffer) Bytes() []byte {
	if b.b == nil {
		return nil
	}
	return b.b.B
}

// String returns a copy of the contents
func (b *Buffer) String() string {
	if b.b == nil {
		return ""
	}
	return b.b.String()
}

// Len returns the number of buffered bytes
func (b *Buffer) Len() int {
	if b.b == nil {
		return 0
	}
	return b.b.Len()
}

// Cap returns the buffer limit
func (b *Buffer) Cap() int {
	return b.limit
}

// Truncate keeps the first n bytes
func (b *Buffer) Truncate(n int) {
	if b.b != nil && n >= 0 && n < len(b.b.B) {
		b.b.B = b.b.B[:n]
	}
}

// Reset empties the buffer
func (b *Buffer) Reset() {
	if b.b != nil {
		b.b.Reset()
	}
}

// Release returns the storage to the pool. The Buffer may be reused afterwards.
func (b *Buffer) Release() {
	if b.b != nil {
		bytebufferpool.Put(b.b)
		b.b = nil
	}
}
