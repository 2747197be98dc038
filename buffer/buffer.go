package buffer

import "fmt"

// DefaultSize is the initial capacity used by New when size <= 0
const DefaultSize = 1024

// Buffer is a growable byte accumulator with separate read and write
// cursors. Bytes in [readPos, writePos) are unread; bytes before readPos
// can be reclaimed by compaction.
//
// A Buffer is owned by one goroutine at a time and is not safe for
// concurrent use.
type Buffer struct {
	buf      []byte
	readPos  int
	writePos int
}

// New creates a buffer with the given initial capacity
func New(size int) *Buffer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Buffer{buf: make([]byte, size)}
}

// ReadableBytes returns the number of unread bytes
func (b *Buffer) ReadableBytes() int {
	return b.writePos - b.readPos
}

// WritableBytes returns the free space after the write cursor
func (b *Buffer) WritableBytes() int {
	return len(b.buf) - b.writePos
}

// PrependableBytes returns the already-consumed space before the read cursor
func (b *Buffer) PrependableBytes() int {
	return b.readPos
}

// Cap returns the size of the backing storage
func (b *Buffer) Cap() int {
	return len(b.buf)
}

// Peek returns the unread region without copying. The slice is only
// valid until the next mutating call.
func (b *Buffer) Peek() []byte {
	return b.buf[b.readPos:b.writePos]
}

// BeginWrite returns the writable tail of the buffer
func (b *Buffer) BeginWrite() []byte {
	return b.buf[b.writePos:]
}

// HasWritten advances the write cursor after a direct write into BeginWrite
func (b *Buffer) HasWritten(n int) {
	if n < 0 || n > b.WritableBytes() {
		panic(fmt.Sprintf("buffer: HasWritten(%d) exceeds writable %d", n, b.WritableBytes()))
	}
	b.writePos += n
}

// Retrieve consumes n unread bytes
func (b *Buffer) Retrieve(n int) {
	if n < 0 || n > b.ReadableBytes() {
		panic(fmt.Sprintf("buffer: Retrieve(%d) exceeds readable %d", n, b.ReadableBytes()))
	}
	b.readPos += n
}

// RetrieveUntil consumes Peek()[:end]
func (b *Buffer) RetrieveUntil(end int) {
	b.Retrieve(end)
}

// RetrieveAll resets both cursors, discarding any unread bytes
func (b *Buffer) RetrieveAll() {
	b.readPos = 0
	b.writePos = 0
}

// RetrieveAllString returns the unread bytes as a string and resets the buffer
func (b *Buffer) RetrieveAllString() string {
	s := string(b.Peek())
	b.RetrieveAll()
	return s
}

// EnsureWriteable makes room for at least n more bytes
func (b *Buffer) EnsureWriteable(n int) {
	if b.WritableBytes() < n {
		b.makeSpace(n)
	}
}

// Append copies p after the unread region, growing or compacting as needed
func (b *Buffer) Append(p []byte) {
	b.EnsureWriteable(len(p))
	copy(b.buf[b.writePos:], p)
	b.writePos += len(p)
}

// AppendString is Append for strings
func (b *Buffer) AppendString(s string) {
	b.EnsureWriteable(len(s))
	copy(b.buf[b.writePos:], s)
	b.writePos += len(s)
}

// Write implements io.Writer. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	b.Append(p)
	return len(p), nil
}

// WriteString implements io.StringWriter
func (b *Buffer) WriteString(s string) (int, error) {
	b.AppendString(s)
	return len(s), nil
}

// makeSpace compacts in place when the free space on both sides suffices,
// otherwise it resizes the backing storage to writePos+n+1.
func (b *Buffer) makeSpace(n int) {
	if b.WritableBytes()+b.PrependableBytes() < n {
		grown := make([]byte, b.writePos+n+1)
		copy(grown, b.buf[:b.writePos])
		b.buf = grown
		return
	}
	readable := b.ReadableBytes()
	copy(b.buf, b.buf[b.readPos:b.writePos])
	b.readPos = 0
	b.writePos = readable
}
