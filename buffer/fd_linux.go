//go:build linux

package buffer

import "golang.org/x/sys/unix"

// scratchSize bounds how much a single ReadFd can take beyond the
// buffer's current writable space.
const scratchSize = 65536

// ReadFd reads from fd with one readv call into the writable tail and a
// 64KiB scratch region. Whatever lands in the scratch region is appended.
// It returns -1 and the errno on failure; 0 with a nil error means the
// peer closed its side.
func (b *Buffer) ReadFd(fd int) (int, error) {
	var extra [scratchSize]byte
	writable := b.WritableBytes()
	iovs := [][]byte{b.buf[b.writePos:], extra[:]}

	n, err := unix.Readv(fd, iovs)
	if err != nil {
		return -1, err
	}
	if n <= writable {
		b.writePos += n
	} else {
		b.writePos = len(b.buf)
		b.Append(extra[:n-writable])
	}
	return n, nil
}

// WriteFd writes the unread region to fd and consumes what was written.
// Partial writes are left for the caller to retry.
func (b *Buffer) WriteFd(fd int) (int, error) {
	n, err := unix.Write(fd, b.Peek())
	if err != nil {
		return -1, err
	}
	b.readPos += n
	return n, nil
}
