// Package frame splits a byte stream into delimiter-terminated frames.
//
// Both directions of the file command protocol use the same framing: a frame
// is an opaque run of bytes followed by the 4-byte sequence "\r\n\r\n". The
// payload never contains the delimiter (requests are text, binary content
// travels as base64).
package frame

import (
	"bytes"
	"errors"
	"fmt"
)

// Delimiter terminates every request and every response.
const Delimiter = "\r\n\r\n"

var delimiter = []byte(Delimiter)

// ErrFrameTooLarge is returned by Append when a frame grows past the
// configured maximum.
var ErrFrameTooLarge = errors.New("frame too large")

// Encode returns payload followed by the delimiter.
func Encode(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+len(delimiter))
	out = append(out, payload...)
	return append(out, delimiter...)
}

// Buffer accumulates bytes read from a connection and yields complete frames.
//
// Bytes after the last delimiter are kept until more data arrives, so a frame
// split across reads is reassembled and several frames arriving in one read
// are returned one by one. A partial frame is never returned.
//
// Delimiter search resumes where the previous Append stopped, so appending a
// large frame in many small chunks stays linear.
//
// Thread safety:
// Not safe for concurrent use. A Buffer belongs to one session.
type Buffer struct {
	data []byte

	// readPos is the start of the first frame not yet returned by Next.
	readPos int

	// ends holds the delimiter offsets of complete frames not yet returned.
	ends []int

	// tailStart is the start of the incomplete frame after the last delimiter.
	tailStart int

	maxFrameSize int
}

// NewBuffer creates a frame buffer.
//
// Parameters:
//   - maxFrameSize: Largest accepted frame payload in bytes. 0 disables the limit.
func NewBuffer(maxFrameSize int) *Buffer {
	return &Buffer{maxFrameSize: maxFrameSize}
}

// Append adds p to the buffer and indexes any frames it completes.
//
// Returns ErrFrameTooLarge when a completed frame, or the incomplete tail,
// exceeds the maximum frame size. The buffer should be discarded afterwards.
func (b *Buffer) Append(p []byte) error {
	b.compact()

	searchFrom := max(b.tailStart, len(b.data)-(len(delimiter)-1))
	b.data = append(b.data, p...)

	for {
		idx := bytes.Index(b.data[searchFrom:], delimiter)
		if idx < 0 {
			break
		}
		end := searchFrom + idx

		if b.tooLarge(end - b.tailStart) {
			return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFrameTooLarge, end-b.tailStart, b.maxFrameSize)
		}

		b.ends = append(b.ends, end)
		b.tailStart = end + len(delimiter)
		searchFrom = b.tailStart
	}

	// The tail may end with up to three delimiter bytes of a frame that is
	// exactly at the limit.
	if tail := len(b.data) - b.tailStart; b.tooLarge(tail - (len(delimiter) - 1)) {
		return fmt.Errorf("%w: %d bytes buffered without delimiter, limit is %d", ErrFrameTooLarge, tail, b.maxFrameSize)
	}

	return nil
}

// Next returns the next complete frame without its delimiter.
//
// The returned slice is owned by the caller. ok is false when no complete
// frame is buffered.
func (b *Buffer) Next() (frame []byte, ok bool) {
	if len(b.ends) == 0 {
		return nil, false
	}

	end := b.ends[0]
	b.ends = b.ends[1:]

	frame = bytes.Clone(b.data[b.readPos:end])
	if frame == nil {
		frame = []byte{}
	}
	b.readPos = end + len(delimiter)

	return frame, true
}

// Buffered returns the number of bytes held that Next has not returned yet.
func (b *Buffer) Buffered() int {
	return len(b.data) - b.readPos
}

// Reset drops all buffered data.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.ends = b.ends[:0]
	b.readPos = 0
	b.tailStart = 0
}

func (b *Buffer) tooLarge(n int) bool {
	return b.maxFrameSize > 0 && n > b.maxFrameSize
}

// compact moves unread bytes to the front of the backing array.
func (b *Buffer) compact() {
	if b.readPos == 0 {
		return
	}

	n := copy(b.data, b.data[b.readPos:])
	b.data = b.data[:n]
	for i := range b.ends {
		b.ends[i] -= b.readPos
	}
	b.tailStart -= b.readPos
	b.readPos = 0
}
