package bytebuffers

import (
	"errors"
	"os"
)

var (
	pagesize = os.Getpagesize()
)

var (
	ErrWroteOutOfRange = errors.New("bytebuffers.Buffer: wrote more than the free area holds")
)

// Buffer is a scratch area a codec writes into. It keeps the filled length
// explicit so the owner can hand the free tail to a producer, then flush the
// filled part out in one piece.
type Buffer interface {
	Len() (n int)
	Cap() (n int)
	// Free returns the writable tail after the filled area.
	Free() (p []byte)
	// Wrote advances the filled length by n after a producer filled Free().
	Wrote(n int) (err error)
	// Double grows the capacity to twice its current size.
	// Filled bytes are preserved.
	Double()
	// Take copies the filled bytes out and resets the buffer.
	// It returns nil when nothing was filled.
	Take() (p []byte)
	Reset()
}

func NewBuffer() Buffer {
	return NewBufferWithSize(pagesize)
}

func NewBufferWithSize(size int) Buffer {
	if size < 1 {
		size = 1
	}
	return &buffer{
		b: make([]byte, size),
		n: 0,
	}
}

type buffer struct {
	b []byte
	n int
}

func (buf *buffer) Len() (n int) {
	n = buf.n
	return
}

func (buf *buffer) Cap() (n int) {
	n = len(buf.b)
	return
}

func (buf *buffer) Free() (p []byte) {
	p = buf.b[buf.n:]
	return
}

func (buf *buffer) Wrote(n int) (err error) {
	if n < 0 || buf.n+n > len(buf.b) {
		err = ErrWroteOutOfRange
		return
	}
	buf.n += n
	return
}

func (buf *buffer) Double() {
	nb := make([]byte, len(buf.b)*2)
	copy(nb, buf.b[:buf.n])
	buf.b = nb
}

func (buf *buffer) Take() (p []byte) {
	if buf.n == 0 {
		return
	}
	p = make([]byte, buf.n)
	copy(p, buf.b[:buf.n])
	buf.n = 0
	return
}

func (buf *buffer) Reset() {
	buf.n = 0
}

// Cat joins two byte runs into one freshly allocated slice.
// Either side may be nil.
func Cat(a []byte, b []byte) (p []byte) {
	p = make([]byte, 0, len(a)+len(b))
	p = append(p, a...)
	p = append(p, b...)
	return
}
