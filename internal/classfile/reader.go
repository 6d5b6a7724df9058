package classfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

// byteReader is a big-endian cursor over a class file stream.
// All multi-byte quantities in the class-file format are big-endian.
type byteReader struct {
	r   io.Reader
	off int64
	buf [8]byte
}

// newByteReader wraps r. Readers that already buffer are used as is.
func newByteReader(r io.Reader) *byteReader {
	if _, ok := r.(io.ByteReader); ok {
		return &byteReader{r: r}
	}
	return &byteReader{r: bufio.NewReader(r)}
}

// offset returns the number of bytes consumed so far.
func (br *byteReader) offset() int64 {
	return br.off
}

// fill reads exactly n bytes into the scratch buffer.
func (br *byteReader) fill(n int) ([]byte, error) {
	got, err := io.ReadFull(br.r, br.buf[:n])
	br.off += int64(got)
	if err != nil {
		return nil, eofToUnexpected(err)
	}
	return br.buf[:n], nil
}

func (br *byteReader) u1() (uint8, error) {
	b, err := br.fill(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (br *byteReader) u2() (uint16, error) {
	b, err := br.fill(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (br *byteReader) u4() (uint32, error) {
	b, err := br.fill(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (br *byteReader) u8() (uint64, error) {
	b, err := br.fill(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// bytes reads exactly n bytes into a fresh slice.
func (br *byteReader) bytes(n int) ([]byte, error) {
	p := make([]byte, n)
	got, err := io.ReadFull(br.r, p)
	br.off += int64(got)
	if err != nil {
		return nil, eofToUnexpected(err)
	}
	return p, nil
}

// skip discards exactly n bytes.
func (br *byteReader) skip(n int64) error {
	got, err := io.CopyN(io.Discard, br.r, n)
	br.off += got
	if err != nil {
		return eofToUnexpected(err)
	}
	return nil
}

// sub returns a reader limited to the next n bytes, sharing the offset
// bookkeeping of br. The caller must call remaining on it to check that the
// declared length was consumed exactly.
func (br *byteReader) sub(n int64) *limitedReader {
	return &limitedReader{
		byteReader: byteReader{r: io.LimitReader(br.r, n), off: br.off},
		parent:     br,
		limit:      n,
	}
}

// limitedReader is a byteReader bounded by an attribute length.
type limitedReader struct {
	byteReader
	parent *byteReader
	limit  int64
}

// close syncs the parent offset to the end of what was read. It reports
// errLengthMismatch when the window was not consumed exactly.
func (lr *limitedReader) close() error {
	consumed := lr.off - lr.parent.off
	lr.parent.off = lr.off
	if consumed != lr.limit {
		return errLengthMismatch
	}
	return nil
}

func eofToUnexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
