// Package response frames byte records on a stream: each record is a
// 4-byte big-endian length followed by the payload.
package response

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const maxLine = 1 << 24

var ErrLineTooLong = errors.New("line too long")

type Writer struct {
	dst io.Writer
	hdr [4]byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{dst: w}
}

func (rw *Writer) WriteLine(msg []byte) error {
	if len(msg) > maxLine {
		return errors.Wrapf(ErrLineTooLong, "%d bytes", len(msg))
	}

	binary.BigEndian.PutUint32(rw.hdr[:], uint32(len(msg)))
	if _, err := rw.dst.Write(rw.hdr[:]); err != nil {
		return err
	}
	_, err := rw.dst.Write(msg)
	return err
}

type Reader struct {
	src io.Reader
	buf []byte
}

func NewReader(r io.Reader) *Reader {
	return &Reader{src: r}
}

// ReadLine returns the next record. The slice is reused by the following
// call. A stream that ends between records yields io.EOF, one cut inside a
// record io.ErrUnexpectedEOF.
func (rr *Reader) ReadLine() ([]byte, error) {
	if err := rr.read(4); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(rr.buf)
	if size > maxLine {
		return nil, errors.Wrapf(ErrLineTooLong, "%d bytes", size)
	}

	if err := rr.read(int(size)); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return rr.buf[:size], nil
}

func (rr *Reader) read(n int) error {
	if cap(rr.buf) < n {
		rr.buf = make([]byte, n)
	}
	rr.buf = rr.buf[:n]

	_, err := io.ReadFull(rr.src, rr.buf)
	return err
}
