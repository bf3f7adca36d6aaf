package eeprom

import (
	"encoding/binary"
	"errors"
	"fmt"

	"printcore/medium"
	"printcore/protocol"
)

// Writer streams values into a medium at a running index. Every byte it
// writes is folded into the CRC, and write errors are collected rather than
// stopping the stream.
type Writer struct {
	m       medium.Medium
	index   int64
	crc     uint16
	err     error
	scratch []byte
}

// NewWriter starts a stream at off
func NewWriter(m medium.Medium, off int) *Writer {
	return &Writer{m: m, index: int64(off)}
}

// Value writes v in little-endian layout. v must have a fixed encoded size.
func (w *Writer) Value(v any) {
	var err error
	w.scratch, err = binary.Append(w.scratch[:0], binary.LittleEndian, v)
	if err != nil {
		w.err = errors.Join(w.err, fmt.Errorf("%w: encode %T: %w", ErrWriteFailure, v, err))
		if n := binary.Size(v); n > 0 {
			w.index += int64(n)
		}
		return
	}
	w.Bytes(w.scratch)
}

// Bytes writes p as is
func (w *Writer) Bytes(p []byte) {
	w.crc = protocol.UpdateCRC16(w.crc, p)
	if _, err := w.m.WriteAt(p, w.index); err != nil {
		w.err = errors.Join(w.err, fmt.Errorf("%w: %d bytes at %d: %w", ErrWriteFailure, len(p), w.index, err))
	}
	w.index += int64(len(p))
}

// Skip advances the index without writing
func (w *Writer) Skip(n int) {
	w.index += int64(n)
}

// ResetCRC clears the running checksum
func (w *Writer) ResetCRC() {
	w.crc = 0
}

// CRC returns the running checksum
func (w *Writer) CRC() uint16 {
	return w.crc
}

// Pos returns the current medium offset
func (w *Writer) Pos() int {
	return int(w.index)
}

// Err returns every write error seen so far, joined
func (w *Writer) Err() error {
	return w.err
}

// Reader streams values out of a medium at a running index, folding every
// byte read into the CRC. While validating, Value consumes bytes without
// touching the destination.
type Reader struct {
	m          medium.Medium
	index      int64
	crc        uint16
	err        error
	validating bool
	buf        []byte
}

// NewReader starts a stream at off
func NewReader(m medium.Medium, off int, validating bool) *Reader {
	return &Reader{m: m, index: int64(off), validating: validating}
}

// Value reads the next value into v unless the stream is validating
func (r *Reader) Value(v any) {
	r.read(v, !r.validating)
}

// Always reads the next value into v even while validating. Use it for
// values the stream layout depends on, such as stored grid dimensions.
func (r *Reader) Always(v any) {
	r.read(v, true)
}

// Validating reports a dry-run stream
func (r *Reader) Validating() bool {
	return r.validating
}

func (r *Reader) read(v any, apply bool) {
	n := binary.Size(v)
	if n < 0 {
		r.err = errors.Join(r.err, fmt.Errorf("%w: %T has no fixed size", ErrReadFailure, v))
		return
	}

	buf := r.next(n)
	if buf == nil || !apply {
		return
	}
	if _, err := binary.Decode(buf, binary.LittleEndian, v); err != nil {
		r.err = errors.Join(r.err, fmt.Errorf("%w: decode %T: %w", ErrReadFailure, v, err))
	}
}

func (r *Reader) next(n int) []byte {
	if cap(r.buf) < n {
		r.buf = make([]byte, n)
	}
	buf := r.buf[:n]
	off := r.index
	r.index += int64(n)

	if _, err := r.m.ReadAt(buf, off); err != nil {
		r.err = errors.Join(r.err, fmt.Errorf("%w: %d bytes at %d: %w", ErrReadFailure, n, off, err))
		return nil
	}
	r.crc = protocol.UpdateCRC16(r.crc, buf)
	return buf
}

// ResetCRC clears the running checksum
func (r *Reader) ResetCRC() {
	r.crc = 0
}

// CRC returns the running checksum
func (r *Reader) CRC() uint16 {
	return r.crc
}

// Pos returns the current medium offset
func (r *Reader) Pos() int {
	return int(r.index)
}

// Err returns every read error seen so far, joined
func (r *Reader) Err() error {
	return r.err
}
