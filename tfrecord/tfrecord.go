// Package tfrecord writes and reads TFRecord files of
// tf.train.Example messages.
package tfrecord

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"
)

const maskDelta = 0xa282ead8

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

var ErrChecksum = errors.New("tfrecord checksum mismatch")

func maskedCRC(data []byte) uint32 {
	crc := crc32.Checksum(data, castagnoli)
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// A Writer writes length-delimited, checksummed records.
type Writer struct {
	w       io.Writer
	written int64
}

// NewWriter creates a writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write appends one record.
func (w *Writer) Write(data []byte) error {
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(len(data)))
	binary.LittleEndian.PutUint32(header[8:], maskedCRC(header[:8]))
	var footer [4]byte
	binary.LittleEndian.PutUint32(footer[:], maskedCRC(data))
	for _, chunk := range [][]byte{header[:], data, footer[:]} {
		n, err := w.w.Write(chunk)
		w.written += int64(n)
		if err != nil {
			return errors.Wrap(err, "write tfrecord")
		}
	}
	return nil
}

// Written gets the number of bytes written so far.
func (w *Writer) Written() int64 {
	return w.written
}

// A Reader reads records and verifies their checksums.
type Reader struct {
	r *bufio.Reader
}

// NewReader creates a reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next reads the next record, or returns io.EOF.
func (r *Reader) Next() ([]byte, error) {
	var header [12]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "read tfrecord")
	}
	if binary.LittleEndian.Uint32(header[8:]) != maskedCRC(header[:8]) {
		return nil, ErrChecksum
	}
	length := binary.LittleEndian.Uint64(header[:8])
	if length > 1<<40 {
		return nil, errors.Errorf("read tfrecord: record length %d", length)
	}
	// Grow with the data read instead of trusting length.
	var data bytes.Buffer
	if _, err := io.CopyN(&data, r.r, int64(length)); err != nil {
		return nil, errors.Wrap(unexpectedEOF(err), "read tfrecord")
	}
	var footer [4]byte
	if _, err := io.ReadFull(r.r, footer[:]); err != nil {
		return nil, errors.Wrap(unexpectedEOF(err), "read tfrecord")
	}
	if binary.LittleEndian.Uint32(footer[:]) != maskedCRC(data.Bytes()) {
		return nil, ErrChecksum
	}
	return append([]byte{}, data.Bytes()...), nil
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
