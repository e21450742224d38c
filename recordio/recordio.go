// Package recordio reads and writes MXNet RecordIO files,
// the container format of InsightFace training sets such as
// MS1M ("train.rec" plus "train.idx").
package recordio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Magic starts every record chunk.
const Magic uint32 = 0xced7230a

const (
	flagFull = iota
	flagStart
	flagMiddle
	flagEnd
)

const lengthMask = 1<<29 - 1

var ErrBadMagic = errors.New("bad record magic")

var magicBytes = func() []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], Magic)
	return b[:]
}()

// A Reader reads records sequentially.
type Reader struct {
	src io.ReadSeeker
	r   *bufio.Reader
}

// NewReader creates a reader positioned at the start of a
// record.
func NewReader(r io.ReadSeeker) *Reader {
	return &Reader{src: r, r: bufio.NewReader(r)}
}

// Seek moves the reader to the record at the given byte
// offset, e.g. an offset from an ".idx" file.
func (r *Reader) Seek(offset int64) error {
	if _, err := r.src.Seek(offset, io.SeekStart); err != nil {
		return errors.Wrap(err, "seek record")
	}
	r.r.Reset(r.src)
	return nil
}

// Next reads the next record.
//
// Records that contain the magic number are stored as
// several chunks; they are joined back together here.
// At the end of the stream, io.EOF is returned.
func (r *Reader) Next() ([]byte, error) {
	var record bytes.Buffer
	for first := true; ; first = false {
		var header [8]byte
		if _, err := io.ReadFull(r.r, header[:]); err != nil {
			if first && err == io.EOF {
				return nil, io.EOF
			}
			return nil, errors.Wrap(unexpectedEOF(err), "read record header")
		}
		if binary.LittleEndian.Uint32(header[:4]) != Magic {
			return nil, ErrBadMagic
		}
		lrec := binary.LittleEndian.Uint32(header[4:])
		flag := lrec >> 29
		length := int64(lrec & lengthMask)

		// The buffer grows with the data actually read, so a
		// corrupt length cannot force a large allocation.
		if _, err := io.CopyN(&record, r.r, length); err != nil {
			return nil, errors.Wrap(unexpectedEOF(err), "read record")
		}
		if pad := padding(int(length)); pad > 0 {
			if _, err := r.r.Discard(pad); err != nil {
				return nil, errors.Wrap(unexpectedEOF(err), "read record")
			}
		}

		switch {
		case (first && flag == flagFull) || (!first && flag == flagEnd):
			// Empty records are returned as empty, non-nil slices.
			return append([]byte{}, record.Bytes()...), nil
		case (flag == flagStart && first) || (flag == flagMiddle && !first):
			record.Write(magicBytes)
		default:
			return nil, errors.Errorf("unexpected continuation flag %d", flag)
		}
	}
}

// A Writer writes records sequentially.
type Writer struct {
	w      io.Writer
	offset int64
}

// NewWriter creates a writer for a stream that starts at
// the given byte offset.
func NewWriter(w io.Writer, offset int64) *Writer {
	return &Writer{w: w, offset: offset}
}

// Offset gets the stream position of the next record.
func (w *Writer) Offset() int64 {
	return w.offset
}

// Write appends a record and returns its offset.
func (w *Writer) Write(record []byte) (int64, error) {
	offset := w.offset
	parts := splitMagic(record)
	for i, part := range parts {
		flag := uint32(flagFull)
		if len(parts) > 1 {
			switch i {
			case 0:
				flag = flagStart
			case len(parts) - 1:
				flag = flagEnd
			default:
				flag = flagMiddle
			}
		}
		if len(part) > lengthMask {
			return 0, errors.New("write record: record too large")
		}
		var header [8]byte
		binary.LittleEndian.PutUint32(header[:4], Magic)
		binary.LittleEndian.PutUint32(header[4:], flag<<29|uint32(len(part)))
		chunk := append(header[:], part...)
		chunk = append(chunk, make([]byte, padding(len(part)))...)
		if _, err := w.w.Write(chunk); err != nil {
			return 0, errors.Wrap(err, "write record")
		}
		w.offset += int64(len(chunk))
	}
	return offset, nil
}

// splitMagic splits a record at every 4-byte aligned
// occurrence of the magic number, dropping the magic.
func splitMagic(record []byte) [][]byte {
	var parts [][]byte
	start := 0
	for i := 0; i+4 <= len(record); i += 4 {
		if bytes.Equal(record[i:i+4], magicBytes) {
			parts = append(parts, record[start:i])
			start = i + 4
		}
	}
	return append(parts, record[start:])
}

func padding(length int) int {
	return (4 - length%4) % 4
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
