package recordio

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Indexed provides random access to a record file through
// its ".idx" file, which lists "key<TAB>offset" lines.
//
// It is safe to read records from several Goroutines.
type Indexed struct {
	f       *os.File
	lock    sync.Mutex
	reader  *Reader
	keys    []int
	offsets map[int]int64
}

// OpenIndexed opens a record file and its index.
func OpenIndexed(idxPath, recPath string) (*Indexed, error) {
	idx, err := os.Open(idxPath)
	if err != nil {
		return nil, err
	}
	defer idx.Close()
	res := &Indexed{offsets: map[int]int64{}}
	scanner := bufio.NewScanner(idx)
	for line := 1; scanner.Scan(); line++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		} else if len(fields) != 2 {
			return nil, errors.Errorf("%s:%d: expected key and offset", idxPath, line)
		}
		key, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", idxPath, line)
		}
		offset, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", idxPath, line)
		}
		if _, ok := res.offsets[key]; !ok {
			res.keys = append(res.keys, key)
		}
		res.offsets[key] = offset
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, idxPath)
	}

	res.f, err = os.Open(recPath)
	if err != nil {
		return nil, err
	}
	res.reader = NewReader(res.f)
	return res, nil
}

// Keys lists the keys in index order.
func (ix *Indexed) Keys() []int {
	return append([]int{}, ix.keys...)
}

// ReadIdx reads the record with the given key.
func (ix *Indexed) ReadIdx(key int) ([]byte, error) {
	offset, ok := ix.offsets[key]
	if !ok {
		return nil, errors.Errorf("read record: no key %d", key)
	}
	ix.lock.Lock()
	defer ix.lock.Unlock()
	if err := ix.reader.Seek(offset); err != nil {
		return nil, errors.Wrapf(err, "read record %d", key)
	}
	rec, err := ix.reader.Next()
	if err != nil {
		return nil, errors.Wrapf(err, "read record %d", key)
	}
	return rec, nil
}

// Close closes the record file.
func (ix *Indexed) Close() error {
	return ix.f.Close()
}

// IndexedWriter writes a record file and its index.
type IndexedWriter struct {
	rec    *os.File
	idx    *os.File
	writer *Writer
}

// CreateIndexed creates a record file and its index.
func CreateIndexed(idxPath, recPath string) (*IndexedWriter, error) {
	rec, err := os.Create(recPath)
	if err != nil {
		return nil, err
	}
	idx, err := os.Create(idxPath)
	if err != nil {
		rec.Close()
		return nil, err
	}
	return &IndexedWriter{rec: rec, idx: idx, writer: NewWriter(rec, 0)}, nil
}

// Write appends a record under the given key.
func (w *IndexedWriter) Write(key int, record []byte) error {
	offset, err := w.writer.Write(record)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w.idx, "%d\t%d\n", key, offset)
	return err
}

// Close closes both files.
func (w *IndexedWriter) Close() error {
	err1 := w.rec.Close()
	err2 := w.idx.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
