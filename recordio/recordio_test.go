package recordio

import (
	"bytes"
	"encoding/binary"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWrite(t *testing.T) {
	records := [][]byte{
		[]byte("hello"),
		{},
		// Aligned magic numbers are split into chunks.
		append(append([]byte("abcd"), magicBytes...), []byte("xyz")...),
		append(append(append([]byte{}, magicBytes...), magicBytes...), 1),
		// Unaligned magic numbers are stored verbatim.
		append([]byte("ab"), magicBytes...),
	}

	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	var offsets []int64
	for _, rec := range records {
		offset, err := w.Write(rec)
		require.NoError(t, err)
		offsets = append(offsets, offset)
		assert.Equal(t, int64(buf.Len()), w.Offset())
		assert.Equal(t, 0, buf.Len()%4)
	}
	assert.Equal(t, int64(0), offsets[0])
	assert.Equal(t, int64(16), offsets[1])

	r := NewReader(bytes.NewReader(buf.Bytes()))
	for _, expected := range records {
		rec, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, expected, rec)
	}
	_, err := r.Next()
	assert.Equal(t, io.EOF, err)

	r = NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, r.Seek(offsets[1]))
	rec, err := r.Next()
	require.NoError(t, err)
	assert.NotNil(t, rec)
	assert.Empty(t, rec)
}

func TestReaderSeek(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	var offsets []int64
	for _, rec := range []string{"first", "second", "third"} {
		offset, err := w.Write([]byte(rec))
		require.NoError(t, err)
		offsets = append(offsets, offset)
	}

	r := NewReader(bytes.NewReader(buf.Bytes()))
	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "first", string(rec))

	require.NoError(t, r.Seek(offsets[2]))
	rec, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "third", string(rec))

	require.NoError(t, r.Seek(offsets[1]))
	rec, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "second", string(rec))
	rec, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "third", string(rec))
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReaderErrors(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte{1, 2, 3, 4, 5, 6, 7, 8})).Next()
	assert.Equal(t, ErrBadMagic, err)

	var buf bytes.Buffer
	NewWriter(&buf, 0).Write([]byte("truncated record"))
	_, err = NewReader(bytes.NewReader(buf.Bytes()[:12])).Next()
	assert.Error(t, err)

	// A corrupt length larger than the stream.
	var header [8]byte
	binary.LittleEndian.PutUint32(header[:4], Magic)
	binary.LittleEndian.PutUint32(header[4:], lengthMask)
	_, err = NewReader(bytes.NewReader(append(header[:], "short"...))).Next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestPackUnpack(t *testing.T) {
	h := &Header{Label: 7, ID: 3, ID2: 4}
	rec := Pack(h, []byte("jpeg"))
	h1, payload, err := Unpack(rec)
	require.NoError(t, err)
	assert.Equal(t, h, h1)
	assert.Equal(t, []byte("jpeg"), payload)
	assert.Equal(t, 7, h1.IntLabel())

	h = &Header{Labels: []float32{2, 5}}
	h1, payload, err = Unpack(Pack(h, nil))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), h1.Flag)
	assert.Equal(t, []float32{2, 5}, h1.Labels)
	assert.Empty(t, payload)

	_, _, err = Unpack([]byte("short"))
	assert.Error(t, err)
}

// writeDataset creates an InsightFace-style dataset with
// three images of two identities.
func writeDataset(t *testing.T) (idxPath, recPath string) {
	dir := t.TempDir()
	idxPath = filepath.Join(dir, "train.idx")
	recPath = filepath.Join(dir, "train.rec")
	w, err := CreateIndexed(idxPath, recPath)
	require.NoError(t, err)
	require.NoError(t, w.Write(0, Pack(&Header{Labels: []float32{4, 6}}, nil)))
	for key, label := range []float32{0, 0, 1} {
		require.NoError(t, w.Write(key+1, Pack(&Header{Label: label}, []byte{byte(key)})))
	}
	require.NoError(t, w.Write(4, Pack(&Header{Labels: []float32{1, 3}}, nil)))
	require.NoError(t, w.Write(5, Pack(&Header{Labels: []float32{3, 4}}, nil)))
	require.NoError(t, w.Close())
	return idxPath, recPath
}

func TestIndexed(t *testing.T) {
	ix, err := OpenIndexed(writeDataset(t))
	require.NoError(t, err)
	defer ix.Close()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, ix.Keys())
	rec, err := ix.ReadIdx(3)
	require.NoError(t, err)
	h, payload, err := Unpack(rec)
	require.NoError(t, err)
	assert.Equal(t, 1, h.IntLabel())
	assert.Equal(t, []byte{2}, payload)

	_, err = ix.ReadIdx(10)
	assert.Error(t, err)

	images, ranges, err := IdentityRanges(ix)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, images)
	assert.Equal(t, map[int][2]int{4: {1, 3}, 5: {3, 4}}, ranges)
}
