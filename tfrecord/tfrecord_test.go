package tfrecord

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/facescan/facemesh/recordio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskedCRC(t *testing.T) {
	data := []byte("123456789")
	assert.Equal(t, uint32(0xe3069283), crc32.Checksum(data, castagnoli))
	crc := uint32(0xe3069283)
	assert.Equal(t, ((crc>>15)|(crc<<17))+maskDelta, maskedCRC(data))
}

func TestReadWrite(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	records := [][]byte{[]byte("first"), {}, bytes.Repeat([]byte{7}, 1000)}
	for _, rec := range records {
		require.NoError(t, w.Write(rec))
	}
	assert.Equal(t, int64(buf.Len()), w.Written())

	r := NewReader(bytes.NewReader(buf.Bytes()))
	for _, expected := range records {
		rec, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, expected, rec)
	}
	_, err := r.Next()
	assert.Equal(t, io.EOF, err)

	corrupt := append([]byte{}, buf.Bytes()...)
	corrupt[14]++
	_, err = NewReader(bytes.NewReader(corrupt)).Next()
	assert.Equal(t, ErrChecksum, err)
}

func TestReadTruncated(t *testing.T) {
	// A valid header announcing far more data than follows.
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], 1<<39)
	binary.LittleEndian.PutUint32(header[8:], maskedCRC(header[:8]))
	_, err := NewReader(bytes.NewReader(append(header[:], "short"...))).Next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).Write([]byte("record")))
	_, err = NewReader(bytes.NewReader(buf.Bytes()[:buf.Len()-2])).Next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestExample(t *testing.T) {
	e := Example{
		"image_raw": BytesFeature([]byte{1, 2, 3}),
		"label":     Int64Feature(-5, 300),
		"score":     FloatFeature(0.5, -2),
	}
	data := e.Marshal()
	e1, err := UnmarshalExample(data)
	require.NoError(t, err)
	assert.Equal(t, e, e1)

	_, err = UnmarshalExample([]byte{0x0a, 0x05, 1})
	assert.Error(t, err)
}

func TestExampleWireFormat(t *testing.T) {
	// Example{features: {feature: {"a": {int64_list: [1]}}}}
	expected := []byte{
		0x0a, 0x0c, // features
		0x0a, 0x0a, // feature map entry
		0x0a, 0x01, 'a', // key
		0x12, 0x05, // value: Feature
		0x1a, 0x03, // int64_list
		0x0a, 0x01, 0x01, // packed values
	}
	assert.Equal(t, expected, Example{"a": Int64Feature(1)}.Marshal())
}

func TestFromMXNet(t *testing.T) {
	dir := t.TempDir()
	idxPath := filepath.Join(dir, "train.idx")
	recPath := filepath.Join(dir, "train.rec")
	rw, err := recordio.CreateIndexed(idxPath, recPath)
	require.NoError(t, err)
	require.NoError(t, rw.Write(0, recordio.Pack(&recordio.Header{Labels: []float32{3, 4}}, nil)))
	require.NoError(t, rw.Write(1, recordio.Pack(&recordio.Header{Label: 0}, []byte("img1"))))
	require.NoError(t, rw.Write(2, recordio.Pack(&recordio.Header{Label: 0}, []byte("img2"))))
	require.NoError(t, rw.Write(3, recordio.Pack(&recordio.Header{Labels: []float32{1, 3}}, nil)))
	require.NoError(t, rw.Close())

	ix, err := recordio.OpenIndexed(idxPath, recPath)
	require.NoError(t, err)
	defer ix.Close()

	var buf bytes.Buffer
	n, err := FromMXNet(context.Background(), ix, NewWriter(&buf), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	r := NewReader(&buf)
	for _, name := range []string{"img1", "img2"} {
		rec, err := r.Next()
		require.NoError(t, err)
		e, err := UnmarshalExample(rec)
		require.NoError(t, err)
		assert.Equal(t, Example{
			"image_raw": BytesFeature([]byte(name)),
			"label":     Int64Feature(0),
		}, e)
	}
}

func TestFromImageFolders(t *testing.T) {
	root := t.TempDir()
	writeJPEG := func(path string, w, h int) {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, jpeg.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
		require.NoError(t, f.Close())
	}
	writeJPEG(filepath.Join(root, "male", "a.jpg"), 4, 2)
	writeJPEG(filepath.Join(root, "female", "b.jpg"), 3, 5)
	writeJPEG(filepath.Join(root, "female", "c.jpg"), 3, 5)
	require.NoError(t, os.WriteFile(filepath.Join(root, "LICENSE.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "male", "notes.txt"), []byte("x"), 0644))

	classes, err := ClassNames(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"female", "male"}, classes)

	var buf bytes.Buffer
	n, err := FromImageFolders(context.Background(), root, NewWriter(&buf), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	r := NewReader(&buf)
	var labels []int64
	for i := 0; i < 3; i++ {
		rec, err := r.Next()
		require.NoError(t, err)
		e, err := UnmarshalExample(rec)
		require.NoError(t, err)
		labels = append(labels, e["label"].Int64[0])
		assert.Equal(t, []int64{3}, e["depth"].Int64)
		if i == 2 {
			assert.Equal(t, []int64{2}, e["height"].Int64)
			assert.Equal(t, []int64{4}, e["width"].Int64)
		}
	}
	assert.Equal(t, []int64{0, 0, 1}, labels)
}
