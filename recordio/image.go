package recordio

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

const headerSize = 24

// A Header starts every image record.
type Header struct {
	// Flag is the number of labels stored after the header,
	// or 0 if Label is the only label.
	Flag   uint32
	Label  float32
	Labels []float32
	ID     uint64
	ID2    uint64
}

// Unpack splits an image record into its header and the
// encoded image.
func Unpack(record []byte) (*Header, []byte, error) {
	if len(record) < headerSize {
		return nil, nil, errors.Errorf("unpack record: %d bytes is too short", len(record))
	}
	h := &Header{
		Flag:  binary.LittleEndian.Uint32(record[0:]),
		Label: math.Float32frombits(binary.LittleEndian.Uint32(record[4:])),
		ID:    binary.LittleEndian.Uint64(record[8:]),
		ID2:   binary.LittleEndian.Uint64(record[16:]),
	}
	payload := record[headerSize:]
	if h.Flag > 0 {
		n := int(h.Flag)
		if len(payload) < 4*n {
			return nil, nil, errors.Errorf("unpack record: missing %d labels", n)
		}
		h.Labels = make([]float32, n)
		for i := range h.Labels {
			h.Labels[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[4*i:]))
		}
		payload = payload[4*n:]
	}
	return h, payload, nil
}

// Pack encodes a header and image into a record. If
// h.Labels is non-empty, it overrides h.Flag.
func Pack(h *Header, payload []byte) []byte {
	flag := h.Flag
	if len(h.Labels) > 0 {
		flag = uint32(len(h.Labels))
	}
	res := make([]byte, headerSize, headerSize+4*len(h.Labels)+len(payload))
	binary.LittleEndian.PutUint32(res[0:], flag)
	binary.LittleEndian.PutUint32(res[4:], math.Float32bits(h.Label))
	binary.LittleEndian.PutUint64(res[8:], h.ID)
	binary.LittleEndian.PutUint64(res[16:], h.ID2)
	for _, l := range h.Labels {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(l))
		res = append(res, b[:]...)
	}
	return append(res, payload...)
}

// IntLabel gets the class label of an image record.
func (h *Header) IntLabel() int {
	if len(h.Labels) > 0 {
		return int(h.Labels[0])
	}
	return int(h.Label)
}

// IdentityRanges decodes the layout of an InsightFace
// dataset. Record 0 holds two labels [a, b]: the images are
// keys 1 to a-1, and keys a to b-1 are identity records
// whose two labels give the range of image keys of one
// identity.
func IdentityRanges(ix *Indexed) (images []int, ranges map[int][2]int, err error) {
	h, err := readHeader(ix, 0)
	if err != nil {
		return nil, nil, err
	}
	if len(h.Labels) < 2 {
		return nil, nil, errors.New("identity ranges: record 0 is not a dataset header")
	}
	first, end := int(h.Labels[0]), int(h.Labels[1])
	for key := 1; key < first; key++ {
		images = append(images, key)
	}
	ranges = map[int][2]int{}
	for key := first; key < end; key++ {
		h, err := readHeader(ix, key)
		if err != nil {
			return nil, nil, err
		}
		if len(h.Labels) < 2 {
			return nil, nil, errors.Errorf("identity ranges: record %d has no range", key)
		}
		ranges[key] = [2]int{int(h.Labels[0]), int(h.Labels[1])}
	}
	return images, ranges, nil
}

func readHeader(ix *Indexed, key int) (*Header, error) {
	rec, err := ix.ReadIdx(key)
	if err != nil {
		return nil, err
	}
	h, _, err := Unpack(rec)
	return h, err
}
