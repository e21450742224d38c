package pairs

import (
	"image"
	"math/rand"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// A Batch holds the two halves of a set of paired images.
// Each image is stored row-major as RGB triples, scaled to
// the range [-1, 1].
type Batch struct {
	A [][]float32
	B [][]float32
}

// A Loader reads paired images from a folder.
type Loader struct {
	Paths  []string
	Width  int
	Height int

	// Rand drives sampling and flipping.
	Rand *rand.Rand
}

// NewLoader creates a loader for every file in dir. Images
// are resized to w x h.
func NewLoader(dir string, w, h int) (*Loader, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("new loader: no images in %s", dir)
	}
	sort.Strings(paths)
	return &Loader{
		Paths:  paths,
		Width:  w,
		Height: h,
		Rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Sample loads batchSize images chosen at random, with
// replacement. Images are flipped at random unless testing.
func (l *Loader) Sample(batchSize int, testing bool) (*Batch, error) {
	if batchSize <= 0 {
		return nil, errors.Errorf("sample: invalid batch size %d", batchSize)
	}
	paths := make([]string, batchSize)
	for i := range paths {
		paths[i] = l.Paths[l.Rand.Intn(len(l.Paths))]
	}
	return l.loadBatch(paths, testing)
}

// Batches iterates over the images in order, in batches of
// batchSize. A trailing partial batch is dropped.
func (l *Loader) Batches(batchSize int, testing bool) *Batches {
	return &Batches{loader: l, size: batchSize, testing: testing}
}

// NumBatches gets the number of batches Batches yields.
func (l *Loader) NumBatches(batchSize int) int {
	if batchSize <= 0 {
		return 0
	}
	return len(l.Paths) / batchSize
}

// LoadImage loads one full image, resized to the loader's
// size but not split.
func (l *Loader) LoadImage(path string) ([]float32, error) {
	img, err := readImage(path)
	if err != nil {
		return nil, err
	}
	return l.tensor(img, img.Bounds(), false), nil
}

func (l *Loader) loadBatch(paths []string, testing bool) (*Batch, error) {
	batch := &Batch{}
	for _, path := range paths {
		img, err := readImage(path)
		if err != nil {
			return nil, err
		}
		b := img.Bounds()
		half := b.Min.X + b.Dx()/2
		flip := !testing && l.Rand.Float64() > 0.5
		left := image.Rect(b.Min.X, b.Min.Y, half, b.Max.Y)
		right := image.Rect(half, b.Min.Y, b.Max.X, b.Max.Y)
		batch.A = append(batch.A, l.tensor(img, left, flip))
		batch.B = append(batch.B, l.tensor(img, right, flip))
	}
	return batch, nil
}

// tensor resizes the sr part of img and converts it to
// floats in [-1, 1].
func (l *Loader) tensor(img image.Image, sr image.Rectangle, flip bool) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, l.Width, l.Height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, sr, draw.Src, nil)
	res := make([]float32, 0, l.Width*l.Height*3)
	for y := 0; y < l.Height; y++ {
		for x := 0; x < l.Width; x++ {
			sx := x
			if flip {
				sx = l.Width - 1 - x
			}
			p := dst.Pix[dst.PixOffset(sx, y):]
			for c := 0; c < 3; c++ {
				res = append(res, float32(p[c])/127.5-1)
			}
		}
	}
	return res
}

// Batches iterates over the batches of a Loader.
type Batches struct {
	loader  *Loader
	size    int
	testing bool
	index   int
	batch   *Batch
	err     error
}

// Next loads the next batch. It returns false when there
// are no more batches or an error occurred.
func (b *Batches) Next() bool {
	if b.err != nil || b.size <= 0 {
		return false
	}
	paths := b.loader.Paths
	if b.index+b.size > len(paths) {
		return false
	}
	b.batch, b.err = b.loader.loadBatch(paths[b.index:b.index+b.size], b.testing)
	b.index += b.size
	return b.err == nil
}

// Batch gets the batch loaded by the last call to Next.
func (b *Batches) Batch() *Batch {
	return b.batch
}

// Err gets the error that stopped the iteration, if any.
func (b *Batches) Err() error {
	return b.err
}
