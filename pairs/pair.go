// Package pairs prepares side-by-side photo and normal-map
// images and loads them back as training batches.
package pairs

import (
	"context"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar"
	"github.com/facescan/facemesh/normalmap"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// DefaultMinWidth is the narrowest foreground, in pixels,
// that MakePair accepts.
const DefaultMinWidth = 50

// skipSuffixes mark the derived images that sit next to the
// photos in a subject folder.
var skipSuffixes = []string{"_color.png", "_grey.png", "_x.png", "_y.png", "_z.png"}

// Foreground computes the bounding box of the pixels of img
// whose gray value exceeds 1. It returns an empty rectangle
// if there are none.
func Foreground(img image.Image) image.Rectangle {
	b := img.Bounds()
	var res image.Rectangle
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if g.Y <= 1 {
				continue
			}
			res = res.Union(image.Rect(x, y, x+1, y+1))
		}
	}
	return res
}

// MakePair crops the foreground of normal, scales photo and
// the crop to squares as tall as the shorter of the two
// input images, and puts them side by side.
//
// If the foreground is no wider than minWidth, no pair is
// produced and false is returned.
func MakePair(photo, normal image.Image, minWidth int) (image.Image, bool, error) {
	if photo.Bounds().Empty() || normal.Bounds().Empty() {
		return nil, false, errors.New("make pair: empty image")
	}
	fg := Foreground(normal)
	if fg.Dx() <= minWidth {
		return nil, false, nil
	}
	side := photo.Bounds().Dy()
	if h := normal.Bounds().Dy(); h < side {
		side = h
	}
	res := image.NewRGBA(image.Rect(0, 0, side*2, side))
	draw.CatmullRom.Scale(res, image.Rect(0, 0, side, side), photo, photo.Bounds(), draw.Src, nil)
	draw.CatmullRom.Scale(res, image.Rect(side, 0, side*2, side), normal, fg, draw.Src, nil)
	return res, true, nil
}

// A Maker pairs the photos of a scan database with their
// rendered normal maps.
type Maker struct {
	// MinWidth is passed to MakePair. If 0, DefaultMinWidth
	// is used.
	MinWidth int

	// SubjectPattern selects subject folders below the photo
	// folder. If empty, normalmap.DefaultSubjectPattern is
	// used.
	SubjectPattern string

	// Workers limits the number of pairs made at once.
	// If 0, runtime.NumCPU() is used.
	Workers int

	Logger *zap.Logger
}

// Stats summarizes a MakePairs call.
type Stats struct {
	Written int
	Skipped int
	Failed  int
}

// MakePairs pairs every photo "<photoDir>/<subject>/<name>.png"
// with "<normalDir>/<subject>/<name>.png" and writes the
// result to "<targetDir>/<name>.png".
func (m *Maker) MakePairs(ctx context.Context, photoDir, normalDir, targetDir string) (Stats, error) {
	pattern := m.SubjectPattern
	if pattern == "" {
		pattern = normalmap.DefaultSubjectPattern
	}
	photos, err := doublestar.Glob(filepath.Join(photoDir, pattern, "*.png"))
	if err != nil {
		return Stats{}, errors.Wrap(err, "list photos")
	}
	sort.Strings(photos)
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return Stats{}, err
	}
	log := m.logger()

	var stats Stats
	var lock sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(m.workers())
	for _, photo := range photos {
		if isDerived(photo) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		photo := photo
		g.Go(func() error {
			target := filepath.Join(targetDir, filepath.Base(photo))
			normal, err := normalPath(photoDir, normalDir, photo)
			var ok bool
			if err == nil {
				ok, err = m.makeFile(photo, normal, target)
			}
			lock.Lock()
			defer lock.Unlock()
			if err != nil {
				stats.Failed++
				log.Warn("pair failed", zap.String("path", photo), zap.Error(err))
			} else if !ok {
				stats.Skipped++
				log.Debug("foreground too narrow", zap.String("path", normal))
			} else {
				stats.Written++
				log.Debug("wrote pair", zap.String("path", target))
			}
			return nil
		})
	}
	g.Wait()
	log.Info("made pairs", zap.Int("written", stats.Written),
		zap.Int("skipped", stats.Skipped), zap.Int("failed", stats.Failed))
	return stats, ctx.Err()
}

// normalPath finds the normal map that belongs to a photo
// below photoDir.
func normalPath(photoDir, normalDir, photo string) (string, error) {
	rel, err := filepath.Rel(photoDir, photo)
	if err != nil {
		return "", errors.Wrap(err, "normal map path")
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("normal map path: %s is not below %s", photo, photoDir)
	}
	return filepath.Join(normalDir, rel), nil
}

func (m *Maker) makeFile(photoPath, normalPath, target string) (bool, error) {
	photo, err := readImage(photoPath)
	if err != nil {
		return false, err
	}
	normal, err := readImage(normalPath)
	if err != nil {
		return false, err
	}
	minWidth := m.MinWidth
	if minWidth == 0 {
		minWidth = DefaultMinWidth
	}
	pair, ok, err := MakePair(photo, normal, minWidth)
	if err != nil || !ok {
		return false, err
	}
	return true, normalmap.SavePNG(target, pair)
}

func (m *Maker) workers() int {
	if m.Workers <= 0 {
		return runtime.NumCPU()
	}
	return m.Workers
}

func (m *Maker) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}

func isDerived(path string) bool {
	for _, suffix := range skipSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func readImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return img, nil
}
