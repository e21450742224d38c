package tfrecord

import (
	"bytes"
	"context"
	"image"
	"image/color"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/facescan/facemesh/recordio"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// LogInterval is the number of records between progress
// log messages.
const LogInterval = 10000

// FromMXNet writes one Example per image record of an
// InsightFace RecordIO dataset, with the features
// "image_raw" (encoded image) and "label" (class).
func FromMXNet(ctx context.Context, ix *recordio.Indexed, w *Writer, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	images, ranges, err := recordio.IdentityRanges(ix)
	if err != nil {
		return 0, err
	}
	log.Info("unpacked dataset header",
		zap.Int("images", len(images)),
		zap.Int("identities", len(ranges)))

	for i, key := range images {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		rec, err := ix.ReadIdx(key)
		if err != nil {
			return i, err
		}
		header, img, err := recordio.Unpack(rec)
		if err != nil {
			return i, errors.Wrapf(err, "record %d", key)
		}
		example := Example{
			"image_raw": BytesFeature(img),
			"label":     Int64Feature(int64(header.IntLabel())),
		}
		if err := w.Write(example.Marshal()); err != nil {
			return i, err
		}
		if (i+1)%LogInterval == 0 {
			log.Info("processed images", zap.Int("count", i+1),
				zap.String("written", humanize.Bytes(uint64(w.Written()))))
		}
	}
	log.Info("converted dataset", zap.Int("images", len(images)),
		zap.String("written", humanize.Bytes(uint64(w.Written()))))
	return len(images), nil
}

// ClassNames lists the class folders below root, sorted.
func ClassNames(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// FromImageFolders writes one Example per JPEG image in the
// class folders of root. The label of an image is the index
// of its folder in ClassNames. Each Example has the features
// "height", "width", "depth", "label" and "image_raw".
func FromImageFolders(ctx context.Context, root string, w *Writer, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	classes, err := ClassNames(root)
	if err != nil {
		return 0, err
	}
	log.Info("found classes", zap.Strings("classes", classes))

	var count int
	for label, class := range classes {
		paths, err := filepath.Glob(filepath.Join(root, class, "*"))
		if err != nil {
			return count, err
		}
		sort.Strings(paths)
		for _, path := range paths {
			if !strings.EqualFold(filepath.Ext(path), ".jpg") {
				continue
			}
			if err := ctx.Err(); err != nil {
				return count, err
			}
			example, err := imageExample(path, label)
			if err != nil {
				return count, err
			}
			if err := w.Write(example.Marshal()); err != nil {
				return count, err
			}
			count++
		}
		log.Debug("converted class", zap.String("class", class), zap.Int("total", count))
	}
	log.Info("converted images", zap.Int("images", count),
		zap.String("written", humanize.Bytes(uint64(w.Written()))))
	return count, nil
}

func imageExample(path string, label int) (Example, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return Example{
		"height":    Int64Feature(int64(cfg.Height)),
		"width":     Int64Feature(int64(cfg.Width)),
		"depth":     Int64Feature(int64(channels(cfg.ColorModel))),
		"label":     Int64Feature(int64(label)),
		"image_raw": BytesFeature(data),
	}, nil
}

func channels(model color.Model) int {
	switch model {
	case color.GrayModel, color.Gray16Model:
		return 1
	case color.CMYKModel:
		return 4
	}
	return 3
}
