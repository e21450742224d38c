package normalmap

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar"
	"github.com/facescan/facemesh/wrl"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Output folders created by a Converter, one per image kind.
const (
	DirX     = "normal_x"
	DirY     = "normal_y"
	DirZ     = "normal_z"
	DirColor = "normal_color"
	DirGrey  = "normal_grey"
)

// DefaultSubjectPattern matches the subject folders of the
// Bosphorus database.
const DefaultSubjectPattern = "bs*"

// A Converter renders every scan in a database of subject
// folders into normal maps.
type Converter struct {
	Options Options

	// SubjectPattern selects subject folders below the
	// source folder. It may contain "**".
	SubjectPattern string

	// Workers limits the number of scans rendered at once.
	// If 0, runtime.NumCPU() is used.
	Workers int

	Logger *zap.Logger
}

// Stats summarizes a Convert call.
type Stats struct {
	Converted int
	Failed    int
}

// Convert renders all "*.wrl" files in the subject folders
// of sourceDir, writing five PNG images per scan:
//
//     <targetDir>/normal_{x,y,z,color,grey}/<subject>/<name>.png
//
// where subject is the name of the folder containing the
// scan. A scan that cannot be converted is logged and
// counted, and does not stop the others.
func (c *Converter) Convert(ctx context.Context, sourceDir, targetDir string) (Stats, error) {
	pattern := c.SubjectPattern
	if pattern == "" {
		pattern = DefaultSubjectPattern
	}
	paths, err := doublestar.Glob(filepath.Join(sourceDir, pattern, "*.wrl"))
	if err != nil {
		return Stats{}, errors.Wrap(err, "list scans")
	}
	log := c.logger()
	log.Info("found scans", zap.Int("count", len(paths)), zap.String("source", sourceDir))

	var stats Stats
	var lock sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(c.workers())
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		path := path
		g.Go(func() error {
			start := time.Now()
			err := c.ConvertFile(path, targetDir)
			lock.Lock()
			defer lock.Unlock()
			if err != nil {
				stats.Failed++
				log.Warn("conversion failed", zap.String("path", path), zap.Error(err))
			} else {
				stats.Converted++
				log.Debug("converted", zap.String("path", path), zap.Duration("elapsed", time.Since(start)))
			}
			return nil
		})
	}
	g.Wait()
	return stats, ctx.Err()
}

// ConvertFile renders one scan into the output folders of
// targetDir.
func (c *Converter) ConvertFile(path, targetDir string) error {
	mesh, err := wrl.ReadFile(path)
	if err != nil {
		return err
	}
	m, err := RenderWRL(mesh, c.options())
	if err != nil {
		return errors.Wrap(err, path)
	}

	subject := filepath.Base(filepath.Dir(path))
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".png"
	outputs := []struct {
		dir   string
		image image.Image
	}{
		{DirX, m.Channel(AxisX)},
		{DirY, m.Channel(AxisY)},
		{DirZ, m.Channel(AxisZ)},
		{DirColor, m.RGB()},
		{DirGrey, m.Gray()},
	}
	for _, out := range outputs {
		dir := filepath.Join(targetDir, out.dir, subject)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		if err := SavePNG(filepath.Join(dir, name), out.image); err != nil {
			return err
		}
	}
	return nil
}

func (c *Converter) options() Options {
	if c.Options.Size == 0 {
		return DefaultOptions()
	}
	return c.Options
}

func (c *Converter) workers() int {
	if c.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}

func (c *Converter) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
