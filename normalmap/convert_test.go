package normalmap

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const pyramidWRL = `#VRML V2.0 utf8
Shape { geometry IndexedFaceSet {
  coord Coordinate { point [ 0 0 0, 2 0 0, 2 2 0, 0 2 0, 1 1 1 ] }
  coordIndex [ 0 1 4 -1 1 2 4 -1 2 3 4 -1 3 0 4 -1 ]
} }
`

func TestConverter(t *testing.T) {
	source := t.TempDir()
	target := t.TempDir()
	for _, path := range []string{
		"bs000/bs000_N_N_0.wrl",
		"bs001/bs001_N_N_0.wrl",
		"other/skipped.wrl",
	} {
		full := filepath.Join(source, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(pyramidWRL), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(source, "bs001", "broken.wrl"),
		[]byte("coordIndex [ 0 1 2 -1 ]"), 0644))

	c := &Converter{
		Options: Options{Size: 32, Margin: 2, FillHoles: true},
		Workers: 2,
		Logger:  zap.NewNop(),
	}
	stats, err := c.Convert(context.Background(), source, target)
	require.NoError(t, err)
	assert.Equal(t, Stats{Converted: 2, Failed: 1}, stats)

	for _, dir := range []string{DirX, DirY, DirZ, DirColor, DirGrey} {
		path := filepath.Join(target, dir, "bs000", "bs000_N_N_0.png")
		f, err := os.Open(path)
		require.NoError(t, err, dir)
		img, err := png.Decode(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, 32, img.Bounds().Dx())
	}
	_, err = os.Stat(filepath.Join(target, DirX, "other"))
	assert.True(t, os.IsNotExist(err))
}

func TestConverterCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &Converter{}
	stats, err := c.Convert(ctx, t.TempDir(), t.TempDir())
	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, Stats{}, stats)
}
