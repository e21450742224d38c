// Package normalmap renders triangle meshes of faces into
// surface normal images.
//
// A mesh is projected orthographically along -Z. Each pixel
// stores the unit normal of the first surface a ray through
// it hits, and the three normal components are exported as
// separate gray images or packed into one RGB image.
package normalmap

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/facescan/facemesh/wrl"
	"github.com/pkg/errors"
	"github.com/unixpickle/model3d/model3d"
)

var (
	ErrEmptyMesh = errors.New("mesh has no non-degenerate triangles")
	ErrBadIndex  = wrl.ErrBadIndex
)

// Axis selects one component of a normal.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// HoleNeighbors is the number of covered neighbors an
// empty pixel needs for FillHoles to fill it.
const HoleNeighbors = 5

// Options configures Render.
type Options struct {
	// Size is the width and height of the image.
	Size int

	// Margin is the number of background pixels kept on
	// every side of the mesh.
	Margin int

	// FillHoles fills single-pixel gaps between triangles.
	FillHoles bool
}

// DefaultOptions returns the options used for the
// Bosphorus normal-map datasets.
func DefaultOptions() Options {
	return Options{Size: 500, Margin: 10, FillHoles: true}
}

// A Map is a square grid of surface normals.
//
// Pixels are stored row-major, starting at the top-left.
type Map struct {
	Size int
	X    []float64
	Y    []float64
	Z    []float64

	// Hit marks the pixels covered by the mesh.
	Hit []bool
}

// NewMap creates an empty map.
func NewMap(size int) *Map {
	return &Map{
		Size: size,
		X:    make([]float64, size*size),
		Y:    make([]float64, size*size),
		Z:    make([]float64, size*size),
		Hit:  make([]bool, size*size),
	}
}

// Set stores a normal at a pixel and marks it covered.
func (m *Map) Set(x, y int, n model3d.Coord3D) {
	i := y*m.Size + x
	m.X[i], m.Y[i], m.Z[i] = n.X, n.Y, n.Z
	m.Hit[i] = true
}

// At gets the normal at a pixel and whether it is covered.
func (m *Map) At(x, y int) (model3d.Coord3D, bool) {
	i := y*m.Size + x
	return model3d.Coord3D{X: m.X[i], Y: m.Y[i], Z: m.Z[i]}, m.Hit[i]
}

// Coverage counts the covered pixels.
func (m *Map) Coverage() int {
	var n int
	for _, h := range m.Hit {
		if h {
			n++
		}
	}
	return n
}

// Render draws the normals of a mesh.
func Render(mesh *model3d.Mesh, opts Options) (*Map, error) {
	if opts.Size <= 0 {
		return nil, errors.Errorf("render normal map: invalid size %d", opts.Size)
	}
	var triangles []*model3d.Triangle
	for _, t := range mesh.TriangleSlice() {
		if t.Area() > 0 {
			triangles = append(triangles, t)
		}
	}
	if len(triangles) == 0 {
		return nil, ErrEmptyMesh
	}
	collider := model3d.MeshToCollider(model3d.NewMeshTriangles(triangles))
	space := NewPixelSpace(collider.Min(), collider.Max(), opts.Size, opts.Margin)

	m := NewMap(opts.Size)
	for y := 0; y < opts.Size; y++ {
		for x := 0; x < opts.Size; x++ {
			if n, ok := surfaceNormal(collider, space.Ray(x, y)); ok {
				m.Set(x, y, n)
			}
		}
	}
	if opts.FillHoles {
		m.FillHoles(HoleNeighbors)
	}
	return m, nil
}

// RenderWRL draws the normals of a decoded VRML mesh.
func RenderWRL(mesh *wrl.Mesh, opts Options) (*Map, error) {
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	return Render(mesh.Model(), opts)
}

// FillHoles covers every empty pixel that has at least
// minNeighbors covered 8-neighbors with the normalized mean
// of those neighbors. Filled pixels do not count as
// neighbors during the same call.
func (m *Map) FillHoles(minNeighbors int) {
	hit := append([]bool{}, m.Hit...)
	for y := 0; y < m.Size; y++ {
		for x := 0; x < m.Size; x++ {
			if hit[y*m.Size+x] {
				continue
			}
			var sum model3d.Coord3D
			var count int
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= m.Size || ny >= m.Size || !hit[ny*m.Size+nx] {
						continue
					}
					n, _ := m.At(nx, ny)
					sum = sum.Add(n)
					count++
				}
			}
			if count >= minNeighbors && sum.Norm() > 0 {
				m.Set(x, y, sum.Normalize())
			}
		}
	}
}

func (m *Map) component(axis Axis) []float64 {
	switch axis {
	case AxisX:
		return m.X
	case AxisY:
		return m.Y
	case AxisZ:
		return m.Z
	}
	panic("unknown axis")
}

// Channel converts one normal component into a gray image.
//
// The covered pixels are scaled from their minimum to their
// maximum onto [1, 255], and empty pixels are 0. If all
// covered pixels have the same value, they become 128.
func (m *Map) Channel(axis Axis) *image.Gray {
	values := m.component(axis)
	min, max := math.Inf(1), math.Inf(-1)
	for i, v := range values {
		if m.Hit[i] {
			min = math.Min(min, v)
			max = math.Max(max, v)
		}
	}

	img := image.NewGray(image.Rect(0, 0, m.Size, m.Size))
	for i, v := range values {
		if !m.Hit[i] {
			continue
		}
		if max > min {
			img.Pix[(i/m.Size)*img.Stride+i%m.Size] = uint8(math.Round(1 + 254*(v-min)/(max-min)))
		} else {
			img.Pix[(i/m.Size)*img.Stride+i%m.Size] = 128
		}
	}
	return img
}

// RGB packs the three normal channels into one image, with
// Y in red, Z in green and X in blue.
func (m *Map) RGB() *image.RGBA {
	xs, ys, zs := m.Channel(AxisX), m.Channel(AxisY), m.Channel(AxisZ)
	img := image.NewRGBA(image.Rect(0, 0, m.Size, m.Size))
	for y := 0; y < m.Size; y++ {
		for x := 0; x < m.Size; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: ys.GrayAt(x, y).Y,
				G: zs.GrayAt(x, y).Y,
				B: xs.GrayAt(x, y).Y,
				A: 0xff,
			})
		}
	}
	return img
}

// Gray converts the RGB image to luminance.
func (m *Map) Gray() *image.Gray {
	rgb := m.RGB()
	img := image.NewGray(rgb.Bounds())
	for y := 0; y < m.Size; y++ {
		for x := 0; x < m.Size; x++ {
			img.SetGray(x, y, color.GrayModel.Convert(rgb.RGBAAt(x, y)).(color.Gray))
		}
	}
	return img
}

// SavePNG encodes an image as a PNG file.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrap(err, "save "+path)
	}
	return f.Close()
}
