package normalmap

import (
	"math"
	"testing"

	"github.com/facescan/facemesh/wrl"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/model3d/model3d"
)

func xyz(x, y, z float64) model3d.Coord3D {
	return model3d.Coord3D{X: x, Y: y, Z: z}
}

// squareMesh creates the unit square on z = slope*x, split
// into two triangles along the (0, 1)-(1, 0) diagonal.
func squareMesh(slope float64) *model3d.Mesh {
	p00 := xyz(0, 0, 0)
	p10 := xyz(1, 0, slope)
	p01 := xyz(0, 1, 0)
	p11 := xyz(1, 1, slope)
	return model3d.NewMeshTriangles([]*model3d.Triangle{
		{p00, p10, p01},
		// Reversed winding, facing away from the viewer.
		{p10, p01, p11},
	})
}

func TestPixelSpace(t *testing.T) {
	space := NewPixelSpace(xyz(0, 0, 0), xyz(1, 2, 3), 24, 2)
	assert.InDelta(t, 0.1, space.PixelSize, 1e-8)
	assert.InDelta(t, 3.1, space.Top, 1e-8)

	for _, p := range [][2]int{{0, 0}, {3, 17}, {23, 23}} {
		x, y := space.Pixel(space.Coord(p[0], p[1]))
		assert.Equal(t, p, [2]int{x, y})
	}

	// The top of the mesh is at the top of the image.
	assert.Greater(t, space.Coord(0, 0).Y, space.Coord(0, 23).Y)
	assert.Less(t, space.Coord(0, 0).X, space.Coord(23, 0).X)

	ray := space.Ray(5, 5)
	assert.Equal(t, xyz(0, 0, -1), ray.Direction)
	assert.Equal(t, space.Top, ray.Origin.Z)
}

func TestRenderFlat(t *testing.T) {
	m, err := Render(squareMesh(0), Options{Size: 20, Margin: 5})
	require.NoError(t, err)

	coverage := m.Coverage()
	assert.True(t, coverage >= 90 && coverage <= 100, "coverage %d", coverage)
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			n, ok := m.At(x, y)
			if x < 5 || y < 5 || x >= 15 || y >= 15 {
				assert.False(t, ok, "pixel %d,%d", x, y)
			} else if ok {
				assert.InDelta(t, 0, n.Dist(xyz(0, 0, 1)), 1e-8)
			}
		}
	}
	_, ok := m.At(7, 8)
	assert.True(t, ok)
}

func TestRenderSlope(t *testing.T) {
	m, err := Render(squareMesh(1), Options{Size: 30, Margin: 0, FillHoles: true})
	require.NoError(t, err)

	expected := xyz(-1, 0, 1).Normalize()
	for y := 0; y < 30; y++ {
		for x := 0; x < 30; x++ {
			if n, ok := m.At(x, y); ok {
				assert.InDelta(t, 0, n.Dist(expected), 1e-8)
			}
		}
	}
	// Only pixel centers on the shared edge can be missed,
	// and holes at the corners have too few neighbors.
	assert.GreaterOrEqual(t, m.Coverage(), 898)
}

func TestRenderOcclusion(t *testing.T) {
	mesh := squareMesh(0)
	// A smaller square above the first one, tilted along Y.
	mesh.Add(&model3d.Triangle{xyz(0.25, 0.25, 1), xyz(0.75, 0.25, 1), xyz(0.25, 0.75, 1.5)})
	m, err := Render(mesh, Options{Size: 40})
	require.NoError(t, err)

	n, ok := m.At(13, 25)
	require.True(t, ok)
	assert.InDelta(t, 0, n.Dist(xyz(0, -1, 1).Normalize()), 1e-8)

	n, ok = m.At(2, 5)
	require.True(t, ok)
	assert.InDelta(t, 0, n.Dist(xyz(0, 0, 1)), 1e-8)
}

func TestRenderErrors(t *testing.T) {
	_, err := Render(model3d.NewMesh(), DefaultOptions())
	assert.Equal(t, ErrEmptyMesh, err)

	degenerate := model3d.NewMeshTriangles([]*model3d.Triangle{
		{xyz(0, 0, 0), xyz(1, 1, 1), xyz(2, 2, 2)},
	})
	_, err = Render(degenerate, DefaultOptions())
	assert.Equal(t, ErrEmptyMesh, err)

	_, err = RenderWRL(&wrl.Mesh{
		Vertices: []model3d.Coord3D{xyz(0, 0, 0)},
		Faces:    [][3]int{{0, 1, 2}},
	}, DefaultOptions())
	assert.Equal(t, ErrBadIndex, errors.Cause(err))
}

func TestFillHoles(t *testing.T) {
	m := NewMap(3)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			if x != 1 || y != 1 {
				m.Set(x, y, xyz(float64(x-1), 0, 1).Normalize())
			}
		}
	}
	m.FillHoles(HoleNeighbors)
	n, ok := m.At(1, 1)
	require.True(t, ok)
	assert.InDelta(t, 0, n.Dist(xyz(0, 0, 1)), 1e-8)

	// A lone pixel does not fill its neighbors.
	m = NewMap(3)
	m.Set(0, 0, xyz(0, 0, 1))
	m.FillHoles(HoleNeighbors)
	assert.Equal(t, 1, m.Coverage())
}

func TestChannels(t *testing.T) {
	m := NewMap(2)
	m.Set(0, 0, xyz(-1, 0.5, 0))
	m.Set(1, 0, xyz(0, 0.5, 0))
	m.Set(0, 1, xyz(1, 0.5, 1))

	xs := m.Channel(AxisX)
	assert.Equal(t, []uint8{1, 128, 255, 0}, xs.Pix)
	ys := m.Channel(AxisY)
	assert.Equal(t, []uint8{128, 128, 128, 0}, ys.Pix)
	zs := m.Channel(AxisZ)
	assert.Equal(t, []uint8{1, 1, 255, 0}, zs.Pix)

	rgb := m.RGB()
	c := rgb.RGBAAt(0, 1)
	assert.Equal(t, [4]uint8{128, 255, 255, 255}, [4]uint8{c.R, c.G, c.B, c.A})
	c = rgb.RGBAAt(1, 1)
	assert.Equal(t, [4]uint8{0, 0, 0, 255}, [4]uint8{c.R, c.G, c.B, c.A})

	gray := m.Gray()
	assert.Equal(t, uint8(0), gray.GrayAt(1, 1).Y)
	assert.True(t, gray.GrayAt(0, 1).Y > gray.GrayAt(0, 0).Y)
}

func TestChannelNaNFree(t *testing.T) {
	m := NewMap(4)
	img := m.Channel(AxisZ)
	for _, p := range img.Pix {
		assert.Equal(t, uint8(0), p)
	}
	assert.False(t, math.IsNaN(m.Z[0]))
}
