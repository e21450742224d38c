package normalmap

import (
	"math"

	"github.com/unixpickle/model3d/model3d"
)

// A PixelSpace maps the pixels of a square image onto the
// XY plane of a mesh, looking down the Z axis.
//
// Image columns run along +X and image rows along -Y, so
// the top of the image is the top of the face.
type PixelSpace struct {
	// Center is the world coordinate of the image center.
	Center model3d.Coord3D

	// PixelSize is the world-space width of one pixel.
	PixelSize float64

	// Size is the image width and height in pixels.
	Size int

	// Top is the Z coordinate rays are cast from.
	Top float64
}

// NewPixelSpace fits the XY bounding box of a mesh into an
// image of the given size, leaving margin pixels of padding
// on every side. The scale is uniform, so the larger side
// of the box fills the image.
func NewPixelSpace(min, max model3d.Coord3D, size, margin int) *PixelSpace {
	inner := size - 2*margin
	if inner < 1 {
		inner = 1
	}
	sizes := max.Sub(min)
	extent := math.Max(sizes.X, sizes.Y)
	if extent <= 0 {
		extent = 1
	}
	pixelSize := extent / float64(inner)
	return &PixelSpace{
		Center:    min.Mid(max),
		PixelSize: pixelSize,
		Size:      size,
		Top:       max.Z + pixelSize,
	}
}

// Coord gets the world coordinate at the center of a pixel,
// on the XY plane through the mesh center.
func (p *PixelSpace) Coord(x, y int) model3d.Coord3D {
	half := float64(p.Size) / 2
	return model3d.Coord3D{
		X: p.Center.X + (float64(x)+0.5-half)*p.PixelSize,
		Y: p.Center.Y - (float64(y)+0.5-half)*p.PixelSize,
		Z: p.Center.Z,
	}
}

// Pixel gets the pixel containing the projection of a world
// coordinate. The result may be outside of the image.
func (p *PixelSpace) Pixel(c model3d.Coord3D) (x, y int) {
	half := float64(p.Size) / 2
	x = int(math.Floor((c.X-p.Center.X)/p.PixelSize + half))
	y = int(math.Floor(half - (c.Y-p.Center.Y)/p.PixelSize))
	return
}

// Ray creates a ray through the center of a pixel, pointing
// into the mesh from above.
func (p *PixelSpace) Ray(x, y int) *model3d.Ray {
	origin := p.Coord(x, y)
	origin.Z = p.Top
	return &model3d.Ray{
		Origin:    origin,
		Direction: model3d.Coord3D{Z: -1},
	}
}
