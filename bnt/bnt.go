// Package bnt reads range scans in the Bosphorus database
// ".bnt" format and turns them into triangle meshes.
package bnt

import (
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/facescan/facemesh/wrl"
	"github.com/pkg/errors"
	"github.com/unixpickle/model3d/model3d"
)

// A Scan is a range image: a grid of 3D points with
// texture coordinates.
//
// Plane values are stored row-major with row 0 at the top.
type Scan struct {
	Rows int
	Cols int

	// ZMin marks grid points without a measurement.
	ZMin float64

	// ImageFile is the texture image of the scan.
	ImageFile string

	X []float64
	Y []float64
	Z []float64
	U []float64
	V []float64
}

// ReadFile reads a scan from a file on disk.
func ReadFile(path string) (*Scan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := Read(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return s, nil
}

// Read decodes a scan.
func Read(r io.Reader) (*Scan, error) {
	var header struct {
		Rows uint16
		Cols uint16
		ZMin float64
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, errors.Wrap(err, "read bnt header")
	}
	var nameLen uint16
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return nil, errors.Wrap(err, "read bnt header")
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, errors.Wrap(err, "read bnt image name")
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, errors.Wrap(err, "read bnt header")
	}

	rows, cols := int(header.Rows), int(header.Cols)
	size := rows * cols
	if int(count) != size*5 {
		return nil, errors.Errorf("read bnt: %d values for a %dx%d grid", count, rows, cols)
	}

	s := &Scan{
		Rows:      rows,
		Cols:      cols,
		ZMin:      header.ZMin,
		ImageFile: string(name),
	}
	for _, plane := range []*[]float64{&s.X, &s.Y, &s.Z, &s.U, &s.V} {
		values := make([]float64, size)
		if err := binary.Read(r, binary.LittleEndian, values); err != nil {
			return nil, errors.Wrap(err, "read bnt data")
		}
		*plane = flipRows(values, rows, cols)
	}
	return s, nil
}

// Write encodes the scan in the same layout Read expects.
func Write(w io.Writer, s *Scan) error {
	if s.Rows > math.MaxUint16 || s.Cols > math.MaxUint16 || len(s.ImageFile) > math.MaxUint16 {
		return errors.New("write bnt: scan too large")
	}
	fields := []interface{}{
		uint16(s.Rows),
		uint16(s.Cols),
		s.ZMin,
		uint16(len(s.ImageFile)),
		[]byte(s.ImageFile),
		uint32(s.Rows * s.Cols * 5),
	}
	for _, plane := range [][]float64{s.X, s.Y, s.Z, s.U, s.V} {
		fields = append(fields, flipRows(plane, s.Rows, s.Cols))
	}
	for _, field := range fields {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return errors.Wrap(err, "write bnt")
		}
	}
	return nil
}

// flipRows turns a bottom-up grid into a top-down one, and
// back.
func flipRows(values []float64, rows, cols int) []float64 {
	res := make([]float64, 0, len(values))
	for row := rows - 1; row >= 0; row-- {
		res = append(res, values[row*cols:(row+1)*cols]...)
	}
	return res
}

// Valid checks if a grid point holds a measurement.
// Points outside the grid are invalid.
func (s *Scan) Valid(row, col int) bool {
	if row < 0 || col < 0 || row >= s.Rows || col >= s.Cols {
		return false
	}
	return s.Z[row*s.Cols+col] != s.ZMin
}

// Point gets the 3D coordinate of a grid point.
func (s *Scan) Point(row, col int) model3d.Coord3D {
	i := row*s.Cols + col
	return model3d.Coord3D{X: s.X[i], Y: s.Y[i], Z: s.Z[i]}
}

// NumValid counts the grid points with a measurement.
func (s *Scan) NumValid() int {
	var n int
	for _, z := range s.Z {
		if z != s.ZMin {
			n++
		}
	}
	return n
}

// Mesh triangulates the valid points of the grid.
//
// Each grid cell with four valid corners yields two
// triangles, and a cell with three valid corners yields
// one. Triangles face +Z when rows run top to bottom and
// columns left to right.
func (s *Scan) Mesh() *wrl.Mesh {
	m := &wrl.Mesh{TextureURL: s.ImageFile}
	indices := make([]int, s.Rows*s.Cols)
	for row := 0; row < s.Rows; row++ {
		for col := 0; col < s.Cols; col++ {
			i := row*s.Cols + col
			if !s.Valid(row, col) {
				indices[i] = -1
				continue
			}
			indices[i] = len(m.Vertices)
			m.Vertices = append(m.Vertices, s.Point(row, col))
			m.TexCoords = append(m.TexCoords, model3d.Coord2D{X: s.U[i], Y: s.V[i]})
		}
	}

	index := func(row, col int) int {
		if row >= s.Rows || col >= s.Cols {
			return -1
		}
		return indices[row*s.Cols+col]
	}
	addFace := func(a, b, c int) {
		m.Faces = append(m.Faces, [3]int{a, b, c})
		m.TexFaces = append(m.TexFaces, [3]int{a, b, c})
	}
	for row := 0; row+1 < s.Rows; row++ {
		for col := 0; col+1 < s.Cols; col++ {
			a := index(row, col)
			b := index(row+1, col)
			c := index(row, col+1)
			d := index(row+1, col+1)
			switch {
			case a >= 0 && b >= 0 && c >= 0 && d >= 0:
				addFace(a, b, c)
				addFace(c, b, d)
			case d < 0 && a >= 0 && b >= 0 && c >= 0:
				addFace(a, b, c)
			case a < 0 && b >= 0 && c >= 0 && d >= 0:
				addFace(c, b, d)
			case b < 0 && a >= 0 && c >= 0 && d >= 0:
				addFace(a, d, c)
			case c < 0 && a >= 0 && b >= 0 && d >= 0:
				addFace(a, b, d)
			}
		}
	}
	return m
}

// Model triangulates the scan as a model3d mesh.
func (s *Scan) Model() *model3d.Mesh {
	return s.Mesh().Model()
}
