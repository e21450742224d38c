// Package wrl reads and writes the subset of VRML 2.0 used
// by 3D face scanners: a Shape with an IndexedFaceSet, an
// optional texture coordinate set, and an ImageTexture.
package wrl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/unixpickle/model3d/model3d"
)

// ErrBadIndex is returned for faces that refer to
// vertices or texture coordinates that do not exist.
var ErrBadIndex = errors.New("index out of range")

// Untextured is the TexFaces entry of a face without
// texture coordinates, e.g. a face of a Shape that has no
// texCoordIndex while other Shapes of the file do.
var Untextured = [3]int{-1, -1, -1}

// A Mesh is a triangle mesh decoded from a VRML file.
//
// Faces index into Vertices. If TexFaces is non-empty, it
// has one entry per face, indexing into TexCoords or equal
// to Untextured.
type Mesh struct {
	Vertices  []model3d.Coord3D
	Faces     [][3]int
	TexCoords []model3d.Coord2D
	TexFaces  [][3]int

	// TextureURL is the first ImageTexture url, verbatim.
	TextureURL string
}

// ReadFile reads a VRML file from disk.
func ReadFile(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := Read(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return m, nil
}

// Read decodes a VRML 2.0 file.
//
// Polygons with more than three vertices are split into a
// triangle fan. Every Coordinate node starts a new vertex
// block, and the coordIndex that follows it is relative to
// that block, so files with several shapes are merged.
func Read(r io.Reader) (*Mesh, error) {
	p := &parser{tokens: newTokenizer(r), mesh: &Mesh{}}
	if err := p.parse(); err != nil {
		return nil, errors.Wrap(err, "read wrl")
	}
	if err := p.mesh.Validate(); err != nil {
		return nil, errors.Wrap(err, "read wrl")
	}
	return p.mesh, nil
}

// Validate checks that every face refers to existing
// vertices and texture coordinates.
func (m *Mesh) Validate() error {
	for i, f := range m.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= len(m.Vertices) {
				return errors.Wrapf(ErrBadIndex, "face %d: vertex %d of %d", i, idx,
					len(m.Vertices))
			}
		}
	}
	if len(m.TexFaces) != 0 && len(m.TexFaces) != len(m.Faces) {
		return errors.Errorf("%d texture faces for %d faces", len(m.TexFaces), len(m.Faces))
	}
	for i, f := range m.TexFaces {
		if f == Untextured {
			continue
		}
		for _, idx := range f {
			if idx < 0 || idx >= len(m.TexCoords) {
				return errors.Wrapf(ErrBadIndex, "texture face %d: coordinate %d of %d", i, idx,
					len(m.TexCoords))
			}
		}
	}
	return nil
}

// HasTexture checks if the i-th face has texture
// coordinates.
func (m *Mesh) HasTexture(i int) bool {
	return i < len(m.TexFaces) && m.TexFaces[i] != Untextured
}

// Triangle gets the i-th face as a model3d triangle.
func (m *Mesh) Triangle(i int) *model3d.Triangle {
	f := m.Faces[i]
	return &model3d.Triangle{m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]}
}

// Model converts the mesh into a model3d mesh.
//
// The mesh must be valid; see Validate.
func (m *Mesh) Model() *model3d.Mesh {
	triangles := make([]*model3d.Triangle, len(m.Faces))
	for i := range m.Faces {
		triangles[i] = m.Triangle(i)
	}
	return model3d.NewMeshTriangles(triangles)
}

// Write encodes the mesh as a VRML 2.0 file.
//
// If only some faces are textured, the untextured faces are
// written as a second Shape with its own copy of the
// vertices.
func Write(w io.Writer, m *Mesh) error {
	var textured, untextured []int
	for i := range m.Faces {
		if m.HasTexture(i) {
			textured = append(textured, i)
		} else {
			untextured = append(untextured, i)
		}
	}

	bw := bufio.NewWriter(w)
	bw.WriteString("#VRML V2.0 utf8\n")
	if len(textured) > 0 || len(untextured) == 0 {
		writeShape(bw, m, textured, true)
	}
	if len(untextured) > 0 {
		writeShape(bw, m, untextured, len(textured) == 0)
	}
	return bw.Flush()
}

func writeShape(w *bufio.Writer, m *Mesh, faces []int, appearance bool) {
	w.WriteString("\nShape {\n")
	if appearance && m.TextureURL != "" {
		w.WriteString("  appearance Appearance {\n    texture ImageTexture {\n")
		fmt.Fprintf(w, "      url %s\n", strconv.Quote(m.TextureURL))
		w.WriteString("    }\n  }\n")
	}
	w.WriteString("  geometry IndexedFaceSet {\n    coord Coordinate {\n      point [\n")
	for _, v := range m.Vertices {
		fmt.Fprintf(w, "        %s %s %s,\n", formatFloat(v.X), formatFloat(v.Y), formatFloat(v.Z))
	}
	w.WriteString("      ]\n    }\n    coordIndex [\n")
	writeFaces(w, m.Faces, faces)
	w.WriteString("    ]\n")
	if len(faces) > 0 && m.HasTexture(faces[0]) {
		w.WriteString("    texCoord TextureCoordinate {\n      point [\n")
		for _, t := range m.TexCoords {
			fmt.Fprintf(w, "        %s %s,\n", formatFloat(t.X), formatFloat(t.Y))
		}
		w.WriteString("      ]\n    }\n    texCoordIndex [\n")
		writeFaces(w, m.TexFaces, faces)
		w.WriteString("    ]\n")
	}
	w.WriteString("  }\n}\n")
}

// WriteFile encodes the mesh to a file on disk.
func WriteFile(path string, m *Mesh) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, m); err != nil {
		f.Close()
		return errors.Wrap(err, path)
	}
	return f.Close()
}

func writeFaces(w *bufio.Writer, faces [][3]int, indices []int) {
	for _, i := range indices {
		f := faces[i]
		fmt.Fprintf(w, "      %d, %d, %d, -1,\n", f[0], f[1], f[2])
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
