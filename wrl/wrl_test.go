package wrl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/model3d/model3d"
)

const scannerFile = `#VRML V2.0 utf8
DEF _CVSSP_object Transform {
  children [
    Shape {
      appearance Appearance {
        texture ImageTexture {
          url "textures\180914075154.bmp"
        }
      }
      geometry IndexedFaceSet {
        coord Coordinate {
          point [
            -1.5 0 2, 1.5 0 2,
            1.5 2 2,
            -1.5 2 2 # top left
          ]
        }
        coordIndex [
          0, 1, 2, 3, -1,
          0 2 1 -1
        ]
        texCoord TextureCoordinate {
          point [ 0 0, 1 0, 1 1, 0 1 ]
        }
        texCoordIndex [ 0 1 2 3 -1 0 2 1 -1 ]
      }
    }
  ]
}
`

func TestRead(t *testing.T) {
	m, err := Read(strings.NewReader(scannerFile))
	require.NoError(t, err)

	assert.Equal(t, `textures\180914075154.bmp`, m.TextureURL)
	require.Len(t, m.Vertices, 4)
	assert.Equal(t, model3d.Coord3D{X: 1.5, Y: 2, Z: 2}, m.Vertices[2])
	assert.Equal(t, [][3]int{{0, 1, 2}, {0, 2, 3}, {0, 2, 1}}, m.Faces)
	require.Len(t, m.TexCoords, 4)
	assert.Equal(t, model3d.Coord2D{X: 1, Y: 0}, m.TexCoords[1])
	assert.Equal(t, m.Faces, m.TexFaces)
	assert.True(t, m.HasTexture(2))

	mesh := m.Model()
	assert.Len(t, mesh.TriangleSlice(), 3)
}

func TestReadMultipleShapes(t *testing.T) {
	src := `#VRML V2.0 utf8
Shape { geometry IndexedFaceSet {
  coord Coordinate { point [ 0 0 0, 1 0 0, 0 1 0 ] }
  coordIndex [ 0 1 2 -1 ]
} }
Shape { geometry IndexedFaceSet {
  coord Coordinate { point [ 0 0 1, 1 0 1, 0 1 1 ] }
  coordIndex [ 2 1 0 ]
} }
`
	m, err := Read(strings.NewReader(src))
	require.NoError(t, err)
	assert.Len(t, m.Vertices, 6)
	assert.Equal(t, [][3]int{{0, 1, 2}, {5, 4, 3}}, m.Faces)
	assert.Nil(t, m.TexFaces)
	assert.False(t, m.HasTexture(0))
}

const mixedTextureFile = `#VRML V2.0 utf8
Shape {
  appearance Appearance { texture ImageTexture { url "face.jpg" } }
  geometry IndexedFaceSet {
    coord Coordinate { point [ 0 0 0, 1 0 0, 0 1 0 ] }
    coordIndex [ 0 1 2 -1 ]
    texCoord TextureCoordinate { point [ 0 0, 1 0, 0 1 ] }
    texCoordIndex [ 0 1 2 -1 ]
  }
}
Shape {
  geometry IndexedFaceSet {
    coord Coordinate { point [ 0 0 1, 1 0 1, 0 1 1, 1 1 1 ] }
    coordIndex [ 0 1 3 2 -1 ]
  }
}
`

func TestReadMixedTexture(t *testing.T) {
	m, err := Read(strings.NewReader(mixedTextureFile))
	require.NoError(t, err)
	assert.Equal(t, [][3]int{{0, 1, 2}, {3, 4, 6}, {3, 6, 5}}, m.Faces)
	assert.Equal(t, [][3]int{{0, 1, 2}, Untextured, Untextured}, m.TexFaces)
	assert.True(t, m.HasTexture(0))
	assert.False(t, m.HasTexture(1))
	assert.False(t, m.HasTexture(2))
	assert.Len(t, m.Model().TriangleSlice(), 3)

	// The untextured shape may also come first.
	swapped := "#VRML V2.0 utf8\n" + mixedTextureFile[strings.Index(mixedTextureFile, "Shape {\n  geometry"):] +
		mixedTextureFile[len("#VRML V2.0 utf8\n"):strings.Index(mixedTextureFile, "Shape {\n  geometry")]
	m, err = Read(strings.NewReader(swapped))
	require.NoError(t, err)
	assert.Equal(t, [][3]int{Untextured, Untextured, {0, 1, 2}}, m.TexFaces)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, m))
	m1, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, m1.Faces, 3)
	assert.Equal(t, "face.jpg", m1.TextureURL)
	textured := 0
	for i := range m1.Faces {
		if m1.HasTexture(i) {
			textured++
			assert.Equal(t, m.Triangle(2), m1.Triangle(i))
		}
	}
	assert.Equal(t, 1, textured)
}

func TestReadErrors(t *testing.T) {
	cases := map[string]string{
		"bad index":   "Coordinate { point [ 0 0 0 ] } coordIndex [ 0 1 2 -1 ]",
		"bad number":  "Coordinate { point [ 0 0 x ] }",
		"short point": "Coordinate { point [ 0 0 ] }",
		"truncated":   "Coordinate { point [ 0 0 0",
		"string":      `url "abc`,
		"tex count":   "Coordinate { point [ 0 0 0 ] } coordIndex [ 0 0 0 -1 ] texCoordIndex [ ]",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Read(strings.NewReader(src))
			assert.Error(t, err)
		})
	}

	_, err := Read(strings.NewReader(cases["bad index"]))
	assert.Equal(t, ErrBadIndex, errors.Cause(err))

	_, err = Read(strings.NewReader("Coordinate {\n point [ 0 0 0\n { ]\n}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3: unexpected \"{\" in number list")
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	_, ok := errors.Cause(err).(stackTracer)
	assert.True(t, ok, "parse errors should carry a stack trace")
}

func TestWriteRoundTrip(t *testing.T) {
	m, err := Read(strings.NewReader(scannerFile))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, m))
	m1, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, m, m1)
}
