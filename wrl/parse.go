package wrl

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/unixpickle/model3d/model3d"
)

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenString
	tokenOpenBracket
	tokenCloseBracket
	tokenOpenBrace
	tokenCloseBrace
)

type token struct {
	kind tokenKind
	text string
	line int
}

// tokenizer splits VRML text into words, strings and
// brackets. Commas count as whitespace and '#' starts a
// comment outside of strings.
type tokenizer struct {
	r    *bufio.Reader
	line int
	peek *token
}

func newTokenizer(r io.Reader) *tokenizer {
	return &tokenizer{r: bufio.NewReader(r), line: 1}
}

func (t *tokenizer) Peek() (*token, error) {
	if t.peek == nil {
		tok, err := t.read()
		if err != nil {
			return nil, err
		}
		t.peek = tok
	}
	return t.peek, nil
}

func (t *tokenizer) Next() (*token, error) {
	tok, err := t.Peek()
	t.peek = nil
	return tok, err
}

func (t *tokenizer) read() (*token, error) {
	for {
		c, _, err := t.r.ReadRune()
		if err != nil {
			return nil, err
		}
		switch {
		case c == '\n':
			t.line++
		case c == ',' || unicode.IsSpace(c):
		case c == '#':
			if _, err := t.r.ReadString('\n'); err != nil {
				return nil, err
			}
			t.line++
		case c == '[':
			return &token{kind: tokenOpenBracket, text: "[", line: t.line}, nil
		case c == ']':
			return &token{kind: tokenCloseBracket, text: "]", line: t.line}, nil
		case c == '{':
			return &token{kind: tokenOpenBrace, text: "{", line: t.line}, nil
		case c == '}':
			return &token{kind: tokenCloseBrace, text: "}", line: t.line}, nil
		case c == '"':
			return t.readString()
		default:
			t.r.UnreadRune()
			return t.readWord()
		}
	}
}

func (t *tokenizer) readString() (*token, error) {
	var sb strings.Builder
	line := t.line
	for {
		c, _, err := t.r.ReadRune()
		if err == io.EOF {
			return nil, errors.Errorf("line %d: unterminated string", line)
		} else if err != nil {
			return nil, err
		}
		if c == '\\' {
			// Only \" and \\ are escapes; scanners write
			// Windows paths with bare backslashes.
			next, _, err := t.r.ReadRune()
			if err != nil {
				return nil, errors.Errorf("line %d: unterminated string", line)
			}
			if next == '"' || next == '\\' {
				c = next
			} else {
				t.r.UnreadRune()
			}
		} else if c == '"' {
			return &token{kind: tokenString, text: sb.String(), line: line}, nil
		}
		if c == '\n' {
			t.line++
		}
		sb.WriteRune(c)
	}
}

func (t *tokenizer) readWord() (*token, error) {
	var sb strings.Builder
	for {
		c, _, err := t.r.ReadRune()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		if unicode.IsSpace(c) || strings.ContainsRune(",#[]{}\"", c) {
			t.r.UnreadRune()
			break
		}
		sb.WriteRune(c)
	}
	return &token{kind: tokenWord, text: sb.String(), line: t.line}, nil
}

type parser struct {
	tokens *tokenizer
	mesh   *Mesh

	// lastNode is the most recent node type name, used to
	// tell 3D coordinate points from 2D texture points.
	lastNode string

	vertexBase int
	texBase    int

	// The current IndexedFaceSet starts at these face and
	// texture face indices.
	shapeFaces    int
	shapeTexFaces int
	shapeTextured bool
	textured      bool
}

func (p *parser) parse() error {
	for {
		tok, err := p.tokens.Next()
		if err == io.EOF {
			return p.endShapes()
		} else if err != nil {
			return err
		}
		if tok.kind != tokenWord {
			continue
		}
		switch tok.text {
		case "IndexedFaceSet":
			if err := p.endShape(); err != nil {
				return err
			}
		case "Coordinate", "TextureCoordinate", "Normal", "Color":
			p.lastNode = tok.text
		case "point":
			if err := p.parsePoints(); err != nil {
				return err
			}
		case "coordIndex":
			polys, err := p.parseIndices()
			if err != nil {
				return err
			}
			p.addFaces(polys)
		case "texCoordIndex":
			polys, err := p.parseIndices()
			if err != nil {
				return err
			}
			p.addTexFaces(polys)
			p.shapeTextured = true
			p.textured = true
		case "url":
			if err := p.parseURL(); err != nil {
				return err
			}
		}
	}
}

// endShape pads the texture faces of an untextured face
// set, so that TexFaces stays parallel to Faces.
func (p *parser) endShape() error {
	numFaces := len(p.mesh.Faces) - p.shapeFaces
	if p.shapeTextured {
		numTex := len(p.mesh.TexFaces) - p.shapeTexFaces
		if numTex != numFaces {
			return errors.Errorf("face set has %d texture faces for %d faces", numTex, numFaces)
		}
	} else {
		for i := 0; i < numFaces; i++ {
			p.mesh.TexFaces = append(p.mesh.TexFaces, Untextured)
		}
	}
	p.shapeFaces = len(p.mesh.Faces)
	p.shapeTexFaces = len(p.mesh.TexFaces)
	p.shapeTextured = false
	return nil
}

func (p *parser) endShapes() error {
	if err := p.endShape(); err != nil {
		return err
	}
	if !p.textured {
		p.mesh.TexFaces = nil
	}
	return nil
}

func (p *parser) parseNumbers() ([]float64, error) {
	if err := p.expect(tokenOpenBracket); err != nil {
		return nil, err
	}
	var res []float64
	for {
		tok, err := p.tokens.Next()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		if tok.kind == tokenCloseBracket {
			return res, nil
		} else if tok.kind != tokenWord {
			return nil, errors.Errorf("line %d: unexpected %q in number list", tok.line, tok.text)
		}
		num, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", tok.line)
		}
		res = append(res, num)
	}
}

func (p *parser) parsePoints() error {
	nums, err := p.parseNumbers()
	if err != nil {
		return errors.Wrap(err, "point")
	}
	switch p.lastNode {
	case "TextureCoordinate":
		if len(nums)%2 != 0 {
			return errors.Errorf("texture point list has %d values", len(nums))
		}
		p.texBase = len(p.mesh.TexCoords)
		for i := 0; i < len(nums); i += 2 {
			p.mesh.TexCoords = append(p.mesh.TexCoords, model3d.Coord2D{X: nums[i], Y: nums[i+1]})
		}
	case "Coordinate":
		if len(nums)%3 != 0 {
			return errors.Errorf("coordinate point list has %d values", len(nums))
		}
		p.vertexBase = len(p.mesh.Vertices)
		for i := 0; i < len(nums); i += 3 {
			p.mesh.Vertices = append(p.mesh.Vertices, model3d.Coord3D{
				X: nums[i],
				Y: nums[i+1],
				Z: nums[i+2],
			})
		}
	}
	return nil
}

// parseIndices reads an index list, split into polygons at
// every -1. A trailing polygon without -1 is kept.
func (p *parser) parseIndices() ([][]int, error) {
	nums, err := p.parseNumbers()
	if err != nil {
		return nil, errors.Wrap(err, "index list")
	}
	var polys [][]int
	var cur []int
	for _, n := range nums {
		if n != float64(int(n)) {
			return nil, errors.Errorf("non-integer index %v", n)
		}
		if n < 0 {
			if len(cur) > 0 {
				polys = append(polys, cur)
			}
			cur = nil
			continue
		}
		cur = append(cur, int(n))
	}
	if len(cur) > 0 {
		polys = append(polys, cur)
	}
	return polys, nil
}

func (p *parser) addFaces(polys [][]int) {
	for _, tri := range triangulate(polys) {
		for i := range tri {
			tri[i] += p.vertexBase
		}
		p.mesh.Faces = append(p.mesh.Faces, tri)
	}
}

func (p *parser) addTexFaces(polys [][]int) {
	for _, tri := range triangulate(polys) {
		for i := range tri {
			tri[i] += p.texBase
		}
		p.mesh.TexFaces = append(p.mesh.TexFaces, tri)
	}
}

func (p *parser) parseURL() error {
	tok, err := p.tokens.Next()
	if err != nil {
		return unexpectedEOF(err)
	}
	if tok.kind == tokenOpenBracket {
		for {
			tok, err = p.tokens.Next()
			if err != nil {
				return unexpectedEOF(err)
			}
			if tok.kind == tokenCloseBracket {
				return nil
			}
			p.setURL(tok)
		}
	}
	p.setURL(tok)
	return nil
}

func (p *parser) setURL(tok *token) {
	if tok.kind == tokenString && p.mesh.TextureURL == "" {
		p.mesh.TextureURL = tok.text
	}
}

func (p *parser) expect(kind tokenKind) error {
	tok, err := p.tokens.Next()
	if err != nil {
		return unexpectedEOF(err)
	}
	if tok.kind != kind {
		return errors.Errorf("line %d: unexpected %q", tok.line, tok.text)
	}
	return nil
}

func triangulate(polys [][]int) [][3]int {
	var res [][3]int
	for _, poly := range polys {
		for i := 2; i < len(poly); i++ {
			res = append(res, [3]int{poly[0], poly[i-1], poly[i]})
		}
	}
	return res
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
