package wrl

import (
	"bufio"
	"bytes"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// DefaultHeaderLines is the number of lines searched for a
// texture declaration. Scanners put it before the geometry.
const DefaultHeaderLines = 50

var (
	ErrNoURL           = errors.New("no texture url declaration")
	ErrTextureNotFound = errors.New("no texture file found")
)

var (
	textureExpr = regexp.MustCompile(`(?:url|filename)\s*"([^"]+\.(?:jpg|bmp|png))"`)
	urlExpr     = regexp.MustCompile(`^(.*url\s+\[?\s*)"([^"]*)"(.*?)(\r?\n?)$`)
	bareExpr    = regexp.MustCompile(`^(\s*)(\S+\.(?:bmp|jpg))(\s*)$`)
)

// FindTexture returns the texture file declared within the
// first maxLines lines of a VRML file, or "" if there is
// none or the file cannot be read.
func FindTexture(path string, maxLines int) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for i := 0; i < maxLines && scanner.Scan(); i++ {
		if m := textureExpr.FindStringSubmatch(scanner.Text()); m != nil {
			return m[1]
		}
	}
	return ""
}

// ResolveTexture finds the best existing texture file for a
// VRML file named base (without extension) in dir, given the
// texture it declares.
//
// JPEG is preferred over PNG, and the declared name over the
// VRML file's own name:
//
//     <declared>.jpg, <base>.jpg, <declared>.png, <base>.png
//
// Each is looked up in dir and then in the declared
// sub-folder. The result is relative to dir and uses forward
// slashes.
func ResolveTexture(dir, base, declared string) (string, error) {
	declared = strings.ReplaceAll(declared, `\`, "/")
	declBase := strings.TrimSuffix(declared, path.Ext(declared))
	declDir, declName := path.Split(declBase)

	folders := []string{"", strings.TrimSuffix(declDir, "/")}
	names := []string{declName + ".jpg", base + ".jpg", declName + ".png", base + ".png"}
	for _, name := range names {
		if name == ".jpg" || name == ".png" {
			continue
		}
		for _, folder := range folders {
			candidate := path.Join(folder, name)
			if info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(candidate))); err == nil &&
				!info.IsDir() {
				return candidate, nil
			}
		}
	}
	return "", ErrTextureNotFound
}

// FixTextureURL rewrites the texture declaration of a VRML
// file to point at its best existing texture (see
// ResolveTexture).
//
// The original file is kept with a ".bkp" suffix. A file
// that already refers to the right texture is not touched.
func FixTextureURL(filename string) (changed bool, err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "fix texture url: "+filename)
		}
	}()

	data, err := os.ReadFile(filename)
	if err != nil {
		return false, err
	}
	dir, file := filepath.Split(filename)
	base := strings.TrimSuffix(file, filepath.Ext(file))

	lines := bytes.SplitAfter(data, []byte("\n"))
	for i := 0; i < len(lines) && i < DefaultHeaderLines; i++ {
		line := string(lines[i])
		var prefix, declared, suffix, ending string
		if m := urlExpr.FindStringSubmatch(line); m != nil {
			prefix, declared, suffix, ending = m[1], m[2], m[3], m[4]
		} else if m := bareExpr.FindStringSubmatch(line); m != nil {
			prefix, declared, ending = m[1]+"url ", m[2], lineEnding(line)
		} else {
			continue
		}
		texture, err := ResolveTexture(dir, base, declared)
		if err != nil {
			return false, err
		}
		if texture == declared {
			return false, nil
		}
		lines[i] = []byte(prefix + `"` + texture + `"` + suffix + ending)
		return true, replaceFile(filename, bytes.Join(lines, nil))
	}
	return false, ErrNoURL
}

func replaceFile(filename string, data []byte) error {
	tmpFile := filename + ".tmp"
	bkpFile := filename + ".bkp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(filename, bkpFile); err != nil {
		os.Remove(tmpFile)
		return err
	}
	return os.Rename(tmpFile, filename)
}

func lineEnding(line string) string {
	if strings.HasSuffix(line, "\r\n") {
		return "\r\n"
	} else if strings.HasSuffix(line, "\n") {
		return "\n"
	}
	return ""
}
