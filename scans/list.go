// Package scans manages folders of 3D face scans: listing
// them, sorting new deliveries, counting annotations and
// running batch registration.
package scans

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/facescan/facemesh/wrl"
	"github.com/pkg/errors"
)

// An Entry is a scan with an existing texture.
type Entry struct {
	// SubPath is the scan's folder relative to the listed
	// folder, with leading and trailing separators.
	SubPath string

	WRL     string
	Texture string
}

// ListWRL finds every ".wrl" file below folder whose
// declared texture is a file in the same folder.
func ListWRL(folder string) ([]Entry, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, errors.Wrap(err, "list wrl")
	} else if !info.IsDir() {
		return nil, errors.Errorf("list wrl: %s is not a folder", folder)
	}
	sep := string(filepath.Separator)

	var entries []Entry
	err = filepath.Walk(folder, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".wrl") {
			return nil
		}
		texture := wrl.FindTexture(path, wrl.DefaultHeaderLines)
		if texture == "" {
			return nil
		}
		dir := filepath.Dir(path)
		if st, err := os.Stat(filepath.Join(dir, texture)); err != nil || st.IsDir() ||
			filepath.Base(texture) != texture {
			return nil
		}
		rel, err := filepath.Rel(folder, dir)
		if err != nil {
			return err
		}
		subPath := sep
		if rel != "." {
			subPath = sep + rel + sep
		}
		entries = append(entries, Entry{
			SubPath: subPath,
			WRL:     info.Name(),
			Texture: texture,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list wrl")
	}
	return entries, nil
}

// WriteList writes a scan list: a "%folder=" line followed
// by one "<subpath> <wrl> <texture>" line per entry. The
// full path of a file is folder+subpath+name.
func WriteList(w io.Writer, folder string, entries []Entry) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%%folder=%s\n", strings.TrimSuffix(folder, string(filepath.Separator)))
	for _, e := range entries {
		fmt.Fprintf(bw, "%s %s %s\n", e.SubPath, e.WRL, e.Texture)
	}
	return bw.Flush()
}
