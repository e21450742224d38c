// Command bnt_to_wrl converts Bosphorus ".bnt" range scans
// into textured WRL meshes.
//
// The input may be a single file or a folder, in which case
// every ".bnt" file below it is converted and the folder
// structure is mirrored in the output folder.
package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/facescan/facemesh/bnt"
	"github.com/facescan/facemesh/cmdutil"
	"github.com/facescan/facemesh/wrl"
	"github.com/pkg/errors"
	"github.com/unixpickle/essentials"
	"go.uber.org/zap"
)

func main() {
	var saveSTL bool
	var texture string
	var verbose bool

	flag.BoolVar(&saveSTL, "stl", false, "also save an STL mesh next to each WRL file")
	flag.StringVar(&texture, "texture", "", "texture url to use instead of the scan's image file")
	flag.BoolVar(&verbose, "verbose", false, "log every scan")
	cmdutil.Usage("<input.bnt | input_dir> <output.wrl | output_dir>")
	flag.Parse()
	if len(flag.Args()) != 2 {
		flag.Usage()
	}

	inPath := flag.Args()[0]
	outPath := flag.Args()[1]

	log := cmdutil.NewLogger(verbose)
	defer log.Sync()

	info, err := os.Stat(inPath)
	essentials.Must(err)
	if !info.IsDir() {
		essentials.Must(ConvertScan(log, inPath, outPath, texture, saveSTL))
		return
	}

	var failed int
	err = filepath.Walk(inPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(inPath, path)
		essentials.Must(err)
		target := filepath.Join(outPath, relPath)

		if info.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if filepath.Ext(path) != ".bnt" {
			return nil
		}
		target = target[:len(target)-len(filepath.Ext(target))] + ".wrl"
		if err := ConvertScan(log, path, target, texture, saveSTL); err != nil {
			log.Warn("conversion failed", zap.String("path", path), zap.Error(err))
			failed++
		}
		return nil
	})
	essentials.Must(err)
	if failed > 0 {
		essentials.Die(failed, "scans failed")
	}
}

// ConvertScan reads a range scan and writes it as WRL and,
// optionally, STL.
func ConvertScan(log *zap.Logger, inPath, outPath, texture string, saveSTL bool) error {
	log.Debug("converting", zap.String("path", inPath))

	scan, err := bnt.ReadFile(inPath)
	if err != nil {
		return err
	}
	mesh := scan.Mesh()
	if len(mesh.Faces) == 0 {
		return errors.New("scan has no faces")
	}
	if texture != "" {
		mesh.TextureURL = texture
	}
	if err := wrl.WriteFile(outPath, mesh); err != nil {
		return err
	}
	if saveSTL {
		stlPath := outPath[:len(outPath)-len(filepath.Ext(outPath))] + ".stl"
		if err := mesh.Model().SaveGroupedSTL(stlPath); err != nil {
			return errors.Wrap(err, "save stl")
		}
	}
	log.Info("converted", zap.String("path", inPath),
		zap.Int("points", scan.NumValid()), zap.Int("faces", len(mesh.Faces)))
	return nil
}
