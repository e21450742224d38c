// Command wrl_to_normals renders the WRL scans of a face
// database into x, y and z normal maps, plus color and
// grey previews.
//
// Scans are read from <source_dir>/<subject>/*.wrl and
// written to <target_dir>/normal_*/<subject>/*.png. If the
// source is a single WRL file, it is rendered on its own.
package main

import (
	"flag"
	"os"
	"runtime"
	"strings"

	"github.com/facescan/facemesh/cmdutil"
	"github.com/facescan/facemesh/normalmap"
	"github.com/unixpickle/essentials"
	"go.uber.org/zap"
)

func main() {
	var converter normalmap.Converter
	var verbose bool

	opts := normalmap.DefaultOptions()
	flag.IntVar(&opts.Size, "size", opts.Size, "side length of the output images")
	flag.IntVar(&opts.Margin, "margin", opts.Margin, "empty pixels around the face")
	flag.BoolVar(&opts.FillHoles, "fill-holes", opts.FillHoles, "fill isolated empty pixels")
	flag.StringVar(&converter.SubjectPattern, "subjects", normalmap.DefaultSubjectPattern,
		"glob pattern for subject folders")
	flag.IntVar(&converter.Workers, "workers", runtime.NumCPU(), "number of scans to render at once")
	flag.BoolVar(&verbose, "verbose", false, "log every scan")
	cmdutil.Usage("<source_dir | file.wrl> <target_dir>")
	flag.Parse()
	if len(flag.Args()) != 2 {
		flag.Usage()
	}
	if opts.Size <= 2*opts.Margin {
		essentials.Die("size must be larger than twice the margin")
	}

	sourceDir := flag.Args()[0]
	targetDir := flag.Args()[1]

	log := cmdutil.NewLogger(verbose)
	defer log.Sync()
	converter.Options = opts
	converter.Logger = log

	if strings.HasSuffix(strings.ToLower(sourceDir), ".wrl") {
		essentials.Must(converter.ConvertFile(sourceDir, targetDir))
		return
	}

	ctx, cancel := cmdutil.Context()
	defer cancel()
	stats, err := converter.Convert(ctx, sourceDir, targetDir)
	log.Info("finished", zap.Int("converted", stats.Converted), zap.Int("failed", stats.Failed))
	essentials.Must(err)
	if stats.Failed > 0 {
		os.Exit(1)
	}
}
