// Command make_pairs builds side-by-side training images
// from the photos of a face database and their normal
// maps, as produced by wrl_to_normals.
package main

import (
	"flag"
	"os"
	"runtime"

	"github.com/facescan/facemesh/cmdutil"
	"github.com/facescan/facemesh/normalmap"
	"github.com/facescan/facemesh/pairs"
	"github.com/unixpickle/essentials"
	"go.uber.org/zap"
)

func main() {
	var maker pairs.Maker
	var verbose bool

	flag.IntVar(&maker.MinWidth, "min-width", pairs.DefaultMinWidth,
		"skip normal maps whose face is at most this wide")
	flag.StringVar(&maker.SubjectPattern, "subjects", normalmap.DefaultSubjectPattern,
		"glob pattern for subject folders")
	flag.IntVar(&maker.Workers, "workers", runtime.NumCPU(), "number of pairs to make at once")
	flag.BoolVar(&verbose, "verbose", false, "log every pair")
	cmdutil.Usage("<photo_dir> <normal_dir> <target_dir>")
	flag.Parse()
	if len(flag.Args()) != 3 {
		flag.Usage()
	}

	log := cmdutil.NewLogger(verbose)
	defer log.Sync()
	maker.Logger = log

	ctx, cancel := cmdutil.Context()
	defer cancel()
	stats, err := maker.MakePairs(ctx, flag.Args()[0], flag.Args()[1], flag.Args()[2])
	essentials.Must(err)
	if stats.Failed > 0 {
		log.Error("some pairs failed", zap.Int("failed", stats.Failed))
		os.Exit(1)
	}
}
