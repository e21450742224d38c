// Command fix_wrl points the texture url of every WRL file
// in a folder tree at the texture file that actually exists
// next to it. Changed files are backed up with a ".bkp"
// suffix.
package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/facescan/facemesh/cmdutil"
	"github.com/facescan/facemesh/wrl"
	"github.com/unixpickle/essentials"
	"go.uber.org/zap"
)

func main() {
	var verbose bool
	flag.BoolVar(&verbose, "verbose", false, "log unchanged files")
	cmdutil.Usage("[folder]")
	flag.Parse()
	if len(flag.Args()) > 1 {
		flag.Usage()
	}
	folder := "."
	if len(flag.Args()) == 1 {
		folder = flag.Args()[0]
	}
	if info, err := os.Stat(folder); err != nil || !info.IsDir() {
		essentials.Die("not a folder:", folder)
	}

	log := cmdutil.NewLogger(verbose)
	defer log.Sync()

	var fixed, failed int
	err := filepath.Walk(folder, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".wrl" {
			return nil
		}
		changed, err := wrl.FixTextureURL(path)
		if err != nil {
			log.Warn("failed", zap.String("path", path), zap.Error(err))
			failed++
		} else if changed {
			log.Info("fixed", zap.String("path", path))
			fixed++
		} else {
			log.Debug("unchanged", zap.String("path", path))
		}
		return nil
	})
	essentials.Must(err)
	log.Info("finished", zap.Int("fixed", fixed), zap.Int("failed", failed))
	if failed > 0 {
		os.Exit(1)
	}
}
