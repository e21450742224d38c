// Command register_all registers annotated 3D scans with
// the Morphable Model, running the external Register
// program once per scan.
//
// Every "*.wrl" file in <wrl_dir> with an equally named
// ".lnd" file in <lnd_dir> is registered; the results are
// written to <output_dir>.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/facescan/facemesh/cmdutil"
	"github.com/facescan/facemesh/scans"
	"github.com/unixpickle/essentials"
	"go.uber.org/zap"
)

func main() {
	var registrar scans.Registrar
	var symmetric bool
	var lndRef string
	var verbose bool

	flag.StringVar(&registrar.Program, "program", "Register", "command line of the Register program")
	flag.BoolVar(&symmetric, "symm", false, "use the symmetric face model")
	flag.StringVar(&lndRef, "lndref", "",
		"model landmark file (default "+scans.ModelLandmarks+", or "+
			scans.SymmetricModelLandmarks+" with -symm)")
	flag.IntVar(&registrar.Workers, "workers", runtime.NumCPU(), "number of scans to register at once")
	flag.BoolVar(&verbose, "verbose", false, "log Register calls")
	cmdutil.Usage("<wrl_dir> <lnd_dir> <output_dir>")
	flag.Parse()
	if len(flag.Args()) != 3 {
		flag.Usage()
	}

	log := cmdutil.NewLogger(verbose)
	defer log.Sync()
	ctx, cancel := cmdutil.Context()
	defer cancel()

	registrar.Args = scans.RegisterArgs(symmetric, lndRef)
	registrar.OutDir = flag.Args()[2]
	registrar.Logger = log

	pairs, err := scans.ListPairs(flag.Args()[0], flag.Args()[1])
	essentials.Must(err)
	results, err := registrar.RegisterAll(ctx, pairs)
	essentials.Must(err)

	var failed int
	for _, res := range results {
		if res.Err != nil {
			failed++
			if verbose {
				os.Stderr.Write(res.Output)
			}
		}
	}
	fmt.Printf("Processed %d scans, %d failed\n", len(results), failed)
	if failed > 0 {
		log.Error("some registrations failed", zap.Int("failed", failed))
		os.Exit(1)
	}
}
