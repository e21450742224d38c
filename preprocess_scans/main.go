// Command preprocess_scans moves the ".wrl" and ".jpg" files
// of a scan delivery into the working directory, renames
// them to "<STUDY>-<name>" and sorts them into
// "probably-faces" and "probably-ears" folders.
//
// To unpack only the needed files of a delivery, run:
//
//     unzip -Ppassword /path/to/\*.zip \*/\*/\*.wrl \*/\*/\*.jpg
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/facescan/facemesh/cmdutil"
	"github.com/facescan/facemesh/scans"
	"github.com/unixpickle/essentials"
)

func main() {
	var workDir string
	var verbose bool

	flag.StringVar(&workDir, "work-dir", ".", "folder to move the renamed files to")
	flag.BoolVar(&verbose, "verbose", false, "log every renamed file")
	cmdutil.Usage("[folder]")
	flag.Parse()
	if len(flag.Args()) > 1 {
		flag.Usage()
	}
	folder := "."
	if len(flag.Args()) == 1 {
		folder = flag.Args()[0]
	}

	log := cmdutil.NewLogger(verbose)
	defer log.Sync()
	ctx, cancel := cmdutil.Context()
	defer cancel()

	notFixed, err := scans.Preprocess(ctx, folder, workDir, log)
	essentials.Must(err)
	if len(notFixed) > 0 {
		fmt.Println("Failed to fix texture in:")
		for _, name := range notFixed {
			fmt.Println("  " + name)
		}
		os.Exit(1)
	}
}
