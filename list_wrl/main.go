// Command list_wrl lists the WRL files of a folder tree
// with their texture maps.
//
// The output starts with a "%folder=<folder>" line, followed
// by one "<subpath> <wrl> <texture>" line per scan, where
// folder+subpath+name is the full path of a file.
package main

import (
	"flag"
	"io"
	"os"

	"github.com/facescan/facemesh/cmdutil"
	"github.com/facescan/facemesh/scans"
	"github.com/unixpickle/essentials"
)

func main() {
	cmdutil.Usage("<input_dir> [output_file | -]")
	flag.Parse()
	if len(flag.Args()) < 1 || len(flag.Args()) > 2 {
		flag.Usage()
	}
	folder := flag.Args()[0]
	output := "3dfiles.lst"
	if len(flag.Args()) == 2 {
		output = flag.Args()[1]
	}

	// Create the output first so that access errors show up
	// before the folder is scanned.
	var w io.Writer = os.Stdout
	if output != "-" {
		f, err := os.Create(output)
		essentials.Must(err)
		defer f.Close()
		w = f
	}

	entries, err := scans.ListWRL(folder)
	essentials.Must(err)
	essentials.Must(scans.WriteList(w, folder, entries))
}
