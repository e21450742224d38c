// Command count_annotations prints a CSV report of the
// landmark annotations made so far, per image and per
// annotator.
package main

import (
	"flag"
	"os"

	"github.com/facescan/facemesh/cmdutil"
	"github.com/facescan/facemesh/scans"
	"github.com/unixpickle/essentials"
	"go.uber.org/zap"
)

func main() {
	var images string
	var users string

	flag.StringVar(&images, "images", "../images/*.wrl", "glob pattern for the annotated images")
	flag.StringVar(&users, "users", "./manual-*", "glob pattern for the annotator folders")
	cmdutil.Usage("")
	flag.Parse()
	if len(flag.Args()) != 0 {
		flag.Usage()
	}

	log := cmdutil.NewLogger(false)
	defer log.Sync()

	report, err := scans.CountAnnotations(images, users)
	essentials.Must(err)
	for _, user := range report.Users {
		log.Info("annotator", zap.String("user", user), zap.Int("files", report.UserFiles[user]))
	}
	essentials.Must(report.WriteCSV(os.Stdout))
}
