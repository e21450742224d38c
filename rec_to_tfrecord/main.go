// Command rec_to_tfrecord converts image datasets into a
// TFRecord file of tf.train.Example records.
//
// With -format mxnet, the input is the path prefix of an
// InsightFace dataset, e.g. "faces_emore/train" for
// train.idx and train.rec. With -format folders, the input
// is a folder with one sub-folder of JPEG images per class.
package main

import (
	"bufio"
	"flag"
	"os"

	"github.com/facescan/facemesh/cmdutil"
	"github.com/facescan/facemesh/recordio"
	"github.com/facescan/facemesh/tfrecord"
	"github.com/unixpickle/essentials"
	"go.uber.org/zap"
)

func main() {
	var format string
	var verbose bool

	flag.StringVar(&format, "format", "mxnet", "input format: mxnet or folders")
	flag.BoolVar(&verbose, "verbose", false, "log every class")
	cmdutil.Usage("<input> <output.tfrecord>")
	flag.Parse()
	if len(flag.Args()) != 2 {
		flag.Usage()
	}

	input := flag.Args()[0]
	output := flag.Args()[1]

	log := cmdutil.NewLogger(verbose)
	defer log.Sync()
	ctx, cancel := cmdutil.Context()
	defer cancel()

	f, err := os.Create(output)
	essentials.Must(err)
	buf := bufio.NewWriter(f)
	w := tfrecord.NewWriter(buf)

	var count int
	switch format {
	case "mxnet":
		ix, err := recordio.OpenIndexed(input+".idx", input+".rec")
		essentials.Must(err)
		count, err = tfrecord.FromMXNet(ctx, ix, w, log)
		ix.Close()
		essentials.Must(err)
	case "folders":
		count, err = tfrecord.FromImageFolders(ctx, input, w, log)
		essentials.Must(err)
	default:
		essentials.Die("unknown format:", format)
	}

	essentials.Must(buf.Flush())
	essentials.Must(f.Close())
	log.Info("wrote records", zap.Int("count", count), zap.String("path", output))
}
