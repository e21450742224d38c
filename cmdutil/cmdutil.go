// Package cmdutil holds the setup shared by the commands.
package cmdutil

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/unixpickle/essentials"
	"go.uber.org/zap"
)

// Usage sets flag.Usage to print the command's positional
// arguments and flags, and exit.
func Usage(args string) {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage:", os.Args[0], "[flags]", args)
		flag.PrintDefaults()
		os.Exit(1)
	}
}

// NewLogger creates a console logger on stderr. Debug
// messages are only shown if verbose is set.
func NewLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.DisableStacktrace = !verbose
	log, err := cfg.Build()
	essentials.Must(err)
	return log
}

// Context creates a context that is canceled on interrupt.
func Context() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
