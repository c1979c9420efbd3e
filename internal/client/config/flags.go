package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/fortress/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-f string   path to the database file (default from Config)
//	-t int      request timeout in seconds (default from Config)
//
// os.Args is filtered down to the flags handled here so the subcommand
// arguments pass through untouched.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-f", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabasePath, "f", cfg.DatabasePath, "path to the database file")
	timeoutSeconds := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeoutSeconds) * time.Second
}
