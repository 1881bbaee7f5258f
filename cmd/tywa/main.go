// Package main is the entry point for tywa.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"github.com/dshills/tywa/internal/app"
	"github.com/dshills/tywa/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, exit, code := parseFlags(args, os.Stdout, os.Stderr)
	if exit {
		return code
	}

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer application.Shutdown()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, relayedSignals...)
	defer signal.Stop(signals)

	go func() {
		for sig := range signals {
			application.Signal(sig)
		}
	}()

	if err := application.Run(context.Background()); err != nil {
		if errors.Is(err, app.ErrInterrupted) {
			fmt.Fprintln(os.Stderr, "Interrupted")
			return 1
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// parseFlags returns the options, or exit=true with the process exit code
// when the command line was fully handled (help, version, usage errors).
func parseFlags(args []string, stdout, stderr io.Writer) (opts app.Options, exit bool, code int) {
	fs := pflag.NewFlagSet("tywa", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.BoolVarP(&opts.Production, "production", "p", false, "Minify output; disables --watch")
	fs.BoolVarP(&opts.Watch, "watch", "w", false, "Rebuild on change and restart the built entrypoint")
	fs.StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file")
	fs.StringVar(&opts.ProjectRoot, "root", "", "Project directory (default: working directory)")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	showVersion := fs.BoolP("version", "V", false, "Show version information")
	showHelp := fs.BoolP("help", "h", false, "Show help message")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "tywa - compile TypeScript per file with esbuild and rewrite path aliases\n\n")
		fmt.Fprintf(stderr, "Usage: tywa [options]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  tywa                         Build once\n")
		fmt.Fprintf(stderr, "  tywa --production            Build minified\n")
		fmt.Fprintf(stderr, "  tywa --watch                 Build, run and restart on change\n")
		fmt.Fprintf(stderr, "  tywa --config tywa.toml      Use an explicit configuration file\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return opts, true, 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return opts, true, 2
	}

	if *showHelp {
		fs.Usage()
		return opts, true, 0
	}

	if *showVersion {
		fmt.Fprintf(stdout, "tywa %s\n", version)
		fmt.Fprintf(stdout, "Commit: %s\n", commit)
		fmt.Fprintf(stdout, "Built: %s\n", date)
		return opts, true, 0
	}

	if opts.LogLevel != "" && !logging.ValidLevel(opts.LogLevel) {
		fmt.Fprintf(stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		return opts, true, 1
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "Error: unexpected arguments: %v\n", fs.Args())
		return opts, true, 2
	}

	return opts, false, 0
}
