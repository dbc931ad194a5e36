// Package main is the entry point for the pdfdesk kernel.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/pdfdesk/internal/app"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// cliOptions are the parsed command-line flags.
type cliOptions struct {
	app          app.Options
	showVersion  bool
	listFeatures bool
}

func run(args []string, stdout, stderr io.Writer) int {
	cli, err := parseFlags(args, stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	if cli.showVersion {
		fmt.Fprintf(stdout, "pdfdesk %s\n", version)
		fmt.Fprintf(stdout, "Commit: %s\n", commit)
		fmt.Fprintf(stdout, "Built: %s\n", date)
		return 0
	}

	application, err := app.New(cli.app)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	if cli.listFeatures {
		defer func() { _ = application.Shutdown(context.Background()) }()
		return listFeatures(application, stdout, stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// listFeatures prints the resolved install order.
func listFeatures(application *app.Application, stdout, stderr io.Writer) int {
	order, err := application.InstallOrder()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	for i, n := range order {
		f, _ := application.Runner().Feature(n)
		deps := ""
		if d := f.Dependencies(); len(d) > 0 {
			deps = fmt.Sprintf(" (requires %v)", d)
		}
		fmt.Fprintf(stdout, "%2d. %s %s%s\n", i+1, n, f.Version(), deps)
	}
	for _, n := range application.Skipped() {
		fmt.Fprintf(stdout, "    %s (disabled)\n", n)
	}
	return 0
}

func parseFlags(args []string, stderr io.Writer) (cliOptions, error) {
	var cli cliOptions
	fs := flag.NewFlagSet("pdfdesk", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cli.app.ConfigPath, "config", "", "Path to configuration file (TOML or YAML)")
	fs.StringVar(&cli.app.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	fs.StringVar(&cli.app.ScriptDir, "scripts", "", "Directory of Lua features (overrides features.script_dir)")
	fs.StringVar(&cli.app.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.BoolVar(&cli.showVersion, "version", false, "Show version information")
	fs.BoolVar(&cli.showVersion, "v", false, "Show version information (shorthand)")
	fs.BoolVar(&cli.listFeatures, "list-features", false, "Print the feature install order and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "pdfdesk - feature kernel for the PDF desktop app\n\n")
		fmt.Fprintf(stderr, "Usage: pdfdesk [options]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  pdfdesk -config pdfdesk.toml            Run until interrupted\n")
		fmt.Fprintf(stderr, "  pdfdesk -scripts ./features -list-features\n")
	}

	if err := fs.Parse(args); err != nil {
		return cli, err
	}

	switch cli.app.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", cli.app.LogLevel)
		return cli, fmt.Errorf("invalid log level %q", cli.app.LogLevel)
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "Error: unexpected arguments %v\n", fs.Args())
		return cli, fmt.Errorf("unexpected arguments")
	}
	return cli, nil
}
