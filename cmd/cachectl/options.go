package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

type options struct {
	ConfigPath   string
	Identifier   string
	StrictConfig bool
	Verbose      bool
	Command      string
}

var errNoCommand = errors.New("cachectl: expected a command: clear, prune")

func parseOptions(args []string) (options, error) {
	const defaultConfig = "cache.toml"

	opts := options{
		ConfigPath: defaultConfig,
	}

	fs := flag.NewFlagSet("cachectl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&opts.ConfigPath, "config", opts.ConfigPath, "Path to cache configuration file")
	fs.StringVar(&opts.ConfigPath, "c", opts.ConfigPath, "Path to cache configuration file")
	fs.StringVar(&opts.Identifier, "id", "", "Restrict clear to a single cache identifier")
	fs.BoolVar(&opts.StrictConfig, "strict-config", false, "Treat configuration warnings as errors")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.Verbose, "v", false, "Enable verbose logging")

	if err := fs.Parse(args); err != nil {
		return options{}, fmt.Errorf("%w\n\n%s", err, usage(fs))
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return options{}, fmt.Errorf("%w\n\n%s", errNoCommand, usage(fs))
	}
	if len(rest) > 1 {
		return options{}, fmt.Errorf("cachectl: unexpected arguments after command: %s\n\n%s", strings.Join(rest[1:], " "), usage(fs))
	}

	switch rest[0] {
	case "clear", "prune":
		opts.Command = rest[0]
	default:
		return options{}, fmt.Errorf("cachectl: unknown command %q\n\n%s", rest[0], usage(fs))
	}

	return opts, nil
}

func usage(fs *flag.FlagSet) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Usage: %s [flags] <clear|prune>\n\n", fs.Name())
	buf.WriteString("Commands:\n")
	buf.WriteString("  clear   Remove all cache entries, or one entry with -id\n")
	buf.WriteString("  prune   Delete expired rows (table provider only)\n\n")
	buf.WriteString("Flags:\n")
	out := fs.Output()
	fs.SetOutput(&buf)
	fs.PrintDefaults()
	fs.SetOutput(out)
	return buf.String()
}
