// Command jalc infers stack map frames for listing files and prints them as
// a table, a YAML report or a CBOR frame map.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/mattn/go-isatty"

	"github.com/PeyaPeyaPeyang/LangJAL-sub000/pkg/config"
	"github.com/PeyaPeyaPeyang/LangJAL-sub000/pkg/framewire"
	"github.com/PeyaPeyaPeyang/LangJAL-sub000/pkg/listing"
	"github.com/PeyaPeyaPeyang/LangJAL-sub000/pkg/report"
	"github.com/PeyaPeyaPeyang/LangJAL-sub000/verifier"
)

const (
	exitOK = iota
	exitFailure
	exitUsage
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type cli struct {
	configPath string
	format     string
	output     string
	logLevel   string
	color      string
	strict     bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var c cli
	fs := flag.NewFlagSet("jalc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&c.configPath, "config", "", "path to "+config.FileName+" (default: searched upwards from the working directory)")
	fs.StringVar(&c.format, "format", "table", "output format: table, yaml or cbor")
	fs.StringVar(&c.output, "o", "", "write output to a file instead of stdout")
	fs.StringVar(&c.logLevel, "log-level", "", "override the configured log level (error, warn, info, debug)")
	fs.StringVar(&c.color, "color", "auto", "colour table output: auto, always or never")
	fs.BoolVar(&c.strict, "strict", true, "stop at the first file that fails")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: jalc [flags] listing.yaml ...\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}
	switch c.format {
	case "table", "yaml", "cbor":
	default:
		fmt.Fprintf(stderr, "jalc: unknown format %q\n", c.format)
		return exitUsage
	}
	switch c.color {
	case "auto", "always", "never":
	default:
		fmt.Fprintf(stderr, "jalc: unknown color mode %q\n", c.color)
		return exitUsage
	}

	cfg, err := c.loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "jalc: %v\n", err)
		return exitFailure
	}
	opts := cfg.Options(verifier.DefaultOptions())
	opts.LogOutput = stderr
	if c.logLevel != "" {
		opts.LogLevel = c.logLevel
	}

	out := stdout
	if c.output != "" {
		f, err := os.Create(c.output)
		if err != nil {
			fmt.Fprintf(stderr, "jalc: %v\n", err)
			return exitFailure
		}
		defer f.Close()
		out = f
	}
	if c.format == "cbor" && isTerminal(out) {
		fmt.Fprintln(stderr, "jalc: refusing to write CBOR to a terminal; use -o")
		return exitUsage
	}

	var (
		results []*verifier.Result
		failed  []error
	)
	for _, path := range fs.Args() {
		rs, err := analyzeFile(ctx, path, opts)
		if err != nil {
			failed = append(failed, err)
			if c.strict {
				break
			}
			continue
		}
		results = append(results, rs...)
	}

	if err := c.write(out, results); err != nil {
		fmt.Fprintf(stderr, "jalc: %v\n", err)
		return exitFailure
	}
	if len(failed) > 0 {
		fmt.Fprint(stderr, report.FormatErrors(failed))
		return exitFailure
	}
	return exitOK
}

func (c *cli) loadConfig() (*config.Config, error) {
	if c.configPath != "" {
		return config.Load(c.configPath)
	}
	return config.FindAndLoad(".")
}

func analyzeFile(ctx context.Context, path string, opts verifier.Options) ([]*verifier.Result, error) {
	class, err := listing.LoadFile(path)
	if err != nil {
		return nil, err
	}
	opts.Hierarchy = listing.Hierarchy(opts.Hierarchy, class)
	return verifier.AnalyzeClass(ctx, class.Methods, opts)
}

func (c *cli) write(w io.Writer, results []*verifier.Result) error {
	switch c.format {
	case "yaml":
		return report.WriteYAML(w, results)
	case "cbor":
		tables := make([]*framewire.Table, 0, len(results))
		for _, r := range results {
			t, err := framewire.FromResult(r)
			if err != nil {
				return err
			}
			tables = append(tables, t)
		}
		data, err := framewire.MarshalClass(tables)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return report.WriteTable(w, results, report.TableOptions{Color: c.useColor(w)})
	}
}

func (c *cli) useColor(w io.Writer) bool {
	switch c.color {
	case "always":
		return true
	case "never":
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return isTerminal(w)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
