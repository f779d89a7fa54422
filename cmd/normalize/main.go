package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/signalsfoundry/astrometry-normalizer/core"
	"github.com/signalsfoundry/astrometry-normalizer/internal/config"
	"github.com/signalsfoundry/astrometry-normalizer/internal/export"
	"github.com/signalsfoundry/astrometry-normalizer/internal/logging"
	"github.com/signalsfoundry/astrometry-normalizer/internal/observability"
)

var errUsage = errors.New("usage")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "normalize: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	in         string
	out        string
	format     string
	delimiter  string
	sqlitePath string
	name       string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("normalize", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Path to a normalizer YAML config file")
	fs.StringVar(&opts.in, "in", "-", "Observation file to read, or - for stdin")
	fs.StringVar(&opts.out, "out", "-", "Destination for the canonical table, or - for stdout")
	fs.StringVar(&opts.format, "format", "csv", "Output format: csv or json")
	fs.StringVar(&opts.delimiter, "delimiter", "", "Input delimiter (auto, comma, tab, whitespace or a single character); overrides config")
	fs.StringVar(&opts.sqlitePath, "sqlite", "", "Also write the table to this SQLite database; overrides config")
	fs.StringVar(&opts.name, "name", "", "Dataset name recorded in SQLite (defaults to the input file name)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return options{}, errUsage
	}
	switch opts.format {
	case "csv", "json":
	default:
		fmt.Fprintf(stderr, "unknown -format %q\n", opts.format)
		return options{}, errUsage
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.delimiter != "" {
		cfg.Reader.Delimiter = opts.delimiter
	}
	if opts.sqlitePath != "" {
		cfg.Export.SQLitePath = opts.sqlitePath
	}
	readerOpts, err := cfg.ReaderOptions()
	if err != nil {
		return err
	}

	logCfg := cfg.LoggingConfig()
	logCfg.Output = stderr
	log := logging.New(logCfg)

	shutdownTracing, err := observability.InitTracing(ctx, cfg.TracingConfig(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	table, err := readInput(opts.in, stdin, readerOpts)
	if err != nil {
		return err
	}

	out, err := core.NewNormalizer(log).Normalize(ctx, table)
	if err != nil {
		return err
	}

	if err := writeOutput(opts.out, opts.format, stdout, out); err != nil {
		return err
	}

	if cfg.Export.SQLitePath == "" {
		return nil
	}
	return exportSQLite(ctx, cfg.Export.SQLitePath, datasetName(opts), opts.in, out, log)
}

func readInput(path string, stdin io.Reader, opts core.ReaderOptions) (*core.Table, error) {
	if path == "-" {
		return core.ReadTable(stdin, opts)
	}
	return core.ReadFile(path, opts)
}

func writeOutput(path, format string, stdout io.Writer, table *core.CanonicalTable) (err error) {
	w := stdout
	if path != "-" {
		f, cerr := os.Create(path)
		if cerr != nil {
			return fmt.Errorf("create output: %w", cerr)
		}
		defer func() {
			if cerr := f.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("close output: %w", cerr)
			}
		}()
		w = f
	}
	if format == "json" {
		return core.WriteJSON(w, table)
	}
	return core.WriteCSV(w, table)
}

func exportSQLite(ctx context.Context, path, name, source string, table *core.CanonicalTable, log logging.Logger) error {
	sink, err := export.OpenSQLite(path)
	if err != nil {
		return err
	}
	defer sink.Close()

	rec := export.DatasetRecord{
		ID:        uuid.NewString(),
		Name:      name,
		Source:    source,
		CreatedAt: time.Now(),
	}
	if err := sink.WriteDataset(ctx, rec, table); err != nil {
		return fmt.Errorf("sqlite export: %w", err)
	}
	log.Info(ctx, "exported dataset to sqlite",
		logging.String("path", path),
		logging.DatasetID(rec.ID),
		logging.Rows(table.Len()),
	)
	return nil
}

func datasetName(opts options) string {
	if opts.name != "" {
		return opts.name
	}
	if opts.in == "-" {
		return "stdin"
	}
	return strings.TrimSuffix(filepath.Base(opts.in), filepath.Ext(opts.in))
}
