// argstates infers the values passed to the parameters of target functions
// and writes them as a per-function, per-parameter catalogue.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/argstates/internal/cache"
	"github.com/phobologic/argstates/internal/discover"
	"github.com/phobologic/argstates/internal/lang"
	"github.com/phobologic/argstates/internal/logging"
	"github.com/phobologic/argstates/internal/pipeline"
	"github.com/phobologic/argstates/internal/report"
	"github.com/phobologic/argstates/internal/targets"
)

var version = "dev"

const defaultMaxFileSize = 1_000_000 // 1 MB

// errNoTargets is returned when neither a names file nor --name is given.
var errNoTargets = errors.New("no target names: use --names-file or --name")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := runContext(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	return runContext(context.Background(), args, stdout, stderr)
}

func runContext(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

type options struct {
	namesFile   string
	names       []string
	langs       []string
	format      string
	output      string
	jobs        int
	maxFileSize int64
	maxDepth    int
	cacheDir    string
	lenient     bool
	logLevel    string
	showVersion bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "argstates [flags] [path...]",
		Short: "Catalogue the argument values passed to target functions",
		Long: `argstates reads C, C++ and Go sources and, for every call to one of the
target functions, records the values each argument can take. Variables are
traced back through the calling function to the assignments that reach the
call. Anything that cannot be enumerated marks the parameter unbounded.

Paths may be files or directories and default to the current directory.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				_, _ = fmt.Fprintf(stdout, "argstates %s\n", version)
				return nil
			}
			return analyzePaths(cmd.Context(), args, opts, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	fl := cmd.Flags()
	fl.StringVar(&opts.namesFile, "names-file", "", "file with one target function name per line")
	fl.StringArrayVar(&opts.names, "name", nil, "additional target function name (repeatable)")
	fl.StringSliceVarP(&opts.langs, "langs", "l", nil, "comma-separated languages to include ("+strings.Join(lang.Names(), ", ")+")")
	fl.StringVarP(&opts.format, "format", "f", string(report.JSON), "output format: json, yaml or toon")
	fl.StringVarP(&opts.output, "output", "o", "", "write the report to this file instead of stdout")
	fl.IntVarP(&opts.jobs, "jobs", "j", 0, "files analyzed in parallel (default GOMAXPROCS)")
	fl.Int64Var(&opts.maxFileSize, "max-file-size", defaultMaxFileSize, "skip files larger than this many bytes (0 for no limit)")
	fl.IntVar(&opts.maxDepth, "max-depth", 0, "maximum chain of variable references to follow (default: statements in the function)")
	fl.StringVar(&opts.cacheDir, "cache", "", "directory for cached per-file results")
	fl.BoolVar(&opts.lenient, "lenient", false, "analyze files with syntax errors instead of skipping them")
	fl.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (default $"+logging.EnvLevel+" or info)")
	fl.BoolVarP(&opts.showVersion, "version", "V", false, "show version and exit")

	cmd.AddCommand(newSchemaCmd(stdout), newCleanCmd(stderr))
	return cmd
}

func analyzePaths(ctx context.Context, paths []string, opts options, stdout, stderr io.Writer) error {
	logger, err := logging.New(stderr, opts.logLevel)
	if err != nil {
		return err
	}

	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	for _, name := range opts.langs {
		if _, ok := lang.Languages[strings.TrimSpace(name)]; !ok {
			return fmt.Errorf("unsupported language %q", name)
		}
	}
	if opts.maxDepth < 0 {
		return fmt.Errorf("--max-depth must not be negative")
	}

	set, err := loadTargets(opts)
	if err != nil {
		return err
	}

	if len(paths) == 0 {
		paths = []string{"."}
	}
	langs := make([]string, len(opts.langs))
	for i, name := range opts.langs {
		langs[i] = strings.TrimSpace(name)
	}
	files, err := discover.Paths(paths, langs)
	if err != nil {
		return fmt.Errorf("discovering files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no source files found")
	}

	var c *cache.Cache
	if opts.cacheDir != "" {
		if c, err = cache.Open(opts.cacheDir); err != nil {
			return err
		}
	}

	logger.Debug("starting", "files", len(files), "targets", set.Len())
	st, _, err := pipeline.Run(ctx, files, set, pipeline.Options{
		Jobs:        opts.jobs,
		MaxFileSize: opts.maxFileSize,
		Lenient:     opts.lenient,
		MaxDepth:    opts.maxDepth,
		Cache:       c,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	return writeReport(report.Build(st), format, opts.output, stdout)
}

func loadTargets(opts options) (*targets.Set, error) {
	if opts.namesFile == "" && len(opts.names) == 0 {
		return nil, errNoTargets
	}
	set := targets.New()
	if opts.namesFile != "" {
		loaded, err := targets.Load(opts.namesFile)
		if err != nil {
			return nil, err
		}
		set = loaded
	}
	return set.With(opts.names...), nil
}

func writeReport(r report.Report, format report.Format, output string, stdout io.Writer) error {
	if output == "" {
		return report.Write(stdout, r, format)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := report.Write(f, r, format); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	return nil
}
