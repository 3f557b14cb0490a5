// Package pipeline analyzes many translation units concurrently and unions
// their results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/argstates/internal/analyze"
	"github.com/phobologic/argstates/internal/cache"
	"github.com/phobologic/argstates/internal/discover"
	"github.com/phobologic/argstates/internal/lang"
	"github.com/phobologic/argstates/internal/logging"
	"github.com/phobologic/argstates/internal/parse"
	"github.com/phobologic/argstates/internal/state"
	"github.com/phobologic/argstates/internal/targets"
)

// ErrNoUnits is returned when files were given but none could be analyzed.
var ErrNoUnits = errors.New("no translation unit could be analyzed")

// Options configure a pipeline run.
type Options struct {
	// Jobs is the number of units analyzed at once. Zero means GOMAXPROCS.
	Jobs int
	// MaxFileSize skips larger files. Zero means no limit.
	MaxFileSize int64
	Lenient     bool
	MaxDepth    int
	// Cache may be nil.
	Cache  *cache.Cache
	Logger *log.Logger
}

// Stats summarizes a run.
type Stats struct {
	Analyzed int
	Cached   int
	Skipped  int
}

// Run analyzes every file and returns the union of the per-unit stores.
// Each unit is analyzed against its own store; the union is taken in input
// order once all workers are done. Unreadable, oversized and malformed files
// are skipped with a warning.
func Run(ctx context.Context, files []discover.FileEntry, set *targets.Set, opts Options) (*state.Store, Stats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	var stats Stats
	if set.Len() == 0 || len(files) == 0 {
		return state.New(), stats, nil
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	if jobs > len(files) {
		jobs = len(files)
	}

	names := set.Names()
	results := make([]*state.Store, len(files))
	var analyzed, cached, skipped atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, f := range files {
		g.Go(func() error {
			st, hit, err := unit(ctx, f, set, names, opts, logger)
			switch {
			case err != nil:
				return err
			case st == nil:
				skipped.Add(1)
				return nil
			case hit:
				cached.Add(1)
			}
			analyzed.Add(1)
			results[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	stats = Stats{Analyzed: int(analyzed.Load()), Cached: int(cached.Load()), Skipped: int(skipped.Load())}
	if stats.Analyzed == 0 {
		return nil, stats, ErrNoUnits
	}

	merged := state.New()
	for _, st := range results {
		merged.Merge(st)
	}
	logger.Info("analysis complete", "units", stats.Analyzed, "cached", stats.Cached, "skipped", stats.Skipped, "functions", merged.Len())
	return merged, stats, nil
}

// unit analyzes one file. A nil store with a nil error means the file was
// skipped.
func unit(ctx context.Context, f discover.FileEntry, set *targets.Set, names []string, opts Options, logger *log.Logger) (*state.Store, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	l, ok := lang.Languages[f.Language]
	if !ok {
		return nil, false, fmt.Errorf("%s: unsupported language %q", f.Path, f.Language)
	}

	if opts.MaxFileSize > 0 {
		if fi, err := os.Stat(f.Path); err == nil && fi.Size() > opts.MaxFileSize {
			logger.Warn("skipped", "file", f.Path, "reason", fmt.Sprintf("larger than %d bytes", opts.MaxFileSize))
			return nil, false, nil
		}
	}

	source, err := os.ReadFile(f.Path)
	if err != nil {
		logger.Warn("skipped", "file", f.Path, "err", err)
		return nil, false, nil
	}

	key := cache.Key(cache.Inputs{
		Language: l.Name,
		Lenient:  opts.Lenient,
		MaxDepth: opts.MaxDepth,
		Targets:  names,
		Source:   source,
	})
	if st, ok := opts.Cache.Get(key); ok {
		logger.Debug("cache hit", "file", f.Path)
		return st, true, nil
	}

	parser := l.AcquireParser()
	u, err := parse.File(l, parser, source, f.Path, parse.Options{Lenient: opts.Lenient})
	l.ReleaseParser(parser)

	var serr *parse.SyntaxError
	if errors.As(err, &serr) {
		logger.Warn("skipped", "file", f.Path, "err", serr)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	logger.Debug("analyzing", "file", f.Path, "funcs", len(u.Funcs), "calls", len(u.Calls))
	st := analyze.Run(u, set, analyze.Options{
		MaxDepth: opts.MaxDepth,
		Logger:   logger.With("file", f.Path),
	})

	if err := opts.Cache.Put(key, st); err != nil {
		logger.Warn("cache write failed", "file", f.Path, "err", err)
	}
	return st, false, nil
}
