package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"golang.org/x/tools/txtar"

	"github.com/phobologic/argstates/internal/cache"
	"github.com/phobologic/argstates/internal/discover"
	"github.com/phobologic/argstates/internal/state"
	"github.com/phobologic/argstates/internal/targets"
)

const fixture = `
-- a.c --
int f(int level, const char *name);

void one(void) {
	f(1, "a");
}
-- b.c --
void two(void) {
	int n = 2;
	f(n, "b");
}
-- c.go --
package main

func three() {
	mode := 'x'
	f(3, mode)
}
-- bad.c --
void broken( {
	f(9, "z");
`

// extract writes the archive into a temp dir and returns its entries in
// archive order.
func extract(t *testing.T, archive string) []discover.FileEntry {
	t.Helper()
	dir := t.TempDir()
	ar := txtar.Parse([]byte(archive))
	paths := make([]string, 0, len(ar.Files))
	for _, f := range ar.Files {
		path := filepath.Join(dir, f.Name)
		if err := os.WriteFile(path, f.Data, 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}
	files, err := discover.Paths(paths, nil)
	if err != nil {
		t.Fatal(err)
	}
	return files
}

func only(files []discover.FileEntry, names ...string) []discover.FileEntry {
	var out []discover.FileEntry
	for _, f := range files {
		for _, n := range names {
			if filepath.Base(f.Path) == n {
				out = append(out, f)
			}
		}
	}
	return out
}

func snapshot(st *state.Store) map[string][]string {
	out := make(map[string][]string)
	for _, fn := range st.Functions() {
		for _, a := range st.Params(fn) {
			var parts []string
			parts = append(parts, a.ParamName)
			for _, i := range a.SortedInts() {
				parts = append(parts, "i:"+strconv.FormatInt(i, 10))
			}
			for _, c := range a.SortedChars() {
				parts = append(parts, "c:"+string(c))
			}
			parts = append(parts, a.SortedStrings()...)
			if !a.Bounded() {
				parts = append(parts, "unbounded")
			}
			out[fn] = append(out[fn], strings.Join(parts, ","))
		}
	}
	return out
}

func TestRunUnionsUnits(t *testing.T) {
	t.Parallel()

	files := only(extract(t, fixture), "a.c", "b.c", "c.go")
	st, stats, err := Run(context.Background(), files, targets.New("f"), Options{Jobs: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Analyzed != 3 || stats.Skipped != 0 {
		t.Errorf("stats = %+v", stats)
	}

	want := map[string][]string{
		"f": {
			"level,i:1,i:2,i:3",
			"name,c:x,a,b",
		},
	}
	if got := snapshot(st); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	t.Parallel()

	files := only(extract(t, fixture), "a.c", "b.c", "c.go")
	set := targets.New("f")
	first, _, err := Run(context.Background(), files, set, Options{Jobs: 1})
	if err != nil {
		t.Fatal(err)
	}
	for _, jobs := range []int{2, 8} {
		st, _, err := Run(context.Background(), files, set, Options{Jobs: jobs})
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(snapshot(st), snapshot(first)) {
			t.Errorf("jobs=%d: %v, want %v", jobs, snapshot(st), snapshot(first))
		}
	}
}

func TestRunSkipsMalformedUnit(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	files := only(extract(t, fixture), "a.c", "bad.c")
	st, stats, err := Run(context.Background(), files, targets.New("f"), Options{Logger: log.New(&logs)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Analyzed != 1 || stats.Skipped != 1 {
		t.Errorf("stats = %+v", stats)
	}
	a, _ := st.Lookup("f", 0)
	if got := a.SortedInts(); !reflect.DeepEqual(got, []int64{1}) {
		t.Errorf("ints = %v; malformed unit leaked into the result", got)
	}
	if !strings.Contains(logs.String(), "bad.c") {
		t.Errorf("no warning for bad.c in %q", logs.String())
	}
}

func TestRunLenient(t *testing.T) {
	t.Parallel()

	files := only(extract(t, fixture), "bad.c")
	_, stats, err := Run(context.Background(), files, targets.New("f"), Options{Lenient: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Analyzed != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRunNoUnits(t *testing.T) {
	t.Parallel()

	files := only(extract(t, fixture), "bad.c")
	_, _, err := Run(context.Background(), files, targets.New("f"), Options{})
	if !errors.Is(err, ErrNoUnits) {
		t.Errorf("err = %v, want ErrNoUnits", err)
	}
}

func TestRunMaxFileSize(t *testing.T) {
	t.Parallel()

	files := only(extract(t, fixture), "a.c", "b.c")
	_, stats, err := Run(context.Background(), files, targets.New("f"), Options{MaxFileSize: 50})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Analyzed != 1 || stats.Skipped != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRunEmptyTargets(t *testing.T) {
	t.Parallel()

	files := extract(t, fixture)
	st, _, err := Run(context.Background(), files, targets.New(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Len() != 0 {
		t.Errorf("expected empty store, got %v", st.Functions())
	}
}

func TestRunUsesCache(t *testing.T) {
	t.Parallel()

	c, err := cache.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	files := only(extract(t, fixture), "a.c", "b.c")
	set := targets.New("f")

	first, stats, err := Run(context.Background(), files, set, Options{Cache: c})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Cached != 0 {
		t.Errorf("first run cached %d units", stats.Cached)
	}

	second, stats, err := Run(context.Background(), files, set, Options{Cache: c})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Cached != 2 {
		t.Errorf("second run cached %d units, want 2", stats.Cached)
	}
	if !reflect.DeepEqual(snapshot(first), snapshot(second)) {
		t.Errorf("cached result differs: %v vs %v", snapshot(second), snapshot(first))
	}

	// A different target set must not reuse the entries.
	_, stats, err = Run(context.Background(), files, set.With("g"), Options{Cache: c})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Cached != 0 {
		t.Errorf("changed targets reused %d entries", stats.Cached)
	}
}

func TestRunRepeatedInOneProcess(t *testing.T) {
	t.Parallel()

	files := only(extract(t, fixture), "a.c", "b.c", "c.go", "bad.c")
	set := targets.New("f")
	var want map[string][]string
	for i := range 10 {
		st, _, err := Run(context.Background(), files, set, Options{Jobs: 3})
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		got := snapshot(st)
		if i == 0 {
			want = got
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("run %d: %v, want %v", i, got, want)
		}
	}
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	files := only(extract(t, fixture), "a.c", "b.c", "c.go")
	set := targets.New("f")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := Run(ctx, files, set, Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}

	// Pooled parsers must still work after a cancelled run.
	st, _, err := Run(context.Background(), files, set, Options{})
	if err != nil {
		t.Fatalf("Run after cancel: %v", err)
	}
	if st.Len() != 1 {
		t.Errorf("functions = %v", st.Functions())
	}
}
