// Package cache stores per-unit analysis results on disk, keyed by a hash of
// everything that can change them.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/zeebo/xxh3"

	"github.com/phobologic/argstates/internal/model"
	"github.com/phobologic/argstates/internal/state"
)

// format is mixed into every key; bump it when the entry layout or the
// analysis semantics change.
const format = "argstates-cache-2"

// Cache is a directory of result files. The zero value is unusable; a nil
// *Cache is a cache that never hits.
type Cache struct {
	dir string
}

// Open returns a cache rooted at dir, creating it if needed.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Inputs are the things a unit's result depends on.
type Inputs struct {
	Language string
	Lenient  bool
	MaxDepth int
	Targets  []string
	Source   []byte
}

// Key hashes in. Variable-length fields are length-prefixed so that no two
// distinct inputs share an encoding.
func Key(in Inputs) string {
	h := xxh3.New()
	field := func(s string) {
		_, _ = h.WriteString(strconv.Itoa(len(s)))
		_, _ = h.WriteString(":")
		_, _ = h.WriteString(s)
	}
	field(format)
	field(in.Language)
	field(strconv.FormatBool(in.Lenient))
	field(strconv.Itoa(in.MaxDepth))
	field(strconv.Itoa(len(in.Targets)))
	for _, t := range in.Targets {
		field(t)
	}
	_, _ = h.WriteString(strconv.Itoa(len(in.Source)))
	_, _ = h.Write(in.Source)
	return hex.EncodeToString(h.Sum(nil))
}

type entry struct {
	Func      string   `json:"func"`
	Position  int      `json:"position"`
	ParamName string   `json:"param_name"`
	ArgNames  []string `json:"arg_names,omitempty"`
	Chars     []rune   `json:"chars,omitempty"`
	Ints      []int64  `json:"ints,omitempty"`
	Strings   []string `json:"strings,omitempty"`
	Opaque    []string `json:"opaque,omitempty"`
	Unbounded bool     `json:"unbounded,omitempty"`
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key[:2], key+".json")
}

// Get returns the stored result for key. A missing or unreadable entry is a
// miss.
func (c *Cache) Get(key string) (*state.Store, bool) {
	if c == nil {
		return nil, false
	}
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false
	}
	return decode(entries), true
}

// Put stores st under key. The file is written atomically.
func (c *Cache) Put(key string, st *state.Store) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(encode(st))
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), key+".*.tmp")
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	if c == nil {
		return nil
	}
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading cache dir: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(c.dir, e.Name())); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
	}
	return nil
}

func encode(st *state.Store) []entry {
	var out []entry
	for _, fn := range st.Functions() {
		for _, a := range st.Params(fn) {
			out = append(out, entry{
				Func:      fn,
				Position:  a.Position,
				ParamName: a.ParamName,
				ArgNames:  a.SortedArgNames(),
				Chars:     a.SortedChars(),
				Ints:      a.SortedInts(),
				Strings:   a.SortedStrings(),
				Opaque:    a.SortedOpaque(),
				Unbounded: a.Unbounded,
			})
		}
	}
	return out
}

func decode(entries []entry) *state.Store {
	st := state.New()
	for _, e := range entries {
		a := st.Param(e.Func, e.Position, e.ParamName)
		for _, n := range e.ArgNames {
			a.AddArgName(n)
		}
		for _, r := range e.Chars {
			a.Add(model.CharValue(r))
		}
		for _, i := range e.Ints {
			a.Add(model.IntValue(i))
		}
		for _, s := range e.Strings {
			a.Add(model.StringValue(s))
		}
		for _, text := range e.Opaque {
			a.MarkUnbounded(text)
		}
		if e.Unbounded {
			a.MarkUnbounded("")
		}
	}
	return st
}
