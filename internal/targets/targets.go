// Package targets loads the set of function names whose call sites are
// analysed.
package targets

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// ErrNoNames is returned by Load when the names file does not exist.
var ErrNoNames = errors.New("names file not found")

// Set is an ordered, deduplicated set of target names. It is read-only once
// built.
type Set struct {
	names []string
	index map[string]int
}

// New builds a Set from names, in order, dropping duplicates and empty
// names. Mangled C++ symbols are replaced by their qualified name.
func New(names ...string) *Set {
	s := &Set{index: make(map[string]int)}
	for _, n := range names {
		s.add(n)
	}
	return s
}

func (s *Set) add(name string) {
	name = Normalize(name)
	if name == "" {
		return
	}
	if _, ok := s.index[name]; ok {
		return
	}
	s.index[name] = len(s.names)
	s.names = append(s.names, name)
}

// Normalize trims name and demangles Itanium C++ symbols without their
// parameter lists, so _ZN2ns6targetEi becomes ns::target.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "_Z") {
		name = demangle.Filter(name, demangle.NoParams)
	}
	return name
}

// Load reads one name per line from path. Blank lines and lines starting
// with # are ignored.
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoNames, path)
		}
		return nil, fmt.Errorf("opening names file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses names in the format Load accepts.
func Read(r io.Reader) (*Set, error) {
	s := New()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s.add(line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading names: %w", err)
	}
	return s, nil
}

// With returns a new Set holding s's names followed by extra.
func (s *Set) With(extra ...string) *Set {
	out := New(s.Names()...)
	for _, n := range extra {
		out.add(n)
	}
	return out
}

// Names returns the names in load order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.names...)
}

// Contains reports whether name is a target.
func (s *Set) Contains(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[name]
	return ok
}

// Len returns the number of names.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}
