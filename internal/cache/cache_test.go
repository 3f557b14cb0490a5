package cache

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/phobologic/argstates/internal/model"
	"github.com/phobologic/argstates/internal/state"
)

func TestKeyDependsOnEveryInput(t *testing.T) {
	t.Parallel()

	base := Inputs{Language: "c", MaxDepth: 0, Targets: []string{"f", "g"}, Source: []byte("int x;")}
	baseKey := Key(base)
	if baseKey != Key(base) {
		t.Fatal("Key is not deterministic")
	}

	variants := map[string]Inputs{
		"language": {Language: "cpp", Targets: base.Targets, Source: base.Source},
		"lenient":  {Language: "c", Lenient: true, Targets: base.Targets, Source: base.Source},
		"depth":    {Language: "c", MaxDepth: 3, Targets: base.Targets, Source: base.Source},
		"targets":  {Language: "c", Targets: []string{"f"}, Source: base.Source},
		"split":    {Language: "c", Targets: []string{"fg"}, Source: base.Source},
		"source":   {Language: "c", Targets: base.Targets, Source: []byte("int y;")},
	}
	for name, in := range variants {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if Key(in) == baseKey {
				t.Errorf("changing %s did not change the key", name)
			}
		})
	}
}

func sampleStore() *state.Store {
	st := state.New()
	a := st.Param("open", 0, "path")
	a.AddArgName("p")
	a.Add(model.StringValue("/etc/passwd"))
	b := st.Param("open", 1, "mode")
	b.Add(model.CharValue('r'))
	b.Add(model.IntValue(-2))
	b.MarkUnbounded("getmode()")
	c := st.Param("close", 0, "")
	c.MarkUnbounded("")
	return st
}

func TestPutGet(t *testing.T) {
	t.Parallel()

	c, err := Open(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	key := Key(Inputs{Language: "c", Source: []byte("x")})

	if _, ok := c.Get(key); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	want := sampleStore()
	if err := c.Put(key, want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if !reflect.DeepEqual(encode(got), encode(want)) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", encode(got), encode(want))
	}

	closeState, _ := got.Lookup("close", 0)
	if closeState.Bounded() || len(closeState.Opaque) != 0 {
		t.Errorf("close param: bounded=%v opaque=%v", closeState.Bounded(), closeState.Opaque)
	}
}

func TestCorruptEntryIsMiss(t *testing.T) {
	t.Parallel()

	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := Key(Inputs{Source: []byte("y")})
	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(key); ok {
		t.Error("corrupt entry should be a miss")
	}
}

func TestClear(t *testing.T) {
	t.Parallel()

	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := Key(Inputs{Source: []byte("z")})
	if err := c.Put(key, sampleStore()); err != nil {
		t.Fatal(err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := c.Get(key); ok {
		t.Error("entry survived Clear")
	}
}

func TestNilCache(t *testing.T) {
	t.Parallel()

	var c *Cache
	if _, ok := c.Get("00abc"); ok {
		t.Error("nil cache hit")
	}
	if err := c.Put("00abc", state.New()); err != nil {
		t.Errorf("nil Put: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Errorf("nil Clear: %v", err)
	}
}
