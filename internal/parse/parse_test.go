package parse

import (
	"errors"
	"testing"

	"github.com/phobologic/argstates/internal/ast"
	"github.com/phobologic/argstates/internal/lang"
	"github.com/phobologic/argstates/internal/model"
)

func lower(t *testing.T, langName, source string) *ast.Unit {
	t.Helper()
	u, err := lowerOpts(t, langName, source, Options{})
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	return u
}

func lowerOpts(t *testing.T, langName, source string, opts Options) (*ast.Unit, error) {
	t.Helper()
	l := lang.Languages[langName]
	if l == nil {
		t.Fatalf("language %q not registered", langName)
	}
	p := l.AcquireParser()
	defer l.ReleaseParser(p)
	return File(l, p, []byte(source), "test"+l.Extensions[0], opts)
}

func findFunc(t *testing.T, u *ast.Unit, name string) *ast.Func {
	t.Helper()
	for _, f := range u.Funcs {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("function %q not lowered", name)
	return nil
}

func findVar(t *testing.T, f *ast.Func, name string) *ast.Var {
	t.Helper()
	for _, v := range f.Vars {
		if v.Name == name {
			return v
		}
	}
	t.Fatalf("variable %q not declared in %s", name, f.Name)
	return nil
}

func literal(t *testing.T, e ast.Expr) model.Value {
	t.Helper()
	lit, ok := e.(*ast.Literal)
	if !ok {
		t.Fatalf("%q lowered to %T, want literal", e.Text(), e)
	}
	return lit.Value
}

func TestEmptySource(t *testing.T) {
	t.Parallel()
	u := lower(t, "c", "")
	if len(u.Calls) != 0 || len(u.Funcs) != 0 {
		t.Errorf("empty source lowered to %d calls, %d funcs", len(u.Calls), len(u.Funcs))
	}
}

func TestCCallArguments(t *testing.T) {
	t.Parallel()
	u := lower(t, "c", `
void run(int n) {
	int x = 5;
	target('a', 42, "s", x, n, x + 1, -3, (char)66, NULL);
}
`)
	calls := u.CallsTo("target")
	if len(calls) != 1 {
		t.Fatalf("got %d calls to target", len(calls))
	}
	args := calls[0].Args
	if len(args) != 9 {
		t.Fatalf("got %d args", len(args))
	}
	want := map[int]model.Value{
		0: model.CharValue('a'),
		1: model.IntValue(42),
		2: model.StringValue("s"),
		6: model.IntValue(-3),
		7: model.CharValue('B'),
		8: model.IntValue(0),
	}
	for i, v := range want {
		if got := literal(t, args[i]); got != v {
			t.Errorf("arg %d = %v, want %v", i, got, v)
		}
	}
	ref, ok := args[3].(*ast.Ref)
	if !ok || ref.Var.Name != "x" || ref.Var.Kind != ast.Local {
		t.Errorf("arg 3 = %#v, want reference to local x", args[3])
	}
	if ref, ok := args[4].(*ast.Ref); !ok || ref.Var.Kind != ast.Param {
		t.Errorf("arg 4 = %#v, want reference to param n", args[4])
	}
	if _, ok := args[5].(*ast.Opaque); !ok {
		t.Errorf("arg 5 = %#v, want opaque", args[5])
	}
	if calls[0].Func == nil || calls[0].Func.Name != "run" {
		t.Errorf("enclosing function = %v", calls[0].Func)
	}
}

func TestCCalleeMatching(t *testing.T) {
	t.Parallel()
	u := lower(t, "c", `
struct ops { void (*target)(int); };
void run(struct ops *o, struct ops s) {
	void (*fp)(int) = target;
	fp(1);
	o->target(2);
	s.target(3);
	target(4);
	{
		int target = 0;
		target(5);
	}
}
`)
	calls := u.CallsTo("target")
	if len(calls) != 1 {
		t.Fatalf("got %d calls to target, want only the direct one", len(calls))
	}
	if got := literal(t, calls[0].Args[0]); got != model.IntValue(4) {
		t.Errorf("arg = %v, want 4", got)
	}
}

func TestCAssignments(t *testing.T) {
	t.Parallel()
	u := lower(t, "c", `
void run(void) {
	int x = 1;
	x = 2;
	x += 3;
	x++;
	static int s;
	int *p = &x;
	char buf[4];
	buf[0] = 'a';
}
`)
	f := findFunc(t, u, "run")
	x := findVar(t, f, "x")
	as := f.AssignmentsTo(x)
	wantOps := []ast.AssignOp{ast.Set, ast.Set, ast.Modify, ast.Modify, ast.Escape}
	if len(as) != len(wantOps) {
		t.Fatalf("got %d stores to x, want %d", len(as), len(wantOps))
	}
	for i, op := range wantOps {
		if as[i].Op != op {
			t.Errorf("store %d op = %v, want %v", i, as[i].Op, op)
		}
	}
	if got := literal(t, as[1].Value); got != model.IntValue(2) {
		t.Errorf("x = %v, want 2", got)
	}

	s := findVar(t, f, "s")
	if !s.Static {
		t.Error("s should be static")
	}
	if ss := f.AssignmentsTo(s); len(ss) != 1 || literal(t, ss[0].Value) != model.IntValue(0) {
		t.Errorf("static s should start at 0, got %v", ss)
	}

	buf := findVar(t, f, "buf")
	if !buf.Array {
		t.Error("buf should be an array")
	}
	if bs := f.AssignmentsTo(buf); len(bs) != 1 || bs[0].Op != ast.Modify {
		t.Errorf("element store should modify buf, got %v", bs)
	}
}

func TestCArrayPassedToCallEscapes(t *testing.T) {
	t.Parallel()
	u := lower(t, "c", `
void run(void) {
	char name[] = "abc";
	fill(name);
	target(name);
}
`)
	f := findFunc(t, u, "run")
	as := f.AssignmentsTo(findVar(t, f, "name"))
	if len(as) != 3 {
		t.Fatalf("got %d stores to name, want init and two escapes", len(as))
	}
	if got := literal(t, as[0].Value); got != model.StringValue("abc") {
		t.Errorf("init = %v", got)
	}
	if as[1].Op != ast.Escape || as[2].Op != ast.Escape {
		t.Errorf("ops = %v, %v; want escapes", as[1].Op, as[2].Op)
	}
	call := u.CallsTo("target")[0]
	if as[2].Span.End <= call.Pos.Offset {
		t.Error("the escape of the target call's own argument must not precede it")
	}
}

func TestCConstants(t *testing.T) {
	t.Parallel()
	u := lower(t, "c", `
#define MODE 'r'
#define LIMIT (16)
#define PATH "/tmp"
#define EXPR (LIMIT + 1)
enum color { RED, GREEN = 5, BLUE, DYN = EXPR, AFTER };
void run(void) {
	target(MODE, LIMIT, PATH, RED, GREEN, BLUE, DYN, AFTER);
}
`)
	args := u.CallsTo("target")[0].Args
	want := []model.Value{
		model.CharValue('r'),
		model.IntValue(16),
		model.StringValue("/tmp"),
		model.IntValue(0),
		model.IntValue(5),
		model.IntValue(6),
	}
	for i, v := range want {
		if got := literal(t, args[i]); got != v {
			t.Errorf("arg %d = %v, want %v", i, got, v)
		}
	}
	for _, i := range []int{6, 7} {
		if _, ok := args[i].(*ast.Opaque); !ok {
			t.Errorf("arg %d = %#v, want opaque", i, args[i])
		}
	}
}

func TestCSignatures(t *testing.T) {
	t.Parallel()
	u := lower(t, "c", `
int target(int mode, const char *);
int target(int, const char *path) { return 0; }
void (*handler)(int signum);
`)
	got := u.Signatures["target"]
	if len(got) != 2 || got[0] != "mode" || got[1] != "path" {
		t.Errorf("signature = %q, want [mode path]", got)
	}
	if _, ok := u.Signatures["handler"]; ok {
		t.Error("function pointers have no signature")
	}
}

func TestCControlFlowFacts(t *testing.T) {
	t.Parallel()
	u := lower(t, "c", `
void run(int n) {
	int i = 0;
	while (i < n) {
		i = i + 1;
	}
again:
	if (n) goto again;
}
`)
	f := findFunc(t, u, "run")
	if len(f.Loops) != 1 {
		t.Fatalf("got %d loops", len(f.Loops))
	}
	if !f.HasGoto {
		t.Error("goto not recorded")
	}
	if f.Stmts == 0 {
		t.Error("statements not counted")
	}
	as := f.AssignmentsTo(findVar(t, f, "i"))
	if !f.InLoopWith(as[1].Span.Start, as[1].Span.End-1) {
		t.Error("loop body store should lie inside the loop")
	}
}

func TestCppLambdaAndReference(t *testing.T) {
	t.Parallel()
	u := lower(t, "cpp", `
void run() {
	int x = 1;
	int &r = x;
	auto f = [&]() { x = 2; target(x); };
	ns::target(3);
	::target(4);
}
`)
	f := findFunc(t, u, "run")
	x := findVar(t, f, "x")
	var inClosure, escapes int
	for _, a := range f.AssignmentsTo(x) {
		if a.ClosureDepth > x.ClosureDepth {
			inClosure++
		}
		if a.Op == ast.Escape {
			escapes++
		}
	}
	if inClosure != 1 || escapes != 1 {
		t.Errorf("closure stores = %d, escapes = %d; want 1, 1", inClosure, escapes)
	}
	if calls := u.CallsTo("target"); len(calls) != 2 || calls[0].ClosureDepth != 1 {
		t.Errorf("calls to target = %d (closure depth of first %d)", len(calls), calls[0].ClosureDepth)
	}
	if calls := u.CallsTo("ns::target"); len(calls) != 1 {
		t.Errorf("qualified calls = %d", len(calls))
	}
}

func TestCppNamespaceQualification(t *testing.T) {
	t.Parallel()
	u := lower(t, "cpp", `
namespace ns {
int target(int mode);
void run() { target(1); helper(2); }
}
int ns::target(int mode) { return mode; }
`)
	if _, ok := u.Signatures["ns::target"]; !ok {
		t.Errorf("signatures = %v", u.Signatures)
	}
	findFunc(t, u, "ns::run")
	calls := u.CallsTo("ns::target")
	if len(calls) != 1 || calls[0].Name != "ns::target" || calls[0].Namespace != "" {
		t.Errorf("calls to ns::target = %+v", calls)
	}
	helper := u.CallsTo("helper")
	if len(helper) != 1 || helper[0].Namespace != "ns" {
		t.Errorf("unresolved call = %+v", helper)
	}
}

func TestGoLowering(t *testing.T) {
	t.Parallel()
	u := lower(t, "go", `package p

import "os"

const (
	A = iota
	B
	C
)

const Name = "x"

func run(n int) (res string) {
	var z int
	var s string
	k, err := 1, error(nil)
	k, other := 2, 3
	k += n
	target(A, B, C, Name, z, s, k, err, other, byte('a'), rune(66), -1, res)
	os.Exit(1)
	p := &z
	_ = p
}
`)
	f := findFunc(t, u, "run")
	args := u.CallsTo("target")[0].Args
	want := map[int]model.Value{
		0:  model.IntValue(0),
		1:  model.IntValue(1),
		2:  model.IntValue(2),
		3:  model.StringValue("x"),
		9:  model.IntValue('a'),
		10: model.CharValue('B'),
		11: model.IntValue(-1),
	}
	for i, v := range want {
		if got := literal(t, args[i]); got != v {
			t.Errorf("arg %d = %v, want %v", i, got, v)
		}
	}

	z := findVar(t, f, "z")
	zs := f.AssignmentsTo(z)
	if len(zs) != 2 || literal(t, zs[0].Value) != model.IntValue(0) || zs[1].Op != ast.Escape {
		t.Errorf("stores to z = %v", zs)
	}
	s := f.AssignmentsTo(findVar(t, f, "s"))
	if len(s) != 1 || literal(t, s[0].Value) != model.StringValue("") {
		t.Errorf("stores to s = %v", s)
	}
	res := f.AssignmentsTo(findVar(t, f, "res"))
	if len(res) != 1 || literal(t, res[0].Value) != model.StringValue("") {
		t.Errorf("named result should start empty, got %v", res)
	}

	var ks []*ast.Var
	for _, v := range f.Vars {
		if v.Name == "k" {
			ks = append(ks, v)
		}
	}
	if len(ks) != 1 {
		t.Fatalf("k redeclared %d times, want a single variable", len(ks))
	}
	kOps := f.AssignmentsTo(ks[0])
	if len(kOps) != 3 || kOps[2].Op != ast.Modify {
		t.Errorf("stores to k = %v", kOps)
	}
	if len(u.CallsTo("os.Exit")) != 1 {
		t.Error("package-qualified call not collected")
	}
	if got := u.Signatures["run"]; len(got) != 1 || got[0] != "n" {
		t.Errorf("signature = %q", got)
	}
}

func TestGoClosuresAndLoops(t *testing.T) {
	t.Parallel()
	u := lower(t, "go", `package p

func run(items []string) {
	mode := 'a'
	for _, it := range items {
		target(mode, it)
		mode = 'b'
	}
	go func() {
		mode = 'c'
	}()
}
`)
	f := findFunc(t, u, "run")
	if len(f.Loops) != 1 {
		t.Fatalf("loops = %d", len(f.Loops))
	}
	call := u.CallsTo("target")[0]
	if ref, ok := call.Args[1].(*ast.Ref); !ok || ref.Var.Name != "it" {
		t.Fatalf("range variable not referenced: %#v", call.Args[1])
	}
	mode := f.AssignmentsTo(findVar(t, f, "mode"))
	if len(mode) != 3 {
		t.Fatalf("got %d stores to mode", len(mode))
	}
	if !f.InLoopWith(mode[1].Span.Start, call.Pos.Offset) {
		t.Error("loop store and call should share the loop")
	}
	if mode[2].ClosureDepth != 1 {
		t.Errorf("closure store depth = %d", mode[2].ClosureDepth)
	}
}

func TestSyntaxError(t *testing.T) {
	t.Parallel()
	src := "void run(void) {\n\ttarget(1;\n}\n"
	_, err := lowerOpts(t, "c", src, Options{})
	var serr *SyntaxError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *SyntaxError", err)
	}
	if serr.Line != 2 {
		t.Errorf("line = %d, want 2", serr.Line)
	}

	u, err := lowerOpts(t, "c", src, Options{Lenient: true})
	if err != nil {
		t.Fatalf("lenient: %v", err)
	}
	if u == nil {
		t.Fatal("lenient lowering returned no unit")
	}
}
