package scanner_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/HendryAvila/softdev/internal/metamemory"
	"github.com/HendryAvila/softdev/internal/scanner"
)

func TestHash(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "00000000"},
		{"a", "00000061"},
		{"ab", "00000c21"},
	}
	for _, tt := range tests {
		if got := scanner.Hash([]byte(tt.in)); got != tt.want {
			t.Errorf("Hash(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := []byte(strings.Repeat("overflow the accumulator ", 100))
	h := scanner.Hash(long)
	if len(h) != 8 || h != scanner.Hash(long) {
		t.Errorf("Hash(long) = %q, want 8 stable hex digits", h)
	}
	if h == scanner.Hash(append(long, '!')) {
		t.Error("different content produced the same hash")
	}
}

const functionsSource = `#include <stdio.h>
#include "util.h"

/* add(int a, int b) { in a comment */
static int helper(int x)
{
    const char *s = "{";
    char c = '}';
    return x + 1;
}

int add(int a, int b) { return helper(a) + b; }

int declared(void);
int spans(int a,
          int b);

// int commented(void) {}
struct point *make_point(int x, int y)
{
    struct point *p = malloc(sizeof(*p));
    if (p) {
        p->x = x;
    }
    p->ops.init(p);
    return p;
}
`

func findFunc(t *testing.T, f *scanner.File, name string) scanner.Function {
	t.Helper()
	for _, fn := range f.Functions {
		if fn.Name == name {
			return fn
		}
	}
	t.Fatalf("function %q not recognized; got %v", name, funcNames(f))
	return scanner.Function{}
}

func funcNames(f *scanner.File) []string {
	var names []string
	for _, fn := range f.Functions {
		names = append(names, fn.Name)
	}
	return names
}

func TestParse_Functions(t *testing.T) {
	f := scanner.Parse([]byte(functionsSource))

	want := []string{"helper", "add", "make_point"}
	if got := funcNames(f); !slices.Equal(got, want) {
		t.Fatalf("functions = %v, want %v", got, want)
	}

	helper := findFunc(t, f, "helper")
	if helper.LineStart != 5 || helper.LineEnd != 10 {
		t.Errorf("helper lines = %d-%d, want 5-10", helper.LineStart, helper.LineEnd)
	}
	if !helper.Static {
		t.Error("helper should be static")
	}
	if helper.Signature != "static int helper(int x)" {
		t.Errorf("helper signature = %q", helper.Signature)
	}
	if helper.ReturnType != "int" {
		t.Errorf("helper return type = %q", helper.ReturnType)
	}
	if len(helper.Params) != 1 || helper.Params[0] != (metamemory.Param{Name: "x", Type: "int"}) {
		t.Errorf("helper params = %+v", helper.Params)
	}

	add := findFunc(t, f, "add")
	if add.LineStart != 12 || add.LineEnd != 12 || add.Static {
		t.Errorf("add = lines %d-%d static=%v", add.LineStart, add.LineEnd, add.Static)
	}
	if add.Column != 5 {
		t.Errorf("add column = %d, want 5", add.Column)
	}
	if !slices.Equal(add.Calls, []string{"helper"}) {
		t.Errorf("add calls = %v", add.Calls)
	}

	mp := findFunc(t, f, "make_point")
	if mp.LineStart != 19 || mp.LineEnd != 27 {
		t.Errorf("make_point lines = %d-%d, want 19-27", mp.LineStart, mp.LineEnd)
	}
	if mp.ReturnType != "struct point *" {
		t.Errorf("make_point return type = %q", mp.ReturnType)
	}
	if !slices.Equal(mp.Calls, []string{"malloc"}) {
		t.Errorf("make_point calls = %v, want keywords and member calls excluded", mp.Calls)
	}
	if !slices.Equal(mp.TypeRefs(), []string{"point"}) {
		t.Errorf("make_point type refs = %v", mp.TypeRefs())
	}

	if !slices.Equal(f.Includes, []string{"util.h"}) {
		t.Errorf("includes = %v, want only quoted includes", f.Includes)
	}
}

func TestParse_BraceSafety(t *testing.T) {
	src := `void tricky(void)
{
    printf("}}} \" }");
    char open = '{';
    char esc = '\'';
    if (open) { puts("{"); }
}

int after(void) { return 0; }
`
	f := scanner.Parse([]byte(src))
	tricky := findFunc(t, f, "tricky")
	if tricky.LineEnd != 7 {
		t.Errorf("tricky ends at %d, want 7", tricky.LineEnd)
	}
	after := findFunc(t, f, "after")
	if after.LineStart != 9 {
		t.Errorf("after starts at %d, want 9", after.LineStart)
	}
}

func TestParse_SkipsCommentsAndPreprocessor(t *testing.T) {
	src := `/*
int hidden(void) {
    return 0;
}
*/
#define WRAP(x) do { \
    int inner(void) { \
} while (0)
// int also_hidden(void) { return 1; }
int visible(void) { return 1; }
`
	f := scanner.Parse([]byte(src))
	if got := funcNames(f); !slices.Equal(got, []string{"visible"}) {
		t.Errorf("functions = %v, want only visible", got)
	}
}

func TestParse_StatementsAreNotFunctions(t *testing.T) {
	src := `else if (x) {
}
return compute(a) {
}
x = call(y) {
}
while (1) {
}
`
	f := scanner.Parse([]byte(src))
	if len(f.Functions) != 0 {
		t.Errorf("functions = %v, want none", funcNames(f))
	}
}

func TestParse_ParamForms(t *testing.T) {
	src := `int many(const char *fmt, char **argv, int (*cb)(int), unsigned int, size_t n, ...)
{
}
`
	f := scanner.Parse([]byte(src))
	fn := findFunc(t, f, "many")
	want := []metamemory.Param{
		{Name: "fmt", Type: "const char *"},
		{Name: "argv", Type: "char **"},
		{Name: "cb", Type: "int (*)(int)"},
		{Name: "arg4", Type: "unsigned int"},
		{Name: "n", Type: "size_t"},
		{Name: "...", Type: "..."},
	}
	if !slices.Equal(fn.Params, want) {
		t.Errorf("params = %+v\nwant %+v", fn.Params, want)
	}
}

func TestParse_ParamsCapped(t *testing.T) {
	var params []string
	for range metamemory.MaxParams + 5 {
		params = append(params, "int")
	}
	src := "void wide(" + strings.Join(params, ", ") + ") {\n}\n"
	fn := findFunc(t, scanner.Parse([]byte(src)), "wide")
	if len(fn.Params) != metamemory.MaxParams {
		t.Errorf("params = %d, want %d", len(fn.Params), metamemory.MaxParams)
	}
}

const structsSource = `struct point {
    int x;
    int y;
};

typedef struct {
    const char *name;
    int values[4], count;
    void (*cb)(int);
} config_t;

typedef struct {
    int unused;
};

struct point;
struct point *origin;
typedef struct node node_t;
typedef struct node {
    struct node *next;
    union { int i; float f; } u;
} node;
`

func TestParse_Structs(t *testing.T) {
	f := scanner.Parse([]byte(structsSource))

	var names []string
	for _, s := range f.Structs {
		names = append(names, s.Name)
	}
	if !slices.Equal(names, []string{"point", "config_t", "node"}) {
		t.Fatalf("structs = %v", names)
	}

	point := f.Structs[0]
	if point.LineStart != 1 || point.LineEnd != 4 {
		t.Errorf("point lines = %d-%d", point.LineStart, point.LineEnd)
	}
	wantPoint := []metamemory.Field{{Name: "x", Type: "int"}, {Name: "y", Type: "int"}}
	if !slices.Equal(point.Fields, wantPoint) {
		t.Errorf("point fields = %+v", point.Fields)
	}

	cfg := f.Structs[1]
	if cfg.LineStart != 6 || cfg.LineEnd != 10 {
		t.Errorf("config_t lines = %d-%d", cfg.LineStart, cfg.LineEnd)
	}
	wantCfg := []metamemory.Field{
		{Name: "name", Type: "const char *"},
		{Name: "values", Type: "int[4]"},
		{Name: "count", Type: "int"},
		{Name: "cb", Type: "void (*)(int)"},
	}
	if !slices.Equal(cfg.Fields, wantCfg) {
		t.Errorf("config_t fields = %+v", cfg.Fields)
	}

	node := f.Structs[2]
	if node.LineStart != 19 || node.LineEnd != 22 {
		t.Errorf("node lines = %d-%d", node.LineStart, node.LineEnd)
	}
	if len(node.Fields) != 1 || node.Fields[0].Name != "next" {
		t.Errorf("node fields = %+v", node.Fields)
	}
}

func TestParse_Empty(t *testing.T) {
	f := scanner.Parse(nil)
	if len(f.Functions) != 0 || len(f.Structs) != 0 || len(f.Includes) != 0 {
		t.Errorf("empty source produced %+v", f)
	}
}
