package index_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HendryAvila/softdev/internal/index"
	"github.com/HendryAvila/softdev/internal/metamemory"
)

const testProject = "demo"

// newTestIndex opens an index backed by a temp directory for isolation.
func newTestIndex(t *testing.T) *index.Index {
	t.Helper()
	return newTestIndexWith(t, index.Config{DataDir: t.TempDir()})
}

func newTestIndexWith(t *testing.T, cfg index.Config) *index.Index {
	t.Helper()
	x, err := index.Open(cfg, testProject)
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}
	t.Cleanup(func() { x.Close() })
	return x
}

func mustStore(t *testing.T, x *index.Index, n *metamemory.Node) {
	t.Helper()
	if err := x.Store(context.Background(), n); err != nil {
		t.Fatalf("Store(%s) error: %v", n.ID, err)
	}
}

func mustLoad(t *testing.T, x *index.Index, id string) *metamemory.Node {
	t.Helper()
	n, err := x.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("Load(%s) error: %v", id, err)
	}
	return n
}

func newFunc(t *testing.T, name, file string, line int) *metamemory.Node {
	t.Helper()
	n, err := metamemory.NewFunction(testProject, name, file, line, line+5, "int "+name+"(void)")
	if err != nil {
		t.Fatalf("NewFunction(%s) error: %v", name, err)
	}
	return n
}

func newConcept(t *testing.T, name, purpose string, tasks ...string) *metamemory.Node {
	t.Helper()
	n, err := metamemory.NewConcept(testProject, name, purpose, tasks)
	if err != nil {
		t.Fatalf("NewConcept(%s) error: %v", name, err)
	}
	return n
}

// ─── Open ────────────────────────────────────────────────────────────────────

func TestOpen_CreatesProjectDatabase(t *testing.T) {
	dir := t.TempDir()
	x, err := index.Open(index.Config{DataDir: dir}, testProject)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer x.Close()

	want := filepath.Join(dir, testProject, index.DBName)
	if x.Path() != want {
		t.Errorf("Path() = %q, want %q", x.Path(), want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("database file missing: %v", err)
	}
	if x.ProjectID() != testProject {
		t.Errorf("ProjectID() = %q", x.ProjectID())
	}
}

func TestOpen_RejectsBadProjectID(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		id   string
		want error
	}{
		{"", metamemory.ErrMissingInput},
		{"..", metamemory.ErrInvalidInput},
		{"../escape", metamemory.ErrInvalidInput},
		{"a/b", metamemory.ErrInvalidInput},
		{".hidden", metamemory.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			_, err := index.Open(index.Config{DataDir: dir}, tt.id)
			if !errors.Is(err, tt.want) {
				t.Errorf("Open(%q) error = %v, want %v", tt.id, err, tt.want)
			}
		})
	}
}

func TestOpen_IdempotentReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := index.Config{DataDir: dir}

	x1, err := index.Open(cfg, testProject)
	if err != nil {
		t.Fatalf("first Open() error: %v", err)
	}
	mustStore(t, x1, newConcept(t, "Persistence", "survives reopen"))
	x1.Close()

	x2, err := index.Open(cfg, testProject)
	if err != nil {
		t.Fatalf("second Open() error: %v", err)
	}
	defer x2.Close()

	n := mustLoad(t, x2, "concept:Persistence")
	if n.Purpose != "survives reopen" {
		t.Errorf("Purpose = %q", n.Purpose)
	}
}

func TestOpen_ProjectsAreIsolated(t *testing.T) {
	dir := t.TempDir()
	a, err := index.Open(index.Config{DataDir: dir}, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := index.Open(index.Config{DataDir: dir}, "beta")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	mustStore(t, a, newConcept(t, "OnlyAlpha", ""))
	ok, err := b.Exists(context.Background(), "concept:OnlyAlpha")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("node stored in alpha is visible in beta")
	}
}

// ─── Store / Load ────────────────────────────────────────────────────────────

func TestStoreLoad_FunctionRoundTrip(t *testing.T) {
	x := newTestIndex(t)

	fn := newFunc(t, "parse_config", "src/config.c", 10)
	fn.ReturnType = "int"
	fn.Visibility = metamemory.VisibilityInternal
	fn.SourceHash = "0000abcd"
	fn.Purpose = "parse the config file"
	if err := fn.AddParam(metamemory.Param{Name: "path", Type: "const char *"}); err != nil {
		t.Fatal(err)
	}
	if err := fn.AddParam(metamemory.Param{Name: "out", Type: "struct config *", Description: "result"}); err != nil {
		t.Fatal(err)
	}
	if err := fn.AddLink(metamemory.LinkCalls, "func:read_file"); err != nil {
		t.Fatal(err)
	}
	if err := fn.AddLink(metamemory.LinkCalls, "func:tokenize"); err != nil {
		t.Fatal(err)
	}
	if err := fn.AddLink(metamemory.LinkImplements, "concept:Config"); err != nil {
		t.Fatal(err)
	}
	mustStore(t, x, fn)

	got := mustLoad(t, x, "func:parse_config")
	if got.Type != metamemory.TypeFunction || got.Name != "parse_config" || got.ProjectID != testProject {
		t.Errorf("identity = %v %q %q", got.Type, got.Name, got.ProjectID)
	}
	if got.Location != fn.Location {
		t.Errorf("Location = %+v, want %+v", got.Location, fn.Location)
	}
	if got.Signature != fn.Signature || got.ReturnType != "int" {
		t.Errorf("Signature/ReturnType = %q/%q", got.Signature, got.ReturnType)
	}
	if got.Visibility != metamemory.VisibilityInternal {
		t.Errorf("Visibility = %v", got.Visibility)
	}
	if got.SourceHash != "0000abcd" || got.Purpose != "parse the config file" {
		t.Errorf("SourceHash/Purpose = %q/%q", got.SourceHash, got.Purpose)
	}
	params := got.Params()
	if len(params) != 2 || params[0].Name != "path" || params[1].Description != "result" {
		t.Errorf("Params = %+v", params)
	}
	calls := got.Links(metamemory.LinkCalls)
	if len(calls) != 2 || calls[0] != "func:read_file" || calls[1] != "func:tokenize" {
		t.Errorf("calls = %v, want insertion order", calls)
	}
	if !got.HasLink(metamemory.LinkImplements, "concept:Config") {
		t.Error("implements link lost")
	}
	if !got.CreatedAt.Equal(fn.CreatedAt) || !got.UpdatedAt.Equal(fn.UpdatedAt) {
		t.Errorf("timestamps = %v/%v, want %v/%v", got.CreatedAt, got.UpdatedAt, fn.CreatedAt, fn.UpdatedAt)
	}
	if got.Curated || !got.CuratedAt.IsZero() {
		t.Error("uncurated node came back curated")
	}
}

func TestStoreLoad_ConceptAndStruct(t *testing.T) {
	x := newTestIndex(t)

	c := newConcept(t, "Networking", "socket handling", "open a connection", "retry on failure")
	c.MarkCurated()
	c.Notes = "reviewed"
	mustStore(t, x, c)

	s, err := metamemory.NewStruct(testProject, "conn", "net/conn.h", 3, 9)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddField("fd", "int"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddField("peer", "struct sockaddr"); err != nil {
		t.Fatal(err)
	}
	mustStore(t, x, s)

	gc := mustLoad(t, x, c.ID)
	tasks := gc.Tasks()
	if len(tasks) != 2 || tasks[0] != "open a connection" {
		t.Errorf("Tasks = %v", tasks)
	}
	if !gc.Curated || gc.Notes != "reviewed" || !gc.CuratedAt.Equal(c.CuratedAt) {
		t.Errorf("curation = %v %q %v", gc.Curated, gc.Notes, gc.CuratedAt)
	}

	gs := mustLoad(t, x, s.ID)
	fields := gs.Fields()
	if len(fields) != 2 || fields[1].Name != "peer" || fields[1].Type != "struct sockaddr" {
		t.Errorf("Fields = %+v", fields)
	}
}

func TestStore_ReplacesCollections(t *testing.T) {
	x := newTestIndex(t)

	fn := newFunc(t, "run", "main.c", 1)
	fn.AddLink(metamemory.LinkCalls, "func:old")
	fn.AddParam(metamemory.Param{Name: "a", Type: "int"})
	mustStore(t, x, fn)

	fresh := newFunc(t, "run", "main.c", 20)
	fresh.AddLink(metamemory.LinkCalls, "func:new")
	mustStore(t, x, fresh)

	got := mustLoad(t, x, "func:run")
	if calls := got.Links(metamemory.LinkCalls); len(calls) != 1 || calls[0] != "func:new" {
		t.Errorf("calls = %v, want only the new link", calls)
	}
	if len(got.Params()) != 0 {
		t.Errorf("Params = %v, want none", got.Params())
	}
	if got.Location.LineStart != 20 {
		t.Errorf("LineStart = %d, want 20", got.Location.LineStart)
	}
}

func TestStore_Validation(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	if err := x.Store(ctx, nil); !errors.Is(err, metamemory.ErrMissingInput) {
		t.Errorf("Store(nil) error = %v", err)
	}

	n := newConcept(t, "Real", "")
	n.ID = "concept:Other"
	if err := x.Store(ctx, n); !errors.Is(err, metamemory.ErrInvalidInput) {
		t.Errorf("Store(mismatched id) error = %v", err)
	}
}

func TestLoad_NotFound(t *testing.T) {
	x := newTestIndex(t)
	_, err := x.Load(context.Background(), "func:nope")
	if !errors.Is(err, metamemory.ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
	if _, err := x.Load(context.Background(), ""); !errors.Is(err, metamemory.ErrMissingInput) {
		t.Errorf("Load(\"\") error = %v", err)
	}
}

// ─── Delete ──────────────────────────────────────────────────────────────────

func TestDelete_RemovesNodeOnly(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	caller := newFunc(t, "caller", "a.c", 1)
	callee := newFunc(t, "callee", "a.c", 10)
	mustStore(t, x, caller)
	mustStore(t, x, callee)
	if _, err := x.LinkBoth(ctx, caller.ID, metamemory.LinkCalls, callee.ID); err != nil {
		t.Fatal(err)
	}

	if err := x.Delete(ctx, callee.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if ok, _ := x.Exists(ctx, callee.ID); ok {
		t.Error("deleted node still exists")
	}
	if err := x.Delete(ctx, callee.ID); !errors.Is(err, metamemory.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}

	// The caller's reference survives; readers skip it.
	links, err := x.GetLinks(ctx, caller.ID, metamemory.LinkCalls)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 {
		t.Errorf("caller links = %v, want the dangling reference kept", links)
	}
	nodes, err := x.LoadMany(ctx, links)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 0 {
		t.Errorf("LoadMany() = %d nodes, want dangling id skipped", len(nodes))
	}

	var orphans int
	if err := x.DB().QueryRow(`SELECT COUNT(*) FROM links WHERE source_id = ?`, callee.ID).Scan(&orphans); err != nil {
		t.Fatal(err)
	}
	if orphans != 0 {
		t.Errorf("deleted node left %d outgoing links", orphans)
	}
}

func TestDeleteByFile(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	mustStore(t, x, newFunc(t, "a1", "a.c", 1))
	mustStore(t, x, newFunc(t, "a2", "a.c", 10))
	mustStore(t, x, newFunc(t, "b1", "b.c", 1))
	if err := x.SetFileHash(ctx, "a.c", "deadbeef"); err != nil {
		t.Fatal(err)
	}

	n, err := x.DeleteByFile(ctx, "a.c")
	if err != nil {
		t.Fatalf("DeleteByFile() error: %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteByFile() = %d, want 2", n)
	}
	if ok, _ := x.Exists(ctx, "func:b1"); !ok {
		t.Error("node from another file was removed")
	}
	if _, err := x.FileHash(ctx, "a.c"); !errors.Is(err, metamemory.ErrNotFound) {
		t.Errorf("FileHash() after delete error = %v, want ErrNotFound", err)
	}

	n, err = x.DeleteByFile(ctx, "missing.c")
	if err != nil || n != 0 {
		t.Errorf("DeleteByFile(missing) = %d, %v", n, err)
	}
}

// ─── Search ──────────────────────────────────────────────────────────────────

func TestSearchConcepts(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	mustStore(t, x, newConcept(t, "Memory", "allocation and pools"))
	mustStore(t, x, newConcept(t, "Allocator", "arena allocation"))
	mustStore(t, x, newConcept(t, "Logging", "writes log lines"))
	mustStore(t, x, newFunc(t, "alloc_block", "mem.c", 1))

	got, err := x.SearchConcepts(ctx, "ALLOC")
	if err != nil {
		t.Fatalf("SearchConcepts() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("SearchConcepts() = %d results, want 2", len(got))
	}
	if got[0].Name != "Allocator" || got[1].Name != "Memory" {
		t.Errorf("order = %s, %s; want by name", got[0].Name, got[1].Name)
	}

	all, err := x.SearchConcepts(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("empty query = %d results, want every concept", len(all))
	}
}

func TestSearchConcepts_Capped(t *testing.T) {
	x := newTestIndexWith(t, index.Config{DataDir: t.TempDir(), MaxConceptResults: 3})
	for i := range 5 {
		mustStore(t, x, newConcept(t, fmt.Sprintf("Topic%d", i), ""))
	}
	got, err := x.SearchConcepts(context.Background(), "topic")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("got %d results, want cap of 3", len(got))
	}
}

func TestSearchCode(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	mustStore(t, x, newFunc(t, "buffer_init", "buf.c", 1))
	mustStore(t, x, newFunc(t, "main", "main.c", 1))
	s, _ := metamemory.NewStruct(testProject, "buffer", "buf.h", 1, 4)
	mustStore(t, x, s)
	mustStore(t, x, newConcept(t, "buffer", "concepts are not code"))

	got, err := x.SearchCode(ctx, "buffer")
	if err != nil {
		t.Fatalf("SearchCode() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("SearchCode() = %d results, want function and struct", len(got))
	}
	if got[0].Name != "buffer" || got[1].Name != "buffer_init" {
		t.Errorf("order = %s, %s", got[0].Name, got[1].Name)
	}

	funcs, err := x.SearchCode(ctx, "buffer", metamemory.TypeFunction)
	if err != nil {
		t.Fatal(err)
	}
	if len(funcs) != 1 || funcs[0].Type != metamemory.TypeFunction {
		t.Errorf("type filter returned %d results", len(funcs))
	}

	// Signatures are searched too.
	bySig, err := x.SearchCode(ctx, "int main(")
	if err != nil {
		t.Fatal(err)
	}
	if len(bySig) != 1 || bySig[0].Name != "main" {
		t.Errorf("signature search = %d results", len(bySig))
	}
}

func TestSearchCode_WildcardsAreLiteral(t *testing.T) {
	x := newTestIndex(t)
	mustStore(t, x, newFunc(t, "plain", "a.c", 1))
	mustStore(t, x, newFunc(t, "with_under", "a.c", 10))

	got, err := x.SearchCode(context.Background(), "%")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("%% matched %d nodes, want none", len(got))
	}
	got, err = x.SearchCode(context.Background(), "h_u")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "with_under" {
		t.Errorf("underscore search = %d results", len(got))
	}
}

func TestSearch_FullText(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	mustStore(t, x, newConcept(t, "Auth", "handles user login", "reset a password"))
	mustStore(t, x, newConcept(t, "Render", "draws frames"))

	got, err := x.Search(ctx, "login", 0)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Auth" {
		t.Errorf("Search(login) = %d results", len(got))
	}
	got, err = x.Search(ctx, "password", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("Search(password) over tasks = %d results", len(got))
	}

	if _, err := x.Search(ctx, "NOT AND OR", 0); err != nil {
		t.Errorf("operators should be quoted, got error: %v", err)
	}
	if _, err := x.Search(ctx, "   ", 0); !errors.Is(err, metamemory.ErrMissingInput) {
		t.Errorf("blank query error = %v", err)
	}

	if err := x.Delete(ctx, "concept:Auth"); err != nil {
		t.Fatal(err)
	}
	got, err = x.Search(ctx, "login", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("deleted node still in full-text results")
	}
}

// ─── Links ───────────────────────────────────────────────────────────────────

func TestLinkBoth(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	c := newConcept(t, "Parsing", "")
	f := newFunc(t, "parse", "p.c", 1)
	mustStore(t, x, c)
	mustStore(t, x, f)

	added, err := x.LinkBoth(ctx, f.ID, metamemory.LinkImplements, c.ID)
	if err != nil || !added {
		t.Fatalf("LinkBoth() = %v, %v, want true", added, err)
	}
	before := mustLoad(t, x, f.ID).UpdatedAt

	// Repeating is a no-op and leaves both nodes untouched.
	defer index.SetNow(func() time.Time { return before.Add(time.Hour) })()
	added, err = x.LinkBoth(ctx, f.ID, metamemory.LinkImplements, c.ID)
	if err != nil || added {
		t.Fatalf("repeat LinkBoth() = %v, %v, want false", added, err)
	}
	if got := mustLoad(t, x, f.ID).UpdatedAt; !got.Equal(before) {
		t.Errorf("repeat LinkBoth() touched %s: %v -> %v", f.ID, before, got)
	}

	if got := mustLoad(t, x, f.ID).Links(metamemory.LinkImplements); len(got) != 1 || got[0] != c.ID {
		t.Errorf("forward = %v", got)
	}
	if got := mustLoad(t, x, c.ID).Links(metamemory.LinkImplementedBy); len(got) != 1 || got[0] != f.ID {
		t.Errorf("inverse = %v", got)
	}

	if _, err := x.LinkBoth(ctx, f.ID, metamemory.LinkCalls, "func:ghost"); !errors.Is(err, metamemory.ErrNotFound) {
		t.Errorf("missing target error = %v", err)
	}
	if _, err := x.LinkBoth(ctx, f.ID, metamemory.LinkIncludes, c.ID); !errors.Is(err, metamemory.ErrInvalidInput) {
		t.Errorf("includes has no inverse, error = %v", err)
	}
}

func TestLinkBoth_FailedCommitLeavesNoHalfLink(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	a := newFunc(t, "a", "x.c", 1)
	b := newFunc(t, "b", "x.c", 10)
	mustStore(t, x, a)
	mustStore(t, x, b)

	boom := errors.New("disk full")
	x.FailCommit(boom)
	_, err := x.LinkBoth(ctx, a.ID, metamemory.LinkCalls, b.ID)
	if !errors.Is(err, boom) || !errors.Is(err, metamemory.ErrStorage) {
		t.Fatalf("LinkBoth() error = %v, want storage failure", err)
	}

	if got := mustLoad(t, x, a.ID).LinkCount(metamemory.LinkCalls); got != 0 {
		t.Errorf("forward link persisted: %d", got)
	}
	if got := mustLoad(t, x, b.ID).LinkCount(metamemory.LinkCalledBy); got != 0 {
		t.Errorf("inverse link persisted: %d", got)
	}
}

func TestAddLink_Capacity(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	hub := newFunc(t, "hub", "hub.c", 1)
	mustStore(t, x, hub)
	for i := range metamemory.MaxLinks {
		if err := x.AddLink(ctx, hub.ID, metamemory.LinkCalls, fmt.Sprintf("func:f%d", i)); err != nil {
			t.Fatalf("AddLink(%d) error: %v", i, err)
		}
	}
	if err := x.AddLink(ctx, hub.ID, metamemory.LinkCalls, "func:overflow"); !errors.Is(err, metamemory.ErrCapacity) {
		t.Errorf("AddLink() past limit error = %v, want ErrCapacity", err)
	}
	if err := x.AddLink(ctx, hub.ID, metamemory.LinkCalls, "func:f0"); err != nil {
		t.Errorf("duplicate on full collection error = %v, want nil", err)
	}
	if err := x.AddLink(ctx, hub.ID, metamemory.LinkUsesTypes, "struct:s"); err != nil {
		t.Errorf("other collection should be unaffected: %v", err)
	}
}

func TestRemoveLink(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	f := newFunc(t, "f", "f.c", 1)
	mustStore(t, x, f)
	if err := x.AddLink(ctx, f.ID, metamemory.LinkIncludes, "file:util.h"); err != nil {
		t.Fatal(err)
	}
	if err := x.RemoveLink(ctx, f.ID, metamemory.LinkIncludes, "file:util.h"); err != nil {
		t.Fatalf("RemoveLink() error: %v", err)
	}
	if err := x.RemoveLink(ctx, f.ID, metamemory.LinkIncludes, "file:util.h"); !errors.Is(err, metamemory.ErrNotFound) {
		t.Errorf("second RemoveLink() error = %v", err)
	}
}

func TestRepairInbound(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	c := newConcept(t, "IO", "")
	f := newFunc(t, "read_all", "io.c", 1)
	mustStore(t, x, c)
	mustStore(t, x, f)
	if _, err := x.LinkBoth(ctx, f.ID, metamemory.LinkImplements, c.ID); err != nil {
		t.Fatal(err)
	}

	// Re-storing the function from a fresh parse drops its outgoing links.
	mustStore(t, x, newFunc(t, "read_all", "io.c", 3))
	if got := mustLoad(t, x, f.ID).LinkCount(metamemory.LinkImplements); got != 0 {
		t.Fatalf("precondition: implements = %d", got)
	}

	added, err := x.RepairInbound(ctx, f.ID)
	if err != nil {
		t.Fatalf("RepairInbound() error: %v", err)
	}
	if added != 1 {
		t.Errorf("RepairInbound() = %d, want 1", added)
	}
	if !mustLoad(t, x, f.ID).HasLink(metamemory.LinkImplements, c.ID) {
		t.Error("implements link not restored")
	}

	again, err := x.RepairInbound(ctx, f.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again != 0 {
		t.Errorf("second RepairInbound() = %d, want 0", again)
	}
}

func TestInbound(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	target := newFunc(t, "target", "t.c", 1)
	mustStore(t, x, target)
	for _, name := range []string{"u1", "u2"} {
		f := newFunc(t, name, "t.c", 10)
		mustStore(t, x, f)
		if _, err := x.LinkBoth(ctx, f.ID, metamemory.LinkCalls, target.ID); err != nil {
			t.Fatal(err)
		}
	}

	in, err := x.Inbound(ctx, target.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(in) != 2 {
		t.Fatalf("Inbound() = %d links, want 2", len(in))
	}
	for _, l := range in {
		if l.Type != metamemory.LinkCalls || l.Target != target.ID {
			t.Errorf("unexpected inbound link %+v", l)
		}
	}
}

// ─── Files, meta, stats ──────────────────────────────────────────────────────

func TestFileHashes(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	if _, err := x.FileHash(ctx, "a.c"); !errors.Is(err, metamemory.ErrNotFound) {
		t.Errorf("FileHash() on empty index error = %v", err)
	}
	if err := x.SetFileHash(ctx, "a.c", "00000001"); err != nil {
		t.Fatal(err)
	}
	if err := x.SetFileHash(ctx, "a.c", "00000002"); err != nil {
		t.Fatal(err)
	}
	if err := x.SetFileHash(ctx, "b.c", "00000003"); err != nil {
		t.Fatal(err)
	}

	h, err := x.FileHash(ctx, "a.c")
	if err != nil || h != "00000002" {
		t.Errorf("FileHash() = %q, %v; want latest hash", h, err)
	}
	all, err := x.FileHashes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all["b.c"] != "00000003" {
		t.Errorf("FileHashes() = %v", all)
	}
}

func TestMeta(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	if v, err := x.Meta(ctx, index.MetaRootPath); err != nil || v != "" {
		t.Errorf("unset Meta() = %q, %v", v, err)
	}
	if v, _ := x.Meta(ctx, index.MetaSchema); v != "1" {
		t.Errorf("schema_version = %q, want 1", v)
	}
	if err := x.SetMeta(ctx, index.MetaRootPath, "/src/demo"); err != nil {
		t.Fatal(err)
	}
	if v, _ := x.Meta(ctx, index.MetaRootPath); v != "/src/demo" {
		t.Errorf("Meta() = %q", v)
	}
}

func TestStats(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	st, err := x.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() on empty index error: %v", err)
	}
	if st.TotalNodes != 0 || st.LinkCount != 0 || st.FileCount != 0 {
		t.Errorf("empty stats = %+v", st)
	}

	c := newConcept(t, "Core", "")
	f := newFunc(t, "start", "core.c", 1)
	s, _ := metamemory.NewStruct(testProject, "state", "core.h", 1, 5)
	file, _ := metamemory.NewNode(metamemory.TypeFile, testProject, "core.c")
	dir, _ := metamemory.NewNode(metamemory.TypeDirectory, testProject, "src")
	for _, n := range []*metamemory.Node{c, f, s, file, dir} {
		mustStore(t, x, n)
	}
	if _, err := x.LinkBoth(ctx, f.ID, metamemory.LinkImplements, c.ID); err != nil {
		t.Fatal(err)
	}
	if err := x.SetFileHash(ctx, "core.c", "0000000f"); err != nil {
		t.Fatal(err)
	}

	st, err = x.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Concepts != 1 || st.Functions != 1 || st.Structs != 1 || st.Components != 2 {
		t.Errorf("per-type counts = %+v", st)
	}
	if st.TotalNodes != 5 || st.LinkCount != 2 || st.FileCount != 1 {
		t.Errorf("totals = %+v", st)
	}
	if st.ByType["function"] != 1 {
		t.Errorf("ByType = %v", st.ByType)
	}
}
