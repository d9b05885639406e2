// Package scanner walks a source tree, fingerprints C files and turns the
// definitions it recognizes into graph nodes.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/HendryAvila/softdev/internal/metamemory"
)

// DefaultMaxFileSize is the largest file the scanner reads.
const DefaultMaxFileSize = 10 << 20

// maxErrorMessages caps the per-file messages kept in a Result.
const maxErrorMessages = 10

// Store is the part of the graph index the scanner writes to.
type Store interface {
	FileHash(ctx context.Context, path string) (string, error)
	FileHashes(ctx context.Context) (map[string]string, error)
	SetFileHash(ctx context.Context, path, hash string) error
	DeleteByFile(ctx context.Context, path string) (int, error)
	Store(ctx context.Context, n *metamemory.Node) error
	Exists(ctx context.Context, id string) (bool, error)
}

// Options tunes a Scanner.
type Options struct {
	// ExcludeDirs and ExcludePatterns extend the defaults.
	ExcludeDirs      []string
	ExcludePatterns  []string
	RespectGitignore bool
	// StructureOnly records directory and file nodes without parsing or
	// hashing file contents.
	StructureOnly bool
	MaxFileSize   int64
	Logger        *slog.Logger
}

// Scanner indexes the source files of one project.
type Scanner struct {
	projectID string
	store     Store
	opts      Options
	logger    *slog.Logger
}

// Result aggregates one scan.
type Result struct {
	DirectoriesScanned int
	// FilesScanned counts files parsed and indexed; unchanged files are
	// counted in FilesSkipped instead.
	FilesScanned      int
	FilesSkipped      int
	FunctionsFound    int
	StructsFound      int
	ErrorsEncountered int
	Errors            []string
	// Seen lists every source file visited, relative to the root.
	Seen []string
	// Stored lists the IDs of every node written.
	Stored []string
	// Parsed holds the outline of every file that was re-indexed.
	Parsed []*File
	// ParseDuration is the time spent in Parse, a part of Duration.
	ParseDuration time.Duration
	Duration      time.Duration
}

func (r *Result) addError(rel string, err error) {
	r.ErrorsEncountered++
	if len(r.Errors) < maxErrorMessages {
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", rel, err))
	}
}

// Changes lists source files whose content differs from the index.
type Changes struct {
	Modified []string `json:"modified,omitempty"`
	Added    []string `json:"added,omitempty"`
	Removed  []string `json:"removed,omitempty"`
}

// Count returns the number of changed files.
func (c *Changes) Count() int {
	return len(c.Modified) + len(c.Added) + len(c.Removed)
}

// New creates a scanner writing nodes of projectID into store.
func New(projectID string, store Store, opts Options) (*Scanner, error) {
	if projectID == "" || store == nil {
		return nil, fmt.Errorf("scanner: project and store: %w", metamemory.ErrMissingInput)
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{projectID: projectID, store: store, opts: opts, logger: logger}, nil
}

// ScanProject walks root and indexes every changed source file. Per-file
// failures are counted in the result and the walk continues; a missing or
// non-directory root fails the whole scan.
func (s *Scanner) ScanProject(ctx context.Context, root string) (*Result, error) {
	start := time.Now()
	root, err := checkRoot(root)
	if err != nil {
		return nil, err
	}
	excl, err := newExcluder(root, s.opts.ExcludeDirs, s.opts.ExcludePatterns, s.opts.RespectGitignore)
	if err != nil {
		return nil, fmt.Errorf("scanner: %w", err)
	}

	s.logger.Info("scanning project", "project", s.projectID, "root", root)

	r := &Result{}
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		rel = filepath.ToSlash(rel)
		if walkErr != nil {
			if p == root {
				return walkErr
			}
			r.addError(rel, walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if excl.skipDir(rel) {
				return filepath.SkipDir
			}
			r.DirectoriesScanned++
			s.ensureComponent(ctx, metamemory.TypeDirectory, rel, r)
			return nil
		}
		if !d.Type().IsRegular() || !isSource(d.Name()) || excl.skipFile(rel) {
			return nil
		}
		r.Seen = append(r.Seen, rel)
		s.scanFile(ctx, root, rel, r)
		return nil
	})
	r.Duration = time.Since(start)
	if err != nil {
		return r, fmt.Errorf("scanner: walk %s: %w", root, err)
	}

	s.logger.Info("scan complete",
		"project", s.projectID,
		"dirs", r.DirectoriesScanned,
		"files", r.FilesScanned,
		"skipped", r.FilesSkipped,
		"functions", r.FunctionsFound,
		"structs", r.StructsFound,
		"errors", r.ErrorsEncountered,
		"duration", r.Duration)
	return r, nil
}

// ScanFile indexes a single source file given relative to root. The
// file's parent directories get component nodes like in a full scan.
func (s *Scanner) ScanFile(ctx context.Context, root, rel string) (*Result, error) {
	start := time.Now()
	root, err := checkRoot(root)
	if err != nil {
		return nil, err
	}
	rel, err = cleanRel(rel)
	if err != nil {
		return nil, err
	}
	if !isSource(rel) {
		return nil, fmt.Errorf("scanner: %s is not a C source file: %w", rel, metamemory.ErrInvalidInput)
	}
	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("scanner: %s: %w", rel, metamemory.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanner: %s: %w", rel, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("scanner: %s is not a regular file: %w", rel, metamemory.ErrInvalidInput)
	}

	r := &Result{}
	for dir := path.Dir(rel); dir != "."; dir = path.Dir(dir) {
		s.ensureComponent(ctx, metamemory.TypeDirectory, dir, r)
	}
	r.Seen = append(r.Seen, rel)
	s.scanFile(ctx, root, rel, r)
	r.Duration = time.Since(start)
	return r, nil
}

// Changed compares the tree under root against the recorded hashes
// without writing anything. Files over MaxFileSize are ignored as the
// scan ignores them.
func (s *Scanner) Changed(ctx context.Context, root string) (*Changes, error) {
	root, err := checkRoot(root)
	if err != nil {
		return nil, err
	}
	excl, err := newExcluder(root, s.opts.ExcludeDirs, s.opts.ExcludePatterns, s.opts.RespectGitignore)
	if err != nil {
		return nil, fmt.Errorf("scanner: %w", err)
	}
	known, err := s.store.FileHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanner: %w", err)
	}

	c := &Changes{}
	seen := make(map[string]bool)
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if p == root {
				return walkErr
			}
			return nil
		}
		rel, _ := filepath.Rel(root, p)
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if excl.skipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !isSource(d.Name()) || excl.skipFile(rel) {
			return nil
		}
		seen[rel] = true
		// Oversized files are never indexed, so they cannot be stale.
		if info, err := d.Info(); err != nil || info.Size() > s.opts.MaxFileSize {
			return nil
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return nil
		}
		old, ok := known[rel]
		switch {
		case !ok:
			c.Added = append(c.Added, rel)
		case old != Hash(content):
			c.Modified = append(c.Modified, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanner: walk %s: %w", root, err)
	}
	for rel := range known {
		if !seen[rel] {
			c.Removed = append(c.Removed, rel)
		}
	}
	slices.Sort(c.Removed)
	return c, nil
}

// scanFile re-indexes one file when its content hash changed.
func (s *Scanner) scanFile(ctx context.Context, root, rel string, r *Result) {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil {
		r.addError(rel, err)
		return
	}
	if info.Size() > s.opts.MaxFileSize {
		r.addError(rel, fmt.Errorf("file is %d bytes, limit %d: %w", info.Size(), s.opts.MaxFileSize, metamemory.ErrCapacity))
		return
	}
	if s.opts.StructureOnly {
		s.ensureComponent(ctx, metamemory.TypeFile, rel, r)
		return
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		r.addError(rel, err)
		return
	}
	hash := Hash(content)

	stored, err := s.store.FileHash(ctx, rel)
	switch {
	case err == nil && stored == hash:
		r.FilesSkipped++
		s.logger.Debug("file unchanged", "path", rel)
		return
	case err == nil:
		if _, err := s.store.DeleteByFile(ctx, rel); err != nil {
			r.addError(rel, err)
			return
		}
	case !errors.Is(err, metamemory.ErrNotFound):
		r.addError(rel, err)
		return
	}

	parseStart := time.Now()
	f := Parse(content)
	r.ParseDuration += time.Since(parseStart)
	f.Path = rel
	f.Hash = hash
	s.storeFile(ctx, f, content, r)

	if err := s.store.SetFileHash(ctx, rel, hash); err != nil {
		r.addError(rel, err)
		return
	}
	r.FilesScanned++
	r.Parsed = append(r.Parsed, f)
	s.logger.Debug("file indexed",
		"path", rel,
		"functions", len(f.Functions),
		"structs", len(f.Structs))
}

func (s *Scanner) storeFile(ctx context.Context, f *File, content []byte, r *Result) {
	fileNode, err := metamemory.NewNode(metamemory.TypeFile, s.projectID, f.Path)
	if err != nil {
		r.addError(f.Path, err)
		return
	}
	fileNode.Location = metamemory.Location{FilePath: f.Path, LineStart: 1, LineEnd: lineCount(content)}
	fileNode.SourceHash = f.Hash
	s.put(ctx, fileNode, r)

	for _, fn := range f.Functions {
		n, err := functionNode(s.projectID, f, fn)
		if err != nil {
			r.addError(f.Path, err)
			continue
		}
		if s.put(ctx, n, r) {
			r.FunctionsFound++
		}
	}
	for _, st := range f.Structs {
		n, err := structNode(s.projectID, f, st)
		if err != nil {
			r.addError(f.Path, err)
			continue
		}
		if s.put(ctx, n, r) {
			r.StructsFound++
		}
	}
}

func functionNode(projectID string, f *File, fn Function) (*metamemory.Node, error) {
	n, err := metamemory.NewFunction(projectID, fn.Name, f.Path, fn.LineStart, fn.LineEnd, fn.Signature)
	if err != nil {
		return nil, err
	}
	n.Location.ColumnStart = fn.Column
	n.Location.ColumnEnd = fn.Column + len(fn.Name)
	n.ReturnType = fn.ReturnType
	n.SourceHash = f.Hash
	n.Visibility = metamemory.VisibilityPublic
	if fn.Static {
		n.Visibility = metamemory.VisibilityInternal
	}
	for _, p := range fn.Params {
		if err := n.AddParam(p); err != nil {
			break
		}
	}
	return n, nil
}

func structNode(projectID string, f *File, st Struct) (*metamemory.Node, error) {
	n, err := metamemory.NewStruct(projectID, st.Name, f.Path, st.LineStart, st.LineEnd)
	if err != nil {
		return nil, err
	}
	n.Location.ColumnStart = st.Column
	n.Location.ColumnEnd = st.Column + len(st.Name)
	n.SourceHash = f.Hash
	n.Visibility = metamemory.VisibilityPublic
	for _, fd := range st.Fields {
		if err := n.AddField(fd.Name, fd.Type); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (s *Scanner) put(ctx context.Context, n *metamemory.Node, r *Result) bool {
	if err := s.store.Store(ctx, n); err != nil {
		r.addError(n.Location.FilePath, err)
		return false
	}
	r.Stored = append(r.Stored, n.ID)
	return true
}

// ensureComponent stores a directory or file node unless it already
// exists, so links held by existing component nodes survive a re-scan.
func (s *Scanner) ensureComponent(ctx context.Context, t metamemory.Type, rel string, r *Result) {
	id, err := metamemory.MakeID(t, rel)
	if err != nil {
		r.addError(rel, err)
		return
	}
	ok, err := s.store.Exists(ctx, id)
	if err != nil {
		r.addError(rel, err)
		return
	}
	if ok {
		return
	}
	n, err := metamemory.NewNode(t, s.projectID, rel)
	if err != nil {
		r.addError(rel, err)
		return
	}
	n.Location.FilePath = rel
	s.put(ctx, n, r)
}

func checkRoot(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("scanner: root: %w", metamemory.ErrMissingInput)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("scanner: root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("scanner: root %s: %w: %w", root, metamemory.ErrInvalidInput, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("scanner: root %s is not a directory: %w", root, metamemory.ErrInvalidInput)
	}
	return abs, nil
}

// cleanRel normalizes a root-relative path and rejects paths leaving the root.
func cleanRel(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("scanner: file: %w", metamemory.ErrMissingInput)
	}
	rel = path.Clean(filepath.ToSlash(rel))
	if path.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("scanner: file %s is outside the project: %w", rel, metamemory.ErrInvalidInput)
	}
	return rel, nil
}

func lineCount(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := strings.Count(string(content), "\n")
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}
