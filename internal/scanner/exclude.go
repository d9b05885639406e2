package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/HendryAvila/softdev/internal/metamemory"
	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultExcludeDirs are directory names never descended into.
var DefaultExcludeDirs = []string{
	".git", ".svn", "node_modules", "build", "bin", "__pycache__",
	".idea", ".vscode", "vendor", "deps",
}

// DefaultExcludePatterns are file patterns never scanned.
var DefaultExcludePatterns = []string{
	"*.min.js", "*.min.css", "*.o", "*.a", "*.so", "*.dylib",
	"*.pyc", "*.pyo",
}

// excluder decides which directories and files the walk skips. Patterns
// are doublestar globs matched against both the base name and the
// slash-separated path relative to the root.
type excluder struct {
	dirs      []string
	patterns  []string
	gitignore *ignore.GitIgnore
}

func newExcluder(root string, dirs, patterns []string, respectGitignore bool) (*excluder, error) {
	e := &excluder{
		dirs:     append(slices.Clone(DefaultExcludeDirs), dirs...),
		patterns: append(slices.Clone(DefaultExcludePatterns), patterns...),
	}
	for _, p := range e.patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Pattern: p}
		}
	}
	if respectGitignore {
		gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
		switch {
		case err == nil:
			e.gitignore = gi
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}
	return e, nil
}

// PatternError reports a malformed exclude pattern.
type PatternError struct {
	Pattern string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("scanner: invalid exclude pattern %q", e.Pattern)
}

func (e *PatternError) Unwrap() error { return metamemory.ErrInvalidInput }

func (e *excluder) skipDir(rel string) bool {
	name := path.Base(rel)
	if slices.Contains(e.dirs, name) || slices.Contains(e.dirs, rel) {
		return true
	}
	return e.gitignore != nil && e.gitignore.MatchesPath(rel+"/")
}

func (e *excluder) skipFile(rel string) bool {
	name := path.Base(rel)
	for _, p := range e.patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
		if strings.Contains(p, "/") {
			if ok, _ := doublestar.Match(p, rel); ok {
				return true
			}
		}
	}
	return e.gitignore != nil && e.gitignore.MatchesPath(rel)
}

// isSource reports whether a file is parsed by the C recognizer.
func isSource(name string) bool {
	return strings.HasSuffix(name, ".c") || strings.HasSuffix(name, ".h")
}
