// Package softdev composes the scanner and the graph index into the
// operations an agent asks about a codebase: analyze a tree, find concepts
// and code, follow implementation links and estimate the impact of a change.
package softdev

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/HendryAvila/softdev/internal/index"
	"github.com/HendryAvila/softdev/internal/metamemory"
	"github.com/HendryAvila/softdev/internal/scanner"
)

// ─── Config ──────────────────────────────────────────────────────────────────

// ScanDefaults are applied to every analysis before the per-project
// settings. Exclusions from both are combined.
type ScanDefaults struct {
	ExcludeDirs      []string
	ExcludePatterns  []string
	RespectGitignore bool
	MaxFileSize      int64
	Depth            Depth
}

// Config configures a Service.
type Config struct {
	Index         index.Config
	Scan          ScanDefaults
	WatchDebounce time.Duration
	Logger        *slog.Logger
}

// ─── Service ─────────────────────────────────────────────────────────────────

// Service runs metamemory operations over any number of projects. Each
// project's index is opened on first use and kept until Close. Operations
// that write a project's graph run one at a time per project; reads never
// wait on them.
type Service struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	projects map[string]*index.Index
	writers  map[string]*sync.Mutex
}

// New creates a service. No database is opened until a project is used.
func New(cfg Config) *Service {
	def := index.DefaultConfig()
	if cfg.Index.DataDir == "" {
		cfg.Index.DataDir = def.DataDir
	}
	if cfg.Scan.Depth == 0 {
		cfg.Scan.Depth = DepthFull
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		logger:   logger,
		projects: make(map[string]*index.Index),
		writers:  make(map[string]*sync.Mutex),
	}
}

// DataDir returns the directory holding every project database.
func (s *Service) DataDir() string { return s.cfg.Index.DataDir }

// Close closes every open project index.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for id, x := range s.projects {
		if err := x.Close(); err != nil {
			errs = append(errs, fmt.Errorf("softdev: close %s: %w", id, err))
		}
		delete(s.projects, id)
	}
	return errors.Join(errs...)
}

// open returns the project's index. Unless create is set, a project with
// no database on disk is reported as not found.
func (s *Service) open(projectID string, create bool) (*index.Index, error) {
	if err := index.ValidateProjectID(projectID); err != nil {
		return nil, fmt.Errorf("softdev: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if x, ok := s.projects[projectID]; ok {
		return x, nil
	}
	if !create && !s.hasDatabase(projectID) {
		return nil, fmt.Errorf("softdev: project %s has not been analyzed: %w", projectID, metamemory.ErrNotFound)
	}
	x, err := index.Open(s.cfg.Index, projectID)
	if err != nil {
		return nil, fmt.Errorf("softdev: %w", err)
	}
	s.projects[projectID] = x
	return x, nil
}

// lockWrites blocks until no other write to the project is running and
// returns the matching unlock.
func (s *Service) lockWrites(projectID string) func() {
	s.mu.Lock()
	w, ok := s.writers[projectID]
	if !ok {
		w = new(sync.Mutex)
		s.writers[projectID] = w
	}
	s.mu.Unlock()

	w.Lock()
	return w.Unlock
}

func (s *Service) hasDatabase(projectID string) bool {
	info, err := os.Stat(filepath.Join(index.ProjectDir(s.cfg.Index, projectID), index.DBName))
	return err == nil && info.Mode().IsRegular()
}

// ─── Projects ────────────────────────────────────────────────────────────────

// ProjectInfo describes one indexed project found in the data directory.
type ProjectInfo struct {
	ProjectID string    `json:"project_id"`
	Path      string    `json:"path"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListProjects returns every project with a database under the data
// directory, ordered by ID. A missing data directory yields no projects.
func (s *Service) ListProjects() ([]ProjectInfo, error) {
	entries, err := os.ReadDir(s.cfg.Index.DataDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("softdev: list projects: %w", err)
	}

	var out []ProjectInfo
	for _, e := range entries {
		if !e.IsDir() || index.ValidateProjectID(e.Name()) != nil {
			continue
		}
		dbPath := filepath.Join(s.cfg.Index.DataDir, e.Name(), index.DBName)
		info, err := os.Stat(dbPath)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		out = append(out, ProjectInfo{
			ProjectID: e.Name(),
			Path:      dbPath,
			UpdatedAt: info.ModTime().UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out, nil
}

// ─── Node access ─────────────────────────────────────────────────────────────

// GetNode loads one node with all of its links and attributes.
func (s *Service) GetNode(ctx context.Context, projectID, nodeID string) (*metamemory.Node, error) {
	if nodeID == "" {
		return nil, fmt.Errorf("softdev: node id: %w", metamemory.ErrMissingInput)
	}
	x, err := s.open(projectID, false)
	if err != nil {
		return nil, err
	}
	return x.Load(ctx, nodeID)
}

// newScanner builds a scanner for one project from the stored options.
func (s *Service) newScanner(projectID string, x *index.Index, opts scanOptions) (*scanner.Scanner, error) {
	return scanner.New(projectID, x, scanner.Options{
		ExcludeDirs:      opts.ExcludeDirs,
		ExcludePatterns:  opts.ExcludePatterns,
		RespectGitignore: opts.RespectGitignore,
		StructureOnly:    opts.Depth == DepthStructure,
		MaxFileSize:      opts.MaxFileSize,
		Logger:           s.logger,
	})
}
