package softdev

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HendryAvila/softdev/internal/index"
	"github.com/HendryAvila/softdev/internal/metamemory"
	"github.com/HendryAvila/softdev/internal/scanner"
)

// maxErrorSummary caps the messages joined into AnalysisResult.ErrorSummary.
const maxErrorSummary = 5

// ProjectConfig describes one analysis request.
type ProjectConfig struct {
	ProjectID string
	RootPath  string
	// Name is a display name; it defaults to ProjectID.
	Name string
	// Depth defaults to the service's configured depth.
	Depth            Depth
	ExcludeDirs      []string
	ExcludePatterns  []string
	RespectGitignore bool
	MaxFileSize      int64
}

// scanOptions is the per-project part of a ProjectConfig kept in the
// index so a refresh repeats the same analysis.
type scanOptions struct {
	Depth            Depth    `json:"-"`
	ExcludeDirs      []string `json:"exclude_dirs,omitempty"`
	ExcludePatterns  []string `json:"exclude_patterns,omitempty"`
	RespectGitignore bool     `json:"respect_gitignore,omitempty"`
	MaxFileSize      int64    `json:"max_file_size,omitempty"`
}

// AnalysisResult summarizes one analysis or refresh.
type AnalysisResult struct {
	ProjectID   string `json:"project_id"`
	RunID       string `json:"run_id"`
	Depth       string `json:"depth"`
	Directories int    `json:"directories"`
	// Files counts every source file visited; FilesIndexed those whose
	// content changed and were parsed again.
	Files             int    `json:"files"`
	FilesIndexed      int    `json:"files_indexed"`
	FilesSkipped      int    `json:"files_skipped"`
	FilesRemoved      int    `json:"files_removed,omitempty"`
	Functions         int    `json:"functions"`
	Structs           int    `json:"structs"`
	Concepts          int    `json:"concepts"`
	Links             int    `json:"links"`
	LinksRepaired     int    `json:"links_repaired"`
	ErrorsEncountered int    `json:"errors_encountered"`
	ErrorSummary      string `json:"error_summary,omitempty"`
	ScanTimeMS        int64  `json:"scan_time_ms"`
	ParseTimeMS       int64  `json:"parse_time_ms"`
	IndexTimeMS       int64  `json:"index_time_ms"`
}

// AnalyzeProject scans the project tree and builds its graph up to the
// configured depth. Re-running it only re-parses files whose content
// changed. The configuration is stored for later refreshes.
func (s *Service) AnalyzeProject(ctx context.Context, cfg ProjectConfig) (res *AnalysisResult, err error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("softdev: analyze: root path: %w", metamemory.ErrMissingInput)
	}
	root, err := filepath.Abs(cfg.RootPath)
	if err != nil {
		return nil, fmt.Errorf("softdev: analyze: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("softdev: analyze: root %s is not a directory: %w", cfg.RootPath, metamemory.ErrInvalidInput)
	}
	if cfg.Depth == 0 {
		cfg.Depth = s.cfg.Scan.Depth
	}
	if _, ok := depthNames[cfg.Depth]; !ok {
		return nil, fmt.Errorf("softdev: analyze: %v: %w", cfg.Depth, metamemory.ErrInvalidInput)
	}

	x, err := s.open(cfg.ProjectID, true)
	if err != nil {
		return nil, err
	}
	defer s.lockWrites(cfg.ProjectID)()
	ctx, done := observe(ctx, "AnalyzeProject", cfg.ProjectID)
	defer func() { done(err) }()

	opts := scanOptions{
		Depth:            cfg.Depth,
		ExcludeDirs:      cfg.ExcludeDirs,
		ExcludePatterns:  cfg.ExcludePatterns,
		RespectGitignore: cfg.RespectGitignore,
		MaxFileSize:      cfg.MaxFileSize,
	}
	res, err = s.run(ctx, x, root, opts, false)
	if err != nil {
		return nil, err
	}

	name := cfg.Name
	if name == "" {
		name = cfg.ProjectID
	}
	if err := s.saveProject(ctx, x, name, root, opts, index.MetaLastAnalyzed, res.RunID); err != nil {
		return nil, err
	}
	return res, nil
}

// Refresh repeats the stored analysis of a project and removes the nodes
// of source files that no longer exist.
func (s *Service) Refresh(ctx context.Context, projectID string) (res *AnalysisResult, err error) {
	x, err := s.open(projectID, false)
	if err != nil {
		return nil, err
	}
	defer s.lockWrites(projectID)()
	ctx, done := observe(ctx, "Refresh", projectID)
	defer func() { done(err) }()

	root, opts, err := s.loadProject(ctx, x)
	if err != nil {
		return nil, err
	}
	res, err = s.run(ctx, x, root, opts, true)
	if err != nil {
		return nil, err
	}
	name, err := x.Meta(ctx, index.MetaName)
	if err != nil {
		return nil, err
	}
	if err := s.saveProject(ctx, x, name, root, opts, index.MetaLastRefreshed, res.RunID); err != nil {
		return nil, err
	}
	return res, nil
}

// run scans root and applies the post-scan passes enabled by the depth.
func (s *Service) run(ctx context.Context, x *index.Index, root string, opts scanOptions, prune bool) (*AnalysisResult, error) {
	projectID := x.ProjectID()
	sc, err := s.newScanner(projectID, x, s.merge(opts))
	if err != nil {
		return nil, err
	}
	r, err := sc.ScanProject(ctx, root)
	if err != nil {
		return nil, err
	}

	res := &AnalysisResult{
		ProjectID:         projectID,
		RunID:             uuid.NewString(),
		Depth:             opts.Depth.String(),
		Directories:       r.DirectoriesScanned,
		Files:             len(r.Seen),
		FilesIndexed:      r.FilesScanned,
		FilesSkipped:      r.FilesSkipped,
		Functions:         r.FunctionsFound,
		Structs:           r.StructsFound,
		ErrorsEncountered: r.ErrorsEncountered,
		ScanTimeMS:        r.Duration.Milliseconds(),
		ParseTimeMS:       r.ParseDuration.Milliseconds(),
	}
	errs := slices.Clone(r.Errors)
	fail := func(err error) {
		res.ErrorsEncountered++
		errs = append(errs, err.Error())
	}

	start := time.Now()
	if prune {
		removed, err := s.prune(ctx, x, r.Seen)
		if err != nil {
			return nil, err
		}
		res.FilesRemoved = removed
	}
	for _, id := range r.Stored {
		n, err := x.RepairInbound(ctx, id)
		if err != nil {
			fail(err)
			continue
		}
		res.LinksRepaired += n
	}
	if opts.Depth >= DepthRelationships {
		res.Links += s.relate(ctx, x, r.Parsed, fail)
	}
	if opts.Depth >= DepthFull {
		created, links := s.inferConcepts(ctx, x, r.Seen, fail)
		res.Concepts += created
		res.Links += links
	}
	res.IndexTimeMS = time.Since(start).Milliseconds()

	if len(errs) > maxErrorSummary {
		errs = errs[:maxErrorSummary]
	}
	res.ErrorSummary = strings.Join(errs, "; ")
	recordAnalysis(ctx, res)

	s.logger.Info("analysis complete",
		"project", projectID,
		"run_id", res.RunID,
		"depth", res.Depth,
		"files", res.Files,
		"indexed", res.FilesIndexed,
		"removed", res.FilesRemoved,
		"links", res.Links,
		"concepts", res.Concepts,
		"errors", res.ErrorsEncountered)
	return res, nil
}

// merge combines the service defaults with a project's own options.
func (s *Service) merge(opts scanOptions) scanOptions {
	def := s.cfg.Scan
	out := opts
	out.ExcludeDirs = append(slices.Clone(def.ExcludeDirs), opts.ExcludeDirs...)
	out.ExcludePatterns = append(slices.Clone(def.ExcludePatterns), opts.ExcludePatterns...)
	out.RespectGitignore = def.RespectGitignore || opts.RespectGitignore
	if out.MaxFileSize <= 0 {
		out.MaxFileSize = def.MaxFileSize
	}
	return out
}

// ─── Post-scan passes ────────────────────────────────────────────────────────

// prune deletes the nodes and hashes of files that were not seen by the
// latest walk.
func (s *Service) prune(ctx context.Context, x *index.Index, seen []string) (int, error) {
	known, err := x.FileHashes(ctx)
	if err != nil {
		return 0, err
	}
	fileIDs, err := x.NodesByType(ctx, metamemory.TypeFile)
	if err != nil {
		return 0, err
	}
	candidates := make(map[string]bool, len(known)+len(fileIDs))
	for p := range known {
		candidates[p] = true
	}
	for _, id := range fileIDs {
		if _, name, err := metamemory.SplitID(id); err == nil {
			candidates[name] = true
		}
	}
	for _, p := range seen {
		delete(candidates, p)
	}

	gone := make([]string, 0, len(candidates))
	for p := range candidates {
		gone = append(gone, p)
	}
	sort.Strings(gone)
	for _, p := range gone {
		n, err := x.DeleteByFile(ctx, p)
		if err != nil {
			return 0, err
		}
		s.logger.Debug("removed vanished file", "path", p, "nodes", n)
	}
	return len(gone), nil
}

// relate links the functions of freshly parsed files to the functions
// they call and the structs they use, and records quoted includes.
// Targets that are not in the index are skipped.
func (s *Service) relate(ctx context.Context, x *index.Index, files []*scanner.File, fail func(error)) int {
	links := 0
	link := func(from string, t metamemory.LinkType, to string) {
		ok, err := s.linkExisting(ctx, x, from, t, to)
		if err != nil {
			fail(err)
		}
		if ok {
			links++
		}
	}

	for _, f := range files {
		for _, fn := range f.Functions {
			src, err := metamemory.MakeID(metamemory.TypeFunction, fn.Name)
			if err != nil {
				continue
			}
			for _, callee := range fn.Calls {
				if dst, err := metamemory.MakeID(metamemory.TypeFunction, callee); err == nil {
					link(src, metamemory.LinkCalls, dst)
				}
			}
			for _, ref := range fn.TypeRefs() {
				if dst, err := metamemory.MakeID(metamemory.TypeStruct, ref); err == nil {
					link(src, metamemory.LinkUsesTypes, dst)
				}
			}
		}

		fileID, err := metamemory.MakeID(metamemory.TypeFile, f.Path)
		if err != nil {
			continue
		}
		for _, inc := range f.Includes {
			target, ok := s.resolveInclude(ctx, x, f.Path, inc)
			if !ok {
				continue
			}
			if err := x.AddLink(ctx, fileID, metamemory.LinkIncludes, target); err != nil {
				if !errors.Is(err, metamemory.ErrCapacity) {
					fail(err)
				}
				continue
			}
			links++
		}
	}
	return links
}

// linkExisting links from and to in both directions when both nodes are
// indexed and reports whether a link was written. Full link collections
// are skipped.
func (s *Service) linkExisting(ctx context.Context, x *index.Index, from string, t metamemory.LinkType, to string) (bool, error) {
	ok, err := x.Exists(ctx, to)
	if err != nil || !ok {
		return false, err
	}
	added, err := x.LinkBoth(ctx, from, t, to)
	switch {
	case err == nil:
		return added, nil
	case errors.Is(err, metamemory.ErrNotFound):
		return false, nil
	case errors.Is(err, metamemory.ErrCapacity):
		s.logger.Debug("link skipped", "from", from, "type", t.String(), "to", to, "error", err)
		return false, nil
	default:
		return false, err
	}
}

// resolveInclude finds the indexed file an include names, first relative
// to the including file and then relative to the root.
func (s *Service) resolveInclude(ctx context.Context, x *index.Index, from, inc string) (string, bool) {
	for _, p := range []string{path.Join(path.Dir(from), inc), path.Clean(inc)} {
		if p == ".." || strings.HasPrefix(p, "../") {
			continue
		}
		id, err := metamemory.MakeID(metamemory.TypeFile, p)
		if err != nil {
			continue
		}
		if ok, err := x.Exists(ctx, id); err == nil && ok {
			return id, true
		}
	}
	return "", false
}

// inferConcepts ensures a concept for every top-level directory holding
// source files and links it to that directory and its files. Existing
// concepts are kept as they are. It returns the concepts created and the
// links written.
func (s *Service) inferConcepts(ctx context.Context, x *index.Index, seen []string, fail func(error)) (created, links int) {
	groups := make(map[string][]string)
	for _, p := range seen {
		top, _, ok := strings.Cut(p, "/")
		if !ok {
			continue
		}
		groups[top] = append(groups[top], p)
	}
	dirs := make([]string, 0, len(groups))
	for d := range groups {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	for _, dir := range dirs {
		concept, err := metamemory.NewConcept(x.ProjectID(), dir, fmt.Sprintf("Code under %s/", dir), nil)
		if err != nil {
			fail(err)
			continue
		}
		exists, err := x.Exists(ctx, concept.ID)
		if err != nil {
			fail(err)
			continue
		}
		if !exists {
			if err := x.Store(ctx, concept); err != nil {
				fail(err)
				continue
			}
			created++
		}

		targets := []string{metamemory.TypeDirectory.Prefix() + ":" + dir}
		for _, p := range groups[dir] {
			targets = append(targets, metamemory.TypeFile.Prefix()+":"+p)
		}
		for _, target := range targets {
			ok, err := s.linkExisting(ctx, x, concept.ID, metamemory.LinkImplements, target)
			if err != nil {
				fail(err)
			}
			if ok {
				links++
			}
		}
	}
	return created, links
}

// ─── Stored project settings ─────────────────────────────────────────────────

func (s *Service) saveProject(ctx context.Context, x *index.Index, name, root string, opts scanOptions, stampKey, runID string) error {
	raw, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("softdev: encode scan options: %w", err)
	}
	values := [][2]string{
		{index.MetaName, name},
		{index.MetaRootPath, root},
		{index.MetaDepth, opts.Depth.String()},
		{index.MetaScanOptions, string(raw)},
		{stampKey, time.Now().UTC().Format(time.RFC3339)},
		{index.MetaLastRunID, runID},
	}
	for _, kv := range values {
		if err := x.SetMeta(ctx, kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

// loadProject returns the root and options stored by the last analysis.
func (s *Service) loadProject(ctx context.Context, x *index.Index) (string, scanOptions, error) {
	var opts scanOptions
	root, err := x.Meta(ctx, index.MetaRootPath)
	if err != nil {
		return "", opts, err
	}
	if root == "" {
		return "", opts, fmt.Errorf("softdev: project %s has no stored root: %w", x.ProjectID(), metamemory.ErrNotFound)
	}
	depth, err := x.Meta(ctx, index.MetaDepth)
	if err != nil {
		return "", opts, err
	}
	raw, err := x.Meta(ctx, index.MetaScanOptions)
	if err != nil {
		return "", opts, err
	}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			return "", opts, fmt.Errorf("softdev: decode scan options: %w", err)
		}
	}
	opts.Depth, err = ParseDepth(depth)
	if err != nil {
		return "", opts, fmt.Errorf("softdev: stored depth: %w", err)
	}
	return root, opts, nil
}
