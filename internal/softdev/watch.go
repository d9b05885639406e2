package softdev

import (
	"context"
	"errors"

	"github.com/HendryAvila/softdev/internal/index"
	"github.com/HendryAvila/softdev/internal/metamemory"
	"github.com/HendryAvila/softdev/internal/scanner"
)

// Watch keeps an analyzed project current until ctx is done: changed
// source files are re-indexed and deleted ones removed, with the same
// relationship passes an analysis runs.
func (s *Service) Watch(ctx context.Context, projectID string) error {
	x, err := s.open(projectID, false)
	if err != nil {
		return err
	}
	root, opts, err := s.loadProject(ctx, x)
	if err != nil {
		return err
	}
	merged := s.merge(opts)

	sc, err := s.newScanner(projectID, x, merged)
	if err != nil {
		return err
	}
	w, err := scanner.NewWatcher(scanner.WatcherConfig{
		Root:             root,
		ExcludeDirs:      merged.ExcludeDirs,
		ExcludePatterns:  merged.ExcludePatterns,
		RespectGitignore: merged.RespectGitignore,
		DebounceDelay:    s.cfg.WatchDebounce,
		Logger:           s.logger,
	})
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Start(ctx); err != nil {
		return err
	}
	s.logger.Info("watching project", "project", projectID, "root", root, "depth", opts.Depth.String())

	for ev := range w.Events() {
		unlock := s.lockWrites(projectID)
		err := s.apply(ctx, x, sc, root, opts.Depth, ev)
		unlock()
		if err != nil {
			s.logger.Warn("failed to apply file change",
				"project", projectID,
				"path", ev.Path,
				"op", string(ev.Op),
				"error", err)
		}
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// apply indexes one watch event.
func (s *Service) apply(ctx context.Context, x *index.Index, sc *scanner.Scanner, root string, depth Depth, ev scanner.WatchEvent) error {
	if ev.Op == scanner.OpRemove {
		n, err := x.DeleteByFile(ctx, ev.Path)
		if err != nil {
			return err
		}
		s.logger.Info("file removed from index", "path", ev.Path, "nodes", n)
		return nil
	}

	r, err := sc.ScanFile(ctx, root, ev.Path)
	if errors.Is(err, metamemory.ErrNotFound) {
		// Deleted between the event and the scan.
		_, err = x.DeleteByFile(ctx, ev.Path)
		return err
	}
	if err != nil {
		return err
	}

	var errs []error
	fail := func(err error) { errs = append(errs, err) }
	for _, id := range r.Stored {
		if _, err := x.RepairInbound(ctx, id); err != nil {
			fail(err)
		}
	}
	if depth >= DepthRelationships {
		s.relate(ctx, x, r.Parsed, fail)
	}
	if depth >= DepthFull {
		s.inferConcepts(ctx, x, r.Seen, fail)
	}
	for _, msg := range r.Errors {
		errs = append(errs, errors.New(msg))
	}

	s.logger.Info("file re-indexed",
		"path", ev.Path,
		"functions", r.FunctionsFound,
		"structs", r.StructsFound,
		"skipped", r.FilesSkipped > 0)
	return errors.Join(errs...)
}
