package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/softdev/internal/metamemory"
)

// SearchConcepts returns concepts whose name or purpose contains query,
// case-insensitively, ordered by name. An empty query lists every concept.
func (x *Index) SearchConcepts(ctx context.Context, query string) (out []*metamemory.Node, err error) {
	ctx, done := x.observe(ctx, "SearchConcepts")
	defer func() { done(len(out), err) }()

	ids, err := x.selectIDs(ctx, `
		SELECT id FROM nodes
		WHERE type = ?
		  AND (name LIKE ? ESCAPE '\' OR COALESCE(purpose, '') LIKE ? ESCAPE '\')
		ORDER BY name, id
		LIMIT ?`,
		int(metamemory.TypeConcept), likePattern(query), likePattern(query), x.cfg.MaxConceptResults)
	if err != nil {
		return nil, fmt.Errorf("index: search concepts: %w", err)
	}
	return x.LoadMany(ctx, ids)
}

// SearchCode returns code nodes whose name or signature contains query,
// case-insensitively, ordered by name. Without types it searches functions
// and structs.
func (x *Index) SearchCode(ctx context.Context, query string, types ...metamemory.Type) (out []*metamemory.Node, err error) {
	if query == "" {
		return nil, fmt.Errorf("index: search code: query: %w", metamemory.ErrMissingInput)
	}
	if len(types) == 0 {
		types = []metamemory.Type{metamemory.TypeFunction, metamemory.TypeStruct}
	}
	ctx, done := x.observe(ctx, "SearchCode")
	defer func() { done(len(out), err) }()

	marks := make([]string, len(types))
	args := make([]any, 0, len(types)+3)
	for i, t := range types {
		if !t.Valid() {
			return nil, fmt.Errorf("index: search code: %v: %w", t, metamemory.ErrInvalidInput)
		}
		marks[i] = "?"
		args = append(args, int(t))
	}
	args = append(args, likePattern(query), likePattern(query), x.cfg.MaxCodeResults)

	ids, err := x.selectIDs(ctx, `
		SELECT id FROM nodes
		WHERE type IN (`+strings.Join(marks, ", ")+`)
		  AND (name LIKE ? ESCAPE '\' OR COALESCE(signature, '') LIKE ? ESCAPE '\')
		ORDER BY name, id
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search code: %w", err)
	}
	return x.LoadMany(ctx, ids)
}

// Search runs a full-text query over names, purposes and typical tasks,
// ordered by relevance.
func (x *Index) Search(ctx context.Context, query string, limit int) (out []*metamemory.Node, err error) {
	q := sanitizeFTS(query)
	if q == "" {
		return nil, fmt.Errorf("index: search: query: %w", metamemory.ErrMissingInput)
	}
	if limit <= 0 || limit > x.cfg.MaxSearchResults {
		limit = x.cfg.MaxSearchResults
	}
	ctx, done := x.observe(ctx, "Search")
	defer func() { done(len(out), err) }()

	ids, err := x.selectIDs(ctx, `
		SELECT node_id FROM nodes_fts
		WHERE nodes_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, q, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return x.LoadMany(ctx, ids)
}

// NodesByFile returns the IDs of every node located in path, ordered by
// line.
func (x *Index) NodesByFile(ctx context.Context, path string) ([]string, error) {
	ids, err := x.selectIDs(ctx,
		`SELECT id FROM nodes WHERE file_path = ? ORDER BY COALESCE(line_start, 0), id`, path)
	if err != nil {
		return nil, fmt.Errorf("index: nodes by file %s: %w", path, err)
	}
	return ids, nil
}

// NodesByType returns the IDs of every node of type t, ordered by name.
func (x *Index) NodesByType(ctx context.Context, t metamemory.Type) ([]string, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("index: nodes by type: %v: %w", t, metamemory.ErrInvalidInput)
	}
	ids, err := x.selectIDs(ctx, `SELECT id FROM nodes WHERE type = ? ORDER BY name, id`, int(t))
	if err != nil {
		return nil, fmt.Errorf("index: nodes by type %s: %w", t, err)
	}
	return ids, nil
}

// selectIDs drains a single-column result before returning so callers can
// issue further queries on the same connection.
func (x *Index) selectIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := x.queryHook(ctx, x.db, query, args...)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return ids, nil
}
