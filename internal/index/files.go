package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/HendryAvila/softdev/internal/metamemory"
)

// ─── File hashes ─────────────────────────────────────────────────────────────

// FileHash returns the content hash recorded for path.
func (x *Index) FileHash(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("index: file hash: %w", metamemory.ErrMissingInput)
	}
	var hash string
	err := x.db.QueryRowContext(ctx, `SELECT hash FROM file_hashes WHERE file_path = ?`, path).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("index: file hash %s: %w", path, metamemory.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("index: file hash %s: %w", path, storageErr(err))
	}
	return hash, nil
}

// SetFileHash records the content hash of path, replacing any previous one.
func (x *Index) SetFileHash(ctx context.Context, path, hash string) error {
	if path == "" || hash == "" {
		return fmt.Errorf("index: set file hash: %w", metamemory.ErrMissingInput)
	}
	if _, err := x.execHook(ctx, x.db, `
		INSERT INTO file_hashes (file_path, hash, indexed_at) VALUES (?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET hash = excluded.hash, indexed_at = excluded.indexed_at`,
		path, hash, toUnix(now()),
	); err != nil {
		return fmt.Errorf("index: set file hash %s: %w", path, storageErr(err))
	}
	return nil
}

// FileHashes returns every recorded path and its hash.
func (x *Index) FileHashes(ctx context.Context) (map[string]string, error) {
	rows, err := x.queryHook(ctx, x.db, `SELECT file_path, hash FROM file_hashes`)
	if err != nil {
		return nil, fmt.Errorf("index: file hashes: %w", storageErr(err))
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, fmt.Errorf("index: file hashes: %w", storageErr(err))
		}
		out[path] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: file hashes: %w", storageErr(err))
	}
	return out, nil
}

// ─── Project metadata ────────────────────────────────────────────────────────

// Well-known project_meta keys.
const (
	MetaName          = "name"
	MetaRootPath      = "root_path"
	MetaDepth         = "depth"
	MetaLastAnalyzed  = "last_analyzed"
	MetaLastRefreshed = "last_refreshed"
	MetaLastRunID     = "last_run_id"
	MetaScanOptions   = "scan_options"
	MetaSchema        = "schema_version"
)

// SetMeta stores a project metadata value.
func (x *Index) SetMeta(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("index: set meta: %w", metamemory.ErrMissingInput)
	}
	if _, err := x.execHook(ctx, x.db, `
		INSERT INTO project_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value,
	); err != nil {
		return fmt.Errorf("index: set meta %s: %w", key, storageErr(err))
	}
	return nil
}

// Meta returns a project metadata value, or "" when unset.
func (x *Index) Meta(ctx context.Context, key string) (string, error) {
	var v sql.NullString
	err := x.db.QueryRowContext(ctx, `SELECT value FROM project_meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: meta %s: %w", key, storageErr(err))
	}
	return v.String, nil
}

// ─── Stats ───────────────────────────────────────────────────────────────────

// Stats summarizes the contents of a project index.
type Stats struct {
	ByType     map[string]int `json:"by_type"`
	Concepts   int            `json:"concepts"`
	Components int            `json:"components"`
	Functions  int            `json:"functions"`
	Structs    int            `json:"structs"`
	TotalNodes int            `json:"total_nodes"`
	LinkCount  int            `json:"link_count"`
	FileCount  int            `json:"file_count"`
}

// Stats counts nodes per type, links and tracked files.
func (x *Index) Stats(ctx context.Context) (*Stats, error) {
	rows, err := x.queryHook(ctx, x.db, `SELECT type, COUNT(*) FROM nodes GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("index: stats: %w", storageErr(err))
	}
	st := &Stats{ByType: make(map[string]int)}
	for rows.Next() {
		var typ, count int
		if err := rows.Scan(&typ, &count); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("index: stats: %w", storageErr(err))
		}
		t := metamemory.Type(typ)
		st.ByType[t.String()] = count
		st.TotalNodes += count
		switch {
		case t == metamemory.TypeConcept:
			st.Concepts += count
		case t.IsComponent():
			st.Components += count
		case t == metamemory.TypeFunction:
			st.Functions += count
		case t == metamemory.TypeStruct:
			st.Structs += count
		}
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("index: stats: %w", storageErr(err))
	}

	if err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM links`).Scan(&st.LinkCount); err != nil {
		return nil, fmt.Errorf("index: stats: links: %w", storageErr(err))
	}
	if err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_hashes`).Scan(&st.FileCount); err != nil {
		return nil, fmt.Errorf("index: stats: files: %w", storageErr(err))
	}
	return st, nil
}
