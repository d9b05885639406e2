package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/softdev/internal/metamemory"
)

// Link is one stored edge of the graph.
type Link struct {
	Source string
	Type   metamemory.LinkType
	Target string
}

// GetLinks returns the targets of id's outgoing links of the given types,
// in insertion order. With no types every collection is read.
func (x *Index) GetLinks(ctx context.Context, id string, types ...metamemory.LinkType) ([]string, error) {
	if id == "" {
		return nil, fmt.Errorf("index: get links: %w", metamemory.ErrMissingInput)
	}
	query := `SELECT target_id FROM links WHERE source_id = ?`
	args := []any{id}
	if len(types) > 0 {
		marks := make([]string, len(types))
		for i, t := range types {
			if !t.Valid() {
				return nil, fmt.Errorf("index: get links: %v: %w", t, metamemory.ErrInvalidInput)
			}
			marks[i] = "?"
			args = append(args, t.String())
		}
		query += ` AND link_type IN (` + strings.Join(marks, ", ") + `)`
	}
	query += ` ORDER BY rowid`

	rows, err := x.queryHook(ctx, x.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: get links %s: %w", id, storageErr(err))
	}
	defer rows.Close()

	var out []string
	seen := make(map[string]bool)
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("index: get links %s: %w", id, storageErr(err))
		}
		if !seen[target] {
			seen[target] = true
			out = append(out, target)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: get links %s: %w", id, storageErr(err))
	}
	return out, nil
}

// Inbound returns every stored link whose target is id.
func (x *Index) Inbound(ctx context.Context, id string) ([]Link, error) {
	rows, err := x.queryHook(ctx, x.db,
		`SELECT source_id, link_type, target_id FROM links WHERE target_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("index: inbound %s: %w", id, storageErr(err))
	}
	defer rows.Close()

	var out []Link
	for rows.Next() {
		var l Link
		var token string
		if err := rows.Scan(&l.Source, &token, &l.Target); err != nil {
			return nil, fmt.Errorf("index: inbound %s: %w", id, storageErr(err))
		}
		lt, err := metamemory.ParseLinkType(token)
		if err != nil {
			return nil, fmt.Errorf("index: inbound %s: %w", id, err)
		}
		l.Type = lt
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: inbound %s: %w", id, storageErr(err))
	}
	return out, nil
}

// AddLink records a single directed link from source to target. The
// source must exist; the target need not.
func (x *Index) AddLink(ctx context.Context, source string, t metamemory.LinkType, target string) error {
	_, err := x.addLink(ctx, source, t, target)
	return err
}

func (x *Index) addLink(ctx context.Context, source string, t metamemory.LinkType, target string) (bool, error) {
	if source == "" || target == "" {
		return false, fmt.Errorf("index: add link: %w", metamemory.ErrMissingInput)
	}
	if !t.Valid() {
		return false, fmt.Errorf("index: add link: %v: %w", t, metamemory.ErrInvalidInput)
	}
	tx, err := x.beginTxHook(ctx)
	if err != nil {
		return false, fmt.Errorf("index: add link: begin transaction: %w", storageErr(err))
	}
	defer tx.Rollback() //nolint:errcheck

	if err := x.requireNode(ctx, tx, source); err != nil {
		return false, fmt.Errorf("index: add link: %w", err)
	}
	added, err := x.insertLink(ctx, tx, source, t, target)
	if err != nil {
		return false, fmt.Errorf("index: add link: %w", err)
	}
	if err := x.commitHook(tx); err != nil {
		return false, fmt.Errorf("index: add link: commit: %w", storageErr(err))
	}
	return added, nil
}

// LinkBoth records from -t-> to together with its inverse to -t'-> from,
// in one transaction. Both nodes must exist and t must have an inverse.
// It reports whether either side was newly written; nodes are only
// touched when something changed.
func (x *Index) LinkBoth(ctx context.Context, from string, t metamemory.LinkType, to string) (added bool, err error) {
	if from == "" || to == "" {
		return false, fmt.Errorf("index: link: %w", metamemory.ErrMissingInput)
	}
	inv, ok := t.Inverse()
	if !ok {
		return false, fmt.Errorf("index: link: %v has no inverse: %w", t, metamemory.ErrInvalidInput)
	}
	ctx, done := x.observe(ctx, "LinkBoth")
	defer func() { done(2, err) }()

	tx, err := x.beginTxHook(ctx)
	if err != nil {
		return false, fmt.Errorf("index: link: begin transaction: %w", storageErr(err))
	}
	defer tx.Rollback() //nolint:errcheck

	for _, id := range []string{from, to} {
		if err := x.requireNode(ctx, tx, id); err != nil {
			return false, fmt.Errorf("index: link: %w", err)
		}
	}
	forward, err := x.insertLink(ctx, tx, from, t, to)
	if err != nil {
		return false, fmt.Errorf("index: link %s -> %s: %w", from, to, err)
	}
	inverse, err := x.insertLink(ctx, tx, to, inv, from)
	if err != nil {
		return false, fmt.Errorf("index: link %s -> %s: %w", to, from, err)
	}
	if !forward && !inverse {
		return false, nil
	}

	ts := toUnix(now())
	for _, id := range []string{from, to} {
		if _, err := x.execHook(ctx, tx, `UPDATE nodes SET updated_at = ? WHERE id = ?`, ts, id); err != nil {
			return false, fmt.Errorf("index: link: touch %s: %w", id, storageErr(err))
		}
	}
	if err := x.commitHook(tx); err != nil {
		return false, fmt.Errorf("index: link: commit: %w", storageErr(err))
	}
	return true, nil
}

// RemoveLink deletes one directed link.
func (x *Index) RemoveLink(ctx context.Context, source string, t metamemory.LinkType, target string) error {
	if !t.Valid() {
		return fmt.Errorf("index: remove link: %v: %w", t, metamemory.ErrInvalidInput)
	}
	res, err := x.execHook(ctx, x.db,
		`DELETE FROM links WHERE source_id = ? AND link_type = ? AND target_id = ?`,
		source, t.String(), target)
	if err != nil {
		return fmt.Errorf("index: remove link: %w", storageErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index: link %s %s %s: %w", source, t, target, metamemory.ErrNotFound)
	}
	return nil
}

// RepairInbound restores the inverse links of id after it was replaced by
// Store. For every surviving node that still links to id, the matching
// inverse link back to that node is re-added. Collections that are full
// are left as they are. It returns the number of links added.
func (x *Index) RepairInbound(ctx context.Context, id string) (int, error) {
	inbound, err := x.Inbound(ctx, id)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, l := range inbound {
		inv, ok := l.Type.Inverse()
		if !ok || l.Source == id {
			continue
		}
		inserted, err := x.addLink(ctx, id, inv, l.Source)
		if errors.Is(err, metamemory.ErrCapacity) {
			continue
		}
		if err != nil {
			return added, err
		}
		if inserted {
			added++
		}
	}
	return added, nil
}

type rowQueryer interface {
	queryer
	execer
}

func (x *Index) requireNode(ctx context.Context, db rowQueryer, id string) error {
	rows, err := x.queryHook(ctx, db, `SELECT 1 FROM nodes WHERE id = ?`, id)
	if err != nil {
		return storageErr(err)
	}
	found := rows.Next()
	rerr := rows.Err()
	_ = rows.Close()
	if rerr != nil {
		return storageErr(rerr)
	}
	if !found {
		return fmt.Errorf("node %s: %w", id, metamemory.ErrNotFound)
	}
	return nil
}

// insertLink adds a link unless it already exists, enforcing MaxLinks per
// collection.
func (x *Index) insertLink(ctx context.Context, db rowQueryer, source string, t metamemory.LinkType, target string) (bool, error) {
	rows, err := x.queryHook(ctx, db, `
		SELECT COUNT(*), COALESCE(SUM(target_id = ?), 0)
		FROM links WHERE source_id = ? AND link_type = ?`,
		target, source, t.String())
	if err != nil {
		return false, storageErr(err)
	}
	var count, present int
	if rows.Next() {
		err = rows.Scan(&count, &present)
	}
	if rerr := rows.Err(); err == nil {
		err = rerr
	}
	_ = rows.Close()
	if err != nil {
		return false, storageErr(err)
	}

	if present > 0 {
		return false, nil
	}
	if count >= metamemory.MaxLinks {
		return false, fmt.Errorf("%s %s: %w", source, t, metamemory.ErrCapacity)
	}
	if _, err := x.execHook(ctx, db,
		`INSERT OR IGNORE INTO links (source_id, link_type, target_id) VALUES (?, ?, ?)`,
		source, t.String(), target,
	); err != nil {
		return false, storageErr(err)
	}
	return true, nil
}
