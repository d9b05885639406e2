package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/softdev/internal/metamemory"
)

const nodeColumns = `
	id, type, project_id, name, COALESCE(purpose, ''),
	COALESCE(file_path, ''), COALESCE(line_start, 0), COALESCE(line_end, 0),
	COALESCE(column_start, 0), COALESCE(column_end, 0),
	COALESCE(signature, ''), COALESCE(return_type, ''), visibility,
	COALESCE(source_hash, ''), created_at, updated_at,
	ci_curated, COALESCE(ci_curated_at, 0), COALESCE(ci_notes, '')`

func validateNode(n *metamemory.Node) error {
	if n == nil {
		return fmt.Errorf("node: %w", metamemory.ErrMissingInput)
	}
	if n.ProjectID == "" || n.Name == "" {
		return fmt.Errorf("node %q: project id and name: %w", n.ID, metamemory.ErrMissingInput)
	}
	want, err := metamemory.MakeID(n.Type, n.Name)
	if err != nil {
		return err
	}
	if n.ID != want {
		return fmt.Errorf("node id %q does not match type %s and name %q: %w",
			n.ID, n.Type, n.Name, metamemory.ErrInvalidInput)
	}
	return nil
}

// Store upserts a node. Any existing node with the same ID is replaced
// along with all of its links, tasks, params and fields. The whole
// replacement runs in one transaction.
func (x *Index) Store(ctx context.Context, n *metamemory.Node) (err error) {
	if err := validateNode(n); err != nil {
		return fmt.Errorf("index: store: %w", err)
	}
	ctx, done := x.observe(ctx, "Store")
	defer func() { done(1, err) }()

	tx, err := x.beginTxHook(ctx)
	if err != nil {
		return fmt.Errorf("index: store %s: begin transaction: %w", n.ID, storageErr(err))
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := x.execHook(ctx, tx, `
		INSERT INTO nodes (
			id, type, project_id, name, purpose, file_path,
			line_start, line_end, column_start, column_end,
			signature, return_type, visibility, source_hash,
			created_at, updated_at, ci_curated, ci_curated_at, ci_notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			project_id = excluded.project_id,
			name = excluded.name,
			purpose = excluded.purpose,
			file_path = excluded.file_path,
			line_start = excluded.line_start,
			line_end = excluded.line_end,
			column_start = excluded.column_start,
			column_end = excluded.column_end,
			signature = excluded.signature,
			return_type = excluded.return_type,
			visibility = excluded.visibility,
			source_hash = excluded.source_hash,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			ci_curated = excluded.ci_curated,
			ci_curated_at = excluded.ci_curated_at,
			ci_notes = excluded.ci_notes`,
		n.ID, int(n.Type), n.ProjectID, n.Name, nullableString(n.Purpose),
		nullableString(n.Location.FilePath),
		n.Location.LineStart, n.Location.LineEnd, n.Location.ColumnStart, n.Location.ColumnEnd,
		nullableString(n.Signature), nullableString(n.ReturnType), int(n.Visibility),
		nullableString(n.SourceHash),
		toUnix(n.CreatedAt), toUnix(n.UpdatedAt), boolInt(n.Curated), nullableUnix(n.CuratedAt),
		nullableString(n.Notes),
	); err != nil {
		return fmt.Errorf("index: store %s: %w", n.ID, storageErr(err))
	}

	for _, table := range []string{"links", "tasks", "params", "fields", "nodes_fts"} {
		col := "node_id"
		if table == "links" {
			col = "source_id"
		}
		if _, err := x.execHook(ctx, tx, `DELETE FROM `+table+` WHERE `+col+` = ?`, n.ID); err != nil {
			return fmt.Errorf("index: store %s: clear %s: %w", n.ID, table, storageErr(err))
		}
	}

	for _, lt := range metamemory.AllLinkTypes() {
		for _, target := range n.Links(lt) {
			if _, err := x.execHook(ctx, tx,
				`INSERT OR IGNORE INTO links (source_id, link_type, target_id) VALUES (?, ?, ?)`,
				n.ID, lt.String(), target,
			); err != nil {
				return fmt.Errorf("index: store %s: link %s: %w", n.ID, lt, storageErr(err))
			}
		}
	}

	tasks := n.Tasks()
	for i, task := range tasks {
		if _, err := x.execHook(ctx, tx,
			`INSERT INTO tasks (node_id, task_index, task) VALUES (?, ?, ?)`, n.ID, i, task,
		); err != nil {
			return fmt.Errorf("index: store %s: task: %w", n.ID, storageErr(err))
		}
	}

	for i, p := range n.Params() {
		if _, err := x.execHook(ctx, tx,
			`INSERT INTO params (node_id, param_index, name, type, description) VALUES (?, ?, ?, ?, ?)`,
			n.ID, i, p.Name, p.Type, nullableString(p.Description),
		); err != nil {
			return fmt.Errorf("index: store %s: param: %w", n.ID, storageErr(err))
		}
	}

	for i, f := range n.Fields() {
		if _, err := x.execHook(ctx, tx,
			`INSERT INTO fields (node_id, field_index, name, type) VALUES (?, ?, ?, ?)`,
			n.ID, i, f.Name, f.Type,
		); err != nil {
			return fmt.Errorf("index: store %s: field: %w", n.ID, storageErr(err))
		}
	}

	if _, err := x.execHook(ctx, tx,
		`INSERT INTO nodes_fts (node_id, name, purpose, tasks) VALUES (?, ?, ?, ?)`,
		n.ID, n.Name, n.Purpose, strings.Join(tasks, "\n"),
	); err != nil {
		return fmt.Errorf("index: store %s: fts: %w", n.ID, storageErr(err))
	}

	if err := x.commitHook(tx); err != nil {
		return fmt.Errorf("index: store %s: commit: %w", n.ID, storageErr(err))
	}
	return nil
}

// Load reconstructs a node with every related collection. Each facet is
// fetched by its own query.
func (x *Index) Load(ctx context.Context, id string) (n *metamemory.Node, err error) {
	if id == "" {
		return nil, fmt.Errorf("index: load: %w", metamemory.ErrMissingInput)
	}
	ctx, done := x.observe(ctx, "Load")
	defer func() { done(1, err) }()

	n, err = x.loadScalars(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := x.loadLinks(ctx, n); err != nil {
		return nil, err
	}
	if err := x.loadTasks(ctx, n); err != nil {
		return nil, err
	}
	if err := x.loadParams(ctx, n); err != nil {
		return nil, err
	}
	if err := x.loadFields(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (x *Index) loadScalars(ctx context.Context, id string) (*metamemory.Node, error) {
	rows, err := x.queryHook(ctx, x.db, `SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("index: load %s: %w", id, storageErr(err))
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("index: load %s: %w", id, storageErr(err))
		}
		return nil, fmt.Errorf("index: node %s: %w", id, metamemory.ErrNotFound)
	}
	n, err := scanNode(rows)
	if err != nil {
		return nil, fmt.Errorf("index: load %s: %w", id, storageErr(err))
	}
	return n, nil
}

func scanNode(rows *sql.Rows) (*metamemory.Node, error) {
	var (
		n                           metamemory.Node
		typ, vis, curated           int
		created, updated, curatedAt int64
	)
	if err := rows.Scan(
		&n.ID, &typ, &n.ProjectID, &n.Name, &n.Purpose,
		&n.Location.FilePath, &n.Location.LineStart, &n.Location.LineEnd,
		&n.Location.ColumnStart, &n.Location.ColumnEnd,
		&n.Signature, &n.ReturnType, &vis,
		&n.SourceHash, &created, &updated,
		&curated, &curatedAt, &n.Notes,
	); err != nil {
		return nil, err
	}
	n.Type = metamemory.Type(typ)
	n.Visibility = metamemory.Visibility(vis)
	n.CreatedAt = fromUnix(created)
	n.UpdatedAt = fromUnix(updated)
	n.Curated = curated != 0
	n.CuratedAt = fromUnix(curatedAt)
	return &n, nil
}

func (x *Index) loadLinks(ctx context.Context, n *metamemory.Node) error {
	rows, err := x.queryHook(ctx, x.db,
		`SELECT link_type, target_id FROM links WHERE source_id = ? ORDER BY rowid`, n.ID)
	if err != nil {
		return fmt.Errorf("index: load %s links: %w", n.ID, storageErr(err))
	}
	defer rows.Close()

	for rows.Next() {
		var token, target string
		if err := rows.Scan(&token, &target); err != nil {
			return fmt.Errorf("index: load %s links: %w", n.ID, storageErr(err))
		}
		lt, err := metamemory.ParseLinkType(token)
		if err != nil {
			return fmt.Errorf("index: load %s links: %w", n.ID, err)
		}
		if err := n.AddLink(lt, target); err != nil {
			return fmt.Errorf("index: load %s links: %w", n.ID, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("index: load %s links: %w", n.ID, storageErr(err))
	}
	return nil
}

func (x *Index) loadTasks(ctx context.Context, n *metamemory.Node) error {
	rows, err := x.queryHook(ctx, x.db,
		`SELECT task FROM tasks WHERE node_id = ? ORDER BY task_index`, n.ID)
	if err != nil {
		return fmt.Errorf("index: load %s tasks: %w", n.ID, storageErr(err))
	}
	defer rows.Close()

	for rows.Next() {
		var task string
		if err := rows.Scan(&task); err != nil {
			return fmt.Errorf("index: load %s tasks: %w", n.ID, storageErr(err))
		}
		if err := n.AddTask(task); err != nil {
			return fmt.Errorf("index: load %s tasks: %w", n.ID, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("index: load %s tasks: %w", n.ID, storageErr(err))
	}
	return nil
}

func (x *Index) loadParams(ctx context.Context, n *metamemory.Node) error {
	rows, err := x.queryHook(ctx, x.db,
		`SELECT name, type, COALESCE(description, '') FROM params WHERE node_id = ? ORDER BY param_index`, n.ID)
	if err != nil {
		return fmt.Errorf("index: load %s params: %w", n.ID, storageErr(err))
	}
	defer rows.Close()

	for rows.Next() {
		var p metamemory.Param
		if err := rows.Scan(&p.Name, &p.Type, &p.Description); err != nil {
			return fmt.Errorf("index: load %s params: %w", n.ID, storageErr(err))
		}
		if err := n.AddParam(p); err != nil {
			return fmt.Errorf("index: load %s params: %w", n.ID, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("index: load %s params: %w", n.ID, storageErr(err))
	}
	return nil
}

func (x *Index) loadFields(ctx context.Context, n *metamemory.Node) error {
	rows, err := x.queryHook(ctx, x.db,
		`SELECT name, type FROM fields WHERE node_id = ? ORDER BY field_index`, n.ID)
	if err != nil {
		return fmt.Errorf("index: load %s fields: %w", n.ID, storageErr(err))
	}
	defer rows.Close()

	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return fmt.Errorf("index: load %s fields: %w", n.ID, storageErr(err))
		}
		if err := n.AddField(name, typ); err != nil {
			return fmt.Errorf("index: load %s fields: %w", n.ID, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("index: load %s fields: %w", n.ID, storageErr(err))
	}
	return nil
}

// LoadMany loads every ID, skipping IDs that no longer resolve to a node.
// Dangling references are tolerated here rather than pruned on delete.
func (x *Index) LoadMany(ctx context.Context, ids []string) ([]*metamemory.Node, error) {
	out := make([]*metamemory.Node, 0, len(ids))
	for _, id := range ids {
		n, err := x.Load(ctx, id)
		if errors.Is(err, metamemory.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Exists reports whether a node with the given ID is stored.
func (x *Index) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := x.db.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("index: exists %s: %w", id, storageErr(err))
	}
	return true, nil
}

// Delete removes a node and its own links, tasks, params and fields.
// References to id held by other nodes are left in place.
func (x *Index) Delete(ctx context.Context, id string) (err error) {
	if id == "" {
		return fmt.Errorf("index: delete: %w", metamemory.ErrMissingInput)
	}
	ctx, done := x.observe(ctx, "Delete")
	defer func() { done(1, err) }()

	tx, err := x.beginTxHook(ctx)
	if err != nil {
		return fmt.Errorf("index: delete %s: begin transaction: %w", id, storageErr(err))
	}
	defer tx.Rollback() //nolint:errcheck

	n, err := x.deleteWhere(ctx, tx, `id = ?`, id)
	if err != nil {
		return fmt.Errorf("index: delete %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("index: node %s: %w", id, metamemory.ErrNotFound)
	}
	if err := x.commitHook(tx); err != nil {
		return fmt.Errorf("index: delete %s: commit: %w", id, storageErr(err))
	}
	return nil
}

// DeleteByFile removes every node located in path together with the
// file's hash record. It returns the number of nodes removed.
func (x *Index) DeleteByFile(ctx context.Context, path string) (removed int, err error) {
	if path == "" {
		return 0, fmt.Errorf("index: delete by file: %w", metamemory.ErrMissingInput)
	}
	ctx, done := x.observe(ctx, "DeleteByFile")
	defer func() { done(removed, err) }()

	tx, err := x.beginTxHook(ctx)
	if err != nil {
		return 0, fmt.Errorf("index: delete by file %s: begin transaction: %w", path, storageErr(err))
	}
	defer tx.Rollback() //nolint:errcheck

	removed, err = x.deleteWhere(ctx, tx, `file_path = ?`, path)
	if err != nil {
		return 0, fmt.Errorf("index: delete by file %s: %w", path, err)
	}
	if _, err := x.execHook(ctx, tx, `DELETE FROM file_hashes WHERE file_path = ?`, path); err != nil {
		return 0, fmt.Errorf("index: delete by file %s: hash: %w", path, storageErr(err))
	}
	if err := x.commitHook(tx); err != nil {
		return 0, fmt.Errorf("index: delete by file %s: commit: %w", path, storageErr(err))
	}
	return removed, nil
}

// deleteWhere removes matching nodes and their dependent rows. Child rows
// are deleted explicitly so the result does not depend on the connection's
// foreign key setting.
func (x *Index) deleteWhere(ctx context.Context, tx *sql.Tx, where string, arg any) (int, error) {
	sub := `(SELECT id FROM nodes WHERE ` + where + `)`
	children := []string{
		`DELETE FROM links  WHERE source_id IN ` + sub,
		`DELETE FROM tasks  WHERE node_id   IN ` + sub,
		`DELETE FROM params WHERE node_id   IN ` + sub,
		`DELETE FROM fields WHERE node_id   IN ` + sub,
	}
	for _, q := range children {
		if _, err := x.execHook(ctx, tx, q, arg); err != nil {
			return 0, storageErr(err)
		}
	}
	res, err := x.execHook(ctx, tx, `DELETE FROM nodes WHERE `+where, arg)
	if err != nil {
		return 0, storageErr(err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
