// Package index implements the durable graph index for a single project.
//
// It uses SQLite with FTS5 full-text search. Nodes live in one table and
// every ordered or relational facet (links, tasks, params, fields) in its
// own table keyed by node ID, so limits can be enforced in SQL without
// loading the whole graph.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/HendryAvila/softdev/internal/metamemory"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// DBName is the file name of every project database.
const DBName = "metamemory.db"

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds index configuration shared by every project.
type Config struct {
	// DataDir is the root under which each project gets its own directory.
	DataDir           string
	MaxConceptResults int
	MaxCodeResults    int
	MaxSearchResults  int
}

// DefaultConfig returns the default configuration rooted in the user's
// home directory.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:           filepath.Join(home, ".softdev"),
		MaxConceptResults: 50,
		MaxCodeResults:    100,
		MaxSearchResults:  20,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.MaxConceptResults <= 0 {
		c.MaxConceptResults = def.MaxConceptResults
	}
	if c.MaxCodeResults <= 0 {
		c.MaxCodeResults = def.MaxCodeResults
	}
	if c.MaxSearchResults <= 0 {
		c.MaxSearchResults = def.MaxSearchResults
	}
	return c
}

var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateProjectID rejects IDs that cannot safely name a directory.
func ValidateProjectID(id string) error {
	if id == "" {
		return fmt.Errorf("project id: %w", metamemory.ErrMissingInput)
	}
	if !projectIDPattern.MatchString(id) || id == "." || id == ".." {
		return fmt.Errorf("project id %q: %w", id, metamemory.ErrInvalidInput)
	}
	return nil
}

// ProjectDir returns the directory holding a project's database.
func ProjectDir(cfg Config, projectID string) string {
	return filepath.Join(cfg.withDefaults().DataDir, projectID)
}

// ─── Index ───────────────────────────────────────────────────────────────────

// Index is the persistent graph of one project backed by SQLite + FTS5.
type Index struct {
	db        *sql.DB
	cfg       Config
	projectID string
	path      string
	hooks     storeHooks
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type storeHooks struct {
	exec    func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error)
	query   func(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error)
	beginTx func(ctx context.Context, db *sql.DB) (*sql.Tx, error)
	commit  func(tx *sql.Tx) error
}

func (x *Index) execHook(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
	if x.hooks.exec != nil {
		return x.hooks.exec(ctx, db, query, args...)
	}
	return db.ExecContext(ctx, query, args...)
}

func (x *Index) queryHook(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error) {
	if x.hooks.query != nil {
		return x.hooks.query(ctx, db, query, args...)
	}
	return db.QueryContext(ctx, query, args...)
}

func (x *Index) beginTxHook(ctx context.Context) (*sql.Tx, error) {
	if x.hooks.beginTx != nil {
		return x.hooks.beginTx(ctx, x.db)
	}
	return x.db.BeginTx(ctx, nil)
}

func (x *Index) commitHook(tx *sql.Tx) error {
	if x.hooks.commit != nil {
		return x.hooks.commit(tx)
	}
	return tx.Commit()
}

// Open opens (or creates) the index of projectID under cfg.DataDir.
// It creates the project directory if needed, opens SQLite in WAL mode
// and runs migrations.
func Open(cfg Config, projectID string) (*Index, error) {
	cfg = cfg.withDefaults()
	if err := ValidateProjectID(projectID); err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}

	dir := ProjectDir(cfg, projectID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("index: create project dir: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	dbPath := filepath.Join(dir, DBName)
	dsn := dbPath +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)"
	db, err := openDB("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("index: open database: %w", storageErr(err))
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("index: open database: %w", storageErr(err))
	}

	x := &Index{db: db, cfg: cfg, projectID: projectID, path: dbPath}
	if err := x.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("index: migration: %w", storageErr(err))
	}
	return x, nil
}

// Close closes the underlying database connection.
func (x *Index) Close() error {
	return x.db.Close()
}

// ProjectID returns the project this index belongs to.
func (x *Index) ProjectID() string { return x.projectID }

// Path returns the database file path.
func (x *Index) Path() string { return x.path }

// ─── Migrations ──────────────────────────────────────────────────────────────

func (x *Index) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS nodes (
			id            TEXT    PRIMARY KEY,
			type          INTEGER NOT NULL,
			project_id    TEXT    NOT NULL,
			name          TEXT    NOT NULL,
			purpose       TEXT,
			file_path     TEXT,
			line_start    INTEGER,
			line_end      INTEGER,
			column_start  INTEGER,
			column_end    INTEGER,
			signature     TEXT,
			return_type   TEXT,
			visibility    INTEGER NOT NULL DEFAULT 0,
			source_hash   TEXT,
			created_at    INTEGER NOT NULL,
			updated_at    INTEGER NOT NULL,
			ci_curated    INTEGER NOT NULL DEFAULT 0,
			ci_curated_at INTEGER,
			ci_notes      TEXT
		);

		CREATE TABLE IF NOT EXISTS links (
			source_id TEXT NOT NULL,
			link_type TEXT NOT NULL,
			target_id TEXT NOT NULL,
			PRIMARY KEY (source_id, link_type, target_id),
			FOREIGN KEY (source_id) REFERENCES nodes(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS tasks (
			node_id    TEXT    NOT NULL,
			task_index INTEGER NOT NULL,
			task       TEXT    NOT NULL,
			PRIMARY KEY (node_id, task_index),
			FOREIGN KEY (node_id) REFERENCES nodes(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS params (
			node_id     TEXT    NOT NULL,
			param_index INTEGER NOT NULL,
			name        TEXT    NOT NULL,
			type        TEXT    NOT NULL,
			description TEXT,
			PRIMARY KEY (node_id, param_index),
			FOREIGN KEY (node_id) REFERENCES nodes(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS fields (
			node_id     TEXT    NOT NULL,
			field_index INTEGER NOT NULL,
			name        TEXT    NOT NULL,
			type        TEXT    NOT NULL,
			PRIMARY KEY (node_id, field_index),
			FOREIGN KEY (node_id) REFERENCES nodes(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS file_hashes (
			file_path  TEXT    PRIMARY KEY,
			hash       TEXT    NOT NULL,
			indexed_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS project_meta (
			key   TEXT PRIMARY KEY,
			value TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_nodes_project ON nodes(project_id);
		CREATE INDEX IF NOT EXISTS idx_nodes_type    ON nodes(type);
		CREATE INDEX IF NOT EXISTS idx_nodes_file    ON nodes(file_path);
		CREATE INDEX IF NOT EXISTS idx_links_target  ON links(target_id);
		CREATE INDEX IF NOT EXISTS idx_links_type    ON links(link_type);

		CREATE VIRTUAL TABLE IF NOT EXISTS nodes_fts USING fts5(
			node_id UNINDEXED,
			name,
			purpose,
			tasks
		);
	`
	if _, err := x.execHook(ctx, x.db, schema); err != nil {
		return err
	}

	// FTS rows follow node deletion, including bulk deletes by file.
	var name string
	err := x.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='trigger' AND name='nodes_fts_delete'",
	).Scan(&name)
	if err == sql.ErrNoRows {
		trigger := `
			CREATE TRIGGER nodes_fts_delete AFTER DELETE ON nodes BEGIN
				DELETE FROM nodes_fts WHERE node_id = old.id;
			END;
		`
		if _, err := x.execHook(ctx, x.db, trigger); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	_, err = x.execHook(ctx, x.db,
		`INSERT OR IGNORE INTO project_meta (key, value) VALUES ('schema_version', '1')`)
	return err
}
