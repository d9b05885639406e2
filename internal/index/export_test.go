package index

import (
	"database/sql"
	"time"
)

// DB exposes the internal *sql.DB for tests in index_test.
func (x *Index) DB() *sql.DB {
	return x.db
}

// FailCommit makes every following commit fail with err.
func (x *Index) FailCommit(err error) {
	x.hooks.commit = func(tx *sql.Tx) error {
		_ = tx.Rollback()
		return err
	}
}

// SetNow replaces the clock for tests and returns a restore func.
func SetNow(fn func() time.Time) func() {
	prev := now
	now = fn
	return func() { now = prev }
}
