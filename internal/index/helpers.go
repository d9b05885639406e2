package index

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/softdev/internal/metamemory"
)

// now is a package-level var to allow deterministic timestamps in tests.
var now = func() time.Time { return time.Now().UTC().Truncate(time.Second) }

// storageErr tags a database failure with metamemory.ErrStorage while
// keeping the driver error in the chain.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", metamemory.ErrStorage, err)
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Times are stored as unix seconds. Zero means "not set".
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func nullableUnix(t time.Time) sql.NullInt64 {
	return sql.NullInt64{Int64: toUnix(t), Valid: !t.IsZero()}
}

func fromUnix(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// sanitizeFTS wraps each word in quotes so FTS5 treats it as a literal.
// "fix auth bug" -> `"fix" "auth" "bug"`
func sanitizeFTS(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		w = strings.Trim(w, `"`)
		words[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"`
	}
	return strings.Join(words, " ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a substring LIKE pattern for use with ESCAPE '\'.
func likePattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}
