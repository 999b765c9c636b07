package sqlite

import (
	"fmt"
	"strings"

	"ouladload/internal/schema"
)

// typeFor maps a schema column kind to its SQLite storage class. Booleans are
// stored as 0/1 integers; SQLite has no native boolean type.
func typeFor(k schema.Kind) string {
	switch k {
	case schema.KindInt:
		return "INTEGER"
	case schema.KindReal:
		return "REAL"
	case schema.KindBool:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func createTableSQL(tbl schema.Table) string {
	cols := make([]string, 0, len(tbl.Columns))
	for _, c := range tbl.Columns {
		def := sqlIdent(c.Name) + " " + typeFor(c.Kind)
		if !c.Nullable {
			def += " NOT NULL"
		}
		cols = append(cols, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", sqlIdent(tbl.Name), strings.Join(cols, ",\n  "))
}

var progressIdent = sqlIdent(schema.ProgressTable)

// Checkpoint timestamps are stored as RFC3339 text; SQLite has no native
// timestamp type either.
var (
	sqlProgressDDL = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  "table_name" TEXT PRIMARY KEY,
  "last_committed_batch" INTEGER NOT NULL,
  "updated_at" TEXT NOT NULL
);`, progressIdent)

	sqlUpsertProgress = fmt.Sprintf(`INSERT INTO %s ("table_name", "last_committed_batch", "updated_at")
VALUES (?, ?, ?)
ON CONFLICT ("table_name") DO UPDATE SET
  "last_committed_batch" = excluded."last_committed_batch",
  "updated_at" = excluded."updated_at"`, progressIdent)

	sqlLastCommitted = fmt.Sprintf(
		`SELECT "last_committed_batch" FROM %s WHERE "table_name" = ?`, progressIdent)

	sqlCheckpoints = fmt.Sprintf(
		`SELECT "table_name", "last_committed_batch", "updated_at" FROM %s ORDER BY "table_name"`, progressIdent)

	sqlDeleteProgress = fmt.Sprintf(
		`DELETE FROM %s WHERE "table_name" = ?`, progressIdent)
)

// sqlTableExists takes the raw (unquoted) table name; sqlite_master stores
// identifiers without quoting.
const sqlTableExists = `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`

// sqlIdent safely quotes a single identifier segment for SQLite.
func sqlIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
