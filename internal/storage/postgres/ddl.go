package postgres

import (
	"fmt"
	"strings"

	"ouladload/internal/schema"
)

// typeFor maps a schema column kind to its Postgres SQL type.
func typeFor(k schema.Kind) string {
	switch k {
	case schema.KindInt:
		return "BIGINT"
	case schema.KindReal:
		return "DOUBLE PRECISION"
	case schema.KindBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// createTableSQL renders CREATE TABLE IF NOT EXISTS for tbl. Data tables are
// plain column lists; progress tracking lives in the checkpoint table, not in
// constraints.
func createTableSQL(tbl schema.Table) string {
	cols := make([]string, 0, len(tbl.Columns))
	for _, c := range tbl.Columns {
		def := pgIdent(c.Name) + " " + typeFor(c.Kind)
		if !c.Nullable {
			def += " NOT NULL"
		}
		cols = append(cols, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", pgIdent(tbl.Name), strings.Join(cols, ",\n  "))
}

var progressIdent = pgIdent(schema.ProgressTable)

var (
	sqlProgressDDL = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  "table_name" TEXT PRIMARY KEY,
  "last_committed_batch" BIGINT NOT NULL,
  "updated_at" TIMESTAMPTZ NOT NULL
);`, progressIdent)

	sqlUpsertProgress = fmt.Sprintf(`INSERT INTO %s ("table_name", "last_committed_batch", "updated_at")
VALUES ($1, $2, $3)
ON CONFLICT ("table_name") DO UPDATE SET
  "last_committed_batch" = EXCLUDED."last_committed_batch",
  "updated_at" = EXCLUDED."updated_at"`, progressIdent)

	sqlLastCommitted = fmt.Sprintf(
		`SELECT "last_committed_batch" FROM %s WHERE "table_name" = $1`, progressIdent)

	sqlCheckpoints = fmt.Sprintf(
		`SELECT "table_name", "last_committed_batch", "updated_at" FROM %s ORDER BY "table_name"`, progressIdent)

	sqlDeleteProgress = fmt.Sprintf(
		`DELETE FROM %s WHERE "table_name" = $1`, progressIdent)
)

// sqlTableExists resolves a quoted identifier; to_regclass returns NULL for
// tables that do not exist.
const sqlTableExists = `SELECT to_regclass($1) IS NOT NULL`

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
