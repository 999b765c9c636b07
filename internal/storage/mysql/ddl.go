package mysql

import (
	"fmt"
	"strings"

	"ouladload/internal/schema"
)

// typeFor maps a schema column kind to its MySQL SQL type.
func typeFor(k schema.Kind) string {
	switch k {
	case schema.KindInt:
		return "BIGINT"
	case schema.KindReal:
		return "DOUBLE"
	case schema.KindBool:
		return "TINYINT(1)"
	default:
		return "TEXT"
	}
}

func createTableSQL(tbl schema.Table) string {
	cols := make([]string, 0, len(tbl.Columns))
	for _, c := range tbl.Columns {
		def := myIdent(c.Name) + " " + typeFor(c.Kind)
		if !c.Nullable {
			def += " NOT NULL"
		}
		cols = append(cols, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", myIdent(tbl.Name), strings.Join(cols, ",\n  "))
}

var progressIdent = myIdent(schema.ProgressTable)

// The checkpoint key is VARCHAR rather than TEXT; MySQL refuses TEXT primary
// keys without an explicit prefix length.
var (
	sqlProgressDDL = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  `+"`table_name`"+` VARCHAR(128) PRIMARY KEY,
  `+"`last_committed_batch`"+` BIGINT NOT NULL,
  `+"`updated_at`"+` DATETIME(6) NOT NULL
);`, progressIdent)

	sqlUpsertProgress = fmt.Sprintf(`INSERT INTO %s (`+"`table_name`, `last_committed_batch`, `updated_at`"+`)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE
  `+"`last_committed_batch`"+` = VALUES(`+"`last_committed_batch`"+`),
  `+"`updated_at`"+` = VALUES(`+"`updated_at`"+`)`, progressIdent)

	sqlLastCommitted = fmt.Sprintf(
		"SELECT `last_committed_batch` FROM %s WHERE `table_name` = ?", progressIdent)

	sqlCheckpoints = fmt.Sprintf(
		"SELECT `table_name`, `last_committed_batch`, `updated_at` FROM %s ORDER BY `table_name`", progressIdent)

	sqlDeleteProgress = fmt.Sprintf(
		"DELETE FROM %s WHERE `table_name` = ?", progressIdent)
)

// sqlTableExists takes the raw table name and checks the current database.
const sqlTableExists = `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`

// myIdent safely quotes a single identifier segment for MySQL.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }
