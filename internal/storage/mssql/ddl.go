package mssql

import (
	"fmt"
	"strings"

	"ouladload/internal/schema"
)

// typeFor maps a schema column kind to its SQL Server type.
func typeFor(k schema.Kind) string {
	switch k {
	case schema.KindInt:
		return "BIGINT"
	case schema.KindReal:
		return "FLOAT"
	case schema.KindBool:
		return "BIT"
	default:
		return "NVARCHAR(MAX)"
	}
}

// createTableSQL guards with OBJECT_ID; SQL Server has no CREATE TABLE IF NOT
// EXISTS.
func createTableSQL(tbl schema.Table) string {
	cols := make([]string, 0, len(tbl.Columns))
	for _, c := range tbl.Columns {
		def := msIdent(c.Name) + " " + typeFor(c.Kind)
		if !c.Nullable {
			def += " NOT NULL"
		}
		cols = append(cols, def)
	}
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nCREATE TABLE %s (\n  %s\n);",
		msIdent(tbl.Name), msIdent(tbl.Name), strings.Join(cols, ",\n  "))
}

var progressIdent = msIdent(schema.ProgressTable)

// The checkpoint key is NVARCHAR(128); NVARCHAR(MAX) cannot carry a primary
// key.
var (
	sqlProgressDDL = fmt.Sprintf(`IF OBJECT_ID(N'%s', N'U') IS NULL
CREATE TABLE %s (
  [table_name] NVARCHAR(128) PRIMARY KEY,
  [last_committed_batch] BIGINT NOT NULL,
  [updated_at] DATETIMEOFFSET NOT NULL
);`, progressIdent, progressIdent)

	// Update-then-insert; MERGE is avoided for its locking quirks.
	sqlUpsertProgress = fmt.Sprintf(`UPDATE %s SET [last_committed_batch] = @p2, [updated_at] = @p3 WHERE [table_name] = @p1;
IF @@ROWCOUNT = 0
  INSERT INTO %s ([table_name], [last_committed_batch], [updated_at]) VALUES (@p1, @p2, @p3);`,
		progressIdent, progressIdent)

	sqlLastCommitted = fmt.Sprintf(
		`SELECT [last_committed_batch] FROM %s WHERE [table_name] = @p1`, progressIdent)

	sqlCheckpoints = fmt.Sprintf(
		`SELECT [table_name], [last_committed_batch], [updated_at] FROM %s ORDER BY [table_name]`, progressIdent)

	sqlDeleteProgress = fmt.Sprintf(
		`DELETE FROM %s WHERE [table_name] = @p1`, progressIdent)
)

// sqlTableExists takes the raw table name.
const sqlTableExists = `SELECT COUNT(*) FROM sys.tables WHERE name = @p1`

// msIdent safely quotes a SQL Server identifier using [brackets], escaping ].
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }
