package etl

import (
	"ouladload/internal/schema"
	"ouladload/pkg/records"
)

// buildRows flattens records into driver rows ordered by the schema column
// list. Fields absent from a record become nil, which keeps derived columns
// and sparse rows aligned with the insert statement.
func buildRows(tbl schema.Table, recs []records.Record) [][]any {
	rows := make([][]any, len(recs))
	for i, rec := range recs {
		row := make([]any, len(tbl.Columns))
		for j, c := range tbl.Columns {
			if v, ok := rec[c.Name]; ok {
				row[j] = v
			}
		}
		rows[i] = row
	}
	return rows
}
